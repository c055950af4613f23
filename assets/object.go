package assets

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
)

// ObjectStore uploads assets to an S3-compatible bucket. Objects are keyed
// {namespace}/{id}/assets/{filename} and addressed through publicURL, which
// should point at the bucket's public (CDN) origin.
type ObjectStore struct {
	client    *minio.Client
	bucket    string
	namespace string
	publicURL string
}

// NewObjectStore wraps a MinIO client.
func NewObjectStore(client *minio.Client, bucket, namespace, publicURL string) *ObjectStore {
	return &ObjectStore{
		client:    client,
		bucket:    bucket,
		namespace: namespace,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

func (s *ObjectStore) key(b Blob) string {
	return path.Join(s.namespace, b.PageID, "assets", b.StoredName())
}

// Put uploads the blob and returns its public URL.
func (s *ObjectStore) Put(ctx context.Context, b Blob) (string, error) {
	if !validSegment(b.PageID) {
		return "", ErrInvalidPath
	}
	key := s.key(b)
	contentType := mime.TypeByExtension("." + extension(b.StoredName()))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, b.Body, b.Size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
		UserMetadata: map[string]string{
			"page-id": b.PageID,
			"slot":    b.Slot,
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return s.publicURL + "/" + key, nil
}

// Ping verifies the bucket exists.
func (s *ObjectStore) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket check: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}
