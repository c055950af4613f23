package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/minio/minio-go/v7"
)

// ObjectStore keeps manifests as JSON objects in an S3-compatible bucket under
// {namespace}/{id}/manifest.json. Reads use GetObject by key rather than a
// public URL, so CDN caching can never serve a stale or missing manifest.
type ObjectStore struct {
	client    *minio.Client
	bucket    string
	namespace string
}

// NewObjectStore wraps a MinIO client.
func NewObjectStore(client *minio.Client, bucket, namespace string) *ObjectStore {
	return &ObjectStore{client: client, bucket: bucket, namespace: namespace}
}

func (s *ObjectStore) key(id string) string {
	return path.Join(s.namespace, id, manifestFile)
}

// Put uploads the manifest. An existing object for the same id is reported as
// ErrExists; the check and the write are not atomic.
func (s *ObjectStore) Put(ctx context.Context, m Manifest) error {
	key := s.key(m.ID)
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err == nil {
		return ErrExists
	} else if !isNoSuchKey(err) {
		return fmt.Errorf("stat manifest: %w", err)
	}

	data, err := json.Marshal(normalize(m))
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType:  "application/json",
			CacheControl: "no-cache",
		})
	if err != nil {
		return fmt.Errorf("upload manifest: %w", err)
	}
	return nil
}

// Get downloads and decodes the manifest for id.
func (s *ObjectStore) Get(ctx context.Context, id string) (Manifest, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(id), minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return Manifest{}, ErrNotFound
		}
		return Manifest{}, fmt.Errorf("get manifest: %w", err)
	}
	defer obj.Close()

	// GetObject is lazy; a missing key surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return Manifest{}, ErrNotFound
		}
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %s: %w", id, err)
	}
	return m, nil
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

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
