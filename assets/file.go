package assets

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStore writes assets to {root}/{id}/assets/{filename} and serves them
// under {urlPrefix}/{id}/assets/{filename}.
type FileStore struct {
	root      string
	urlPrefix string
}

// NewFileStore creates a FileStore rooted at dir. URLs are prefixed with
// urlPrefix (default "/generated").
func NewFileStore(dir, urlPrefix string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset root: %w", err)
	}
	if urlPrefix == "" {
		urlPrefix = "/generated"
	}
	return &FileStore{root: dir, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

// Put copies the blob to disk. A partially written file is removed on error.
func (s *FileStore) Put(ctx context.Context, b Blob) (string, error) {
	if !validSegment(b.PageID) {
		return "", ErrInvalidPath
	}
	dir := filepath.Join(s.root, b.PageID, "assets")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create asset dir: %w", err)
	}
	name := b.StoredName()
	p := filepath.Join(dir, name)
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create asset: %w", err)
	}
	if _, err := io.Copy(f, ctxReader{ctx: ctx, r: b.Body}); err != nil {
		f.Close()
		os.Remove(p)
		return "", fmt.Errorf("write asset %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return "", fmt.Errorf("close asset %s: %w", name, err)
	}
	return s.urlPrefix + "/" + b.PageID + "/assets/" + name, nil
}

// Path returns the on-disk location of a stored asset for serving.
func (s *FileStore) Path(id, filename string) (string, error) {
	if !validSegment(id) || !validSegment(filename) {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, id, "assets", filename), nil
}

// Ping checks the root directory is reachable.
func (s *FileStore) Ping(context.Context) error {
	_, err := os.Stat(s.root)
	return err
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`) && !strings.HasPrefix(s, ".")
}

// ctxReader stops a copy once the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
