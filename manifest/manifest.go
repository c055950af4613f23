// Package manifest defines the durable record behind every generated page
// and the stores that persist it.
//
// A manifest is write-once: stores accept exactly one Put per identifier and
// afterwards only serve Get. Every backend resolves a manifest from its
// identifier alone, so the rendering server keeps no state between requests.
package manifest

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when no manifest exists for the identifier.
	ErrNotFound = errors.New("manifest: not found")
	// ErrExists is returned by Put when the identifier already has a manifest.
	ErrExists = errors.New("manifest: already exists")
)

// Manifest holds everything needed to re-render a generated page.
type Manifest struct {
	ID        string    `json:"identifier"`
	Template  string    `json:"template_name"`
	CreatedAt time.Time `json:"created_at"`
	Context   Context   `json:"context"`
}

// Context is the key-value data handed to the page template.
type Context struct {
	Name          string   `json:"name"`
	Title         string   `json:"title"`
	Messages      []string `json:"messages"`
	MainImage     *string  `json:"main_image"`
	GiftImage     string   `json:"gift_image"`
	Music         string   `json:"music"`
	GalleryLink   string   `json:"gallery_link"`
	GalleryImages []string `json:"gallery_images"`
}

// Store persists and retrieves manifests by identifier.
type Store interface {
	Put(ctx context.Context, m Manifest) error
	Get(ctx context.Context, id string) (Manifest, error)
}

// Pinger is implemented by stores that can report backend readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// normalize makes nil slices encode as empty JSON arrays.
func normalize(m Manifest) Manifest {
	if m.Context.Messages == nil {
		m.Context.Messages = []string{}
	}
	if m.Context.GalleryImages == nil {
		m.Context.GalleryImages = []string{}
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m
}
