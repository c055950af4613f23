package page

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/eringen/wishpage/manifest"
)

// Renderer turns manifest data into markup.
type Renderer interface {
	RenderPage(ctx context.Context, w io.Writer, template string, data manifest.Context) error
	RenderGallery(ctx context.Context, w io.Writer, images []string, music string) error
}

// Resolver reproduces generated pages from their manifests on demand.
type Resolver struct {
	manifests manifest.Store
	renderer  Renderer
	log       *zap.Logger
}

// NewResolver creates a Resolver. A nil logger discards output.
func NewResolver(ms manifest.Store, r Renderer, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{manifests: ms, renderer: r, log: log}
}

// ValidID reports whether id has the shape of a generated identifier.
func ValidID(id string) bool {
	if len(id) != 32 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Manifest loads the manifest for id, mapping a missing one to KindNotFound.
func (r *Resolver) Manifest(ctx context.Context, id string) (manifest.Manifest, error) {
	if !ValidID(id) {
		r.log.Warn("page not found", zap.String("page_id", id), zap.String("reason", "malformed id"))
		return manifest.Manifest{}, &Error{Kind: KindNotFound, ID: id}
	}
	m, err := r.manifests.Get(ctx, id)
	if err != nil {
		if errors.Is(err, manifest.ErrNotFound) {
			r.log.Warn("page not found", zap.String("page_id", id))
			return manifest.Manifest{}, &Error{Kind: KindNotFound, ID: id, Err: err}
		}
		return manifest.Manifest{}, fmt.Errorf("load manifest %s: %w", id, err)
	}
	return m, nil
}

// ResolvePage renders the main page for id.
func (r *Resolver) ResolvePage(ctx context.Context, id string) ([]byte, error) {
	m, err := r.Manifest(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.render(id, func(w io.Writer) error {
		return r.renderer.RenderPage(ctx, w, m.Template, m.Context)
	})
}

// ResolveGallery renders the gallery page for id from its images and music only.
func (r *Resolver) ResolveGallery(ctx context.Context, id string) ([]byte, error) {
	m, err := r.Manifest(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.render(id, func(w io.Writer) error {
		return r.renderer.RenderGallery(ctx, w, m.Context.GalleryImages, m.Context.Music)
	})
}

// render buffers the output so a failing template never yields a partial page.
func (r *Resolver) render(id string, fn func(io.Writer) error) (out []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &Error{Kind: KindRender, ID: id, Err: fmt.Errorf("panic: %v", p)}
		}
		if err != nil {
			r.log.Error("render failed", zap.String("page_id", id), zap.Error(err))
		}
	}()
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		return nil, &Error{Kind: KindRender, ID: id, Err: err}
	}
	return buf.Bytes(), nil
}
