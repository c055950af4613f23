package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const jpegQuality = 85

// DefaultMaxPixels caps the decoded size of an image the resizer will accept.
const DefaultMaxPixels = 50_000_000

// ErrImageTooLarge is returned when an image declares more pixels than the
// resizer is willing to decode.
var ErrImageTooLarge = errors.New("assets: image dimensions too large")

// ResizeOption configures the Resizing store.
type ResizeOption func(*resizingStore)

// WithMaxPixels sets the largest width*height the resizer decodes
// (default DefaultMaxPixels).
func WithMaxPixels(n int64) ResizeOption {
	return func(s *resizingStore) {
		if n > 0 {
			s.maxPixels = n
		}
	}
}

// Resizing wraps next so that raster images whose longest side exceeds
// maxDim are downscaled before storage. A maxDim of zero or less disables it.
//
// PNG stays PNG. JPEG and WebP are re-encoded as JPEG (WebP files get a .jpg
// name since the standard library cannot encode WebP). GIFs keep their
// animation and pass through untouched, as does anything that fails to decode.
// Images declaring more than the pixel cap are rejected with ErrImageTooLarge
// before any pixel data is decoded.
func Resizing(next Store, maxDim int, opts ...ResizeOption) Store {
	if maxDim <= 0 {
		return next
	}
	s := &resizingStore{next: next, maxDim: maxDim, maxPixels: DefaultMaxPixels}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type resizingStore struct {
	next      Store
	maxDim    int
	maxPixels int64
}

func (s *resizingStore) Put(ctx context.Context, b Blob) (string, error) {
	ext := extension(b.Filename)
	if b.Kind != KindImage || ext == "gif" {
		return s.next.Put(ctx, b)
	}
	data, err := io.ReadAll(b.Body)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil && int64(cfg.Width)*int64(cfg.Height) > s.maxPixels {
		return "", fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	if err == nil && (cfg.Width > s.maxDim || cfg.Height > s.maxDim) {
		if out, outExt, ok := downscale(data, format, cfg, s.maxDim); ok {
			data = out
			if outExt != ext {
				b.Filename = replaceExt(b.Filename, outExt)
			}
		}
	}
	b.Body = bytes.NewReader(data)
	b.Size = int64(len(data))
	return s.next.Put(ctx, b)
}

func (s *resizingStore) Ping(ctx context.Context) error {
	if p, ok := s.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// downscale returns the re-encoded image and its extension, or ok=false when
// the image cannot be decoded.
func downscale(data []byte, format string, cfg image.Config, maxDim int) (out []byte, ext string, ok bool) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", false
	}

	w, h := fitWithin(cfg.Width, cfg.Height, maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if format == "png" {
		if err := png.Encode(&buf, dst); err != nil {
			return nil, "", false
		}
		return buf.Bytes(), "png", true
	}
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", false
	}
	return buf.Bytes(), "jpg", true
}

func replaceExt(name, ext string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name + "." + ext
}

// fitWithin scales w×h so the longest side equals maxDim, keeping the aspect ratio.
func fitWithin(w, h, maxDim int) (int, int) {
	if w >= h {
		nh := h * maxDim / w
		if nh < 1 {
			nh = 1
		}
		return maxDim, nh
	}
	nw := w * maxDim / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxDim
}
