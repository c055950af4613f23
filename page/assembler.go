// Package page turns generation form submissions into stored page manifests
// and resolves those manifests back into rendered pages.
package page

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/wishpage/assets"
	"github.com/eringen/wishpage/manifest"
)

const (
	defaultWorkers       = 4
	defaultUploadTimeout = 30 * time.Second
)

// UploadObserver is notified after every asset upload attempt.
type UploadObserver func(slot string, kind assets.Kind, elapsed time.Duration, err error)

// Assembler validates a submission, stores its assets and writes its manifest.
// It holds no per-request state and is safe for concurrent use.
type Assembler struct {
	assets    assets.Store
	manifests manifest.Store
	log       *zap.Logger
	workers   int
	timeout   time.Duration
	newID     func() string
	now       func() time.Time
	observe   UploadObserver
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithWorkers caps how many uploads of one submission run at once.
func WithWorkers(n int) AssemblerOption {
	return func(a *Assembler) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithUploadTimeout bounds each individual upload.
func WithUploadTimeout(d time.Duration) AssemblerOption {
	return func(a *Assembler) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the assembler's logger.
func WithLogger(l *zap.Logger) AssemblerOption {
	return func(a *Assembler) { a.log = l }
}

// WithIDGenerator replaces NewID, mainly for tests.
func WithIDGenerator(fn func() string) AssemblerOption {
	return func(a *Assembler) { a.newID = fn }
}

// WithClock replaces time.Now for the manifest timestamp.
func WithClock(fn func() time.Time) AssemblerOption {
	return func(a *Assembler) { a.now = fn }
}

// WithUploadObserver registers a hook called after each upload.
func WithUploadObserver(fn UploadObserver) AssemblerOption {
	return func(a *Assembler) { a.observe = fn }
}

// NewAssembler creates an Assembler writing through the given stores.
func NewAssembler(as assets.Store, ms manifest.Store, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		assets:    as,
		manifests: ms,
		log:       zap.NewNop(),
		workers:   defaultWorkers,
		timeout:   defaultUploadTimeout,
		newID:     NewID,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewID returns a fresh 32-character hex page identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// PagePath is the public path of a generated page.
func PagePath(id string) string { return "/generated/" + id + "/" }

// GalleryPath is the public path of a page's gallery.
func GalleryPath(id string) string { return "/generated/" + id + "/gallery" }

// Result identifies a freshly generated page.
type Result struct {
	ID   string
	Path string
}

// uploadJob binds one accepted upload to the variable receiving its URL.
type uploadJob struct {
	slot string
	kind assets.Kind
	file Upload
	dst  *string
}

// Assemble runs the generation pipeline. Either every upload and the manifest
// write succeed and a Result is returned, or a *Error is returned and no
// manifest exists for the identifier. Assets stored before a failure are left
// in place.
func (a *Assembler) Assemble(ctx context.Context, sub Submission) (Result, error) {
	f := parseFields(sub.Fields)
	id := a.newID()
	log := a.log.With(zap.String("page_id", id))

	var mainURL, giftURL, musicURL string
	var jobs []uploadJob
	if accepted(sub.Main, assets.KindImage) {
		jobs = append(jobs, uploadJob{slot: "main", kind: assets.KindImage, file: *sub.Main, dst: &mainURL})
	}
	if accepted(sub.Gift, assets.KindImage) {
		jobs = append(jobs, uploadJob{slot: "gift", kind: assets.KindImage, file: *sub.Gift, dst: &giftURL})
	}
	if accepted(sub.Music, assets.KindAudio) {
		jobs = append(jobs, uploadJob{slot: "music", kind: assets.KindAudio, file: *sub.Music, dst: &musicURL})
	}
	gallery := selectGallery(sub.Gallery)
	galleryURLs := make([]string, len(gallery))
	for i := range gallery {
		jobs = append(jobs, uploadJob{
			slot: fmt.Sprintf("g%d", i),
			kind: assets.KindImage,
			file: gallery[i],
			dst:  &galleryURLs[i],
		})
	}

	start := time.Now()
	if err := a.uploadAll(ctx, id, jobs); err != nil {
		log.Error("asset upload failed", zap.Error(err), zap.Int("uploads", len(jobs)))
		return Result{}, err
	}

	m := manifest.Manifest{
		ID:        id,
		Template:  f.template,
		CreatedAt: a.now().UTC(),
		Context: manifest.Context{
			Name:          f.name,
			Title:         f.title,
			Messages:      f.messages,
			GiftImage:     firstNonEmpty(giftURL, sub.Fields.GiftSelected, DefaultGiftImage),
			Music:         firstNonEmpty(musicURL, sub.Fields.MusicSelected, sub.Fields.MusicOption, DefaultMusic),
			GalleryLink:   GalleryPath(id),
			GalleryImages: galleryURLs,
		},
	}
	if mainURL != "" {
		m.Context.MainImage = &mainURL
	}

	if err := a.manifests.Put(ctx, m); err != nil {
		log.Error("manifest write failed", zap.Error(err))
		return Result{}, &Error{Kind: KindManifest, ID: id, Err: err}
	}

	log.Info("page generated",
		zap.String("template", m.Template),
		zap.Int("messages", len(m.Context.Messages)),
		zap.Int("gallery", len(galleryURLs)),
		zap.Duration("elapsed", time.Since(start)))
	return Result{ID: id, Path: PagePath(id)}, nil
}

// uploadAll stores every job with at most a.workers in flight and returns
// only after all of them have finished. The first failure cancels the rest.
func (a *Assembler) uploadAll(ctx context.Context, id string, jobs []uploadJob) error {
	if len(jobs) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for _, j := range jobs {
		g.Go(func() error {
			began := time.Now()
			url, err := a.store(gctx, id, j)
			if a.observe != nil {
				a.observe(j.slot, j.kind, time.Since(began), err)
			}
			if err != nil {
				return uploadError(id, j.slot, err)
			}
			*j.dst = url
			return nil
		})
	}
	return g.Wait()
}

func (a *Assembler) store(ctx context.Context, id string, j uploadJob) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	rc, err := j.file.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer rc.Close()

	return a.assets.Put(ctx, assets.Blob{
		PageID:   id,
		Slot:     j.slot,
		Filename: j.file.Filename,
		Kind:     j.kind,
		Body:     rc,
		Size:     j.file.Size,
	})
}

func accepted(u *Upload, kind assets.Kind) bool {
	return u != nil && u.Open != nil && assets.Allowed(u.Filename, kind)
}

// selectGallery keeps allowed images in submission order, up to MaxGallery.
func selectGallery(files []Upload) []Upload {
	out := make([]Upload, 0, MaxGallery)
	for i := range files {
		if len(out) == MaxGallery {
			break
		}
		if accepted(&files[i], assets.KindImage) {
			out = append(out, files[i])
		}
	}
	return out
}
