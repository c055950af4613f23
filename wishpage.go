// Package wishpage serves personalized celebration pages. A visitor fills in
// a form with a name, messages, a template and optional photos or music; the
// server stores the uploads, writes a manifest describing the page and hands
// back a permanent link. Pages are rendered from their manifest on every
// request, so nothing but the manifest and the uploaded assets is persisted.
package wishpage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/eringen/wishpage/assets"
	"github.com/eringen/wishpage/manifest"
	"github.com/eringen/wishpage/music"
	"github.com/eringen/wishpage/page"
	"github.com/eringen/wishpage/views"
)

// App is the central wishpage application. It wires together the stores,
// the generation pipeline, handlers and middleware.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Log    *zap.Logger

	assets     assets.Store
	assetFiles *assets.FileStore // set when assets are served from disk
	manifests  manifest.Store
	assembler  *page.Assembler
	resolver   *page.Resolver
	music      *music.Client
	limiter    *RateLimiter
	registry   *prometheus.Registry
	metrics    *metrics

	closers      []io.Closer
	customRoutes []func(*App)
	initialized  bool
}

// New creates a wishpage App with the given configuration.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init opens the stores and registers middleware and routes. Start calls it
// when it has not run yet; tests call it directly and drive a.Echo.
func (a *App) Init(ctx context.Context) error {
	if a.initialized {
		return nil
	}
	if err := a.Config.Validate(); err != nil {
		return fmt.Errorf("wishpage: invalid config: %w", err)
	}

	if a.Log == nil {
		l, err := NewLogger(a.Config.LogLevel, a.Config.LogDevelopment)
		if err != nil {
			return fmt.Errorf("wishpage: %w", err)
		}
		a.Log = l
	}
	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
	}
	a.metrics = newMetrics(a.registry)

	if a.assets == nil || a.manifests == nil {
		if err := a.openStores(ctx); err != nil {
			a.Close()
			return fmt.Errorf("wishpage: init storage: %w", err)
		}
	}
	if fs, ok := a.assets.(*assets.FileStore); ok {
		a.assetFiles = fs
	}
	a.assets = assets.Resizing(a.assets, a.Config.MaxImageDimension,
		assets.WithMaxPixels(a.Config.MaxImagePixels))

	a.assembler = page.NewAssembler(a.assets, a.manifests,
		page.WithWorkers(a.Config.UploadWorkers),
		page.WithUploadTimeout(a.Config.UploadTimeout),
		page.WithLogger(a.Log.Named("assembler")),
		page.WithUploadObserver(a.metrics.observeUpload),
	)
	a.resolver = page.NewResolver(a.manifests, views.Templates{}, a.Log.Named("resolver"))

	if a.music == nil {
		a.music = music.New(music.Config{
			SpotifyClientID:     a.Config.SpotifyClientID,
			SpotifyClientSecret: a.Config.SpotifyClientSecret,
		}, a.Log.Named("music"))
	}
	a.limiter = NewRateLimiter(a.Config.GenerateRateLimit, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}

	a.initialized = true
	return nil
}

// Start initializes the app and serves until the server is shut down.
func (a *App) Start() error {
	if err := a.Init(context.Background()); err != nil {
		return err
	}
	a.Log.Info("listening", zap.String("addr", a.Config.Addr), zap.String("site", a.Config.Name))
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	if a.Config.StaticDir != "" {
		e.Static("/static", a.Config.StaticDir)
	} else {
		e.StaticFS("/static", echo.MustSubFS(StaticAssets, "static"))
	}

	e.GET("/", a.handleLanding)
	e.POST("/generate", a.handleGenerate, a.limiter.Middleware)
	e.GET("/generated/:id/", a.handlePage)
	e.GET("/generated/:id/gallery", a.handleGallery)
	if a.assetFiles != nil {
		e.GET("/generated/:id/assets/:filename", a.handleAsset)
	}

	e.GET("/api/music/search", a.handleMusicSearch)
	e.GET("/health", a.handleHealth)
	e.GET("/metrics", a.metricsHandler())
}

// Close releases store connections and stops background work. Call this when
// the app is shutting down.
func (a *App) Close() error {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	err := closeAll(a.closers)
	a.closers = nil
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return err
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
