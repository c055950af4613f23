package wishpage

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/eringen/wishpage/assets"
	"github.com/eringen/wishpage/manifest"
	"github.com/eringen/wishpage/music"
)

// Storage backends selectable through ASSET_BACKEND and MANIFEST_BACKEND.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMinIO  = "minio"
)

// MinIOConfig holds settings for the S3-compatible object store.
type MinIOConfig struct {
	Endpoint  string // MINIO_ENDPOINT, host:port
	AccessKey string // MINIO_ACCESS_KEY
	SecretKey string // MINIO_SECRET_KEY
	UseSSL    bool   // MINIO_USE_SSL
	Bucket    string // MINIO_BUCKET (default "wishpage")
	PublicURL string // MINIO_PUBLIC_URL, CDN or bucket URL assets are served from
	Namespace string // MINIO_NAMESPACE, object key prefix (default "generated")
}

// SiteConfig holds all configuration for a wishpage server.
type SiteConfig struct {
	Name string // Site name (default "Wishpage")
	URL  string // Public base URL for links; derived from the request when empty

	Addr         string // Listen address (default ":5001")
	GeneratedDir string // Root for the file backends (default "generated")
	StaticDir    string // Optional directory served at /static instead of the embedded assets

	AssetBackend    string // "file" or "minio" (default "file")
	ManifestBackend string // "file", "sqlite", "redis" or "minio" (default "file")
	DatabasePath    string // SQLite path (default "data/manifests.db")
	Redis           manifest.RedisConfig
	MinIO           MinIOConfig

	UploadWorkers     int           // Concurrent uploads per submission (default 4)
	UploadTimeout     time.Duration // Per-upload limit (default 30s)
	MaxImageDimension int           // Longest image side after resize; 0 disables resizing
	MaxImagePixels    int64         // Largest width*height the resizer decodes (default 50M)
	MaxBodySize       string        // Request body limit (default "100M")
	CORSOrigins       []string      // Allowed origins (default "*")
	GenerateRateLimit int           // Generations per client IP per minute (default 30)

	SpotifyClientID     string
	SpotifyClientSecret string

	LogLevel       string // debug, info, warn, error (default "info")
	LogDevelopment bool
}

const defaultMaxImageDimension = 1600

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Wishpage"
	}
	c.URL = strings.TrimRight(c.URL, "/")
	if c.Addr == "" {
		c.Addr = ":5001"
	}
	if c.GeneratedDir == "" {
		c.GeneratedDir = "generated"
	}
	if c.AssetBackend == "" {
		c.AssetBackend = BackendFile
	}
	if c.ManifestBackend == "" {
		c.ManifestBackend = BackendFile
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/manifests.db"
	}
	if c.MinIO.Bucket == "" {
		c.MinIO.Bucket = "wishpage"
	}
	if c.MinIO.Namespace == "" {
		c.MinIO.Namespace = "generated"
	}
	if c.UploadWorkers <= 0 {
		c.UploadWorkers = 4
	}
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = 30 * time.Second
	}
	if c.MaxImagePixels <= 0 {
		c.MaxImagePixels = assets.DefaultMaxPixels
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "100M"
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.GenerateRateLimit <= 0 {
		c.GenerateRateLimit = 30
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate reports configuration that cannot produce a working server.
func (c SiteConfig) Validate() error {
	var errs []error
	switch c.AssetBackend {
	case BackendFile, BackendMinIO:
	default:
		errs = append(errs, fmt.Errorf("unknown asset backend %q", c.AssetBackend))
	}
	switch c.ManifestBackend {
	case BackendFile, BackendSQLite, BackendRedis, BackendMinIO:
	default:
		errs = append(errs, fmt.Errorf("unknown manifest backend %q", c.ManifestBackend))
	}
	if c.AssetBackend == BackendMinIO || c.ManifestBackend == BackendMinIO {
		if c.MinIO.Endpoint == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT is required for the minio backend"))
		}
		if c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "" {
			errs = append(errs, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for the minio backend"))
		}
	}
	if c.AssetBackend == BackendMinIO && c.MinIO.PublicURL == "" {
		errs = append(errs, errors.New("MINIO_PUBLIC_URL is required for the minio asset backend"))
	}
	if c.ManifestBackend == BackendRedis && c.Redis.Address == "" {
		errs = append(errs, manifest.ErrEmptyAddress)
	}
	if c.MaxImageDimension < 0 {
		errs = append(errs, errors.New("MAX_IMAGE_DIMENSION must not be negative"))
	}
	return errors.Join(errs...)
}

// LoadConfig reads .env.local and .env when present, then builds a SiteConfig
// from the environment. Variables already set in the environment win.
func LoadConfig() (SiteConfig, error) {
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return SiteConfig{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	addr := os.Getenv("ADDR")
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		}
	}

	var errs []error
	cfg := SiteConfig{
		Name:            os.Getenv("SITE_NAME"),
		URL:             EnvOr("SITE_URL", os.Getenv("RENDER_EXTERNAL_URL")),
		Addr:            addr,
		GeneratedDir:    os.Getenv("GENERATED_DIR"),
		StaticDir:       os.Getenv("STATIC_DIR"),
		AssetBackend:    strings.ToLower(os.Getenv("ASSET_BACKEND")),
		ManifestBackend: strings.ToLower(os.Getenv("MANIFEST_BACKEND")),
		DatabasePath:    os.Getenv("DATABASE_PATH"),
		Redis: manifest.RedisConfig{
			Address:   os.Getenv("REDIS_ADDRESS"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        envInt("REDIS_DB", 0, &errs),
			Namespace: os.Getenv("REDIS_NAMESPACE"),
		},
		MinIO: MinIOConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    envBool("MINIO_USE_SSL", false, &errs),
			Bucket:    os.Getenv("MINIO_BUCKET"),
			PublicURL: os.Getenv("MINIO_PUBLIC_URL"),
			Namespace: os.Getenv("MINIO_NAMESPACE"),
		},
		UploadWorkers:       envInt("UPLOAD_WORKERS", 0, &errs),
		UploadTimeout:       envDuration("UPLOAD_TIMEOUT", 0, &errs),
		MaxImageDimension:   envInt("MAX_IMAGE_DIMENSION", defaultMaxImageDimension, &errs),
		MaxImagePixels:      int64(envInt("MAX_IMAGE_PIXELS", 0, &errs)),
		MaxBodySize:         os.Getenv("MAX_BODY_SIZE"),
		CORSOrigins:         FilterEmpty(strings.Split(os.Getenv("CORS_ORIGINS"), ",")),
		GenerateRateLimit:   envInt("GENERATE_RATE_LIMIT", 0, &errs),
		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		LogLevel:            os.Getenv("LOG_LEVEL"),
		LogDevelopment:      envBool("LOG_DEVELOPMENT", false, &errs),
	}
	if err := errors.Join(errs...); err != nil {
		return SiteConfig{}, err
	}
	cfg.setDefaults()
	return cfg, cfg.Validate()
}

func envInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func envBool(key string, fallback bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

// Option configures additional App behavior.
type Option func(*App)

// WithLogger sets the application logger (default: built from LogLevel).
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.Log = l
	}
}

// WithStores replaces the configured storage backends.
func WithStores(as assets.Store, ms manifest.Store) Option {
	return func(a *App) {
		a.assets = as
		a.manifests = ms
	}
}

// WithMusicClient replaces the catalog client built from the Spotify settings.
func WithMusicClient(c *music.Client) Option {
	return func(a *App) {
		a.music = c
	}
}

// WithRegistry sets the Prometheus registry metrics are registered on and
// exported from (default: a fresh registry per App).
func WithRegistry(r *prometheus.Registry) Option {
	return func(a *App) {
		a.registry = r
	}
}

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback runs after the built-in routes are registered.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}
