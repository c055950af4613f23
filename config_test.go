package wishpage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/wishpage/assets"
	"github.com/eringen/wishpage/manifest"
)

func TestSetDefaults(t *testing.T) {
	var cfg SiteConfig
	cfg.setDefaults()

	assert.Equal(t, "Wishpage", cfg.Name)
	assert.Equal(t, ":5001", cfg.Addr)
	assert.Equal(t, BackendFile, cfg.AssetBackend)
	assert.Equal(t, BackendFile, cfg.ManifestBackend)
	assert.Equal(t, 4, cfg.UploadWorkers)
	assert.Equal(t, 30*time.Second, cfg.UploadTimeout)
	assert.Equal(t, "100M", cfg.MaxBodySize)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Zero(t, cfg.MaxImageDimension)
	assert.Equal(t, int64(assets.DefaultMaxPixels), cfg.MaxImagePixels)
	assert.NoError(t, cfg.Validate())
}

func TestSetDefaultsTrimsURL(t *testing.T) {
	cfg := SiteConfig{URL: "https://wish.example/"}
	cfg.setDefaults()
	assert.Equal(t, "https://wish.example", cfg.URL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  SiteConfig
		want string
	}{
		{"unknown asset backend", SiteConfig{AssetBackend: "s3", ManifestBackend: BackendFile}, `unknown asset backend "s3"`},
		{"unknown manifest backend", SiteConfig{AssetBackend: BackendFile, ManifestBackend: "mongo"}, `unknown manifest backend "mongo"`},
		{"minio without endpoint", SiteConfig{AssetBackend: BackendFile, ManifestBackend: BackendMinIO}, "MINIO_ENDPOINT"},
		{"minio assets without public url", SiteConfig{
			AssetBackend: BackendMinIO, ManifestBackend: BackendFile,
			MinIO: MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"},
		}, "MINIO_PUBLIC_URL"},
		{"redis without address", SiteConfig{AssetBackend: BackendFile, ManifestBackend: BackendRedis}, manifest.ErrEmptyAddress.Error()},
		{"negative dimension", SiteConfig{AssetBackend: BackendFile, ManifestBackend: BackendFile, MaxImageDimension: -1}, "MAX_IMAGE_DIMENSION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("RENDER_EXTERNAL_URL", "https://wish.onrender.com")
	t.Setenv("MANIFEST_BACKEND", "REDIS")
	t.Setenv("REDIS_ADDRESS", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("UPLOAD_TIMEOUT", "10s")
	t.Setenv("LOG_DEVELOPMENT", "true")
	t.Setenv("MAX_IMAGE_PIXELS", "20000000")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "https://wish.onrender.com", cfg.URL)
	assert.Equal(t, BackendRedis, cfg.ManifestBackend)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 10*time.Second, cfg.UploadTimeout)
	assert.Equal(t, defaultMaxImageDimension, cfg.MaxImageDimension)
	assert.Equal(t, int64(20_000_000), cfg.MaxImagePixels)
	assert.True(t, cfg.LogDevelopment)
}

func TestLoadConfigSiteURLWins(t *testing.T) {
	t.Setenv("SITE_URL", "https://wish.example")
	t.Setenv("RENDER_EXTERNAL_URL", "https://wish.onrender.com")
	t.Setenv("ADDR", "127.0.0.1:9000")
	t.Setenv("PORT", "8080")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://wish.example", cfg.URL)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
}

func TestLoadConfigRejectsMalformedValues(t *testing.T) {
	t.Setenv("UPLOAD_WORKERS", "many")
	t.Setenv("MINIO_USE_SSL", "maybe")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPLOAD_WORKERS")
	assert.Contains(t, err.Error(), "MINIO_USE_SSL")
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("debug", true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(-1))

	l, err = NewLogger("bogus", false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(-1))
}

func TestBuildURL(t *testing.T) {
	assert.Equal(t, "https://wish.example/generated/abc/", BuildURL("https://wish.example", "generated", "abc"))
	assert.Equal(t, "http://example.com/generated/abc/", BuildURL("http://example.com/", "generated", "abc"))
}
