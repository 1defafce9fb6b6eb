package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("CATALOG_DATABASE_URL", "postgres://catalog@localhost/catalog")
	t.Setenv("CATALOG_TOKEN_PEPPER", "pepper")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig([]string{})
	require.NoError(t, err)

	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, StorageFilesystem, cfg.Storage.Driver)
	assert.Equal(t, "storage/app", cfg.Storage.Root)
	assert.Equal(t, int64(2<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_Env(t *testing.T) {
	setRequired(t)
	t.Setenv("CATALOG_IMAGE_BASE_URL", "https://cdn.example.com/")
	t.Setenv("CATALOG_STORAGE_DRIVER", "postgres")
	t.Setenv("CATALOG_UPLOAD_MAX_BYTES", "1024")

	cfg, err := LoadConfig([]string{})
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.example.com/", cfg.ImageBaseURL)
	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, int64(1024), cfg.Upload.MaxBytes)
}

func TestLoadConfig_Flags(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig([]string{"-token-pepper=from-flag"})
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.TokenPepper)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("CATALOG_TOKEN_PEPPER", "pepper")
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9000")

	cfg, err := LoadConfig([]string{})
	require.NoError(t, err)
	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			DatabaseURL: "postgres://localhost/catalog",
			TokenPepper: "pepper",
			Storage:     StorageConfig{Driver: StorageFilesystem, Root: "storage"},
			RateLimit:   RateLimitConfig{Max: 100, Window: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"memory driver", func(c *Config) { c.Storage = StorageConfig{Driver: StorageMemory} }, ""},
		{"no database", func(c *Config) { c.DatabaseURL = "" }, "database URL is required"},
		{"no pepper", func(c *Config) { c.TokenPepper = "" }, "token pepper is required"},
		{"no root", func(c *Config) { c.Storage.Root = "" }, "storage root is required"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "s3" }, `unknown storage driver "s3"`},
		{"negative upload", func(c *Config) { c.Upload.MaxBytes = -1 }, "must not be negative"},
		{"zero rate limit", func(c *Config) { c.RateLimit.Max = 0 }, "rate limit max must be positive"},
		{"zero window", func(c *Config) { c.RateLimit.Window = 0 }, "rate limit window must be positive"},
		{"negative window", func(c *Config) { c.RateLimit.Window = -time.Second }, "rate limit window must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
