package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	t.Setenv("DSN", "postgres://localhost/waste")
	t.Setenv("JWT_SECRET", "secret")

	cfg := New()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "postgres://localhost/waste", cfg.Dsn)
	assert.Equal(t, 15*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 100, cfg.RateLimitMaxRequests)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadSize)
	assert.Equal(t, "http://localhost:8000", cfg.AIServiceURL)
	assert.Equal(t, 30*time.Second, cfg.AIServiceTimeout)
	assert.True(t, cfg.AIMockFallback)
	assert.Equal(t, StorageLocal, cfg.StorageDriver)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CorsAllowedOrigins)
}

func TestNewReadsOriginList(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg := New()

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CorsAllowedOrigins)
}

func validConfig() Config {
	return Config{
		Dsn:                  "postgres://localhost/waste",
		JwtSecret:            "secret",
		JwtExpires:           "24h",
		RefreshSecret:        "refresh",
		RefreshExpiry:        "168h",
		StorageDriver:        StorageLocal,
		RateLimitWindow:      time.Minute,
		RateLimitMaxRequests: 10,
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing dsn", func(c *Config) { c.Dsn = "" }, "DSN"},
		{"missing jwt secret", func(c *Config) { c.JwtSecret = "" }, "JWT_SECRET"},
		{"bad expiry", func(c *Config) { c.JwtExpires = "soon" }, "JWT_EXPIRES"},
		{"unknown storage", func(c *Config) { c.StorageDriver = "s3" }, "STORAGE_DRIVER"},
		{"cloudinary without keys", func(c *Config) { c.StorageDriver = StorageCloudinary }, "cloudinary"},
		{"zero rate limit", func(c *Config) { c.RateLimitMaxRequests = 0 }, "rate limit"},
		{"relative ai url", func(c *Config) { c.AIServiceURL = "localhost:8000" }, "AI_SERVICE_URL"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
