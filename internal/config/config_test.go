// AngelaMos | 2026
// config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/supernova")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
}

func TestParse_DefaultsAndEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DISPATCH_PAGE_SIZE", "50")
	t.Setenv("SITE_BASE_URL", "https://wealthsupernova.com")

	cfg, err := Parse("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Address())
	assert.Equal(t, 50, cfg.Dispatch.PageSize)
	assert.Equal(t, 15*time.Minute, cfg.Dispatch.LockTTL)
	assert.Equal(t, "https://wealthsupernova.com", cfg.Site.BaseURL)
	assert.Equal(t, uint64(3), cfg.Email.MaxRetries)
	assert.False(t, cfg.IsProduction())
}

func TestParse_FileThenEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("EMAIL_FROM_NAME", "Desk")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  environment: production
email:
  from_name: File
  from_address: desk@wealthsupernova.com
storage:
  public_base_url: https://cdn.wealthsupernova.com/
`), 0o600))

	cfg, err := Parse(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "Desk", cfg.Email.FromName)
	assert.Equal(t, "desk@wealthsupernova.com", cfg.Email.FromAddress)
	assert.Equal(t,
		"https://cdn.wealthsupernova.com/newsletter_images/a.png",
		cfg.Storage.PublicURL("/newsletter_images/a.png"),
	)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database", map[string]string{"REDIS_URL": "redis://x"}},
		{"missing redis", map[string]string{"DATABASE_URL": "postgres://x"}},
		{"bad page size", map[string]string{
			"DATABASE_URL": "postgres://x", "REDIS_URL": "redis://x", "DISPATCH_PAGE_SIZE": "0",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			t.Setenv("REDIS_URL", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Parse("")
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	c := &Config{
		CORS: CORSConfig{AllowCredentials: true, AllowedOrigins: []string{"*"}},
	}

	err := c.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	for _, want := range []string{"DATABASE_URL", "REDIS_URL", "SITE_BASE_URL", "dispatch.page_size", "cors.allowed_origins"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestStoragePublicURL_FallsBackToEndpoint(t *testing.T) {
	s := StorageConfig{Endpoint: "http://minio:9000", Bucket: "public"}
	assert.Equal(t, "http://minio:9000/public/k.png", s.PublicURL("k.png"))
}
