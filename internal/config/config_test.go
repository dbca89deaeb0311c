package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr)
	assert.Empty(t, cfg.Server.TrustedProxies)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadHeaderTimeout)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 60, cfg.Auth.TokenTTLMinutes)
	assert.Equal(t, time.Hour, cfg.TokenTTL())
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MEDTRACK_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("MEDTRACK_AUTH_TOKEN_TTL_MINUTES", "15")
	t.Setenv("MEDTRACK_SERVER_CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("MEDTRACK_RATELIMIT_WINDOW", "30s")
	t.Setenv("MEDTRACK_STORAGE_BUCKET", "exports")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 15*time.Minute, cfg.TokenTTL())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, "exports", cfg.Storage.Bucket)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("# local\nMEDTRACK_LOG_LEVEL=\"debug\"\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MEDTRACK_LOG_LEVEL") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MEDTRACK_DATABASE_DRIVER", "oracle")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_PostgresNeedsDSN(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MEDTRACK_DATABASE_DRIVER", "postgres")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("MEDTRACK_DATABASE_DSN", "postgres://localhost/medtrack")
	_, err = Load()
	assert.NoError(t, err)
}
