package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_PORT", "SWEEP_INTERVAL", "DATABASE_URL", "SEED_DEMO", "SMTP_HOST", "STAFF_EMAIL"} {
		t.Setenv(k, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8092", cfg.HTTPPort)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 20*time.Second, cfg.ReadHeaderTimeout)
	assert.Equal(t, 4, cfg.SweepConcurrency)
	assert.Equal(t, "120-M", cfg.RateLimit)
	assert.Empty(t, cfg.DatabaseURL)
	assert.False(t, cfg.SeedDemo)
	assert.False(t, cfg.MailEnabled())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("SWEEP_CONCURRENCY", "8")
	t.Setenv("SEED_DEMO", "true")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("STAFF_EMAIL", "ops@example.com")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 8, cfg.SweepConcurrency)
	assert.True(t, cfg.SeedDemo)
	assert.True(t, cfg.MailEnabled())
}

func TestFromEnvRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"SWEEP_INTERVAL":    "soon",
		"SWEEP_CONCURRENCY": "0",
		"SEED_DEMO":         "maybe",
		"SMTP_PORT":         "-1",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)

			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	t.Setenv("HTTP_PORT", "")
	require.NoError(t, os.Unsetenv("HTTP_PORT"))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_PORT=7777\n"), 0o600))

	t.Cleanup(func() { _ = os.Unsetenv("HTTP_PORT") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7777", cfg.HTTPPort)
}

func TestLoadIgnoresMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
