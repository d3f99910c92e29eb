package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/odvcencio/taskmate/pkg/errors"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Chdir(t.TempDir())
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Minute, cfg.Pending.TTL)
	assert.Equal(t, time.Minute, cfg.Pending.SweepInterval)
	assert.Equal(t, 0.8, cfg.Chat.ConfirmThreshold)
	assert.Equal(t, 5, cfg.Chat.MaxDestructive)
	assert.Equal(t, "DELETE", cfg.Chat.DestructiveToken)
}

func TestLoad_Layering(t *testing.T) {
	home := isolate(t)

	writeFile(t, filepath.Join(home, DirName, "config.yaml"), `
server:
  addr: ":9000"
pending:
  ttl: 2m
logging:
  level: debug
`)
	writeFile(t, filepath.Join(".", DirName, "config.yaml"), `
pending:
  ttl: 90s
storage:
  dsn: ":memory:"
`)
	t.Setenv("TASKMATE_LOGGING_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 90*time.Second, cfg.Pending.TTL)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
	assert.Equal(t, "warn", cfg.Logging.Level)
	// untouched keys keep their defaults
	assert.Equal(t, time.Minute, cfg.Pending.SweepInterval)
	assert.Equal(t, "gemini-2.5-flash", cfg.Model.Name)
}

func TestLoad_NoFiles(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, DirName, "taskmate.db"), cfg.Storage.DSN)
}

func TestLoad_BadYAML(t *testing.T) {
	isolate(t)
	writeFile(t, filepath.Join(".", DirName, "config.yaml"), "pending: [not a map")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigLoad))
}

func TestLoadFromPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, `
chat:
  max_destructive: 3
  destructive_token: CONFIRM
parser:
  repair: false
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Chat.MaxDestructive)
	assert.Equal(t, "CONFIRM", cfg.Chat.DestructiveToken)
	assert.False(t, cfg.Parser.Repair)

	_, err = LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigLoad))
}

func TestApplyEnv(t *testing.T) {
	isolate(t)
	t.Setenv("TASKMATE_PENDING_SWEEP_INTERVAL", "15s")
	t.Setenv("TASKMATE_SERVER_RATE_LIMIT_BURST", "42")
	t.Setenv("TASKMATE_MODEL_TEMPERATURE", "0.2")
	t.Setenv("TASKMATE_BUS_URL", "nats://localhost:4222")
	t.Setenv("TASKMATE_STORAGE_DSN", "postgres://x")
	t.Setenv("TASKMATE_STORAGE_DRIVER", "postgres")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	cfg := DefaultConfig()
	require.NoError(t, ApplyEnv(cfg))

	assert.Equal(t, 15*time.Second, cfg.Pending.SweepInterval)
	assert.Equal(t, 42, cfg.Server.RateLimit.Burst)
	assert.InDelta(t, 0.2, cfg.Model.Temperature, 1e-6)
	assert.Equal(t, "nats://localhost:4222", cfg.Bus.URL)
	assert.Equal(t, "postgres://x", cfg.Storage.DSN)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "google-key", cfg.Model.APIKey)
}

func TestApplyEnv_KeyPrecedence(t *testing.T) {
	isolate(t)
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	cfg := DefaultConfig()
	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, "gemini-key", cfg.Model.APIKey)

	t.Setenv("TASKMATE_MODEL_API_KEY", "explicit")
	cfg = DefaultConfig()
	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, "explicit", cfg.Model.APIKey)
}

func TestApplyEnv_Invalid(t *testing.T) {
	isolate(t)
	t.Setenv("TASKMATE_PENDING_TTL", "soon")

	err := ApplyEnv(DefaultConfig())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"provider", func(c *Config) { c.Model.Provider = "openai" }},
		{"temperature", func(c *Config) { c.Model.Temperature = 3 }},
		{"ttl", func(c *Config) { c.Pending.TTL = 0 }},
		{"sweep", func(c *Config) { c.Pending.SweepInterval = -time.Second }},
		{"threshold", func(c *Config) { c.Chat.ConfirmThreshold = 1.5 }},
		{"token", func(c *Config) { c.Chat.DestructiveToken = " " }},
		{"timezone", func(c *Config) { c.Chat.Timezone = "Mars/Olympus" }},
		{"driver", func(c *Config) { c.Storage.Driver = "mysql" }},
		{"format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeConfigInvalid, apperrors.GetCode(err))
		})
	}
}

func TestRequireSecrets(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.RequireModelKey())
	assert.Error(t, cfg.RequireAuthSecret())

	cfg.Model.APIKey = "k"
	cfg.Auth.Secret = "0123456789abcdef"
	assert.NoError(t, cfg.RequireModelKey())
	assert.NoError(t, cfg.RequireAuthSecret())
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, time.Local, cfg.Location())
	cfg.Chat.Timezone = "UTC"
	assert.Equal(t, "UTC", cfg.Location().String())
}
