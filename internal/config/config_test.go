package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "server"

[postgres]
database = "diary_test"

[sync]
interval = "10m"
days = 14

[secrets]
master_password = "pw"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, "diary_test", cfg.Postgres.Database)
	// Untouched fields keep their defaults.
	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, 10*time.Minute, cfg.Sync.Interval.Duration)
	assert.Equal(t, 14, cfg.Sync.Days)

	require.NoError(t, cfg.Validate())
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("TRADEDIARY_POSTGRES_PASSWORD", "env-pw")
	t.Setenv("TRADEDIARY_SYNC_INTERVAL", "2m")
	t.Setenv("TRADEDIARY_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	path := writeConfig(t, `
[secrets]
master_password = "pw"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-pw", cfg.Postgres.Password)
	assert.Equal(t, 2*time.Minute, cfg.Sync.Interval.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestValidateCollectsProblems(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.Redis.Addr = ""
	cfg.Sync.Days = 90

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "redis: addr")
	assert.Contains(t, err.Error(), "sync: days")
	assert.Contains(t, err.Error(), "master_password")
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	cfg.Postgres.Password = "db-pw"
	cfg.Secrets.MasterPassword = "master"
	cfg.Notify.TelegramToken = "tg-token"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Secrets.MasterPassword)
	assert.Equal(t, "***", red.Notify.TelegramToken)
	// Original is untouched.
	assert.Equal(t, "db-pw", cfg.Postgres.Password)
}
