package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.Equal(t, "http://api.tushare.pro", cfg.Tushare.BaseURL)
	assert.Equal(t, 180, cfg.Tushare.MaxRequestPerMinute)
	assert.Equal(t, 30, cfg.Tushare.TimeoutSeconds)
	assert.Equal(t, 30, cfg.Evolution.UpdateDays)
	assert.Equal(t, 420, cfg.Evolution.LoadDays)
	assert.Equal(t, "evolution", cfg.Evolution.OutputDir)
	assert.Equal(t, "evolution/.evolution.lock", cfg.Evolution.LockPath)
	assert.Equal(t, 4, cfg.Evolution.MaxWorkers)
	assert.Equal(t, "30 17 * * MON-FRI", cfg.Evolution.CronSpec)
	assert.Equal(t, int64(42), cfg.Evolution.SampleSeed)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Evolution.UpdateDays = 7
	cfg.Evolution.MaxWorkers = 16
	applyDefaults(cfg)

	assert.Equal(t, 7, cfg.Evolution.UpdateDays)
	assert.Equal(t, 16, cfg.Evolution.MaxWorkers)
}

func TestLoadAutoPushDefaultsOn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telegram:\n  chat_id: 1\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Telegram.AutoPush)
}

func TestLoadAutoPushExplicitlyDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("telegram:\n  auto_push: false\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Telegram.AutoPush)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TUSHARE_TOKEN", "tok-123")
	t.Setenv("PERMANENT_DB_PATH", "/data/quant.db")
	t.Setenv("UPDATE_DAYS", "12")
	t.Setenv("AUTO_PUSH", "1")

	cfg := &Config{}
	applyEnv(cfg)

	assert.Equal(t, "tok-123", cfg.Tushare.Token)
	assert.Equal(t, "/data/quant.db", cfg.Database.Path)
	assert.Equal(t, 12, cfg.Evolution.UpdateDays)
	assert.True(t, cfg.Telegram.AutoPush)
}

func TestApplyEnvIgnoresInvalidUpdateDays(t *testing.T) {
	t.Setenv("UPDATE_DAYS", "not-a-number")
	cfg := &Config{}
	applyEnv(cfg)
	assert.Zero(t, cfg.Evolution.UpdateDays)
}
