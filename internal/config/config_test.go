package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"DEBUG", "GSPAWN_HOST", "GSPAWN_PORT", "GSPAWN_BACKLOG", "GSPAWN_DELAY",
		"GSPAWN_MODE", "GSPAWN_DISCIPLINE", "GSPAWN_REAP", "GSPAWN_SWEEP_INTERVAL", "GSPAWN_MAX_WORKERS",
		"GSPAWN_MAX_OPEN_FILES", "GSPAWN_MAX_PROCS"} {
		t.Setenv(key, "")
	}
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8888", cfg.Addr())
	assert.Equal(t, 5, cfg.Backlog)
	assert.Equal(t, time.Duration(0), cfg.Delay)
	assert.Equal(t, ModeProcess, cfg.Mode)
	assert.Equal(t, "correct", cfg.Discipline)
	assert.Equal(t, "async", cfg.Reap)
	assert.Equal(t, time.Second, cfg.SweepInterval)
	assert.False(t, cfg.Debug)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DEBUG", "true")
	t.Setenv("GSPAWN_HOST", "127.0.0.1")
	t.Setenv("GSPAWN_PORT", "9999")
	t.Setenv("GSPAWN_BACKLOG", "64")
	t.Setenv("GSPAWN_DELAY", "5s")
	t.Setenv("GSPAWN_MODE", "goroutine")
	t.Setenv("GSPAWN_DISCIPLINE", "defective")
	t.Setenv("GSPAWN_REAP", "sweep")
	t.Setenv("GSPAWN_SWEEP_INTERVAL", "250ms")
	t.Setenv("GSPAWN_MAX_WORKERS", "400")
	t.Setenv("GSPAWN_MAX_OPEN_FILES", "256")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "127.0.0.1:9999", cfg.Addr())
	assert.Equal(t, 64, cfg.Backlog)
	assert.Equal(t, 5*time.Second, cfg.Delay)
	assert.Equal(t, ModeGoroutine, cfg.Mode)
	assert.Equal(t, "defective", cfg.Discipline)
	assert.Equal(t, "sweep", cfg.Reap)
	assert.Equal(t, 250*time.Millisecond, cfg.SweepInterval)
	assert.Equal(t, 400, cfg.MaxWorkers)
	assert.Equal(t, 256, cfg.MaxOpenFiles)
}

func TestLoadFromEnvInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"GSPAWN_PORT", "70000"},
		{"GSPAWN_BACKLOG", "-1"},
		{"GSPAWN_DELAY", "-1s"},
		{"GSPAWN_MODE", "thread"},
		{"GSPAWN_DISCIPLINE", "sloppy"},
		{"GSPAWN_REAP", "sometimes"},
		{"GSPAWN_MAX_WORKERS", "-3"},
		{"GSPAWN_MAX_OPEN_FILES", "-1"},
		{"GSPAWN_MAX_PROCS", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}
