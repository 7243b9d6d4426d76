package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "scheduler.db", cfg.DatabaseURL)
	assert.Equal(t, uint16(8080), cfg.ServerPort)
	assert.Equal(t, uint16(9091), cfg.MetricsPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.False(t, cfg.Production())

	assert.Equal(t, time.Hour, cfg.Scheduler.IdlePoll)
	assert.Equal(t, 100, cfg.Scheduler.WakeBuffer)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.WebhookTimeout)

	assert.Equal(t, 5*time.Second, cfg.DB.BusyTimeout)
	assert.Equal(t, 10, cfg.DB.MaxOpenConns)
	assert.Equal(t, 5, cfg.DB.MaxIdleConns)

	assert.Empty(t, cfg.Backup.Dir)
	assert.Equal(t, 24*time.Hour, cfg.Backup.Interval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite:///var/lib/scheduler/data.db")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("APP_ENV", "production")
	t.Setenv("SCHEDULER_IDLE_POLL", "5m")
	t.Setenv("SCHEDULER_WAKE_BUFFER", "16")
	t.Setenv("BACKUP_DIR", "/backups")
	t.Setenv("BACKUP_INTERVAL", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, uint16(9000), cfg.ServerPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Production())
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.IdlePoll)
	assert.Equal(t, 16, cfg.Scheduler.WakeBuffer)
	assert.Equal(t, "/backups", cfg.Backup.Dir)
	assert.Equal(t, time.Hour, cfg.Backup.Interval)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unparseable port", key: "SERVER_PORT", value: "not-a-port"},
		{name: "unknown log level", key: "LOG_LEVEL", value: "verbose"},
		{name: "port zero", key: "SERVER_PORT", value: "0"},
		{name: "hot-loop idle poll", key: "SCHEDULER_IDLE_POLL", value: "10ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestDatabasePath(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{url: "scheduler.db", want: "scheduler.db"},
		{url: "sqlite://scheduler.db", want: "scheduler.db"},
		{url: "sqlite:scheduler.db", want: "scheduler.db"},
		{url: "sqlite:///var/lib/data.db", want: "/var/lib/data.db"},
	}

	for _, tt := range tests {
		cfg := &Config{DatabaseURL: tt.url}
		assert.Equal(t, tt.want, cfg.DatabasePath())
	}
}
