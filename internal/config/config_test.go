package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "REDIS_ADDR", "RETENTION_DAYS", "STAGE_TIMEOUT", "VOICE_A", "VOICE_B", "PROGRESS_SYNC_INTERVAL", "TELEGRAM_BOT_POLLING"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
	assert.Equal(t, 30*24*time.Hour, cfg.Retention)
	assert.Equal(t, 5*time.Minute, cfg.StageTimeout)
	assert.Equal(t, "onyx", cfg.VoiceA)
	assert.Equal(t, "shimmer", cfg.VoiceB)
	assert.Equal(t, 30*time.Second, cfg.ProgressSyncInterval)
	assert.False(t, cfg.TelegramBotPolling)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RETENTION_DAYS", "7")
	t.Setenv("STAGE_TIMEOUT", "90s")
	t.Setenv("WORKER_CONCURRENCY", "not-a-number")
	t.Setenv("TELEGRAM_BOT_POLLING", "true")

	cfg := Load()

	assert.Equal(t, 7*24*time.Hour, cfg.Retention)
	assert.Equal(t, 90*time.Second, cfg.StageTimeout)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.True(t, cfg.TelegramBotPolling)
}
