package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "KAFKA_BROKERS", "IDEMPOTENCY_TTL", "REDIS_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 24*time.Hour, cfg.Business.IdempotencyTTL)
	assert.True(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Database.InMemory())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", MemoryDatabaseURL)
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("COMPLETION_LOCK_TTL", "5s")
	t.Setenv("TRACE_SAMPLE_RATIO", "0.25")

	cfg := Load()
	assert.True(t, cfg.Database.InMemory())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Business.CompletionLockTTL)
	assert.Equal(t, 0.25, cfg.Observ.SampleRatio)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "two")
	t.Setenv("IDEMPOTENCY_TTL", "-1h")

	cfg := Load()
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 24*time.Hour, cfg.Business.IdempotencyTTL)
}
