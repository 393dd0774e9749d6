package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "REDIS_ADDR", "KAFKA_BROKERS", "STORE_DRIVER", "TX_MAX_RETRIES", "MIGRATE", "PAYMENTS_WORKERS", "OTEL_ENDPOINT"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, uint64(3), cfg.TxMaxRetries)
	assert.Equal(t, 4, cfg.PaymentsWorkers)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Empty(t, cfg.RedisAddr)
	assert.False(t, cfg.Migrate)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("TX_MAX_RETRIES", "5")
	t.Setenv("PAYMENTS_WORKERS", "oops")
	t.Setenv("MIGRATE", "true")

	cfg := Load()
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, uint64(5), cfg.TxMaxRetries)
	assert.Equal(t, 4, cfg.PaymentsWorkers)
	assert.True(t, cfg.Migrate)
}
