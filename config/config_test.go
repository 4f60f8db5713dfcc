package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadEnv_Defaults(t *testing.T) {
	cfg := LoadEnv()

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 10, cfg.Inventory.DefaultReorderThreshold)
	assert.True(t, cfg.Inventory.AllowNegative)
	assert.Equal(t, "memory", cfg.Inventory.LockBackend)
	assert.Equal(t, "Sales_Master.csv", cfg.Loader.SalesFile)
	assert.False(t, cfg.Loader.Parallel)
	assert.Empty(t, cfg.Kafka.RestockTopic)
}

func TestLoadEnv_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("LOADER_PARALLEL", "true")
	t.Setenv("INVENTORY_ALLOW_NEGATIVE", "false")
	t.Setenv("INVENTORY_DEFAULT_REORDER_THRESHOLD", "25")
	t.Setenv("INVENTORY_LOCK_BACKEND", "redis")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")

	cfg := LoadEnv()

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/x.db", cfg.SQLite.Path)
	assert.True(t, cfg.Loader.Parallel)
	assert.False(t, cfg.Inventory.AllowNegative)
	assert.Equal(t, 25, cfg.Inventory.DefaultReorderThreshold)
	assert.Equal(t, "redis", cfg.Inventory.LockBackend)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestLoadEnv_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("INVENTORY_LOCK_RETRIES", "many")
	t.Setenv("LOGGER_DISABLE_CALLER", "sometimes")

	cfg := LoadEnv()

	assert.Equal(t, 3, cfg.Inventory.LockRetries)
	assert.False(t, cfg.Logger.DisableCaller)
}
