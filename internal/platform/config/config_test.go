package config

// Justification for unit tests: every service component is wired from this
// package, so a silently wrong default or a mis-parsed environment variable
// breaks the whole deployment at startup. Defaults, overrides and the
// validation rules are pinned down here.

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Contains(t, cfg.Postgres.DSN, "postgres://")
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, int32(3), cfg.Kafka.Partitions)
	assert.Equal(t, int16(1), cfg.Kafka.Replication)
	assert.Equal(t, time.Hour, cfg.Reviewer.TokenTTL)
	assert.True(t, cfg.Reviewer.DeviceBinding)
	assert.Equal(t, 500*time.Millisecond, cfg.Audit.OutboxInterval)
	assert.Equal(t, 100, cfg.Audit.OutboxBatchSize)
	assert.Equal(t, 1.0, cfg.Audit.OpsSampleRate)
	assert.Equal(t, 8, cfg.Runs.MaxConcurrent)
	assert.Equal(t, 24*time.Hour, cfg.Runs.CheckpointTTL)
	assert.Empty(t, cfg.Search.URL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PROVENANCE_HTTP_ADDR", ":9090")
	t.Setenv("PROVENANCE_KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("PROVENANCE_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PROVENANCE_REVIEWER_TOKEN_TTL", "30m")
	t.Setenv("PROVENANCE_DEVICE_BINDING", "false")
	t.Setenv("PROVENANCE_OPS_SAMPLE_RATE", "0.25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, 30*time.Minute, cfg.Reviewer.TokenTTL)
	assert.False(t, cfg.Reviewer.DeviceBinding)
	assert.Equal(t, 0.25, cfg.Audit.OpsSampleRate)
}

func TestLoad_RejectsEmptyBrokerList(t *testing.T) {
	t.Setenv("PROVENANCE_KAFKA_BROKERS", " , ")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROVENANCE_KAFKA_BROKERS")
}

func TestLoad_RejectsOutOfRangeSampleRate(t *testing.T) {
	t.Setenv("PROVENANCE_OPS_SAMPLE_RATE", "1.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROVENANCE_OPS_SAMPLE_RATE")
}

func TestLoad_RejectsBootstrapCredentialsSetapart(t *testing.T) {
	t.Setenv("PROVENANCE_BOOTSTRAP_REVIEWER_EMAIL", "root@example.com")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bootstrap reviewer")
}

func TestLoad_RejectsZeroTokenTTL(t *testing.T) {
	t.Setenv("PROVENANCE_REVIEWER_TOKEN_TTL", "0s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROVENANCE_REVIEWER_TOKEN_TTL")
}
