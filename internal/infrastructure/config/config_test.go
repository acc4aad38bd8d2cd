package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "payments", cfg.Service)
	assert.Equal(t, 3000, cfg.HTTP.Port)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.MinBackoff)
	assert.Equal(t, "memory", cfg.Ledger.Store)
	assert.Equal(t, 100000, cfg.Ledger.DedupCapacity)
	assert.Equal(t, 10000, cfg.Audit.Capacity)
	assert.Equal(t, float64(10000), cfg.Audit.HighValueThreshold)
	assert.Equal(t, 0.95, cfg.Payments.SuccessRate)
	assert.Equal(t, 0.98, cfg.Notifications.SuccessRate)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service: ledger
log_level: debug
http:
  port: 8080
kafka:
  brokers:
    - kafka-1:9092
    - kafka-2:9092
ledger:
  store: badger
  badger_path: /tmp/ledger-test
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ledger", cfg.Service)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "badger", cfg.Ledger.Store)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("FINSTREAM_SERVICE", "audit")
	t.Setenv("FINSTREAM_HTTP_PORT", "3003")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "audit", cfg.Service)
	assert.Equal(t, 3003, cfg.HTTP.Port)
}

func TestLoadRejectsUnknownService(t *testing.T) {
	t.Setenv("FINSTREAM_SERVICE", "billing")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
}

func TestLoadRejectsUnknownLedgerStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service: ledger
ledger:
  store: dynamo
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}
