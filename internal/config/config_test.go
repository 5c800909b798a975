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
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Wholesale.MinInitialUnits)
	assert.Equal(t, 10, cfg.Wholesale.MinMaintenanceUnits)
	assert.False(t, cfg.Wholesale.RetailRollover)
	assert.False(t, cfg.Coupons.Strict)
	assert.Equal(t, 2*time.Second, cfg.Outbox.PollInterval)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grana3d.yaml")
	body := `
port: "9090"
wholesale:
  min_initial_units: 20
  min_maintenance_units: 15
coupons:
  strict: true
kafka:
  brokers: ["k1:9092"]
outbox:
  poll_interval: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("WHOLESALE_MIN_INITIAL_UNITS", "30")
	t.Setenv("KAFKA_BROKERS", "a:1, b:2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 30, cfg.Wholesale.MinInitialUnits)
	assert.Equal(t, 15, cfg.Wholesale.MinMaintenanceUnits)
	assert.True(t, cfg.Coupons.Strict)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Second, cfg.Outbox.PollInterval)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("WHOLESALE_MIN_MAINTENANCE_UNITS", "zero")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("WHOLESALE_MIN_MAINTENANCE_UNITS", "0")
	_, err = Load()
	require.Error(t, err)
}
