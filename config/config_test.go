package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestServerDefaults(t *testing.T) {
	cfg, err := LoadServer("")
	require.NoError(t, err)
	assert.Equal(t, uint(4000), cfg.Port)
	assert.Equal(t, 20, cfg.TickRate)
	assert.Equal(t, "scamper", cfg.ServerName)
	assert.Equal(t, 64, cfg.MaxPlayers)
}

func TestServerOverrides(t *testing.T) {
	path := writeConfig(t, `
port: 5555
tick_rate: 30
server_name: oakhill
terrain_seed: 99
master_url: http://localhost:4100
`)
	cfg, err := LoadServer(path)
	require.NoError(t, err)
	assert.Equal(t, uint(5555), cfg.Port)
	assert.Equal(t, 30, cfg.TickRate)
	assert.Equal(t, "oakhill", cfg.ServerName)
	assert.Equal(t, int64(99), cfg.TerrainSeed)
	assert.Equal(t, "http://localhost:4100", cfg.MasterURL)
}

func TestServerRejectsAbsurdTickRate(t *testing.T) {
	path := writeConfig(t, "port: 4000\ntick_rate: 10000\n")
	_, err := LoadServer(path)
	assert.Error(t, err)
}

func TestServerMissingFile(t *testing.T) {
	_, err := LoadServer("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestClientDefaults(t *testing.T) {
	cfg, err := LoadClient("")
	require.NoError(t, err)
	assert.Equal(t, "localhost:4000", cfg.ServerAddress)
	assert.Equal(t, 0.01, cfg.Reconcile.BaseThreshold)
	assert.Equal(t, 0.005, cfg.Reconcile.MinThreshold)
	assert.Equal(t, 0.05, cfg.Reconcile.MaxThreshold)
}

func TestClientOverrides(t *testing.T) {
	path := writeConfig(t, `
server_address: play.example.com:4000
player_name: hazel
reconcile:
  base_threshold: 0.02
  min_threshold: 0.01
  max_threshold: 0.1
  moving_scale: 2.0
  stationary_scale: 0.5
  large_gap_scale: 2.0
  large_gap_distance: 0.5
`)
	cfg, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, "play.example.com:4000", cfg.ServerAddress)
	assert.Equal(t, 0.02, cfg.Reconcile.BaseThreshold)
	assert.Equal(t, 2.0, cfg.Reconcile.MovingScale)
	// Omitted stationary_epsilon falls back to the default.
	assert.Equal(t, 0.01, cfg.Reconcile.StationaryEps)
}

func TestClientStationaryEpsilonOverride(t *testing.T) {
	path := writeConfig(t, `
reconcile:
  base_threshold: 0.01
  min_threshold: 0.005
  max_threshold: 0.05
  stationary_epsilon: 0.2
`)
	cfg, err := LoadClient(path)
	require.NoError(t, err)
	assert.Equal(t, 0.2, cfg.Reconcile.StationaryEps)
}

func TestClientRejectsInvertedThresholds(t *testing.T) {
	path := writeConfig(t, `
reconcile:
  base_threshold: 0.01
  min_threshold: 0.5
  max_threshold: 0.1
`)
	_, err := LoadClient(path)
	assert.Error(t, err)
}
