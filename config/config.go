// Package config loads the server and client runtime configuration.
// Defaults come from netconfig; a YAML file overrides them.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/oakgrove/scamper-mp/shared/netconfig"
	"gopkg.in/yaml.v3"
)

// ServerConfig is the game server's tunable surface.
type ServerConfig struct {
	Port        uint   `yaml:"port"`
	TickRate    int    `yaml:"tick_rate"`
	TerrainSeed int64  `yaml:"terrain_seed"`
	ServerName  string `yaml:"server_name"`

	// MasterURL, when set, registers this server with the directory
	// service and heartbeats it.
	MasterURL string `yaml:"master_url,omitempty"`
	MaxPlayers int   `yaml:"max_players"`
}

// ClientConfig is the demo client's tunable surface.
type ClientConfig struct {
	ServerAddress string `yaml:"server_address"`
	PlayerName    string `yaml:"player_name"`

	Reconcile ReconcileConfig `yaml:"reconcile"`
}

// ReconcileConfig exposes the dynamic threshold tunables. The defaults are
// a starting point; deployments calibrate against real latency
// distributions.
type ReconcileConfig struct {
	BaseThreshold   float64 `yaml:"base_threshold"`
	MinThreshold    float64 `yaml:"min_threshold"`
	MaxThreshold    float64 `yaml:"max_threshold"`
	MovingScale     float64 `yaml:"moving_scale"`
	StationaryScale float64 `yaml:"stationary_scale"`
	LargeGapScale   float64 `yaml:"large_gap_scale"`
	LargeGapDist    float64 `yaml:"large_gap_distance"`
	StationaryEps   float64 `yaml:"stationary_epsilon"`
}

func serverDefaults() ServerConfig {
	return ServerConfig{
		Port:        4000,
		TickRate:    netconfig.ServerTickRate,
		TerrainSeed: 1,
		ServerName:  "scamper",
		MaxPlayers:  64,
	}
}

func clientDefaults() ClientConfig {
	return ClientConfig{
		ServerAddress: "localhost:4000",
		PlayerName:    "squirrel",
		Reconcile: ReconcileConfig{
			BaseThreshold:   netconfig.ReconcileBaseThreshold,
			MinThreshold:    netconfig.ReconcileMinThreshold,
			MaxThreshold:    netconfig.ReconcileMaxThreshold,
			MovingScale:     netconfig.ReconcileMovingScale,
			StationaryScale: netconfig.ReconcileStationaryScale,
			LargeGapScale:   netconfig.ReconcileLargeGapScale,
			LargeGapDist:    netconfig.ReconcileLargeGapDistance,
			StationaryEps:   netconfig.StationaryEpsilon,
		},
	}
}

// LoadServer reads server config from path, or returns defaults when path
// is empty.
func LoadServer(path string) (ServerConfig, error) {
	cfg := serverDefaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("server config: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadClient reads client config from path, or returns defaults when path
// is empty.
func LoadClient(path string) (ClientConfig, error) {
	cfg := clientDefaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("client config: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *ServerConfig) normalize() {
	if c.TickRate <= 0 {
		c.TickRate = netconfig.ServerTickRate
	}
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = 64
	}
	if c.ServerName == "" {
		c.ServerName = "scamper"
	}
}

func (c *ServerConfig) validate() error {
	if c.Port == 0 {
		return fmt.Errorf("server config: port required")
	}
	if c.TickRate > 120 {
		return fmt.Errorf("server config: tick_rate %d unreasonable", c.TickRate)
	}
	return nil
}

func (c *ClientConfig) normalize() {
	d := clientDefaults()
	if c.ServerAddress == "" {
		c.ServerAddress = d.ServerAddress
	}
	if c.PlayerName == "" {
		c.PlayerName = d.PlayerName
	}
	r := &c.Reconcile
	if r.BaseThreshold <= 0 {
		*r = d.Reconcile
	}
	if r.StationaryEps <= 0 {
		r.StationaryEps = d.Reconcile.StationaryEps
	}
}

func (c *ClientConfig) validate() error {
	r := c.Reconcile
	if r.MinThreshold > r.MaxThreshold {
		return fmt.Errorf("client config: min_threshold above max_threshold")
	}
	return nil
}
