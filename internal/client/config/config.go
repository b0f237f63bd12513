// Package config handles configuration for the client component,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the CardBox client.
//
// Fields:
//   - ServerURL: base URL of the remote CardBox API.
//   - DatabasePath: path of the local SQLite replica file.
//   - SyncInterval: period of the automatic full-sync ticker.
//   - OnlineCheckInterval: how often the client probes server reachability.
type Config struct {
	ServerURL           string
	DatabasePath        string
	SyncInterval        time.Duration
	OnlineCheckInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DatabasePath = "cardbox.db"
	c.SyncInterval = 30 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
