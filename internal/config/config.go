// Package config provides configuration management for the Koinonia desktop agent.
//
// The configuration is loaded from a JSON file (default: <data dir>/config.json)
// and contains settings for all agent components: the remote server endpoint,
// local secure storage, the realtime channel, notifications, window state,
// the localhost debug API, and logging.
//
// Configuration Structure:
//   - App: application identity (name, version, data directory), which is
//     also the key material for the secure store
//   - Server: remote service base URL and HTTP timeout
//   - Storage: secure store path
//   - Realtime: reconnect delay and handshake timeout
//   - Notifications: enable flag and display body limit
//   - Window: geometry state file and default size
//   - DebugAPI: localhost status API (disabled by default)
//   - Logging: log level and file path
//
// LoadConfig reads and parses the configuration file, fills defaults for
// optional fields, and validates required ones. A missing config file is not
// an error: the defaults describe a working installation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App           AppConfig          `json:"app"`
	Server        ServerConfig       `json:"server"`
	Storage       StorageConfig      `json:"storage"`
	Realtime      RealtimeConfig     `json:"realtime"`
	Notifications NotificationConfig `json:"notifications"`
	Window        WindowConfig       `json:"window"`
	DebugAPI      DebugAPIConfig     `json:"debug_api"`
	Logging       LoggingConfig      `json:"logging"`
}

// AppConfig identifies this installation. DataDir, Version and Name together
// form the key material for the secure local store, so changing any of them
// invalidates previously encrypted state.
type AppConfig struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	DataDir string `json:"data_dir"`
}

// ServerConfig contains remote service settings
type ServerConfig struct {
	URL                string `json:"url"`
	HTTPTimeoutSeconds int    `json:"http_timeout_seconds"`
}

// StorageConfig contains secure store settings
type StorageConfig struct {
	Path string `json:"path"`
}

// RealtimeConfig contains realtime channel settings
type RealtimeConfig struct {
	ReconnectDelaySeconds   int `json:"reconnect_delay_seconds"`
	HandshakeTimeoutSeconds int `json:"handshake_timeout_seconds"`
}

// NotificationConfig contains desktop notification settings
type NotificationConfig struct {
	Enabled   bool `json:"enabled"`
	BodyLimit int  `json:"body_limit"`
}

// WindowConfig contains window geometry persistence settings
type WindowConfig struct {
	StateFile     string `json:"state_file"`
	DefaultWidth  int    `json:"default_width"`
	DefaultHeight int    `json:"default_height"`
}

// DebugAPIConfig contains the localhost status API settings
type DebugAPIConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

// DefaultDataDir returns the per-user private data directory for the agent.
func DefaultDataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "koinonia-desktop")
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		App: AppConfig{
			Name:    "koinonia-desktop",
			Version: "2.0.0",
			DataDir: dataDir,
		},
		Server: ServerConfig{
			URL:                "https://koinonia.evertran.com",
			HTTPTimeoutSeconds: 10,
		},
		Storage: StorageConfig{
			Path: filepath.Join(dataDir, "store"),
		},
		Realtime: RealtimeConfig{
			ReconnectDelaySeconds:   1,
			HandshakeTimeoutSeconds: 30,
		},
		Notifications: NotificationConfig{
			Enabled:   true,
			BodyLimit: 50,
		},
		Window: WindowConfig{
			StateFile:     filepath.Join(dataDir, "window_state.json"),
			DefaultWidth:  412,
			DefaultHeight: 850,
		},
		DebugAPI: DebugAPIConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    7391,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(dataDir, "logs", "app.log"),
		},
	}
}

// LoadConfig reads the configuration file at path, applies defaults for any
// missing fields, and validates the result. A nonexistent file yields the
// default configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills zero-valued optional fields after unmarshalling
func applyDefaults(cfg *Config) {
	def := DefaultConfig()

	if cfg.App.Name == "" {
		cfg.App.Name = def.App.Name
	}
	if cfg.App.Version == "" {
		cfg.App.Version = def.App.Version
	}
	if cfg.App.DataDir == "" {
		cfg.App.DataDir = def.App.DataDir
	}
	if cfg.Server.HTTPTimeoutSeconds <= 0 {
		cfg.Server.HTTPTimeoutSeconds = def.Server.HTTPTimeoutSeconds
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(cfg.App.DataDir, "store")
	}
	if cfg.Realtime.ReconnectDelaySeconds <= 0 {
		cfg.Realtime.ReconnectDelaySeconds = def.Realtime.ReconnectDelaySeconds
	}
	if cfg.Realtime.HandshakeTimeoutSeconds <= 0 {
		cfg.Realtime.HandshakeTimeoutSeconds = def.Realtime.HandshakeTimeoutSeconds
	}
	if cfg.Notifications.BodyLimit <= 0 {
		cfg.Notifications.BodyLimit = def.Notifications.BodyLimit
	}
	if cfg.Window.StateFile == "" {
		cfg.Window.StateFile = filepath.Join(cfg.App.DataDir, "window_state.json")
	}
	if cfg.Window.DefaultWidth <= 0 {
		cfg.Window.DefaultWidth = def.Window.DefaultWidth
	}
	if cfg.Window.DefaultHeight <= 0 {
		cfg.Window.DefaultHeight = def.Window.DefaultHeight
	}
	if cfg.DebugAPI.Host == "" {
		cfg.DebugAPI.Host = def.DebugAPI.Host
	}
	if cfg.DebugAPI.Port <= 0 {
		cfg.DebugAPI.Port = def.DebugAPI.Port
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.App.DataDir, "logs", "app.log")
	}
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	if !strings.HasPrefix(c.Server.URL, "http://") && !strings.HasPrefix(c.Server.URL, "https://") {
		return fmt.Errorf("server.url must be an http(s) URL, got %q", c.Server.URL)
	}
	if c.App.DataDir == "" {
		return fmt.Errorf("app.data_dir is required")
	}
	if c.DebugAPI.Enabled && c.DebugAPI.Host != "127.0.0.1" && c.DebugAPI.Host != "localhost" {
		return fmt.Errorf("debug_api.host must be a loopback address, got %q", c.DebugAPI.Host)
	}
	return nil
}

// HTTPTimeout returns the configured HTTP timeout as a duration
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.Server.HTTPTimeoutSeconds) * time.Second
}

// ReconnectDelay returns the configured realtime reconnect delay as a duration
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Realtime.ReconnectDelaySeconds) * time.Second
}

// HandshakeTimeout returns the configured realtime handshake timeout as a duration
func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Realtime.HandshakeTimeoutSeconds) * time.Second
}
