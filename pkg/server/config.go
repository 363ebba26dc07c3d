package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	ListenAddr        string
	WebSocketPath     string
	MetricsPath       string // empty disables /metrics
	DefaultNickname   string
	MaxMessageLength  int
	MaxNicknameLength int
	SendQueueSize     int
	SeedChannels      []string
}

// DefaultConfig returns default server configuration
func DefaultConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:        ":10000",
		WebSocketPath:     "/ws",
		MetricsPath:       "/metrics",
		DefaultNickname:   "new-user",
		MaxMessageLength:  4096, // bytes
		MaxNicknameLength: 20,
		SendQueueSize:     256,
		SeedChannels:      []string{"general", "tech", "random"},
	}
}

// TOMLConfig represents the structure of the server config file
type TOMLConfig struct {
	Server   ServerSection   `toml:"server"`
	Limits   LimitsSection   `toml:"limits"`
	Channels ChannelsSection `toml:"channels"`
	Logging  LoggingSection  `toml:"logging"`
}

type ServerSection struct {
	ListenAddr      string `toml:"listen_addr"`
	WebSocketPath   string `toml:"websocket_path"`
	MetricsPath     string `toml:"metrics_path"`
	DefaultNickname string `toml:"default_nickname"`
}

type LimitsSection struct {
	MaxMessageLength  int `toml:"max_message_length"`
	MaxNicknameLength int `toml:"max_nickname_length"`
	SendQueueSize     int `toml:"send_queue_size"`
}

type ChannelsSection struct {
	SeedChannels []string `toml:"seed_channels"`
}

type LoggingSection struct {
	Level string `toml:"level"`
}

// DefaultTOMLConfig returns the default TOML configuration
func DefaultTOMLConfig() TOMLConfig {
	d := DefaultConfig()
	return TOMLConfig{
		Server: ServerSection{
			ListenAddr:      d.ListenAddr,
			WebSocketPath:   d.WebSocketPath,
			MetricsPath:     d.MetricsPath,
			DefaultNickname: d.DefaultNickname,
		},
		Limits: LimitsSection{
			MaxMessageLength:  d.MaxMessageLength,
			MaxNicknameLength: d.MaxNicknameLength,
			SendQueueSize:     d.SendQueueSize,
		},
		Channels: ChannelsSection{
			SeedChannels: d.SeedChannels,
		},
		Logging: LoggingSection{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a TOML file, creates default if not found
func LoadConfig(path string) (TOMLConfig, error) {
	// Expand ~ in path
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return TOMLConfig{}, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// File doesn't exist, create default config
		config := DefaultTOMLConfig()
		if err := writeDefaultConfig(path, config); err != nil {
			// If we can't write, just return defaults without error
			// (might be a permissions issue, but we can still run)
			return config, nil
		}
		return config, nil
	}

	// Load from file
	var config TOMLConfig
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return TOMLConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// writeDefaultConfig writes the default config to a file
func writeDefaultConfig(path string, config TOMLConfig) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create file
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	// Write header comment
	header := `# ButemboChat Server Configuration
# This file was auto-generated with default values
# Edit as needed and restart the server for changes to take effect

`
	if _, err := f.WriteString(header); err != nil {
		return err
	}

	// Encode config as TOML
	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// ToServerConfig converts TOMLConfig to ServerConfig. Zero values fall back
// to the defaults.
func (c *TOMLConfig) ToServerConfig() ServerConfig {
	cfg := DefaultConfig()

	if strings.TrimSpace(c.Server.ListenAddr) != "" {
		cfg.ListenAddr = c.Server.ListenAddr
	}

	if strings.TrimSpace(c.Server.WebSocketPath) != "" {
		cfg.WebSocketPath = c.Server.WebSocketPath
	}

	// An explicitly empty metrics path disables the endpoint, so it is
	// copied as is
	cfg.MetricsPath = c.Server.MetricsPath

	if strings.TrimSpace(c.Server.DefaultNickname) != "" {
		cfg.DefaultNickname = c.Server.DefaultNickname
	}

	if c.Limits.MaxMessageLength > 0 {
		cfg.MaxMessageLength = c.Limits.MaxMessageLength
	}

	if c.Limits.MaxNicknameLength > 0 {
		cfg.MaxNicknameLength = c.Limits.MaxNicknameLength
	}

	if c.Limits.SendQueueSize > 0 {
		cfg.SendQueueSize = c.Limits.SendQueueSize
	}

	if c.Channels.SeedChannels != nil {
		cfg.SeedChannels = c.Channels.SeedChannels
	}

	return cfg
}
