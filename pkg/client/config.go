package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/butembo/butembochat/pkg/logging"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g.
// BUTEMBO_CONNECTION_DEFAULT_SERVER.
const EnvPrefix = "BUTEMBO"

// TOMLConfig represents the structure of the client config file
type TOMLConfig struct {
	Connection ConnectionSection `toml:"connection" mapstructure:"connection"`
	Local      LocalSection      `toml:"local" mapstructure:"local"`
	Logging    LoggingSection    `toml:"logging" mapstructure:"logging"`
	Metrics    MetricsSection    `toml:"metrics" mapstructure:"metrics"`
}

type ConnectionSection struct {
	DefaultServer         string `toml:"default_server" mapstructure:"default_server"`
	ConnectTimeoutSeconds int    `toml:"connect_timeout_seconds" mapstructure:"connect_timeout_seconds"`
	SendQueueSize         int    `toml:"send_queue_size" mapstructure:"send_queue_size"`
}

type LocalSection struct {
	StateDB         string `toml:"state_db" mapstructure:"state_db"`
	LastNickname    string `toml:"last_nickname" mapstructure:"last_nickname"`
	AutoSetNickname bool   `toml:"auto_set_nickname" mapstructure:"auto_set_nickname"`
	RejoinChannels  bool   `toml:"rejoin_channels" mapstructure:"rejoin_channels"`
}

type LoggingSection struct {
	Level string `toml:"level" mapstructure:"level"`
}

type MetricsSection struct {
	ListenAddr string `toml:"listen_addr" mapstructure:"listen_addr"` // empty disables the endpoint
}

// ConfigError represents a structured configuration error
type ConfigError struct {
	Path       string
	Message    string
	LineNumber int // 0 if not a parse error
}

func (e *ConfigError) Error() string {
	if e.LineNumber > 0 {
		return fmt.Sprintf("%s (line %d)", e.Message, e.LineNumber)
	}
	return e.Message
}

// getXDGConfigHome returns the XDG config directory
func getXDGConfigHome() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config")
}

// getXDGDataHome returns the XDG data directory
func getXDGDataHome() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return xdg
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".local", "share")
}

// DefaultConfigPath returns the XDG location of the client config file
func DefaultConfigPath() string {
	return filepath.Join(getXDGConfigHome(), "butembochat", "config.toml")
}

// DefaultTOMLConfig returns the default TOML configuration
func DefaultTOMLConfig() TOMLConfig {
	// Use XDG paths by default
	stateDB := filepath.Join(getXDGDataHome(), "butembochat", "state.db")

	return TOMLConfig{
		Connection: ConnectionSection{
			DefaultServer:         "localhost:10000",
			ConnectTimeoutSeconds: int(DefaultConnectTimeout / time.Second),
			SendQueueSize:         DefaultSendQueueSize,
		},
		Local: LocalSection{
			StateDB:         stateDB,
			LastNickname:    "",
			AutoSetNickname: true,
			RejoinChannels:  true,
		},
		Logging: LoggingSection{
			Level: "info",
		},
	}
}

// LoadClientConfig loads configuration from a TOML file, creates default if
// not found. Environment variables prefixed with EnvPrefix override file
// values.
func LoadClientConfig(path string) (TOMLConfig, error) {
	path, err := expandHome(path)
	if err != nil {
		return TOMLConfig{}, err
	}

	defaults := DefaultTOMLConfig()
	v := newViper(defaults)

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// If we can't write, just run with defaults
		// (might be a permissions issue, but we can still run)
		_ = writeDefaultConfig(path, defaults)
	} else {
		// Parse once with toml for positioned syntax errors
		var parsed TOMLConfig
		if _, err := toml.DecodeFile(path, &parsed); err != nil {
			return TOMLConfig{}, &ConfigError{
				Path:       path,
				Message:    cleanErrorMessage(err.Error()),
				LineNumber: parseErrorLine(err),
			}
		}

		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return TOMLConfig{}, &ConfigError{Path: path, Message: err.Error()}
		}
	}

	var config TOMLConfig
	if err := v.Unmarshal(&config); err != nil {
		return TOMLConfig{}, &ConfigError{Path: path, Message: fmt.Sprintf("unmarshal config: %v", err)}
	}

	// Validate config values
	if err := validateConfig(&config); err != nil {
		return TOMLConfig{}, &ConfigError{
			Path:       path,
			Message:    err.Error(),
			LineNumber: 0,
		}
	}

	return config, nil
}

// newViper registers every key with its default so env overrides apply
// even when the file omits the key.
func newViper(defaults TOMLConfig) *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")

	v.SetDefault("connection.default_server", defaults.Connection.DefaultServer)
	v.SetDefault("connection.connect_timeout_seconds", defaults.Connection.ConnectTimeoutSeconds)
	v.SetDefault("connection.send_queue_size", defaults.Connection.SendQueueSize)
	v.SetDefault("local.state_db", defaults.Local.StateDB)
	v.SetDefault("local.last_nickname", defaults.Local.LastNickname)
	v.SetDefault("local.auto_set_nickname", defaults.Local.AutoSetNickname)
	v.SetDefault("local.rejoin_channels", defaults.Local.RejoinChannels)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("metrics.listen_addr", defaults.Metrics.ListenAddr)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// parseErrorLine extracts a line number from a TOML parse error
func parseErrorLine(err error) int {
	var perr toml.ParseError
	if errors.As(err, &perr) && perr.Position.Line > 0 {
		return perr.Position.Line
	}
	return extractLineNumber(err.Error())
}

// extractLineNumber tries to extract a line number from a TOML parse error
func extractLineNumber(errMsg string) int {
	// TOML errors typically format like "line 12: ..." or "at line 12"
	re := regexp.MustCompile(`line (\d+)`)
	matches := re.FindStringSubmatch(errMsg)
	if len(matches) > 1 {
		if num, err := strconv.Atoi(matches[1]); err == nil {
			return num
		}
	}
	return 0
}

// cleanErrorMessage removes redundant parts from error messages
func cleanErrorMessage(errMsg string) string {
	// Remove "toml: " prefix if present
	errMsg = strings.TrimPrefix(errMsg, "toml: ")
	return errMsg
}

// validateConfig validates configuration values
func validateConfig(config *TOMLConfig) error {
	var errors []string

	if config.Connection.ConnectTimeoutSeconds < 1 {
		errors = append(errors, fmt.Sprintf("Invalid connect timeout: %d (must be at least 1 second)", config.Connection.ConnectTimeoutSeconds))
	}

	if config.Connection.SendQueueSize < 1 {
		errors = append(errors, fmt.Sprintf("Invalid send queue size: %d (must be at least 1)", config.Connection.SendQueueSize))
	}

	if !logging.ValidLevel(config.Logging.Level) {
		errors = append(errors, fmt.Sprintf("Invalid log level: %q (must be trace, debug, info, warn, error or off)", config.Logging.Level))
	}

	// Validate state database path is not empty
	if strings.TrimSpace(config.Local.StateDB) == "" {
		errors = append(errors, "State database path cannot be empty")
	}

	if len(errors) > 0 {
		return fmt.Errorf("Configuration validation failed:\n  • %s", strings.Join(errors, "\n  • "))
	}

	return nil
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
	header := `# ButemboChat Client Configuration
# This file was auto-generated with default values
# Edit as needed - changes take effect on next client start
# Any key can be overridden with BUTEMBO_<SECTION>_<KEY>, e.g. BUTEMBO_LOGGING_LEVEL=debug

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

func expandHome(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}
	return path, nil
}

// GetStateDBPath returns the state database path with ~ expanded
func (c *TOMLConfig) GetStateDBPath() (string, error) {
	return expandHome(c.Local.StateDB)
}

// GetServerAddress returns the configured server address
func (c *TOMLConfig) GetServerAddress() string {
	return strings.TrimSpace(c.Connection.DefaultServer)
}

// ConnectTimeout returns the connect timeout as a duration
func (c *TOMLConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.Connection.ConnectTimeoutSeconds) * time.Second
}

// ResetConfigToDefault resets the config file to default values
// If backup is true, creates a backup with timestamp
func ResetConfigToDefault(path string, backup bool) error {
	path, err := expandHome(path)
	if err != nil {
		return err
	}

	// Create backup if requested
	if backup {
		backupPath := fmt.Sprintf("%s.backup-%s", path, time.Now().Format("2006-01-02"))
		if err := copyFile(path, backupPath); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
	}

	// Write default config
	config := DefaultTOMLConfig()
	if err := writeDefaultConfig(path, config); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	return nil
}

// copyFile copies a file from src to dst
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
