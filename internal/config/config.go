// Package config loads the optional JSON config file for the tslumd command.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/tslumd"
	"github.com/banshee-data/tslumd/internal/serialport"
)

// Defaults applied by the Get* accessors.
const (
	DefaultBind        = "0.0.0.0"
	DefaultPort        = 1234
	DefaultRcvBuf      = 1 << 20
	DefaultLogInterval = time.Minute
)

// Config is the root of the config file. Every field is optional; the Get*
// methods supply defaults for anything left out, so partial files are safe.
type Config struct {
	Bind        *string `json:"bind,omitempty"`
	Port        *int    `json:"port,omitempty"`
	Version     *string `json:"version,omitempty"`
	RcvBuf      *int    `json:"rcv_buf,omitempty"`
	LogInterval *string `json:"log_interval,omitempty"` // duration string like "30s"

	// Forward is a host:port that valid packets are relayed to.
	Forward     *string `json:"forward,omitempty"`
	DBPath      *string `json:"db_path,omitempty"`
	DebugListen *string `json:"debug_listen,omitempty"`

	Serial *serialport.PortOptions `json:"serial,omitempty"`
}

// Load reads a Config from a JSON file.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	if c.Port != nil && (*c.Port < 1 || *c.Port > 65535) {
		return fmt.Errorf("port must be between 1 and 65535, got %d", *c.Port)
	}
	if c.Bind != nil && *c.Bind != "" && net.ParseIP(*c.Bind) == nil {
		return fmt.Errorf("bind must be an IP address, got %q", *c.Bind)
	}
	if c.Version != nil {
		if _, err := tslumd.ParseVersion(*c.Version); err != nil {
			return err
		}
	}
	if c.RcvBuf != nil && *c.RcvBuf < 0 {
		return fmt.Errorf("rcv_buf must be non-negative, got %d", *c.RcvBuf)
	}
	if c.LogInterval != nil && *c.LogInterval != "" {
		d, err := time.ParseDuration(*c.LogInterval)
		if err != nil {
			return fmt.Errorf("invalid log_interval '%s': %w", *c.LogInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("log_interval must be positive, got %s", d)
		}
	}
	if c.Forward != nil && *c.Forward != "" {
		if _, _, err := net.SplitHostPort(*c.Forward); err != nil {
			return fmt.Errorf("invalid forward address '%s': %w", *c.Forward, err)
		}
	}
	if c.Serial != nil {
		if _, err := c.Serial.Normalise(); err != nil {
			return fmt.Errorf("invalid serial options: %w", err)
		}
	}
	return nil
}

// GetBind returns the listen IP or the default.
func (c *Config) GetBind() string {
	if c.Bind == nil || *c.Bind == "" {
		return DefaultBind
	}
	return *c.Bind
}

// GetPort returns the UDP port or the default.
func (c *Config) GetPort() int {
	if c.Port == nil {
		return DefaultPort
	}
	return *c.Port
}

// GetVersion returns the protocol version or v3.1.
func (c *Config) GetVersion() tslumd.Version {
	if c.Version == nil {
		return tslumd.V31
	}
	v, err := tslumd.ParseVersion(*c.Version)
	if err != nil {
		return tslumd.V31
	}
	return v
}

// GetRcvBuf returns the socket receive buffer size or the default.
func (c *Config) GetRcvBuf() int {
	if c.RcvBuf == nil {
		return DefaultRcvBuf
	}
	return *c.RcvBuf
}

// GetLogInterval parses and returns LogInterval as a time.Duration.
func (c *Config) GetLogInterval() time.Duration {
	if c.LogInterval == nil || *c.LogInterval == "" {
		return DefaultLogInterval
	}
	d, err := time.ParseDuration(*c.LogInterval)
	if err != nil || d <= 0 {
		return DefaultLogInterval
	}
	return d
}

// GetForward returns the forward address, empty when forwarding is off.
func (c *Config) GetForward() string {
	if c.Forward == nil {
		return ""
	}
	return *c.Forward
}

// GetDBPath returns the packet log path, empty when logging is off.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// GetDebugListen returns the debug HTTP address, empty when disabled.
func (c *Config) GetDebugListen() string {
	if c.DebugListen == nil {
		return ""
	}
	return *c.DebugListen
}

// GetSerial returns the serial options with defaults applied.
func (c *Config) GetSerial() serialport.PortOptions {
	var opts serialport.PortOptions
	if c.Serial != nil {
		opts = *c.Serial
	}
	normalised, err := opts.Normalise()
	if err != nil {
		normalised, _ = serialport.PortOptions{}.Normalise()
	}
	return normalised
}
