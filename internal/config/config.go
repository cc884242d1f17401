// Package config provides configuration parsing and validation for rawicmp.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete tool configuration.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Sniff  SniffConfig  `yaml:"sniff"`
	Ping   PingConfig   `yaml:"ping"`
	Health HealthConfig `yaml:"health"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SniffConfig defines receive loop settings.
type SniffConfig struct {
	BufferSize        int           `yaml:"buffer_size"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	TruncateThreshold int           `yaml:"truncate_threshold"`
	VerifyChecksums   bool          `yaml:"verify_checksums"`
	Color             string        `yaml:"color"`
	PcapOut           string        `yaml:"pcap_out"`
	ErrorLogInterval  time.Duration `yaml:"error_log_interval"`
}

// PingConfig defines send path settings.
type PingConfig struct {
	Source       string   `yaml:"source"`
	Identifier   uint16   `yaml:"identifier"` // 0 picks a random identifier
	Sequence     uint16   `yaml:"sequence"`
	PayloadSize  int      `yaml:"payload_size"`
	Unprivileged bool     `yaml:"unprivileged"`
	AllowedCIDRs []string `yaml:"allowed_cidrs"`
}

// HealthConfig defines health check server settings.
type HealthConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Color modes for SniffConfig.Color.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// maxPayloadSize is the largest echo payload that fits a 65535-byte datagram.
const maxPayloadSize = 65535 - 20 - 8

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Sniff: SniffConfig{
			BufferSize:        8192,
			ReadTimeout:       time.Second,
			TruncateThreshold: 84,
			VerifyChecksums:   true,
			Color:             ColorAuto,
			ErrorLogInterval:  time.Second,
		},
		Ping: PingConfig{
			Source:       "0.0.0.0",
			PayloadSize:  12,
			AllowedCIDRs: []string{},
		},
		Health: HealthConfig{
			Enabled:      false,
			Address:      ":9102",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// LoadOrDefault loads path, or returns defaults when path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envVarRegex matches ${VAR} or $VAR patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		// ${VAR:-default}
		if varName, defaultVal, ok := strings.Cut(name, ":-"); ok {
			if val, ok := os.LookupEnv(varName); ok {
				return val
			}
			return defaultVal
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match // Keep original if not found
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if !isValidLogLevel(c.Log.Level) {
		errs = append(errs, fmt.Sprintf("invalid log.level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}
	if !isValidLogFormat(c.Log.Format) {
		errs = append(errs, fmt.Sprintf("invalid log.format: %s (must be text or json)", c.Log.Format))
	}

	// Sniff
	if c.Sniff.BufferSize < 28 || c.Sniff.BufferSize > 65535 {
		errs = append(errs, "sniff.buffer_size must be between 28 and 65535")
	}
	if c.Sniff.ReadTimeout < 0 {
		errs = append(errs, "sniff.read_timeout must not be negative")
	}
	if !isValidColor(c.Sniff.Color) {
		errs = append(errs, fmt.Sprintf("invalid sniff.color: %s (must be auto, always, or never)", c.Sniff.Color))
	}
	if c.Sniff.ErrorLogInterval < 0 {
		errs = append(errs, "sniff.error_log_interval must not be negative")
	}

	// Ping
	if c.Ping.Source != "" && !isValidIPv4(c.Ping.Source) {
		errs = append(errs, fmt.Sprintf("ping.source: invalid IPv4 address: %s", c.Ping.Source))
	}
	if c.Ping.PayloadSize < 0 || c.Ping.PayloadSize > maxPayloadSize {
		errs = append(errs, fmt.Sprintf("ping.payload_size must be between 0 and %d", maxPayloadSize))
	}
	for i, cidr := range c.Ping.AllowedCIDRs {
		if !isValidCIDR(cidr) {
			errs = append(errs, fmt.Sprintf("ping.allowed_cidrs[%d]: invalid CIDR: %s", i, cidr))
		}
	}

	// Health
	if c.Health.Enabled && c.Health.Address == "" {
		errs = append(errs, "health.address is required when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch format {
	case "text", "json":
		return true
	default:
		return false
	}
}

func isValidColor(mode string) bool {
	switch mode {
	case ColorAuto, ColorAlways, ColorNever:
		return true
	default:
		return false
	}
}

func isValidIPv4(s string) bool {
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Unmap().Is4()
}

func isValidCIDR(cidr string) bool {
	p, err := netip.ParsePrefix(cidr)
	return err == nil && p.Addr().Is4()
}

// String returns the config as YAML (for debugging).
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
