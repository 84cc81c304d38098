// Package config provides configuration loading and validation for the recon
// engine. Configuration is read from a YAML file layered over built-in
// defaults; every subsystem takes its tunables from here.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/logging"
)

// Config represents the complete engine configuration.
type Config struct {
	// Scanning configuration
	Scanning ScanningConfig `yaml:"scanning" json:"scanning"`

	// Deep-scan adapter configuration
	DeepScan DeepScanConfig `yaml:"deep_scan" json:"deep_scan"`

	// Risk scoring policy
	Risk RiskConfig `yaml:"risk" json:"risk"`

	// Topology layout configuration
	Topology TopologyConfig `yaml:"topology" json:"topology"`

	// API configuration
	API APIConfig `yaml:"api" json:"api"`

	// Logging configuration
	Logging logging.Config `yaml:"logging" json:"logging"`
}

// ScanningConfig holds quick-scan and probing settings.
type ScanningConfig struct {
	// Maximum concurrent connection attempts per scan
	ProbeConcurrency int `yaml:"probe_concurrency" json:"probe_concurrency"`

	// Per-port connect timeout for quick scans
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`

	// Read deadline when grabbing service banners
	BannerTimeout time.Duration `yaml:"banner_timeout" json:"banner_timeout"`

	// Maximum number of open ports to banner-grab per target
	BannerPortCap int `yaml:"banner_port_cap" json:"banner_port_cap"`

	// Maximum number of ports probed per quick scan
	PortCap int `yaml:"port_cap" json:"port_cap"`

	// Timeout for the target liveness check
	ValidateTimeout time.Duration `yaml:"validate_timeout" json:"validate_timeout"`

	// Overall quick-scan budget
	ScanTimeout time.Duration `yaml:"scan_timeout" json:"scan_timeout"`

	// Retry configuration for transient probe failures
	Retry RetryConfig `yaml:"retry" json:"retry"`
}

// RetryConfig holds retry settings for transient probe failures.
type RetryConfig struct {
	// Maximum number of attempts per port (first try included)
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`

	// Initial backoff delay; doubles on each subsequent attempt
	BaseDelay time.Duration `yaml:"base_delay" json:"base_delay"`
}

// DeepScanConfig holds defaults for the external probe utility.
type DeepScanConfig struct {
	// Path override for the probe utility binary ("" = search PATH)
	UtilityPath string `yaml:"utility_path" json:"utility_path"`

	// Default depth options applied when a request leaves them zero
	MaxHosts       int    `yaml:"max_hosts" json:"max_hosts"`
	MaxPorts       int    `yaml:"max_ports" json:"max_ports"`
	Intensity      string `yaml:"intensity" json:"intensity"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`

	ServiceDetection bool `yaml:"service_detection" json:"service_detection"`
	OSDetection      bool `yaml:"os_detection" json:"os_detection"`
	VulnScripts      bool `yaml:"vuln_scripts" json:"vuln_scripts"`
}

// RiskConfig holds the severity weights and bucket thresholds used to turn
// severity counts into a risk score. The defaults are policy, not a cited
// standard; tests pin them.
type RiskConfig struct {
	CriticalWeight float64 `yaml:"critical_weight" json:"critical_weight"`
	HighWeight     float64 `yaml:"high_weight" json:"high_weight"`
	MediumWeight   float64 `yaml:"medium_weight" json:"medium_weight"`
	LowWeight      float64 `yaml:"low_weight" json:"low_weight"`
	InfoWeight     float64 `yaml:"info_weight" json:"info_weight"`

	ModerateThreshold float64 `yaml:"moderate_threshold" json:"moderate_threshold"`
	HighThreshold     float64 `yaml:"high_threshold" json:"high_threshold"`
	VeryHighThreshold float64 `yaml:"very_high_threshold" json:"very_high_threshold"`
	CriticalThreshold float64 `yaml:"critical_threshold" json:"critical_threshold"`
}

// TopologyConfig holds force-directed layout parameters.
type TopologyConfig struct {
	// Number of relaxation iterations per layout pass
	Iterations int `yaml:"iterations" json:"iterations"`

	// Repulsion strength constant (inverse-square)
	Repulsion float64 `yaml:"repulsion" json:"repulsion"`

	// Attraction spring constant applied along edges
	Attraction float64 `yaml:"attraction" json:"attraction"`

	// Half-extent of the initial random placement cube
	Bounds float64 `yaml:"bounds" json:"bounds"`

	// Seed for initial placement (0 = time-based)
	Seed int64 `yaml:"seed" json:"seed"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	// Enable API server
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Listen address
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`

	// Listen port
	Port int `yaml:"port" json:"port"`

	// Request timeout
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// Maximum request size
	MaxRequestSize int64 `yaml:"max_request_size" json:"max_request_size"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Scanning: ScanningConfig{
			ProbeConcurrency: 50,
			ConnectTimeout:   200 * time.Millisecond,
			BannerTimeout:    2 * time.Second,
			BannerPortCap:    10,
			PortCap:          1000,
			ValidateTimeout:  3 * time.Second,
			ScanTimeout:      5 * time.Minute,
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   100 * time.Millisecond,
			},
		},
		DeepScan: DeepScanConfig{
			UtilityPath:      "",
			MaxHosts:         16,
			MaxPorts:         100,
			Intensity:        "normal",
			TimeoutSeconds:   300,
			ServiceDetection: true,
			OSDetection:      true,
			VulnScripts:      true,
		},
		Risk: RiskConfig{
			CriticalWeight:    10.0,
			HighWeight:        7.0,
			MediumWeight:      4.0,
			LowWeight:         1.0,
			InfoWeight:        0.1,
			ModerateThreshold: 5.0,
			HighThreshold:     20.0,
			VeryHighThreshold: 50.0,
			CriticalThreshold: 100.0,
		},
		Topology: TopologyConfig{
			Iterations: 100,
			Repulsion:  50.0,
			Attraction: 0.05,
			Bounds:     50.0,
			Seed:       0,
		},
		API: APIConfig{
			Enabled:        true,
			ListenAddr:     "127.0.0.1",
			Port:           8080,
			RequestTimeout: 30 * time.Second,
			MaxRequestSize: 1024 * 1024, // 1MB
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file, layered over defaults. A missing
// file is not an error.
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Scanning.ProbeConcurrency <= 0 {
		return fmt.Errorf("probe concurrency must be positive")
	}
	if c.Scanning.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}
	if c.Scanning.PortCap <= 0 {
		return fmt.Errorf("port cap must be positive")
	}
	if c.Scanning.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1")
	}
	if c.Scanning.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry base delay must be positive")
	}

	validIntensities := map[string]bool{
		"stealthy":   true,
		"normal":     true,
		"aggressive": true,
		"insane":     true,
	}
	if !validIntensities[c.DeepScan.Intensity] {
		return fmt.Errorf("invalid deep scan intensity: %s", c.DeepScan.Intensity)
	}
	if c.DeepScan.MaxPorts <= 0 {
		return fmt.Errorf("deep scan max ports must be positive")
	}
	if c.DeepScan.TimeoutSeconds <= 0 {
		return fmt.Errorf("deep scan timeout must be positive")
	}

	if c.Topology.Iterations <= 0 {
		return fmt.Errorf("topology iterations must be positive")
	}
	if c.Topology.Bounds <= 0 {
		return fmt.Errorf("topology bounds must be positive")
	}

	// Risk thresholds must be strictly increasing
	if !(c.Risk.ModerateThreshold < c.Risk.HighThreshold &&
		c.Risk.HighThreshold < c.Risk.VeryHighThreshold &&
		c.Risk.VeryHighThreshold < c.Risk.CriticalThreshold) {
		return fmt.Errorf("risk thresholds must be strictly increasing")
	}

	if c.API.Enabled {
		if c.API.Port <= 0 || c.API.Port > 65535 {
			return fmt.Errorf("API port must be between 1 and 65535")
		}
		if c.API.ListenAddr == "" {
			return fmt.Errorf("API listen address is required when API is enabled")
		}
	}

	validLogLevels := map[logging.LogLevel]bool{
		logging.LevelDebug: true,
		logging.LevelInfo:  true,
		logging.LevelWarn:  true,
		logging.LevelError: true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[logging.LogFormat]bool{
		logging.FormatText: true,
		logging.FormatJSON: true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// GetAPIAddress returns the full API address.
func (c *Config) GetAPIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.ListenAddr, c.API.Port)
}

// IsAPIEnabled returns true if the API server is enabled.
func (c *Config) IsAPIEnabled() bool {
	return c.API.Enabled
}
