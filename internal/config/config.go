package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Default locations inside the proxy container. These match the stock
// haproxy image layout.
const (
	DefaultConfigPath = "/usr/local/etc/haproxy/haproxy.cfg"
	DefaultPidPath    = "/var/run/haproxy.pid"
)

// Settings represents the main configuration structure
type Settings struct {
	Proxy   ProxySettings   `yaml:"proxy"`
	Admin   AdminSettings   `yaml:"admin"`
	Logging LoggingSettings `yaml:"logging"`
}

// ProxySettings contains everything the generator and the deployer need to
// know about the proxy tier. All values that used to be compiled-in literals
// live here so tests can override them.
type ProxySettings struct {
	// ExposedPort is the externally-listening frontend port.
	ExposedPort int `yaml:"exposed_port"`
	// InternalPort is the fixed port backend endpoints are addressed on.
	InternalPort int `yaml:"internal_port"`
	// CookieName is the affinity cookie inserted by the proxy.
	CookieName string `yaml:"cookie_name"`
	// Balance is the default balance algorithm token. It is forwarded
	// verbatim into the generated configuration; unsupported tokens are
	// rejected by haproxy at load time, not here.
	Balance      string `yaml:"balance"`
	Image        string `yaml:"image"`
	ConfigPath   string `yaml:"config_path"`
	PidPath      string `yaml:"pid_path"`
	TemplatePath string `yaml:"template_path"`
	// Network is the docker network shared by the proxy and its backends.
	Network string `yaml:"network"`
}

// AdminSettings contains admin API configuration
type AdminSettings struct {
	Enabled        bool    `yaml:"enabled"`
	Port           int     `yaml:"port"`
	RequestsPerSec float64 `yaml:"requests_per_sec"`
	BurstSize      int     `yaml:"burst_size"`
}

// LoggingSettings contains logging configuration
type LoggingSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	File   string `yaml:"file"`
}

// DefaultSettings returns a configuration with sensible defaults
func DefaultSettings() *Settings {
	return &Settings{
		Proxy: ProxySettings{
			ExposedPort:  80,
			InternalPort: 80,
			CookieName:   "SERVERID",
			Balance:      "roundrobin",
			Image:        "haproxy:1.7",
			ConfigPath:   DefaultConfigPath,
			PidPath:      DefaultPidPath,
			TemplatePath: "templates/haproxy.cfg.tmpl",
			Network:      "haproxy-gen",
		},
		Admin: AdminSettings{
			Enabled:        true,
			Port:           8080,
			RequestsPerSec: 10,
			BurstSize:      20,
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) (*Settings, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return settings, nil
}

// LoadFromEnv loads configuration from environment variables with defaults
func LoadFromEnv() *Settings {
	settings := DefaultSettings()

	if image := os.Getenv("HAPROXY_GEN_IMAGE"); image != "" {
		settings.Proxy.Image = image
	}

	if network := os.Getenv("HAPROXY_GEN_NETWORK"); network != "" {
		settings.Proxy.Network = network
	}

	if balance := os.Getenv("HAPROXY_GEN_BALANCE"); balance != "" {
		settings.Proxy.Balance = balance
	}

	if logLevel := os.Getenv("HAPROXY_GEN_LOG_LEVEL"); logLevel != "" {
		settings.Logging.Level = logLevel
	}

	return settings
}

// Validate validates the configuration for correctness
func (s *Settings) Validate() error {
	if s.Proxy.ExposedPort <= 0 || s.Proxy.ExposedPort > 65535 {
		return fmt.Errorf("invalid exposed_port: %d", s.Proxy.ExposedPort)
	}

	if s.Proxy.InternalPort <= 0 || s.Proxy.InternalPort > 65535 {
		return fmt.Errorf("invalid internal_port: %d", s.Proxy.InternalPort)
	}

	if s.Proxy.CookieName == "" {
		return fmt.Errorf("cookie_name cannot be empty")
	}

	if s.Proxy.Balance == "" {
		return fmt.Errorf("balance cannot be empty")
	}

	if s.Proxy.Image == "" {
		return fmt.Errorf("image cannot be empty")
	}

	if s.Proxy.ConfigPath == "" {
		return fmt.Errorf("config_path cannot be empty")
	}

	if s.Proxy.PidPath == "" {
		return fmt.Errorf("pid_path cannot be empty")
	}

	if s.Proxy.TemplatePath == "" {
		return fmt.Errorf("template_path cannot be empty")
	}

	if s.Admin.Enabled {
		if s.Admin.Port <= 0 || s.Admin.Port > 65535 {
			return fmt.Errorf("invalid admin port: %d", s.Admin.Port)
		}
		if s.Admin.RequestsPerSec <= 0 {
			return fmt.Errorf("admin requests_per_sec must be positive")
		}
		if s.Admin.BurstSize <= 0 {
			return fmt.Errorf("admin burst_size must be positive")
		}
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[s.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", s.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[s.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", s.Logging.Format)
	}

	validOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validOutputs[s.Logging.Output] {
		return fmt.Errorf("invalid log output: %s", s.Logging.Output)
	}

	return nil
}

// Command returns the proxy container command line, pointing haproxy at the
// fixed config and PID-file paths.
func (s *Settings) Command() []string {
	return []string{"haproxy", "-f", s.Proxy.ConfigPath, "-p", s.Proxy.PidPath}
}

// SaveToFile saves the configuration to a YAML file
func (s *Settings) SaveToFile(filename string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filename, err)
	}

	return nil
}
