// Package config is the gateway's YAML configuration schema: a listener
// address, the admin surface, logging, and a registry bootstrap section
// seeding services/instances/rules at startup.
package config

// Config is the complete gateway configuration.
type Config struct {
	Listen   string         `yaml:"listen"`
	Admin    AdminConfig    `yaml:"admin"`
	Logging  LoggingConfig  `yaml:"logging"`
	Registry RegistryConfig `yaml:"registry"`
}

// AdminConfig configures the admin HTTP surface (spec.md §6).
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig mirrors internal/logging.Config's YAML shape.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Output     string `yaml:"output"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
	LocalTime  bool   `yaml:"local_time"`
}

// RegistryConfig seeds the in-memory Registry at startup. This section only
// covers the bootstrap snapshot; the admin API is read-only and exposes no
// registration or deregistration endpoints.
type RegistryConfig struct {
	Services  []ServiceConfig  `yaml:"services"`
	Instances []InstanceConfig `yaml:"instances"`
	Rules     []RuleConfig     `yaml:"rules"`
}

// ServiceConfig is a ServiceDefinition (spec.md §3).
type ServiceConfig struct {
	ServiceID   string `yaml:"service_id"`
	Version     string `yaml:"version"`
	Protocol    string `yaml:"protocol"`
	EnvType     string `yaml:"env_type"`
	PatternPath string `yaml:"pattern_path"`
}

// InstanceConfig is a ServiceInstance (spec.md §3).
type InstanceConfig struct {
	ServiceID string `yaml:"service_id"`
	Version   string `yaml:"version"`
	IP        string `yaml:"ip"`
	Port      int    `yaml:"port"`
	Weight    int    `yaml:"weight"`
	Gray      bool   `yaml:"gray"`
	Enable    bool   `yaml:"enable"`
	Zone      string `yaml:"zone"`
}

// RuleConfig is a Rule (spec.md §3); FilterConfigs carries each filter's
// opaque config as a YAML mapping, converted to a JSON string at load time
// since every filter decodes its config with encoding/json.
type RuleConfig struct {
	ID            string               `yaml:"id"`
	Name          string               `yaml:"name"`
	Protocol      string               `yaml:"protocol"`
	ServiceID     string               `yaml:"service_id"`
	Version       string               `yaml:"version"`
	Prefix        string               `yaml:"prefix"`
	Paths         []string             `yaml:"paths"`
	Order         int                  `yaml:"order"`
	FilterConfigs []FilterConfigConfig `yaml:"filter_configs"`
	Metadata      map[string]string    `yaml:"metadata"`
}

// FilterConfigConfig is one rule's per-filter opaque config before JSON
// conversion.
type FilterConfigConfig struct {
	ID     string `yaml:"id"`
	Config any    `yaml:"config"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Admin: AdminConfig{
			Enabled: true,
			Address: ":8081",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
		},
	}
}
