package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/goccy/go-yaml"

	"github.com/meridiangw/gateway/internal/registry"
)

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Loader reads and parses the gateway's YAML configuration file.
type Loader struct{}

// NewLoader returns a Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads path, expands ${ENV_VAR} references, and parses it against
// Default().
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return l.Parse(data)
}

// Parse parses YAML bytes into a Config seeded with Default()'s values.
func (l *Loader) Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func expandEnvVars(input string) string {
	return envPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := match[2 : len(match)-1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return match
	})
}

func validate(cfg *Config) error {
	if cfg.Listen == "" {
		return fmt.Errorf("listen address is required")
	}

	seen := make(map[string]bool)
	for i, svc := range cfg.Registry.Services {
		if svc.ServiceID == "" || svc.Version == "" {
			return fmt.Errorf("registry.services[%d]: service_id and version are required", i)
		}
		key := svc.ServiceID + ":" + svc.Version
		if seen[key] {
			return fmt.Errorf("registry.services[%d]: duplicate service %s", i, key)
		}
		seen[key] = true
	}

	ruleIDs := make(map[string]bool)
	for i, rule := range cfg.Registry.Rules {
		if rule.ID == "" {
			return fmt.Errorf("registry.rules[%d]: id is required", i)
		}
		if ruleIDs[rule.ID] {
			return fmt.Errorf("registry.rules[%d]: duplicate rule id %s", i, rule.ID)
		}
		ruleIDs[rule.ID] = true
		if rule.ServiceID == "" || rule.Version == "" {
			return fmt.Errorf("registry.rules[%d] (%s): service_id and version are required", i, rule.ID)
		}
	}

	return nil
}

// Bootstrap seeds reg with every service, instance, and rule cfg declares.
func Bootstrap(cfg *Config, reg *registry.Registry) error {
	for _, svc := range cfg.Registry.Services {
		reg.PutService(&registry.ServiceDefinition{
			ServiceID:   svc.ServiceID,
			Version:     svc.Version,
			Protocol:    svc.Protocol,
			EnvType:     svc.EnvType,
			PatternPath: svc.PatternPath,
		})
	}

	for _, inst := range cfg.Registry.Instances {
		uniqueID := inst.ServiceID + ":" + inst.Version
		weight := inst.Weight
		if weight <= 0 {
			weight = 100
		}
		reg.PutInstance(&registry.ServiceInstance{
			ServiceInstanceID: fmt.Sprintf("%s:%d", inst.IP, inst.Port),
			UniqueID:          uniqueID,
			IP:                inst.IP,
			Port:              inst.Port,
			Weight:            weight,
			Gray:              inst.Gray,
			Enable:            inst.Enable,
			Zone:              inst.Zone,
		})
	}

	for _, rc := range cfg.Registry.Rules {
		filterConfigs := make([]registry.FilterConfig, 0, len(rc.FilterConfigs))
		for _, fc := range rc.FilterConfigs {
			raw, err := json.Marshal(fc.Config)
			if err != nil {
				return fmt.Errorf("rule %s: filter %s: marshal config: %w", rc.ID, fc.ID, err)
			}
			filterConfigs = append(filterConfigs, registry.FilterConfig{ID: fc.ID, Config: string(raw)})
		}
		reg.PutRule(&registry.Rule{
			ID:            rc.ID,
			Name:          rc.Name,
			Protocol:      rc.Protocol,
			ServiceID:     rc.ServiceID,
			Prefix:        rc.Prefix,
			Paths:         rc.Paths,
			Order:         rc.Order,
			FilterConfigs: filterConfigs,
			Metadata:      rc.Metadata,
		})
	}

	return nil
}
