package registry

import "sort"

// ServiceDefinition is keyed by UniqueID = serviceId:version. Immutable once
// registered; a re-registration replaces it wholesale.
type ServiceDefinition struct {
	ServiceID   string
	Version     string
	Protocol    string
	EnvType     string
	PatternPath string
}

// UniqueID returns the Registry's primary key for this definition.
func (d *ServiceDefinition) UniqueID() string {
	return d.ServiceID + ":" + d.Version
}

// ServiceInstance is one backend endpoint for a ServiceDefinition.
type ServiceInstance struct {
	ServiceInstanceID string // ip:port
	UniqueID          string
	IP                string
	Port              int
	RegisterTime      int64 // ms epoch
	Version           string
	Weight            int // positive, default 100; read only by the WeightedRoundRobin strategy
	Gray              bool
	Enable            bool
	Zone              string // availability-zone tag, not read by Random/RoundRobin
}

// Address returns the dial target a load balancer writes to
// GatewayRequest.ModifyHost.
func (i *ServiceInstance) Address() string {
	return i.ServiceInstanceID
}

// FilterConfig carries an opaque, filter-specific JSON payload. Set identity
// is ID.
type FilterConfig struct {
	ID     string
	Config string // opaque JSON, shape depends on the filter
}

// Rule is a service's ordered routing + filter-chain policy.
type Rule struct {
	ID            string
	Name          string
	Protocol      string
	ServiceID     string
	Prefix        string
	Paths         []string
	Order         int
	FilterConfigs []FilterConfig
	Metadata      map[string]string
}

// FilterConfigByID looks up a rule's filter configuration by filter id.
func (r *Rule) FilterConfigByID(id string) (FilterConfig, bool) {
	for _, fc := range r.FilterConfigs {
		if fc.ID == id {
			return fc, true
		}
	}
	return FilterConfig{}, false
}

// HasPrefix reports whether the rule's prefix is a prefix of path.
func (r *Rule) HasPrefix(path string) bool {
	if r.Prefix == "" {
		return false
	}
	return len(path) >= len(r.Prefix) && path[:len(r.Prefix)] == r.Prefix
}

// sortRules orders rules by Order ascending, ties broken by ID lexicographic,
// matching spec.md §3's Rule ordering invariant.
func sortRules(rules []*Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Order != rules[j].Order {
			return rules[i].Order < rules[j].Order
		}
		return rules[i].ID < rules[j].ID
	})
}

// sortInstances orders instances by ServiceInstanceID, the enumeration the
// load balancer relies on for a deterministic round-robin index.
func sortInstances(instances []*ServiceInstance) {
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].ServiceInstanceID < instances[j].ServiceInstanceID
	})
}
