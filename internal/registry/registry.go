// Package registry is the in-memory, process-wide service/rule registry the
// filter chain reads on every request. Rule lookups are lock-free; rule
// writes rebuild the derived rule indexes copy-on-write, the same discipline
// baseBalancer uses for its cached-healthy-backends slice. Definition and
// instance reads take their map's read lock.
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrNotFound is a sentinel for a missing registry key. The getters in this
// package report absence with a boolean and do not return it.
var ErrNotFound = fmt.Errorf("registry: not found")

type instanceSet map[string]*ServiceInstance

// Registry is the in-memory mapping of service identifiers to definitions,
// instances, and rules (spec.md §4.1).
type Registry struct {
	defMu sync.RWMutex
	defs  map[string]*ServiceDefinition // uniqueId -> ServiceDefinition

	instMu sync.RWMutex
	insts  map[string]instanceSet // uniqueId -> {ServiceInstance}, keyed by ServiceInstanceID

	ruleMu sync.RWMutex
	rules  map[string]*Rule // ruleId -> Rule

	// Derived rule indexes, rebuilt copy-on-write under ruleMu and read
	// lock-free via atomic.Value so a rule lookup never blocks on a writer
	// and never observes a partially rebuilt slice/map.
	byService atomic.Value // map[string][]*Rule, serviceId -> ordered rules
	byPath    atomic.Value // map[string]*Rule, serviceId+"."+path -> rule
}

// New returns an empty Registry.
func New() *Registry {
	r := &Registry{
		defs:  make(map[string]*ServiceDefinition),
		insts: make(map[string]instanceSet),
		rules: make(map[string]*Rule),
	}
	r.byService.Store(map[string][]*Rule{})
	r.byPath.Store(map[string]*Rule{})
	return r
}

// PutService registers or replaces a ServiceDefinition wholesale.
func (r *Registry) PutService(def *ServiceDefinition) {
	r.defMu.Lock()
	defer r.defMu.Unlock()
	r.defs[def.UniqueID()] = def
}

// RemoveService deletes a ServiceDefinition by uniqueId.
func (r *Registry) RemoveService(uniqueID string) {
	r.defMu.Lock()
	defer r.defMu.Unlock()
	delete(r.defs, uniqueID)
}

// GetDefinition returns the ServiceDefinition for uniqueId, if registered.
func (r *Registry) GetDefinition(uniqueID string) (*ServiceDefinition, bool) {
	r.defMu.RLock()
	defer r.defMu.RUnlock()
	d, ok := r.defs[uniqueID]
	return d, ok
}

// PutInstance inserts or replaces an instance in the set for its uniqueId.
func (r *Registry) PutInstance(inst *ServiceInstance) {
	r.instMu.Lock()
	defer r.instMu.Unlock()
	set, ok := r.insts[inst.UniqueID]
	if !ok {
		set = make(instanceSet)
		r.insts[inst.UniqueID] = set
	}
	set[inst.ServiceInstanceID] = inst
}

// RemoveInstance removes an instance from the set for uniqueId.
func (r *Registry) RemoveInstance(uniqueID, instanceID string) {
	r.instMu.Lock()
	defer r.instMu.Unlock()
	if set, ok := r.insts[uniqueID]; ok {
		delete(set, instanceID)
	}
}

// GetInstances returns the instance set for uniqueId, sorted by
// ServiceInstanceID for deterministic round-robin enumeration.
func (r *Registry) GetInstances(uniqueID string) []*ServiceInstance {
	r.instMu.RLock()
	defer r.instMu.RUnlock()
	set := r.insts[uniqueID]
	out := make([]*ServiceInstance, 0, len(set))
	for _, inst := range set {
		out = append(out, inst)
	}
	sortInstances(out)
	return out
}

// PutRule inserts or replaces a rule and rebuilds the derived indexes.
//
// Open question (spec.md §9, "chain cache invalidation"): resolved as
// delete+insert — replacing a rule under the same ID here updates the
// registry's own indexes immediately, but the Filter Chain Factory's
// separate chain cache is keyed by rule.id and only evicts on TTL, so a
// same-ID in-place update can still serve a stale cached chain until
// expiry. Callers that need immediate chain invalidation must assign the
// replacement a new ID (delete the old one, insert the new).
func (r *Registry) PutRule(rule *Rule) {
	r.ruleMu.Lock()
	defer r.ruleMu.Unlock()
	r.rules[rule.ID] = rule
	r.rebuildRuleIndexesLocked()
}

// RemoveRule deletes a rule by ID and rebuilds the derived indexes.
func (r *Registry) RemoveRule(ruleID string) {
	r.ruleMu.Lock()
	defer r.ruleMu.Unlock()
	delete(r.rules, ruleID)
	r.rebuildRuleIndexesLocked()
}

// rebuildRuleIndexesLocked recomputes both derived rule indexes from
// r.rules and publishes them atomically. Caller must hold ruleMu.
func (r *Registry) rebuildRuleIndexesLocked() {
	byService := make(map[string][]*Rule)
	byPath := make(map[string]*Rule)

	for _, rule := range r.rules {
		byService[rule.ServiceID] = append(byService[rule.ServiceID], rule)
		for _, p := range rule.Paths {
			byPath[rule.ServiceID+"."+p] = rule
		}
	}
	for svc := range byService {
		sortRules(byService[svc])
	}

	r.byService.Store(byService)
	r.byPath.Store(byPath)
}

// GetRuleByPath returns the rule indexed at serviceId+"."+path, the
// exact-path fast path that must be consulted before prefix matching
// (spec.md §3, §4.8).
func (r *Registry) GetRuleByPath(serviceID, path string) (*Rule, bool) {
	byPath := r.byPath.Load().(map[string]*Rule)
	rule, ok := byPath[serviceID+"."+path]
	return rule, ok
}

// GetRulesByService returns the ordered rule list for a service.
func (r *Registry) GetRulesByService(serviceID string) []*Rule {
	byService := r.byService.Load().(map[string][]*Rule)
	return byService[serviceID]
}

// Snapshot is a point-in-time, read-only view of the registry's contents
// for the admin debug surface.
type Snapshot struct {
	Services []*ServiceDefinition `json:"services"`
	Rules    []*Rule              `json:"rules"`
	Instances map[string][]*ServiceInstance `json:"instances"` // keyed by uniqueId
}

// Snapshot copies the registry's current state. It takes each lock in turn
// rather than a single global lock, so it can briefly observe a def/rule/
// instance set from slightly different moments under concurrent writers.
func (r *Registry) Snapshot() Snapshot {
	r.defMu.RLock()
	services := make([]*ServiceDefinition, 0, len(r.defs))
	for _, d := range r.defs {
		services = append(services, d)
	}
	r.defMu.RUnlock()

	r.ruleMu.RLock()
	rules := make([]*Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		rules = append(rules, rule)
	}
	r.ruleMu.RUnlock()
	sortRules(rules)

	r.instMu.RLock()
	instances := make(map[string][]*ServiceInstance, len(r.insts))
	for uniqueID, set := range r.insts {
		out := make([]*ServiceInstance, 0, len(set))
		for _, inst := range set {
			out = append(out, inst)
		}
		sortInstances(out)
		instances[uniqueID] = out
	}
	r.instMu.RUnlock()

	return Snapshot{Services: services, Rules: rules, Instances: instances}
}
