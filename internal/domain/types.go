package domain

import "fmt"

// Service represents a logical backend service whose replicas the proxy tier
// distributes traffic across. Implementations own the endpoint list; the
// generator only reads a snapshot of it at generation time.
type Service interface {
	// Name returns the unique service name. It is used verbatim as the
	// backend identifier in the generated configuration.
	Name() string
	// Endpoints returns the current ordered list of reachable addresses for
	// the service's replicas. The list may be empty and may change between
	// calls; callers must treat the returned slice as a point-in-time snapshot.
	Endpoints() []string
}

// DomainRoute binds one domain name to the service that should receive
// requests carrying that Host header.
type DomainRoute struct {
	Domain  string
	Service Service
}

// RoutingSpec is the generator's primary input: either a single unconditional
// target or an ordered set of host-routed targets. Exactly one of the two
// fields is set; use NewSingleTarget or NewMultiTarget to construct one.
type RoutingSpec struct {
	single Service
	routes []DomainRoute
}

// NewSingleTarget returns a spec routing all traffic to one service.
func NewSingleTarget(svc Service) RoutingSpec {
	return RoutingSpec{single: svc}
}

// NewMultiTarget returns a spec routing by Host header. Route order is
// preserved in the generated output.
func NewMultiTarget(routes []DomainRoute) RoutingSpec {
	return RoutingSpec{routes: routes}
}

// IsSingle reports whether the spec targets a single service.
func (s RoutingSpec) IsSingle() bool {
	return s.single != nil
}

// Single returns the single-target service, or nil for multi-target specs.
func (s RoutingSpec) Single() Service {
	return s.single
}

// Routes returns the ordered domain routes, or nil for single-target specs.
func (s RoutingSpec) Routes() []DomainRoute {
	return s.routes
}

// Services returns the distinct services referenced by the spec, in first
// occurrence order. A service reachable under several domains appears once.
func (s RoutingSpec) Services() []Service {
	if s.single != nil {
		return []Service{s.single}
	}

	seen := make(map[string]bool, len(s.routes))
	services := make([]Service, 0, len(s.routes))
	for _, route := range s.routes {
		if seen[route.Service.Name()] {
			continue
		}
		seen[route.Service.Name()] = true
		services = append(services, route.Service)
	}
	return services
}

// ServerEntry represents one server line inside a backend block. The ID
// doubles as the affinity cookie value, so a client stuck to a server keeps
// reaching it by name rather than by a cached address.
type ServerEntry struct {
	ID      string
	Address string
	Port    int
}

// BackendDescriptor is the structured form of one generated backend block.
type BackendDescriptor struct {
	Name    string
	Balance string
	Servers []ServerEntry
}

// ServerID derives the deterministic per-endpoint identifier used as both
// server name and cookie value. The index is the endpoint's position in the
// snapshot; it carries no identity across regenerations.
func ServerID(serviceName string, index int) string {
	return fmt.Sprintf("%s-%d", serviceName, index)
}

// FrontendRule is the structured form of one host-match rule: an ACL testing
// the Host header against Domain, and a use_backend directive guarded by it.
type FrontendRule struct {
	MatchID     string
	Domain      string
	BackendName string
}

// MatchID derives the ACL identifier for a backend's host-match rule.
func MatchID(backendName string) string {
	return backendName + "_req"
}

// ConfigDocument is the final artifact: virtual file paths mapped to their
// contents. The orchestration layer materializes these inside every proxy
// replica before the proxy process starts.
type ConfigDocument map[string]string

// ProxyService is the opaque handle returned by the assembly entry points,
// describing the deployed proxy tier.
type ProxyService struct {
	Name       string
	ReplicaIDs []string
	Document   ConfigDocument
}
