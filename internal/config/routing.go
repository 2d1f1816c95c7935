package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// RoutingFile describes the routing input the CLI feeds into the generator:
// the backing services and, optionally, the domain routes in front of them.
// With no routes and exactly one service the proxy runs in single-target
// mode; otherwise every route must name a declared service.
type RoutingFile struct {
	Replicas int           `yaml:"replicas"`
	Balance  string        `yaml:"balance,omitempty"`
	Services []ServiceSpec `yaml:"services"`
	Routes   []RouteSpec   `yaml:"routes,omitempty"`
}

// ServiceSpec declares one backing service. Endpoints may be listed
// statically; when omitted the service is resolved against the docker
// daemon by name.
type ServiceSpec struct {
	Name      string   `yaml:"name"`
	Endpoints []string `yaml:"endpoints,omitempty"`
}

// RouteSpec binds a domain to a declared service by name.
type RouteSpec struct {
	Domain  string `yaml:"domain"`
	Service string `yaml:"service"`
}

// LoadRoutingFile loads and validates a routing file.
func LoadRoutingFile(filename string) (*RoutingFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read routing file %s: %w", filename, err)
	}

	var rf RoutingFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse routing file %s: %w", filename, err)
	}

	if err := rf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid routing file %s: %w", filename, err)
	}

	return &rf, nil
}

// Validate validates the routing file for correctness
func (rf *RoutingFile) Validate() error {
	if rf.Replicas <= 0 {
		return fmt.Errorf("replicas must be positive: %d", rf.Replicas)
	}

	if len(rf.Services) == 0 {
		return fmt.Errorf("at least one service must be declared")
	}

	names := make(map[string]bool, len(rf.Services))
	for i, svc := range rf.Services {
		if svc.Name == "" {
			return fmt.Errorf("services[%d]: name cannot be empty", i)
		}
		if names[svc.Name] {
			return fmt.Errorf("services[%d]: duplicate name '%s'", i, svc.Name)
		}
		names[svc.Name] = true
	}

	if len(rf.Routes) == 0 {
		if len(rf.Services) != 1 {
			return fmt.Errorf("single-target mode requires exactly one service, got %d", len(rf.Services))
		}
		return nil
	}

	for i, route := range rf.Routes {
		if route.Domain == "" {
			return fmt.Errorf("routes[%d]: domain cannot be empty", i)
		}
		if !names[route.Service] {
			return fmt.Errorf("routes[%d]: unknown service '%s'", i, route.Service)
		}
	}

	return nil
}
