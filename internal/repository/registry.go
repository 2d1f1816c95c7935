package repository

import (
	"fmt"
	"sync"

	"github.com/mir00r/haproxy-gen/internal/domain"
)

// StaticService is a Service with a fixed endpoint list. It backs dry-run
// generation and tests, where no orchestration layer tracks live replicas.
type StaticService struct {
	mu        sync.RWMutex
	name      string
	endpoints []string
}

// NewStaticService creates a service with the given name and endpoints.
func NewStaticService(name string, endpoints []string) *StaticService {
	return &StaticService{
		name:      name,
		endpoints: append([]string(nil), endpoints...),
	}
}

// Name returns the service name.
func (s *StaticService) Name() string {
	return s.name
}

// Endpoints returns a snapshot of the endpoint list.
func (s *StaticService) Endpoints() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.endpoints...)
}

// SetEndpoints replaces the endpoint list. Generations running concurrently
// see either the old or the new snapshot, never a partial one.
func (s *StaticService) SetEndpoints(endpoints []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints = append([]string(nil), endpoints...)
}

// InMemoryServiceRegistry holds the known backend services keyed by name
type InMemoryServiceRegistry struct {
	mu       sync.RWMutex
	services map[string]domain.Service
	order    []string
}

// NewInMemoryServiceRegistry creates a new in-memory service registry
func NewInMemoryServiceRegistry() *InMemoryServiceRegistry {
	return &InMemoryServiceRegistry{
		services: make(map[string]domain.Service),
	}
}

// Register adds a service to the registry
func (r *InMemoryServiceRegistry) Register(svc domain.Service) error {
	if svc == nil {
		return fmt.Errorf("service cannot be nil")
	}
	if svc.Name() == "" {
		return fmt.Errorf("service name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.services[svc.Name()]; exists {
		return fmt.Errorf("service with name '%s' already registered", svc.Name())
	}

	r.services[svc.Name()] = svc
	r.order = append(r.order, svc.Name())
	return nil
}

// Get returns a service by its name
func (r *InMemoryServiceRegistry) Get(name string) (domain.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	svc, exists := r.services[name]
	if !exists {
		return nil, fmt.Errorf("service with name '%s' not found", name)
	}
	return svc, nil
}

// List returns all registered services in registration order
func (r *InMemoryServiceRegistry) List() []domain.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	services := make([]domain.Service, 0, len(r.order))
	for _, name := range r.order {
		services = append(services, r.services[name])
	}
	return services
}
