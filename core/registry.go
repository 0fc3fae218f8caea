package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ServiceDefinition declares how one external service authenticates. The
// auth method is fixed per service, not per account or per call.
type ServiceDefinition struct {
	ID          string
	DisplayName string
	AuthMethod  CredentialType
}

func (d ServiceDefinition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("core: service definition id is required")
	}
	if err := d.AuthMethod.Validate(); err != nil {
		return err
	}
	return nil
}

func (d ServiceDefinition) Label() string {
	if strings.TrimSpace(d.DisplayName) != "" {
		return strings.TrimSpace(d.DisplayName)
	}
	return strings.TrimSpace(d.ID)
}

// ServiceRegistry is the explicit service-definition table injected at
// construction. There is no package-level registration.
type ServiceRegistry struct {
	mu          sync.RWMutex
	definitions map[string]ServiceDefinition
}

func NewServiceRegistry(definitions ...ServiceDefinition) (*ServiceRegistry, error) {
	registry := &ServiceRegistry{
		definitions: map[string]ServiceDefinition{},
	}
	for _, definition := range definitions {
		if err := registry.Register(definition); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *ServiceRegistry) Register(definition ServiceDefinition) error {
	if r == nil {
		return fmt.Errorf("core: service registry is nil")
	}
	if err := definition.Validate(); err != nil {
		return err
	}
	id := normalizeServiceID(definition.ID)
	definition.ID = id
	definition.DisplayName = strings.TrimSpace(definition.DisplayName)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.definitions[id]; ok && existing.AuthMethod != definition.AuthMethod {
		return fmt.Errorf("core: service %q is already registered with auth method %q", id, existing.AuthMethod)
	}
	r.definitions[id] = definition
	return nil
}

func (r *ServiceRegistry) Lookup(service string) (ServiceDefinition, error) {
	if r == nil {
		return ServiceDefinition{}, fmt.Errorf("core: service registry is nil")
	}
	id := normalizeServiceID(service)
	if id == "" {
		return ServiceDefinition{}, fmt.Errorf("core: service id is required")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	definition, ok := r.definitions[id]
	if !ok {
		return ServiceDefinition{}, &UnknownServiceError{Service: id}
	}
	return definition, nil
}

func (r *ServiceRegistry) List() []ServiceDefinition {
	if r == nil {
		return []ServiceDefinition{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ServiceDefinition, 0, len(r.definitions))
	for _, definition := range r.definitions {
		out = append(out, definition)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

func normalizeServiceID(service string) string {
	return strings.ToLower(strings.TrimSpace(service))
}
