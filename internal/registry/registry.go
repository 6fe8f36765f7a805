// Package registry holds the static service name to base URL table.
package registry

import (
	"errors"
	"fmt"
	"net/url"

	"api-gateway-go/internal/config"
)

// ErrServiceNotFound is returned when a service name is absent from the registry.
var ErrServiceNotFound = errors.New("service not found")

// Service describes one backend.
type Service struct {
	Name    string
	BaseURL *url.URL
}

// Registry maps logical service names to base URLs. It is built once at
// startup and never mutated, so it is safe for any number of concurrent readers.
type Registry struct {
	services []Service
	byName   map[string]int
}

// New builds a Registry from the [[services]] entries of the configuration.
func New(cfg *config.Config) (*Registry, error) {
	return FromServices(cfg.Services)
}

// FromServices builds a Registry from an ordered list of service entries.
func FromServices(entries []config.ServiceConfig) (*Registry, error) {
	r := &Registry{
		services: make([]Service, 0, len(entries)),
		byName:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if _, dup := r.byName[e.Name]; dup {
			return nil, fmt.Errorf("registry: duplicate service %q", e.Name)
		}
		u, err := url.Parse(e.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("registry: service %q: parse base_url: %w", e.Name, err)
		}
		if !u.IsAbs() || u.Host == "" {
			return nil, fmt.Errorf("registry: service %q: base_url %q is not absolute", e.Name, e.BaseURL)
		}
		r.byName[e.Name] = len(r.services)
		r.services = append(r.services, Service{Name: e.Name, BaseURL: u})
	}
	return r, nil
}

// Resolve returns the base URL registered for name.
// The returned URL is a copy; callers may modify it freely.
func (r *Registry) Resolve(name string) (*url.URL, error) {
	i, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrServiceNotFound, name)
	}
	u := *r.services[i].BaseURL
	return &u, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Names returns service names in configuration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.services))
	for i, s := range r.services {
		names[i] = s.Name
	}
	return names
}

// All returns every service in configuration order.
func (r *Registry) All() []Service {
	out := make([]Service, len(r.services))
	copy(out, r.services)
	return out
}
