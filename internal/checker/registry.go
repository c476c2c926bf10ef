package checker

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Factory builds a checker. It is called once per run.
type Factory func() (Checker, error)

// Registry maps checker names to factories. Checkers are registered
// explicitly at startup; lookups may run concurrently afterwards.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	about     map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		about:     make(map[string]string),
	}
}

// Register adds a checker. Names are unique.
func (r *Registry) Register(name, description string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("checker registration needs a name and a factory")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[name]; dup {
		return fmt.Errorf("checker %q registered twice", name)
	}
	r.factories[name] = f
	r.about[name] = description
	return nil
}

// New builds the checker registered as name.
func (r *Registry) New(name string) (Checker, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown checker %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	c, err := f()
	if err != nil {
		return nil, fmt.Errorf("checker %q: %w", name, err)
	}
	return c, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Description returns the one-line summary given at registration.
func (r *Registry) Description(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.about[name]
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}
