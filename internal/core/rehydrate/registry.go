package rehydrate

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zeusync/enginedb/internal/core/models"
)

// Factory builds a fresh behaviour instance with default field values.
type Factory func() models.Behaviour

// Registry resolves a script name to the factory of its behaviour type.
type Registry interface {
	Resolve(name string) (Factory, bool)
}

// TypeRegistry is a map-backed Registry. It is safe for concurrent use.
type TypeRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{factories: make(map[string]Factory)}
}

func (r *TypeRegistry) Register(name string, f Factory) error {
	if name == "" {
		return ErrEmptyName
	}
	if f == nil {
		return fmt.Errorf("%w: %q", ErrNilFactory, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateBehaviour, name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister is Register for init-time wiring; it panics on error.
func (r *TypeRegistry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

func (r *TypeRegistry) Resolve(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns the registered names in sorted order.
func (r *TypeRegistry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}
