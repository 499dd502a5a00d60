package injection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrContainerNotSet is returned when a lazy injection is resolved without a
// container.
var ErrContainerNotSet = errors.New("injections container is not set")

// Container resolves injection identifiers.
type Container interface {
	Get(ctx context.Context, id string) (any, error)
}

// NoContainer is the container used when none was configured.
type NoContainer struct{}

// Get always fails with ErrContainerNotSet.
func (NoContainer) Get(context.Context, string) (any, error) {
	return nil, ErrContainerNotSet
}

// Factory builds an injection on demand.
type Factory func(ctx context.Context) (any, error)

// Registry is a small Container storing instances and factories by
// identifier.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]any
	factories map[string]Factory
}

var _ Container = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		instances: make(map[string]any),
		factories: make(map[string]Factory),
	}
}

// Register stores an instance. Duplicate identifiers return an error.
func (r *Registry) Register(id string, injection any) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("injection: identifier is required")
	}
	if injection == nil {
		return fmt.Errorf("injection: instance for %q is required", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.exists(id) {
		return fmt.Errorf("injection: %q already registered", id)
	}
	r.instances[id] = injection
	return nil
}

// RegisterFactory stores a factory invoked on every Get.
func (r *Registry) RegisterFactory(id string, factory Factory) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("injection: identifier is required")
	}
	if factory == nil {
		return fmt.Errorf("injection: factory for %q is required", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.exists(id) {
		return fmt.Errorf("injection: %q already registered", id)
	}
	r.factories[id] = factory
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(id string, injection any) {
	if err := r.Register(id, injection); err != nil {
		panic(err)
	}
}

// Get resolves an identifier.
func (r *Registry) Get(ctx context.Context, id string) (any, error) {
	r.mu.RLock()
	instance, ok := r.instances[id]
	factory, hasFactory := r.factories[id]
	r.mu.RUnlock()

	if ok {
		return instance, nil
	}
	if hasFactory {
		value, err := factory(ctx)
		if err != nil {
			return nil, fmt.Errorf("injection: build %q: %w", id, err)
		}
		return value, nil
	}
	return nil, fmt.Errorf("injection: %q not found", id)
}

// List returns a sorted list of identifiers.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.instances)+len(r.factories))
	for id := range r.instances {
		ids = append(ids, id)
	}
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Has reports whether an identifier is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.exists(id)
}

func (r *Registry) exists(id string) bool {
	if _, ok := r.instances[id]; ok {
		return true
	}
	_, ok := r.factories[id]
	return ok
}
