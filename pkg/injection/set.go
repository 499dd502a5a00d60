package injection

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-viewrender/pkg/viewerr"
)

// ResolutionError is returned when a lazy injection cannot be resolved.
type ResolutionError struct {
	ID  string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("injection: resolve %q: %v", e.ID, e.Err)
}

func (e *ResolutionError) Unwrap() error      { return e.Err }
func (e *ResolutionError) Kind() viewerr.Kind { return viewerr.KindConfiguration }
func (e *ResolutionError) Name() string       { return "Injection could not be resolved" }
func (e *ResolutionError) Solution() string {
	return fmt.Sprintf("Register %q in the container passed to the renderer, or pass the injection instance with injection.Live.", e.ID)
}

// Set is an ordered list of injection references with a resolution cache.
// Sets are immutable; With and WithContainer return new sets with an empty
// cache, so copies that keep the same list share the resolved instances.
type Set struct {
	refs      []Ref
	container Container

	mu       sync.Mutex
	resolved []any
	done     bool
}

// NewSet builds a set. A nil container behaves like NoContainer.
func NewSet(container Container, refs ...Ref) *Set {
	if container == nil {
		container = NoContainer{}
	}
	return &Set{
		refs:      append([]Ref(nil), refs...),
		container: container,
	}
}

// Refs returns a copy of the references.
func (s *Set) Refs() []Ref {
	if s == nil {
		return nil
	}
	return append([]Ref(nil), s.refs...)
}

// Len returns the number of references.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.refs)
}

// Container returns the container used for lazy references.
func (s *Set) Container() Container {
	if s == nil {
		return NoContainer{}
	}
	return s.container
}

// With returns a set with refs replacing the current list.
func (s *Set) With(refs ...Ref) *Set {
	return NewSet(s.Container(), refs...)
}

// WithAdded returns a set with refs appended to the current list.
func (s *Set) WithAdded(refs ...Ref) *Set {
	return NewSet(s.Container(), append(s.Refs(), refs...)...)
}

// WithContainer returns a set with the same list resolved through container.
func (s *Set) WithContainer(container Container) *Set {
	return NewSet(container, s.Refs()...)
}

// Resolve returns the live injections in configuration order. Lazy references
// are resolved once; successful results are cached on the set, failures are
// not.
func (s *Set) Resolve(ctx context.Context) ([]any, error) {
	if s == nil {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return append([]any(nil), s.resolved...), nil
	}

	out := make([]any, 0, len(s.refs))
	for _, ref := range s.refs {
		if !ref.lazy {
			out = append(out, ref.value)
			continue
		}
		value, err := s.container.Get(ctx, ref.id)
		if err != nil {
			return nil, &ResolutionError{ID: ref.id, Err: err}
		}
		if value == nil {
			return nil, &ResolutionError{ID: ref.id, Err: fmt.Errorf("container returned nil")}
		}
		out = append(out, value)
	}

	s.resolved = out
	s.done = true
	return append([]any(nil), out...), nil
}

// Select returns, in order, every injection implementing T.
func Select[T any](injections []any) []T {
	var out []T
	for _, inj := range injections {
		if capable, ok := inj.(T); ok {
			out = append(out, capable)
		}
	}
	return out
}

// LayoutSpecific groups injections that only apply when a renderer uses a
// given layout.
type LayoutSpecific struct {
	layout     string
	injections []any
}

// ForLayout builds a LayoutSpecific wrapper.
func ForLayout(layout string, injections ...any) *LayoutSpecific {
	return &LayoutSpecific{layout: layout, injections: append([]any(nil), injections...)}
}

// Layout returns the layout the injections are bound to.
func (l *LayoutSpecific) Layout() string { return l.layout }

// Injections returns the wrapped injections.
func (l *LayoutSpecific) Injections() []any {
	return append([]any(nil), l.injections...)
}

// ApplyLayout replaces every LayoutSpecific wrapper with its injections when
// it matches layout, and drops it otherwise.
func ApplyLayout(injections []any, layout string) []any {
	out := make([]any, 0, len(injections))
	for _, inj := range injections {
		specific, ok := inj.(*LayoutSpecific)
		if !ok {
			out = append(out, inj)
			continue
		}
		if specific != nil && layout != "" && specific.layout == layout {
			out = append(out, specific.injections...)
		}
	}
	return out
}
