// Package injection defines the capabilities an injection can provide to a
// render call and resolves the references a renderer is configured with.
//
// An injection is any value. It contributes to a render call by implementing
// one or more of ContentParameters, LayoutParameters, CommonParameters,
// MetaTags and LinkTags; the renderer discovers them by type assertion.
package injection

import (
	"context"
	"fmt"

	"github.com/goliatone/go-viewrender/pkg/tags"
)

// ContentParameters contributes parameters to the content view.
type ContentParameters interface {
	ContentParameters(ctx context.Context) (map[string]any, error)
}

// LayoutParameters contributes parameters to the layout.
type LayoutParameters interface {
	LayoutParameters(ctx context.Context) (map[string]any, error)
}

// CommonParameters contributes parameters visible to both the content view
// and the layout.
type CommonParameters interface {
	CommonParameters(ctx context.Context) (map[string]any, error)
}

// MetaTags contributes <meta> tags.
type MetaTags interface {
	MetaTags(ctx context.Context) ([]tags.Entry, error)
}

// LinkTags contributes <link> tags.
type LinkTags interface {
	LinkTags(ctx context.Context) ([]tags.Entry, error)
}

// Ref points at an injection: either a live value or an identifier resolved
// through a Container on first use.
type Ref struct {
	value any
	id    string
	lazy  bool
}

// Live references an injection instance.
func Live(v any) Ref {
	return Ref{value: v}
}

// Lazy references an injection by container identifier.
func Lazy(id string) Ref {
	return Ref{id: id, lazy: true}
}

// Refs wraps instances with Live. Values that already are a Ref are kept.
func Refs(values ...any) []Ref {
	out := make([]Ref, 0, len(values))
	for _, v := range values {
		if ref, ok := v.(Ref); ok {
			out = append(out, ref)
			continue
		}
		out = append(out, Live(v))
	}
	return out
}

// IsLazy reports whether the reference needs a container.
func (r Ref) IsLazy() bool { return r.lazy }

// ID returns the container identifier of a lazy reference.
func (r Ref) ID() string { return r.id }

// Value returns the instance of a live reference.
func (r Ref) Value() any { return r.value }

func (r Ref) String() string {
	if r.lazy {
		return "lazy(" + r.id + ")"
	}
	return fmt.Sprintf("live(%T)", r.value)
}
