// Package templcomponent renders templ components through the same
// name-based contract file engines use, so a WebView can mix compiled
// components with pongo2 layouts or use them exclusively.
package templcomponent

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/a-h/templ"

	"github.com/goliatone/go-viewrender/pkg/webview"
)

// Builder turns render parameters into a component.
type Builder func(params map[string]any) (templ.Component, error)

// Engine maps view names to component builders. Names are matched without a
// leading slash and without extension, so "/views/site/index.templ" finds the
// component registered as "views/site/index".
type Engine struct {
	mu         sync.RWMutex
	components map[string]Builder
}

var (
	_ webview.Engine      = (*Engine)(nil)
	_ webview.FileChecker = (*Engine)(nil)
)

// New creates an empty engine.
func New() *Engine {
	return &Engine{components: make(map[string]Builder)}
}

// Register binds a builder to a view name. Duplicate names return an error.
func (e *Engine) Register(name string, builder Builder) error {
	key := normalize(name)
	if key == "" || builder == nil {
		return fmt.Errorf("templcomponent: name and builder required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.components[key]; exists {
		return fmt.Errorf("templcomponent: component %q already registered", key)
	}
	e.components[key] = builder
	return nil
}

// MustRegister panics on registration failure.
func (e *Engine) MustRegister(name string, builder Builder) {
	if err := e.Register(name, builder); err != nil {
		panic(err)
	}
}

// Static registers a component that ignores parameters.
func (e *Engine) Static(name string, component templ.Component) error {
	return e.Register(name, func(map[string]any) (templ.Component, error) {
		return component, nil
	})
}

// Exists implements webview.FileChecker.
func (e *Engine) Exists(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.components[normalize(name)]
	return ok
}

// List returns the registered names, sorted.
func (e *Engine) List() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.components))
	for name := range e.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RenderTemplate implements webview.Engine.
func (e *Engine) RenderTemplate(name string, data any, out ...io.Writer) (string, error) {
	return e.RenderComponent(context.Background(), name, data, out...)
}

// RenderComponent builds and renders the component registered under name.
func (e *Engine) RenderComponent(ctx context.Context, name string, data any, out ...io.Writer) (string, error) {
	key := normalize(name)

	e.mu.RLock()
	builder, ok := e.components[key]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("templcomponent: component %q not found", key)
	}

	params, err := toParams(data)
	if err != nil {
		return "", err
	}
	component, err := builder(params)
	if err != nil {
		return "", fmt.Errorf("templcomponent: build %q: %w", key, err)
	}
	if component == nil {
		return "", fmt.Errorf("templcomponent: builder for %q returned nil", key)
	}

	var buf bytes.Buffer
	if err := component.Render(ctx, &buf); err != nil {
		return "", fmt.Errorf("templcomponent: render %q: %w", key, err)
	}

	rendered := buf.String()
	for _, w := range out {
		if _, err := w.Write([]byte(rendered)); err != nil {
			return "", err
		}
	}
	return rendered, nil
}

// Raw returns a parameter as unescaped markup, for layouts that embed content
// and head blocks produced by other views.
func Raw(params map[string]any, key string) templ.Component {
	value, _ := params[key].(string)
	return templ.Raw(value)
}

// Text returns a parameter as escaped text.
func Text(params map[string]any, key string) string {
	value, ok := params[key]
	if !ok || value == nil {
		return ""
	}
	return templ.EscapeString(fmt.Sprint(value))
}

func toParams(data any) (map[string]any, error) {
	switch v := data.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	default:
		return nil, fmt.Errorf("templcomponent: expected map[string]any parameters, got %T", data)
	}
}

func normalize(name string) string {
	trimmed := strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(name)), "/")
	if ext := path.Ext(trimmed); ext != "" {
		trimmed = strings.TrimSuffix(trimmed, ext)
	}
	return trimmed
}
