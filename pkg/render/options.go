package render

import (
	"reflect"
	"strings"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-viewrender/pkg/aliases"
	"github.com/goliatone/go-viewrender/pkg/injection"
	"github.com/goliatone/go-viewrender/pkg/response"
)

// Option configures a ViewRenderer at construction time.
type Option func(*ViewRenderer)

// ViewPath sets the base directory (or alias) of views.
func ViewPath(path string) Option {
	return func(r *ViewRenderer) {
		r.viewPath = trimViewPath(path)
	}
}

// Layout sets the layout applied by Render. An empty layout disables it.
func Layout(layout string) Option {
	return func(r *ViewRenderer) {
		r.layout = strings.TrimSpace(layout)
	}
}

// Injections sets the initial injection list.
func Injections(refs ...injection.Ref) Option {
	return func(r *ViewRenderer) {
		r.injections = r.injections.With(refs...)
	}
}

// Locale sets the locale views are rendered for.
func Locale(locale string) Option {
	return func(r *ViewRenderer) {
		r.locale = strings.TrimSpace(locale)
	}
}

// WithContainer sets the container lazy injections are resolved from.
func WithContainer(container injection.Container) Option {
	return func(r *ViewRenderer) {
		r.injections = r.injections.WithContainer(container)
	}
}

// WithAliases sets the alias table used for view paths and layouts. A nil
// resolver, typed or not, keeps the current one.
func WithAliases(resolver aliases.Resolver) Option {
	return func(r *ViewRenderer) {
		if !isNil(resolver) {
			r.aliases = resolver
		}
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Interface, reflect.Slice, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// WithResponseFactory sets the factory used by Render and RenderPartial.
func WithResponseFactory(factory response.Factory) Option {
	return func(r *ViewRenderer) {
		if factory != nil {
			r.factory = factory
		}
	}
}

// WithLogger sets the logger. Renderers are silent by default.
func WithLogger(logger *log.Logger) Option {
	return func(r *ViewRenderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTracerProvider sets the provider render spans are created with.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(r *ViewRenderer) {
		if provider != nil {
			r.tracer = provider.Tracer(tracerName)
		}
	}
}

func trimViewPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "/" {
		return trimmed
	}
	return strings.TrimRight(trimmed, "/")
}
