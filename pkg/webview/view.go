// Package webview renders template files for a view renderer. It keeps the
// per-render state templates share: view parameters, registered meta and link
// tags and the locale, and exposes them to the template engine.
package webview

import (
	"context"
	"io"
	"time"

	"github.com/goliatone/go-viewrender/pkg/tags"
)

// Template variables WebView adds to every render.
const (
	VarMeta         = "meta"
	VarLinks        = "links"
	VarHead         = "head"
	VarBodyBegin    = "body_begin"
	VarBodyEnd      = "body_end"
	VarLocale       = "locale"
	VarSetParameter = "set_parameter"
)

// Context tells a view where relative view names live.
type Context interface {
	ViewPath() (string, error)
}

// View is what a view renderer needs from the template layer.
type View interface {
	// WithContext returns a copy bound to ctx. State registered on the copy
	// does not leak back into the receiver.
	WithContext(ctx Context) View
	// WithLocale returns a copy rendering for locale.
	WithLocale(locale string) View
	Locale() string

	SetParameters(params map[string]any)
	SetParameter(key string, value any)
	HasParameter(key string) bool

	RegisterMeta(attrs tags.Attributes, key string)
	RegisterMetaTag(tag *tags.Meta, key string)
	RegisterLinkTag(tag *tags.Link, position tags.Position, key string)

	DefaultExtension() string
	FallbackExtension() string
	FileExists(file string) bool

	// Render resolves a view name against the context and renders it.
	Render(ctx context.Context, view string, params map[string]any) (string, error)
	// RenderFile renders a resolved template file.
	RenderFile(ctx context.Context, file string, params map[string]any) (string, error)
}

// Engine executes a template by name.
type Engine interface {
	RenderTemplate(name string, data any, out ...io.Writer) (string, error)
}

// FileChecker is implemented by engines that can tell whether a template
// exists. Engines without it are assumed to have every file.
type FileChecker interface {
	Exists(name string) bool
}

// AfterRender describes one rendered file.
type AfterRender struct {
	File       string
	Parameters map[string]any
	Output     string
	Duration   time.Duration
	Err        error
}

// Listener observes rendered files.
type Listener interface {
	AfterRender(ctx context.Context, event AfterRender)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, event AfterRender)

// AfterRender implements Listener.
func (f ListenerFunc) AfterRender(ctx context.Context, event AfterRender) {
	f(ctx, event)
}
