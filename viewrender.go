package viewrender

import (
	"context"

	"github.com/goliatone/go-viewrender/pkg/orchestrator"
	"github.com/goliatone/go-viewrender/pkg/render"
)

// Request aliases orchestrator.Request for callers that only import the root
// package.
type Request = orchestrator.Request

// Option aliases orchestrator.Option.
type Option = orchestrator.Option

// ViewRenderer aliases render.ViewRenderer.
type ViewRenderer = render.ViewRenderer

// NewOrchestrator exposes the orchestrator constructor from the top-level
// module.
func NewOrchestrator(options ...Option) *orchestrator.Orchestrator {
	return orchestrator.New(options...)
}

// NewRenderer builds the stack described by options and returns its view
// renderer.
func NewRenderer(options ...Option) (*ViewRenderer, error) {
	return orchestrator.New(options...).Renderer()
}

// RenderHTML renders a view, wrapped in the configured layout unless
// req.Partial is set. It is the simplest entry point for callers that just
// want HTML output.
func RenderHTML(ctx context.Context, req Request, options ...Option) ([]byte, error) {
	return orchestrator.New(options...).Generate(ctx, req)
}

// WithEmbeddedViews serves templates from EmbeddedViews with "@views" and
// "@layout" pointing at them.
func WithEmbeddedViews() Option {
	return func(o *orchestrator.Orchestrator) {
		orchestrator.WithTemplateFS(EmbeddedViews())(o)
		orchestrator.WithAliases(map[string]string{
			"@views":  "/views",
			"@layout": "@views/layouts",
		})(o)
	}
}
