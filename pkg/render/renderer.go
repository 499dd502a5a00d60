// Package render is the composition root of view rendering. A ViewRenderer
// resolves view and layout paths, collects parameters and tags from
// injections and drives a webview.View to produce the page.
package render

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/goliatone/go-viewrender/pkg/aliases"
	"github.com/goliatone/go-viewrender/pkg/injection"
	"github.com/goliatone/go-viewrender/pkg/params"
	"github.com/goliatone/go-viewrender/pkg/response"
	"github.com/goliatone/go-viewrender/pkg/tags"
	"github.com/goliatone/go-viewrender/pkg/webview"
)

const tracerName = "github.com/goliatone/go-viewrender/pkg/render"

// ContentKey is the layout parameter holding the rendered view.
const ContentKey = "content"

// ViewRenderer renders views inside an optional layout. It is immutable: every
// With method returns a new renderer and leaves the receiver untouched, so a
// single renderer can be shared between requests and specialised per request.
type ViewRenderer struct {
	view    webview.View
	aliases aliases.Resolver
	factory response.Factory
	logger  *log.Logger
	tracer  trace.Tracer

	viewPath       string
	controllerName string
	layout         string
	locale         string
	injections     *injection.Set
}

var _ webview.Context = (*ViewRenderer)(nil)

// New builds a renderer over view.
func New(view webview.View, opts ...Option) *ViewRenderer {
	r := &ViewRenderer{
		view:       view,
		aliases:    aliases.MustNew(nil),
		factory:    response.DefaultFactory{},
		logger:     log.New(io.Discard),
		tracer:     otel.Tracer(tracerName),
		injections: injection.NewSet(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *ViewRenderer) clone() *ViewRenderer {
	out := *r
	return &out
}

// WithViewPath returns a renderer using path (a directory or an alias) as the
// view base path.
func (r *ViewRenderer) WithViewPath(path string) *ViewRenderer {
	out := r.clone()
	out.viewPath = trimViewPath(path)
	return out
}

// WithLayout returns a renderer applying layout. An empty layout disables it.
func (r *ViewRenderer) WithLayout(layout string) *ViewRenderer {
	out := r.clone()
	out.layout = strings.TrimSpace(layout)
	return out
}

// WithController returns a renderer looking up views in the subdirectory
// inferred from the controller type.
func (r *ViewRenderer) WithController(controller any) (*ViewRenderer, error) {
	name, err := InferControllerName(controller)
	if err != nil {
		return nil, err
	}
	return r.WithControllerName(name), nil
}

// WithControllerName returns a renderer looking up views in the name
// subdirectory of the view path.
func (r *ViewRenderer) WithControllerName(name string) *ViewRenderer {
	out := r.clone()
	out.controllerName = strings.Trim(strings.TrimSpace(name), "/")
	return out
}

// WithInjections returns a renderer with refs replacing the injection list.
func (r *ViewRenderer) WithInjections(refs ...injection.Ref) *ViewRenderer {
	out := r.clone()
	out.injections = r.injections.With(refs...)
	return out
}

// WithAddedInjections returns a renderer with refs appended to the injection
// list.
func (r *ViewRenderer) WithAddedInjections(refs ...injection.Ref) *ViewRenderer {
	out := r.clone()
	out.injections = r.injections.WithAdded(refs...)
	return out
}

// WithContainer returns a renderer resolving lazy injections from container.
func (r *ViewRenderer) WithContainer(container injection.Container) *ViewRenderer {
	out := r.clone()
	out.injections = r.injections.WithContainer(container)
	return out
}

// WithLocale returns a renderer rendering views for locale. The locale is
// validated when rendering.
func (r *ViewRenderer) WithLocale(locale string) *ViewRenderer {
	out := r.clone()
	out.locale = strings.TrimSpace(locale)
	return out
}

// Layout returns the configured layout.
func (r *ViewRenderer) Layout() string { return r.layout }

// Locale returns the configured locale.
func (r *ViewRenderer) Locale() string { return r.locale }

// ControllerName returns the controller subdirectory.
func (r *ViewRenderer) ControllerName() string { return r.controllerName }

// Injections returns the configured injection references.
func (r *ViewRenderer) Injections() []injection.Ref { return r.injections.Refs() }

// ViewPath returns the directory relative view names are resolved against.
func (r *ViewRenderer) ViewPath() (string, error) {
	if r.viewPath == "" {
		return "", ErrViewPathNotSet
	}
	base, err := r.aliases.Get(r.viewPath)
	if err != nil {
		return "", fmt.Errorf("render: resolve view path: %w", err)
	}
	if base != "/" {
		base = strings.TrimRight(base, "/")
	}
	if r.controllerName == "" {
		return base, nil
	}
	if webview.EscapesBase(r.controllerName) {
		return "", &PathError{Path: r.controllerName}
	}
	return strings.TrimRight(base, "/") + "/" + r.controllerName, nil
}

// ResolveLayoutFile expands aliases in layout and, when it has no extension,
// appends the view's default extension or its fallback.
func (r *ViewRenderer) ResolveLayoutFile(layout string, view webview.View) (string, error) {
	file, err := r.aliases.Get(layout)
	if err != nil {
		return "", fmt.Errorf("render: resolve layout: %w", err)
	}
	if path.Ext(file) != "" {
		return file, nil
	}
	return webview.WithExtension(view, file), nil
}

// Render returns a response that renders view inside the layout when its body
// is first read. Injections are resolved and their parameters and tags
// collected now, so configuration errors are returned immediately.
func (r *ViewRenderer) Render(ctx context.Context, view string, parameters map[string]any) (*response.DataResponse, error) {
	return r.deferred(ctx, view, parameters, r.layout)
}

// RenderPartial is Render without the layout.
func (r *ViewRenderer) RenderPartial(ctx context.Context, view string, parameters map[string]any) (*response.DataResponse, error) {
	return r.deferred(ctx, view, parameters, "")
}

// RenderAsString renders view inside the layout immediately.
func (r *ViewRenderer) RenderAsString(ctx context.Context, view string, parameters map[string]any) (string, error) {
	job, err := r.prepare(ctx, view, parameters, r.layout)
	if err != nil {
		return "", err
	}
	return job.run(ctx)
}

// RenderPartialAsString renders view without the layout immediately.
func (r *ViewRenderer) RenderPartialAsString(ctx context.Context, view string, parameters map[string]any) (string, error) {
	job, err := r.prepare(ctx, view, parameters, "")
	if err != nil {
		return "", err
	}
	return job.run(ctx)
}

func (r *ViewRenderer) deferred(ctx context.Context, view string, parameters map[string]any, layout string) (*response.DataResponse, error) {
	job, err := r.prepare(ctx, view, parameters, layout)
	if err != nil {
		return nil, err
	}
	return r.factory.CreateResponse(job.run), nil
}

// renderJob is everything a render needs, captured when the render was
// requested.
type renderJob struct {
	renderer     *ViewRenderer
	view         string
	layout       string
	content      map[string]any
	common       map[string]any
	layoutParams map[string]any
	meta         []tags.Entry
	links        []tags.Entry
}

func (r *ViewRenderer) prepare(ctx context.Context, view string, parameters map[string]any, layout string) (*renderJob, error) {
	if r.view == nil {
		return nil, fmt.Errorf("render: view is not set")
	}
	if webview.EscapesBase(r.controllerName) {
		return nil, &PathError{Path: r.controllerName}
	}
	if !strings.HasPrefix(view, "@") && !strings.HasPrefix(view, "/") && webview.EscapesBase(view) {
		return nil, &PathError{Path: view}
	}
	if r.locale != "" {
		if _, err := language.Parse(strings.ReplaceAll(r.locale, "_", "-")); err != nil {
			return nil, &LocaleError{Locale: r.locale, Err: err}
		}
	}

	resolved, err := r.injections.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	resolved = injection.ApplyLayout(resolved, layout)

	job := &renderJob{
		renderer: r,
		view:     view,
		layout:   layout,
	}

	var contentMaps, commonMaps, layoutMaps []map[string]any
	for _, inj := range injection.Select[injection.ContentParameters](resolved) {
		values, err := inj.ContentParameters(ctx)
		if err != nil {
			return nil, fmt.Errorf("render: content parameters from %T: %w", inj, err)
		}
		contentMaps = append(contentMaps, values)
	}
	for _, inj := range injection.Select[injection.CommonParameters](resolved) {
		values, err := inj.CommonParameters(ctx)
		if err != nil {
			return nil, fmt.Errorf("render: common parameters from %T: %w", inj, err)
		}
		commonMaps = append(commonMaps, values)
	}
	if layout != "" {
		for _, inj := range injection.Select[injection.LayoutParameters](resolved) {
			values, err := inj.LayoutParameters(ctx)
			if err != nil {
				return nil, fmt.Errorf("render: layout parameters from %T: %w", inj, err)
			}
			layoutMaps = append(layoutMaps, values)
		}
	}
	for _, inj := range injection.Select[injection.MetaTags](resolved) {
		entries, err := inj.MetaTags(ctx)
		if err != nil {
			return nil, fmt.Errorf("render: meta tags from %T: %w", inj, err)
		}
		job.meta = append(job.meta, entries...)
	}
	for _, inj := range injection.Select[injection.LinkTags](resolved) {
		entries, err := inj.LinkTags(ctx)
		if err != nil {
			return nil, fmt.Errorf("render: link tags from %T: %w", inj, err)
		}
		job.links = append(job.links, entries...)
	}

	job.content = params.MergeWithPriority(params.MergeOrdered(contentMaps...), parameters)
	job.common = params.MergeOrdered(commonMaps...)
	job.layoutParams = params.MergeOrdered(layoutMaps...)

	r.logger.Debug("render prepared",
		"view", view,
		"layout", layout,
		"injections", len(resolved),
		"meta", len(job.meta),
		"links", len(job.links),
	)
	return job, nil
}

func (j *renderJob) run(ctx context.Context) (out string, err error) {
	r := j.renderer
	ctx, span := r.tracer.Start(ctx, "viewrender.render",
		trace.WithAttributes(
			attribute.String("viewrender.view", j.view),
			attribute.String("viewrender.layout", j.layout),
			attribute.Bool("viewrender.partial", j.layout == ""),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.logger.Debug("render failed", "view", j.view, "error", err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	view := r.view.WithContext(r)
	if r.locale != "" {
		view = view.WithLocale(r.locale)
	}

	if err := j.registerTags(view); err != nil {
		return "", err
	}

	view.SetParameters(j.common)
	content, err := view.Render(ctx, j.view, j.content)
	if err != nil {
		return "", err
	}
	if j.layout == "" {
		return content, nil
	}

	layoutFile, err := r.ResolveLayoutFile(j.layout, view)
	if err != nil {
		return "", err
	}
	view.SetParameters(params.Exclude(j.layoutParams, view.HasParameter))
	return view.RenderFile(ctx, layoutFile, map[string]any{ContentKey: content})
}

func (j *renderJob) registerTags(view webview.View) error {
	for _, entry := range j.meta {
		meta, err := tags.NormalizeMeta(entry)
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		if meta.Tag != nil {
			view.RegisterMetaTag(meta.Tag, meta.Key)
		} else {
			view.RegisterMeta(meta.Attributes, meta.Key)
		}
	}
	for _, entry := range j.links {
		link, err := tags.NormalizeLink(entry)
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		view.RegisterLinkTag(link.Tag, link.Position, link.Key)
	}
	return nil
}
