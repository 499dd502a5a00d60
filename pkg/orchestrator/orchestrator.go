package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-viewrender/pkg/aliases"
	"github.com/goliatone/go-viewrender/pkg/csrf"
	"github.com/goliatone/go-viewrender/pkg/debug"
	"github.com/goliatone/go-viewrender/pkg/i18n"
	"github.com/goliatone/go-viewrender/pkg/injection"
	"github.com/goliatone/go-viewrender/pkg/metrics"
	"github.com/goliatone/go-viewrender/pkg/render"
	"github.com/goliatone/go-viewrender/pkg/render/template/gotemplate"
	"github.com/goliatone/go-viewrender/pkg/response"
	"github.com/goliatone/go-viewrender/pkg/tags"
	"github.com/goliatone/go-viewrender/pkg/themeinject"
	"github.com/goliatone/go-viewrender/pkg/webview"
)

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithTemplateDir loads pongo2 templates from a directory on disk.
func WithTemplateDir(dir string) Option {
	return func(o *Orchestrator) {
		o.templateDir = strings.TrimSpace(dir)
	}
}

// WithTemplateFS loads pongo2 templates from fsys.
func WithTemplateFS(fsys fs.FS) Option {
	return func(o *Orchestrator) {
		o.templateFS = fsys
	}
}

// WithEngine replaces the pongo2 engine, for example with a
// templcomponent.Engine. Template funcs and translators only apply to the
// pongo2 engine.
func WithEngine(engine webview.Engine) Option {
	return func(o *Orchestrator) {
		o.engine = engine
	}
}

// WithExtensions sets the default and fallback template extensions.
func WithExtensions(defaultExt, fallbackExt string) Option {
	return func(o *Orchestrator) {
		if defaultExt = strings.TrimPrefix(strings.TrimSpace(defaultExt), "."); defaultExt != "" {
			o.extension = defaultExt
		}
		if fallbackExt = strings.TrimPrefix(strings.TrimSpace(fallbackExt), "."); fallbackExt != "" {
			o.fallbackExtension = fallbackExt
		}
	}
}

// WithSourceLocale sets the locale view files are written in.
func WithSourceLocale(locale string) Option {
	return func(o *Orchestrator) {
		o.sourceLocale = strings.TrimSpace(locale)
	}
}

// WithAliases registers path aliases shared by the renderer, the web view and
// static injection files.
func WithAliases(entries map[string]string) Option {
	return func(o *Orchestrator) {
		if len(entries) == 0 {
			return
		}
		if o.aliasEntries == nil {
			o.aliasEntries = make(map[string]string, len(entries))
		}
		for alias, path := range entries {
			o.aliasEntries[alias] = path
		}
	}
}

// WithViewPath sets the base view path (or alias).
func WithViewPath(path string) Option {
	return func(o *Orchestrator) {
		o.viewPath = path
	}
}

// WithLayout sets the default layout. An empty value disables layouts.
func WithLayout(layout string) Option {
	return func(o *Orchestrator) {
		o.layout = layout
	}
}

// WithLocale sets the default render locale.
func WithLocale(locale string) Option {
	return func(o *Orchestrator) {
		o.locale = locale
	}
}

// WithInjections appends injections given as live values or lazy
// injection.Ref identifiers.
func WithInjections(values ...any) Option {
	return func(o *Orchestrator) {
		o.injections = append(o.injections, injection.Refs(values...)...)
	}
}

// WithStaticInjections loads YAML or JSON injection files. Paths may start
// with an alias.
func WithStaticInjections(paths ...string) Option {
	return func(o *Orchestrator) {
		o.staticFiles = append(o.staticFiles, paths...)
	}
}

// WithContainer sets the container lazy injections are resolved from.
func WithContainer(container injection.Container) Option {
	return func(o *Orchestrator) {
		o.container = container
	}
}

// WithCSRF adds the CSRF view injection. A nil injection reads the token
// stored by csrf.Middleware.
func WithCSRF(inj *csrf.ViewInjection) Option {
	return func(o *Orchestrator) {
		if inj == nil {
			inj = csrf.NewViewInjection(csrf.ContextTokenSource{})
		}
		o.csrf = inj
	}
}

// WithTheme adds theme parameters, meta and link tags from a go-theme
// selection.
func WithTheme(inj *themeinject.Injection) Option {
	return func(o *Orchestrator) {
		o.theme = inj
	}
}

// WithTranslator exposes translate helpers to pongo2 templates.
func WithTranslator(translator i18n.Translator, cfg i18n.TemplateConfig) Option {
	return func(o *Orchestrator) {
		o.translator = translator
		o.translatorConfig = cfg
	}
}

// WithTemplateFuncs registers extra pongo2 helpers.
func WithTemplateFuncs(funcs map[string]any) Option {
	return func(o *Orchestrator) {
		if len(funcs) == 0 {
			return
		}
		if o.funcs == nil {
			o.funcs = make(map[string]any, len(funcs))
		}
		for name, fn := range funcs {
			o.funcs[name] = fn
		}
	}
}

// WithTemplateFilters registers pongo2 filters, used as {{ value|name }}.
// pongo2 filters are process wide, so the last registration of a name wins.
func WithTemplateFilters(filters map[string]gotemplate.Filter) Option {
	return func(o *Orchestrator) {
		if o.filters == nil {
			o.filters = make(map[string]gotemplate.Filter, len(filters))
		}
		for name, fn := range filters {
			o.filters[name] = fn
		}
	}
}

// WithTemplateGlobals exposes values to every pongo2 template. Render
// parameters with the same name take precedence.
func WithTemplateGlobals(values map[string]any) Option {
	return func(o *Orchestrator) {
		if o.globals == nil {
			o.globals = make(map[string]any, len(values))
		}
		for key, value := range values {
			o.globals[key] = value
		}
	}
}

// WithListeners registers AfterRender listeners.
func WithListeners(listeners ...webview.Listener) Option {
	return func(o *Orchestrator) {
		o.listeners = append(o.listeners, listeners...)
	}
}

// WithMetrics records Prometheus metrics for every rendered file.
func WithMetrics(opts ...metrics.Option) Option {
	return func(o *Orchestrator) {
		o.metricsEnabled = true
		o.metricsOptions = append(o.metricsOptions, opts...)
	}
}

// WithDebugCollector records rendered files while the collector is active.
func WithDebugCollector(collector *debug.Collector) Option {
	return func(o *Orchestrator) {
		o.collector = collector
	}
}

// WithTagPolicy sanitizes registered meta and link tags.
func WithTagPolicy(policy *tags.Policy) Option {
	return func(o *Orchestrator) {
		o.tagPolicy = policy
	}
}

// WithResponseFactory sets the factory deferred responses are built with.
func WithResponseFactory(factory response.Factory) Option {
	return func(o *Orchestrator) {
		o.factory = factory
	}
}

// WithLogger sets the logger passed to the renderer.
func WithLogger(logger *log.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithTracerProvider sets the provider render spans are created with.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		o.tracerProvider = provider
	}
}

// Orchestrator builds a ViewRenderer and its collaborators from options. It
// applies sensible defaults (pongo2 engine, "tpl"/"html" extensions) while
// remaining open to dependency injection for advanced callers.
type Orchestrator struct {
	templateDir       string
	templateFS        fs.FS
	engine            webview.Engine
	extension         string
	fallbackExtension string
	sourceLocale      string
	aliasEntries      map[string]string
	viewPath          string
	layout            string
	locale            string
	injections        []injection.Ref
	staticFiles       []string
	container         injection.Container
	csrf              *csrf.ViewInjection
	theme             *themeinject.Injection
	translator        i18n.Translator
	translatorConfig  i18n.TemplateConfig
	funcs             map[string]any
	filters           map[string]gotemplate.Filter
	globals           map[string]any
	listeners         []webview.Listener
	metricsEnabled    bool
	metricsOptions    []metrics.Option
	collector         *debug.Collector
	tagPolicy         *tags.Policy
	factory           response.Factory
	logger            *log.Logger
	tracerProvider    trace.TracerProvider

	pongo         *gotemplate.Engine
	aliases       *aliases.Aliases
	view          *webview.WebView
	renderer      *render.ViewRenderer
	initialiseErr error
}

// New constructs an Orchestrator applying any provided options. Construction
// errors are reported by Err and by every render call.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{
		extension:         "tpl",
		fallbackExtension: "html",
		sourceLocale:      "en",
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	o.initialiseErr = o.build()
	return o
}

// Err returns the error that occurred while wiring the stack.
func (o *Orchestrator) Err() error { return o.initialiseErr }

// Renderer returns the configured view renderer.
func (o *Orchestrator) Renderer() (*render.ViewRenderer, error) {
	if o.initialiseErr != nil {
		return nil, o.initialiseErr
	}
	return o.renderer, nil
}

// TemplateEngine returns the pongo2 engine, or nil when WithEngine replaced
// it. File watchers reset its cache.
func (o *Orchestrator) TemplateEngine() *gotemplate.Engine { return o.pongo }

// Aliases returns the alias table shared by the stack.
func (o *Orchestrator) Aliases() *aliases.Aliases { return o.aliases }

// Request describes one render.
type Request struct {
	// View is the view name, relative to the controller view path unless it
	// is absolute or starts with an alias.
	View string

	// Controller, when set, provides the controller subdirectory by type
	// name. ControllerName takes precedence.
	Controller     any
	ControllerName string

	// Layout overrides the configured layout for this call.
	Layout string

	// Partial skips the layout.
	Partial bool

	// Locale overrides the configured locale.
	Locale string

	Parameters map[string]any
}

// Generate renders the request immediately.
func (o *Orchestrator) Generate(ctx context.Context, req Request) ([]byte, error) {
	renderer, err := o.rendererFor(ctx, req)
	if err != nil {
		return nil, err
	}
	var out string
	if req.Partial {
		out, err = renderer.RenderPartialAsString(ctx, req.View, req.Parameters)
	} else {
		out, err = renderer.RenderAsString(ctx, req.View, req.Parameters)
	}
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// Response prepares a deferred response for the request.
func (o *Orchestrator) Response(ctx context.Context, req Request) (*response.DataResponse, error) {
	renderer, err := o.rendererFor(ctx, req)
	if err != nil {
		return nil, err
	}
	if req.Partial {
		return renderer.RenderPartial(ctx, req.View, req.Parameters)
	}
	return renderer.Render(ctx, req.View, req.Parameters)
}

func (o *Orchestrator) rendererFor(ctx context.Context, req Request) (*render.ViewRenderer, error) {
	if ctx == nil {
		return nil, errors.New("orchestrator: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := o.initialiseErr; err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.View) == "" {
		return nil, errors.New("orchestrator: view is required")
	}

	renderer := o.renderer
	switch {
	case req.ControllerName != "":
		renderer = renderer.WithControllerName(req.ControllerName)
	case req.Controller != nil:
		withController, err := renderer.WithController(req.Controller)
		if err != nil {
			return nil, err
		}
		renderer = withController
	}
	if req.Layout != "" {
		renderer = renderer.WithLayout(req.Layout)
	}
	if req.Locale != "" {
		renderer = renderer.WithLocale(req.Locale)
	}
	return renderer, nil
}

func (o *Orchestrator) build() error {
	table, err := aliases.New(o.aliasEntries)
	if err != nil {
		return fmt.Errorf("orchestrator: aliases: %w", err)
	}
	o.aliases = table

	engine := o.engine
	if engine == nil {
		pongo, err := o.buildPongo()
		if err != nil {
			return err
		}
		o.pongo = pongo
		engine = pongo
	}

	listeners := append([]webview.Listener(nil), o.listeners...)
	if o.metricsEnabled {
		listeners = append(listeners, metrics.New(o.metricsOptions...))
	}
	if o.collector != nil {
		listeners = append(listeners, o.collector)
	}

	view, err := webview.New(engine,
		webview.WithAliases(table),
		webview.WithDefaultExtension(o.extension),
		webview.WithFallbackExtension(o.fallbackExtension),
		webview.WithSourceLocale(o.sourceLocale),
		webview.WithTagPolicy(o.tagPolicy),
		webview.WithListeners(listeners...),
	)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	o.view = view

	refs, err := o.collectInjections(table)
	if err != nil {
		return err
	}

	opts := []render.Option{
		render.ViewPath(o.viewPath),
		render.Layout(o.layout),
		render.Locale(o.locale),
		render.Injections(refs...),
		render.WithAliases(table),
		render.WithResponseFactory(o.factory),
		render.WithLogger(o.logger),
		render.WithTracerProvider(o.tracerProvider),
	}
	if o.container != nil {
		opts = append(opts, render.WithContainer(o.container))
	}
	o.renderer = render.New(view, opts...)
	return nil
}

func (o *Orchestrator) buildPongo() (*gotemplate.Engine, error) {
	opts := []gotemplate.Option{gotemplate.WithExtension(o.extension)}
	switch {
	case o.templateFS != nil:
		opts = append(opts, gotemplate.WithFS(o.templateFS))
	case o.templateDir != "":
		opts = append(opts, gotemplate.WithBaseDir(o.templateDir))
	default:
		opts = append(opts, gotemplate.WithBaseDir("."))
	}
	if o.translator != nil {
		opts = append(opts, gotemplate.WithTemplateFunc(i18n.TemplateFuncs(o.translator, o.translatorConfig)))
	}
	opts = append(opts, gotemplate.WithTemplateFunc(o.funcs))

	engine, err := gotemplate.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: template engine: %w", err)
	}
	for _, name := range slices.Sorted(maps.Keys(o.filters)) {
		if err := engine.RegisterFilter(name, o.filters[name]); err != nil {
			return nil, fmt.Errorf("orchestrator: %w", err)
		}
	}
	if err := engine.GlobalContext(o.globals); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	return engine, nil
}

func (o *Orchestrator) collectInjections(table *aliases.Aliases) ([]injection.Ref, error) {
	refs := append([]injection.Ref(nil), o.injections...)
	for _, file := range o.staticFiles {
		resolved, err := table.Get(file)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: static injection %q: %w", file, err)
		}
		static, err := injection.LoadStatic(resolved)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: %w", err)
		}
		refs = append(refs, injection.Live(static))
	}
	if o.csrf != nil {
		refs = append(refs, injection.Live(o.csrf))
	}
	if o.theme != nil {
		refs = append(refs, injection.Live(o.theme))
	}
	return refs, nil
}
