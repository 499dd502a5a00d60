package render_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/goliatone/go-viewrender/pkg/aliases"
	"github.com/goliatone/go-viewrender/pkg/injection"
	"github.com/goliatone/go-viewrender/pkg/render"
	"github.com/goliatone/go-viewrender/pkg/tags"
	"github.com/goliatone/go-viewrender/pkg/testsupport"
	"github.com/goliatone/go-viewrender/pkg/webview"
)

var files = map[string]string{
	"/views/site/index.tpl":       "<b>{{ name }}</b>",
	"/views/site/de/index.tpl":    "<b>Hallo {{ name }}</b>",
	"/views/site/setter.tpl":      `{{ set_parameter("title", "From content") }}body`,
	"/views/layouts/main.tpl":     "<html><head>{{ meta|safe }}{{ links|safe }}</head><body>{{ content|safe }}</body></html>",
	"/views/layouts/title.tpl":    "<title>{{ title }}</title>{{ content|safe }}",
	"/views/layouts/legacy.html":  "[{{ content|safe }}]",
	"/views/layouts/locale.tpl":   "{{ locale }}:{{ content|safe }}",
	"/views/layouts/common.tpl":   "{{ brand }}|{{ content|safe }}",
	"/views/site/common.tpl":      "{{ brand }}",
	"/views/layouts/bodyonly.tpl": "{{ body_begin|safe }}{{ content|safe }}{{ body_end|safe }}",
}

type pageInjection struct {
	layoutCalls atomic.Int32
}

func (p *pageInjection) ContentParameters(context.Context) (map[string]any, error) {
	return map[string]any{"name": "donatello", "title": "Content title"}, nil
}

func (p *pageInjection) LayoutParameters(context.Context) (map[string]any, error) {
	p.layoutCalls.Add(1)
	return map[string]any{"title": "Layout title"}, nil
}

func (p *pageInjection) MetaTags(context.Context) ([]tags.Entry, error) {
	return []tags.Entry{
		{Key: "description", Value: map[string]any{"name": "description", "content": "turtles"}},
	}, nil
}

func (p *pageInjection) LinkTags(context.Context) ([]tags.Entry, error) {
	return []tags.Entry{
		{Key: "style", Value: tags.Stylesheet("/site.css")},
		{Value: map[string]any{"href": "/app.js", "rel": "preload", tags.PositionAttribute: int(tags.BodyEnd)}},
	}, nil
}

type charsetInjection struct{}

func (charsetInjection) MetaTags(context.Context) ([]tags.Entry, error) {
	return []tags.Entry{{Value: tags.Charset("utf-8")}}, nil
}

type faviconInjection struct{}

func (faviconInjection) LinkTags(context.Context) ([]tags.Entry, error) {
	return []tags.Entry{{Value: tags.Icon("/favicon.ico", "")}}, nil
}

type nameInjection string

func (n nameInjection) ContentParameters(context.Context) (map[string]any, error) {
	return map[string]any{"name": string(n)}, nil
}

type commonInjection struct{}

func (commonInjection) CommonParameters(context.Context) (map[string]any, error) {
	return map[string]any{"brand": "TMNT"}, nil
}

type badMetaInjection struct{}

func (badMetaInjection) MetaTags(context.Context) ([]tags.Entry, error) {
	return []tags.Entry{{Value: 42}}, nil
}

type failingInjection struct{}

func (failingInjection) ContentParameters(context.Context) (map[string]any, error) {
	return nil, errors.New("boom")
}

type countingListener struct {
	files []string
}

func (c *countingListener) AfterRender(_ context.Context, event webview.AfterRender) {
	c.files = append(c.files, event.File)
}

func newRenderer(t *testing.T, opts ...render.Option) *render.ViewRenderer {
	t.Helper()
	view := testsupport.NewWebView(t, files)
	base := []render.Option{render.ViewPath("/views/"), render.Layout("/views/layouts/main")}
	return render.New(view, append(base, opts...)...).WithControllerName("site")
}

func TestRenderAsString_LayoutParametersAndTags(t *testing.T) {
	renderer := newRenderer(t, render.Injections(injection.Live(&pageInjection{})))

	got, err := renderer.RenderAsString(context.Background(), "index", map[string]any{"name": "leonardo"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	want := `<html><head><meta name="description" content="turtles">` +
		`<link href="/site.css" rel="stylesheet"></head>` +
		`<body><b>leonardo</b></body></html>`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}

	got, err = renderer.RenderAsString(context.Background(), "index", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(got, "<b>donatello</b>") {
		t.Fatalf("expected injected parameter, got %q", got)
	}
}

func TestRenderAsString_SeparateInjections(t *testing.T) {
	renderer := newRenderer(t, render.Injections(
		injection.Live(charsetInjection{}),
		injection.Live(faviconInjection{}),
		injection.Live(nameInjection("leonardo")),
		injection.Live(nameInjection("mikey")),
	))

	got, err := renderer.RenderAsString(context.Background(), "index", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := `<html><head><meta charset="utf-8"><link href="/favicon.ico" rel="icon"></head>` +
		`<body><b>mikey</b></body></html>`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}

	got, err = renderer.RenderAsString(context.Background(), "index", map[string]any{"name": "donatello"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(got, "<body><b>donatello</b></body>") {
		t.Fatalf("call parameters should win over injections, got %q", got)
	}
}

func TestRenderAsString_BodyPositions(t *testing.T) {
	renderer := newRenderer(t, render.Injections(injection.Live(&pageInjection{}))).
		WithLayout("/views/layouts/bodyonly")

	got, err := renderer.RenderAsString(context.Background(), "index", map[string]any{"name": "april"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != `<b>april</b><link href="/app.js" rel="preload">` {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestRenderPartial_SkipsLayout(t *testing.T) {
	page := &pageInjection{}
	renderer := newRenderer(t, render.Injections(injection.Live(page)))

	got, err := renderer.RenderPartialAsString(context.Background(), "index", map[string]any{"name": "raphael"})
	if err != nil {
		t.Fatalf("render partial: %v", err)
	}
	if got != "<b>raphael</b>" {
		t.Fatalf("unexpected output %q", got)
	}
	if calls := page.layoutCalls.Load(); calls != 0 {
		t.Fatalf("layout parameters collected %d times for a partial", calls)
	}

	got, err = renderer.WithLayout("").RenderAsString(context.Background(), "index", map[string]any{"name": "casey"})
	if err != nil {
		t.Fatalf("render without layout: %v", err)
	}
	if got != "<b>casey</b>" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestRender_LayoutParametersDoNotOverrideViewParameters(t *testing.T) {
	renderer := newRenderer(t, render.Injections(injection.Live(&pageInjection{}))).
		WithLayout("/views/layouts/title")

	got, err := renderer.RenderAsString(context.Background(), "setter", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "<title>From content</title>body" {
		t.Fatalf("expected view parameter to win, got %q", got)
	}

	got, err = renderer.RenderAsString(context.Background(), "index", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "<title>Layout title</title><b>donatello</b>" {
		t.Fatalf("expected layout parameter, got %q", got)
	}
}

func TestRender_CommonParametersReachViewAndLayout(t *testing.T) {
	renderer := newRenderer(t, render.Injections(injection.Live(commonInjection{}))).
		WithLayout("/views/layouts/common")

	got, err := renderer.RenderAsString(context.Background(), "common", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "TMNT|TMNT" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestRender_IsDeferredAndMemoized(t *testing.T) {
	listener := &countingListener{}
	view := testsupport.NewWebView(t, files, webview.WithListeners(listener))
	renderer := render.New(view, render.ViewPath("/views")).WithControllerName("site")

	resp, err := renderer.RenderPartial(context.Background(), "index", map[string]any{"name": "splinter"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(listener.files) != 0 {
		t.Fatalf("rendered before the body was read: %v", listener.files)
	}

	for i := 0; i < 3; i++ {
		body, err := resp.Body(context.Background())
		if err != nil {
			t.Fatalf("body: %v", err)
		}
		if body != "<b>splinter</b>" {
			t.Fatalf("unexpected body %q", body)
		}
	}
	if diff := cmp.Diff([]string{"/views/site/index.tpl"}, listener.files); diff != "" {
		t.Fatalf("render count mismatch (-want +got):\n%s", diff)
	}
}

func TestRender_ParametersAreCapturedByValue(t *testing.T) {
	renderer := newRenderer(t)
	values := map[string]any{"name": "shredder"}

	resp, err := renderer.RenderPartial(context.Background(), "index", values)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	values["name"] = "krang"

	body, err := resp.Body(context.Background())
	if err != nil {
		t.Fatalf("body: %v", err)
	}
	if body != "<b>shredder</b>" {
		t.Fatalf("expected captured parameters, got %q", body)
	}
}

func TestRender_TagErrorsSurfaceOnBody(t *testing.T) {
	renderer := newRenderer(t, render.Injections(injection.Live(badMetaInjection{})))

	resp, err := renderer.Render(context.Background(), "index", nil)
	if err != nil {
		t.Fatalf("render should defer tag validation: %v", err)
	}
	_, err = resp.Body(context.Background())
	var metaErr *tags.InvalidMetaTagError
	if !errors.As(err, &metaErr) {
		t.Fatalf("expected InvalidMetaTagError, got %v", err)
	}
}

func TestRender_InjectionErrorsAreEager(t *testing.T) {
	renderer := newRenderer(t, render.Injections(injection.Live(failingInjection{})))
	if _, err := renderer.Render(context.Background(), "index", nil); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected injection error, got %v", err)
	}

	lazy := newRenderer(t, render.Injections(injection.Lazy("page")))
	_, err := lazy.Render(context.Background(), "index", nil)
	if !errors.Is(err, injection.ErrContainerNotSet) {
		t.Fatalf("expected ErrContainerNotSet, got %v", err)
	}
}

func TestRender_LazyInjectionsFromContainer(t *testing.T) {
	registry := injection.NewRegistry()
	registry.MustRegister("page", &pageInjection{})

	renderer := newRenderer(t,
		render.Injections(injection.Lazy("page")),
		render.WithContainer(registry),
	)

	got, err := renderer.RenderPartialAsString(context.Background(), "index", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "<b>donatello</b>" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestRender_LayoutSpecificInjections(t *testing.T) {
	scoped := injection.ForLayout("/views/layouts/title", commonInjection{}, &pageInjection{})
	renderer := newRenderer(t, render.Injections(injection.Live(scoped)))

	got, err := renderer.WithLayout("/views/layouts/title").RenderAsString(context.Background(), "index", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "<title>Layout title</title><b>donatello</b>" {
		t.Fatalf("unexpected output %q", got)
	}

	got, err = renderer.RenderPartialAsString(context.Background(), "index", map[string]any{"name": "x"})
	if err != nil {
		t.Fatalf("render partial: %v", err)
	}
	if got != "<b>x</b>" {
		t.Fatalf("scoped injection leaked into partial: %q", got)
	}
}

func TestRender_ViewPathNotSet(t *testing.T) {
	renderer := render.New(testsupport.NewWebView(t, files))

	_, err := renderer.RenderPartialAsString(context.Background(), "index", nil)
	if !errors.Is(err, render.ErrViewPathNotSet) {
		t.Fatalf("expected ErrViewPathNotSet, got %v", err)
	}

	got, err := renderer.RenderPartialAsString(context.Background(), "/views/site/index", map[string]any{"name": "abs"})
	if err != nil {
		t.Fatalf("absolute view should not need a view path: %v", err)
	}
	if got != "<b>abs</b>" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestRender_Locale(t *testing.T) {
	renderer := newRenderer(t).WithLayout("/views/layouts/locale").WithLocale("de_DE")

	got, err := renderer.RenderAsString(context.Background(), "index", map[string]any{"name": "Welt"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "de_DE:<b>Hallo Welt</b>" {
		t.Fatalf("unexpected output %q", got)
	}

	_, err = renderer.WithLocale("not a locale!").Render(context.Background(), "index", nil)
	var localeErr *render.LocaleError
	if !errors.As(err, &localeErr) {
		t.Fatalf("expected LocaleError, got %v", err)
	}
}

func TestRender_LayoutFallbackExtension(t *testing.T) {
	renderer := newRenderer(t).WithLayout("/views/layouts/legacy")

	got, err := renderer.RenderAsString(context.Background(), "index", map[string]any{"name": "bebop"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "[<b>bebop</b>]" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestRender_Idempotent(t *testing.T) {
	renderer := newRenderer(t, render.Injections(injection.Live(&pageInjection{})))

	first, err := renderer.RenderAsString(context.Background(), "index", nil)
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	second, err := renderer.RenderAsString(context.Background(), "index", nil)
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("renders differ (-first +second):\n%s", diff)
	}
}

func TestWithMethods_ReturnCopies(t *testing.T) {
	original := newRenderer(t)

	changed := original.WithLayout("").
		WithLocale("fr").
		WithControllerName("other").
		WithInjections(injection.Live(commonInjection{}))

	if original.Layout() != "/views/layouts/main" || original.Locale() != "" || original.ControllerName() != "site" {
		t.Fatalf("original renderer was modified")
	}
	if len(original.Injections()) != 0 {
		t.Fatalf("original injections were modified")
	}
	if changed.Layout() != "" || changed.Locale() != "fr" || changed.ControllerName() != "other" {
		t.Fatalf("unexpected copy state")
	}

	added := changed.WithAddedInjections(injection.Lazy("x"))
	if len(added.Injections()) != 2 || len(changed.Injections()) != 1 {
		t.Fatalf("WithAddedInjections should append to a copy")
	}
}

func TestViewPath(t *testing.T) {
	table := aliases.MustNew(map[string]string{"@views": "/srv/views"})
	view := testsupport.NewWebView(t, files)

	for _, tc := range []struct {
		name     string
		renderer *render.ViewRenderer
		want     string
	}{
		{name: "trailing slash", renderer: render.New(view).WithViewPath("/dir/"), want: "/dir"},
		{name: "alias", renderer: render.New(view, render.WithAliases(table), render.ViewPath("@views/")), want: "/srv/views"},
		{name: "controller", renderer: render.New(view, render.ViewPath("/dir")).WithControllerName("/blog/"), want: "/dir/blog"},
		{name: "root", renderer: render.New(view, render.ViewPath("/")).WithControllerName("x"), want: "/x"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.renderer.ViewPath()
			if err != nil {
				t.Fatalf("view path: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}

	withController, err := render.New(view, render.ViewPath("/dir")).WithController(&FakeController{})
	if err != nil {
		t.Fatalf("with controller: %v", err)
	}
	if got, _ := withController.ViewPath(); got != "/dir/fake" {
		t.Fatalf("expected /dir/fake, got %q", got)
	}
	if _, err := render.New(view).WithController(FakeCntrl{}); err == nil {
		t.Fatalf("expected controller name error")
	}
}

func TestWithAliases_TypedNilKeepsDefault(t *testing.T) {
	var table *aliases.Aliases
	view := testsupport.NewWebView(t, files)
	renderer := render.New(view, render.WithAliases(table), render.ViewPath("/views")).WithControllerName("site")

	got, err := renderer.ViewPath()
	if err != nil {
		t.Fatalf("view path: %v", err)
	}
	if got != "/views/site" {
		t.Fatalf("expected /views/site, got %q", got)
	}
	out, err := renderer.RenderPartialAsString(context.Background(), "index", map[string]any{"name": "casey"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "<b>casey</b>" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestResolveLayoutFile(t *testing.T) {
	view := testsupport.NewWebView(t, files)
	renderer := render.New(view, render.WithAliases(aliases.MustNew(map[string]string{"@layout": "/views/layouts"})))

	for _, tc := range []struct {
		layout string
		want   string
	}{
		{layout: "@layout/main", want: "/views/layouts/main.tpl"},
		{layout: "@layout/legacy", want: "/views/layouts/legacy.html"},
		{layout: "@layout/main.php", want: "/views/layouts/main.php"},
		{layout: "/views/layouts/missing", want: "/views/layouts/missing.html"},
	} {
		got, err := renderer.ResolveLayoutFile(tc.layout, view)
		if err != nil {
			t.Fatalf("resolve %q: %v", tc.layout, err)
		}
		if got != tc.want {
			t.Fatalf("resolve %q: expected %q, got %q", tc.layout, tc.want, got)
		}
	}

	if _, err := renderer.ResolveLayoutFile("@unknown/main", view); err == nil {
		t.Fatalf("expected unknown alias error")
	}
}

func TestRender_LoggingAndTracing(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})

	renderer := newRenderer(t,
		render.WithLogger(logger),
		render.WithTracerProvider(noop.NewTracerProvider()),
	)
	if _, err := renderer.RenderPartialAsString(context.Background(), "missing", nil); err == nil {
		t.Fatalf("expected missing template error")
	}
	if !strings.Contains(buf.String(), "render prepared") || !strings.Contains(buf.String(), "render failed") {
		t.Fatalf("expected debug logs, got %q", buf.String())
	}
}

func TestRender_RejectsNamesOutsideViewPath(t *testing.T) {
	base := newRenderer(t)

	for _, tc := range []struct {
		name     string
		renderer *render.ViewRenderer
		view     string
	}{
		{name: "controller", renderer: base.WithControllerName("site/../.."), view: "index"},
		{name: "view", renderer: base, view: "../../secret"},
		{name: "backslash view", renderer: base, view: `..\secret`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.renderer.Render(context.Background(), tc.view, nil)
			var pathErr *render.PathError
			if !errors.As(err, &pathErr) {
				t.Fatalf("expected PathError, got %v", err)
			}
			if !errors.Is(err, webview.ErrOutsideViewPath) {
				t.Fatalf("expected ErrOutsideViewPath in chain, got %v", err)
			}
		})
	}

	if _, err := base.WithControllerName("../admin").ViewPath(); !errors.Is(err, webview.ErrOutsideViewPath) {
		t.Fatalf("expected view path to reject controller, got %v", err)
	}

	got, err := base.RenderPartialAsString(context.Background(), "/views/site/index", map[string]any{"name": "splinter"})
	if err != nil {
		t.Fatalf("absolute view: %v", err)
	}
	if got != "<b>splinter</b>" {
		t.Fatalf("unexpected output %q", got)
	}
}
