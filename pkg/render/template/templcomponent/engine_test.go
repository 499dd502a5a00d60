package templcomponent

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/a-h/templ"

	"github.com/goliatone/go-viewrender/pkg/webview"
)

func greeting(params map[string]any) (templ.Component, error) {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<b>"+Text(params, "name")+"</b>")
		return err
	}), nil
}

func layout(params map[string]any) (templ.Component, error) {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<main>"); err != nil {
			return err
		}
		if err := Raw(params, "content").Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</main>")
		return err
	}), nil
}

func TestEngine_RenderTemplate(t *testing.T) {
	engine := New()
	engine.MustRegister("views/site/index", greeting)

	got, err := engine.RenderTemplate("/views/site/index.templ", map[string]any{"name": "<donatello>"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if want := "<b>&lt;donatello&gt;</b>"; got != want {
		t.Fatalf("render mismatch\nwant: %q\n got: %q", want, got)
	}
}

func TestEngine_ExistsAndList(t *testing.T) {
	engine := New()
	engine.MustRegister("views/site/index", greeting)
	if err := engine.Static("views/layouts/empty", templ.Raw("")); err != nil {
		t.Fatalf("static: %v", err)
	}

	if !engine.Exists("/views/site/index.templ") || engine.Exists("views/site/other") {
		t.Fatalf("unexpected Exists results")
	}
	if got := strings.Join(engine.List(), ","); got != "views/layouts/empty,views/site/index" {
		t.Fatalf("unexpected list %q", got)
	}
	if err := engine.Register("views/site/index.templ", greeting); err == nil {
		t.Fatalf("expected duplicate error")
	}
}

func TestEngine_Errors(t *testing.T) {
	engine := New()
	if _, err := engine.RenderTemplate("missing", nil); err == nil {
		t.Fatalf("expected missing component error")
	}
	engine.MustRegister("typed", greeting)
	if _, err := engine.RenderTemplate("typed", struct{}{}); err == nil {
		t.Fatalf("expected parameter type error")
	}
}

func TestEngine_WithWebView(t *testing.T) {
	engine := New()
	engine.MustRegister("views/site/index", greeting)
	engine.MustRegister("views/layouts/main", layout)

	view, err := webview.New(engine, webview.WithDefaultExtension("templ"), webview.WithBasePath("/views/site"))
	if err != nil {
		t.Fatalf("new webview: %v", err)
	}

	content, err := view.Render(context.Background(), "index", map[string]any{"name": "leonardo"})
	if err != nil {
		t.Fatalf("render content: %v", err)
	}
	got, err := view.RenderFile(context.Background(), "/views/layouts/main.templ", map[string]any{"content": content})
	if err != nil {
		t.Fatalf("render layout: %v", err)
	}
	if want := "<main><b>leonardo</b></main>"; got != want {
		t.Fatalf("render mismatch\nwant: %q\n got: %q", want, got)
	}
}
