package template_test

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-viewrender/pkg/render/template/gotemplate"
	"github.com/goliatone/go-viewrender/pkg/testsupport"
)

var templates = map[string]string{
	"hello.tpl":            "Hello {{ name }}!",
	"use-global.tpl":       "env={{ settings.env }}",
	"use-filter.tpl":       "{{ name|shout }}",
	"views/site/index.tpl": "<b>{{ name }}</b>",
	"views/site/page.html": "<i>{{ name }}</i>",
	"views/site/call.tpl":  `{{ set_title("Welcome") }}{{ name }}`,
}

func TestGoTemplateEngine_RenderTemplate(t *testing.T) {
	engine := testsupport.NewEngine(t, templates)

	result, written := testsupport.CaptureTemplateOutput(t, func(w io.Writer) (string, error) {
		return engine.RenderTemplate("hello", map[string]any{"name": "Ada"}, w)
	})

	want := "Hello Ada!"
	if result != want {
		t.Fatalf("render template mismatch result\nwant: %q\n got: %q", want, result)
	}
	if written != want {
		t.Fatalf("render template mismatch writer\nwant: %q\n got: %q", want, written)
	}
}

func TestGoTemplateEngine_AbsoluteNamesAndExplicitExtension(t *testing.T) {
	engine := testsupport.NewEngine(t, templates)

	got, err := engine.RenderTemplate("/views/site/index.tpl", map[string]any{"name": "leonardo"})
	if err != nil {
		t.Fatalf("render absolute: %v", err)
	}
	if got != "<b>leonardo</b>" {
		t.Fatalf("unexpected output %q", got)
	}

	got, err = engine.RenderTemplate("views/site/page.html", map[string]any{"name": "donatello"})
	if err != nil {
		t.Fatalf("render html: %v", err)
	}
	if got != "<i>donatello</i>" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestGoTemplateEngine_Exists(t *testing.T) {
	engine := testsupport.NewEngine(t, templates)

	cases := map[string]bool{
		"hello":                 true,
		"/views/site/index.tpl": true,
		"/views/site/page.html": true,
		"/views/site/page":      false,
		"missing.tpl":           false,
	}
	for name, want := range cases {
		if got := engine.Exists(name); got != want {
			t.Fatalf("Exists(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestGoTemplateEngine_BaseDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "disk.tpl"), []byte("disk {{ n }}"), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	engine, err := gotemplate.New(gotemplate.WithBaseDir(dir))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	got, err := engine.RenderTemplate(filepath.Join(dir, "disk"), map[string]any{"n": 3})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "disk 3" {
		t.Fatalf("unexpected output %q", got)
	}
	if !engine.Exists("disk") || !engine.Exists(filepath.Join(dir, "disk.tpl")) {
		t.Fatalf("expected template to exist")
	}
}

func TestGoTemplateEngine_ResetReloads(t *testing.T) {
	files := testsupport.MapFS(map[string]string{"page.tpl": "v1"})
	engine, err := gotemplate.New(gotemplate.WithFS(files))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	first, err := engine.RenderTemplate("page", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	files["page.tpl"].Data = []byte("v2")

	cached, _ := engine.RenderTemplate("page", nil)
	if cached != first {
		t.Fatalf("expected cached template, got %q", cached)
	}

	engine.Invalidate("page")
	reloaded, _ := engine.RenderTemplate("page", nil)
	if reloaded != "v2" {
		t.Fatalf("expected reloaded template, got %q", reloaded)
	}

	files["page.tpl"].Data = []byte("v3")
	engine.Reset()
	if got, _ := engine.RenderTemplate("page", nil); got != "v3" {
		t.Fatalf("expected reset to reload, got %q", got)
	}
}

func TestGoTemplateEngine_GlobalContext(t *testing.T) {
	engine := testsupport.NewEngine(t, templates)
	if err := engine.GlobalContext(map[string]any{
		"settings": map[string]any{"env": "staging"},
	}); err != nil {
		t.Fatalf("global context: %v", err)
	}

	result, err := engine.RenderTemplate("use-global", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if result != "env=staging" {
		t.Fatalf("unexpected output %q", result)
	}
}

func TestGoTemplateEngine_RegisterFilter(t *testing.T) {
	engine := testsupport.NewEngine(t, templates)
	shout := func(input any, _ any) (any, error) {
		if input == nil {
			return "", nil
		}
		return fmt.Sprintf("%s!", strings.ToUpper(fmt.Sprint(input))), nil
	}
	if err := engine.RegisterFilter("shout", shout); err != nil {
		t.Fatalf("register filter: %v", err)
	}

	result, err := engine.RenderTemplate("use-filter", map[string]any{"name": "Ada"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if result != "ADA!" {
		t.Fatalf("unexpected output %q", result)
	}

	// A second engine may register the same name; it replaces the filter.
	other := testsupport.NewEngine(t, templates)
	if err := other.RegisterFilter("shout", func(input any, _ any) (any, error) {
		return fmt.Sprint(input) + "?", nil
	}); err != nil {
		t.Fatalf("replace filter: %v", err)
	}
	other.Reset()
	if got, _ := other.RenderTemplate("use-filter", map[string]any{"name": "Ada"}); got != "Ada?" {
		t.Fatalf("expected replaced filter, got %q", got)
	}

	if err := engine.RegisterFilter("upper", shout); err == nil {
		t.Fatalf("expected built-in filter to be rejected")
	}
	if err := engine.RegisterFilter(" ", shout); err == nil {
		t.Fatalf("expected empty name to be rejected")
	}
}

func TestGoTemplateEngine_CallablesPassThrough(t *testing.T) {
	engine := testsupport.NewEngine(t, templates)
	var title string

	result, err := engine.RenderTemplate("views/site/call", map[string]any{
		"name": "raphael",
		"set_title": func(v string) string {
			title = v
			return ""
		},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if result != "raphael" || title != "Welcome" {
		t.Fatalf("unexpected output %q title %q", result, title)
	}
}

func TestGoTemplateEngine_InvalidateMatchesRelativePaths(t *testing.T) {
	files := testsupport.MapFS(map[string]string{
		"views/site/index.tpl":    "index v1",
		"views/site/about.tpl":    "about v1",
		"views/oldsite/index.tpl": "old v1",
	})
	engine, err := gotemplate.New(gotemplate.WithFS(files))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	for _, name := range []string{"/views/site/index", "/views/site/about", "/views/oldsite/index"} {
		if _, err := engine.RenderTemplate(name, nil); err != nil {
			t.Fatalf("render %s: %v", name, err)
		}
	}
	for name, file := range files {
		file.Data = []byte(strings.Replace(string(file.Data), "v1", "v2", 1))
		files[name] = file
	}

	engine.Invalidate("site/index.tpl")

	want := map[string]string{
		"/views/site/index":    "index v2",
		"/views/site/about":    "about v1",
		"/views/oldsite/index": "old v1",
	}
	for name, expected := range want {
		got, err := engine.RenderTemplate(name, nil)
		if err != nil {
			t.Fatalf("render %s: %v", name, err)
		}
		if got != expected {
			t.Fatalf("%s: expected %q, got %q", name, expected, got)
		}
	}
}
