package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-viewrender/internal/config"
)

type scriptedPrompter struct {
	inputs   []string
	confirms []bool
}

func (p *scriptedPrompter) Input(_ context.Context, cfg InputConfig) (string, error) {
	if len(p.inputs) == 0 {
		return "", ErrAborted
	}
	answer := p.inputs[0]
	p.inputs = p.inputs[1:]
	if cfg.Validator != nil {
		if err := cfg.Validator(answer); err != nil {
			return "", err
		}
	}
	return answer, nil
}

func (p *scriptedPrompter) Confirm(context.Context, ConfirmConfig) (bool, error) {
	if len(p.confirms) == 0 {
		return false, nil
	}
	answer := p.confirms[0]
	p.confirms = p.confirms[1:]
	return answer, nil
}

func execute(t *testing.T, prompter PromptDriver, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	if prompter != nil {
		a.prompter = prompter
	}
	root := newRootCommand(a)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRenderCommand(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		prompter    PromptDriver
		expectError bool
		contains    []string
		excludes    []string
	}{
		{
			name:     "layout and parameters",
			args:     []string{"render", "index", "name=Ada", "--controller", "site", "--embedded"},
			contains: []string{"<title>Welcome</title>", "<h1>Hello Ada</h1>"},
		},
		{
			name:     "partial",
			args:     []string{"render", "about", "--controller", "site", "--partial", "--embedded"},
			contains: []string{"<p>Rendered by viewrender.</p>"},
			excludes: []string{"<html"},
		},
		{
			name:     "alias view with locale",
			args:     []string{"render", "@views/site/index", "--locale", "de_DE", "--embedded"},
			contains: []string{`<html lang="de_DE">`},
		},
		{
			name: "interactive",
			args: []string{"render", "--interactive", "--embedded", "--controller", "site"},
			prompter: &scriptedPrompter{
				inputs:   []string{"index", "name", "Grace"},
				confirms: []bool{true, false},
			},
			contains: []string{"<h1>Hello Grace</h1>"},
		},
		{
			name:        "missing view",
			args:        []string{"render", "--embedded"},
			expectError: true,
		},
		{
			name:        "malformed parameter",
			args:        []string{"render", "index", "=Ada", "--embedded"},
			expectError: true,
		},
		{
			name:        "invalid locale",
			args:        []string{"render", "index", "--controller", "site", "--locale", "not a locale!", "--embedded"},
			expectError: true,
		},
		{
			name:        "invalid log level",
			args:        []string{"render", "index", "--log-level", "loud", "--embedded"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.prompter, tt.args...)

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, out, unwanted)
			}
		})
	}
}

func TestRenderCommand_OutputFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out.html")

	out, err := execute(t, nil, "render", "index", "--controller", "site", "--embedded", "-o", target)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<h1>Hello world</h1>")
}

func TestRenderCommand_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "views", "blog"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "views", "blog", "post.tpl"), []byte("<article>{{ title }}|{{ site }}</article>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "views", "frame.html"), []byte("[{{ content|safe }}]"), 0o600))
	cfgFile := filepath.Join(dir, "viewrender.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
layout: "@views/frame"
templates:
  dir: `+dir+`
  globals:
    site: Raccoon Weekly
aliases:
  "@root": `+dir+`
`), 0o600))

	out, err := execute(t, nil, "--config", cfgFile, "render", "post", "title=Hi", "--controller", "blog")
	require.NoError(t, err)
	assert.Equal(t, "[<article>Hi|Raccoon Weekly</article>]\n", out)
}

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *httptest.Server {
	t.Helper()
	t.Chdir(t.TempDir())

	cfg, err := config.Load(config.New(""))
	require.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
	}

	a := newApp(io.Discard, io.Discard)
	a.cfg = cfg
	a.embedded = true

	srv, err := a.newServer()
	require.NoError(t, err)
	srv.collector.Startup()

	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServe_Routes(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := get(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)

	resp, body = get(t, ts.URL+"/views/site/index?name=Ada")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "<h1>Hello Ada</h1>")
	assert.Contains(t, body, "<title>Welcome</title>")

	resp, body = get(t, ts.URL+"/views/site/about?partial=1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "<html")

	resp, _ = get(t, ts.URL+"/views/site/missing")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, _ = get(t, ts.URL+"/views/site/index?locale=not_a_locale!")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, body = get(t, ts.URL+"/metrics")
	assert.Contains(t, body, `viewrender_renders_total{file="site/index",status="success"} 1`)
	assert.Contains(t, body, `viewrender_renders_total{file="layouts/main",status="success"} 1`)

	_, body = get(t, ts.URL+"/debug/renders")
	assert.True(t, strings.HasPrefix(body, "/views/site/index.tpl\n/views/layouts/main.tpl\n"), body)
}

func TestServe_CSRF(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Injections.CSRF.Enabled = true
	})

	resp, body := get(t, ts.URL+"/views/site/index")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var token string
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "_csrf" {
			token = cookie.Value
		}
	}
	require.NotEmpty(t, token)
	assert.Contains(t, body, `<meta name="csrf" content="`+token+`">`)
}

func TestServe_RejectsPathsOutsideViews(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.MkdirAll(filepath.Join("views", "site"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("views", "site", "index.tpl"), []byte("<h1>{{ name }}</h1>"), 0o600))
	require.NoError(t, os.WriteFile("secret.txt", []byte("TOP-SECRET"), 0o600))

	cfg, err := config.Load(config.New(""))
	require.NoError(t, err)
	a := newApp(io.Discard, io.Discard)
	a.cfg = cfg

	srv, err := a.newServer()
	require.NoError(t, err)
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)

	resp, body := get(t, ts.URL+"/views/site/index?partial=1&name=Ada")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<h1>Ada</h1>", body)

	for _, target := range []string{
		"/views/site/../../secret.txt?partial=1",
		"/views/site/%2e%2e/%2e%2e/secret.txt?partial=1",
		"/views/../secret.txt?partial=1",
		"/views/site//index?partial=1",
	} {
		resp, body := get(t, ts.URL+target)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, target)
		assert.NotContains(t, body, "TOP-SECRET", target)
	}
}
