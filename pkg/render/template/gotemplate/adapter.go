// Package gotemplate renders view files with pongo2.
package gotemplate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-viewrender/pkg/render/template"
	"github.com/goliatone/go-viewrender/pkg/webview"
)

// Option configures the engine before construction.
type Option func(*config)

type config struct {
	baseDir   string
	files     fs.FS
	extension string
	funcs     map[string]any
}

// WithBaseDir loads templates from a directory on disk. Absolute template
// names are used as is.
func WithBaseDir(dir string) Option {
	return func(cfg *config) {
		cfg.baseDir = strings.TrimSpace(dir)
	}
}

// WithFS loads templates from an fs.FS. Names are made relative to the FS
// root, so "/views/site/index.tpl" and "views/site/index.tpl" are the same
// file.
func WithFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.files = files
	}
}

// WithExtension sets the extension appended to names without one.
func WithExtension(ext string) Option {
	return func(cfg *config) {
		if ext = strings.TrimSpace(ext); ext != "" {
			cfg.extension = "." + strings.TrimPrefix(ext, ".")
		}
	}
}

// WithTemplateFunc exposes functions to every template as globals. Values
// that are not functions are ignored.
func WithTemplateFunc(funcs map[string]any) Option {
	return func(cfg *config) {
		for name, fn := range funcs {
			name = strings.TrimSpace(name)
			if name == "" || !isFunc(fn) {
				continue
			}
			if cfg.funcs == nil {
				cfg.funcs = make(map[string]any, len(funcs))
			}
			cfg.funcs[name] = fn
		}
	}
}

// Engine renders view files through a pongo2 template set. Parsed templates
// are cached by file name until Reset or Invalidate.
type Engine struct {
	mu      sync.RWMutex
	set     *pongo2.TemplateSet
	cache   map[string]*pongo2.Template
	ext     string
	baseDir string
	files   fs.FS
}

var (
	_ template.Resettable = (*Engine)(nil)
	_ webview.Engine      = (*Engine)(nil)
	_ webview.FileChecker = (*Engine)(nil)
)

// New builds an engine. Either WithBaseDir or WithFS is required; with both,
// the directory is searched first.
func New(options ...Option) (*Engine, error) {
	cfg := &config{extension: ".tpl"}
	for _, opt := range options {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.baseDir == "" && cfg.files == nil {
		return nil, errors.New("gotemplate: a base dir or an fs.FS is required")
	}

	var loaders []pongo2.TemplateLoader
	if cfg.baseDir != "" {
		loader, err := pongo2.NewLocalFileSystemLoader(cfg.baseDir)
		if err != nil {
			return nil, fmt.Errorf("gotemplate: local loader: %w", err)
		}
		loaders = append(loaders, loader)
	}
	if cfg.files != nil {
		loaders = append(loaders, pongo2.NewFSLoader(cfg.files))
	}

	set := pongo2.NewSet("viewrender", loaders...)
	set.Globals = make(pongo2.Context, len(cfg.funcs))
	for name, fn := range cfg.funcs {
		set.Globals[name] = fn
	}

	return &Engine{
		set:     set,
		cache:   make(map[string]*pongo2.Template),
		ext:     cfg.extension,
		baseDir: cfg.baseDir,
		files:   cfg.files,
	}, nil
}

// RenderTemplate renders the file name with data and copies the output to
// every writer in out.
func (e *Engine) RenderTemplate(name string, data any, out ...io.Writer) (string, error) {
	if e == nil || e.set == nil {
		return "", errors.New("gotemplate: engine is nil")
	}
	file := e.fileName(name)
	tmpl, err := e.load(file)
	if err != nil {
		return "", err
	}
	ctx, err := toContext(data)
	if err != nil {
		return "", fmt.Errorf("gotemplate: %s: %w", file, err)
	}

	var buf bytes.Buffer
	e.mu.RLock()
	err = tmpl.ExecuteWriter(ctx, &buf)
	e.mu.RUnlock()
	if err != nil {
		return "", fmt.Errorf("gotemplate: execute %q: %w", file, err)
	}

	rendered := buf.String()
	for _, w := range out {
		if _, err := io.WriteString(w, rendered); err != nil {
			return "", err
		}
	}
	return rendered, nil
}

// Exists reports whether name is a file in one of the loaders.
func (e *Engine) Exists(name string) bool {
	if e == nil {
		return false
	}
	file := e.fileName(name)
	if e.baseDir != "" {
		candidate := filepath.FromSlash(file)
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(e.baseDir, candidate)
		}
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return true
		}
	}
	if e.files != nil {
		if info, err := fs.Stat(e.files, strings.TrimPrefix(path.Clean("/"+file), "/")); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// Reset drops every parsed template.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.cache)
}

// Invalidate drops the parsed templates whose file is name or ends in
// "/"+name. Names without an extension get the default one.
func (e *Engine) Invalidate(name string) {
	target := path.Clean("/" + filepath.ToSlash(e.fileName(name)))
	e.mu.Lock()
	defer e.mu.Unlock()
	for file := range e.cache {
		cached := path.Clean("/" + filepath.ToSlash(file))
		if cached == target || strings.HasSuffix(cached, target) {
			delete(e.cache, file)
		}
	}
}

// Filter is a pongo2 filter over plain values.
type Filter func(input any, param any) (any, error)

// pongo2 filters are process wide; names registered here may be replaced,
// built-in ones may not.
var ownFilters sync.Map

// RegisterFilter makes fn available as {{ value|name }}. Registering a name
// again replaces the filter; names of pongo2 built-ins are rejected.
func (e *Engine) RegisterFilter(name string, fn Filter) error {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return errors.New("gotemplate: filter name and function required")
	}
	filter := func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		var arg any
		if param != nil {
			arg = param.Interface()
		}
		result, err := fn(in.Interface(), arg)
		if err != nil {
			return nil, &pongo2.Error{Sender: "filter:" + name, OrigError: err}
		}
		return pongo2.AsValue(result), nil
	}

	if !pongo2.FilterExists(name) {
		ownFilters.Store(name, struct{}{})
		return pongo2.RegisterFilter(name, filter)
	}
	if _, ok := ownFilters.Load(name); !ok {
		return fmt.Errorf("gotemplate: filter %q is a pongo2 built-in", name)
	}
	return pongo2.ReplaceFilter(name, filter)
}

// GlobalContext adds values visible to every template of this engine. Later
// calls override earlier keys; render data overrides globals.
func (e *Engine) GlobalContext(values map[string]any) error {
	if e == nil || e.set == nil {
		return errors.New("gotemplate: engine is nil")
	}
	ctx, err := toContext(values)
	if err != nil {
		return fmt.Errorf("gotemplate: globals: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.set.Globals.Update(ctx)
	return nil
}

// fileName adds the default extension and, for FS-only engines, strips the
// leading slash.
func (e *Engine) fileName(name string) string {
	if path.Ext(name) == "" {
		name += e.ext
	}
	if e.files != nil && e.baseDir == "" {
		name = strings.TrimPrefix(path.Clean("/"+name), "/")
	}
	return name
}

func (e *Engine) load(file string) (*pongo2.Template, error) {
	e.mu.RLock()
	tmpl, ok := e.cache[file]
	e.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if tmpl, ok := e.cache[file]; ok {
		return tmpl, nil
	}
	tmpl, err := e.set.FromFile(file)
	if err != nil {
		return nil, fmt.Errorf("gotemplate: load %q: %w", file, err)
	}
	e.cache[file] = tmpl
	return tmpl, nil
}

// toContext copies data into a pongo2 context. Scalars, functions and
// fmt.Stringers are kept; other values go through JSON so templates can
// index them by field name.
func toContext(data any) (pongo2.Context, error) {
	var in map[string]any
	switch v := data.(type) {
	case nil:
		return pongo2.Context{}, nil
	case pongo2.Context:
		in = v
	case map[string]any:
		in = v
	default:
		decoded, err := viaJSON(v)
		if err != nil {
			return nil, err
		}
		m, ok := decoded.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected an object, got %T", data)
		}
		in = m
	}

	out := make(pongo2.Context, len(in))
	for key, value := range in {
		if key = strings.TrimSpace(key); key == "" {
			continue
		}
		converted, err := toValue(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = converted
	}
	return out, nil
}

func toValue(value any) (any, error) {
	if value == nil || isFunc(value) {
		return value, nil
	}
	switch v := value.(type) {
	case string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64,
		*pongo2.Value, fmt.Stringer:
		return v, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			converted, err := toValue(item)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			converted, err := toValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	}
	return viaJSON(value)
}

func viaJSON(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func isFunc(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}
