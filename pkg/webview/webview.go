package webview

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/goliatone/go-viewrender/pkg/aliases"
	"github.com/goliatone/go-viewrender/pkg/params"
	"github.com/goliatone/go-viewrender/pkg/tags"
)

// Option configures a WebView.
type Option func(*WebView)

// WithAliases expands view names starting with "@".
func WithAliases(resolver aliases.Resolver) Option {
	return func(w *WebView) {
		w.aliases = resolver
	}
}

// WithBasePath sets the directory relative view names resolve against when
// the view has no Context.
func WithBasePath(dir string) Option {
	return func(w *WebView) {
		w.basePath = strings.TrimRight(strings.TrimSpace(dir), "/")
	}
}

// WithDefaultExtension sets the extension appended to view names without one.
func WithDefaultExtension(ext string) Option {
	return func(w *WebView) {
		if ext = strings.TrimPrefix(strings.TrimSpace(ext), "."); ext != "" {
			w.defaultExt = ext
		}
	}
}

// WithFallbackExtension sets the extension tried when a file with the default
// extension does not exist.
func WithFallbackExtension(ext string) Option {
	return func(w *WebView) {
		if ext = strings.TrimPrefix(strings.TrimSpace(ext), "."); ext != "" {
			w.fallbackExt = ext
		}
	}
}

// WithSourceLocale sets the locale view files are written in. Localized
// copies are only looked up for other locales.
func WithSourceLocale(locale string) Option {
	return func(w *WebView) {
		w.sourceLocale = strings.TrimSpace(locale)
	}
}

// WithTagPolicy sanitizes registered tags.
func WithTagPolicy(policy *tags.Policy) Option {
	return func(w *WebView) {
		w.policy = policy
	}
}

// WithListeners registers AfterRender listeners.
func WithListeners(listeners ...Listener) Option {
	return func(w *WebView) {
		for _, l := range listeners {
			if l != nil {
				w.listeners = append(w.listeners, l)
			}
		}
	}
}

// WithParameters seeds parameters shared by every render.
func WithParameters(values map[string]any) Option {
	return func(w *WebView) {
		for k, v := range values {
			w.parameters[k] = v
		}
	}
}

// WebView is the default View. A WebView returned by New is a template for
// per-render copies made with WithContext; configure it before sharing it
// between goroutines.
type WebView struct {
	engine       Engine
	aliases      aliases.Resolver
	basePath     string
	defaultExt   string
	fallbackExt  string
	sourceLocale string
	policy       *tags.Policy
	listeners    []Listener

	context    Context
	locale     string
	parameters map[string]any
	meta       *tagList
	links      map[tags.Position]*tagList
}

var _ View = (*WebView)(nil)

// New builds a WebView on top of engine.
func New(engine Engine, opts ...Option) (*WebView, error) {
	if engine == nil {
		return nil, errors.New("webview: engine is required")
	}
	w := &WebView{
		engine:       engine,
		defaultExt:   "tpl",
		fallbackExt:  "html",
		sourceLocale: "en",
		parameters:   make(map[string]any),
		meta:         newTagList(),
		links:        make(map[tags.Position]*tagList),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

func (w *WebView) clone() *WebView {
	out := *w
	out.listeners = append([]Listener(nil), w.listeners...)
	out.parameters = params.Clone(w.parameters)
	out.meta = w.meta.clone()
	out.links = make(map[tags.Position]*tagList, len(w.links))
	for pos, list := range w.links {
		out.links[pos] = list.clone()
	}
	return &out
}

// WithContext implements View.
func (w *WebView) WithContext(ctx Context) View {
	out := w.clone()
	out.context = ctx
	return out
}

// WithLocale implements View.
func (w *WebView) WithLocale(locale string) View {
	out := w.clone()
	out.locale = strings.TrimSpace(locale)
	return out
}

// Locale implements View.
func (w *WebView) Locale() string { return w.locale }

// SetParameters implements View.
func (w *WebView) SetParameters(values map[string]any) {
	for k, v := range values {
		w.parameters[k] = v
	}
}

// SetParameter implements View.
func (w *WebView) SetParameter(key string, value any) {
	w.parameters[key] = value
}

// HasParameter implements View.
func (w *WebView) HasParameter(key string) bool {
	_, ok := w.parameters[key]
	return ok
}

// Parameters returns a copy of the view parameters.
func (w *WebView) Parameters() map[string]any {
	return params.Clone(w.parameters)
}

// RegisterMeta implements View.
func (w *WebView) RegisterMeta(attrs tags.Attributes, key string) {
	w.RegisterMetaTag(tags.NewMeta(attrs), key)
}

// RegisterMetaTag implements View. A tag registered under an existing key
// replaces it in place.
func (w *WebView) RegisterMetaTag(tag *tags.Meta, key string) {
	if tag == nil {
		return
	}
	w.meta.put(key, w.policy.RenderMeta(tag))
}

// RegisterLinkTag implements View.
func (w *WebView) RegisterLinkTag(tag *tags.Link, position tags.Position, key string) {
	if tag == nil {
		return
	}
	if !position.Valid() {
		position = tags.Head
	}
	list, ok := w.links[position]
	if !ok {
		list = newTagList()
		w.links[position] = list
	}
	list.put(key, w.policy.RenderLink(tag))
}

// MetaTags returns the rendered meta tags in registration order.
func (w *WebView) MetaTags() []string {
	return w.meta.values()
}

// LinkTags returns the rendered link tags registered at position.
func (w *WebView) LinkTags(position tags.Position) []string {
	if list, ok := w.links[position]; ok {
		return list.values()
	}
	return nil
}

// DefaultExtension implements View.
func (w *WebView) DefaultExtension() string { return w.defaultExt }

// FallbackExtension implements View.
func (w *WebView) FallbackExtension() string { return w.fallbackExt }

// FileExists implements View.
func (w *WebView) FileExists(file string) bool {
	if checker, ok := w.engine.(FileChecker); ok {
		return checker.Exists(file)
	}
	return true
}

// Render implements View.
func (w *WebView) Render(ctx context.Context, view string, values map[string]any) (string, error) {
	file, err := w.findTemplateFile(view)
	if err != nil {
		return "", err
	}
	return w.RenderFile(ctx, file, values)
}

// RenderFile implements View.
func (w *WebView) RenderFile(ctx context.Context, file string, values map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	file = w.localize(file)
	data := params.MergeOrdered(w.parameters, values)

	head := append(w.MetaTags(), w.LinkTags(tags.Head)...)
	data[VarMeta] = strings.Join(w.MetaTags(), "\n")
	data[VarLinks] = strings.Join(w.LinkTags(tags.Head), "\n")
	data[VarHead] = strings.Join(head, "\n")
	data[VarBodyBegin] = strings.Join(w.LinkTags(tags.BodyBegin), "\n")
	data[VarBodyEnd] = strings.Join(w.LinkTags(tags.BodyEnd), "\n")
	data[VarLocale] = w.locale
	data[VarSetParameter] = func(key string, value any) string {
		w.SetParameter(key, value)
		return ""
	}

	start := time.Now()
	out, err := w.engine.RenderTemplate(file, data)
	if err != nil {
		err = fmt.Errorf("webview: render %q: %w", file, err)
	}
	w.dispatch(ctx, AfterRender{
		File:       file,
		Parameters: params.Clone(values),
		Output:     out,
		Duration:   time.Since(start),
		Err:        err,
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

func (w *WebView) dispatch(ctx context.Context, event AfterRender) {
	for _, l := range w.listeners {
		l.AfterRender(ctx, event)
	}
}

// ErrOutsideViewPath is returned for relative view names that climb out of
// the view path through a ".." segment.
var ErrOutsideViewPath = errors.New("webview: view name leaves the view path")

// EscapesBase reports whether name has a ".." segment.
func EscapesBase(name string) bool {
	for _, segment := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == ".." {
			return true
		}
	}
	return false
}

// findTemplateFile maps a view name to a file: "@alias/..." through the
// aliases, "/abs/..." as is, anything else relative to the context path.
// Relative names may not leave that path.
func (w *WebView) findTemplateFile(view string) (string, error) {
	if !strings.HasPrefix(view, "@") && !strings.HasPrefix(view, "/") && EscapesBase(view) {
		return "", fmt.Errorf("%w: %q", ErrOutsideViewPath, view)
	}

	var file string
	switch {
	case strings.HasPrefix(view, "@"):
		if w.aliases == nil {
			return "", fmt.Errorf("webview: view %q uses an alias but no aliases are configured", view)
		}
		resolved, err := w.aliases.Get(view)
		if err != nil {
			return "", err
		}
		file = resolved
	case strings.HasPrefix(view, "/"):
		file = view
	case w.context != nil:
		base, err := w.context.ViewPath()
		if err != nil {
			return "", err
		}
		file = base + "/" + view
	case w.basePath != "":
		file = w.basePath + "/" + view
	default:
		file = view
	}

	if path.Ext(file) != "" {
		return file, nil
	}
	return WithExtension(w, file), nil
}

// localize swaps file for dir/<locale>/name or dir/<language>/name when such
// a copy exists.
func (w *WebView) localize(file string) string {
	locale := strings.ReplaceAll(w.locale, "-", "_")
	if locale == "" || strings.EqualFold(locale, w.sourceLocale) {
		return file
	}
	dir, name := path.Split(file)
	candidates := []string{dir + locale + "/" + name}
	if idx := strings.Index(locale, "_"); idx > 0 {
		language := locale[:idx]
		if !strings.EqualFold(language, w.sourceLocale) {
			candidates = append(candidates, dir+language+"/"+name)
		}
	}
	checker, ok := w.engine.(FileChecker)
	if !ok {
		return file
	}
	for _, candidate := range candidates {
		if checker.Exists(candidate) {
			return candidate
		}
	}
	return file
}

// tagList keeps rendered tags in order; keyed entries are replaced in place.
type tagList struct {
	items []string
	index map[string]int
}

func newTagList() *tagList {
	return &tagList{index: make(map[string]int)}
}

func (l *tagList) put(key, markup string) {
	if markup == "" {
		return
	}
	if key != "" {
		if i, ok := l.index[key]; ok {
			l.items[i] = markup
			return
		}
		l.index[key] = len(l.items)
	}
	l.items = append(l.items, markup)
}

func (l *tagList) values() []string {
	return append([]string(nil), l.items...)
}

func (l *tagList) clone() *tagList {
	out := &tagList{
		items: append([]string(nil), l.items...),
		index: make(map[string]int, len(l.index)),
	}
	for k, v := range l.index {
		out.index[k] = v
	}
	return out
}

// WithExtension appends the view's default extension to file. When that file
// does not exist and the default differs from the fallback extension, the
// fallback extension is used instead.
func WithExtension(view View, file string) string {
	withDefault := file + "." + view.DefaultExtension()
	if view.DefaultExtension() != view.FallbackExtension() && !view.FileExists(withDefault) {
		return file + "." + view.FallbackExtension()
	}
	return withDefault
}
