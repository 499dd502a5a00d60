// Package themeinject exposes a go-theme selection to views: tokens and CSS
// variables as parameters, stylesheet assets as link tags.
package themeinject

import (
	"context"
	"fmt"
	"sort"
	"strings"

	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-viewrender/pkg/injection"
	"github.com/goliatone/go-viewrender/pkg/tags"
)

const (
	// DefaultParameterName is the view parameter holding the theme data.
	DefaultParameterName = "theme"
	// ThemeColorToken, when present, is rendered as a theme-color meta tag.
	ThemeColorToken = "theme-color"
)

// Option configures an Injection.
type Option func(*Injection)

// WithParameterName exposes the theme under name.
func WithParameterName(name string) Option {
	return func(i *Injection) {
		if name = strings.TrimSpace(name); name != "" {
			i.parameterName = name
		}
	}
}

// WithStylesheetSuffix selects the asset keys rendered as stylesheet links.
// Defaults to "stylesheet".
func WithStylesheetSuffix(suffix string) Option {
	return func(i *Injection) {
		if suffix = strings.TrimSpace(suffix); suffix != "" {
			i.stylesheetSuffix = suffix
		}
	}
}

// Injection resolves a theme selection on every render.
type Injection struct {
	selector         theme.ThemeSelector
	name             string
	variant          string
	parameterName    string
	stylesheetSuffix string
}

var (
	_ injection.CommonParameters = (*Injection)(nil)
	_ injection.MetaTags         = (*Injection)(nil)
	_ injection.LinkTags         = (*Injection)(nil)
)

// New builds an injection selecting name and variant from selector. Empty
// values let the selector apply its defaults.
func New(selector theme.ThemeSelector, name, variant string, opts ...Option) *Injection {
	inj := &Injection{
		selector:         selector,
		name:             strings.TrimSpace(name),
		variant:          strings.TrimSpace(variant),
		parameterName:    DefaultParameterName,
		stylesheetSuffix: "stylesheet",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(inj)
		}
	}
	return inj
}

// Data is the resolved theme.
type Data struct {
	Name     string
	Variant  string
	Tokens   map[string]string
	CSSVars  map[string]string
	Assets   map[string]string
	Partials map[string]string
}

// Style renders the CSS variables as a declaration list, sorted by name.
func (d Data) Style() string {
	keys := sortedKeys(d.CSSVars)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+d.CSSVars[key]+";")
	}
	return strings.Join(parts, " ")
}

// Params returns the template representation of the theme.
func (d Data) Params() map[string]any {
	return map[string]any{
		"name":     d.Name,
		"variant":  d.Variant,
		"tokens":   d.Tokens,
		"css_vars": d.CSSVars,
		"style":    d.Style(),
		"assets":   d.Assets,
		"partials": d.Partials,
	}
}

// Resolve selects the theme and merges the variant over the base manifest.
func (i *Injection) Resolve() (Data, error) {
	if i.selector == nil {
		return Data{}, fmt.Errorf("themeinject: selector is not configured")
	}
	selection, err := i.selector.Select(i.name, i.variant)
	if err != nil {
		return Data{}, fmt.Errorf("themeinject: select %q/%q: %w", i.name, i.variant, err)
	}
	if selection == nil || selection.Manifest == nil {
		return Data{}, fmt.Errorf("themeinject: selector returned no manifest for %q", i.name)
	}
	return FromSelection(selection), nil
}

// FromSelection flattens a selection: variant tokens, templates and asset
// files override the manifest's, asset URLs are joined with the prefix and
// every token becomes a "--token" CSS variable.
func FromSelection(selection *theme.Selection) Data {
	manifest := selection.Manifest
	data := Data{
		Name:     selection.Theme,
		Variant:  selection.Variant,
		Tokens:   copyMap(manifest.Tokens),
		Partials: copyMap(manifest.Templates),
		Assets:   make(map[string]string),
	}
	if data.Name == "" {
		data.Name = manifest.Name
	}

	prefix := manifest.Assets.Prefix
	files := copyMap(manifest.Assets.Files)
	if variant, ok := manifest.Variants[selection.Variant]; ok {
		for k, v := range variant.Tokens {
			data.Tokens[k] = v
		}
		for k, v := range variant.Templates {
			data.Partials[k] = v
		}
		if variant.Assets.Prefix != "" {
			prefix = variant.Assets.Prefix
		}
		for k, v := range variant.Assets.Files {
			files[k] = v
		}
	}
	for key, file := range files {
		data.Assets[key] = assetURL(prefix, file)
	}

	data.CSSVars = make(map[string]string, len(data.Tokens))
	for key, value := range data.Tokens {
		data.CSSVars["--"+strings.TrimPrefix(key, "--")] = value
	}
	return data
}

// CommonParameters implements injection.CommonParameters.
func (i *Injection) CommonParameters(context.Context) (map[string]any, error) {
	data, err := i.Resolve()
	if err != nil {
		return nil, err
	}
	return map[string]any{i.parameterName: data.Params()}, nil
}

// MetaTags implements injection.MetaTags.
func (i *Injection) MetaTags(context.Context) ([]tags.Entry, error) {
	data, err := i.Resolve()
	if err != nil {
		return nil, err
	}
	color, ok := data.Tokens[ThemeColorToken]
	if !ok || color == "" {
		return nil, nil
	}
	return []tags.Entry{{Key: ThemeColorToken, Value: tags.Named(ThemeColorToken, color)}}, nil
}

// LinkTags implements injection.LinkTags. Assets whose key ends with the
// stylesheet suffix become head stylesheet links, in key order.
func (i *Injection) LinkTags(context.Context) ([]tags.Entry, error) {
	data, err := i.Resolve()
	if err != nil {
		return nil, err
	}
	var out []tags.Entry
	for _, key := range sortedKeys(data.Assets) {
		if !strings.HasSuffix(key, i.stylesheetSuffix) {
			continue
		}
		out = append(out, tags.Entry{Key: "theme:" + key, Value: tags.Stylesheet(data.Assets[key])})
	}
	return out, nil
}

func assetURL(prefix, file string) string {
	if prefix == "" || strings.Contains(file, "://") || strings.HasPrefix(file, "/") {
		return file
	}
	return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(file, "/")
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedKeys(in map[string]string) []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
