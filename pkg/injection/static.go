package injection

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-viewrender/pkg/params"
	"github.com/goliatone/go-viewrender/pkg/tags"
)

// Static is an injection declared in a YAML or JSON document:
//
//	name: site
//	common_parameters:
//	  site_name: Raccoons
//	meta_tags:
//	  - key: description
//	    attributes: {name: description, content: All about raccoons}
//	link_tags:
//	  - key: favicon
//	    position: head
//	    attributes: {rel: icon, href: /favicon.ico}
//
// Tag data is validated when a render call normalizes it, like any other
// injection.
type Static struct {
	Name   string
	Source string

	content map[string]any
	layout  map[string]any
	common  map[string]any
	meta    []tags.Entry
	links   []tags.Entry
}

var (
	_ ContentParameters = (*Static)(nil)
	_ LayoutParameters  = (*Static)(nil)
	_ CommonParameters  = (*Static)(nil)
	_ MetaTags          = (*Static)(nil)
	_ LinkTags          = (*Static)(nil)
)

type staticFile struct {
	Name              string         `json:"name" yaml:"name"`
	ContentParameters map[string]any `json:"content_parameters" yaml:"content_parameters"`
	LayoutParameters  map[string]any `json:"layout_parameters" yaml:"layout_parameters"`
	CommonParameters  map[string]any `json:"common_parameters" yaml:"common_parameters"`
	MetaTags          []staticTag    `json:"meta_tags" yaml:"meta_tags"`
	LinkTags          []staticTag    `json:"link_tags" yaml:"link_tags"`
}

type staticTag struct {
	Key        string         `json:"key" yaml:"key"`
	Position   any            `json:"position" yaml:"position"`
	Attributes map[string]any `json:"attributes" yaml:"attributes"`
}

// LoadStatic reads a static injection from disk.
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("injection: read %s: %w", path, err)
	}
	return ParseStatic(data, path)
}

// LoadStaticFS reads a static injection from fsys.
func LoadStaticFS(fsys fs.FS, path string) (*Static, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("injection: read %s: %w", path, err)
	}
	return ParseStatic(data, path)
}

// LoadStaticDir walks fsys and loads every YAML or JSON file, sorted by path.
func LoadStaticDir(fsys fs.FS) ([]*Static, error) {
	if fsys == nil {
		return nil, nil
	}
	var paths []string
	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isStaticFile(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	out := make([]*Static, 0, len(paths))
	for _, path := range paths {
		static, err := LoadStaticFS(fsys, path)
		if err != nil {
			return nil, err
		}
		out = append(out, static)
	}
	return out, nil
}

// ParseStatic decodes a static injection document. source names the document
// in errors.
func ParseStatic(data []byte, source string) (*Static, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("injection: file %s is empty", source)
	}

	var doc staticFile
	if err := json.Unmarshal(data, &doc); err != nil {
		doc = staticFile{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("injection: parse %s: invalid JSON or YAML: %w", source, err)
		}
	}

	static := &Static{
		Name:    strings.TrimSpace(doc.Name),
		Source:  source,
		content: params.Clone(doc.ContentParameters),
		layout:  params.Clone(doc.LayoutParameters),
		common:  params.Clone(doc.CommonParameters),
	}
	if static.Name == "" {
		static.Name = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}
	for _, tag := range doc.MetaTags {
		static.meta = append(static.meta, tags.Entry{Key: tag.Key, Value: map[string]any(tags.Attributes(tag.Attributes).Clone())})
	}
	for _, tag := range doc.LinkTags {
		attrs := tags.Attributes(tag.Attributes).Clone()
		if tag.Position != nil {
			attrs[tags.PositionAttribute] = staticPosition(tag.Position)
		}
		static.links = append(static.links, tags.Entry{Key: tag.Key, Value: map[string]any(attrs)})
	}
	return static, nil
}

// ContentParameters implements ContentParameters.
func (s *Static) ContentParameters(context.Context) (map[string]any, error) {
	return params.Clone(s.content), nil
}

// LayoutParameters implements LayoutParameters.
func (s *Static) LayoutParameters(context.Context) (map[string]any, error) {
	return params.Clone(s.layout), nil
}

// CommonParameters implements CommonParameters.
func (s *Static) CommonParameters(context.Context) (map[string]any, error) {
	return params.Clone(s.common), nil
}

// MetaTags implements MetaTags.
func (s *Static) MetaTags(context.Context) ([]tags.Entry, error) {
	return append([]tags.Entry(nil), s.meta...), nil
}

// LinkTags implements LinkTags.
func (s *Static) LinkTags(context.Context) ([]tags.Entry, error) {
	return append([]tags.Entry(nil), s.links...), nil
}

// staticPosition accepts position names and whole JSON numbers. Anything
// else is passed through so normalization reports it.
func staticPosition(raw any) any {
	switch v := raw.(type) {
	case string:
		for _, p := range []tags.Position{tags.Head, tags.BodyBegin, tags.BodyEnd} {
			if strings.EqualFold(strings.TrimSpace(v), p.String()) {
				return p
			}
		}
		return v
	case float64:
		if v == math.Trunc(v) {
			return int(v)
		}
		return v
	default:
		return raw
	}
}

func isStaticFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
