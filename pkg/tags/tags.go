// Package tags builds the <meta> and <link> fragments injections contribute
// to a page and normalizes the loose shapes injections are allowed to return.
package tags

import (
	"fmt"
	"html"
	"sort"
	"strings"
)

// Position selects where a link tag is emitted.
type Position int

const (
	// Head emits the tag inside <head>. It is the default.
	Head Position = iota + 1
	// BodyBegin emits the tag right after <body>.
	BodyBegin
	// BodyEnd emits the tag right before </body>.
	BodyEnd
)

func (p Position) String() string {
	switch p {
	case Head:
		return "head"
	case BodyBegin:
		return "body_begin"
	case BodyEnd:
		return "body_end"
	default:
		return fmt.Sprintf("position(%d)", int(p))
	}
}

// Valid reports whether p is one of the known positions.
func (p Position) Valid() bool {
	return p >= Head && p <= BodyEnd
}

// Attributes holds tag attributes. String values are escaped on render, true
// renders a bare attribute and false or nil omits it.
type Attributes map[string]any

// Clone returns a shallow copy.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// attributeOrder keeps the common attributes in a predictable place; the rest
// follow alphabetically.
var attributeOrder = []string{
	"charset", "http-equiv", "type", "id", "class", "name", "property",
	"content", "value", "href", "hreflang", "src", "sizes", "title", "rel", "media",
}

var attributeRank = func() map[string]int {
	ranks := make(map[string]int, len(attributeOrder))
	for i, name := range attributeOrder {
		ranks[name] = i
	}
	return ranks
}()

// Render serialises the attributes with a leading space per attribute.
func (a Attributes) Render() string {
	if len(a) == 0 {
		return ""
	}
	names := make([]string, 0, len(a))
	for name := range a {
		if strings.TrimSpace(name) == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, iok := attributeRank[names[i]]
		rj, jok := attributeRank[names[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		case jok:
			return false
		default:
			return names[i] < names[j]
		}
	})

	var b strings.Builder
	for _, name := range names {
		switch v := a[name].(type) {
		case nil:
			continue
		case bool:
			if v {
				b.WriteString(" ")
				b.WriteString(html.EscapeString(name))
			}
		case string:
			writeAttr(&b, name, v)
		default:
			writeAttr(&b, name, fmt.Sprint(v))
		}
	}
	return b.String()
}

func writeAttr(b *strings.Builder, name, value string) {
	b.WriteString(" ")
	b.WriteString(html.EscapeString(name))
	b.WriteString(`="`)
	b.WriteString(html.EscapeString(value))
	b.WriteString(`"`)
}

// Meta is a <meta> tag.
type Meta struct {
	attrs Attributes
}

// NewMeta builds a meta tag from attributes. The map is copied.
func NewMeta(attrs Attributes) *Meta {
	return &Meta{attrs: attrs.Clone()}
}

// Charset builds <meta charset="...">.
func Charset(charset string) *Meta {
	return NewMeta(Attributes{"charset": charset})
}

// Named builds <meta name="..." content="...">.
func Named(name, content string) *Meta {
	return NewMeta(Attributes{"name": name, "content": content})
}

// Description builds the description meta tag.
func Description(content string) *Meta {
	return Named("description", content)
}

// Attributes returns a copy of the tag attributes.
func (m *Meta) Attributes() Attributes {
	if m == nil {
		return Attributes{}
	}
	return m.attrs.Clone()
}

// WithAttr returns a copy of the tag with one attribute set.
func (m *Meta) WithAttr(name string, value any) *Meta {
	attrs := m.Attributes()
	attrs[name] = value
	return &Meta{attrs: attrs}
}

// Render returns the tag markup.
func (m *Meta) Render() string {
	return "<meta" + m.Attributes().Render() + ">"
}

func (m *Meta) String() string { return m.Render() }

// Link is a <link> tag.
type Link struct {
	attrs Attributes
}

// NewLink builds a link tag from attributes. The map is copied.
func NewLink(attrs Attributes) *Link {
	return &Link{attrs: attrs.Clone()}
}

// Stylesheet builds <link href="..." rel="stylesheet">.
func Stylesheet(href string) *Link {
	return NewLink(Attributes{"rel": "stylesheet", "href": href})
}

// Icon builds a favicon link tag. An empty mime type is omitted.
func Icon(href, mimeType string) *Link {
	attrs := Attributes{"rel": "icon", "href": href}
	if mimeType != "" {
		attrs["type"] = mimeType
	}
	return NewLink(attrs)
}

// Attributes returns a copy of the tag attributes.
func (l *Link) Attributes() Attributes {
	if l == nil {
		return Attributes{}
	}
	return l.attrs.Clone()
}

// WithAttr returns a copy of the tag with one attribute set.
func (l *Link) WithAttr(name string, value any) *Link {
	attrs := l.Attributes()
	attrs[name] = value
	return &Link{attrs: attrs}
}

// Render returns the tag markup.
func (l *Link) Render() string {
	return "<link" + l.Attributes().Render() + ">"
}

func (l *Link) String() string { return l.Render() }
