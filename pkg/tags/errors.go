package tags

import (
	"fmt"

	"github.com/goliatone/go-viewrender/pkg/viewerr"
)

// InvalidMetaTagError is returned when a meta tag entry is neither a *Meta
// nor an attribute map.
type InvalidMetaTagError struct {
	Value any
	Entry Entry
}

func (e *InvalidMetaTagError) Error() string {
	return fmt.Sprintf("meta tag in injection should be *tags.Meta or an attribute map, got %T", e.Value)
}

func (e *InvalidMetaTagError) Kind() viewerr.Kind { return viewerr.KindData }
func (e *InvalidMetaTagError) Name() string       { return "Invalid meta tag in injection" }
func (e *InvalidMetaTagError) Solution() string {
	return fmt.Sprintf(`MetaTags() returns a list of tags.Entry whose Value is either a *tags.Meta
or a map of attributes:

    []tags.Entry{
        {Value: tags.Charset("utf-8")},
        {Key: "description", Value: map[string]any{"name": "description", "content": "..."}},
    }

Offending entry: %#v`, e.Entry)
}

// InvalidMetaTagKeyError is returned when the key embedded in a meta tag
// entry is not a string.
type InvalidMetaTagKeyError struct {
	Key   any
	Entry Entry
}

func (e *InvalidMetaTagKeyError) Error() string {
	return fmt.Sprintf("meta tag key in injection should be a string, got %T", e.Key)
}

func (e *InvalidMetaTagKeyError) Kind() viewerr.Kind { return viewerr.KindData }
func (e *InvalidMetaTagKeyError) Name() string       { return "Invalid meta tag key in injection" }
func (e *InvalidMetaTagKeyError) Solution() string {
	return fmt.Sprintf("Set Entry.Key or the %q attribute to a string. Offending entry: %#v", KeyAttribute, e.Entry)
}

// InvalidLinkTagError is returned when a link tag entry is neither a *Link
// nor an attribute map.
type InvalidLinkTagError struct {
	Value any
	Entry Entry
}

func (e *InvalidLinkTagError) Error() string {
	return fmt.Sprintf("link tag in injection should be *tags.Link or an attribute map, got %T", e.Value)
}

func (e *InvalidLinkTagError) Kind() viewerr.Kind { return viewerr.KindData }
func (e *InvalidLinkTagError) Name() string       { return "Invalid link tag in injection" }
func (e *InvalidLinkTagError) Solution() string {
	return fmt.Sprintf(`LinkTags() returns a list of tags.Entry whose Value is either a *tags.Link
or a map of attributes with an optional %q:

    []tags.Entry{
        {Value: tags.Stylesheet("/app.css")},
        {Key: "favicon", Value: map[string]any{"rel": "icon", "href": "/favicon.ico", %q: tags.BodyEnd}},
    }

Offending entry: %#v`, PositionAttribute, PositionAttribute, e.Entry)
}

// InvalidLinkTagPositionError is returned when the position of a link tag is
// not an integer or not a known Position.
type InvalidLinkTagPositionError struct {
	Position any
	Entry    Entry
}

func (e *InvalidLinkTagPositionError) Error() string {
	if isInteger(e.Position) {
		return fmt.Sprintf("link tag position in injection should be one of head, body_begin or body_end, got %v", e.Position)
	}
	return fmt.Sprintf("link tag position in injection should be integer, got %T", e.Position)
}

func (e *InvalidLinkTagPositionError) Kind() viewerr.Kind { return viewerr.KindData }
func (e *InvalidLinkTagPositionError) Name() string       { return "Invalid link tag position in injection" }
func (e *InvalidLinkTagPositionError) Solution() string {
	return fmt.Sprintf("Use tags.Head, tags.BodyBegin or tags.BodyEnd for %q. Offending entry: %#v", PositionAttribute, e.Entry)
}

// InvalidLinkTagKeyError is returned when the key embedded in a link tag
// entry is not a string.
type InvalidLinkTagKeyError struct {
	Key   any
	Entry Entry
}

func (e *InvalidLinkTagKeyError) Error() string {
	return fmt.Sprintf("link tag key in injection should be a string, got %T", e.Key)
}

func (e *InvalidLinkTagKeyError) Kind() viewerr.Kind { return viewerr.KindData }
func (e *InvalidLinkTagKeyError) Name() string       { return "Invalid link tag key in injection" }
func (e *InvalidLinkTagKeyError) Solution() string {
	return fmt.Sprintf("Set Entry.Key or the %q attribute to a string. Offending entry: %#v", KeyAttribute, e.Entry)
}
