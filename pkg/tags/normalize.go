package tags

import (
	"reflect"
)

// Reserved keys inside raw attribute maps. They are stripped before a tag is
// built from the map.
const (
	// PositionAttribute holds the link Position.
	PositionAttribute = "__position"
	// TagAttribute holds a prebuilt *Link that replaces the other attributes.
	TagAttribute = "__tag"
	// KeyAttribute holds the entry identifier when it travels with the value.
	KeyAttribute = "__key"
)

// Entry is one tag contributed by an injection. Key is optional; registering
// two entries with the same key at the sink replaces the first one.
type Entry struct {
	Key   string
	Value any
}

// NormalizedMeta is a validated meta entry. Exactly one of Tag or Attributes
// is set.
type NormalizedMeta struct {
	Key        string
	Tag        *Meta
	Attributes Attributes
}

// NormalizedLink is a validated link entry.
type NormalizedLink struct {
	Key      string
	Tag      *Link
	Position Position
}

// NormalizeMeta validates a meta entry. Prebuilt tags pass through, attribute
// maps pass through as attributes.
func NormalizeMeta(entry Entry) (NormalizedMeta, error) {
	switch v := entry.Value.(type) {
	case *Meta:
		if v == nil {
			return NormalizedMeta{}, &InvalidMetaTagError{Value: entry.Value, Entry: entry}
		}
		return NormalizedMeta{Key: entry.Key, Tag: v}, nil
	}

	attrs, ok := attributesOf(entry.Value)
	if !ok {
		return NormalizedMeta{}, &InvalidMetaTagError{Value: entry.Value, Entry: entry}
	}

	key := entry.Key
	if raw, found := attrs[KeyAttribute]; found {
		embedded, ok := raw.(string)
		if !ok {
			return NormalizedMeta{}, &InvalidMetaTagKeyError{Key: raw, Entry: entry}
		}
		if key == "" {
			key = embedded
		}
		delete(attrs, KeyAttribute)
	}

	return NormalizedMeta{Key: key, Attributes: attrs}, nil
}

// NormalizeLink validates a link entry and builds the tag. Attribute maps may
// carry a Position under PositionAttribute and a prebuilt *Link under
// TagAttribute; when the latter is present the remaining attributes are
// ignored.
func NormalizeLink(entry Entry) (NormalizedLink, error) {
	switch v := entry.Value.(type) {
	case *Link:
		if v == nil {
			return NormalizedLink{}, &InvalidLinkTagError{Value: entry.Value, Entry: entry}
		}
		return NormalizedLink{Key: entry.Key, Tag: v, Position: Head}, nil
	}

	attrs, ok := attributesOf(entry.Value)
	if !ok {
		return NormalizedLink{}, &InvalidLinkTagError{Value: entry.Value, Entry: entry}
	}

	position := Head
	if raw, found := attrs[PositionAttribute]; found {
		if !isInteger(raw) {
			return NormalizedLink{}, &InvalidLinkTagPositionError{Position: raw, Entry: entry}
		}
		position = Position(reflect.ValueOf(raw).Convert(reflect.TypeOf(int64(0))).Int())
		if !position.Valid() {
			return NormalizedLink{}, &InvalidLinkTagPositionError{Position: raw, Entry: entry}
		}
		delete(attrs, PositionAttribute)
	}

	key := entry.Key
	if raw, found := attrs[KeyAttribute]; found {
		embedded, ok := raw.(string)
		if !ok {
			return NormalizedLink{}, &InvalidLinkTagKeyError{Key: raw, Entry: entry}
		}
		if key == "" {
			key = embedded
		}
		delete(attrs, KeyAttribute)
	}

	if prebuilt, found := attrs[TagAttribute]; found {
		if link, ok := prebuilt.(*Link); ok && link != nil {
			return NormalizedLink{Key: key, Tag: link, Position: position}, nil
		}
		return NormalizedLink{}, &InvalidLinkTagError{Value: prebuilt, Entry: entry}
	}

	return NormalizedLink{Key: key, Tag: NewLink(attrs), Position: position}, nil
}

// attributesOf copies the supported raw map shapes into Attributes.
func attributesOf(value any) (Attributes, bool) {
	switch v := value.(type) {
	case Attributes:
		if v == nil {
			return nil, false
		}
		return v.Clone(), true
	case map[string]any:
		if v == nil {
			return nil, false
		}
		return Attributes(v).Clone(), true
	case map[string]string:
		if v == nil {
			return nil, false
		}
		out := make(Attributes, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func isInteger(v any) bool {
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return true
	default:
		return false
	}
}
