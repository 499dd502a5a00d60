package i18n

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Catalog is an in-memory Translator. Messages are grouped by locale and
// looked up through a language matcher, so "de_DE" falls back to "de" and
// unknown locales to the fallback locale.
type Catalog struct {
	mu       sync.RWMutex
	fallback string
	messages map[string]map[string]string
	matcher  language.Matcher
	tags     []language.Tag
	locales  []string
}

var _ Translator = (*Catalog)(nil)

// NewCatalog builds an empty catalog. fallback is used when no loaded locale
// matches the requested one.
func NewCatalog(fallback string) *Catalog {
	return &Catalog{
		fallback: normalizeLocale(fallback),
		messages: make(map[string]map[string]string),
	}
}

// Add merges messages for locale. Nested maps are flattened with "." so
// {"nav": {"home": "Home"}} is stored as "nav.home".
func (c *Catalog) Add(locale string, messages map[string]any) error {
	locale = normalizeLocale(locale)
	if _, err := language.Parse(locale); err != nil {
		return fmt.Errorf("i18n: invalid locale %q: %w", locale, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.messages[locale]
	if !ok {
		bucket = make(map[string]string)
		c.messages[locale] = bucket
	}
	flatten("", messages, bucket)
	c.rebuild()
	return nil
}

// Locales returns the loaded locales, sorted.
func (c *Catalog) Locales() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.messages))
	for locale := range c.messages {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Translate implements Translator. A trailing map[string]any argument fills
// "{name}" placeholders; other arguments are applied with fmt.Sprintf when
// the message has verbs.
func (c *Catalog) Translate(locale, key string, args ...any) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, candidate := range c.candidates(locale) {
		if msg, ok := c.messages[candidate][key]; ok {
			return format(msg, args), nil
		}
	}
	return "", fmt.Errorf("%w: %q for locale %q", ErrMissingTranslation, key, locale)
}

func (c *Catalog) candidates(locale string) []string {
	var out []string
	if c.matcher != nil && strings.TrimSpace(locale) != "" {
		if tag, err := language.Parse(normalizeLocale(locale)); err == nil {
			if _, idx, conf := c.matcher.Match(tag); conf != language.No {
				out = append(out, c.locales[idx])
			}
		}
	}
	if c.fallback != "" {
		out = append(out, c.fallback)
	}
	return out
}

func (c *Catalog) rebuild() {
	c.locales = c.locales[:0]
	for locale := range c.messages {
		c.locales = append(c.locales, locale)
	}
	sort.Strings(c.locales)
	c.tags = make([]language.Tag, 0, len(c.locales))
	for _, locale := range c.locales {
		c.tags = append(c.tags, language.MustParse(locale))
	}
	c.matcher = language.NewMatcher(c.tags)
}

// LoadCatalog reads every <locale>.yaml, <locale>.yml and <locale>.json file
// in dir of fsys.
func LoadCatalog(fsys fs.FS, dir, fallback string) (*Catalog, error) {
	catalog := NewCatalog(fallback)
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("i18n: read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := path.Ext(entry.Name())
		switch ext {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", entry.Name(), err)
		}
		var messages map[string]any
		// JSON is a subset of YAML, one decoder covers both.
		if err := yaml.Unmarshal(data, &messages); err != nil {
			return nil, fmt.Errorf("i18n: parse %s: %w", entry.Name(), err)
		}
		if err := catalog.Add(strings.TrimSuffix(entry.Name(), ext), messages); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for key, value := range in {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flatten(full, v, out)
		case nil:
		default:
			out[full] = fmt.Sprint(v)
		}
	}
}

func format(msg string, args []any) string {
	if len(args) == 0 {
		return msg
	}
	if named, ok := args[len(args)-1].(map[string]any); ok {
		args = args[:len(args)-1]
		for name, value := range named {
			msg = strings.ReplaceAll(msg, "{"+name+"}", fmt.Sprint(value))
		}
	}
	if len(args) > 0 && strings.Contains(msg, "%") {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

func normalizeLocale(locale string) string {
	return strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")
}
