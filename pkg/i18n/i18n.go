// Package i18n provides the translation helpers views call through the
// template engine. Views receive the render locale in the "locale" variable,
// so a template translates with:
//
//	{{ translate(locale, "greeting", name) }}
package i18n

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrMissingTranslator is passed to the missing handler when no translator
	// is configured.
	ErrMissingTranslator = errors.New("i18n: translator is not configured")
	// ErrMissingTranslation is returned by translators for unknown keys.
	ErrMissingTranslation = errors.New("i18n: missing translation")
)

// Translator resolves a message key for a locale.
type Translator interface {
	Translate(locale, key string, args ...any) (string, error)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(locale, key string, args ...any) (string, error)

// Translate implements Translator.
func (f TranslatorFunc) Translate(locale, key string, args ...any) (string, error) {
	return f(locale, key, args...)
}

// MissingHandler returns the text rendered when a key cannot be translated.
type MissingHandler func(locale, key string, args []any, err error) string

// MissingKey renders the key itself, or the "default" entry of a trailing
// map argument when one is given.
func MissingKey(_ string, key string, args []any, _ error) string {
	if len(args) > 0 {
		if opts, ok := args[len(args)-1].(map[string]any); ok {
			if fallback, ok := opts["default"].(string); ok && strings.TrimSpace(fallback) != "" {
				return fallback
			}
		}
	}
	return key
}

// TemplateConfig configures TemplateFuncs.
type TemplateConfig struct {
	// LocaleKey is read when the locale source is a map or struct.
	LocaleKey string
	// FuncName names the translate helper. Defaults to "translate".
	FuncName string
	OnMissing MissingHandler
}

// TemplateFuncs returns helpers for gotemplate.WithTemplateFunc:
//
//	translate(localeSrc, key, ...args) string
//	current_locale(localeSrc) string
//
// localeSrc is either a locale string or a map/struct holding one under
// cfg.LocaleKey.
func TemplateFuncs(t Translator, cfg TemplateConfig) map[string]any {
	localeKey := strings.TrimSpace(cfg.LocaleKey)
	if localeKey == "" {
		localeKey = "locale"
	}
	funcName := strings.TrimSpace(cfg.FuncName)
	if funcName == "" {
		funcName = "translate"
	}
	onMissing := cfg.OnMissing
	if onMissing == nil {
		onMissing = MissingKey
	}

	return map[string]any{
		funcName: func(localeSrc any, key string, args ...any) string {
			key = strings.TrimSpace(key)
			if key == "" {
				return ""
			}
			locale := ResolveLocale(localeSrc, localeKey)
			if t == nil {
				return onMissing(locale, key, args, ErrMissingTranslator)
			}
			msg, err := t.Translate(locale, key, args...)
			if err != nil || strings.TrimSpace(msg) == "" {
				return onMissing(locale, key, args, err)
			}
			return msg
		},
		"current_locale": func(localeSrc any) string {
			return ResolveLocale(localeSrc, localeKey)
		},
	}
}

// ResolveLocale extracts a locale from src: a string is returned as is, maps
// and structs are searched for key.
func ResolveLocale(src any, key string) string {
	if src == nil {
		return ""
	}
	if str, ok := src.(string); ok {
		return str
	}
	if key == "" {
		return ""
	}

	switch data := src.(type) {
	case map[string]any:
		if v, ok := data[key]; ok && v != nil {
			return strings.TrimSpace(fmt.Sprint(v))
		}
		return ""
	case map[string]string:
		return data[key]
	}

	value := reflect.ValueOf(src)
	for value.IsValid() && value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return ""
		}
		value = value.Elem()
	}
	if !value.IsValid() {
		return ""
	}

	switch value.Kind() {
	case reflect.Struct:
		field := value.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, key)
		})
		if field.IsValid() && field.Kind() == reflect.String {
			return field.String()
		}
	case reflect.Map:
		if value.Type().Key().Kind() == reflect.String {
			val := value.MapIndex(reflect.ValueOf(key).Convert(value.Type().Key()))
			if val.IsValid() && val.Kind() == reflect.String {
				return val.String()
			}
		}
	}
	return ""
}
