package render

import (
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/goliatone/go-viewrender/internal/inflector"
)

const controllerSuffix = "controller"

// ControllerNamer lets a controller choose its view subdirectory instead of
// having it inferred from the type name.
type ControllerNamer interface {
	ControllerName() string
}

type inferred struct {
	name string
	err  error
}

// controllerNames memoizes inference per type for the life of the process.
var controllerNames sync.Map

// InferControllerName derives the view subdirectory for a controller value.
// The type's qualified name (package path plus type name) is passed to
// InferFromTypeName; pointers are dereferenced.
func InferControllerName(controller any) (string, error) {
	if namer, ok := controller.(ControllerNamer); ok {
		return strings.Trim(namer.ControllerName(), "/"), nil
	}
	if controller == nil {
		return "", &ControllerNameError{TypeName: "<nil>"}
	}

	typ := reflect.TypeOf(controller)
	if cached, ok := controllerNames.Load(typ); ok {
		result := cached.(inferred)
		return result.name, result.err
	}

	name, err := InferFromTypeName(qualifiedName(typ))
	controllerNames.Store(typ, inferred{name: name, err: err})
	return name, err
}

func qualifiedName(typ reflect.Type) string {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.PkgPath() == "" {
		return typ.Name()
	}
	return typ.PkgPath() + "/" + typ.Name()
}

// InferFromTypeName converts a qualified type name into a view subdirectory.
// Segments may be separated by "\", "/" or ".". The last segment must end in
// "Controller". When an earlier segment ends in "Controller" or "Controllers"
// every segment after the last such one is kept, otherwise only the trailing
// alphanumeric part of the type name. Segments are converted to kebab case:
//
//	App\Controller\FooBar\BazController -> foo-bar/baz
//	Path\To\File\BlogController         -> blog
func InferFromTypeName(name string) (string, error) {
	segments := strings.FieldsFunc(name, func(r rune) bool {
		return r == '\\' || r == '/' || r == '.'
	})
	if len(segments) == 0 {
		return "", &ControllerNameError{TypeName: name}
	}

	last := segments[len(segments)-1]
	if len(last) <= len(controllerSuffix) || !strings.HasSuffix(strings.ToLower(last), controllerSuffix) {
		return "", &ControllerNameError{TypeName: name}
	}
	stem := last[:len(last)-len(controllerSuffix)]

	start := -1
	for i := len(segments) - 2; i >= 0; i-- {
		lower := strings.ToLower(segments[i])
		if strings.HasSuffix(lower, controllerSuffix) || strings.HasSuffix(lower, controllerSuffix+"s") {
			start = i + 1
			break
		}
	}

	var captured []string
	if start >= 0 {
		captured = append(captured, segments[start:len(segments)-1]...)
		captured = append(captured, stem)
	} else {
		run := trailingAlnum(stem)
		if run == "" {
			return "", &ControllerNameError{TypeName: name}
		}
		captured = []string{run}
	}

	for i, segment := range captured {
		captured[i] = inflector.PascalToID(segment, "-")
	}
	return strings.Join(captured, "/"), nil
}

func trailingAlnum(s string) string {
	runes := []rune(s)
	i := len(runes)
	for i > 0 && (unicode.IsLetter(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
		i--
	}
	return string(runes[i:])
}
