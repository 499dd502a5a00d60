package render

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-viewrender/pkg/viewerr"
	"github.com/goliatone/go-viewrender/pkg/webview"
)

// ErrViewPathNotSet is returned when a view is resolved before a view path was
// configured.
var ErrViewPathNotSet = viewerr.Configuration(errors.New("render: view path is not set"))

// ControllerNameError is returned when a controller type name does not end in
// "Controller".
type ControllerNameError struct {
	TypeName string
}

func (e *ControllerNameError) Error() string {
	return fmt.Sprintf("render: cannot detect controller name from %q", e.TypeName)
}

func (e *ControllerNameError) Kind() viewerr.Kind { return viewerr.KindConfiguration }
func (e *ControllerNameError) Name() string       { return "Cannot detect controller name" }
func (e *ControllerNameError) Solution() string {
	return fmt.Sprintf(`%q does not end in "Controller". Rename the type, implement
ControllerName() string on it, or call WithControllerName instead of WithController.`, e.TypeName)
}

// LocaleError is returned when the configured locale is not a valid language
// tag.
type LocaleError struct {
	Locale string
	Err    error
}

func (e *LocaleError) Error() string {
	return fmt.Sprintf("render: invalid locale %q: %v", e.Locale, e.Err)
}

func (e *LocaleError) Unwrap() error      { return e.Err }
func (e *LocaleError) Kind() viewerr.Kind { return viewerr.KindConfiguration }

// PathError is returned when a controller name or a relative view name
// would resolve outside the view path.
type PathError struct {
	Path string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("render: %q leaves the view path", e.Path)
}

func (e *PathError) Unwrap() error      { return webview.ErrOutsideViewPath }
func (e *PathError) Kind() viewerr.Kind { return viewerr.KindData }
func (e *PathError) Name() string       { return "View outside the view path" }
func (e *PathError) Solution() string {
	return `Controller names and relative view names may not contain ".." segments.
Use an alias or an absolute path for views that live elsewhere.`
}
