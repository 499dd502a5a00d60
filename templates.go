package viewrender

import (
	"embed"
	"io/fs"
)

//go:embed views/layouts/*.tpl views/site/*.tpl
var embeddedViews embed.FS

// EmbeddedViews exposes the starter views (a main layout and a "site"
// controller) so the demo server runs without a template directory. File
// names keep the "views/" prefix.
func EmbeddedViews() fs.FS {
	return embeddedViews
}
