// Package template hosts the engine adapters, gotemplate (pongo2 files) and
// templcomponent (templ components), and the cache contract the template
// watcher drives.
package template
