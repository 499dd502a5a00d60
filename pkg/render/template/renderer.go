package template

// Resettable is implemented by engines that cache parsed templates. The
// template watcher drops entries through it when files change.
type Resettable interface {
	// Reset drops every cached template.
	Reset()
	// Invalidate drops the cached templates whose file is name or ends in
	// "/"+name, so a path relative to the template root matches however the
	// view was addressed.
	Invalidate(name string)
}
