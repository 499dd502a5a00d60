// Package viewerr classifies rendering failures so callers can decide whether
// to log, abort or surface a friendly message.
package viewerr

import "errors"

// Kind groups errors by who has to fix them.
type Kind int

const (
	// KindUnknown covers template engine and I/O failures that are propagated
	// unchanged.
	KindUnknown Kind = iota
	// KindConfiguration marks renderer setup problems: missing view path,
	// unknown alias, unrecognised controller, missing container.
	KindConfiguration
	// KindData marks malformed data supplied by injections.
	KindData
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindData:
		return "data"
	default:
		return "unknown"
	}
}

// Classified is implemented by errors that know their Kind.
type Classified interface {
	error
	Kind() Kind
}

// Friendly is implemented by errors that can explain themselves to a
// developer looking at an error page.
type Friendly interface {
	error
	Name() string
	Solution() string
}

// KindOf walks the error chain and returns the first Kind it finds.
func KindOf(err error) Kind {
	var classified Classified
	if errors.As(err, &classified) {
		return classified.Kind()
	}
	return KindUnknown
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return KindOf(err) == KindConfiguration
}

// IsData reports whether err was caused by malformed injection data.
func IsData(err error) bool {
	return KindOf(err) == KindData
}

// FriendlyOf returns the first Friendly error in the chain.
func FriendlyOf(err error) (Friendly, bool) {
	var friendly Friendly
	if errors.As(err, &friendly) {
		return friendly, true
	}
	return nil, false
}

// Configuration wraps err so KindOf reports KindConfiguration.
func Configuration(err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: KindConfiguration, err: err}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }
func (e *kindError) Kind() Kind    { return e.kind }
