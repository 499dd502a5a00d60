// Package orchestrator wires the template engine → web view → injections →
// view renderer stack, providing dependency injection friendly helpers for
// consumers that prefer a single entry point.
package orchestrator
