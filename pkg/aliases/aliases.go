// Package aliases maps symbolic path prefixes such as "@views" to real
// directories.
package aliases

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-viewrender/pkg/viewerr"
)

// Resolver expands a path that may start with an alias.
type Resolver interface {
	Get(path string) (string, error)
}

// UnknownAliasError is returned when a path starts with an alias nobody
// registered.
type UnknownAliasError struct {
	Alias string
	Path  string
}

func (e *UnknownAliasError) Error() string {
	return fmt.Sprintf("aliases: invalid path alias %q in %q", e.Alias, e.Path)
}

func (e *UnknownAliasError) Kind() viewerr.Kind { return viewerr.KindConfiguration }
func (e *UnknownAliasError) Name() string       { return "Unknown path alias" }
func (e *UnknownAliasError) Solution() string {
	return fmt.Sprintf("Register %q with aliases.New or Aliases.Set before rendering.", e.Alias)
}

// Aliases is a concurrency-safe alias table. An alias may contain slashes
// ("@views/admin"); the longest matching alias wins.
type Aliases struct {
	mu      sync.RWMutex
	entries map[string]string
}

// New builds a table from alias -> path pairs. Values may reference aliases
// registered in the same map.
func New(entries map[string]string) (*Aliases, error) {
	a := &Aliases{entries: make(map[string]string, len(entries))}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	// Shorter aliases first so values can reference them.
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})

	pending := names
	for len(pending) > 0 {
		var retry []string
		var lastErr error
		for _, name := range pending {
			if err := a.Set(name, entries[name]); err != nil {
				retry = append(retry, name)
				lastErr = err
			}
		}
		if len(retry) == len(pending) {
			return nil, lastErr
		}
		pending = retry
	}
	return a, nil
}

// MustNew panics if New fails.
func MustNew(entries map[string]string) *Aliases {
	a, err := New(entries)
	if err != nil {
		panic(err)
	}
	return a
}

// Set registers an alias. The name gets a leading "@" when missing, the path
// is expanded against existing aliases and trailing slashes are trimmed.
func (a *Aliases) Set(alias, path string) error {
	if a == nil {
		return fmt.Errorf("aliases: set %q on a nil table", alias)
	}
	name := normalizeName(alias)
	if name == "@" {
		return fmt.Errorf("aliases: alias name is required")
	}

	resolved, err := a.Get(path)
	if err != nil {
		return err
	}
	resolved = trimTrailingSlash(resolved)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.entries == nil {
		a.entries = make(map[string]string)
	}
	a.entries[name] = resolved
	return nil
}

// Remove deletes an alias.
func (a *Aliases) Remove(alias string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries, normalizeName(alias))
}

// Has reports whether alias is registered.
func (a *Aliases) Has(alias string) bool {
	if a == nil {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.entries[normalizeName(alias)]
	return ok
}

// Get expands path. Paths without a leading "@" are returned unchanged. A nil
// table has no aliases.
func (a *Aliases) Get(path string) (string, error) {
	if !strings.HasPrefix(path, "@") {
		return path, nil
	}
	if a == nil {
		return "", &UnknownAliasError{Alias: rootOf(path), Path: path}
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	best := ""
	for name := range a.entries {
		if path != name && !strings.HasPrefix(path, name+"/") {
			continue
		}
		if len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return "", &UnknownAliasError{Alias: rootOf(path), Path: path}
	}
	base, rest := a.entries[best], path[len(best):]
	if base == "/" && rest != "" {
		return rest, nil
	}
	return base + rest, nil
}

// All returns a copy of the table.
func (a *Aliases) All() map[string]string {
	if a == nil {
		return map[string]string{}
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]string, len(a.entries))
	for k, v := range a.entries {
		out[k] = v
	}
	return out
}

func normalizeName(alias string) string {
	name := trimTrailingSlash(strings.TrimSpace(alias))
	if !strings.HasPrefix(name, "@") {
		name = "@" + name
	}
	return name
}

func rootOf(path string) string {
	if idx := strings.Index(path, "/"); idx > 0 {
		return path[:idx]
	}
	return path
}

func trimTrailingSlash(path string) string {
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" && strings.HasPrefix(path, "/") {
		return "/"
	}
	return trimmed
}
