// Package params merges the parameter maps contributed by injections and
// render calls.
package params

// MergeOrdered folds maps left to right; later keys override earlier ones.
// The result is never nil and never aliases an input.
func MergeOrdered(maps ...map[string]any) map[string]any {
	size := 0
	for _, m := range maps {
		size += len(m)
	}
	out := make(map[string]any, size)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// MergeWithPriority merges injected parameters with the ones passed to a
// render call. Call supplied values always win.
func MergeWithPriority(injected, callSupplied map[string]any) map[string]any {
	return MergeOrdered(injected, callSupplied)
}

// Exclude returns a copy of params without the keys has reports as already
// set. A nil has keeps every key.
func Exclude(params map[string]any, has func(key string) bool) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if has != nil && has(k) {
			continue
		}
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy of m.
func Clone(m map[string]any) map[string]any {
	return MergeOrdered(m)
}
