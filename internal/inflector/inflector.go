// Package inflector converts identifiers between naming styles.
package inflector

import (
	"strings"
	"unicode"
)

// PascalToID converts a PascalCase identifier to a lowercase id joined by
// separator. A separator is inserted before an upper case letter that follows
// a lower case letter, so digits and acronyms stay attached:
// "FooBar" -> "foo-bar", "SubNamespace2" -> "sub-namespace2",
// "Sub8Namespace" -> "sub8namespace", "HTMLParser" -> "htmlparser".
func PascalToID(input string, separator string) string {
	var b strings.Builder
	b.Grow(len(input) + 4)

	var prev rune
	for i, r := range input {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLetter(prev) && !unicode.IsUpper(prev) {
			b.WriteString(separator)
		}
		b.WriteRune(unicode.ToLower(r))
		prev = r
	}
	return b.String()
}
