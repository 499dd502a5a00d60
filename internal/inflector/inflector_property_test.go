//go:build property

package inflector

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestPascalToIDProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("output is lower case", prop.ForAll(
		func(in string) bool {
			out := PascalToID(in, "-")
			return out == strings.ToLower(out)
		},
		gen.AlphaString(),
	))

	properties.Property("removing separators gives back the lowered input", prop.ForAll(
		func(in string) bool {
			return strings.ReplaceAll(PascalToID(in, "-"), "-", "") == strings.ToLower(in)
		},
		gen.AlphaString(),
	))

	properties.Property("idempotent on its own output", prop.ForAll(
		func(in string) bool {
			once := PascalToID(in, "-")
			return PascalToID(once, "-") == once
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
