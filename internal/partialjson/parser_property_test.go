package partialjson

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestParseTotalOverPrefixes checks that parsing every prefix of a
// complete, valid JSON document never returns failed-parse, and parsing
// the whole document always succeeds.
func TestParseTotalOverPrefixes(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("every prefix of a valid document parses", prop.ForAll(
		func(key, value string, cut int) bool {
			full, err := json.Marshal(map[string]string{key: value})
			if err != nil {
				return true
			}
			if cut < 0 {
				cut = 0
			}
			if cut > len(full) {
				cut = len(full)
			}
			prefix := string(full[:cut])

			return Parse(prefix).State != StateFailed
		},
		gen.Identifier(),
		gen.Identifier(),
		gen.IntRange(0, 64),
	))

	properties.Property("the full document always parses successfully", prop.ForAll(
		func(key, value string) bool {
			full, err := json.Marshal(map[string]string{key: value})
			if err != nil {
				return true
			}
			return Parse(string(full)).State == StateSuccessful
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.Property("Parse is deterministic for a fixed input", prop.ForAll(
		func(key, value string) bool {
			text := `{"` + key + `":"` + value + `"`
			a := Parse(text)
			b := Parse(text)
			return a.State == b.State && deepEqualJSON(a.Value, b.Value)
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func deepEqualJSON(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return errA != nil && errB != nil
	}
	return string(aj) == string(bj)
}
