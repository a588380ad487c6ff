package model

import (
	"strings"
	"testing"
	"unicode"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestFieldKey(t *testing.T) {
	cases := []struct {
		label, key string
	}{
		{"First Name", "First_Name"},
		{"first name", "first_name"},
		{"email", "email"},
		{"  padded  label ", "_padded_label_"},
		{"tabs\tand\nnewlines", "tabs_and_newlines"},
		{"a  b   c", "a_b_c"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.key, FieldKey(c.label), "label %q", c.label)
	}
}

// Differently-cased labels must not collide: derivation preserves case, so
// the aggregator can tell First Name answers from first name answers.
func TestFieldKeyCasePreserved(t *testing.T) {
	a := FieldKey("First Name")
	b := FieldKey("first name")
	assert.NotEqual(t, a, b)
}

func TestFieldByKey(t *testing.T) {
	form := Form{Fields: []Field{
		{Label: "First Name", Type: FieldText},
		{Label: "Agrees", Type: FieldCheckbox},
	}}

	f, ok := form.FieldByKey("First_Name")
	assert.True(t, ok)
	assert.Equal(t, "First Name", f.Label)

	_, ok = form.FieldByKey("Last_Name")
	assert.False(t, ok)
}

// The fill client, the submit encoder and the answer decoder each derive
// keys on their own; the rule must be deterministic and stable under
// re-derivation.
func TestProperty_FieldKeyDerivation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("derivation is idempotent", prop.ForAll(
		func(label string) bool {
			key := FieldKey(label)
			return FieldKey(key) == key
		},
		gen.AnyString(),
	))

	properties.Property("derived keys carry no whitespace", prop.ForAll(
		func(label string) bool {
			return strings.IndexFunc(FieldKey(label), unicode.IsSpace) < 0
		},
		gen.AnyString(),
	))

	properties.Property("derivation is pure", prop.ForAll(
		func(label string) bool {
			return FieldKey(label) == FieldKey(label)
		},
		gen.AnyString(),
	))

	properties.Property("non-whitespace runes survive unchanged", prop.ForAll(
		func(label string) bool {
			strip := func(s string) string {
				return strings.Map(func(r rune) rune {
					if unicode.IsSpace(r) || r == '_' {
						return -1
					}
					return r
				}, s)
			}
			return strip(FieldKey(label)) == strip(label)
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
