package model

import (
	"strings"
	"unicode"
)

// FieldKey derives the answer key of a field from its label: every run of
// whitespace becomes a single underscore, case untouched. The filling
// client, the submit encoder and the answer decoder all recompute this
// independently, so it must stay pure and deterministic.
func (f Field) FieldKey() string {
	return FieldKey(f.Label)
}

func FieldKey(label string) string {
	var key strings.Builder
	space := false
	for _, r := range label {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			key.WriteByte('_')
			space = false
		}
		key.WriteRune(r)
	}
	if space {
		key.WriteByte('_')
	}
	return key.String()
}

// FieldByKey finds the field matching a derived answer key, so stored
// answers can be presented under their current label. Returns false for
// keys left behind by fields that were since edited or removed.
func (form Form) FieldByKey(key string) (Field, bool) {
	for _, f := range form.Fields {
		if f.FieldKey() == key {
			return f, true
		}
	}
	return Field{}, false
}
