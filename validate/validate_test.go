package validate

import (
	"testing"

	"github.com/okelemen/formfill/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(n int) *int { return &n }

func floatp(f float64) *float64 { return &f }

func textForm(fields ...model.Field) model.Form {
	return model.Form{ID: 1, Name: "test", Fields: fields}
}

func fieldErrs(t *testing.T, err error) model.FieldErrors {
	t.Helper()
	require.Error(t, err)
	errs, ok := err.(model.FieldErrors)
	require.True(t, ok, "expected FieldErrors, got %T", err)
	return errs
}

func TestFormRejectsZeroFields(t *testing.T) {
	err := Form(model.Form{Name: "empty"})
	errs := fieldErrs(t, err)
	assert.Equal(t, model.ErrInvalidSchema, errs[0].Code)
}

func TestFormRejectsDuplicateKeys(t *testing.T) {
	err := Form(textForm(
		model.Field{Label: "Full Name", Type: model.FieldText},
		model.Field{Label: "Full\tName", Type: model.FieldText},
	))
	errs := fieldErrs(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "Full_Name", errs[0].Field)
}

// Case is preserved by derivation, so differently-cased labels coexist.
func TestFormAllowsCaseVariantLabels(t *testing.T) {
	err := Form(textForm(
		model.Field{Label: "First Name", Type: model.FieldText},
		model.Field{Label: "first name", Type: model.FieldText},
	))
	assert.NoError(t, err)
}

func TestFormSchemaConstraints(t *testing.T) {
	cases := []struct {
		name  string
		field model.Field
		ok    bool
	}{
		{"text bounds ordered", model.Field{Label: "a", Type: model.FieldText, MinLength: intp(2), MaxLength: intp(10)}, true},
		{"text bounds inverted", model.Field{Label: "a", Type: model.FieldText, MinLength: intp(10), MaxLength: intp(2)}, false},
		{"minLength zero", model.Field{Label: "a", Type: model.FieldText, MinLength: intp(0)}, false},
		{"number bounds inverted", model.Field{Label: "a", Type: model.FieldNumber, Min: floatp(9), Max: floatp(1)}, false},
		{"radio five options", model.Field{Label: "a", Type: model.FieldRadio, Options: []string{"1", "2", "3", "4", "5"}}, true},
		{"radio six options", model.Field{Label: "a", Type: model.FieldRadio, Options: []string{"1", "2", "3", "4", "5", "6"}}, false},
		{"unknown type", model.Field{Label: "a", Type: "dropdown"}, false},
		{"blank label", model.Field{Label: "  ", Type: model.FieldText}, false},
		// constraints that do not apply to the type are ignored
		{"checkbox with length bounds", model.Field{Label: "a", Type: model.FieldCheckbox, MinLength: intp(10), MaxLength: intp(2)}, true},
		{"radio with number bounds", model.Field{Label: "a", Type: model.FieldRadio, Min: floatp(9), Max: floatp(1), Options: []string{"x"}}, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := Form(textForm(c.field))
			if c.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestAnswersRequired(t *testing.T) {
	form := textForm(model.Field{Label: "First Name", Type: model.FieldText})

	for name, answers := range map[string]map[string]any{
		"missing": {},
		"empty":   {"First_Name": ""},
	} {
		t.Run(name, func(t *testing.T) {
			errs := fieldErrs(t, Answers(form, answers))
			require.Len(t, errs, 1)
			assert.Equal(t, model.ErrRequired, errs[0].Code)
			assert.Equal(t, "First_Name", errs[0].Field)
		})
	}

	assert.NoError(t, Answers(form, map[string]any{"First_Name": "Ada"}))
}

// An omitted checkbox reads as unchecked, never as a missing answer.
func TestAnswersCheckboxAbsentIsFalse(t *testing.T) {
	form := textForm(model.Field{Label: "Subscribe", Type: model.FieldCheckbox})

	assert.NoError(t, Answers(form, map[string]any{}))
	assert.NoError(t, Answers(form, map[string]any{"Subscribe": true}))
	assert.NoError(t, Answers(form, map[string]any{"Subscribe": false}))

	errs := fieldErrs(t, Answers(form, map[string]any{"Subscribe": "yes"}))
	assert.Equal(t, model.ErrInvalidType, errs[0].Code)
}

func TestAnswersLengthBounds(t *testing.T) {
	form := textForm(model.Field{
		Label: "Nick", Type: model.FieldText,
		MinLength: intp(2), MaxLength: intp(10),
	})

	cases := []struct {
		answer string
		code   string
	}{
		{"a", model.ErrLengthOutOfRange},
		{"ok", ""},
		{"exactly10!", ""},
		{"elevenchars", model.ErrLengthOutOfRange},
	}
	for _, c := range cases {
		err := Answers(form, map[string]any{"Nick": c.answer})
		if c.code == "" {
			assert.NoError(t, err, "answer %q", c.answer)
		} else {
			errs := fieldErrs(t, err)
			assert.Equal(t, c.code, errs[0].Code, "answer %q", c.answer)
		}
	}
}

// Number bounds are inclusive on both ends.
func TestAnswersNumberBounds(t *testing.T) {
	form := textForm(model.Field{
		Label: "Age", Type: model.FieldNumber,
		Min: floatp(5), Max: floatp(10),
	})

	cases := []struct {
		answer string
		code   string
	}{
		{"4", model.ErrRangeOutOfRange},
		{"5", ""},
		{"10", ""},
		{"11", model.ErrRangeOutOfRange},
		{"7.5", ""},
		{"not a number", model.ErrInvalidType},
	}
	for _, c := range cases {
		err := Answers(form, map[string]any{"Age": c.answer})
		if c.code == "" {
			assert.NoError(t, err, "answer %q", c.answer)
		} else {
			errs := fieldErrs(t, err)
			assert.Equal(t, c.code, errs[0].Code, "answer %q", c.answer)
		}
	}
}

func TestAnswersRadioChoice(t *testing.T) {
	form := textForm(model.Field{
		Label: "Pick", Type: model.FieldRadio,
		Options: []string{"A", "B"},
	})

	assert.NoError(t, Answers(form, map[string]any{"Pick": "A"}))

	errs := fieldErrs(t, Answers(form, map[string]any{"Pick": "C"}))
	assert.Equal(t, model.ErrInvalidChoice, errs[0].Code)
}

// Validation collects every problem instead of stopping at the first,
// so the client can show them all at once.
func TestAnswersCollectsAllErrors(t *testing.T) {
	form := textForm(
		model.Field{Label: "Name", Type: model.FieldText, MinLength: intp(2)},
		model.Field{Label: "Age", Type: model.FieldNumber, Min: floatp(0)},
		model.Field{Label: "Pick", Type: model.FieldRadio, Options: []string{"A"}},
	)

	errs := fieldErrs(t, Answers(form, map[string]any{
		"Name": "x",
		"Age":  "-1",
		"Pick": "B",
	}))
	require.Len(t, errs, 3)
	assert.Equal(t, "Name", errs[0].Field)
	assert.Equal(t, "Age", errs[1].Field)
	assert.Equal(t, "Pick", errs[2].Field)
}

func TestAnswersNonStringValue(t *testing.T) {
	form := textForm(model.Field{Label: "Age", Type: model.FieldNumber})

	errs := fieldErrs(t, Answers(form, map[string]any{"Age": 12.0}))
	assert.Equal(t, model.ErrInvalidType, errs[0].Code)
}
