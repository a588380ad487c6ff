// Package validate holds the pure checks run against a form schema at
// authoring time and against an answer set before it is persisted.
// Everything here works off the schema as data; nothing is known at
// compile time about the forms being validated.
package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/okelemen/formfill/model"
)

// Form checks an administrator-authored schema. Returns every problem
// found, as model.FieldErrors.
func Form(form model.Form) error {
	errs := model.FieldErrors{}

	if strings.TrimSpace(form.Name) == "" {
		errs = append(errs, model.FieldError{
			Code:    model.ErrInvalidSchema,
			Message: "form name must not be empty",
		})
	}
	if form.TimeLimit < 0 {
		errs = append(errs, model.FieldError{
			Code:    model.ErrInvalidSchema,
			Message: "time limit must be a positive number of seconds",
		})
	}
	if len(form.Fields) == 0 {
		errs = append(errs, model.FieldError{
			Code:    model.ErrInvalidSchema,
			Message: "at least one field is required",
		})
	}

	seen := map[string]string{}
	for i, f := range form.Fields {
		errs = append(errs, checkField(i, f)...)

		key := f.FieldKey()
		if prev, dup := seen[key]; dup {
			errs = append(errs, model.FieldError{
				Field:   key,
				Code:    model.ErrInvalidSchema,
				Message: fmt.Sprintf("label %q derives the same key as %q", f.Label, prev),
			})
		} else {
			seen[key] = f.Label
		}
	}

	return errs.OrNil()
}

func checkField(i int, f model.Field) (errs model.FieldErrors) {
	key := f.FieldKey()
	fail := func(msg string, args ...any) {
		errs = append(errs, model.FieldError{
			Field:   key,
			Code:    model.ErrInvalidSchema,
			Message: fmt.Sprintf(msg, args...),
		})
	}

	if strings.TrimSpace(f.Label) == "" {
		fail("field %d: label must not be empty", i+1)
	}

	valid := false
	for _, t := range model.FieldTypes {
		if f.Type == t {
			valid = true
			break
		}
	}
	if !valid {
		fail("unknown field type %q", f.Type)
		return
	}

	switch f.Type {
	case model.FieldText, model.FieldEmail, model.FieldPassword, model.FieldTextarea:
		if f.MinLength != nil && *f.MinLength < 1 {
			fail("minLength must be positive")
		}
		if f.MaxLength != nil && *f.MaxLength < 1 {
			fail("maxLength must be positive")
		}
		if f.MinLength != nil && f.MaxLength != nil && *f.MinLength > *f.MaxLength {
			fail("minLength %d exceeds maxLength %d", *f.MinLength, *f.MaxLength)
		}
	case model.FieldNumber:
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			fail("min %v exceeds max %v", *f.Min, *f.Max)
		}
	case model.FieldRadio:
		if len(f.Options) > model.MaxRadioOptions {
			fail("at most %d options are allowed", model.MaxRadioOptions)
		}
	}
	// constraints irrelevant to the type are simply ignored

	return
}

// Answers checks an answer set against a form schema, field by field in
// schema order, collecting every error rather than stopping at the first.
// Runs on the server before a submission is persisted, whatever the client
// already checked.
func Answers(form model.Form, answers map[string]any) error {
	errs := model.FieldErrors{}

	for _, f := range form.Fields {
		key := f.FieldKey()
		value, present := answers[key]

		if f.Type == model.FieldCheckbox {
			errs = append(errs, checkCheckbox(key, value, present)...)
			continue
		}

		text, ok := value.(string)
		if !present || (ok && text == "") {
			errs = append(errs, model.FieldError{
				Field:   key,
				Code:    model.ErrRequired,
				Message: "an answer is required",
			})
			continue
		}
		if !ok {
			errs = append(errs, model.FieldError{
				Field:   key,
				Code:    model.ErrInvalidType,
				Message: "answer must be a string",
			})
			continue
		}

		switch f.Type {
		case model.FieldText, model.FieldEmail, model.FieldPassword, model.FieldTextarea:
			errs = append(errs, checkLength(key, f, text)...)
		case model.FieldNumber:
			errs = append(errs, checkNumber(key, f, text)...)
		case model.FieldRadio:
			errs = append(errs, checkChoice(key, f, text)...)
		}
	}

	return errs.OrNil()
}

// A missing checkbox answer means unchecked, never a required error.
func checkCheckbox(key string, value any, present bool) (errs model.FieldErrors) {
	if !present {
		return nil
	}
	if _, ok := value.(bool); !ok {
		errs = append(errs, model.FieldError{
			Field:   key,
			Code:    model.ErrInvalidType,
			Message: "answer must be true or false",
		})
	}
	return
}

func checkLength(key string, f model.Field, text string) (errs model.FieldErrors) {
	n := len([]rune(text))
	if f.MinLength != nil && n < *f.MinLength {
		errs = append(errs, model.FieldError{
			Field:   key,
			Code:    model.ErrLengthOutOfRange,
			Message: fmt.Sprintf("answer must be at least %d characters", *f.MinLength),
		})
	}
	if f.MaxLength != nil && n > *f.MaxLength {
		errs = append(errs, model.FieldError{
			Field:   key,
			Code:    model.ErrLengthOutOfRange,
			Message: fmt.Sprintf("answer must be at most %d characters", *f.MaxLength),
		})
	}
	return
}

func checkNumber(key string, f model.Field, text string) (errs model.FieldErrors) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		errs = append(errs, model.FieldError{
			Field:   key,
			Code:    model.ErrInvalidType,
			Message: fmt.Sprintf("%q is not a number", text),
		})
		return
	}
	if f.Min != nil && v < *f.Min {
		errs = append(errs, model.FieldError{
			Field:   key,
			Code:    model.ErrRangeOutOfRange,
			Message: fmt.Sprintf("value must be at least %v", *f.Min),
		})
	}
	if f.Max != nil && v > *f.Max {
		errs = append(errs, model.FieldError{
			Field:   key,
			Code:    model.ErrRangeOutOfRange,
			Message: fmt.Sprintf("value must be at most %v", *f.Max),
		})
	}
	return
}

func checkChoice(key string, f model.Field, text string) (errs model.FieldErrors) {
	for _, opt := range f.Options {
		if text == opt {
			return nil
		}
	}
	errs = append(errs, model.FieldError{
		Field:   key,
		Code:    model.ErrInvalidChoice,
		Message: fmt.Sprintf("%q is not one of the available options", text),
	})
	return
}
