package model

import (
	"fmt"
	"strings"
)

// Error codes attached to a FieldError.
const (
	ErrRequired         = "required"
	ErrLengthOutOfRange = "length_out_of_range"
	ErrRangeOutOfRange  = "range_out_of_range"
	ErrInvalidType      = "invalid_type"
	ErrInvalidChoice    = "invalid_choice"
	ErrInvalidSchema    = "invalid_schema"
)

// FieldError is one validation problem, attributed to a field by its
// derived key (or to the form itself when Field is empty).
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Field, e.Code, e.Message)
}

// FieldErrors collects every problem found in one validation pass, so a
// client can show all of them at once.
type FieldErrors []FieldError

func (errs FieldErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// OrNil turns an empty collection into a nil error.
func (errs FieldErrors) OrNil() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}
