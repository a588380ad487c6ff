package model

import "time"

// Field types an administrator can author. Everything downstream
// (constraint checks, rendering hints, answer decoding) switches on this.
const (
	FieldText     = "text"
	FieldEmail    = "email"
	FieldNumber   = "number"
	FieldTextarea = "textarea"
	FieldPassword = "password"
	FieldCheckbox = "checkbox"
	FieldRadio    = "radio"
)

// FieldTypes lists every valid field type, in builder display order.
var FieldTypes = []string{
	FieldText, FieldEmail, FieldNumber,
	FieldTextarea, FieldPassword, FieldCheckbox, FieldRadio,
}

// MaxRadioOptions caps the selectable values of a radio field.
const MaxRadioOptions = 5

type Form struct {
	ID        int     `json:"id,omitempty"`
	Version   int     `json:"version,omitempty"`
	Name      string  `json:"name"`
	TimeLimit int     `json:"timeLimit,omitempty"`
	Fields    []Field `json:"fields"`
}

// Field describes one form field and its constraints. Which constraint
// members are meaningful depends on Type; the rest are ignored.
type Field struct {
	Label     string   `json:"label"`
	Type      string   `json:"type"`
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Options   []string `json:"options,omitempty"`
	Checked   bool     `json:"checked,omitempty"`
}

// Summary is the listing projection of a Form: everything but the fields.
type Summary struct {
	ID        int    `json:"id"`
	Version   int    `json:"version"`
	Name      string `json:"name"`
	TimeLimit int    `json:"timeLimit,omitempty"`
}

type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Submission struct {
	ID        int            `json:"id"`
	FormID    int            `json:"form_id"`
	User      User           `json:"user"`
	Answers   map[string]any `json:"answers,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
