// Package form validates submitted HTML forms field by field.
package form

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Errors collects validation messages per field name.
type Errors map[string][]string

func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Get returns the first message recorded for field, or "".
func (e Errors) Get(field string) string {
	if msgs := e[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

func (e Errors) Valid() bool {
	return len(e) == 0
}

// A fieldValFn checks one field value and returns a message describing the failure.
type fieldValFn func(value string) error

// runFieldValFns runs fns in order and records the first failure for field.
func runFieldValFns(errs Errors, field, value string, fns ...fieldValFn) {
	for _, fn := range fns {
		if err := fn(value); err != nil {
			errs.Add(field, err.Error())
			return
		}
	}
}

type validationError string

func (e validationError) Error() string { return string(e) }

func required(value string) error {
	if strings.TrimSpace(value) == "" {
		return validationError("This field is required.")
	}
	return nil
}

func email(value string) error {
	if err := validate.Var(strings.TrimSpace(value), "required,email"); err != nil {
		return validationError("Invalid email address.")
	}
	return nil
}

func maxLen(n int) fieldValFn {
	return func(value string) error {
		if utf8.RuneCountInString(value) > n {
			return validationError(fmt.Sprintf("Field cannot be longer than %d characters.", n))
		}
		return nil
	}
}

func length(min, max int) fieldValFn {
	return func(value string) error {
		if n := utf8.RuneCountInString(strings.TrimSpace(value)); n < min || n > max {
			return validationError(fmt.Sprintf("Field must be between %d and %d characters long.", min, max))
		}
		return nil
	}
}

func equalTo(other, otherName string) fieldValFn {
	return func(value string) error {
		if value != other {
			return validationError(fmt.Sprintf("Field must be equal to %s.", otherName))
		}
		return nil
	}
}
