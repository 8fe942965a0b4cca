package leads

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var placeholderNames = map[string]struct{}{
	"cliente":         {},
	"customer":        {},
	"unknown":         {},
	"desconocido":     {},
	"usuario":         {},
	"user":            {},
	"n/a":             {},
	"na":              {},
	"null":            {},
	"none":            {},
	"nombre":          {},
	"sin nombre":      {},
	"lead sin nombre": {},
	"prospecto":       {},
}

// IsPlaceholderName reports whether name is one of the stand-ins the model
// writes when it does not know the customer's name.
func IsPlaceholderName(name string) bool {
	_, ok := placeholderNames[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Validate applies the lead validity gate. It is pure and idempotent.
func Validate(c Candidate) error {
	name := strings.TrimSpace(c.Name)
	if utf8.RuneCountInString(name) < 3 || !hasLetter(name) {
		return ErrInvalidName
	}
	if IsPlaceholderName(name) {
		return ErrPlaceholderName
	}
	if utf8.RuneCountInString(strings.TrimSpace(c.Interest)) < 2 {
		return ErrMissingInterest
	}
	if utf8.RuneCountInString(strings.TrimSpace(c.Appointment)) < 2 {
		return ErrMissingAppointment
	}
	return nil
}

// IsValid is Validate as a predicate.
func IsValid(c Candidate) bool {
	return Validate(c) == nil
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
