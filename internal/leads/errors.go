package leads

import "errors"

var (
	// ErrInvalidName is returned when the name is missing, too short or has no letters
	ErrInvalidName = errors.New("leads: name is invalid")

	// ErrPlaceholderName is returned when the name is a stand-in like "cliente"
	ErrPlaceholderName = errors.New("leads: name is a placeholder")

	ErrMissingInterest    = errors.New("leads: interest is required")
	ErrMissingAppointment = errors.New("leads: appointment is required")

	// ErrMissingPhone is returned when recording a lead without a phone key
	ErrMissingPhone = errors.New("leads: phone is required")
)
