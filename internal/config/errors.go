package config

import "errors"

var (
	// ErrMissingSection is returned when a required section is absent from the file.
	ErrMissingSection = errors.New("missing configuration section")
	// ErrMissingKey is returned when a required key is absent or empty.
	ErrMissingKey = errors.New("missing configuration key")
	// ErrInvalidValue is returned when a key is present but cannot be used.
	ErrInvalidValue = errors.New("invalid configuration value")
)
