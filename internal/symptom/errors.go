package symptom

import "errors"

var (
	// ErrSeverityFormat is returned when a severity argument is neither a single integer nor a "min-max" range.
	ErrSeverityFormat = errors.New("severity ranges must be of the format 'min-max'")
	// ErrSeverityOutOfRange is returned when a severity falls outside the scale or a range is inverted.
	ErrSeverityOutOfRange = errors.New("severity out of range")
	// ErrInvalidDuration is returned when the duration is below the -1 sentinel.
	ErrInvalidDuration = errors.New("duration must be -1 or a non-negative number of hours")
)
