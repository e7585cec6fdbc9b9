package symptom

import (
	"fmt"
	"strconv"
	"strings"
)

// Symptom describes a severity range and how long it has lasted, in hours.
// The zero value is not meaningful; use New, Default or Parse.
type Symptom struct {
	min      Severity
	max      Severity
	duration int
}

// Default returns a medium symptom lasting DefaultDuration hours.
func Default() Symptom {
	return Symptom{min: Medium, max: Medium, duration: DefaultDuration}
}

// New validates the range and duration and returns the resulting Symptom.
func New(low, high Severity, duration int) (Symptom, error) {
	if !low.Valid() || !high.Valid() || low > high {
		return Symptom{}, fmt.Errorf("%w: %d-%d", ErrSeverityOutOfRange, low, high)
	}
	if duration < UnderAnHour {
		return Symptom{}, fmt.Errorf("%w: got %d", ErrInvalidDuration, duration)
	}
	return Symptom{min: low, max: high, duration: duration}, nil
}

// Parse builds a Symptom from a severity argument ("2" or "1-3") and a
// duration in hours. An empty argument selects the default range.
func Parse(severity string, duration int) (Symptom, error) {
	severity = strings.TrimSpace(severity)
	if severity == "" {
		def := Default()
		return New(def.min, def.max, duration)
	}

	if !strings.Contains(severity, "-") {
		value, err := parseSeverity(severity)
		if err != nil {
			return Symptom{}, err
		}
		return New(value, value, duration)
	}

	parts := strings.Split(severity, "-")
	if len(parts) != 2 {
		return Symptom{}, fmt.Errorf("%w: %q", ErrSeverityFormat, severity)
	}
	low, err := parseSeverity(parts[0])
	if err != nil {
		return Symptom{}, err
	}
	high, err := parseSeverity(parts[1])
	if err != nil {
		return Symptom{}, err
	}
	return New(low, high, duration)
}

func parseSeverity(raw string) (Severity, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrSeverityFormat, raw)
	}
	return Severity(value), nil
}

// Range returns the lowest and highest severity.
func (s Symptom) Range() (Severity, Severity) {
	return s.min, s.max
}

// Duration returns the duration in hours, UnderAnHour for less than an hour.
func (s Symptom) Duration() int {
	return s.duration
}

// Status labels how ill the user is, e.g. "mildly to moderately ill".
func (s Symptom) Status() string {
	if s.min == s.max {
		return s.max.adverb() + " ill"
	}
	return s.min.adverb() + " to " + s.max.adverb() + " ill"
}

// DurationText renders the duration as a phrase.
func (s Symptom) DurationText() string {
	switch {
	case s.duration <= 0:
		return "less than an hour"
	case s.duration == 1:
		return "1 hour"
	default:
		return strconv.Itoa(s.duration) + " hours"
	}
}

// Forecast predicts recovery from the worst severity in the range.
func (s Symptom) Forecast() string {
	switch s.max {
	case Mild:
		return "I should be back to full strength by tomorrow"
	case Severe:
		return "I do not expect to recover for several days"
	default:
		return "I expect to recover within a couple of days"
	}
}

// Respite says when the user expects to be available again.
func (s Symptom) Respite() string {
	switch s.max {
	case Mild:
		if s.duration >= 24 {
			return "tomorrow morning"
		}
		return "later today"
	case Severe:
		return "in a few days"
	default:
		return "in a day or two"
	}
}

// Effect asks recipients to do something about the absence.
func (s Symptom) Effect() string {
	switch s.max {
	case Mild:
		return "expect slower replies from me today"
	case Severe:
		return "direct anything urgent to a colleague until I am back"
	default:
		return "reschedule any meetings with me for the next day or so"
	}
}
