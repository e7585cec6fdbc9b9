package symptom

import "fmt"

// Severity is a point on the closed illness scale.
type Severity int

const (
	Mild Severity = iota + 1
	Medium
	Severe
)

// UnderAnHour is the duration sentinel for symptoms that started less than an hour ago.
const UnderAnHour = -1

// DefaultDuration is the duration in hours assumed when none is given.
const DefaultDuration = 1

// Valid reports whether s is on the scale.
func (s Severity) Valid() bool {
	return s >= Mild && s <= Severe
}

func (s Severity) String() string {
	switch s {
	case Mild:
		return "mild"
	case Medium:
		return "medium"
	case Severe:
		return "severe"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// adverb is the form used when describing how ill someone is.
func (s Severity) adverb() string {
	switch s {
	case Mild:
		return "mildly"
	case Severe:
		return "severely"
	default:
		return "moderately"
	}
}
