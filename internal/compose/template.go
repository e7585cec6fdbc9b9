package compose

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/eugenenazirov/sickly/internal/symptom"
)

// placeholderPattern matches %(name)s, %(name)d and the %% escape.
var placeholderPattern = regexp.MustCompile(`%%|%\((\w+)\)[sd]`)

// Placeholders returns the substitution values for a notice.
func Placeholders(s symptom.Symptom, note, user string) map[string]string {
	return map[string]string{
		"status":   s.Status(),
		"duration": s.DurationText(),
		"forecast": s.Forecast(),
		"time":     capitalize(s.Respite()),
		"rsvp":     s.Effect(),
		"msg":      note,
		"user":     user,
	}
}

// Fill replaces every known placeholder in text and trims the result.
// Placeholders without a value are left as written and reported in unknown,
// in order of appearance.
func Fill(text string, values map[string]string) (filled string, unknown []string) {
	filled = placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		if match == "%%" {
			return "%"
		}
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := values[name]
		if !ok {
			unknown = append(unknown, name)
			return match
		}
		return value
	})
	return strings.TrimSpace(filled), unknown
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
