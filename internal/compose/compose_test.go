package compose

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/sickly/internal/config"
	"github.com/eugenenazirov/sickly/internal/symptom"
)

const testTemplate = `
# Sick notice

Hi all, I am %(status)s and have been for %(duration)s.

%(forecast)s. %(time)s I should be reachable again, so please %(rsvp)s.

Notes: %(msg)s

Regards,
%(user)s

` + "```go\nfmt.Println(\"get well\")\n```\n"

func writeTemplate(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sick.md")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write template: %v", err)
	}
	return path
}

func newTestComposer(t *testing.T, now time.Time) *Composer {
	t.Helper()

	renderer, err := NewRenderer("pygments")
	if err != nil {
		t.Fatalf("NewRenderer returned error: %v", err)
	}
	user := config.User{Name: "Jane Doe", Email: "jane@example.com"}
	return New(user, renderer, zaptest.NewLogger(t), WithClock(func() time.Time { return now }))
}

func mustSymptom(t *testing.T, severity string, duration int) symptom.Symptom {
	t.Helper()

	s, err := symptom.Parse(severity, duration)
	if err != nil {
		t.Fatalf("symptom.Parse returned error: %v", err)
	}
	return s
}

func TestFill(t *testing.T) {
	t.Parallel()

	values := map[string]string{"status": "ill", "user": "Jane"}

	got, unknown := Fill("  %(user)s is %(status)s, 100%% sure. %(mood)s\n", values)
	if want := "Jane is ill, 100% sure. %(mood)s"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if !slices.Equal(unknown, []string{"mood"}) {
		t.Fatalf("expected unknown [mood], got %v", unknown)
	}
}

func TestFillNumericVerb(t *testing.T) {
	t.Parallel()

	got, unknown := Fill("for %(duration)d", map[string]string{"duration": "3 hours"})
	if got != "for 3 hours" || len(unknown) != 0 {
		t.Fatalf("unexpected fill result %q (unknown %v)", got, unknown)
	}
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	s := mustSymptom(t, "3", symptom.UnderAnHour)
	values := Placeholders(s, "stay away", "Jane")

	want := map[string]string{
		"status":   "severely ill",
		"duration": "less than an hour",
		"forecast": s.Forecast(),
		"time":     "In a few days",
		"rsvp":     s.Effect(),
		"msg":      "stay away",
		"user":     "Jane",
	}
	for key, value := range want {
		if values[key] != value {
			t.Fatalf("%s: expected %q, got %q", key, value, values[key])
		}
	}
	if len(values) != len(want) {
		t.Fatalf("unexpected placeholder set: %v", values)
	}
}

func TestComposeBuildsNotice(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 4, 9, 30, 0, 0, time.UTC)
	composer := newTestComposer(t, now)
	path := writeTemplate(t, testTemplate)

	email, err := composer.Compose(Request{
		Symptom:      mustSymptom(t, "1-2", 3),
		Note:         "Feeling rough",
		TemplatePath: path,
		Recipients:   []string{"a@x.com", "b@x.com"},
	})
	if err != nil {
		t.Fatalf("Compose returned error: %v", err)
	}

	if email.Subject != "Sick Notice (Mar 04 2026)" {
		t.Fatalf("unexpected subject %q", email.Subject)
	}
	if email.From != "jane@example.com" || email.FromName != "Jane Doe" {
		t.Fatalf("unexpected sender %q <%s>", email.FromName, email.From)
	}
	if !slices.Equal(email.To, []string{"a@x.com", "b@x.com"}) {
		t.Fatalf("unexpected recipients %v", email.To)
	}

	for _, want := range []string{
		"mildly to moderately ill",
		"3 hours",
		"In a day or two",
		"Notes: Feeling rough",
		"Jane Doe",
	} {
		if !strings.Contains(email.Text, want) {
			t.Fatalf("plain text body missing %q:\n%s", want, email.Text)
		}
	}
	if strings.HasPrefix(email.Text, "\n") || strings.HasSuffix(email.Text, "\n") {
		t.Fatalf("expected trimmed plain text body")
	}

	if !strings.HasPrefix(email.HTML, `<style type="text/css">`) {
		t.Fatalf("expected HTML to start with a style block, got %.60q", email.HTML)
	}
	for _, want := range []string{"<h1", "Sick notice</h1>", "<p>Notes: Feeling rough</p>", `class="chroma"`} {
		if !strings.Contains(email.HTML, want) {
			t.Fatalf("HTML body missing %q", want)
		}
	}
}

func TestComposeIsDeterministic(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.October, 18, 0, 0, 0, 0, time.UTC)
	composer := newTestComposer(t, now)
	path := writeTemplate(t, testTemplate)
	req := Request{
		Symptom:      mustSymptom(t, "2", 1),
		Note:         "NONE",
		TemplatePath: path,
		Recipients:   []string{"a@x.com"},
	}

	first, err := composer.Compose(req)
	if err != nil {
		t.Fatalf("Compose returned error: %v", err)
	}
	second, err := composer.Compose(req)
	if err != nil {
		t.Fatalf("Compose returned error: %v", err)
	}
	if first.Text != second.Text {
		t.Fatalf("expected identical plain text bodies")
	}
	if first.HTML != second.HTML {
		t.Fatalf("expected identical HTML bodies")
	}
}

func TestComposeMissingTemplate(t *testing.T) {
	t.Parallel()

	composer := newTestComposer(t, time.Now())
	path := filepath.Join(t.TempDir(), "absent.md")

	_, err := composer.Compose(Request{Symptom: symptom.Default(), TemplatePath: path})
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("expected error to name %s, got %v", path, err)
	}
	var templateErr *TemplateError
	if !errors.As(err, &templateErr) || templateErr.Path != path {
		t.Fatalf("expected TemplateError for %s, got %v", path, err)
	}
}

func TestEmailWriteTo(t *testing.T) {
	t.Parallel()

	email := &Email{
		Subject:  "Sick Notice (Oct 18 2026)",
		From:     "jane@example.com",
		FromName: "Jane Doe",
		To:       []string{"a@x.com", "b@x.com"},
		Text:     "plain body",
		HTML:     "<p>html body</p>",
	}

	var buf bytes.Buffer
	if _, err := email.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo returned error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Subject: Sick Notice (Oct 18 2026)",
		"jane@example.com",
		"a@x.com",
		"b@x.com",
		"multipart/alternative",
		"text/plain",
		"text/html",
		"plain body",
		"<p>html body</p>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("message missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "text/plain") > strings.Index(out, "text/html") {
		t.Fatalf("expected plain text part before HTML alternative")
	}
}

func TestSubject(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, time.January, 7, 23, 59, 0, 0, time.UTC)
	if got := Subject(day); got != "Sick Notice (Jan 07 2026)" {
		t.Fatalf("unexpected subject %q", got)
	}
}
