package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/sickly/internal/compose"
	"github.com/eugenenazirov/sickly/internal/config"
	"github.com/eugenenazirov/sickly/internal/notify"
	"github.com/eugenenazirov/sickly/internal/smtptest"
	"github.com/eugenenazirov/sickly/internal/symptom"
)

type recordingSender struct {
	calls int
	from  string
	to    []string
	body  bytes.Buffer
	err   error
}

func (r *recordingSender) Send(_ context.Context, from string, recipients []string, msg io.WriterTo) error {
	r.calls++
	r.from = from
	r.to = recipients
	if _, err := msg.WriteTo(&r.body); err != nil {
		return err
	}
	return r.err
}

var fixedNow = time.Date(2026, time.October, 18, 8, 0, 0, 0, time.UTC)

func baseTestConfig(t *testing.T) config.Config {
	t.Helper()

	dir := t.TempDir()
	template := filepath.Join(dir, "sick.md")
	content := "I am %(status)s (%(duration)s).\n\n%(forecast)s.\n\nNote: %(msg)s\n\n-- %(user)s\n"
	if err := os.WriteFile(template, []byte(content), 0o600); err != nil {
		t.Fatalf("write template: %v", err)
	}

	return config.Config{
		Path: filepath.Join(dir, "config.ini"),
		User: config.User{Name: "Jane Doe", Email: "jane@example.com"},
		Mail: config.Mail{
			Host:     "127.0.0.1",
			Port:     1,
			Username: "jane",
			Password: "secret",
			StartTLS: config.StartTLSMandatory,
		},
		Template: template,
		Style:    "pygments",
	}
}

func TestNewInitializesDependencies(t *testing.T) {
	app, err := New(baseTestConfig(t), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if app.composer == nil || app.sender == nil || app.out == nil {
		t.Fatalf("expected composer, sender and output to be initialized")
	}
	if _, ok := app.sender.(*notify.Notifier); !ok {
		t.Fatalf("expected SMTP notifier by default, got %T", app.sender)
	}
}

func TestNewReturnsErrorForUnknownStyle(t *testing.T) {
	cfg := baseTestConfig(t)
	cfg.Style = "no-such-style"

	if _, err := New(cfg, zaptest.NewLogger(t)); !errors.Is(err, compose.ErrUnknownStyle) {
		t.Fatalf("expected ErrUnknownStyle, got %v", err)
	}
}

func TestRunSendsNotice(t *testing.T) {
	sender := &recordingSender{}
	app, err := New(baseTestConfig(t), zaptest.NewLogger(t), WithSender(sender), WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	result, err := app.Run(context.Background(), Request{
		Severity:   "1-2",
		Duration:   3,
		Note:       "Feeling rough",
		Recipients: []string{"a@x.com", "b@x.com"},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if !result.Sent {
		t.Fatalf("expected notice to be sent")
	}
	if low, high := result.Symptom.Range(); low != symptom.Mild || high != symptom.Medium {
		t.Fatalf("expected range (1, 2), got (%d, %d)", low, high)
	}
	if result.Symptom.Duration() != 3 {
		t.Fatalf("expected duration 3, got %d", result.Symptom.Duration())
	}
	if result.Email.Subject != "Sick Notice (Oct 18 2026)" {
		t.Fatalf("unexpected subject %q", result.Email.Subject)
	}

	if sender.calls != 1 {
		t.Fatalf("expected one send, got %d", sender.calls)
	}
	if sender.from != "jane@example.com" {
		t.Fatalf("unexpected envelope sender %q", sender.from)
	}
	if !slices.Equal(sender.to, []string{"a@x.com", "b@x.com"}) {
		t.Fatalf("unexpected envelope recipients %v", sender.to)
	}
	if !strings.Contains(sender.body.String(), "Feeling rough") {
		t.Fatalf("expected note in message body")
	}
}

func TestRunRejectsSeverityBeforeSideEffects(t *testing.T) {
	sender := &recordingSender{}
	cfg := baseTestConfig(t)
	cfg.Template = filepath.Join(t.TempDir(), "missing.md")
	app, err := New(cfg, zaptest.NewLogger(t), WithSender(sender))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	tests := []struct {
		severity string
		wantErr  error
	}{
		{severity: "1-2-3", wantErr: symptom.ErrSeverityFormat},
		{severity: "x", wantErr: symptom.ErrSeverityFormat},
		{severity: "3-1", wantErr: symptom.ErrSeverityOutOfRange},
		{severity: "4", wantErr: symptom.ErrSeverityOutOfRange},
	}
	for _, tc := range tests {
		_, err := app.Run(context.Background(), Request{Severity: tc.severity, Duration: 1, Recipients: []string{"a@x.com"}})
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: expected %v, got %v", tc.severity, tc.wantErr, err)
		}
	}
	if sender.calls != 0 {
		t.Fatalf("expected no send attempts, got %d", sender.calls)
	}
}

func TestRunMissingTemplate(t *testing.T) {
	sender := &recordingSender{}
	app, err := New(baseTestConfig(t), zaptest.NewLogger(t), WithSender(sender))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	missing := filepath.Join(t.TempDir(), "missing.md")
	_, err = app.Run(context.Background(), Request{Severity: "2", Duration: 1, Template: missing, Recipients: []string{"a@x.com"}})
	if !errors.Is(err, compose.ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound, got %v", err)
	}
	if sender.calls != 0 {
		t.Fatalf("expected no send attempts, got %d", sender.calls)
	}
}

func TestRunDryRunWritesMessage(t *testing.T) {
	sender := &recordingSender{}
	var out bytes.Buffer
	app, err := New(baseTestConfig(t), zaptest.NewLogger(t), WithSender(sender), WithOutput(&out))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	result, err := app.Run(context.Background(), Request{Severity: "3", Duration: symptom.UnderAnHour, Note: "NONE", Recipients: []string{"a@x.com"}, DryRun: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Sent || sender.calls != 0 {
		t.Fatalf("dry run must not send")
	}
	if !strings.Contains(out.String(), "multipart/alternative") {
		t.Fatalf("expected MIME message on output, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "severely ill") {
		t.Fatalf("expected filled template on output")
	}
}

func TestRunPropagatesSendFailure(t *testing.T) {
	sender := &recordingSender{err: notify.ErrSendFailed}
	app, err := New(baseTestConfig(t), zaptest.NewLogger(t), WithSender(sender))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if _, err := app.Run(context.Background(), Request{Severity: "2", Duration: 1, Recipients: []string{"a@x.com"}}); !errors.Is(err, notify.ErrSendFailed) {
		t.Fatalf("expected ErrSendFailed, got %v", err)
	}
}

func TestRunOverSMTP(t *testing.T) {
	srv := smtptest.NewServer(t, smtptest.WithSTARTTLS(), smtptest.WithAuth("PLAIN"))
	cfg := baseTestConfig(t)
	cfg.Mail.Host = srv.Host
	cfg.Mail.Port = srv.Port

	app, err := New(cfg, zaptest.NewLogger(t),
		WithClock(func() time.Time { return fixedNow }),
		WithNotifierOptions(notify.WithTLSConfig(srv.ClientTLSConfig())),
	)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if _, err := app.Run(context.Background(), Request{
		Severity:   "1-2",
		Duration:   3,
		Note:       "Feeling rough",
		Recipients: []string{"a@x.com", "b@x.com"},
	}); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected one transaction, got %d", len(messages))
	}
	msg := messages[0]
	if !msg.TLS || msg.User != "jane" {
		t.Fatalf("expected authenticated TLS session, got %+v", msg)
	}
	if !slices.Equal(msg.To, []string{"a@x.com", "b@x.com"}) {
		t.Fatalf("unexpected recipients %v", msg.To)
	}
	for _, want := range []string{"Subject: Sick Notice (Oct 18 2026)", "text/plain", "text/html", "<style type=3D\"text/css\">"} {
		if !strings.Contains(msg.Data, want) {
			t.Fatalf("message missing %q:\n%s", want, msg.Data)
		}
	}
}
