package compose

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"time"

	"go.uber.org/zap"
	"gopkg.in/mail.v2"

	"github.com/eugenenazirov/sickly/internal/config"
	"github.com/eugenenazirov/sickly/internal/symptom"
)

const subjectDateLayout = "Jan 02 2006"

// Email is a composed notice, ready to be turned into a MIME message.
type Email struct {
	Subject  string
	From     string
	FromName string
	To       []string
	Text     string
	HTML     string
}

// Message builds the multipart/alternative message with the plain-text body
// first and the HTML body as the preferred alternative.
func (e *Email) Message() *mail.Message {
	m := mail.NewMessage()
	m.SetAddressHeader("From", e.From, e.FromName)
	m.SetHeader("To", e.To...)
	m.SetHeader("Subject", e.Subject)
	m.SetBody("text/plain", e.Text)
	m.AddAlternative("text/html", e.HTML)
	return m
}

// WriteTo writes the encoded message to w.
func (e *Email) WriteTo(w io.Writer) (int64, error) {
	return e.Message().WriteTo(w)
}

// Request carries the per-invocation input of Compose.
type Request struct {
	Symptom      symptom.Symptom
	Note         string
	TemplatePath string
	Recipients   []string
}

// Composer fills templates on behalf of one configured user.
type Composer struct {
	user     config.User
	renderer *Renderer
	logger   *zap.Logger
	clock    func() time.Time
}

// Option configures Composer behaviour.
type Option func(*Composer)

// WithClock overrides the time source used for the subject date, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Composer) {
		c.clock = clock
	}
}

// New constructs a Composer.
func New(user config.User, renderer *Renderer, logger *zap.Logger, opts ...Option) *Composer {
	c := &Composer{
		user:     user,
		renderer: renderer,
		logger:   logger,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subject returns the notice subject for the given day.
func Subject(day time.Time) string {
	return fmt.Sprintf("Sick Notice (%s)", day.Format(subjectDateLayout))
}

// Compose reads the template, fills it and renders both bodies.
func (c *Composer) Compose(req Request) (*Email, error) {
	raw, err := os.ReadFile(req.TemplatePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &TemplateError{Path: req.TemplatePath, Err: ErrTemplateNotFound}
		}
		return nil, fmt.Errorf("read template %s: %w", req.TemplatePath, err)
	}

	text, unknown := Fill(string(raw), Placeholders(req.Symptom, req.Note, c.user.Name))
	if len(unknown) > 0 {
		c.logger.Warn("template references unknown placeholders",
			zap.String("template", req.TemplatePath),
			zap.Strings("placeholders", unknown),
		)
	}

	html, err := c.renderer.Render(text)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("notice composed",
		zap.String("template", req.TemplatePath),
		zap.Int("text_bytes", len(text)),
		zap.Int("html_bytes", len(html)),
	)

	return &Email{
		Subject:  Subject(c.clock()),
		From:     c.user.Email,
		FromName: c.user.Name,
		To:       slices.Clone(req.Recipients),
		Text:     text,
		HTML:     html,
	}, nil
}
