package application

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/sickly/internal/compose"
	"github.com/eugenenazirov/sickly/internal/config"
	"github.com/eugenenazirov/sickly/internal/notify"
	"github.com/eugenenazirov/sickly/internal/symptom"
)

// App encapsulates the dependencies needed to send one notice.
type App struct {
	cfg      config.Config
	composer *compose.Composer
	sender   notify.Sender
	logger   *zap.Logger
	out      io.Writer
}

type appOptions struct {
	clock        func() time.Time
	sender       notify.Sender
	out          io.Writer
	notifierOpts []notify.Option
}

// Option configures App construction.
type Option func(*appOptions)

// WithClock overrides the time source for the subject date, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *appOptions) {
		o.clock = clock
	}
}

// WithSender replaces the SMTP notifier.
func WithSender(sender notify.Sender) Option {
	return func(o *appOptions) {
		o.sender = sender
	}
}

// WithOutput sets where dry runs write the encoded message. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(o *appOptions) {
		o.out = w
	}
}

// WithNotifierOptions forwards options to the SMTP notifier.
func WithNotifierOptions(opts ...notify.Option) Option {
	return func(o *appOptions) {
		o.notifierOpts = append(o.notifierOpts, opts...)
	}
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	o := appOptions{
		clock: time.Now,
		out:   os.Stdout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	renderer, err := compose.NewRenderer(cfg.Style)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare renderer: %w", err)
	}

	sender := o.sender
	if sender == nil {
		sender = notify.New(cfg.Mail, logger, o.notifierOpts...)
	}

	return &App{
		cfg:      cfg,
		composer: compose.New(cfg.User, renderer, logger, compose.WithClock(o.clock)),
		sender:   sender,
		logger:   logger,
		out:      o.out,
	}, nil
}

// Request is one parsed invocation.
type Request struct {
	Severity   string
	Duration   int
	Template   string
	Note       string
	Recipients []string
	DryRun     bool
}

// Result describes what Run did.
type Result struct {
	Symptom symptom.Symptom
	Email   *compose.Email
	Sent    bool
}

// Run validates the severity, composes the notice and sends it, or writes it
// to the output on a dry run. Validation happens before any file or network
// access.
func (a *App) Run(ctx context.Context, req Request) (*Result, error) {
	s, err := symptom.Parse(req.Severity, req.Duration)
	if err != nil {
		return nil, err
	}

	templatePath := req.Template
	if templatePath == "" {
		templatePath = a.cfg.Template
	}

	low, high := s.Range()
	a.logger.Debug("composing notice",
		zap.Stringer("min_severity", low),
		zap.Stringer("max_severity", high),
		zap.Int("duration", s.Duration()),
		zap.String("template", templatePath),
	)

	email, err := a.composer.Compose(compose.Request{
		Symptom:      s,
		Note:         req.Note,
		TemplatePath: templatePath,
		Recipients:   req.Recipients,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{Symptom: s, Email: email}
	if req.DryRun {
		if _, err := email.WriteTo(a.out); err != nil {
			return nil, fmt.Errorf("write message: %w", err)
		}
		return result, nil
	}

	if err := a.sender.Send(ctx, email.From, email.To, email.Message()); err != nil {
		return nil, err
	}
	result.Sent = true
	return result, nil
}
