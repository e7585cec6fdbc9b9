package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/sickly/internal/config"
)

// Sender delivers an encoded message to a set of recipients.
type Sender interface {
	Send(ctx context.Context, from string, recipients []string, msg io.WriterTo) error
}

// Notifier is the SMTP-backed Sender.
type Notifier struct {
	cfg       config.Mail
	logger    *zap.Logger
	tlsConfig *tls.Config
	localName string
	timeout   time.Duration
}

// Option configures Notifier behaviour.
type Option func(*Notifier)

// WithTLSConfig overrides the TLS client configuration used for STARTTLS.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(n *Notifier) {
		n.tlsConfig = cfg
	}
}

// WithLocalName sets the name announced in EHLO.
func WithLocalName(name string) Option {
	return func(n *Notifier) {
		n.localName = name
	}
}

// WithDialTimeout bounds connection establishment. Zero leaves it to the OS.
func WithDialTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		n.timeout = d
	}
}

// New constructs a Notifier for the configured mail server.
func New(cfg config.Mail, logger *zap.Logger, opts ...Option) *Notifier {
	n := &Notifier{
		cfg:       cfg,
		logger:    logger,
		localName: "localhost",
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Addr returns the host:port of the mail server.
func (n *Notifier) Addr() string {
	return net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
}

// Send runs one complete mail session. Any failure is wrapped in ErrSendFailed.
func (n *Notifier) Send(ctx context.Context, from string, recipients []string, msg io.WriterTo) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if len(recipients) == 0 {
		return errors.Join(ErrSendFailed, ErrNoRecipients)
	}

	start := time.Now()
	if err := n.send(ctx, from, recipients, msg); err != nil {
		n.logger.Debug("mail session failed",
			zap.String("addr", n.Addr()),
			zap.Error(err),
		)
		return errors.Join(ErrSendFailed, err)
	}

	n.logger.Info("notice delivered",
		zap.String("addr", n.Addr()),
		zap.Strings("recipients", recipients),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (n *Notifier) send(ctx context.Context, from string, recipients []string, msg io.WriterTo) error {
	dialer := net.Dialer{Timeout: n.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", n.Addr())
	if err != nil {
		return fmt.Errorf("connect to %s: %w", n.Addr(), err)
	}
	// Cancelling ctx aborts a session blocked on the server.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	client, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("read greeting from %s: %w", n.Addr(), err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Hello(n.localName); err != nil {
		return fmt.Errorf("EHLO: %w", err)
	}

	if err := n.startTLS(client); err != nil {
		return err
	}

	if err := n.authenticate(client); err != nil {
		return err
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("MAIL FROM %s: %w", from, err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := msg.WriteTo(w); err != nil {
		_ = w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	if err := client.Quit(); err != nil {
		// the message was accepted when DATA completed
		n.logger.Debug("QUIT failed", zap.Error(err))
	}
	return nil
}

// startTLS upgrades the session according to the configured policy. The
// client re-announces itself with EHLO after the handshake.
func (n *Notifier) startTLS(client *smtp.Client) error {
	if n.cfg.StartTLS == config.StartTLSNone {
		return nil
	}

	if ok, _ := client.Extension("STARTTLS"); !ok {
		if n.cfg.StartTLS == config.StartTLSOpportunistic {
			n.logger.Warn("mail server does not offer STARTTLS, continuing unencrypted",
				zap.String("addr", n.Addr()),
			)
			return nil
		}
		return fmt.Errorf("%w: %s", ErrStartTLSUnsupported, n.Addr())
	}

	tlsConfig := &tls.Config{ServerName: n.cfg.Host}
	if n.tlsConfig != nil {
		tlsConfig = n.tlsConfig.Clone()
		if tlsConfig.ServerName == "" {
			tlsConfig.ServerName = n.cfg.Host
		}
	}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("STARTTLS: %w", err)
	}
	return nil
}

func (n *Notifier) authenticate(client *smtp.Client) error {
	if n.cfg.Username == "" {
		return nil
	}

	ok, advertised := client.Extension("AUTH")
	if !ok {
		return fmt.Errorf("%w: %s offers no AUTH", ErrAuthUnsupported, n.Addr())
	}
	auth, err := chooseAuth(advertised, n.cfg.Username, n.cfg.Password, n.cfg.Host)
	if err != nil {
		return err
	}
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("AUTH as %s: %w", n.cfg.Username, err)
	}
	return nil
}
