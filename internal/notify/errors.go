package notify

import "errors"

var (
	// ErrSendFailed wraps every failure during a mail session.
	ErrSendFailed = errors.New("unable to send email")
	// ErrStartTLSUnsupported is returned when STARTTLS is mandatory but not offered by the server.
	ErrStartTLSUnsupported = errors.New("mail server does not support STARTTLS")
	// ErrAuthUnsupported is returned when credentials are configured but the server offers no usable AUTH mechanism.
	ErrAuthUnsupported = errors.New("mail server does not support a usable AUTH mechanism")
	// ErrNoRecipients is returned when there is nobody to notify.
	ErrNoRecipients = errors.New("no recipients")
)
