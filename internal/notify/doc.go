// Package notify delivers a composed notice over an SMTP submission session:
// connect, EHLO, STARTTLS, EHLO, AUTH, one MAIL/RCPT/DATA transaction for all
// recipients, QUIT. The connection is closed on every return path.
package notify
