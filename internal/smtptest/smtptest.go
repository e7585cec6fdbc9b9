// Package smtptest runs a minimal in-process SMTP server for tests. It
// understands just enough of the protocol for net/smtp clients: EHLO,
// STARTTLS, AUTH PLAIN/LOGIN, MAIL, RCPT, DATA, RSET, NOOP and QUIT.
package smtptest

import (
	"bufio"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"fmt"
	"math/big"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// Message is one accepted transaction.
type Message struct {
	From string
	To   []string
	Data string
	// User is the identity that authenticated on the session, if any.
	User string
	// TLS reports whether the transaction ran after STARTTLS.
	TLS bool
}

// Server is a fake SMTP server listening on 127.0.0.1.
type Server struct {
	Host string
	Port int

	ln         net.Listener
	tlsConfig  *tls.Config
	roots      *x509.CertPool
	authMechs  string
	rejectAuth bool

	wg       sync.WaitGroup
	mu       sync.Mutex
	messages []Message
	closed   int
}

// Option configures a Server.
type Option func(*Server)

// WithSTARTTLS advertises STARTTLS backed by a throwaway self-signed certificate.
func WithSTARTTLS() Option {
	return func(s *Server) {
		s.tlsConfig = &tls.Config{}
	}
}

// WithAuth advertises the given AUTH mechanisms, e.g. "PLAIN LOGIN".
func WithAuth(mechanisms string) Option {
	return func(s *Server) {
		s.authMechs = mechanisms
	}
}

// WithRejectedAuth makes every AUTH attempt fail with 535.
func WithRejectedAuth() Option {
	return func(s *Server) {
		s.rejectAuth = true
	}
}

// NewServer starts a server that is stopped when the test ends.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}

	if s.tlsConfig != nil {
		cert, roots, err := selfSignedCertificate()
		if err != nil {
			t.Fatalf("generate certificate: %v", err)
		}
		s.tlsConfig.Certificates = []tls.Certificate{cert}
		s.roots = roots
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	s.ln = ln
	s.Host = "127.0.0.1"
	s.Port = ln.Addr().(*net.TCPAddr).Port

	s.wg.Add(1)
	go s.acceptLoop()

	t.Cleanup(s.Close)
	return s
}

// Close stops accepting and waits for open sessions to finish.
func (s *Server) Close() {
	_ = s.ln.Close()
	s.wg.Wait()
}

// ClientTLSConfig trusts the server certificate.
func (s *Server) ClientTLSConfig() *tls.Config {
	return &tls.Config{RootCAs: s.roots, ServerName: s.Host}
}

// Messages returns the transactions accepted so far.
func (s *Server) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// ClosedSessions counts sessions whose connection has been closed.
func (s *Server) ClosedSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serve(conn)
		}()
	}
}

func (s *Server) serve(conn net.Conn) {
	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		s.closed++
		s.mu.Unlock()
	}()

	r := bufio.NewReader(conn)
	reply := func(lines ...string) {
		for _, line := range lines {
			fmt.Fprintf(conn, "%s\r\n", line)
		}
	}
	readLine := func() (string, error) {
		line, err := r.ReadString('\n')
		return strings.TrimRight(line, "\r\n"), err
	}

	var (
		secure bool
		user   string
		msg    Message
	)

	reply("220 127.0.0.1 ESMTP smtptest")
	for {
		line, err := readLine()
		if err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			reply("500 5.5.2 empty command")
			continue
		}

		switch verb := strings.ToUpper(fields[0]); verb {
		case "EHLO", "HELO":
			lines := []string{"250-127.0.0.1 greets " + strings.Join(fields[1:], " ")}
			if s.tlsConfig != nil && !secure {
				lines = append(lines, "250-STARTTLS")
			}
			if s.authMechs != "" {
				lines = append(lines, "250-AUTH "+s.authMechs)
			}
			lines = append(lines, "250 8BITMIME")
			reply(lines...)
		case "STARTTLS":
			if s.tlsConfig == nil || secure {
				reply("502 5.5.1 STARTTLS not available")
				continue
			}
			reply("220 2.0.0 Ready to start TLS")
			tlsConn := tls.Server(conn, s.tlsConfig)
			if err := tlsConn.Handshake(); err != nil {
				return
			}
			conn = tlsConn
			r = bufio.NewReader(conn)
			secure = true
		case "AUTH":
			name, ok := s.authenticate(fields, reply, readLine)
			if !ok {
				reply("535 5.7.8 Authentication credentials invalid")
				continue
			}
			user = name
			reply("235 2.7.0 Authentication successful")
		case "MAIL":
			msg = Message{From: extractPath(line), User: user, TLS: secure}
			reply("250 2.1.0 OK")
		case "RCPT":
			msg.To = append(msg.To, extractPath(line))
			reply("250 2.1.5 OK")
		case "DATA":
			reply("354 End data with <CR><LF>.<CR><LF>")
			var data strings.Builder
			for {
				dline, err := readLine()
				if err != nil {
					return
				}
				if dline == "." {
					break
				}
				dline = strings.TrimPrefix(dline, ".")
				data.WriteString(dline)
				data.WriteString("\r\n")
			}
			msg.Data = data.String()
			s.mu.Lock()
			s.messages = append(s.messages, msg)
			s.mu.Unlock()
			msg = Message{}
			reply("250 2.0.0 OK: queued")
		case "RSET":
			msg = Message{}
			reply("250 2.0.0 OK")
		case "NOOP":
			reply("250 2.0.0 OK")
		case "QUIT":
			reply("221 2.0.0 Bye")
			return
		default:
			reply("502 5.5.2 command not recognized")
		}
	}
}

// authenticate runs the AUTH exchange and returns the authenticated user.
func (s *Server) authenticate(fields []string, reply func(...string), readLine func() (string, error)) (string, bool) {
	if len(fields) < 2 || s.rejectAuth {
		return "", false
	}

	decode := func(encoded string) (string, bool) {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
		return string(raw), err == nil
	}

	switch strings.ToUpper(fields[1]) {
	case "PLAIN":
		encoded := ""
		if len(fields) > 2 {
			encoded = fields[2]
		} else {
			reply("334 ")
			line, err := readLine()
			if err != nil {
				return "", false
			}
			encoded = line
		}
		creds, ok := decode(encoded)
		if !ok {
			return "", false
		}
		// authzid NUL authcid NUL password
		parts := strings.Split(creds, "\x00")
		if len(parts) != 3 || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	case "LOGIN":
		reply("334 " + base64.StdEncoding.EncodeToString([]byte("Username:")))
		line, err := readLine()
		if err != nil {
			return "", false
		}
		name, ok := decode(line)
		if !ok {
			return "", false
		}
		reply("334 " + base64.StdEncoding.EncodeToString([]byte("Password:")))
		if _, err := readLine(); err != nil {
			return "", false
		}
		return name, true
	default:
		return "", false
	}
}

func extractPath(line string) string {
	start := strings.Index(line, "<")
	end := strings.Index(line, ">")
	if start < 0 || end < start {
		return ""
	}
	return line[start+1 : end]
}

func selfSignedCertificate() (tls.Certificate, *x509.CertPool, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, nil, err
	}

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: "smtptest"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		DNSNames:              []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, nil, err
	}

	roots := x509.NewCertPool()
	roots.AddCert(leaf)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}, roots, nil
}
