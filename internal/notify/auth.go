package notify

import (
	"fmt"
	"net/smtp"
	"slices"
	"strings"
)

// loginAuth implements the LOGIN mechanism, which net/smtp does not ship.
type loginAuth struct {
	username string
	password string
	host     string
}

func (a *loginAuth) Start(server *smtp.ServerInfo) (string, []byte, error) {
	if !server.TLS && !isLocalhost(server.Name) {
		return "", nil, fmt.Errorf("refusing LOGIN over unencrypted connection to %s", server.Name)
	}
	if server.Name != a.host {
		return "", nil, fmt.Errorf("wrong host name %q", server.Name)
	}
	return "LOGIN", nil, nil
}

func (a *loginAuth) Next(fromServer []byte, more bool) ([]byte, error) {
	if !more {
		return nil, nil
	}
	switch strings.ToLower(strings.TrimSpace(string(fromServer))) {
	case "username:":
		return []byte(a.username), nil
	case "password:":
		return []byte(a.password), nil
	default:
		return nil, fmt.Errorf("unexpected LOGIN challenge %q", fromServer)
	}
}

func isLocalhost(name string) bool {
	return name == "localhost" || name == "127.0.0.1" || name == "::1"
}

// chooseAuth picks a mechanism from the server's AUTH advertisement,
// preferring CRAM-MD5, then PLAIN, then LOGIN.
func chooseAuth(advertised, username, password, host string) (smtp.Auth, error) {
	mechanisms := strings.Fields(strings.ToUpper(advertised))
	has := func(name string) bool { return slices.Contains(mechanisms, name) }

	switch {
	case has("CRAM-MD5"):
		return smtp.CRAMMD5Auth(username, password), nil
	case has("PLAIN"):
		return smtp.PlainAuth("", username, password, host), nil
	case has("LOGIN"):
		return &loginAuth{username: username, password: password, host: host}, nil
	default:
		return nil, fmt.Errorf("%w: offered %q", ErrAuthUnsupported, advertised)
	}
}
