package imapmail

import (
	"fmt"
	"time"
)

// DefaultDialTimeout bounds the initial TCP/TLS dial.
const DefaultDialTimeout = 30 * time.Second

// Config holds everything needed to establish and authenticate one IMAP
// connection. It is fixed at dial time; changing credentials requires a
// new connection.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// UseTLS selects implicit TLS. When false the connection starts in
	// cleartext and upgrades via STARTTLS.
	UseTLS bool

	// InsecureSkipVerify disables certificate verification. Meant for
	// local bridges (e.g. ProtonMail Bridge) with self-signed certs.
	InsecureSkipVerify bool

	DialTimeout time.Duration

	// Observer, when set, is called after every IMAP exchange with the
	// operation name, "success" or "error", and the elapsed time.
	Observer func(op, status string, d time.Duration)
}

// Addr returns the host:port dial address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Complete reports whether the config carries enough to authenticate.
func (c Config) Complete() bool {
	return c.Host != "" && c.Username != "" && c.Password != ""
}

func (c Config) dialTimeout() time.Duration {
	if c.DialTimeout > 0 {
		return c.DialTimeout
	}
	return DefaultDialTimeout
}
