// Package config loads operator configuration from the environment.
//
// Everything is env-first: the server is usually launched by an MCP
// client from a small JSON block where flags are awkward and env vars
// are the norm. CLI flags may override individual values after Load.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/mwege/mailmcp/internal/imapmail"
)

// Transport names accepted by MCP_TRANSPORT.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "streamable-http"
)

const (
	defaultTLSPort      = 993
	defaultStartTLSPort = 143
)

// IMAPConfig describes the upstream mailbox account.
type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// UseTLS selects implicit TLS; false means STARTTLS.
	UseTLS bool

	// InsecureSkipVerify disables certificate checks, for local bridges
	// with self-signed certificates.
	InsecureSkipVerify bool
}

// ServerConfig describes how the MCP side is served.
type ServerConfig struct {
	Transport string
	HTTPAddr  string

	// AuthToken is the static bearer token required on every HTTP
	// request. Mandatory for the HTTP transport, unused for stdio.
	AuthToken string

	// KeepAlive enables periodic heartbeats on streaming HTTP
	// responses so idle proxies do not cut the connection.
	KeepAlive         bool
	KeepAliveInterval time.Duration

	// SessionTimeout evicts sessions without activity.
	SessionTimeout time.Duration

	MetricsEnabled bool
	MetricsAddr    string

	Debug bool
}

// Config is the full operator configuration.
type Config struct {
	IMAP   IMAPConfig
	Server ServerConfig
}

// Load reads configuration from the environment. Missing values get
// defaults; nothing is validated here since flags may still override
// fields. Call Validate before serving.
func Load() Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("imap_host", "")
	v.SetDefault("imap_port", 0)
	v.SetDefault("imap_username", "")
	v.SetDefault("imap_password", "")
	v.SetDefault("imap_use_tls", true)
	v.SetDefault("imap_skip_tls_verify", false)

	v.SetDefault("mcp_transport", TransportStdio)
	v.SetDefault("mcp_http_addr", ":8080")
	v.SetDefault("mcp_auth_token", "")
	v.SetDefault("mcp_sse_keepalive", true)
	v.SetDefault("mcp_keepalive_interval", 15*time.Second)
	v.SetDefault("mcp_session_timeout", 30*time.Minute)

	v.SetDefault("metrics_enabled", false)
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("debug", false)

	cfg := Config{
		IMAP: IMAPConfig{
			Host:               v.GetString("imap_host"),
			Port:               v.GetInt("imap_port"),
			Username:           v.GetString("imap_username"),
			Password:           v.GetString("imap_password"),
			UseTLS:             v.GetBool("imap_use_tls"),
			InsecureSkipVerify: v.GetBool("imap_skip_tls_verify"),
		},
		Server: ServerConfig{
			Transport:         v.GetString("mcp_transport"),
			HTTPAddr:          v.GetString("mcp_http_addr"),
			AuthToken:         v.GetString("mcp_auth_token"),
			KeepAlive:         v.GetBool("mcp_sse_keepalive"),
			KeepAliveInterval: v.GetDuration("mcp_keepalive_interval"),
			SessionTimeout:    v.GetDuration("mcp_session_timeout"),
			MetricsEnabled:    v.GetBool("metrics_enabled"),
			MetricsAddr:       v.GetString("metrics_addr"),
			Debug:             v.GetBool("debug"),
		},
	}

	if cfg.IMAP.Port == 0 {
		if cfg.IMAP.UseTLS {
			cfg.IMAP.Port = defaultTLSPort
		} else {
			cfg.IMAP.Port = defaultStartTLSPort
		}
	}
	return cfg
}

// Validate checks that the configuration can actually serve.
func (c Config) Validate() error {
	switch c.Server.Transport {
	case TransportStdio:
	case TransportHTTP:
		if c.Server.AuthToken == "" {
			return fmt.Errorf("MCP_AUTH_TOKEN is required for the %s transport", TransportHTTP)
		}
	default:
		return fmt.Errorf("unknown transport %q (expected %s or %s)",
			c.Server.Transport, TransportStdio, TransportHTTP)
	}
	if c.Server.KeepAlive && c.Server.KeepAliveInterval <= 0 {
		return fmt.Errorf("keep-alive interval must be positive, got %s", c.Server.KeepAliveInterval)
	}
	return nil
}

// Mailbox converts the IMAP section into a dialable mailbox config.
func (c Config) Mailbox() imapmail.Config {
	return imapmail.Config{
		Host:               c.IMAP.Host,
		Port:               c.IMAP.Port,
		Username:           c.IMAP.Username,
		Password:           c.IMAP.Password,
		UseTLS:             c.IMAP.UseTLS,
		InsecureSkipVerify: c.IMAP.InsecureSkipVerify,
	}
}
