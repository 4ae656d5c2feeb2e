package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mwege/mailmcp/internal/config"
	"github.com/mwege/mailmcp/internal/imapmail"
	"github.com/mwege/mailmcp/internal/instrumentation"
	"github.com/mwege/mailmcp/internal/logging"
	"github.com/mwege/mailmcp/internal/session"
)

// LocalSessionID is the registry id of the single eager session used by
// the stdio transport.
const LocalSessionID = "default"

// ServerContext holds the shared state of the MCP server: the session
// registry, the operator configuration, and the metrics recorder.
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	cfg      config.Config
	registry *session.Registry
	logger   *slog.Logger

	mu       sync.RWMutex
	metrics  *instrumentation.Metrics
	shutdown bool
	localID  string
	dialFn   session.DialFunc
}

// NewServerContext creates a new server context and its session
// registry. Connections dialed by the registry report their command
// timings to the metrics recorder.
func NewServerContext(ctx context.Context, cfg config.Config, logger *slog.Logger) *ServerContext {
	if logger == nil {
		logger = slog.Default()
	}
	shutdownCtx, cancel := context.WithCancel(ctx)

	sc := &ServerContext{
		ctx:     shutdownCtx,
		cancel:  cancel,
		cfg:     cfg,
		logger:  logger,
		metrics: &instrumentation.Metrics{},
	}

	sc.registry = session.NewRegistry(session.Options{
		Dial:        sc.dialMailbox,
		IdleTimeout: cfg.Server.SessionTimeout,
		Logger:      logger,
		OnSessionOpened: func(string) {
			sc.Metrics().IncrementActiveSessions(context.Background())
		},
		OnSessionClosed: func(string) {
			sc.Metrics().DecrementActiveSessions(context.Background())
		},
	})

	return sc
}

func (sc *ServerContext) dialMailbox(ctx context.Context, cfg imapmail.Config) (imapmail.Mailbox, error) {
	sc.mu.RLock()
	dial := sc.dialFn
	sc.mu.RUnlock()
	if dial != nil {
		return dial(ctx, cfg)
	}
	cfg.Observer = func(op, status string, d time.Duration) {
		sc.Metrics().RecordIMAPOperation(context.Background(), op, status, d)
	}
	return imapmail.Dial(ctx, cfg, sc.logger)
}

// SetDialFunc overrides how mailbox connections are established. Tests
// use it to substitute fakes for the IMAP dialer.
func (sc *ServerContext) SetDialFunc(dial session.DialFunc) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.dialFn = dial
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Config returns the operator configuration.
func (sc *ServerContext) Config() config.Config {
	return sc.cfg
}

// Registry returns the session registry.
func (sc *ServerContext) Registry() *session.Registry {
	return sc.registry
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// SetMetrics installs the metrics recorder.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	if m == nil {
		m = &instrumentation.Metrics{}
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics recorder; never nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// StartLocalSession creates the eager session used by the stdio
// transport and connects it if credentials are configured. A failed
// connect is logged, not fatal: the first tool call dials again.
func (sc *ServerContext) StartLocalSession(ctx context.Context) error {
	s, err := sc.registry.Create(LocalSessionID, session.ModeEager, sc.cfg.Mailbox())
	if err != nil {
		return err
	}

	sc.mu.Lock()
	sc.localID = s.ID()
	sc.mu.Unlock()

	if !sc.cfg.Mailbox().Complete() {
		sc.logger.Warn("imap credentials not configured; tool calls will fail until they are set")
		return nil
	}
	if err := s.Connect(ctx); err != nil {
		sc.logger.Warn("initial mailbox connect failed, will retry on first tool call",
			logging.Err(err))
	}
	return nil
}

// LocalSession returns the id of the local eager session, or "" when
// the server runs without one (HTTP transport).
func (sc *ServerContext) LocalSession() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.localID
}

// SessionForContext resolves the session a tool call belongs to. The
// transport session id is tried first; stdio requests fall back to the
// local eager session.
func (sc *ServerContext) SessionForContext(ctx context.Context) (*session.Session, error) {
	if cs := mcpserver.ClientSessionFromContext(ctx); cs != nil {
		if s, err := sc.registry.Resolve(cs.SessionID()); err == nil {
			return s, nil
		}
	}
	if local := sc.LocalSession(); local != "" {
		return sc.registry.Resolve(local)
	}
	return nil, session.ErrNotFound
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown stops the registry, closing every session, and cancels the
// server context. Safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	if sc.shutdown {
		sc.mu.Unlock()
		return nil
	}
	sc.shutdown = true
	sc.mu.Unlock()

	sc.registry.Stop()
	sc.cancel()
	return nil
}
