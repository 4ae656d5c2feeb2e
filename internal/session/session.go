package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mwege/mailmcp/internal/imapmail"
	"github.com/mwege/mailmcp/internal/logging"
)

var (
	// ErrNotFound is returned when a session identifier is unknown.
	ErrNotFound = errors.New("session not found")

	// ErrExists is returned when creating a session whose identifier is
	// already registered.
	ErrExists = errors.New("session already exists")

	// ErrTerminated is returned for operations on a bound session whose
	// connection has failed. The client must initialize a new MCP
	// session to continue.
	ErrTerminated = errors.New("session connection failed; initialize a new session")
)

// DialFunc establishes a mailbox connection. Production code uses
// imapmail.Dial; tests substitute fakes.
type DialFunc func(ctx context.Context, cfg imapmail.Config) (imapmail.Mailbox, error)

// Mode selects the failure policy of a session.
type Mode int

const (
	// ModeEager sessions re-dial once per operation after a detected
	// connection failure.
	ModeEager Mode = iota

	// ModeBound sessions are terminal on connection failure.
	ModeBound
)

func (m Mode) String() string {
	if m == ModeBound {
		return "bound"
	}
	return "eager"
}

// Session pairs one session identifier with one mailbox connection.
type Session struct {
	id     string
	mode   Mode
	cfg    imapmail.Config
	dial   DialFunc
	logger *slog.Logger

	mu       sync.Mutex
	mbox     imapmail.Mailbox
	terminal bool

	lastActive atomic.Int64
}

func newSession(id string, mode Mode, cfg imapmail.Config, dial DialFunc, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		id:     id,
		mode:   mode,
		cfg:    cfg,
		dial:   dial,
		logger: logging.WithSession(logger, id),
	}
	s.Touch()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Mode returns the session's failure policy.
func (s *Session) Mode() Mode { return s.mode }

// Touch records activity for idle eviction.
func (s *Session) Touch() { s.lastActive.Store(time.Now().UnixNano()) }

// LastActive reports when the session last saw activity.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Mailbox returns a usable mailbox connection, dialing if the session
// has none yet. A failed connection is replaced at most once per call
// for eager sessions; for bound sessions the failure is terminal.
func (s *Session) Mailbox(ctx context.Context) (imapmail.Mailbox, error) {
	s.Touch()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminal {
		return nil, ErrTerminated
	}

	if s.mbox != nil {
		switch s.mbox.State() {
		case imapmail.StateFailed, imapmail.StateClosed:
			_ = s.mbox.Close()
			s.mbox = nil
			if s.mode == ModeBound {
				s.terminal = true
				s.logger.Warn("bound session lost its connection")
				return nil, ErrTerminated
			}
			s.logger.Info("reconnecting after connection failure")
		default:
			return s.mbox, nil
		}
	}

	mbox, err := s.dial(ctx, s.cfg)
	if err != nil {
		if s.mode == ModeBound {
			s.terminal = true
		}
		s.logger.Warn("mailbox dial failed", logging.Err(err))
		return nil, err
	}
	s.mbox = mbox
	return mbox, nil
}

// Connect establishes the connection up front. Used by the stdio
// transport to authenticate at startup rather than on first tool call.
func (s *Session) Connect(ctx context.Context) error {
	_, err := s.Mailbox(ctx)
	return err
}

// State reports the state of the underlying connection.
func (s *Session) State() imapmail.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal {
		return imapmail.StateFailed
	}
	if s.mbox == nil {
		return imapmail.StateDisconnected
	}
	return s.mbox.State()
}

// Close releases the connection. Safe to call more than once; a closed
// session never dials again.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminal = true
	if s.mbox == nil {
		return nil
	}
	err := s.mbox.Close()
	s.mbox = nil
	return err
}
