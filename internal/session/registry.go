package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mwege/mailmcp/internal/imapmail"
	"github.com/mwege/mailmcp/internal/logging"
)

const (
	// DefaultIdleTimeout is how long a session may sit without activity
	// before the sweeper evicts it.
	DefaultIdleTimeout = 30 * time.Minute

	// DefaultSweepInterval is how often the sweeper checks for idle
	// sessions.
	DefaultSweepInterval = time.Minute
)

// Options configures a Registry.
type Options struct {
	// Dial establishes mailbox connections for new sessions. Defaults
	// to imapmail.Dial.
	Dial DialFunc

	// IdleTimeout evicts sessions without activity. Zero applies
	// DefaultIdleTimeout; negative disables eviction.
	IdleTimeout time.Duration

	// SweepInterval overrides the sweep cadence, mainly for tests.
	SweepInterval time.Duration

	Logger *slog.Logger

	// OnSessionOpened and OnSessionClosed are invoked outside the
	// registry lock whenever a session is added or removed. Used for
	// gauge metrics.
	OnSessionOpened func(id string)
	OnSessionClosed func(id string)
}

// Registry tracks live sessions by identifier and evicts idle ones in
// the background until Stop is called.
type Registry struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Session
	stopped  bool

	ticker *time.Ticker
	done   chan struct{}
}

// NewRegistry creates a registry and starts its sweep goroutine.
func NewRegistry(opts Options) *Registry {
	if opts.Dial == nil {
		opts.Dial = func(ctx context.Context, cfg imapmail.Config) (imapmail.Mailbox, error) {
			return imapmail.Dial(ctx, cfg, opts.Logger)
		}
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := &Registry{
		opts:     opts,
		sessions: make(map[string]*Session),
		ticker:   time.NewTicker(opts.SweepInterval),
		done:     make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

// Create registers a new session. An empty id gets a generated one.
func (r *Registry) Create(id string, mode Mode, cfg imapmail.Config) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil, ErrNotFound
	}
	if _, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		return nil, ErrExists
	}
	s := newSession(id, mode, cfg, r.opts.Dial, r.opts.Logger)
	r.sessions[id] = s
	r.mu.Unlock()

	r.opts.Logger.Debug("session registered",
		logging.Session(id), slog.String("mode", mode.String()))
	if r.opts.OnSessionOpened != nil {
		r.opts.OnSessionOpened(id)
	}
	return s, nil
}

// Resolve returns the session for id, recording activity on it.
func (r *Registry) Resolve(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.Touch()
	return s, nil
}

// GetOrCreate resolves id, creating the session if it is unknown. The
// second return value reports whether a new session was created.
func (r *Registry) GetOrCreate(id string, mode Mode, cfg imapmail.Config) (*Session, bool) {
	if s, err := r.Resolve(id); err == nil {
		return s, false
	}
	s, err := r.Create(id, mode, cfg)
	if err == ErrExists {
		// Lost the race to a concurrent creator.
		s, _ = r.Resolve(id)
		return s, false
	}
	if err != nil {
		return nil, false
	}
	return s, true
}

// Touch records activity on a session if it exists.
func (r *Registry) Touch(id string) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		s.Touch()
	}
}

// Close removes and closes one session. Closing an unknown id is a
// no-op.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}

	err := s.Close()
	r.opts.Logger.Debug("session closed", logging.Session(id))
	if r.opts.OnSessionClosed != nil {
		r.opts.OnSessionClosed(id)
	}
	return err
}

// Len reports how many sessions are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Stop halts the sweeper and closes every session. The registry cannot
// be used afterwards.
func (r *Registry) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	r.ticker.Stop()
	close(r.done)

	for _, s := range sessions {
		_ = s.Close()
		if r.opts.OnSessionClosed != nil {
			r.opts.OnSessionClosed(s.ID())
		}
	}
}

func (r *Registry) sweepLoop() {
	for {
		select {
		case <-r.ticker.C:
			r.sweepIdle()
		case <-r.done:
			return
		}
	}
}

// sweepIdle evicts sessions whose last activity is older than the idle
// timeout. Connections are closed outside the registry lock.
func (r *Registry) sweepIdle() {
	if r.opts.IdleTimeout < 0 {
		return
	}
	cutoff := time.Now().Add(-r.opts.IdleTimeout)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.LastActive().Before(cutoff) {
			delete(r.sessions, id)
			expired = append(expired, s)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		_ = s.Close()
		r.opts.Logger.Info("session expired", logging.Session(s.ID()))
		if r.opts.OnSessionClosed != nil {
			r.opts.OnSessionClosed(s.ID())
		}
	}
}
