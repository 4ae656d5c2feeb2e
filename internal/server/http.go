package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mwege/mailmcp/internal/logging"
)

const (
	// MCPEndpointPath is where the streamable HTTP transport is mounted.
	MCPEndpointPath = "/mcp"

	defaultReadHeaderTimeout = 10 * time.Second
	defaultIdleTimeout       = 120 * time.Second
)

// HTTPOptions configures the streamable HTTP transport.
type HTTPOptions struct {
	Addr string

	// AuthToken is required on every request as a bearer token. The
	// check happens before the MCP layer sees the request, so a bad
	// token never creates a session.
	AuthToken string

	// Heartbeat, when positive, sends periodic pings on streaming
	// responses so intermediaries do not drop idle connections.
	Heartbeat time.Duration
}

// HTTPServer serves the MCP protocol over streamable HTTP with static
// bearer authentication. Each MCP session maps to one bound registry
// session via the hooks installed at server construction.
type HTTPServer struct {
	mcpServer     *mcpserver.MCPServer
	serverContext *ServerContext
	opts          HTTPOptions
	health        *HealthChecker
	httpServer    *http.Server
}

// NewHTTPServer creates the HTTP transport adapter.
func NewHTTPServer(mcp *mcpserver.MCPServer, sc *ServerContext, opts HTTPOptions) (*HTTPServer, error) {
	if opts.AuthToken == "" {
		return nil, fmt.Errorf("auth token is required for the HTTP transport")
	}
	return &HTTPServer{
		mcpServer:     mcp,
		serverContext: sc,
		opts:          opts,
	}, nil
}

// SetHealthChecker registers probe endpoints alongside the MCP
// endpoint. Probes are served without authentication.
func (s *HTTPServer) SetHealthChecker(h *HealthChecker) {
	s.health = h
}

// Start serves until the listener fails or Shutdown is called.
func (s *HTTPServer) Start() error {
	streamOpts := []mcpserver.StreamableHTTPOption{
		mcpserver.WithEndpointPath(MCPEndpointPath),
	}
	if s.opts.Heartbeat > 0 {
		streamOpts = append(streamOpts, mcpserver.WithHeartbeatInterval(s.opts.Heartbeat))
	}
	streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer, streamOpts...)

	mux := http.NewServeMux()
	mux.Handle(MCPEndpointPath, s.requireBearer(s.instrument(streamable)))
	if s.health != nil {
		s.health.RegisterHealthEndpoints(mux)
	}

	// No WriteTimeout: streaming responses stay open for the lifetime
	// of the client session.
	s.httpServer = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           mux,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}

	s.serverContext.Logger().Info("starting http server",
		"addr", s.opts.Addr, logging.Transport("streamable-http"))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// requireBearer rejects any request whose Authorization header does not
// carry the configured token. The comparison is constant time.
func (s *HTTPServer) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AuthToken)) != 1 {
			s.serverContext.Logger().Warn("rejected request with invalid bearer token",
				"remote", r.RemoteAddr,
				"token", logging.SanitizeToken(token))
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// instrument records request counts and latencies for the MCP endpoint.
func (s *HTTPServer) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.serverContext.Metrics().RecordHTTPRequest(
			r.Context(), r.Method, MCPEndpointPath, rec.status, time.Since(start))
	})
}

// statusRecorder captures the response status. It forwards Flush so
// streaming responses keep working behind the wrapper.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
