package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

func newTestHTTPServer(t *testing.T, token string) (*HTTPServer, *ServerContext) {
	t.Helper()
	sc := newTestServerContext(t, testConfig())
	mcp := mcpserver.NewMCPServer("test", "0.0.0")
	srv, err := NewHTTPServer(mcp, sc, HTTPOptions{
		Addr:      ":0",
		AuthToken: token,
	})
	if err != nil {
		t.Fatalf("NewHTTPServer() error = %v", err)
	}
	return srv, sc
}

func TestNewHTTPServerRequiresToken(t *testing.T) {
	sc := newTestServerContext(t, testConfig())
	mcp := mcpserver.NewMCPServer("test", "0.0.0")

	if _, err := NewHTTPServer(mcp, sc, HTTPOptions{Addr: ":0"}); err == nil {
		t.Error("expected error for empty auth token")
	}
}

func TestRequireBearer(t *testing.T) {
	srv, sc := newTestHTTPServer(t, "secret-token")

	var reached bool
	handler := srv.requireBearer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
		wantInner  bool
	}{
		{
			name:       "valid token",
			authHeader: "Bearer secret-token",
			wantStatus: http.StatusOK,
			wantInner:  true,
		},
		{
			name:       "wrong token",
			authHeader: "Bearer wrong-token",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing header",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not a bearer scheme",
			authHeader: "Basic c2VjcmV0",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "empty bearer value",
			authHeader: "Bearer ",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(http.MethodPost, MCPEndpointPath, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if reached != tt.wantInner {
				t.Errorf("inner handler reached = %v, want %v", reached, tt.wantInner)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				if rec.Header().Get("WWW-Authenticate") != "Bearer" {
					t.Error("expected WWW-Authenticate header on 401 response")
				}
			}
		})
	}

	// Rejected requests must never have created a session.
	if n := sc.Registry().Len(); n != 0 {
		t.Errorf("registry has %d sessions after rejected requests, want 0", n)
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := bearerToken(req); ok {
		t.Error("expected no token without an Authorization header")
	}

	req.Header.Set("Authorization", "Bearer abc123")
	token, ok := bearerToken(req)
	if !ok || token != "abc123" {
		t.Errorf("bearerToken() = %q, %v, want %q, true", token, ok, "abc123")
	}
}

func TestHealthEndpointsServeWithoutAuth(t *testing.T) {
	srv, sc := newTestHTTPServer(t, "secret-token")
	srv.SetHealthChecker(NewHealthChecker(sc))

	mux := http.NewServeMux()
	srv.health.RegisterHealthEndpoints(mux)

	for _, path := range []string{"/healthz", "/readyz", "/healthz/detailed"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s returned %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestStatusRecorderCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	sr.WriteHeader(http.StatusTeapot)
	if sr.status != http.StatusTeapot {
		t.Errorf("status = %d, want %d", sr.status, http.StatusTeapot)
	}

	// Flush must not panic even when wrapping a plain recorder.
	sr.Flush()
}
