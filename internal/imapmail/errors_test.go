package imapmail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "wrapped package error",
			err:  fmt.Errorf("handler: %w", E(KindAuthFailed, "login", errors.New("bad credentials"))),
			want: KindAuthFailed,
		},
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: KindTimeout,
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: KindCommand,
		},
		{
			name: "not found",
			err:  Errorf(KindNotFound, "fetch", "message 9 not found"),
			want: KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindConnectionFailed, true},
		{KindTimeout, true},
		{KindAuthFailed, false},
		{KindCommand, false},
		{KindNotFound, false},
		{KindTLS, false},
		{KindParse, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := Retryable(tt.kind); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestErrorString(t *testing.T) {
	err := Errorf(KindNotFound, "fetch", "message %s not found in %s", "42", "INBOX")
	got := err.Error()
	for _, want := range []string{"fetch", "not_found", "message 42 not found in INBOX"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q, missing %q", got, want)
		}
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(Errorf(KindNotFound, "fetch", "gone")) {
		t.Error("IsNotFound() = false for not_found error")
	}
	if IsNotFound(Errorf(KindCommand, "fetch", "NO")) {
		t.Error("IsNotFound() = true for command error")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateAuthenticating, "authenticating"},
		{StateReady, "ready"},
		{StateFailed, "failed"},
		{StateClosed, "closed"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
