package logging

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestWithTool(t *testing.T) {
	logger := slog.Default()
	result := WithTool(logger, "search_emails")
	if result == nil {
		t.Error("WithTool returned nil")
	}
}

func TestWithSession(t *testing.T) {
	logger := slog.Default()
	result := WithSession(logger, "abc123")
	if result == nil {
		t.Error("WithSession returned nil")
	}
}

func TestOperationAttr(t *testing.T) {
	attr := Operation("imap.select")
	if attr.Key != KeyOperation {
		t.Errorf("Operation key = %q, want %q", attr.Key, KeyOperation)
	}
	if attr.Value.String() != "imap.select" {
		t.Errorf("Operation value = %q, want %q", attr.Value.String(), "imap.select")
	}
}

func TestToolAttr(t *testing.T) {
	attr := Tool("move_emails")
	if attr.Key != KeyTool {
		t.Errorf("Tool key = %q, want %q", attr.Key, KeyTool)
	}
	if attr.Value.String() != "move_emails" {
		t.Errorf("Tool value = %q, want %q", attr.Value.String(), "move_emails")
	}
}

func TestFolderAttr(t *testing.T) {
	attr := Folder("INBOX")
	if attr.Key != KeyFolder {
		t.Errorf("Folder key = %q, want %q", attr.Key, KeyFolder)
	}
	if attr.Value.String() != "INBOX" {
		t.Errorf("Folder value = %q, want %q", attr.Value.String(), "INBOX")
	}
}

func TestSessionAttr(t *testing.T) {
	attr := Session("default")
	if attr.Key != KeySession {
		t.Errorf("Session key = %q, want %q", attr.Key, KeySession)
	}
	if attr.Value.String() != "default" {
		t.Errorf("Session value = %q, want %q", attr.Value.String(), "default")
	}
}

func TestTransportAttr(t *testing.T) {
	attr := Transport("stdio")
	if attr.Key != KeyTransport {
		t.Errorf("Transport key = %q, want %q", attr.Key, KeyTransport)
	}
	if attr.Value.String() != "stdio" {
		t.Errorf("Transport value = %q, want %q", attr.Value.String(), "stdio")
	}
}

func TestStatusAttr(t *testing.T) {
	attr := Status(StatusSuccess)
	if attr.Key != KeyStatus {
		t.Errorf("Status key = %q, want %q", attr.Key, KeyStatus)
	}
	if attr.Value.String() != StatusSuccess {
		t.Errorf("Status value = %q, want %q", attr.Value.String(), StatusSuccess)
	}
}

func TestDurationAttr(t *testing.T) {
	attr := Duration(1500 * time.Millisecond)
	if attr.Key != KeyDuration {
		t.Errorf("Duration key = %q, want %q", attr.Key, KeyDuration)
	}
	if attr.Value.String() != "1.5s" {
		t.Errorf("Duration value = %q, want %q", attr.Value.String(), "1.5s")
	}
}

func TestErr(t *testing.T) {
	// Test with error
	err := errors.New("test error")
	attr := Err(err)
	if attr.Key != KeyError {
		t.Errorf("Err key = %q, want %q", attr.Key, KeyError)
	}
	if attr.Value.String() != "test error" {
		t.Errorf("Err value = %q, want %q", attr.Value.String(), "test error")
	}

	// Test with nil - should return an empty group that slog will omit
	attr = Err(nil)
	// Empty Group has empty key
	if attr.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty string (empty group)", attr.Key)
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		token    string
		expected string
	}{
		{"", "<empty>"},
		{"abc123", "[token:6 chars]"},
		{"a_very_long_token_string", "[token:24 chars]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := SanitizeToken(tt.token)
			if result != tt.expected {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.token, result, tt.expected)
			}
		})
	}
}

func TestStatusConstants(t *testing.T) {
	if StatusSuccess != "success" {
		t.Errorf("StatusSuccess = %q, want %q", StatusSuccess, "success")
	}
	if StatusError != "error" {
		t.Errorf("StatusError = %q, want %q", StatusError, "error")
	}
}
