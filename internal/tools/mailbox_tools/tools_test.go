package mailbox_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mwege/mailmcp/internal/config"
	"github.com/mwege/mailmcp/internal/imapmail"
	"github.com/mwege/mailmcp/internal/server"
)

// fakeMailbox is an in-memory Mailbox used by the handler tests.
type fakeMailbox struct {
	folders     []imapmail.FolderInfo
	metas       map[string][]imapmail.EmailMetadata          // folder -> search results
	emails      map[string]*imapmail.EmailContent            // id -> content
	tags        map[string][]string                          // id -> tags
	attachments map[string]map[string]*imapmail.AttachmentData // id -> name -> data
	moveErrs    map[string]error                             // id -> forced move failure

	calls atomic.Int32
	state atomic.Int32
}

func newFakeMailbox() *fakeMailbox {
	f := &fakeMailbox{
		metas:       make(map[string][]imapmail.EmailMetadata),
		emails:      make(map[string]*imapmail.EmailContent),
		tags:        make(map[string][]string),
		attachments: make(map[string]map[string]*imapmail.AttachmentData),
		moveErrs:    make(map[string]error),
	}
	f.state.Store(int32(imapmail.StateReady))
	return f
}

func (f *fakeMailbox) ListFolders(context.Context) ([]imapmail.FolderInfo, error) {
	f.calls.Add(1)
	return f.folders, nil
}

func (f *fakeMailbox) Search(_ context.Context, folder string, q imapmail.SearchQuery) ([]imapmail.EmailMetadata, error) {
	f.calls.Add(1)
	var out []imapmail.EmailMetadata
	for _, m := range f.metas[folder] {
		if !q.Since.IsZero() && m.Date.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && !m.Date.Before(q.Until.AddDate(0, 0, 1)) {
			continue
		}
		out = append(out, m)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeMailbox) Fetch(_ context.Context, _ string, id string) (*imapmail.EmailContent, error) {
	f.calls.Add(1)
	email, ok := f.emails[id]
	if !ok {
		return nil, imapmail.Errorf(imapmail.KindNotFound, "fetch", "message %s not found", id)
	}
	return email, nil
}

func (f *fakeMailbox) FetchAttachment(_ context.Context, _ string, id, name string) (*imapmail.AttachmentData, error) {
	f.calls.Add(1)
	att, ok := f.attachments[id][name]
	if !ok {
		return nil, imapmail.Errorf(imapmail.KindNotFound, "fetch_attachment", "attachment %s not found", name)
	}
	return att, nil
}

func (f *fakeMailbox) ListTags(context.Context, string) ([]string, error) {
	f.calls.Add(1)
	return []string{"\\Seen", "\\Answered", "\\Flagged"}, nil
}

func (f *fakeMailbox) GetTags(_ context.Context, _ string, id string) ([]string, error) {
	f.calls.Add(1)
	if _, ok := f.emails[id]; !ok {
		return nil, imapmail.Errorf(imapmail.KindNotFound, "get_tags", "message %s not found", id)
	}
	return f.tags[id], nil
}

func (f *fakeMailbox) ApplyTag(_ context.Context, _ string, id, tag string) error {
	f.calls.Add(1)
	if _, ok := f.emails[id]; !ok {
		return imapmail.Errorf(imapmail.KindNotFound, "apply_tag", "message %s not found", id)
	}
	for _, t := range f.tags[id] {
		if t == tag {
			return nil
		}
	}
	f.tags[id] = append(f.tags[id], tag)
	return nil
}

func (f *fakeMailbox) RemoveTag(_ context.Context, _ string, id, tag string) error {
	f.calls.Add(1)
	if _, ok := f.emails[id]; !ok {
		return imapmail.Errorf(imapmail.KindNotFound, "remove_tag", "message %s not found", id)
	}
	tags := f.tags[id][:0]
	for _, t := range f.tags[id] {
		if t != tag {
			tags = append(tags, t)
		}
	}
	f.tags[id] = tags
	return nil
}

func (f *fakeMailbox) Move(_ context.Context, _ string, id, _ string) error {
	f.calls.Add(1)
	if err, ok := f.moveErrs[id]; ok {
		return err
	}
	if _, ok := f.emails[id]; !ok {
		return imapmail.Errorf(imapmail.KindNotFound, "move", "message %s not found", id)
	}
	return nil
}

func (f *fakeMailbox) MoveMany(ctx context.Context, folder string, ids []string, dest string) ([]imapmail.MoveStatus, error) {
	statuses := make([]imapmail.MoveStatus, 0, len(ids))
	for _, id := range ids {
		err := f.Move(ctx, folder, id, dest)
		statuses = append(statuses, imapmail.MoveStatus{ID: id, Moved: err == nil, Err: err})
	}
	return statuses, nil
}

func (f *fakeMailbox) State() imapmail.State {
	return imapmail.State(f.state.Load())
}

func (f *fakeMailbox) Close() error {
	f.state.Store(int32(imapmail.StateClosed))
	return nil
}

func toolTestConfig() config.Config {
	return config.Config{
		IMAP: config.IMAPConfig{
			Host:     "imap.example.com",
			Port:     993,
			Username: "user@example.com",
			Password: "secret",
			UseTLS:   true,
		},
		Server: config.ServerConfig{
			Transport:      config.TransportStdio,
			SessionTimeout: time.Minute,
		},
	}
}

// newToolContext builds a server context whose local session is backed
// by the given fake mailbox.
func newToolContext(t *testing.T, mbox imapmail.Mailbox) *server.ServerContext {
	t.Helper()
	sc := server.NewServerContext(context.Background(), toolTestConfig(), slog.Default())
	sc.SetDialFunc(func(context.Context, imapmail.Config) (imapmail.Mailbox, error) {
		return mbox, nil
	})
	if err := sc.StartLocalSession(context.Background()); err != nil {
		t.Fatalf("StartLocalSession() error = %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

// emptyToolContext builds a server context with no sessions at all.
func emptyToolContext(t *testing.T) *server.ServerContext {
	t.Helper()
	sc := server.NewServerContext(context.Background(), toolTestConfig(), slog.Default())
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func mcpserverForTest() *mcpserver.MCPServer {
	return mcpserver.NewMCPServer("test", "0.0.0")
}

func newRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// decodeResult unmarshals the text content of a successful result.
func decodeResult(t *testing.T, result *mcp.CallToolResult, v interface{}) {
	t.Helper()
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), v); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
}

// decodeError unmarshals the structured error payload of a failed result.
func decodeError(t *testing.T, result *mcp.CallToolResult) toolError {
	t.Helper()
	if !result.IsError {
		t.Fatalf("expected error result, got: %s", resultText(t, result))
	}
	var te toolError
	if err := json.Unmarshal([]byte(resultText(t, result)), &te); err != nil {
		t.Fatalf("failed to decode error payload: %v", err)
	}
	return te
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", result.Content[0])
	}
	return text.Text
}

func TestHandlersWithoutSession(t *testing.T) {
	sc := emptyToolContext(t)
	ctx := context.Background()

	handlers := map[string]func() (*mcp.CallToolResult, error){
		"list_mailboxes": func() (*mcp.CallToolResult, error) {
			return handleListMailboxes(ctx, newRequest(nil), sc)
		},
		"search_emails": func() (*mcp.CallToolResult, error) {
			return handleSearchEmails(ctx, newRequest(map[string]interface{}{}), sc)
		},
		"get_email": func() (*mcp.CallToolResult, error) {
			return handleGetEmail(ctx, newRequest(map[string]interface{}{"email_id": "1"}), sc)
		},
		"list_tags": func() (*mcp.CallToolResult, error) {
			return handleListTags(ctx, newRequest(nil), sc)
		},
		"get_email_tags": func() (*mcp.CallToolResult, error) {
			return handleGetEmailTags(ctx, newRequest(map[string]interface{}{"email_id": "1"}), sc)
		},
		"apply_tag": func() (*mcp.CallToolResult, error) {
			return handleModifyTag(ctx, newRequest(map[string]interface{}{"email_id": "1", "tag": "\\Seen"}), sc, false)
		},
		"move_email": func() (*mcp.CallToolResult, error) {
			return handleMoveEmail(ctx, newRequest(map[string]interface{}{"email_id": "1", "to_mailbox": "Archive"}), sc)
		},
		"move_emails": func() (*mcp.CallToolResult, error) {
			return handleMoveEmails(ctx, newRequest(map[string]interface{}{"email_ids": "1", "to_mailbox": "Archive"}), sc)
		},
		"get_attachment": func() (*mcp.CallToolResult, error) {
			return handleGetAttachment(ctx, newRequest(map[string]interface{}{"email_id": "1", "attachment_name": "a.pdf"}), sc)
		},
	}

	for name, call := range handlers {
		t.Run(name, func(t *testing.T) {
			result, err := call()
			if err != nil {
				t.Fatalf("handler error = %v", err)
			}
			te := decodeError(t, result)
			if te.Kind != kindSessionNotFound {
				t.Errorf("kind = %q, want %q", te.Kind, kindSessionNotFound)
			}
		})
	}
}

func TestGetCurrentDateNeedsNoSession(t *testing.T) {
	result, err := handleGetCurrentDate(context.Background(), newRequest(nil))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	var resp currentDateResponse
	decodeResult(t, result, &resp)

	parsed, err := time.Parse(time.RFC3339, resp.ISO8601)
	if err != nil {
		t.Errorf("iso8601 field %q does not parse: %v", resp.ISO8601, err)
	}
	if time.Since(parsed) > time.Minute {
		t.Errorf("returned time %v is not current", parsed)
	}
	if resp.Timestamp == "" {
		t.Error("timestamp field is empty")
	}
}

func TestRegisterMailboxTools(t *testing.T) {
	sc := emptyToolContext(t)
	s := mcpserverForTest()

	if err := RegisterMailboxTools(s, sc); err != nil {
		t.Fatalf("RegisterMailboxTools() error = %v", err)
	}
}

func TestErrorResultKinds(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantKind      string
		wantRetryable bool
	}{
		{
			name:          "not found",
			err:           imapmail.Errorf(imapmail.KindNotFound, "fetch", "gone"),
			wantKind:      "not_found",
			wantRetryable: false,
		},
		{
			name:          "connection failed",
			err:           imapmail.Errorf(imapmail.KindConnectionFailed, "dial", "refused"),
			wantKind:      "connection_failed",
			wantRetryable: true,
		},
		{
			name:          "timeout",
			err:           imapmail.Errorf(imapmail.KindTimeout, "search", "deadline"),
			wantKind:      "timeout",
			wantRetryable: true,
		},
		{
			name:          "plain error",
			err:           fmt.Errorf("boom"),
			wantKind:      "command_error",
			wantRetryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := decodeError(t, errorResult(tt.err))
			if te.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", te.Kind, tt.wantKind)
			}
			if te.Retryable != tt.wantRetryable {
				t.Errorf("retryable = %v, want %v", te.Retryable, tt.wantRetryable)
			}
		})
	}
}
