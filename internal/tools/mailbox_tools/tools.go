package mailbox_tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mwege/mailmcp/internal/imapmail"
	"github.com/mwege/mailmcp/internal/instrumentation"
	"github.com/mwege/mailmcp/internal/server"
	"github.com/mwege/mailmcp/internal/session"
)

// Error kinds used by the tool layer on top of the mailbox taxonomy.
const (
	kindValidation      = "validation"
	kindSessionNotFound = "session_not_found"
	kindSessionClosed   = "session_terminated"
)

// RegisterMailboxTools registers the full tool surface with the MCP server.
func RegisterMailboxTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if err := RegisterEmailTools(s, sc); err != nil {
		return fmt.Errorf("failed to register email tools: %w", err)
	}
	if err := RegisterTagTools(s, sc); err != nil {
		return fmt.Errorf("failed to register tag tools: %w", err)
	}
	if err := RegisterMoveTools(s, sc); err != nil {
		return fmt.Errorf("failed to register move tools: %w", err)
	}
	if err := RegisterAttachmentTools(s, sc); err != nil {
		return fmt.Errorf("failed to register attachment tools: %w", err)
	}
	return nil
}

// sessionMailbox resolves the mailbox connection for the calling MCP
// session. The session comes from the transport context, never from
// tool arguments.
func sessionMailbox(ctx context.Context, sc *server.ServerContext) (imapmail.Mailbox, *mcp.CallToolResult) {
	s, err := sc.SessionForContext(ctx)
	if err != nil {
		return nil, errorResult(err)
	}
	mbox, err := s.Mailbox(ctx)
	if err != nil {
		return nil, errorResult(err)
	}
	return mbox, nil
}

// toolError is the structured error payload returned to the agent. The
// kind is stable so callers can branch on it, and retryable tells them
// whether repeating the call can help.
type toolError struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func errorResult(err error) *mcp.CallToolResult {
	te := toolError{Message: err.Error()}
	switch {
	case errors.Is(err, session.ErrNotFound):
		te.Kind = kindSessionNotFound
	case errors.Is(err, session.ErrTerminated):
		te.Kind = kindSessionClosed
	default:
		kind := imapmail.KindOf(err)
		te.Kind = string(kind)
		te.Retryable = imapmail.Retryable(kind)
	}
	return errorResultFrom(te)
}

func validationError(format string, args ...any) *mcp.CallToolResult {
	return errorResultFrom(toolError{
		Kind:    kindValidation,
		Message: fmt.Sprintf(format, args...),
	})
}

func errorResultFrom(te toolError) *mcp.CallToolResult {
	data, err := json.Marshal(te)
	if err != nil {
		return mcp.NewToolResultError(te.Message)
	}
	return mcp.NewToolResultError(string(data))
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResultFrom(toolError{
			Kind:    string(imapmail.KindParse),
			Message: fmt.Sprintf("failed to encode result: %v", err),
		})
	}
	return mcp.NewToolResultText(string(data))
}

type toolHandler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// withMetrics records invocation counts and latencies per tool.
func withMetrics(sc *server.ServerContext, name string, h toolHandler) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := h(ctx, request)
		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
		}
		sc.Metrics().RecordToolInvocation(ctx, name, status, time.Since(start))
		return result, err
	}
}
