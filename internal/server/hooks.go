package server

import (
	"context"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mwege/mailmcp/internal/logging"
	"github.com/mwege/mailmcp/internal/session"
)

// SessionHooks binds MCP session lifecycle events to the registry: a
// registered MCP session gets a bound registry session with its own
// IMAP connection policy, and an unregistered one releases it. Used by
// the HTTP transport; the stdio transport uses the local eager session
// instead.
func SessionHooks(sc *ServerContext) *mcpserver.Hooks {
	hooks := &mcpserver.Hooks{}

	hooks.AddOnRegisterSession(func(_ context.Context, cs mcpserver.ClientSession) {
		_, created := sc.Registry().GetOrCreate(cs.SessionID(), session.ModeBound, sc.Config().Mailbox())
		if created {
			sc.Logger().Debug("bound session to mcp client", logging.Session(cs.SessionID()))
		}
	})

	hooks.AddOnUnregisterSession(func(_ context.Context, cs mcpserver.ClientSession) {
		_ = sc.Registry().Close(cs.SessionID())
	})

	return hooks
}
