// Package mailbox_tools exposes the IMAP mailbox operations as MCP
// tools.
//
// Every handler follows the same shape: validate arguments before any
// session use, resolve the session from the transport context, run the
// mailbox operation, and encode the outcome as JSON text content. A
// failure becomes a structured error result carrying a stable kind and
// a retryable flag so the calling agent can decide whether to try
// again. get_current_date is the one tool that needs no session.
package mailbox_tools
