// Package imapmail provides a stateful IMAP client for mailbox operations.
//
// A Client owns a single IMAP connection and serializes all commands on it.
// It tracks a small lifecycle state machine (disconnected, connecting,
// authenticating, ready, failed, closed) and caches the currently selected
// folder so repeated operations against the same folder skip the SELECT
// round trip. The Mailbox interface abstracts the operation set so callers
// can substitute fakes in tests.
package imapmail
