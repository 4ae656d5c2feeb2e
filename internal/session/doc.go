// Package session ties MCP sessions to IMAP connections.
//
// A Session owns at most one mailbox connection and knows how to obtain
// one on demand. Eager sessions (stdio transport) reconnect after a
// detected connection failure; bound sessions (HTTP transport) are tied
// to one remote MCP session and terminate instead, since the client can
// simply initialize a new session.
//
// The Registry maps session identifiers to Sessions and evicts sessions
// that have been inactive past a configurable timeout.
package session
