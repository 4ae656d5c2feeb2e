// Package logging provides structured logging utilities for mailmcp.
//
// This package centralizes logging patterns to ensure consistent, structured
// logging throughout the codebase using the standard library's slog package.
// All log output goes to stderr so that stdout stays free for the stdio
// transport's protocol stream.
//
// Create a logger with standard attributes:
//
//	logger := logging.WithTool(slog.Default(), "search_emails")
//	logger.Info("search completed",
//	    logging.Folder("INBOX"),
//	    logging.Status(logging.StatusSuccess))
//
// Tokens are never logged directly; use SanitizeToken for any value that
// originated in an Authorization header.
package logging
