// Package server provides the MCP server context, the transport
// adapters, and the operational HTTP endpoints for mailmcp.
//
// # Key Components
//
// ServerContext owns the session registry and the shared configuration.
// Tool handlers resolve their session through it: HTTP requests carry
// an MCP session id that maps to a bound registry session, while stdio
// requests fall back to the single local eager session.
//
// HTTPServer serves the streamable HTTP transport behind a static
// bearer token. The token is checked in middleware with a constant-time
// comparison before the MCP layer runs, so an invalid token can never
// create a session. Optional heartbeats keep streaming responses alive
// through idle proxies.
//
// HealthChecker exposes /healthz and /readyz for Kubernetes probes,
// and MetricsServer serves Prometheus metrics on a dedicated port so
// operational endpoints stay off the authenticated MCP listener.
package server
