package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/mwege/mailmcp/internal/config"
	"github.com/mwege/mailmcp/internal/instrumentation"
	"github.com/mwege/mailmcp/internal/logging"
	"github.com/mwege/mailmcp/internal/server"
	"github.com/mwege/mailmcp/internal/tools/mailbox_tools"
)

const serverName = "mailmcp"

const serverInstructions = `This server gives you access to an IMAP mailbox.
Start with list_mailboxes to discover folders, then search_emails to find
messages (use get_current_date to anchor relative date ranges). Use get_email
to read a message, get_attachment for its attachments, apply_tag/remove_tag
to manage flags, and move_email/move_emails to file messages into folders.`

func newServeCmd() *cobra.Command {
	var (
		debugMode         bool
		transport         string
		httpAddr          string
		authToken         string
		keepAlive         bool
		keepAliveInterval time.Duration
		sessionTimeout    time.Duration
		metricsEnabled    bool
		metricsAddr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server to provide IMAP mailbox
tools for AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport with bearer-token auth

Mailbox credentials come from the environment:
  IMAP_HOST, IMAP_PORT, IMAP_USERNAME, IMAP_PASSWORD
  IMAP_USE_TLS (default true; false selects STARTTLS)
  IMAP_SKIP_TLS_VERIFY (for local bridges with self-signed certificates)

The HTTP transport requires a static bearer token via --auth-token or
MCP_AUTH_TOKEN; every request must carry it in the Authorization header.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			// Flags override the environment only when explicitly set.
			if cmd.Flags().Changed("debug") {
				cfg.Server.Debug = debugMode
			}
			if cmd.Flags().Changed("transport") {
				cfg.Server.Transport = transport
			}
			if cmd.Flags().Changed("http-addr") {
				cfg.Server.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("auth-token") {
				cfg.Server.AuthToken = authToken
			}
			if cmd.Flags().Changed("keepalive") {
				cfg.Server.KeepAlive = keepAlive
			}
			if cmd.Flags().Changed("keepalive-interval") {
				cfg.Server.KeepAliveInterval = keepAliveInterval
			}
			if cmd.Flags().Changed("session-timeout") {
				cfg.Server.SessionTimeout = sessionTimeout
			}
			if cmd.Flags().Changed("metrics-enabled") {
				cfg.Server.MetricsEnabled = metricsEnabled
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Server.MetricsAddr = metricsAddr
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&transport, "transport", config.TransportStdio, "Transport type: stdio or streamable-http. Can also use MCP_TRANSPORT env var.")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport). Can also use MCP_HTTP_ADDR env var.")
	cmd.Flags().StringVar(&authToken, "auth-token", "", "Static bearer token required on every HTTP request. Can also use MCP_AUTH_TOKEN env var.")
	cmd.Flags().BoolVar(&keepAlive, "keepalive", true, "Send periodic heartbeats on streaming HTTP responses. Can also use MCP_SSE_KEEPALIVE env var.")
	cmd.Flags().DurationVar(&keepAliveInterval, "keepalive-interval", 15*time.Second, "Interval between heartbeats. Can also use MCP_KEEPALIVE_INTERVAL env var.")
	cmd.Flags().DurationVar(&sessionTimeout, "session-timeout", 30*time.Minute, "Close sessions idle for longer than this. Can also use MCP_SESSION_TIMEOUT env var.")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", false, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(cfg config.Config) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := logging.Setup(cfg.Server.Debug)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	if cfg.Server.MetricsEnabled {
		instrConfig.Enabled = true
	}

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	serverContext := server.NewServerContext(shutdownCtx, cfg, logger)
	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("server context shutdown failed", logging.Err(err))
		}
	}()

	serverOpts := []mcpserver.ServerOption{
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithInstructions(serverInstructions),
	}
	if cfg.Server.Transport == config.TransportHTTP {
		// HTTP clients get a bound session per MCP session. The stdio
		// transport uses the single local eager session instead.
		serverOpts = append(serverOpts, mcpserver.WithHooks(server.SessionHooks(serverContext)))
	}
	mcpSrv := mcpserver.NewMCPServer(serverName, version, serverOpts...)

	if err := mailbox_tools.RegisterMailboxTools(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register mailbox tools: %w", err)
	}

	switch cfg.Server.Transport {
	case config.TransportStdio:
		return runStdioServer(shutdownCtx, mcpSrv, serverContext)
	case config.TransportHTTP:
		return runHTTPServer(shutdownCtx, mcpSrv, serverContext, cfg, provider)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: %s, %s)",
			cfg.Server.Transport, config.TransportStdio, config.TransportHTTP)
	}
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext) error {
	if err := sc.StartLocalSession(ctx); err != nil {
		return fmt.Errorf("failed to create local session: %w", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	}
}

func runHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, cfg config.Config, provider *instrumentation.Provider) error {
	logger := sc.Logger()

	var metricsServer *server.MetricsServer
	if cfg.Server.MetricsEnabled && provider.Enabled() {
		var err error
		metricsServer, err = server.NewMetricsServer(cfg.Server.MetricsAddr, provider)
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", logging.Err(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown failed", logging.Err(err))
			}
		}()
	}

	opts := server.HTTPOptions{
		Addr:      cfg.Server.HTTPAddr,
		AuthToken: cfg.Server.AuthToken,
	}
	if cfg.Server.KeepAlive {
		opts.Heartbeat = cfg.Server.KeepAliveInterval
	}

	httpServer, err := server.NewHTTPServer(mcpSrv, sc, opts)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}
	httpServer.SetHealthChecker(server.NewHealthChecker(sc))

	logger.Info("starting streamable HTTP server",
		"addr", cfg.Server.HTTPAddr,
		"endpoint", server.MCPEndpointPath,
		"keepalive", cfg.Server.KeepAlive)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	return nil
}
