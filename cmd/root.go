package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the mailmcp application
var rootCmd = &cobra.Command{
	Use:   "mailmcp",
	Short: "MCP server exposing an IMAP mailbox to AI agents",
	Long: `mailmcp is a Model Context Protocol (MCP) server that bridges agent
tool calls to an IMAP mailbox. It lets AI assistants list mailboxes,
search and read emails, manage flags, move messages, and download
attachments over a managed IMAP connection.

It can run over:
  - stdio: launched by an MCP client with one shared session (default)
  - streamable-http: network transport with bearer-token auth and
    per-client sessions`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailmcp version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
