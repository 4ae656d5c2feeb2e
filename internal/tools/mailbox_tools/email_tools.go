package mailbox_tools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mwege/mailmcp/internal/imapmail"
	"github.com/mwege/mailmcp/internal/server"
)

// RegisterEmailTools registers mailbox listing, search, and message
// retrieval tools with the MCP server.
func RegisterEmailTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listMailboxesTool := mcp.NewTool("list_mailboxes",
		mcp.WithDescription("List available mailboxes"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(listMailboxesTool, withMetrics(sc, "list_mailboxes",
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListMailboxes(ctx, request, sc)
		}))

	searchEmailsTool := mcp.NewTool("search_emails",
		mcp.WithDescription("Search for emails in a mailbox"),
		mcp.WithString("mailbox",
			mcp.Description("Mailbox to search in (default: INBOX)"),
		),
		mcp.WithString("since_date",
			mcp.Description("Only include emails on or after this date (ISO 8601 timestamp or YYYY-MM-DD)"),
		),
		mcp.WithString("until_date",
			mcp.Description("Only include emails on or before this date (ISO 8601 timestamp or YYYY-MM-DD)"),
		),
		mcp.WithString("query",
			mcp.Description("Free-text query matched against message headers and body"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of emails to return (default: 30)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(searchEmailsTool, withMetrics(sc, "search_emails",
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSearchEmails(ctx, request, sc)
		}))

	getEmailTool := mcp.NewTool("get_email",
		mcp.WithDescription("Get email content by ID"),
		mcp.WithString("email_id",
			mcp.Required(),
			mcp.Description("Email ID to fetch"),
		),
		mcp.WithString("mailbox",
			mcp.Description("Mailbox containing the email (default: INBOX)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(getEmailTool, withMetrics(sc, "get_email",
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetEmail(ctx, request, sc)
		}))

	getCurrentDateTool := mcp.NewTool("get_current_date",
		mcp.WithDescription("Get current date and time"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(getCurrentDateTool, withMetrics(sc, "get_current_date",
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetCurrentDate(ctx, request)
		}))

	return nil
}

type listMailboxesResponse struct {
	Mailboxes []imapmail.FolderInfo `json:"mailboxes"`
}

func handleListMailboxes(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	mbox, errResult := sessionMailbox(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	folders, err := mbox.ListFolders(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	return jsonResult(listMailboxesResponse{Mailboxes: folders}), nil
}

type searchEmailsResponse struct {
	Count  int                      `json:"count"`
	Emails []imapmail.EmailMetadata `json:"emails"`
}

func handleSearchEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	mailbox, err := optionalFolder(args, "mailbox")
	if err != nil {
		return validationError("%v", err), nil
	}

	var q imapmail.SearchQuery
	if val, ok := args["since_date"].(string); ok && val != "" {
		since, err := parseDate("since_date", val)
		if err != nil {
			return validationError("%v", err), nil
		}
		q.Since = since
	}
	if val, ok := args["until_date"].(string); ok && val != "" {
		until, err := parseDate("until_date", val)
		if err != nil {
			return validationError("%v", err), nil
		}
		q.Until = until
	}
	if !q.Since.IsZero() && !q.Until.IsZero() && q.Until.Before(q.Since) {
		return validationError("'until_date' must not be before 'since_date'"), nil
	}
	q.Text = optionalString(args, "query", "")

	limit, err := parseLimit(args)
	if err != nil {
		return validationError("%v", err), nil
	}
	q.Limit = limit

	mbox, errResult := sessionMailbox(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	emails, err := mbox.Search(ctx, mailbox, q)
	if err != nil {
		return errorResult(err), nil
	}
	if emails == nil {
		emails = []imapmail.EmailMetadata{}
	}

	return jsonResult(searchEmailsResponse{Count: len(emails), Emails: emails}), nil
}

func handleGetEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	emailID, err := requireString(args, "email_id")
	if err != nil {
		return validationError("%v", err), nil
	}
	mailbox, err := optionalFolder(args, "mailbox")
	if err != nil {
		return validationError("%v", err), nil
	}

	mbox, errResult := sessionMailbox(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	email, err := mbox.Fetch(ctx, mailbox, emailID)
	if err != nil {
		return errorResult(err), nil
	}

	return jsonResult(email), nil
}

type currentDateResponse struct {
	Timestamp string `json:"timestamp"`
	ISO8601   string `json:"iso8601"`
}

func handleGetCurrentDate(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := time.Now().UTC()
	return jsonResult(currentDateResponse{
		Timestamp: now.Format("2006-01-02 15:04:05 MST"),
		ISO8601:   now.Format(time.RFC3339),
	}), nil
}
