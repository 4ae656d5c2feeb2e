package mailbox_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mwege/mailmcp/internal/server"
	"github.com/mwege/mailmcp/internal/tools/batch"
)

// RegisterMoveTools registers single and batch message move tools with
// the MCP server.
func RegisterMoveTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	moveEmailTool := mcp.NewTool("move_email",
		mcp.WithDescription("Move an email to another mailbox/folder"),
		mcp.WithString("email_id",
			mcp.Required(),
			mcp.Description("Email ID to move"),
		),
		mcp.WithString("from_mailbox",
			mcp.Description("Source mailbox (default: INBOX)"),
		),
		mcp.WithString("to_mailbox",
			mcp.Required(),
			mcp.Description("Destination mailbox/folder"),
		),
		mcp.WithDestructiveHintAnnotation(true),
	)

	s.AddTool(moveEmailTool, withMetrics(sc, "move_email",
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleMoveEmail(ctx, request, sc)
		}))

	moveEmailsTool := mcp.NewTool("move_emails",
		mcp.WithDescription("Move multiple emails to another mailbox/folder"),
		mcp.WithString("email_ids",
			mcp.Required(),
			mcp.Description("Email ID (string) or array of email IDs to move"),
		),
		mcp.WithString("from_mailbox",
			mcp.Description("Source mailbox (default: INBOX)"),
		),
		mcp.WithString("to_mailbox",
			mcp.Required(),
			mcp.Description("Destination mailbox/folder"),
		),
		mcp.WithDestructiveHintAnnotation(true),
	)

	s.AddTool(moveEmailsTool, withMetrics(sc, "move_emails",
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleMoveEmails(ctx, request, sc)
		}))

	return nil
}

type moveEmailResponse struct {
	Success     bool   `json:"success"`
	EmailID     string `json:"email_id"`
	FromMailbox string `json:"from_mailbox"`
	ToMailbox   string `json:"to_mailbox"`
}

func handleMoveEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	emailID, err := requireString(args, "email_id")
	if err != nil {
		return validationError("%v", err), nil
	}
	dest, err := requireString(args, "to_mailbox")
	if err != nil {
		return validationError("%v", err), nil
	}
	from, err := optionalFolder(args, "from_mailbox")
	if err != nil {
		return validationError("%v", err), nil
	}

	mbox, errResult := sessionMailbox(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	if err := mbox.Move(ctx, from, emailID, dest); err != nil {
		return errorResult(err), nil
	}

	return jsonResult(moveEmailResponse{
		Success:     true,
		EmailID:     emailID,
		FromMailbox: from,
		ToMailbox:   dest,
	}), nil
}

type moveEmailsResponse struct {
	Success     bool           `json:"success"`
	Moved       int            `json:"moved"`
	Failed      int            `json:"failed"`
	FromMailbox string         `json:"from_mailbox"`
	ToMailbox   string         `json:"to_mailbox"`
	Results     []batch.Result `json:"results"`
}

func handleMoveEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	emailIDs, err := batch.ParseStringOrArray(args["email_ids"], "email_ids")
	if err != nil {
		return validationError("%v", err), nil
	}
	dest, err := requireString(args, "to_mailbox")
	if err != nil {
		return validationError("%v", err), nil
	}
	from, err := optionalFolder(args, "from_mailbox")
	if err != nil {
		return validationError("%v", err), nil
	}

	mbox, errResult := sessionMailbox(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	statuses, err := mbox.MoveMany(ctx, from, emailIDs, dest)
	if err != nil {
		return errorResult(err), nil
	}

	results := make([]batch.Result, 0, len(statuses))
	for _, st := range statuses {
		if st.Moved {
			results = append(results, batch.NewSuccessResult(st.ID))
		} else {
			results = append(results, batch.NewErrorResult(st.ID, st.Err))
		}
	}
	summary := batch.Summarize(results)

	return jsonResult(moveEmailsResponse{
		Success:     summary.Failed == 0,
		Moved:       summary.Successful,
		Failed:      summary.Failed,
		FromMailbox: from,
		ToMailbox:   dest,
		Results:     summary.Results,
	}), nil
}
