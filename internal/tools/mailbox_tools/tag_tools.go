package mailbox_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mwege/mailmcp/internal/server"
)

// RegisterTagTools registers flag inspection and modification tools
// with the MCP server. Tags map to IMAP flags on the wire.
func RegisterTagTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listTagsTool := mcp.NewTool("list_tags",
		mcp.WithDescription("List available tags/flags for a mailbox"),
		mcp.WithString("mailbox",
			mcp.Description("Mailbox to get available tags from (default: INBOX)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(listTagsTool, withMetrics(sc, "list_tags",
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListTags(ctx, request, sc)
		}))

	getEmailTagsTool := mcp.NewTool("get_email_tags",
		mcp.WithDescription("Get tags/flags currently set on an email"),
		mcp.WithString("email_id",
			mcp.Required(),
			mcp.Description("Email ID to get tags for"),
		),
		mcp.WithString("mailbox",
			mcp.Description("Mailbox containing the email (default: INBOX)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(getEmailTagsTool, withMetrics(sc, "get_email_tags",
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetEmailTags(ctx, request, sc)
		}))

	applyTagTool := mcp.NewTool("apply_tag",
		mcp.WithDescription("Apply a tag/flag to an email"),
		mcp.WithString("email_id",
			mcp.Required(),
			mcp.Description("Email ID to modify"),
		),
		mcp.WithString("mailbox",
			mcp.Description("Mailbox containing the email (default: INBOX)"),
		),
		mcp.WithString("tag",
			mcp.Required(),
			mcp.Description("Tag to apply (e.g., \\Seen, \\Flagged, \\Answered)"),
		),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(applyTagTool, withMetrics(sc, "apply_tag",
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleModifyTag(ctx, request, sc, false)
		}))

	removeTagTool := mcp.NewTool("remove_tag",
		mcp.WithDescription("Remove a tag/flag from an email"),
		mcp.WithString("email_id",
			mcp.Required(),
			mcp.Description("Email ID to modify"),
		),
		mcp.WithString("mailbox",
			mcp.Description("Mailbox containing the email (default: INBOX)"),
		),
		mcp.WithString("tag",
			mcp.Required(),
			mcp.Description("Tag to remove (e.g., \\Seen, \\Flagged, \\Answered)"),
		),
		mcp.WithDestructiveHintAnnotation(true),
	)

	s.AddTool(removeTagTool, withMetrics(sc, "remove_tag",
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleModifyTag(ctx, request, sc, true)
		}))

	return nil
}

type listTagsResponse struct {
	Mailbox string   `json:"mailbox"`
	Tags    []string `json:"tags"`
}

func handleListTags(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	mailbox, err := optionalFolder(request.GetArguments(), "mailbox")
	if err != nil {
		return validationError("%v", err), nil
	}

	mbox, errResult := sessionMailbox(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	tags, err := mbox.ListTags(ctx, mailbox)
	if err != nil {
		return errorResult(err), nil
	}
	if tags == nil {
		tags = []string{}
	}

	return jsonResult(listTagsResponse{Mailbox: mailbox, Tags: tags}), nil
}

type emailTagsResponse struct {
	EmailID string   `json:"email_id"`
	Tags    []string `json:"tags"`
}

func handleGetEmailTags(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
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

	tags, err := mbox.GetTags(ctx, mailbox, emailID)
	if err != nil {
		return errorResult(err), nil
	}
	if tags == nil {
		tags = []string{}
	}

	return jsonResult(emailTagsResponse{EmailID: emailID, Tags: tags}), nil
}

type tagOperationResponse struct {
	Success bool   `json:"success"`
	EmailID string `json:"email_id"`
	Tag     string `json:"tag"`
}

func handleModifyTag(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext, remove bool) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	emailID, err := requireString(args, "email_id")
	if err != nil {
		return validationError("%v", err), nil
	}
	tag, err := requireString(args, "tag")
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

	if remove {
		err = mbox.RemoveTag(ctx, mailbox, emailID, tag)
	} else {
		err = mbox.ApplyTag(ctx, mailbox, emailID, tag)
	}
	if err != nil {
		return errorResult(err), nil
	}

	return jsonResult(tagOperationResponse{Success: true, EmailID: emailID, Tag: tag}), nil
}
