package mailbox_tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mwege/mailmcp/internal/server"
)

// RegisterAttachmentTools registers attachment retrieval tools with the
// MCP server.
func RegisterAttachmentTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	getAttachmentTool := mcp.NewTool("get_attachment",
		mcp.WithDescription("Get an attachment from an email. Optionally save to a file path, otherwise returns base64-encoded content."),
		mcp.WithString("email_id",
			mcp.Required(),
			mcp.Description("Email ID containing the attachment"),
		),
		mcp.WithString("mailbox",
			mcp.Description("Mailbox containing the email (default: INBOX)"),
		),
		mcp.WithString("attachment_name",
			mcp.Required(),
			mcp.Description("Name of the attachment to retrieve"),
		),
		mcp.WithString("save_path",
			mcp.Description("Path to save the attachment (optional, returns base64 if not provided)"),
		),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(getAttachmentTool, withMetrics(sc, "get_attachment",
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetAttachment(ctx, request, sc)
		}))

	return nil
}

type attachmentResponse struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Data        string `json:"data,omitempty"`
	SavedPath   string `json:"saved_path,omitempty"`
}

func handleGetAttachment(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	emailID, err := requireString(args, "email_id")
	if err != nil {
		return validationError("%v", err), nil
	}
	name, err := requireString(args, "attachment_name")
	if err != nil {
		return validationError("%v", err), nil
	}
	mailbox, err := optionalFolder(args, "mailbox")
	if err != nil {
		return validationError("%v", err), nil
	}
	savePath := optionalString(args, "save_path", "")

	mbox, errResult := sessionMailbox(ctx, sc)
	if errResult != nil {
		return errResult, nil
	}

	att, err := mbox.FetchAttachment(ctx, mailbox, emailID, name)
	if err != nil {
		return errorResult(err), nil
	}

	resp := attachmentResponse{
		Name:        att.Filename,
		ContentType: att.ContentType,
		Size:        att.Size,
	}

	if savePath != "" {
		if err := os.WriteFile(savePath, att.Data, 0o600); err != nil {
			return errorResult(fmt.Errorf("failed to save attachment to %s: %w", savePath, err)), nil
		}
		resp.SavedPath = savePath
	} else {
		resp.Data = base64.StdEncoding.EncodeToString(att.Data)
	}

	return jsonResult(resp), nil
}
