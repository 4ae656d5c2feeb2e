package imapmail

import (
	"context"
	"time"
)

// State describes where a connection is in its lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateReady
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// FolderInfo describes one mailbox folder from a LIST response.
type FolderInfo struct {
	Name       string   `json:"name"`
	Delimiter  string   `json:"delimiter,omitempty"`
	Attributes []string `json:"attributes,omitempty"`
}

// EmailMetadata is the envelope-level view of a message, as returned by
// search.
type EmailMetadata struct {
	ID      string    `json:"id"`
	Subject string    `json:"subject"`
	From    string    `json:"from"`
	To      []string  `json:"to,omitempty"`
	Date    time.Time `json:"date"`
	Size    int64     `json:"size,omitempty"`
	Flags   []string  `json:"flags,omitempty"`
}

// AttachmentInfo describes an attachment without its content.
type AttachmentInfo struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// EmailContent is the full parsed form of a single message.
type EmailContent struct {
	ID          string           `json:"id"`
	Subject     string           `json:"subject"`
	From        string           `json:"from"`
	To          []string         `json:"to,omitempty"`
	Cc          []string         `json:"cc,omitempty"`
	Date        time.Time        `json:"date"`
	Flags       []string         `json:"flags,omitempty"`
	TextBody    string           `json:"text_body,omitempty"`
	HTMLBody    string           `json:"html_body,omitempty"`
	Attachments []AttachmentInfo `json:"attachments,omitempty"`
}

// AttachmentData is one attachment with its decoded content.
type AttachmentData struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// MoveStatus reports the outcome for one message of a batch move.
type MoveStatus struct {
	ID    string
	Moved bool
	Err   error
}

// SearchQuery narrows a folder search. Zero times mean unbounded; Since
// and Until are both inclusive calendar bounds. Text matches IMAP TEXT
// semantics (headers and body). Limit caps the number of results after
// sorting newest first; zero applies the default.
type SearchQuery struct {
	Since time.Time
	Until time.Time
	Text  string
	Limit int
}

// Mailbox is the operation set a connected mailbox offers. *Client is
// the production implementation; tests substitute fakes.
type Mailbox interface {
	ListFolders(ctx context.Context) ([]FolderInfo, error)
	Search(ctx context.Context, folder string, q SearchQuery) ([]EmailMetadata, error)
	Fetch(ctx context.Context, folder, id string) (*EmailContent, error)
	FetchAttachment(ctx context.Context, folder, id, name string) (*AttachmentData, error)
	ListTags(ctx context.Context, folder string) ([]string, error)
	GetTags(ctx context.Context, folder, id string) ([]string, error)
	ApplyTag(ctx context.Context, folder, id, tag string) error
	RemoveTag(ctx context.Context, folder, id, tag string) error
	Move(ctx context.Context, folder, id, dest string) error
	MoveMany(ctx context.Context, folder string, ids []string, dest string) ([]MoveStatus, error)
	State() State
	Close() error
}
