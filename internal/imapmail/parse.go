package imapmail

import (
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"
)

// parseBody walks the MIME structure of a raw message and fills the
// body and attachment fields of content. Messages that do not parse as
// MIME are kept verbatim as the text body rather than rejected; the
// envelope data already set on content is left untouched.
func parseBody(raw []byte, content *EmailContent) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		content.TextBody = string(raw)
		return
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(ct, "text/html"):
				if content.HTMLBody == "" {
					content.HTMLBody = string(body)
				}
			default:
				if content.TextBody == "" {
					content.TextBody = string(body)
				}
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			ct, _, _ := h.ContentType()
			size, _ := io.Copy(io.Discard, part.Body)
			content.Attachments = append(content.Attachments, AttachmentInfo{
				Filename:    filename,
				ContentType: ct,
				Size:        size,
			})
		}
	}
}

// extractAttachment finds the attachment named name in a raw message
// and returns its decoded content.
func extractAttachment(op string, raw []byte, name string) (*AttachmentData, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, E(KindParse, op, err)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, E(KindParse, op, err)
		}
		h, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		filename, _ := h.Filename()
		if filename != name {
			continue
		}
		ct, _, _ := h.ContentType()
		data, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, E(KindParse, op, err)
		}
		return &AttachmentData{
			Filename:    filename,
			ContentType: ct,
			Size:        int64(len(data)),
			Data:        data,
		}, nil
	}
	return nil, Errorf(KindNotFound, op, "attachment %q not found", name)
}
