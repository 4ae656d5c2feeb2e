package imapmail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multipartMessage = `From: Alice <alice@example.org>
To: bob@example.org
Subject: quarterly report
Date: Mon, 02 Feb 2026 10:00:00 +0000
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="frontier"

--frontier
Content-Type: text/plain; charset=utf-8

Numbers attached.
--frontier
Content-Type: text/html; charset=utf-8

<p>Numbers attached.</p>
--frontier
Content-Type: application/pdf
Content-Disposition: attachment; filename="report.pdf"
Content-Transfer-Encoding: base64

JVBERi0xLjQ=
--frontier--
`

func rawMessage(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func TestParseBodyMultipart(t *testing.T) {
	content := &EmailContent{ID: "7"}
	parseBody(rawMessage(multipartMessage), content)

	assert.Contains(t, content.TextBody, "Numbers attached.")
	assert.Contains(t, content.HTMLBody, "<p>Numbers attached.</p>")

	require.Len(t, content.Attachments, 1)
	att := content.Attachments[0]
	assert.Equal(t, "report.pdf", att.Filename)
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.Equal(t, int64(8), att.Size, "size should be the decoded length")
}

func TestParseBodyPlainFallback(t *testing.T) {
	content := &EmailContent{}
	raw := []byte("not a header line\r\n\r\nsome payload")
	parseBody(raw, content)

	assert.Equal(t, string(raw), content.TextBody, "unparseable message should be kept raw")
	assert.Empty(t, content.Attachments)
}

func TestExtractAttachment(t *testing.T) {
	raw := rawMessage(multipartMessage)

	att, err := extractAttachment("fetch_attachment", raw, "report.pdf")
	require.NoError(t, err)

	assert.Equal(t, "%PDF-1.4", string(att.Data))
	assert.Equal(t, int64(len(att.Data)), att.Size)
	assert.Equal(t, "application/pdf", att.ContentType)
}

func TestExtractAttachmentNotFound(t *testing.T) {
	_, err := extractAttachment("fetch_attachment", rawMessage(multipartMessage), "missing.txt")
	assert.True(t, IsNotFound(err), "error = %v, want not_found", err)
}
