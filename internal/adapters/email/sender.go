package email

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// SendRequest contains the data needed to send an email via an external provider.
type SendRequest struct {
	To      []string // Recipient email addresses
	From    string   // Sender address (e.g. "Front Desk <desk@accesspanel.local>")
	Subject string
	HTML    string // HTML body
	Text    string // Plain-text fallback
}

// SendResult contains the response from the email provider.
type SendResult struct {
	MessageID string    // Provider's message ID for tracking
	SentAt    time.Time // When the send was accepted
}

// Sender is the interface for sending emails via an external provider.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (SendResult, error)
}

// mdRenderer converts alert bodies to HTML. Raw HTML in the source is
// escaped since WithUnsafe is not set.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// FromMarkdown builds a request whose HTML body is rendered from md and
// whose text body is md itself.
// PRE: to is non-empty
// POST: HTML holds the rendered markdown
func FromMarkdown(to []string, subject, md string) (SendRequest, error) {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return SendRequest{}, fmt.Errorf("render markdown: %w", err)
	}
	return SendRequest{To: to, Subject: subject, HTML: buf.String(), Text: md}, nil
}
