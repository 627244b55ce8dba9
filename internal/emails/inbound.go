package emails

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"mailtriage/internal/models"

	"github.com/tidwall/gjson"
)

// InboundForm holds the fields of a SendGrid Inbound Parse post in its
// parsed (non-raw) mode.
type InboundForm struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
	// Headers is the raw header block of the original message
	Headers string
	// Charsets is a JSON object mapping field names to their charset
	Charsets    string
	Attachments []models.RawAttachment
}

// ParseInbound builds a message from parsed Inbound Parse fields. Threading
// headers are recovered from the raw header block.
func ParseInbound(form InboundForm) (*models.RawMessage, error) {
	charsets := gjson.Parse(form.Charsets)
	field := func(name, value string) string {
		if cs := charsets.Get(name); cs.Exists() {
			return decodeCharset([]byte(value), cs.String())
		}
		return value
	}

	raw := &models.RawMessage{
		Subject:     DecodeHeader(field("subject", form.Subject)),
		To:          DecodeHeader(field("to", form.To)),
		TextBody:    field("text", form.Text),
		HTMLBody:    field("html", form.HTML),
		Date:        time.Now().UTC(),
		Attachments: form.Attachments,
	}

	from := field("from", form.From)
	if header := parseHeaderBlock(form.Headers); header != nil {
		raw.MessageID = CleanMessageID(header.Get("Message-ID"))
		raw.InReplyTo = firstMessageID(header.Get("In-Reply-To"))
		raw.References = ParseMessageIDs(header.Get("References"))
		if date, err := mail.ParseDate(header.Get("Date")); err == nil {
			raw.Date = date.UTC()
		}
		if from == "" {
			from = header.Get("From")
		}
		if raw.Subject == "" {
			raw.Subject = DecodeHeader(header.Get("Subject"))
		}
	}

	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("inbound message has no sender")
	}
	raw.From, raw.FromName = ParseAddress(from)

	if raw.TextBody == "" && raw.HTMLBody != "" {
		raw.TextBody = cleanHTML(raw.HTMLBody)
	}
	raw.TextBody = strings.TrimSpace(raw.TextBody)

	return raw, nil
}

func parseHeaderBlock(block string) mail.Header {
	block = strings.TrimSpace(block)
	if block == "" {
		return nil
	}
	block = strings.ReplaceAll(block, "\r\n", "\n")
	msg, err := mail.ReadMessage(strings.NewReader(block + "\n\n"))
	if err != nil {
		return nil
	}
	return msg.Header
}
