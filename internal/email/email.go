package email

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// ErrNotConfigured is returned when no SendGrid API key is set
var ErrNotConfigured = errors.New("SendGrid API key not configured")

// Attachment is a file sent along with an outbound message
type Attachment struct {
	Filename string
	MimeType string
	Content  []byte
}

// OutboundMessage is a message handed to the mail provider
type OutboundMessage struct {
	To          string
	ToName      string
	ReplyTo     string
	ReplyToName string
	Subject     string
	Text        string
	HTML        string
	// MessageID, InReplyTo and References are bare IDs without angle brackets
	MessageID   string
	InReplyTo   string
	References  []string
	Attachments []Attachment
}

// Sender delivers outbound messages and returns the provider message ID
type Sender interface {
	Send(ctx context.Context, msg *OutboundMessage) (string, error)
}

type sendFunc func(ctx context.Context, message *mail.SGMailV3) (*rest.Response, error)

// EmailService handles sending emails via SendGrid
type EmailService struct {
	apiKey    string
	fromEmail string
	fromName  string
	timeout   time.Duration
	send      sendFunc
}

// NewEmailService creates a new email service instance
func NewEmailService(apiKey, fromEmail, fromName string, timeout time.Duration) *EmailService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	es := &EmailService{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
		timeout:   timeout,
	}
	es.send = func(ctx context.Context, message *mail.SGMailV3) (*rest.Response, error) {
		return sendgrid.NewSendClient(es.apiKey).SendWithContext(ctx, message)
	}
	return es
}

// FromEmail returns the sender address used for outbound mail
func (es *EmailService) FromEmail() string {
	return es.fromEmail
}

// Send delivers a message through SendGrid
func (es *EmailService) Send(ctx context.Context, msg *OutboundMessage) (string, error) {
	if es.apiKey == "" {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, es.timeout)
	defer cancel()

	response, err := es.send(ctx, es.BuildMessage(msg))
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		return "", fmt.Errorf("SendGrid API error: status %d, body: %s", response.StatusCode, response.Body)
	}

	return providerMessageID(response), nil
}

// BuildMessage converts an outbound message into a SendGrid v3 payload
func (es *EmailService) BuildMessage(msg *OutboundMessage) *mail.SGMailV3 {
	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(es.fromName, es.fromEmail))
	message.Subject = msg.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(msg.ToName, msg.To))
	message.AddPersonalizations(p)

	if msg.ReplyTo != "" {
		message.SetReplyTo(mail.NewEmail(msg.ReplyToName, msg.ReplyTo))
	}

	text := msg.Text
	if text == "" {
		text = " "
	}
	message.AddContent(mail.NewContent("text/plain", text))
	if msg.HTML != "" {
		message.AddContent(mail.NewContent("text/html", msg.HTML))
	}

	if msg.MessageID != "" {
		message.SetHeader("Message-ID", angle(msg.MessageID))
	}
	if msg.InReplyTo != "" {
		message.SetHeader("In-Reply-To", angle(msg.InReplyTo))
	}
	if len(msg.References) > 0 {
		refs := make([]string, len(msg.References))
		for i, ref := range msg.References {
			refs[i] = angle(ref)
		}
		message.SetHeader("References", strings.Join(refs, " "))
	}

	for _, att := range msg.Attachments {
		a := mail.NewAttachment()
		a.SetContent(base64.StdEncoding.EncodeToString(att.Content))
		a.SetType(att.MimeType)
		a.SetFilename(att.Filename)
		a.SetDisposition("attachment")
		message.AddAttachment(a)
	}

	return message
}

func providerMessageID(response *rest.Response) string {
	for key, values := range response.Headers {
		if strings.EqualFold(key, "X-Message-Id") && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

func angle(id string) string {
	return "<" + strings.Trim(id, "<>") + ">"
}
