package pipeline

import (
	"context"
	"fmt"
	"strings"

	"mailtriage/internal/analytics"
	"mailtriage/internal/conversations"
	"mailtriage/internal/database"
	"mailtriage/internal/dispatch"
	"mailtriage/internal/email"
	"mailtriage/internal/models"

	"github.com/google/uuid"
)

// Ingest processes a message pushed by the inbound webhook
func (p *Processor) Ingest(ctx context.Context, raw *models.RawMessage) (Outcome, error) {
	p.purgeSeen()
	outcome, err := p.Process(ctx, raw, SourceWebhook)
	if err == nil && outcome != OutcomeDuplicate {
		p.Analytics.Track(ctx, analytics.EventEmailIngested, map[string]interface{}{"source": string(SourceWebhook)})
	}
	return outcome, err
}

// StaffReply sends a staff answer to the client of a conversation, threaded
// on the latest message, and waits for the client again.
func (p *Processor) StaffReply(ctx context.Context, conversationID, staffID, body string) (*models.Email, error) {
	body = strings.TrimSpace(body)
	if body == "" || staffID == "" {
		return nil, fmt.Errorf("staff_id and body are required: %w", database.ErrValidation)
	}

	conv, err := p.Resolver.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.Status.IsActive() {
		return nil, fmt.Errorf("%w: conversation is %s", conversations.ErrInvalidTransition, conv.Status)
	}
	staff, err := p.Store.GetStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	client, err := p.Store.GetClient(ctx, conv.ClientID)
	if err != nil {
		return nil, err
	}

	subject := conv.Subject
	var inReplyTo string
	var references []string
	if last, err := p.Store.LastConversationEmail(ctx, conv.ID); err == nil {
		subject = last.Subject
		inReplyTo, references = conversations.ReplyHeaders(last)
	}
	subject = conversations.ReplySubject(subject)

	messageID := fmt.Sprintf("reply-%s@%s", uuid.NewString(), senderDomain(p.SenderEmail))
	html := email.RenderHTML(body)
	providerID, err := p.Sender.Send(ctx, &email.OutboundMessage{
		To:          client.Email,
		ToName:      derefString(client.Name),
		ReplyTo:     p.SenderEmail,
		ReplyToName: staff.Name,
		Subject:     subject,
		Text:        body,
		HTML:        html,
		MessageID:   messageID,
		InReplyTo:   inReplyTo,
		References:  references,
	})
	if err != nil {
		p.logger.Error().Err(err).Str("conversation_id", conv.ID).Msg("Staff reply not sent")
		return nil, fmt.Errorf("failed to send reply: %w", err)
	}

	sent := &models.Email{
		ConversationID:    &conv.ID,
		Reference:         &messageID,
		InReplyTo:         optional(inReplyTo),
		References:        conversations.JoinReferences(references),
		Sender:            staff.Email,
		SenderName:        &staff.Name,
		SenderType:        models.SenderStaff,
		Subject:           subject,
		BodyText:          body,
		BodyHTML:          &html,
		AssignedToStaffID: &staff.ID,
		Status:            models.EmailStatusStaffReply,
		ProviderMessageID: optional(providerID),
	}
	if err := p.Store.InsertEmail(ctx, sent); err != nil {
		return nil, err
	}

	if conv.AssignedToStaffID == nil {
		if err := p.Store.AssignConversation(ctx, conv.ID, &staff.ID); err != nil {
			return nil, err
		}
		conv.AssignedToStaffID = &staff.ID
	}
	if err := p.Resolver.Transition(ctx, conv, models.ConversationAwaitingClient, nil); err != nil {
		return nil, err
	}

	p.Analytics.Track(ctx, analytics.EventStaffReply, map[string]interface{}{"staff_id": staff.ID})
	p.logger.Info().
		Str("conversation_id", conv.ID).
		Str("staff_id", staff.ID).
		Str("provider_message_id", providerID).
		Msg("Staff reply sent")
	return sent, nil
}

// ForwardEmail forwards a stored client message on request of staff
func (p *Processor) ForwardEmail(ctx context.Context, emailID string, opts dispatch.Options) (*models.Email, error) {
	e, err := p.Store.GetEmail(ctx, emailID)
	if err != nil {
		return nil, err
	}
	if e.SenderType != models.SenderClient || e.ConversationID == nil {
		return nil, fmt.Errorf("only client messages in a conversation can be forwarded: %w", database.ErrValidation)
	}
	conv, err := p.Resolver.Get(ctx, *e.ConversationID)
	if err != nil {
		return nil, err
	}
	if err := p.Forwarder.Forward(ctx, e, conv, opts); err != nil {
		return nil, err
	}
	return e, nil
}

func senderDomain(address string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		return address[at+1:]
	}
	return "mailtriage.local"
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
