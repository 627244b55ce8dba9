// Package dispatch forwards triaged client messages to the assigned staff member.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mailtriage/internal/analytics"
	"mailtriage/internal/clients"
	"mailtriage/internal/conversations"
	"mailtriage/internal/database"
	"mailtriage/internal/email"
	"mailtriage/internal/models"
	"mailtriage/internal/storage"

	"github.com/rs/zerolog"
)

var (
	// ErrForwardFailed is returned when the provider rejected the forward
	ErrForwardFailed = errors.New("forward failed")
	// ErrNotAssigned is returned when no staff member is known for the message
	ErrNotAssigned = errors.New("message has no assigned staff member")
	// ErrClientIncomplete is returned when contact details are still missing
	ErrClientIncomplete = errors.New("client information incomplete")
)

// SubjectPrefix marks forwarded messages in the staff inbox
const SubjectPrefix = "[Smistato da AI] "

// Options adjusts a single forward
type Options struct {
	// Force forwards even when client details are missing
	Force bool
	// StaffID overrides the assignee stored on the message
	StaffID string
}

// Forwarder sends client messages to staff
type Forwarder struct {
	store      *database.Store
	blobs      *storage.BlobStore
	sender     email.Sender
	resolver   *conversations.Resolver
	analytics  *analytics.Service
	appBaseURL string
	logger     zerolog.Logger
}

// NewForwarder creates a forwarder
func NewForwarder(store *database.Store, blobs *storage.BlobStore, sender email.Sender, resolver *conversations.Resolver,
	analyticsService *analytics.Service, appBaseURL string, logger zerolog.Logger) *Forwarder {
	return &Forwarder{
		store:      store,
		blobs:      blobs,
		sender:     sender,
		resolver:   resolver,
		analytics:  analyticsService,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
		logger:     logger.With().Str("component", "dispatch").Logger(),
	}
}

// Forward sends e to its assignee with the AI reasoning, a link to the
// conversation, the quoted original and its attachments. On success the
// message becomes forwarded and the conversation open; on a provider failure
// the message becomes forward_error and ErrForwardFailed is returned.
func (f *Forwarder) Forward(ctx context.Context, e *models.Email, conv *models.Conversation, opts Options) error {
	staffID := opts.StaffID
	if staffID == "" && e.AssignedToStaffID != nil {
		staffID = *e.AssignedToStaffID
	}
	if staffID == "" && conv.AssignedToStaffID != nil {
		staffID = *conv.AssignedToStaffID
	}
	if staffID == "" {
		return ErrNotAssigned
	}

	client, err := f.store.GetClient(ctx, conv.ClientID)
	if err != nil {
		return err
	}
	if !opts.Force && !clients.IsComplete(client) {
		return ErrClientIncomplete
	}

	staff, err := f.store.GetStaff(ctx, staffID)
	if err != nil {
		return err
	}

	attachments := f.loadAttachments(ctx, e.ID)
	body := f.composeBody(e, conv, client, staff)

	providerID, sendErr := f.sender.Send(ctx, &email.OutboundMessage{
		To:          staff.Email,
		ToName:      staff.Name,
		ReplyTo:     client.Email,
		ReplyToName: deref(client.Name),
		Subject:     SubjectPrefix + e.Subject,
		Text:        body,
		HTML:        email.RenderHTML(body),
		Attachments: attachments,
	})
	if sendErr != nil {
		f.logger.Error().Err(sendErr).Str("email_id", e.ID).Str("staff_id", staffID).Msg("Forward failed")
		if err := f.store.AssignEmail(ctx, e.ID, &staffID, models.EmailStatusForwardError); err != nil {
			f.logger.Error().Err(err).Str("email_id", e.ID).Msg("Failed to record forward error")
		}
		e.Status = models.EmailStatusForwardError
		f.analytics.Track(ctx, analytics.EventForwardError, nil)
		return fmt.Errorf("%w: %w", ErrForwardFailed, sendErr)
	}

	if err := f.store.AssignEmail(ctx, e.ID, &staffID, models.EmailStatusForwarded); err != nil {
		return err
	}
	e.Status = models.EmailStatusForwarded
	e.AssignedToStaffID = &staffID

	if err := f.store.AssignConversation(ctx, conv.ID, &staffID); err != nil {
		return err
	}
	conv.AssignedToStaffID = &staffID
	if conv.Status != models.ConversationClosed {
		if err := f.resolver.Transition(ctx, conv, models.ConversationOpen, nil); err != nil {
			return err
		}
	}

	f.analytics.Track(ctx, analytics.EventForwardSent, map[string]interface{}{
		"staff_id":    staffID,
		"attachments": len(attachments),
		"forced":      opts.Force,
	})
	f.logger.Info().
		Str("email_id", e.ID).
		Str("conversation_id", conv.ID).
		Str("staff_id", staffID).
		Str("provider_message_id", providerID).
		Int("attachments", len(attachments)).
		Msg("Message forwarded")
	return nil
}

func (f *Forwarder) loadAttachments(ctx context.Context, emailID string) []email.Attachment {
	stored, err := f.store.ListAttachments(ctx, emailID)
	if err != nil {
		f.logger.Warn().Err(err).Str("email_id", emailID).Msg("Failed to list attachments")
		return nil
	}

	var out []email.Attachment
	for _, a := range stored {
		content, err := f.blobs.Get(a.BlobRef)
		if err != nil {
			f.logger.Warn().Err(err).Str("attachment_id", a.ID).Msg("Attachment content missing, skipping")
			continue
		}
		out = append(out, email.Attachment{Filename: a.Filename, MimeType: a.MimeType, Content: content})
	}
	return out
}

// ConversationURL is the deep link to a conversation in the staff UI
func (f *Forwarder) ConversationURL(conversationID string) string {
	return fmt.Sprintf("%s/?conversation_id=%s", f.appBaseURL, conversationID)
}

func (f *Forwarder) composeBody(e *models.Email, conv *models.Conversation, client *models.Client, staff *models.StaffMember) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Nuova richiesta da %s** (%s)\n\n", orDash(client.Name), client.Email)
	fmt.Fprintf(&b, "- **Telefono:** %s\n", orDash(client.PhoneNumber))
	fmt.Fprintf(&b, "- **Città:** %s\n", orDash(client.City))
	fmt.Fprintf(&b, "- **Assegnata a:** %s (affidabilità %.0f%%)\n", staff.Name, e.AIConfidence*100)
	if e.IsUrgent {
		b.WriteString("- **Urgente:** sì\n")
	}
	if e.AIReasoning != nil && *e.AIReasoning != "" {
		fmt.Fprintf(&b, "\n**Motivazione:** %s\n", *e.AIReasoning)
	}
	fmt.Fprintf(&b, "\n[Apri la conversazione](%s)\n\n---\n\n", f.ConversationURL(conv.ID))
	fmt.Fprintf(&b, "**Oggetto:** %s\n\n", e.Subject)
	b.WriteString(email.Quote(e.BodyText))
	b.WriteString("\n")

	return b.String()
}

func orDash(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return "-"
	}
	return *s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
