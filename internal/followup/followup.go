// Package followup asks clients for missing contact details, at most a
// configured number of times per client.
package followup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mailtriage/internal/analytics"
	"mailtriage/internal/clients"
	"mailtriage/internal/conversations"
	"mailtriage/internal/database"
	"mailtriage/internal/email"
	"mailtriage/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Outcome is what MaybeSend did
type Outcome struct {
	Decision clients.Decision
	// Client is the client record after the call
	Client *models.Client
	// Email is the stored copy of the sent request, when one was sent
	Email *models.Email
}

// Options configures a Controller
type Options struct {
	MaxFollowUps int
	SenderEmail  string
	OfficeName   string
}

// Controller sends follow-up requests
type Controller struct {
	store     *database.Store
	registry  *clients.Registry
	resolver  *conversations.Resolver
	sender    email.Sender
	analytics *analytics.Service
	opts      Options
	now       func() time.Time
	logger    zerolog.Logger
}

// NewController creates a follow-up controller
func NewController(store *database.Store, registry *clients.Registry, resolver *conversations.Resolver,
	sender email.Sender, analyticsService *analytics.Service, opts Options, logger zerolog.Logger) *Controller {
	return &Controller{
		store:     store,
		registry:  registry,
		resolver:  resolver,
		sender:    sender,
		analytics: analyticsService,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With().Str("component", "followup").Logger(),
	}
}

// Token returns a new correlation token: our own Message-ID for the request
func (c *Controller) Token() string {
	domain := "mailtriage.local"
	if at := strings.LastIndex(c.opts.SenderEmail, "@"); at >= 0 && at < len(c.opts.SenderEmail)-1 {
		domain = c.opts.SenderEmail[at+1:]
	}
	return fmt.Sprintf("followup-%s@%s", uuid.NewString(), domain)
}

// MaybeSend requests the missing details from an incomplete client while the
// retry budget allows it. The retry counter only moves after the provider
// accepted the message. replyTo is the client message being answered.
func (c *Controller) MaybeSend(ctx context.Context, client *models.Client, conv *models.Conversation, replyTo *models.Email) (*Outcome, error) {
	decision := clients.Decide(client, c.opts.MaxFollowUps)
	out := &Outcome{Decision: decision, Client: client}

	switch decision {
	case clients.DecisionForward:
		return out, nil
	case clients.DecisionGiveUp:
		c.logger.Warn().Str("client_id", client.ID).Int("retries", client.FollowUpRetries).Msg("Follow-up limit reached, waiting for staff")
		c.analytics.TrackFollowUpsExhausted(ctx, client.Email, client.FollowUpRetries)
		return out, nil
	}

	token := c.Token()
	subject := conversations.ReplySubject(conv.Subject)
	body := composeBody(client, clients.MissingFields(client), client.FollowUpRetries+1, c.opts.OfficeName)
	html := email.RenderHTML(body)
	inReplyTo, references := conversations.ReplyHeaders(replyTo)

	providerID, err := c.sender.Send(ctx, &email.OutboundMessage{
		To:         client.Email,
		ToName:     deref(client.Name),
		Subject:    subject,
		Text:       body,
		HTML:       html,
		MessageID:  token,
		InReplyTo:  inReplyTo,
		References: references,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send follow-up: %w", err)
	}

	sent := &models.Email{
		ConversationID: &conv.ID,
		Reference:      &token,
		InReplyTo:      optional(inReplyTo),
		References:     conversations.JoinReferences(references),
		Sender:         c.opts.SenderEmail,
		SenderType:     models.SenderSystem,
		Subject:        subject,
		BodyText:       body,
		BodyHTML:       &html,
		Status:         models.EmailStatusFollowUpSent,
	}
	if providerID != "" {
		sent.ProviderMessageID = &providerID
	}
	if err := c.store.InsertEmail(ctx, sent); err != nil {
		c.logger.Error().Err(err).Str("client_id", client.ID).Msg("Failed to store follow-up copy")
	}

	updated, err := c.registry.RecordFollowUp(ctx, client, token, c.now())
	if err != nil {
		return nil, fmt.Errorf("follow-up sent but not recorded: %w", err)
	}

	if conv.Status != models.ConversationAwaitingClient {
		if err := c.resolver.Transition(ctx, conv, models.ConversationAwaitingClient, nil); err != nil {
			c.logger.Error().Err(err).Str("conversation_id", conv.ID).Msg("Failed to mark conversation as awaiting client")
		}
	}

	c.analytics.Track(ctx, analytics.EventFollowUpSent, map[string]interface{}{"attempt": updated.FollowUpRetries})
	c.logger.Info().
		Str("client_id", client.ID).
		Str("conversation_id", conv.ID).
		Int("attempt", updated.FollowUpRetries).
		Str("provider_message_id", providerID).
		Msg("Follow-up sent")

	out.Client = updated
	out.Email = sent
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
