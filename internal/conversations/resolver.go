// Package conversations decides which thread an inbound message belongs to
// and enforces the conversation lifecycle.
package conversations

import (
	"context"
	"errors"
	"fmt"

	"mailtriage/internal/clients"
	"mailtriage/internal/database"
	"mailtriage/internal/emails"
	"mailtriage/internal/models"

	"github.com/rs/zerolog"
)

// Kind classifies an inbound message
type Kind int

const (
	// KindNewThread starts a new conversation and needs triage
	KindNewThread Kind = iota
	// KindExistingThread is more mail on an active conversation
	KindExistingThread
	// KindFollowUpReply answers one of our information requests
	KindFollowUpReply
)

func (k Kind) String() string {
	switch k {
	case KindExistingThread:
		return "existing_thread"
	case KindFollowUpReply:
		return "follow_up_reply"
	default:
		return "new_thread"
	}
}

// Resolution is where an inbound message goes
type Resolution struct {
	Kind Kind
	// Client is nil for a sender never seen before
	Client *models.Client
	// Conversation is the active conversation of the client, if any
	Conversation *models.Conversation
	// Correlated is true when the reply was matched by message headers
	Correlated bool
}

// Resolver routes messages to conversations
type Resolver struct {
	store  *database.Store
	logger zerolog.Logger
}

// NewResolver creates a conversation resolver
func NewResolver(store *database.Store, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger.With().Str("component", "conversations").Logger(),
	}
}

// Resolve classifies a message. A reply whose In-Reply-To or References
// names an outstanding follow-up wins; otherwise the sender's follow-up flag
// decides, then an active conversation, and finally a new thread.
func (r *Resolver) Resolve(ctx context.Context, raw *models.RawMessage) (*Resolution, error) {
	sender := clients.NormalizeEmail(raw.From)
	res := &Resolution{Kind: KindNewThread}

	client, err := r.store.GetClientByFollowUpMessageID(ctx, emails.ThreadIDs(raw))
	switch {
	case err == nil:
		res.Kind = KindFollowUpReply
		res.Correlated = true
		if client.Email != sender {
			r.logger.Info().Str("client_id", client.ID).Str("sender", sender).Msg("Follow-up reply from a different address")
		}
	case errors.Is(err, database.ErrNotFound):
		client, err = r.store.GetClientByEmail(ctx, sender)
		if errors.Is(err, database.ErrNotFound) {
			return res, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up sender: %w", err)
		}
		if client.FollowUpEmailSent {
			res.Kind = KindFollowUpReply
		}
	default:
		return nil, fmt.Errorf("failed to correlate reply: %w", err)
	}
	res.Client = client

	conv, err := r.store.FindActiveConversation(ctx, client.ID)
	switch {
	case err == nil:
		res.Conversation = conv
		if res.Kind == KindNewThread {
			res.Kind = KindExistingThread
		}
	case !errors.Is(err, database.ErrNotFound):
		return nil, fmt.Errorf("failed to find active conversation: %w", err)
	}

	return res, nil
}

// Open creates a conversation for a client: awaiting_client while contact
// details are missing, open otherwise.
func (r *Resolver) Open(ctx context.Context, client *models.Client, subject string, staffID *string) (*models.Conversation, error) {
	status := models.ConversationOpen
	if !clients.IsComplete(client) {
		status = models.ConversationAwaitingClient
	}

	conv := &models.Conversation{
		Subject:           subject,
		ClientID:          client.ID,
		AssignedToStaffID: staffID,
		Status:            status,
	}
	if err := r.store.InsertConversation(ctx, conv); err != nil {
		return nil, err
	}

	r.logger.Info().Str("conversation_id", conv.ID).Str("status", string(status)).Msg("Conversation created")
	return conv, nil
}

// Transition moves a conversation to a new status, validating the change
func (r *Resolver) Transition(ctx context.Context, conv *models.Conversation, to models.ConversationStatus, resolution *string) error {
	if !CanTransition(conv.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, conv.Status, to)
	}
	if to != models.ConversationClosed {
		resolution = nil
	}
	if conv.Status == to {
		return r.store.TouchConversation(ctx, conv.ID)
	}

	if err := r.store.UpdateConversationStatus(ctx, conv.ID, to, resolution); err != nil {
		return err
	}
	r.logger.Info().Str("conversation_id", conv.ID).Str("from", string(conv.Status)).Str("to", string(to)).Msg("Conversation status changed")

	conv.Status = to
	conv.ResolutionStatus = resolution
	return nil
}

// Get returns a conversation by ID
func (r *Resolver) Get(ctx context.Context, id string) (*models.Conversation, error) {
	return r.store.GetConversation(ctx, id)
}
