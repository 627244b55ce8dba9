// Package pipeline runs inbound messages through triage, client enrichment,
// follow-ups and forwarding.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"mailtriage/internal/analytics"
	"mailtriage/internal/cache"
	"mailtriage/internal/clients"
	"mailtriage/internal/conversations"
	"mailtriage/internal/database"
	"mailtriage/internal/dispatch"
	"mailtriage/internal/email"
	"mailtriage/internal/followup"
	"mailtriage/internal/models"
	"mailtriage/internal/storage"

	"github.com/rs/zerolog"
)

// Source tells where a message came from
type Source string

const (
	SourceIMAP    Source = "imap"
	SourceWebhook Source = "webhook"
	SourceImport  Source = "import"
)

// Outcome is what happened to one inbound message
type Outcome string

const (
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeManualReview Outcome = "manual_review"
	OutcomeFollowUp     Outcome = "follow_up_sent"
	OutcomeAwaiting     Outcome = "awaiting_client"
	OutcomeForwarded    Outcome = "forwarded"
	OutcomeForwardError Outcome = "forward_error"
	OutcomeStored       Outcome = "stored"
)

// Mailbox delivers unseen messages
type Mailbox interface {
	FetchUnseen(ctx context.Context) ([]*models.RawMessage, error)
}

// Triager classifies new threads and extracts contact details from replies
type Triager interface {
	Classify(ctx context.Context, roster []models.StaffMember, sender, subject, body string) (*models.TriageResult, error)
	ExtractContactInfo(ctx context.Context, sender, subject, body string) models.ContactInfo
}

// Deps are the collaborators of a Processor
type Deps struct {
	Store     *database.Store
	Mailbox   Mailbox
	Triage    Triager
	Registry  *clients.Registry
	Resolver  *conversations.Resolver
	FollowUps *followup.Controller
	Forwarder *dispatch.Forwarder
	Sender    email.Sender
	Blobs     *storage.BlobStore
	Analytics *analytics.Service
	// Seen remembers recently processed Message-IDs
	Seen     *cache.Cache
	DedupTTL time.Duration
	// SenderEmail is the office address used for staff replies
	SenderEmail string
}

// Processor handles inbound messages one at a time
type Processor struct {
	Deps
	logger zerolog.Logger
}

// ErrNoMailbox is returned by RunCycle when IMAP is not configured
var ErrNoMailbox = errors.New("mailbox not configured")

// New creates a processor
func New(deps Deps, logger zerolog.Logger) *Processor {
	if deps.Seen == nil {
		deps.Seen = cache.New()
	}
	if deps.DedupTTL <= 0 {
		deps.DedupTTL = 24 * time.Hour
	}
	return &Processor{
		Deps:   deps,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}
}

// RunCycle fetches unseen mail and processes it sequentially. Only a mailbox
// failure aborts the cycle; per-message failures are counted and logged.
func (p *Processor) RunCycle(ctx context.Context) (*models.CycleReport, error) {
	if p.Mailbox == nil {
		return nil, ErrNoMailbox
	}

	p.purgeSeen()
	report := &models.CycleReport{StartedAt: time.Now().UTC()}
	messages, err := p.Mailbox.FetchUnseen(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to fetch unseen messages")
		return nil, fmt.Errorf("failed to fetch mail: %w", err)
	}
	report.Fetched = len(messages)

	for _, raw := range messages {
		if ctx.Err() != nil {
			p.logger.Warn().Err(ctx.Err()).Msg("Cycle canceled, remaining messages stay for the next run")
			break
		}
		outcome, err := p.Process(ctx, raw, SourceIMAP)
		switch {
		case err != nil:
			report.Failed++
		case outcome == OutcomeDuplicate:
			report.Duplicates++
		default:
			report.Processed++
		}
	}

	report.FinishedAt = time.Now().UTC()
	p.Analytics.TrackCycle(ctx, report)
	if report.Processed > 0 {
		if err := p.Analytics.TrackEvent(ctx, analytics.EventEmailIngested, report.Processed,
			map[string]interface{}{"source": string(SourceIMAP)}); err != nil {
			p.logger.Warn().Err(err).Msg("Failed to track ingestion")
		}
	}

	p.logger.Info().
		Int("fetched", report.Fetched).
		Int("processed", report.Processed).
		Int("duplicates", report.Duplicates).
		Int("failed", report.Failed).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Cycle completed")
	return report, nil
}

// Process stores one inbound message and routes it. A failure after the
// message was stored marks it processing_error; panics are recovered.
func (p *Processor) Process(ctx context.Context, raw *models.RawMessage, source Source) (outcome Outcome, err error) {
	logger := p.logger.With().
		Str("source", string(source)).
		Str("message_id", raw.MessageID).
		Str("sender", raw.From).
		Logger()

	sender := clients.NormalizeEmail(raw.From)
	if sender == "" {
		logger.Warn().Msg("Message without sender ignored")
		return "", fmt.Errorf("message without sender: %w", database.ErrValidation)
	}

	claimed := false
	if raw.MessageID != "" {
		if !p.Seen.Claim(raw.MessageID, p.DedupTTL) {
			logger.Debug().Msg("Message already seen")
			return OutcomeDuplicate, nil
		}
		claimed = true
		exists, err := p.Store.EmailExistsByReference(ctx, raw.MessageID)
		if err != nil {
			p.Seen.Delete(raw.MessageID)
			return "", fmt.Errorf("failed to check for duplicates: %w", err)
		}
		if exists {
			logger.Debug().Msg("Message already stored")
			return OutcomeDuplicate, nil
		}
	}

	inbound := inboundEmail(raw, sender)
	if err := p.Store.InsertEmail(ctx, inbound); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return OutcomeDuplicate, nil
		}
		if claimed {
			p.Seen.Delete(raw.MessageID)
		}
		logger.Error().Err(err).Msg("Failed to store inbound message")
		return "", fmt.Errorf("failed to store message: %w", err)
	}
	logger = logger.With().Str("email_id", inbound.ID).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Panic while processing message")
			err = fmt.Errorf("panic while processing message: %v", r)
		}
		if err != nil {
			p.markFailed(ctx, inbound.ID, err, logger)
			outcome = ""
		}
	}()

	p.storeAttachments(ctx, inbound.ID, raw.Attachments, logger)

	res, err := p.Resolver.Resolve(ctx, raw)
	if err != nil {
		return "", err
	}
	logger.Info().Str("kind", res.Kind.String()).Bool("correlated", res.Correlated).Msg("Message received")

	switch res.Kind {
	case conversations.KindFollowUpReply:
		if res.Conversation == nil {
			logger.Info().Msg("Reply without an active conversation, treating as a new thread")
			return p.newThread(ctx, inbound, res.Client, logger)
		}
		return p.followUpReply(ctx, inbound, res, logger)
	case conversations.KindExistingThread:
		return p.existingThread(ctx, inbound, res, logger)
	default:
		return p.newThread(ctx, inbound, res.Client, logger)
	}
}

// purgeSeen drops expired Message-IDs so the dedupe cache stays bounded by
// the traffic of one TTL window
func (p *Processor) purgeSeen() {
	if removed := p.Seen.Purge(); removed > 0 {
		p.logger.Debug().Int("removed", removed).Int("remaining", p.Seen.Len()).Msg("Dedupe cache purged")
	}
}

func (p *Processor) markFailed(ctx context.Context, emailID string, cause error, logger zerolog.Logger) {
	ctx = context.WithoutCancel(ctx)
	logger.Error().Err(cause).Msg("Message processing failed")
	if err := p.Store.UpdateEmailStatus(ctx, emailID, models.EmailStatusProcessingError); err != nil {
		logger.Error().Err(err).Msg("Failed to mark message as processing_error")
	}
	p.Analytics.Track(ctx, analytics.EventProcessingError, map[string]interface{}{"error": cause.Error()})
}

func (p *Processor) storeAttachments(ctx context.Context, emailID string, attachments []models.RawAttachment, logger zerolog.Logger) {
	if p.Blobs == nil {
		return
	}
	for _, a := range attachments {
		ref, err := p.Blobs.Put(a.Content)
		if err != nil {
			logger.Warn().Err(err).Str("filename", a.Filename).Msg("Failed to store attachment")
			continue
		}
		if err := p.Store.InsertAttachment(ctx, &models.Attachment{
			EmailID:  emailID,
			Filename: a.Filename,
			MimeType: a.MimeType,
			Size:     int64(len(a.Content)),
			BlobRef:  ref,
		}); err != nil {
			logger.Warn().Err(err).Str("filename", a.Filename).Msg("Failed to record attachment")
		}
	}
}

// newThread triages the first message of a conversation
func (p *Processor) newThread(ctx context.Context, inbound *models.Email, known *models.Client, logger zerolog.Logger) (Outcome, error) {
	roster, err := p.Store.ListStaff(ctx)
	if err != nil {
		return "", err
	}
	if len(roster) == 0 {
		logger.Warn().Msg("No staff configured, message will need manual review")
	}

	status := models.EmailStatusAnalyzed
	result, err := p.Triage.Classify(ctx, roster, inbound.Sender, inbound.Subject, inbound.BodyText)
	if err != nil {
		logger.Warn().Err(err).Msg("Triage failed, message needs manual review")
		p.Analytics.Track(ctx, analytics.EventAITriageFailed, nil)
		result = &models.TriageResult{
			Contact: p.Triage.ExtractContactInfo(ctx, inbound.Sender, inbound.Subject, inbound.BodyText),
		}
		status = models.EmailStatusManualReview
	} else {
		p.Analytics.Track(ctx, analytics.EventAITriage, map[string]interface{}{
			"confidence": result.Confidence,
			"assigned":   result.AssignedStaffID != nil,
		})
		if result.AssignedStaffID == nil {
			status = models.EmailStatusManualReview
		}
	}

	upserted, err := p.Registry.Upsert(ctx, inbound.Sender, result.Contact, inbound.ID)
	if err != nil {
		return "", err
	}
	client := upserted.Client
	if known != nil && known.ID != client.ID {
		logger.Warn().Str("client_id", client.ID).Msg("Sender resolved to a different client record")
	}

	if err := p.Store.UpdateEmailTriage(ctx, inbound.ID, result, status); err != nil {
		return "", err
	}
	inbound.AssignedToStaffID = result.AssignedStaffID
	inbound.AIConfidence = result.Confidence
	inbound.IsUrgent = result.IsUrgent
	if result.Reasoning != "" {
		inbound.AIReasoning = &result.Reasoning
	}
	inbound.Status = status

	conv, err := p.Resolver.Open(ctx, client, inbound.Subject, result.AssignedStaffID)
	if err != nil {
		return "", err
	}
	if err := p.Store.SetEmailConversation(ctx, inbound.ID, conv.ID); err != nil {
		return "", err
	}
	inbound.ConversationID = &conv.ID

	logger.Info().
		Str("client_id", client.ID).
		Str("conversation_id", conv.ID).
		Str("status", string(status)).
		Float64("confidence", result.Confidence).
		Msg("Message triaged")

	if status == models.EmailStatusManualReview {
		// still collect the missing details while staff review the assignment
		if !clients.IsComplete(client) {
			p.requestMissing(ctx, client, conv, inbound, logger)
		}
		return OutcomeManualReview, nil
	}
	return p.continueThread(ctx, client, conv, inbound, inbound, logger), nil
}

// followUpReply merges the details a client sent in answer to a request
func (p *Processor) followUpReply(ctx context.Context, inbound *models.Email, res *conversations.Resolution, logger zerolog.Logger) (Outcome, error) {
	client, err := p.mergeReply(ctx, inbound, res, logger)
	if err != nil {
		return "", err
	}

	if !clients.IsComplete(client) {
		return p.requestMissing(ctx, client, res.Conversation, inbound, logger), nil
	}

	pending, err := p.Store.PendingForward(ctx, res.Conversation.ID)
	if errors.Is(err, database.ErrNotFound) {
		logger.Info().Str("conversation_id", res.Conversation.ID).Msg("Client complete, nothing left to forward")
		if err := p.Resolver.Transition(ctx, res.Conversation, models.ConversationOpen, nil); err != nil {
			return "", err
		}
		return OutcomeStored, nil
	}
	if err != nil {
		return "", err
	}
	return p.forward(ctx, pending, res.Conversation, logger), nil
}

// existingThread stores more mail on an active conversation
func (p *Processor) existingThread(ctx context.Context, inbound *models.Email, res *conversations.Resolution, logger zerolog.Logger) (Outcome, error) {
	client, err := p.mergeReply(ctx, inbound, res, logger)
	if err != nil {
		return "", err
	}
	conv := res.Conversation

	if !clients.IsComplete(client) {
		return p.requestMissing(ctx, client, conv, inbound, logger), nil
	}

	outcome := OutcomeStored
	pending, err := p.Store.PendingForward(ctx, conv.ID)
	switch {
	case err == nil:
		outcome = p.forward(ctx, pending, conv, logger)
	case !errors.Is(err, database.ErrNotFound):
		return "", err
	}

	if conv.AssignedToStaffID != nil && outcome != OutcomeForwardError {
		inbound.AssignedToStaffID = conv.AssignedToStaffID
		outcome = p.forward(ctx, inbound, conv, logger)
	} else if err := p.Store.TouchConversation(ctx, conv.ID); err != nil {
		return "", err
	}
	return outcome, nil
}

// mergeReply extracts contact details from a reply, links it to the
// conversation and marks it client_reply.
func (p *Processor) mergeReply(ctx context.Context, inbound *models.Email, res *conversations.Resolution, logger zerolog.Logger) (*models.Client, error) {
	info := p.Triage.ExtractContactInfo(ctx, inbound.Sender, inbound.Subject, inbound.BodyText)

	upserted, err := p.Registry.Upsert(ctx, res.Client.Email, info, inbound.ID)
	if err != nil {
		return nil, err
	}
	if err := p.Store.SetEmailConversation(ctx, inbound.ID, res.Conversation.ID); err != nil {
		return nil, err
	}
	if err := p.Store.UpdateEmailStatus(ctx, inbound.ID, models.EmailStatusClientReply); err != nil {
		return nil, err
	}
	inbound.ConversationID = &res.Conversation.ID
	inbound.Status = models.EmailStatusClientReply

	logger.Info().
		Str("client_id", upserted.Client.ID).
		Str("conversation_id", res.Conversation.ID).
		Bool("changed", upserted.Changed).
		Bool("complete", clients.IsComplete(upserted.Client)).
		Msg("Client reply merged")
	return upserted.Client, nil
}

// continueThread forwards when the client is complete and asks for the
// missing details otherwise.
func (p *Processor) continueThread(ctx context.Context, client *models.Client, conv *models.Conversation,
	target, replyTo *models.Email, logger zerolog.Logger) Outcome {
	if clients.IsComplete(client) {
		return p.forward(ctx, target, conv, logger)
	}
	return p.requestMissing(ctx, client, conv, replyTo, logger)
}

func (p *Processor) requestMissing(ctx context.Context, client *models.Client, conv *models.Conversation,
	replyTo *models.Email, logger zerolog.Logger) Outcome {
	out, err := p.FollowUps.MaybeSend(ctx, client, conv, replyTo)
	if err != nil {
		logger.Error().Err(err).Str("client_id", client.ID).Msg("Follow-up not sent")
		return OutcomeAwaiting
	}
	if out.Decision == clients.DecisionFollowUp {
		return OutcomeFollowUp
	}
	return OutcomeAwaiting
}

// forward hands a message to dispatch; failures are recorded on the message
func (p *Processor) forward(ctx context.Context, e *models.Email, conv *models.Conversation, logger zerolog.Logger) Outcome {
	err := p.Forwarder.Forward(ctx, e, conv, dispatch.Options{})
	switch {
	case err == nil:
		return OutcomeForwarded
	case errors.Is(err, dispatch.ErrForwardFailed):
		return OutcomeForwardError
	case errors.Is(err, dispatch.ErrNotAssigned), errors.Is(err, dispatch.ErrClientIncomplete):
		logger.Warn().Err(err).Str("email_id", e.ID).Msg("Message not forwarded")
		return OutcomeStored
	default:
		logger.Error().Err(err).Str("email_id", e.ID).Msg("Forward bookkeeping failed")
		return OutcomeForwardError
	}
}

func inboundEmail(raw *models.RawMessage, sender string) *models.Email {
	e := &models.Email{
		Reference:  optional(raw.MessageID),
		InReplyTo:  optional(raw.InReplyTo),
		References: conversations.JoinReferences(raw.References),
		Sender:     sender,
		SenderName: optional(strings.TrimSpace(raw.FromName)),
		SenderType: models.SenderClient,
		Subject:    raw.Subject,
		BodyText:   raw.TextBody,
		BodyHTML:   optional(raw.HTMLBody),
		Status:     models.EmailStatusNew,
	}
	if strings.TrimSpace(e.Subject) == "" {
		e.Subject = "(nessun oggetto)"
	}
	return e
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
