// Package clients keeps one record per client address and tracks which
// contact details are still missing.
package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mailtriage/internal/database"
	"mailtriage/internal/models"

	"github.com/rs/zerolog"
)

// Registry creates and enriches client records
type Registry struct {
	store  *database.Store
	logger zerolog.Logger
}

// NewRegistry creates a client registry
func NewRegistry(store *database.Store, logger zerolog.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: logger.With().Str("component", "clients").Logger(),
	}
}

// UpsertResult is the stored client and what the merge changed
type UpsertResult struct {
	Client  *models.Client
	Created bool
	MergeOutcome
}

// Upsert finds the client by normalized address and merges the extracted
// attributes, creating the record when missing.
func (r *Registry) Upsert(ctx context.Context, email string, info models.ContactInfo, relatedEmailID string) (*UpsertResult, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("client email: %w", database.ErrValidation)
	}

	existing, err := r.store.GetClientByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		created, createErr := r.create(ctx, email, info, relatedEmailID)
		if !errors.Is(createErr, database.ErrDuplicate) {
			return created, createErr
		}
		// created concurrently by the webhook or another cycle
		existing, err = r.store.GetClientByEmail(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load client: %w", err)
	}

	merged, outcome := ApplyContact(*existing, info)
	if relatedEmailID != "" && !equal(merged.LastEmailID, &relatedEmailID) {
		merged.LastEmailID = &relatedEmailID
		outcome.Changed = true
	}

	if outcome.Changed {
		if err := r.store.UpdateClient(ctx, &merged); err != nil {
			return nil, err
		}
		if outcome.BecameComplete {
			r.logger.Info().Str("client_id", merged.ID).Bool("follow_up_reset", outcome.FollowUpReset).Msg("Client information complete")
		}
	}

	return &UpsertResult{Client: &merged, MergeOutcome: outcome}, nil
}

func (r *Registry) create(ctx context.Context, email string, info models.ContactInfo, relatedEmailID string) (*UpsertResult, error) {
	client, outcome := ApplyContact(models.Client{Email: email}, info)
	if relatedEmailID != "" {
		client.LastEmailID = &relatedEmailID
	}
	if err := r.store.InsertClient(ctx, &client); err != nil {
		return nil, err
	}

	r.logger.Info().Str("client_id", client.ID).Bool("complete", IsComplete(&client)).Msg("Client created")
	return &UpsertResult{Client: &client, Created: true, MergeOutcome: outcome}, nil
}

// RecordFollowUp stores a sent follow-up on the client
func (r *Registry) RecordFollowUp(ctx context.Context, c *models.Client, token string, at time.Time) (*models.Client, error) {
	updated := RecordFollowUp(*c, token, at)
	if err := r.store.UpdateClient(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Get returns a client by ID
func (r *Registry) Get(ctx context.Context, id string) (*models.Client, error) {
	return r.store.GetClient(ctx, id)
}

// GetByEmail returns a client by address, normalizing it first
func (r *Registry) GetByEmail(ctx context.Context, email string) (*models.Client, error) {
	return r.store.GetClientByEmail(ctx, NormalizeEmail(email))
}

// GetByFollowUpMessageID returns the client whose outstanding follow-up
// matches one of the given message IDs.
func (r *Registry) GetByFollowUpMessageID(ctx context.Context, messageIDs []string) (*models.Client, error) {
	return r.store.GetClientByFollowUpMessageID(ctx, messageIDs)
}

// List returns all clients
func (r *Registry) List(ctx context.Context) ([]models.Client, error) {
	return r.store.ListClients(ctx)
}
