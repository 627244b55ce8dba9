package database

import (
	"context"
	"fmt"

	"mailtriage/internal/models"
)

const clientColumns = `id, email, name, phone_number, city, last_email_id, follow_up_email_sent,
	follow_up_sent_at, follow_up_message_id, follow_up_retries, created_at, updated_at`

// GetClient returns a client by ID
func (s *Store) GetClient(ctx context.Context, id string) (*models.Client, error) {
	var c models.Client
	if err := s.client.Get(ctx, &c, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "client")
	}
	return &c, nil
}

// GetClientByEmail returns a client by normalized email address
func (s *Store) GetClientByEmail(ctx context.Context, email string) (*models.Client, error) {
	var c models.Client
	if err := s.client.Get(ctx, &c, `SELECT `+clientColumns+` FROM clients WHERE email = ?`, email); err != nil {
		return nil, notFound(err, "client")
	}
	return &c, nil
}

// GetClientByFollowUpMessageID returns the client whose outstanding follow-up
// carries one of the given message IDs.
func (s *Store) GetClientByFollowUpMessageID(ctx context.Context, messageIDs []string) (*models.Client, error) {
	if len(messageIDs) == 0 {
		return nil, fmt.Errorf("client: %w", ErrNotFound)
	}

	query, args, err := s.client.In(`SELECT `+clientColumns+` FROM clients
		WHERE follow_up_message_id IN (?) ORDER BY updated_at DESC LIMIT 1`, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build follow-up lookup: %w", err)
	}

	var c models.Client
	if err := s.client.Get(ctx, &c, query, args...); err != nil {
		return nil, notFound(err, "client")
	}
	return &c, nil
}

// InsertClient stores a new client
func (s *Store) InsertClient(ctx context.Context, c *models.Client) error {
	if c.ID == "" {
		c.ID = newID()
	}
	now := s.now()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `INSERT INTO clients (` + clientColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.client.Exec(ctx, query,
		c.ID, c.Email, c.Name, c.PhoneNumber, c.City, c.LastEmailID, c.FollowUpEmailSent,
		c.FollowUpSentAt, c.FollowUpMessageID, c.FollowUpRetries, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("client %s: %w", c.Email, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert client: %w", err)
	}
	return nil
}

// UpdateClient writes every mutable column of a client in one statement
func (s *Store) UpdateClient(ctx context.Context, c *models.Client) error {
	c.UpdatedAt = s.now()

	query := `UPDATE clients SET name = ?, phone_number = ?, city = ?, last_email_id = ?,
		follow_up_email_sent = ?, follow_up_sent_at = ?, follow_up_message_id = ?, follow_up_retries = ?,
		updated_at = ? WHERE id = ?`
	_, err := s.client.Exec(ctx, query,
		c.Name, c.PhoneNumber, c.City, c.LastEmailID,
		c.FollowUpEmailSent, c.FollowUpSentAt, c.FollowUpMessageID, c.FollowUpRetries,
		c.UpdatedAt, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	return nil
}

// ListClients returns all clients, most recently updated first
func (s *Store) ListClients(ctx context.Context) ([]models.Client, error) {
	clients := []models.Client{}
	if err := s.client.Select(ctx, &clients, `SELECT `+clientColumns+` FROM clients ORDER BY updated_at DESC`); err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}
