package database

import (
	"context"
	"fmt"
	"strings"

	"mailtriage/internal/models"
)

const conversationColumns = `id, subject, client_id, assigned_to_staff_id, status, resolution_status, created_at, updated_at`

// InsertConversation stores a new conversation
func (s *Store) InsertConversation(ctx context.Context, c *models.Conversation) error {
	if c.ID == "" {
		c.ID = newID()
	}
	now := s.now()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `INSERT INTO conversations (` + conversationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.client.Exec(ctx, query,
		c.ID, c.Subject, c.ClientID, c.AssignedToStaffID, c.Status, c.ResolutionStatus, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	return nil
}

// GetConversation returns a conversation by ID
func (s *Store) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	if err := s.client.Get(ctx, &c, `SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "conversation")
	}
	return &c, nil
}

// FindActiveConversation returns the most recently updated open or
// awaiting_client conversation of a client.
func (s *Store) FindActiveConversation(ctx context.Context, clientID string) (*models.Conversation, error) {
	var c models.Conversation
	query := `SELECT ` + conversationColumns + ` FROM conversations
		WHERE client_id = ? AND status IN (?, ?) ORDER BY updated_at DESC LIMIT 1`
	err := s.client.Get(ctx, &c, query, clientID, models.ConversationOpen, models.ConversationAwaitingClient)
	if err != nil {
		return nil, notFound(err, "conversation")
	}
	return &c, nil
}

// UpdateConversationStatus sets status and resolution of a conversation
func (s *Store) UpdateConversationStatus(ctx context.Context, id string, status models.ConversationStatus, resolution *string) error {
	query := `UPDATE conversations SET status = ?, resolution_status = ?, updated_at = ? WHERE id = ?`
	if _, err := s.client.Exec(ctx, query, status, resolution, s.now(), id); err != nil {
		return fmt.Errorf("failed to update conversation status: %w", err)
	}
	return nil
}

// AssignConversation sets the staff member handling a conversation
func (s *Store) AssignConversation(ctx context.Context, id string, staffID *string) error {
	query := `UPDATE conversations SET assigned_to_staff_id = ?, updated_at = ? WHERE id = ?`
	if _, err := s.client.Exec(ctx, query, staffID, s.now(), id); err != nil {
		return fmt.Errorf("failed to assign conversation: %w", err)
	}
	return nil
}

// TouchConversation bumps the conversation's updated_at
func (s *Store) TouchConversation(ctx context.Context, id string) error {
	if _, err := s.client.Exec(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, s.now(), id); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

// ListConversations returns conversations matching the filter, most recent first
func (s *Store) ListConversations(ctx context.Context, filter models.ConversationFilter) ([]models.ConversationSummary, error) {
	var where []string
	var args []interface{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		where = append(where, "cv.status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.StaffID != "" {
		where = append(where, "cv.assigned_to_staff_id = ?")
		args = append(args, filter.StaffID)
	}
	if filter.StartDate != nil {
		where = append(where, "cv.created_at >= ?")
		args = append(args, filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		where = append(where, "cv.created_at <= ?")
		args = append(args, filter.EndDate.UTC())
	}

	query := `SELECT cv.id, cv.subject, cv.client_id, cv.assigned_to_staff_id, cv.status, cv.resolution_status,
		cv.created_at, cv.updated_at,
		cl.email AS client_email, cl.name AS client_name, st.name AS staff_name,
		(SELECT COUNT(*) FROM emails e WHERE e.conversation_id = cv.id) AS message_count
		FROM conversations cv
		JOIN clients cl ON cl.id = cv.client_id
		LEFT JOIN staff st ON st.id = cv.assigned_to_staff_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY cv.updated_at DESC"

	conversations := []models.ConversationSummary{}
	if err := s.client.Select(ctx, &conversations, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

// GetConversationSummary returns one conversation with client and staff details
func (s *Store) GetConversationSummary(ctx context.Context, id string) (*models.ConversationSummary, error) {
	var c models.ConversationSummary
	query := `SELECT cv.id, cv.subject, cv.client_id, cv.assigned_to_staff_id, cv.status, cv.resolution_status,
		cv.created_at, cv.updated_at,
		cl.email AS client_email, cl.name AS client_name, st.name AS staff_name,
		(SELECT COUNT(*) FROM emails e WHERE e.conversation_id = cv.id) AS message_count
		FROM conversations cv
		JOIN clients cl ON cl.id = cv.client_id
		LEFT JOIN staff st ON st.id = cv.assigned_to_staff_id
		WHERE cv.id = ?`
	if err := s.client.Get(ctx, &c, query, id); err != nil {
		return nil, notFound(err, "conversation")
	}
	return &c, nil
}

// DeleteConversation removes a conversation together with its messages and
// attachment rows. It returns the blob references that are no longer used.
func (s *Store) DeleteConversation(ctx context.Context, id string) ([]string, error) {
	var blobRefs []string
	query := `SELECT a.blob_ref FROM email_attachments a JOIN emails e ON e.id = a.email_id WHERE e.conversation_id = ?`
	if err := s.client.Select(ctx, &blobRefs, query, id); err != nil {
		return nil, fmt.Errorf("failed to list conversation attachments: %w", err)
	}

	statements := []string{
		`DELETE FROM email_attachments WHERE email_id IN (SELECT id FROM emails WHERE conversation_id = ?)`,
		`DELETE FROM emails WHERE conversation_id = ?`,
		`DELETE FROM conversations WHERE id = ?`,
	}

	tx, err := s.client.GetDB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, tx.Rebind(stmt), id); err != nil {
			return nil, fmt.Errorf("failed to delete conversation: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit conversation delete: %w", err)
	}

	var unused []string
	for _, ref := range blobRefs {
		var count int
		if err := s.client.Get(ctx, &count, `SELECT COUNT(*) FROM email_attachments WHERE blob_ref = ?`, ref); err == nil && count == 0 {
			unused = append(unused, ref)
		}
	}
	return unused, nil
}
