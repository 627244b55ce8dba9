package database

import (
	"context"
	"fmt"

	"mailtriage/internal/models"
)

const emailColumns = `id, conversation_id, reference, in_reply_to, thread_references, sender, sender_name,
	sender_type, subject, body_text, body_html, assigned_to_staff_id, ai_confidence_score, ai_reasoning,
	is_urgent, status, provider_message_id, created_at, updated_at`

// InsertEmail stores a message; ID and timestamps are filled in when empty
func (s *Store) InsertEmail(ctx context.Context, e *models.Email) error {
	if e.ID == "" {
		e.ID = newID()
	}
	now := s.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = models.EmailStatusNew
	}

	query := `INSERT INTO emails (` + emailColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.client.Exec(ctx, query,
		e.ID, e.ConversationID, e.Reference, e.InReplyTo, e.References, e.Sender, e.SenderName,
		e.SenderType, e.Subject, e.BodyText, e.BodyHTML, e.AssignedToStaffID, e.AIConfidence, e.AIReasoning,
		e.IsUrgent, e.Status, e.ProviderMessageID, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email %v: %w", derefOr(e.Reference, e.ID), ErrDuplicate)
		}
		return fmt.Errorf("failed to insert email: %w", err)
	}
	return nil
}

// GetEmail returns a message by ID
func (s *Store) GetEmail(ctx context.Context, id string) (*models.Email, error) {
	var e models.Email
	if err := s.client.Get(ctx, &e, `SELECT `+emailColumns+` FROM emails WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "email")
	}
	return &e, nil
}

// EmailExistsByReference reports whether a message with the given Message-ID is stored
func (s *Store) EmailExistsByReference(ctx context.Context, reference string) (bool, error) {
	var count int
	if err := s.client.Get(ctx, &count, `SELECT COUNT(*) FROM emails WHERE reference = ?`, reference); err != nil {
		return false, fmt.Errorf("failed to check email reference: %w", err)
	}
	return count > 0, nil
}

// UpdateEmailStatus sets the processing status of a message
func (s *Store) UpdateEmailStatus(ctx context.Context, id string, status models.EmailStatus) error {
	_, err := s.client.Exec(ctx, `UPDATE emails SET status = ?, updated_at = ? WHERE id = ?`, status, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update email status: %w", err)
	}
	return nil
}

// UpdateEmailTriage stores the classification outcome of a message
func (s *Store) UpdateEmailTriage(ctx context.Context, id string, result *models.TriageResult, status models.EmailStatus) error {
	reasoning := result.Reasoning
	query := `UPDATE emails SET assigned_to_staff_id = ?, ai_confidence_score = ?, ai_reasoning = ?,
		is_urgent = ?, status = ?, updated_at = ? WHERE id = ?`
	_, err := s.client.Exec(ctx, query, result.AssignedStaffID, result.Confidence, &reasoning, result.IsUrgent, status, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update email triage: %w", err)
	}
	return nil
}

// AssignEmail sets the staff member a message is assigned to
func (s *Store) AssignEmail(ctx context.Context, id string, staffID *string, status models.EmailStatus) error {
	query := `UPDATE emails SET assigned_to_staff_id = ?, status = ?, updated_at = ? WHERE id = ?`
	if _, err := s.client.Exec(ctx, query, staffID, status, s.now(), id); err != nil {
		return fmt.Errorf("failed to assign email: %w", err)
	}
	return nil
}

// SetEmailConversation links a message to a conversation
func (s *Store) SetEmailConversation(ctx context.Context, id, conversationID string) error {
	query := `UPDATE emails SET conversation_id = ?, updated_at = ? WHERE id = ?`
	if _, err := s.client.Exec(ctx, query, conversationID, s.now(), id); err != nil {
		return fmt.Errorf("failed to link email to conversation: %w", err)
	}
	return nil
}

// ListConversationEmails returns the messages of a conversation, oldest first
func (s *Store) ListConversationEmails(ctx context.Context, conversationID string) ([]models.Email, error) {
	var emails []models.Email
	query := `SELECT ` + emailColumns + ` FROM emails WHERE conversation_id = ? ORDER BY created_at ASC`
	if err := s.client.Select(ctx, &emails, query, conversationID); err != nil {
		return nil, fmt.Errorf("failed to list conversation emails: %w", err)
	}
	return emails, nil
}

// LastConversationEmail returns the most recent message of a conversation
func (s *Store) LastConversationEmail(ctx context.Context, conversationID string) (*models.Email, error) {
	var e models.Email
	query := `SELECT ` + emailColumns + ` FROM emails WHERE conversation_id = ? ORDER BY created_at DESC LIMIT 1`
	if err := s.client.Get(ctx, &e, query, conversationID); err != nil {
		return nil, notFound(err, "email")
	}
	return &e, nil
}

// PendingForward returns the latest client message of a conversation that
// was triaged but never forwarded.
func (s *Store) PendingForward(ctx context.Context, conversationID string) (*models.Email, error) {
	var e models.Email
	query := `SELECT ` + emailColumns + ` FROM emails
		WHERE conversation_id = ? AND sender_type = ? AND status IN (?, ?)
		ORDER BY created_at DESC LIMIT 1`
	err := s.client.Get(ctx, &e, query, conversationID, models.SenderClient,
		models.EmailStatusAnalyzed, models.EmailStatusAssigned)
	if err != nil {
		return nil, notFound(err, "pending email")
	}
	return &e, nil
}

// ListInbox returns assigned messages visible in the staff worklist
func (s *Store) ListInbox(ctx context.Context, staffID string) ([]models.InboxItem, error) {
	query := `SELECT e.id, e.conversation_id, e.reference, e.in_reply_to, e.thread_references, e.sender,
		e.sender_name, e.sender_type, e.subject, e.body_text, e.body_html, e.assigned_to_staff_id,
		e.ai_confidence_score, e.ai_reasoning, e.is_urgent, e.status, e.provider_message_id,
		e.created_at, e.updated_at,
		st.name AS staff_name, cl.name AS client_name, cl.phone_number AS client_phone, cl.city AS client_city
		FROM emails e
		LEFT JOIN staff st ON st.id = e.assigned_to_staff_id
		LEFT JOIN conversations cv ON cv.id = e.conversation_id
		LEFT JOIN clients cl ON cl.id = cv.client_id
		WHERE e.assigned_to_staff_id IS NOT NULL AND e.status IN (?, ?, ?)`
	args := []interface{}{models.EmailStatusAnalyzed, models.EmailStatusAssigned, models.EmailStatusForwarded}
	if staffID != "" {
		query += ` AND e.assigned_to_staff_id = ?`
		args = append(args, staffID)
	}
	query += ` ORDER BY e.created_at DESC`

	items := []models.InboxItem{}
	if err := s.client.Select(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}
	return items, nil
}

func derefOr(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}
