package database

import (
	"context"
	"fmt"

	"mailtriage/internal/models"
)

// InsertAttachment stores attachment metadata
func (s *Store) InsertAttachment(ctx context.Context, a *models.Attachment) error {
	if a.ID == "" {
		a.ID = newID()
	}
	a.CreatedAt = s.now()

	query := `INSERT INTO email_attachments (id, email_id, filename, mime_type, size, blob_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.client.Exec(ctx, query, a.ID, a.EmailID, a.Filename, a.MimeType, a.Size, a.BlobRef, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", err)
	}
	return nil
}

// ListAttachments returns the attachments of a message
func (s *Store) ListAttachments(ctx context.Context, emailID string) ([]models.Attachment, error) {
	attachments := []models.Attachment{}
	query := `SELECT id, email_id, filename, mime_type, size, blob_ref, created_at
		FROM email_attachments WHERE email_id = ? ORDER BY created_at ASC`
	if err := s.client.Select(ctx, &attachments, query, emailID); err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return attachments, nil
}
