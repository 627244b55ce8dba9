package models

import (
	"database/sql/driver"
	"time"
)

// EmailStatus is the processing state of a stored message
type EmailStatus string

const (
	EmailStatusNew             EmailStatus = "new"
	EmailStatusAnalyzed        EmailStatus = "analyzed"
	EmailStatusAssigned        EmailStatus = "assigned"
	EmailStatusManualReview    EmailStatus = "manual_review"
	EmailStatusForwarded       EmailStatus = "forwarded"
	EmailStatusForwardError    EmailStatus = "forward_error"
	EmailStatusProcessingError EmailStatus = "processing_error"
	EmailStatusFollowUpSent    EmailStatus = "follow_up_sent"
	EmailStatusClientReply     EmailStatus = "client_reply"
	EmailStatusStaffReply      EmailStatus = "staff_reply"
)

// IsTerminal reports whether no further automatic processing happens for the status
func (s EmailStatus) IsTerminal() bool {
	switch s {
	case EmailStatusForwarded, EmailStatusFollowUpSent, EmailStatusStaffReply:
		return true
	}
	return false
}

// Value implements driver.Valuer
func (s EmailStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// SenderType identifies who authored a stored message
type SenderType string

const (
	SenderClient SenderType = "client"
	SenderStaff  SenderType = "staff"
	SenderSystem SenderType = "system"
)

// Value implements driver.Valuer
func (t SenderType) Value() (driver.Value, error) {
	return string(t), nil
}

// Email is a stored inbound or outbound message
type Email struct {
	ID                string      `db:"id" json:"id"`
	ConversationID    *string     `db:"conversation_id" json:"conversation_id,omitempty"`
	Reference         *string     `db:"reference" json:"reference,omitempty"` // Message-ID without angle brackets
	InReplyTo         *string     `db:"in_reply_to" json:"in_reply_to,omitempty"`
	References        *string     `db:"thread_references" json:"references,omitempty"` // space separated
	Sender            string      `db:"sender" json:"sender"`
	SenderName        *string     `db:"sender_name" json:"sender_name,omitempty"`
	SenderType        SenderType  `db:"sender_type" json:"sender_type"`
	Subject           string      `db:"subject" json:"subject"`
	BodyText          string      `db:"body_text" json:"body_text"`
	BodyHTML          *string     `db:"body_html" json:"body_html,omitempty"`
	AssignedToStaffID *string     `db:"assigned_to_staff_id" json:"assigned_to_staff_id,omitempty"`
	AIConfidence      float64     `db:"ai_confidence_score" json:"ai_confidence_score"`
	AIReasoning       *string     `db:"ai_reasoning" json:"ai_reasoning,omitempty"`
	IsUrgent          bool        `db:"is_urgent" json:"is_urgent"`
	Status            EmailStatus `db:"status" json:"status"`
	ProviderMessageID *string     `db:"provider_message_id" json:"provider_message_id,omitempty"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`
}

// Attachment is the metadata of a stored attachment; the bytes live in the blob store
type Attachment struct {
	ID        string    `db:"id" json:"id"`
	EmailID   string    `db:"email_id" json:"email_id"`
	Filename  string    `db:"filename" json:"filename"`
	MimeType  string    `db:"mime_type" json:"mime_type"`
	Size      int64     `db:"size" json:"size"`
	BlobRef   string    `db:"blob_ref" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RawAttachment is an attachment decoded from a MIME message
type RawAttachment struct {
	Filename string
	MimeType string
	Content  []byte
}

// RawMessage is a parsed message as delivered by the mailbox or the inbound webhook
type RawMessage struct {
	UID         uint32
	MessageID   string
	InReplyTo   string
	References  []string
	From        string
	FromName    string
	To          string
	Subject     string
	TextBody    string
	HTMLBody    string
	Date        time.Time
	Attachments []RawAttachment
}

// InboxItem is a row of the staff worklist
type InboxItem struct {
	Email
	StaffName   *string `db:"staff_name" json:"staff_name,omitempty"`
	ClientName  *string `db:"client_name" json:"client_name,omitempty"`
	ClientPhone *string `db:"client_phone" json:"client_phone,omitempty"`
	ClientCity  *string `db:"client_city" json:"client_city,omitempty"`
}
