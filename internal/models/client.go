package models

import "time"

// Client is a sender of client mail, keyed by normalized email address
type Client struct {
	ID                string     `db:"id" json:"id"`
	Email             string     `db:"email" json:"email"`
	Name              *string    `db:"name" json:"name,omitempty"`
	PhoneNumber       *string    `db:"phone_number" json:"phone_number,omitempty"`
	City              *string    `db:"city" json:"city,omitempty"`
	LastEmailID       *string    `db:"last_email_id" json:"last_email_id,omitempty"`
	FollowUpEmailSent bool       `db:"follow_up_email_sent" json:"follow_up_email_sent"`
	FollowUpSentAt    *time.Time `db:"follow_up_sent_at" json:"follow_up_sent_at,omitempty"`
	FollowUpMessageID *string    `db:"follow_up_message_id" json:"follow_up_message_id,omitempty"`
	FollowUpRetries   int        `db:"follow_up_retries" json:"follow_up_retries"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// ContactInfo holds client attributes extracted from a message; nil means not found
type ContactInfo struct {
	Name        *string `json:"name"`
	PhoneNumber *string `json:"phone_number"`
	City        *string `json:"city"`
}

// IsEmpty reports whether nothing was extracted
func (c ContactInfo) IsEmpty() bool {
	return c.Name == nil && c.PhoneNumber == nil && c.City == nil
}
