package models

import (
	"database/sql/driver"
	"time"
)

// ConversationStatus is the lifecycle state of a client thread
type ConversationStatus string

const (
	ConversationOpen           ConversationStatus = "open"
	ConversationAwaitingClient ConversationStatus = "awaiting_client"
	ConversationClosed         ConversationStatus = "closed"
)

// IsActive reports whether new client mail may be appended to the conversation
func (s ConversationStatus) IsActive() bool {
	return s == ConversationOpen || s == ConversationAwaitingClient
}

// Value implements driver.Valuer
func (s ConversationStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Resolution values set by staff when closing a conversation
const (
	ResolutionResolved   = "resolved"
	ResolutionUnresolved = "unresolved"
)

// Conversation groups the messages exchanged with one client about one matter
type Conversation struct {
	ID                string             `db:"id" json:"id"`
	Subject           string             `db:"subject" json:"subject"`
	ClientID          string             `db:"client_id" json:"client_id"`
	AssignedToStaffID *string            `db:"assigned_to_staff_id" json:"assigned_to_staff_id,omitempty"`
	Status            ConversationStatus `db:"status" json:"status"`
	ResolutionStatus  *string            `db:"resolution_status" json:"resolution_status,omitempty"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `db:"updated_at" json:"updated_at"`
}

// ConversationSummary is a conversation row enriched for listings
type ConversationSummary struct {
	Conversation
	ClientEmail  string  `db:"client_email" json:"client_email"`
	ClientName   *string `db:"client_name" json:"client_name,omitempty"`
	StaffName    *string `db:"staff_name" json:"staff_name,omitempty"`
	MessageCount int     `db:"message_count" json:"message_count"`
}

// ConversationFilter narrows conversation listings
type ConversationFilter struct {
	Statuses  []ConversationStatus
	StaffID   string
	StartDate *time.Time
	EndDate   *time.Time
}

// ConversationDetail is a conversation with its messages
type ConversationDetail struct {
	Conversation ConversationSummary `json:"conversation"`
	Messages     []Email             `json:"messages"`
}
