package models

import "time"

// AnalyticsEvent represents a tracked event
type AnalyticsEvent struct {
	ID        string    `db:"id" json:"id"`
	EventType string    `db:"event_type" json:"event_type"` // email_ingested, ai_triage, follow_up_sent, forward_sent, ...
	Count     int       `db:"count" json:"count"`
	Metadata  *string   `db:"metadata" json:"metadata,omitempty"` // JSON metadata
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AnalyticsSummary represents aggregated pipeline activity for a time period
type AnalyticsSummary struct {
	Period             string    `json:"period"` // "today", "yesterday", "last_7_days", "last_30_days"
	StartDate          time.Time `json:"start_date"`
	EndDate            time.Time `json:"end_date"`
	Cycles             int       `json:"cycles"`               // Completed processing cycles
	EmailsIngested     int       `json:"emails_ingested"`      // Inbound client messages stored
	AITriageCalls      int       `json:"ai_triage_calls"`      // Classification calls
	AITriageFailures   int       `json:"ai_triage_failures"`   // Messages sent to manual review
	FollowUpsSent      int       `json:"follow_ups_sent"`      // Information requests sent to clients
	FollowUpsExhausted int       `json:"follow_ups_exhausted"` // Clients that hit the retry limit
	ForwardsSent       int       `json:"forwards_sent"`        // Messages forwarded to staff
	ForwardErrors      int       `json:"forward_errors"`       // Failed forwards
	ProcessingErrors   int       `json:"processing_errors"`    // Messages that failed unexpectedly
	StaffReplies       int       `json:"staff_replies"`        // Replies sent by staff
	OpenConversations  int       `json:"open_conversations"`   // Current open + awaiting conversations
}

// AnalyticsResponse represents the API response for analytics
// @Description Analytics response payload
type AnalyticsResponse struct {
	Success bool              `json:"success" example:"true"`
	Summary *AnalyticsSummary `json:"summary,omitempty"`
	Error   string            `json:"error,omitempty" example:""`
}
