package models

import "time"

// HealthResponse represents a basic health check response
// @Description Health check response
type HealthResponse struct {
	Status    string    `json:"status" example:"healthy"`                 // Health status
	Timestamp time.Time `json:"timestamp" example:"2023-01-01T00:00:00Z"` // Timestamp of the check
	Version   string    `json:"version" example:"1.0.0"`                  // Application version
}

// DBHealthResponse represents a database health check response
// @Description Database health check response
type DBHealthResponse struct {
	Status    string        `json:"status" example:"healthy"`                   // Health status
	Timestamp time.Time     `json:"timestamp" example:"2023-01-01T00:00:00Z"`   // Timestamp of the check
	Connected bool          `json:"connected" example:"true"`                   // Database connection status
	Latency   time.Duration `json:"latency" swaggertype:"string" example:"1ms"` // Database ping latency
	Error     string        `json:"error,omitempty" example:""`                 // Error message if any
}

// APIResponse is the envelope used by the staff API
// @Description Generic API response
type APIResponse struct {
	Success bool        `json:"success" example:"true"`
	Message string      `json:"message,omitempty" example:"ok"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty" example:""`
}

// ConversationUpdateRequest changes status, resolution or assignee of a conversation
// @Description Conversation update payload
type ConversationUpdateRequest struct {
	Status            *string `json:"status,omitempty" example:"closed"`
	ResolutionStatus  *string `json:"resolution_status,omitempty" example:"resolved"`
	AssignedToStaffID *string `json:"assigned_to_staff_id,omitempty"`
}

// ReplyRequest is a staff reply to the client of a conversation
// @Description Staff reply payload
type ReplyRequest struct {
	StaffID string `json:"staff_id" example:"3f0c..."`
	Body    string `json:"body" example:"Gentile cliente, ..."`
}

// ForwardRequest triggers a manual forward of a stored message
// @Description Manual forward payload
type ForwardRequest struct {
	Force   bool   `json:"force" example:"false"`
	StaffID string `json:"staff_id,omitempty"`
}

// CycleReport summarizes one processing cycle
type CycleReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Fetched    int       `json:"fetched"`
	Processed  int       `json:"processed"`
	Duplicates int       `json:"duplicates"`
	Failed     int       `json:"failed"`
}
