package models

// TriageResult is the validated outcome of the classification call
type TriageResult struct {
	AssignedStaffID *string     `json:"assigned_staff_id"`
	Confidence      float64     `json:"confidence"`
	Reasoning       string      `json:"reasoning"`
	IsUrgent        bool        `json:"is_urgent"`
	Contact         ContactInfo `json:"contact"`
}
