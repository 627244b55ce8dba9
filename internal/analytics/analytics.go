package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mailtriage/internal/database"
	"mailtriage/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType constants for tracking pipeline activity
const (
	EventCycle              = "cycle_completed"
	EventEmailIngested      = "email_ingested"
	EventAITriage           = "ai_triage"
	EventAITriageFailed     = "ai_triage_failed"
	EventFollowUpSent       = "follow_up_sent"
	EventFollowUpsExhausted = "follow_ups_exhausted"
	EventForwardSent        = "forward_sent"
	EventForwardError       = "forward_error"
	EventProcessingError    = "processing_error"
	EventStaffReply         = "staff_reply"
)

// Period constants for analytics queries
const (
	PeriodToday      = "today"
	PeriodYesterday  = "yesterday"
	PeriodLast7Days  = "last_7_days"
	PeriodLast30Days = "last_30_days"
)

// Service handles analytics tracking and retrieval. A nil *Service is valid
// and records nothing.
type Service struct {
	client *database.Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewService creates a new analytics service
func NewService(client *database.Client, logger zerolog.Logger) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("database client is required for analytics service")
	}

	return &Service{
		client: client,
		logger: logger.With().Str("component", "analytics").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// TrackEvent records an analytics event
func (s *Service) TrackEvent(ctx context.Context, eventType string, count int, metadata map[string]interface{}) error {
	if s == nil {
		return nil
	}

	var metadataJSON *string
	if metadata != nil {
		jsonBytes, err := json.Marshal(metadata)
		if err == nil {
			str := string(jsonBytes)
			metadataJSON = &str
		}
	}

	query := `INSERT INTO analytics_events (id, event_type, count, metadata, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.client.Exec(ctx, query, uuid.NewString(), eventType, count, metadataJSON, s.now()); err != nil {
		return fmt.Errorf("failed to track event: %w", err)
	}
	return nil
}

// Track records an event and only logs a failure
func (s *Service) Track(ctx context.Context, eventType string, metadata map[string]interface{}) {
	if err := s.TrackEvent(ctx, eventType, 1, metadata); err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("Failed to record analytics event")
	}
}

// TrackCycle records a finished processing cycle
func (s *Service) TrackCycle(ctx context.Context, report *models.CycleReport) {
	s.Track(ctx, EventCycle, map[string]interface{}{
		"fetched":     report.Fetched,
		"processed":   report.Processed,
		"duplicates":  report.Duplicates,
		"failed":      report.Failed,
		"duration_ms": report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	})
}

// TrackFollowUpsExhausted records a client that hit the retry limit
func (s *Service) TrackFollowUpsExhausted(ctx context.Context, clientEmail string, retries int) {
	s.Track(ctx, EventFollowUpsExhausted, map[string]interface{}{
		"client_email_hash": hashEmail(clientEmail),
		"retries":           retries,
	})
}

// Range returns the time window of a named period; unknown periods mean today
func Range(period string, now time.Time) (string, time.Time, time.Time) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch period {
	case PeriodYesterday:
		return period, today.AddDate(0, 0, -1), today
	case PeriodLast7Days:
		return period, now.AddDate(0, 0, -7), now
	case PeriodLast30Days:
		return period, now.AddDate(0, 0, -30), now
	default:
		return PeriodToday, today, now
	}
}

// GetSummary retrieves analytics summary for a time period
func (s *Service) GetSummary(ctx context.Context, period string) (*models.AnalyticsSummary, error) {
	period, startDate, endDate := Range(period, s.now())

	summary := &models.AnalyticsSummary{
		Period:    period,
		StartDate: startDate,
		EndDate:   endDate,
	}

	var totals []struct {
		EventType string `db:"event_type"`
		Total     int    `db:"total"`
	}
	query := `SELECT event_type, COALESCE(SUM(count), 0) AS total
		FROM analytics_events
		WHERE created_at >= ? AND created_at <= ?
		GROUP BY event_type`
	if err := s.client.Select(ctx, &totals, query, startDate, endDate); err != nil {
		return nil, fmt.Errorf("failed to get analytics summary: %w", err)
	}

	for _, row := range totals {
		switch row.EventType {
		case EventCycle:
			summary.Cycles = row.Total
		case EventEmailIngested:
			summary.EmailsIngested = row.Total
		case EventAITriage:
			summary.AITriageCalls = row.Total
		case EventAITriageFailed:
			summary.AITriageFailures = row.Total
		case EventFollowUpSent:
			summary.FollowUpsSent = row.Total
		case EventFollowUpsExhausted:
			summary.FollowUpsExhausted = row.Total
		case EventForwardSent:
			summary.ForwardsSent = row.Total
		case EventForwardError:
			summary.ForwardErrors = row.Total
		case EventProcessingError:
			summary.ProcessingErrors = row.Total
		case EventStaffReply:
			summary.StaffReplies = row.Total
		}
	}

	openQuery := `SELECT COUNT(*) FROM conversations WHERE status IN (?, ?)`
	err := s.client.Get(ctx, &summary.OpenConversations, openQuery, models.ConversationOpen, models.ConversationAwaitingClient)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to count open conversations")
	}

	return summary, nil
}

// hashEmail creates a simple hash of an email for privacy
func hashEmail(email string) string {
	if len(email) < 3 {
		return "***"
	}
	return email[:2] + "***" + email[len(email)-3:]
}
