package database

import (
	"context"
	"fmt"
	"strings"
)

// Dialect holds the column types that differ between drivers
type Dialect struct {
	Driver    string
	Text      string
	Timestamp string
	JSON      string
	// IndexIfNotExists is false for MySQL, which has no CREATE INDEX IF NOT EXISTS
	IndexIfNotExists bool
}

func dialectFor(driver string) Dialect {
	switch driver {
	case DriverMySQL:
		return Dialect{Driver: driver, Text: "LONGTEXT", Timestamp: "DATETIME(6)", JSON: "JSON"}
	case DriverPostgres:
		return Dialect{Driver: driver, Text: "TEXT", Timestamp: "TIMESTAMP", JSON: "JSONB", IndexIfNotExists: true}
	default:
		return Dialect{Driver: driver, Text: "TEXT", Timestamp: "TIMESTAMP", JSON: "TEXT", IndexIfNotExists: true}
	}
}

// Expand replaces {{text}}, {{ts}} and {{json}} placeholders in a DDL statement
func (d Dialect) Expand(ddl string) string {
	return strings.NewReplacer(
		"{{text}}", d.Text,
		"{{ts}}", d.Timestamp,
		"{{json}}", d.JSON,
	).Replace(ddl)
}

var schemaTables = []string{
	`CREATE TABLE IF NOT EXISTS staff (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		responsibilities {{text}} NOT NULL,
		skills {{text}},
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS clients (
		id VARCHAR(36) PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		name VARCHAR(255),
		phone_number VARCHAR(64),
		city VARCHAR(255),
		last_email_id VARCHAR(36),
		follow_up_email_sent BOOLEAN NOT NULL DEFAULT FALSE,
		follow_up_sent_at {{ts}} NULL,
		follow_up_message_id VARCHAR(512),
		follow_up_retries INT NOT NULL DEFAULT 0,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id VARCHAR(36) PRIMARY KEY,
		subject VARCHAR(998) NOT NULL,
		client_id VARCHAR(36) NOT NULL,
		assigned_to_staff_id VARCHAR(36),
		status VARCHAR(32) NOT NULL,
		resolution_status VARCHAR(32),
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS emails (
		id VARCHAR(36) PRIMARY KEY,
		conversation_id VARCHAR(36),
		reference VARCHAR(512) UNIQUE,
		in_reply_to VARCHAR(512),
		thread_references {{text}},
		sender VARCHAR(255) NOT NULL,
		sender_name VARCHAR(255),
		sender_type VARCHAR(16) NOT NULL,
		subject VARCHAR(998) NOT NULL,
		body_text {{text}} NOT NULL,
		body_html {{text}},
		assigned_to_staff_id VARCHAR(36),
		ai_confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		ai_reasoning {{text}},
		is_urgent BOOLEAN NOT NULL DEFAULT FALSE,
		status VARCHAR(32) NOT NULL,
		provider_message_id VARCHAR(255),
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS email_attachments (
		id VARCHAR(36) PRIMARY KEY,
		email_id VARCHAR(36) NOT NULL,
		filename VARCHAR(512) NOT NULL,
		mime_type VARCHAR(255) NOT NULL,
		size BIGINT NOT NULL,
		blob_ref VARCHAR(128) NOT NULL,
		created_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS analytics_events (
		id VARCHAR(36) PRIMARY KEY,
		event_type VARCHAR(50) NOT NULL,
		count INT NOT NULL DEFAULT 1,
		metadata {{json}},
		created_at {{ts}} NOT NULL
	)`,
}

var schemaIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_emails_conversation ON emails(conversation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_emails_status ON emails(status)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_client ON conversations(client_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_clients_follow_up ON clients(follow_up_message_id)`,
	`CREATE INDEX IF NOT EXISTS idx_attachments_email ON email_attachments(email_id)`,
	`CREATE INDEX IF NOT EXISTS idx_analytics_created_at ON analytics_events(created_at)`,
}

// CreateTables creates all tables if they do not exist yet
func CreateTables(ctx context.Context, c *Client) error {
	dialect := c.Dialect()

	for _, ddl := range schemaTables {
		if _, err := c.Exec(ctx, dialect.Expand(ddl)); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if !dialect.IndexIfNotExists {
		return nil
	}
	for _, ddl := range schemaIndexes {
		if _, err := c.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
