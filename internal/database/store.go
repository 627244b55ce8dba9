package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store persists emails, clients, conversations, staff and attachments
type Store struct {
	client *Client
	now    func() time.Time
}

// NewStore creates a new store on top of a database client
func NewStore(client *Client) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("database client is required for store")
	}
	return &Store{client: client, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Client returns the underlying database client
func (s *Store) Client() *Client {
	return s.client
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func newID() string {
	return uuid.NewString()
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// isUniqueViolation matches the duplicate-key errors of all supported drivers
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
