package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

// Client wraps the connection pool; every statement is rebound for the
// active driver and bounded by the configured timeout.
type Client struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewClient creates a database client with a per-statement timeout
func NewClient(db *sqlx.DB, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{db: db, timeout: timeout}
}

// GetDB returns the underlying database connection
func (c *Client) GetDB() *sqlx.DB {
	return c.db
}

// Dialect returns the schema dialect of the active driver
func (c *Client) Dialect() Dialect {
	return dialectFor(c.db.DriverName())
}

// Exec executes a write query
func (c *Client) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.db.ExecContext(ctx, c.db.Rebind(query), args...)
}

// Select scans all rows of a query into dest
func (c *Client) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.db.SelectContext(ctx, dest, c.db.Rebind(query), args...)
}

// Get scans a single row into dest
func (c *Client) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.db.GetContext(ctx, dest, c.db.Rebind(query), args...)
}

// In expands slice arguments of an IN (?) clause
func (c *Client) In(query string, args ...interface{}) (string, []interface{}, error) {
	return sqlx.In(query, args...)
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.db.PingContext(ctx)
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}
