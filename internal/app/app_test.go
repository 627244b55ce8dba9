package app

import (
	"context"
	"testing"

	"mailtriage/internal/config"
	"mailtriage/internal/database"
	"mailtriage/internal/pipeline"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DBTimeout:             5,
		OpenAIKey:             "sk-test",
		OpenAIModel:           "gpt-4o-mini",
		OpenAITimeout:         5,
		SenderEmail:           "segreteria@studio.it",
		MaxFollowUps:          2,
		AIBodyMaxChars:        4000,
		AttachmentStoragePath: t.TempDir(),
		PollIntervalMinutes:   5,
	}
}

func openDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestWire_WithoutIMAP(t *testing.T) {
	a, err := Wire(context.Background(), testConfig(t), openDB(t), zerolog.Nop())
	require.NoError(t, err)

	assert.Nil(t, a.Mailbox)
	assert.NotNil(t, a.Analytics)
	assert.NotNil(t, a.Staff)

	_, err = a.Scheduler.RunNow(context.Background())
	assert.ErrorIs(t, err, pipeline.ErrNoMailbox)
}

func TestWire_WithIMAP(t *testing.T) {
	cfg := testConfig(t)
	cfg.IMAPHost = "imap.example.com"
	cfg.IMAPUsername = "inbox@studio.it"

	a, err := Wire(context.Background(), cfg, openDB(t), zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, a.Mailbox)
}

func TestWire_RequiresOpenAI(t *testing.T) {
	cfg := testConfig(t)
	cfg.OpenAIKey = ""

	_, err := Wire(context.Background(), cfg, openDB(t), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OpenAI")
}

func TestNew_RequiresDatabaseURL(t *testing.T) {
	_, err := New(context.Background(), testConfig(t), zerolog.Nop())
	assert.Error(t, err)
}
