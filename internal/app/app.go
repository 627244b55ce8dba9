// Package app assembles the processing stack from configuration. The HTTP
// server and the command line tool share it.
package app

import (
	"context"
	"fmt"
	"time"

	"mailtriage/internal/analytics"
	"mailtriage/internal/cache"
	"mailtriage/internal/clients"
	"mailtriage/internal/config"
	"mailtriage/internal/conversations"
	"mailtriage/internal/database"
	"mailtriage/internal/dispatch"
	"mailtriage/internal/email"
	"mailtriage/internal/followup"
	"mailtriage/internal/mailbox"
	"mailtriage/internal/openai"
	"mailtriage/internal/pipeline"
	"mailtriage/internal/scheduler"
	"mailtriage/internal/staff"
	"mailtriage/internal/storage"
	"mailtriage/internal/triage"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// App holds every long-lived component
type App struct {
	Config    *config.Config
	DB        *sqlx.DB
	Store     *database.Store
	Blobs     *storage.BlobStore
	Staff     *staff.Directory
	Resolver  *conversations.Resolver
	Analytics *analytics.Service
	Mailbox   *mailbox.Reader // nil without IMAP settings
	Processor *pipeline.Processor
	Scheduler *scheduler.Scheduler
}

// New connects to the database, creates missing tables and wires the
// pipeline. The caller owns Close.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	a, err := Wire(ctx, cfg, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// Wire builds the stack on an open connection
func Wire(ctx context.Context, cfg *config.Config, db *sqlx.DB, logger zerolog.Logger) (*App, error) {
	client := database.NewClient(db, time.Duration(cfg.DBTimeout)*time.Second)
	if err := database.CreateTables(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	store, err := database.NewStore(client)
	if err != nil {
		return nil, err
	}

	blobs, err := storage.NewBlobStore(cfg.AttachmentStoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open attachment storage: %w", err)
	}

	llm, err := openai.NewClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}
	triager := triage.NewClient(llm, cfg.AIBodyMaxChars, logger)

	stats, err := analytics.NewService(client, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Analytics disabled")
		stats = nil
	}

	sender := email.NewEmailService(cfg.SendGridAPIKey, cfg.SenderEmail, cfg.SenderName,
		time.Duration(cfg.SendGridTimeout)*time.Second)
	registry := clients.NewRegistry(store, logger)
	resolver := conversations.NewResolver(store, logger)
	followUps := followup.NewController(store, registry, resolver, sender, stats, followup.Options{
		MaxFollowUps: cfg.MaxFollowUps,
		SenderEmail:  cfg.SenderEmail,
		OfficeName:   cfg.OfficeName,
	}, logger)
	forwarder := dispatch.NewForwarder(store, blobs, sender, resolver, stats, cfg.AppBaseURL, logger)

	deps := pipeline.Deps{
		Store:       store,
		Triage:      triager,
		Registry:    registry,
		Resolver:    resolver,
		FollowUps:   followUps,
		Forwarder:   forwarder,
		Sender:      sender,
		Blobs:       blobs,
		Analytics:   stats,
		Seen:        cache.New(),
		DedupTTL:    time.Duration(cfg.DedupTTLMinutes) * time.Minute,
		SenderEmail: cfg.SenderEmail,
	}

	a := &App{
		Config:    cfg,
		DB:        db,
		Store:     store,
		Blobs:     blobs,
		Staff:     staff.NewDirectory(store, triager, logger),
		Resolver:  resolver,
		Analytics: stats,
	}
	if cfg.HasIMAP() {
		a.Mailbox = mailbox.NewReader(cfg, logger)
		deps.Mailbox = a.Mailbox
	} else {
		logger.Warn().Msg("IMAP not configured, only the webhook will receive mail")
	}

	a.Processor = pipeline.New(deps, logger)
	a.Scheduler = scheduler.New(a.Processor, scheduler.Options{
		Interval:   cfg.PollInterval(),
		RunOnStart: cfg.RunOnStart,
		LockFile:   cfg.LockFile,
	}, logger)
	return a, nil
}

// Close releases the database connection
func (a *App) Close() error {
	return a.DB.Close()
}
