package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"mailtriage/internal/app"
	"mailtriage/internal/config"
	"mailtriage/internal/scheduler"
	"mailtriage/internal/server"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger
	logger := cfg.SetupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database and the processing stack
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer func() { _ = a.Close() }()
	logger.Info().Msg("Database connection established successfully")

	if a.Mailbox != nil {
		logger.Info().Str("schedule", scheduler.Describe(cfg.PollInterval())).Msg("Mailbox polling enabled")
		go a.Scheduler.Start(ctx)
	}

	// Create and initialize server
	srv := server.New(a, logger)
	srv.Initialize()

	// Start server
	if err := srv.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server failed to start")
	}
}
