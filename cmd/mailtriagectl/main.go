// Command mailtriagectl runs maintenance tasks against the mailtriage database
// and mailbox without starting the HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mailtriage/internal/app"
	"mailtriage/internal/config"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// env is filled by the root command before any subcommand runs
type env struct {
	cfg    *config.Config
	logger zerolog.Logger
	app    *app.App
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&env{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "mailtriagectl",
		Short:         "Maintenance commands for the mail triage service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if e.cfg == nil {
				e.cfg = config.Load()
				e.logger = e.cfg.SetupLogger()
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.app != nil {
				_ = e.app.Close()
				e.app = nil
			}
		},
	}

	root.AddCommand(
		newCreateTablesCmd(e),
		newRunOnceCmd(e),
		newCheckIMAPCmd(e),
		newImportCmd(e),
		newSeedStaffCmd(e),
	)
	return root
}

// open builds the application stack once per invocation
func (e *env) open(ctx context.Context) (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}
	a, err := app.New(ctx, e.cfg, e.logger)
	if err != nil {
		return nil, err
	}
	e.app = a
	return a, nil
}
