package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"mailtriage/internal/database"
	"mailtriage/internal/emails"
	"mailtriage/internal/mailbox"
	"mailtriage/internal/models"
	"mailtriage/internal/pipeline"
	"mailtriage/internal/staff"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newCreateTablesCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "create-tables",
		Short: "Create missing tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := e.open(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Tables ready")
			return nil
		},
	}
}

func newRunOnceCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Fetch unseen mail and process it once",
		Long: `Run a single processing cycle against the configured IMAP mailbox.

The cycle takes the same lock as the server scheduler, so it is refused
while another cycle is running.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			report, err := a.Scheduler.RunNow(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

func newCheckIMAPCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "check-imap",
		Short: "Log in to the mailbox and print message counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !e.cfg.HasIMAP() {
				return pipeline.ErrNoMailbox
			}
			status, err := mailbox.NewReader(e.cfg, e.logger).Check(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		},
	}
}

func newImportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.eml|directory>",
		Short: "Run EML files through the pipeline",
		Long: `Parse one EML file or every .eml file under a directory and process each
message as if it had just arrived. Messages already stored are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			messages, failures, err := loadMessages(args[0])
			if err != nil {
				return err
			}
			for path, perr := range failures {
				e.logger.Warn().Err(perr).Str("path", path).Msg("Skipping unparseable file")
			}

			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}

			counts := make(map[pipeline.Outcome]int)
			failed := 0
			for _, raw := range messages {
				outcome, err := a.Processor.Process(cmd.Context(), raw, pipeline.SourceImport)
				if err != nil {
					failed++
					continue
				}
				counts[outcome]++
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Parsed %d messages, %d unreadable files\n", len(messages), len(failures))
			outcomes := make([]string, 0, len(counts))
			for o := range counts {
				outcomes = append(outcomes, string(o))
			}
			sort.Strings(outcomes)
			for _, o := range outcomes {
				fmt.Fprintf(out, "  %-16s %d\n", o, counts[pipeline.Outcome(o)])
			}
			if failed > 0 {
				fmt.Fprintf(out, "  %-16s %d\n", "failed", failed)
			}
			return nil
		},
	}
}

// loadMessages parses a single EML file or a directory tree
func loadMessages(path string) ([]*models.RawMessage, map[string]error, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to access path: %w", err)
	}
	if info.IsDir() {
		return emails.ParseDirectory(path)
	}
	msg, err := emails.ParseEMLFile(path)
	if err != nil {
		return nil, nil, err
	}
	return []*models.RawMessage{msg}, map[string]error{}, nil
}

func newSeedStaffCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-staff <staff.yaml>",
		Short: "Create staff members from a YAML roster",
		Long: `Create every staff member listed in a YAML file:

  staff:
    - name: Anna Bianchi
      email: anna@studio.it
      responsibilities: Paghe e contributi
      skills: [paghe, inps]

Members whose email already exists are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roster, err := loadRoster(args[0])
			if err != nil {
				return err
			}

			a, err := e.open(cmd.Context())
			if err != nil {
				return err
			}

			created, skipped := 0, 0
			for _, req := range roster {
				_, err := a.Staff.Create(cmd.Context(), req)
				switch {
				case errors.Is(err, database.ErrDuplicate):
					skipped++
				case err != nil:
					return fmt.Errorf("staff member %q: %w", req.Email, err)
				default:
					created++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d staff members, %d already present\n", created, skipped)
			return nil
		},
	}
}

type rosterFile struct {
	Staff []models.StaffRequest `yaml:"staff"`
}

// loadRoster reads a roster file; it fails before any write on invalid entries
func loadRoster(path string) ([]models.StaffRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}

	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}
	if len(file.Staff) == 0 {
		return nil, fmt.Errorf("roster %s lists no staff: %w", path, database.ErrValidation)
	}
	for i, req := range file.Staff {
		if err := staff.Validate(req); err != nil {
			return nil, fmt.Errorf("roster entry %d: %w", i+1, err)
		}
	}
	return file.Staff, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
