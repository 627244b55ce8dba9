package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"mailtriage/internal/config"
	"mailtriage/internal/database"
	"mailtriage/internal/pipeline"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEML = "From: Mario Rossi <mario@example.com>\r\n" +
	"To: segreteria@studio.it\r\n" +
	"Subject: Dichiarazione\r\n" +
	"Message-ID: <m1@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Buongiorno\r\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	return &env{
		cfg: &config.Config{
			DatabaseURL:           "sqlite://" + filepath.Join(dir, "mailtriage.db"),
			DBTimeout:             5,
			OpenAIKey:             "sk-test",
			SenderEmail:           "segreteria@studio.it",
			AttachmentStoragePath: filepath.Join(dir, "attachments"),
		},
		logger: zerolog.Nop(),
	}
}

func run(t *testing.T, e *env, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(e)
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLoadRoster(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		want    int
		wantErr string
	}{
		{
			name: "valid",
			content: `staff:
  - name: Anna Bianchi
    email: anna@studio.it
    responsibilities: Paghe
    skills: [paghe, inps]
  - name: Luca Verdi
    email: luca@studio.it
    responsibilities: Contenzioso
`,
			want: 2,
		},
		{name: "empty", content: "staff: []\n", wantErr: "lists no staff"},
		{name: "malformed", content: "staff: [", wantErr: "failed to parse roster"},
		{
			name: "invalid entry",
			content: `staff:
  - name: Anna
    email: not-an-email
    responsibilities: Paghe
`,
			wantErr: "roster entry 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.name+".yaml", tt.content)
			roster, err := loadRoster(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, roster, tt.want)
			assert.Equal(t, []string{"paghe", "inps"}, roster[0].Skills)
		})
	}
}

func TestLoadMessages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.eml", sampleEML)
	writeFile(t, dir, "nested/b.EML", sampleEML)
	writeFile(t, dir, "notes.txt", "ignored")

	msgs, failures, err := loadMessages(dir)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
	assert.Empty(t, failures)

	msgs, _, err = loadMessages(filepath.Join(dir, "a.eml"))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Dichiarazione", msgs[0].Subject)

	_, _, err = loadMessages(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestCheckIMAP_NotConfigured(t *testing.T) {
	_, err := run(t, testEnv(t), "check-imap")
	assert.ErrorIs(t, err, pipeline.ErrNoMailbox)
}

func TestRunOnce_NoMailbox(t *testing.T) {
	_, err := run(t, testEnv(t), "run-once")
	assert.ErrorIs(t, err, pipeline.ErrNoMailbox)
}

func TestCreateTablesAndSeedStaff(t *testing.T) {
	e := testEnv(t)
	out, err := run(t, e, "create-tables")
	require.NoError(t, err)
	assert.Contains(t, out, "Tables ready")

	roster := writeFile(t, t.TempDir(), "staff.yaml", `staff:
  - name: Anna Bianchi
    email: anna@studio.it
    responsibilities: Paghe
    skills: [paghe]
`)

	out, err = run(t, e, "seed-staff", roster)
	require.NoError(t, err)
	assert.Contains(t, out, "Created 1 staff members, 0 already present")

	out, err = run(t, e, "seed-staff", roster)
	require.NoError(t, err)
	assert.Contains(t, out, "Created 0 staff members, 1 already present")
}

func TestSeedStaff_RejectsInvalidRosterBeforeOpening(t *testing.T) {
	e := testEnv(t)
	e.cfg.DatabaseURL = ""
	roster := writeFile(t, t.TempDir(), "staff.yaml", "staff: []\n")

	_, err := run(t, e, "seed-staff", roster)
	assert.ErrorIs(t, err, database.ErrValidation)
}
