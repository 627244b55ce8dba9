package triage

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"mailtriage/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fakeCompleter struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

var roster = []models.StaffMember{
	{ID: "staff-1", Name: "Anna Bianchi", Email: "anna@studio.it", Responsibilities: "Paghe e contributi", Skills: "paghe, inps"},
	{ID: "staff-2", Name: "Luca Verdi", Email: "luca@studio.it", Responsibilities: "Dichiarazioni dei redditi"},
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantParsed bool
		wantKey    string
	}{
		{"bare json", `{"a":1}`, true, "a"},
		{"fenced json", "```json\n{\"a\":1}\n```", true, "a"},
		{"fence without language", "```\n{\"a\":1}\n```", true, "a"},
		{"prose around object", "Here you go: {\"a\":1} hope it helps", true, "a"},
		{"empty", "   ", false, ""},
		{"prose only", "I cannot help with that", false, ""},
		{"truncated object", `{"a":`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			switch d := Decode(tt.input).(type) {
			case Parsed:
				require.True(t, tt.wantParsed, "unexpected parse")
				assert.True(t, d.JSON.Get(tt.wantKey).Exists())
			case Malformed:
				require.False(t, tt.wantParsed, "unexpected malformed: %s", d.Reason)
				assert.NotEmpty(t, d.Reason)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name           string
		response       string
		wantStaff      *string
		wantConfidence float64
		wantUrgent     bool
	}{
		{
			name:           "valid assignment",
			response:       `{"assigned_to_staff_id":"staff-1","ai_confidence_score":0.9,"ai_reasoning":"payroll","is_urgent":true}`,
			wantStaff:      strPtr("staff-1"),
			wantConfidence: 0.9,
			wantUrgent:     true,
		},
		{
			name:           "unknown staff is dropped",
			response:       `{"assigned_to_staff_id":"staff-99","ai_confidence_score":0.8}`,
			wantConfidence: 0.8,
		},
		{
			name:           "confidence as numeric string",
			response:       "```json\n{\"assigned_to_staff_id\":\"staff-2\",\"ai_confidence_score\":\"0.75\"}\n```",
			wantStaff:      strPtr("staff-2"),
			wantConfidence: 0.75,
		},
		{
			name:           "non numeric confidence is zero",
			response:       `{"assigned_to_staff_id":null,"ai_confidence_score":"high","is_urgent":"yes"}`,
			wantConfidence: 0,
		},
		{
			name:           "confidence above one is clamped",
			response:       `{"ai_confidence_score":7}`,
			wantConfidence: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(&fakeCompleter{response: tt.response}, 4000, zerolog.Nop())

			result, err := client.Classify(context.Background(), roster, "mario@example.com", "Busta paga", "body")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStaff, result.AssignedStaffID)
			assert.InDelta(t, tt.wantConfidence, result.Confidence, 1e-9)
			assert.Equal(t, tt.wantUrgent, result.IsUrgent)
		})
	}
}

func TestClassify_Failures(t *testing.T) {
	tests := []struct {
		name      string
		completer *fakeCompleter
	}{
		{"network error", &fakeCompleter{err: errors.New("dial tcp: timeout")}},
		{"malformed json", &fakeCompleter{response: "sorry, no idea"}},
		{"array instead of object", &fakeCompleter{response: `["staff-1"]`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(tt.completer, 4000, zerolog.Nop())

			result, err := client.Classify(context.Background(), roster, "a@example.com", "s", "b")
			assert.Nil(t, result)
			assert.True(t, errors.Is(err, ErrAnalysisFailed))

			var analysisErr *AnalysisError
			assert.True(t, errors.As(err, &analysisErr))
		})
	}
}

func TestClassify_PromptContents(t *testing.T) {
	completer := &fakeCompleter{response: `{}`}
	client := NewClient(completer, 10, zerolog.Nop())

	_, err := client.Classify(context.Background(), roster, "mario@example.com", "Oggetto", strings.Repeat("è", 50))
	require.NoError(t, err)
	require.Len(t, completer.prompts, 1)

	prompt := completer.prompts[0]
	assert.Contains(t, prompt, "ID: staff-1, Name: Anna Bianchi, Responsibilities: Paghe e contributi, Skills: paghe, inps, Email: anna@studio.it")
	assert.Contains(t, prompt, "ID: staff-2")
	assert.Contains(t, prompt, strings.Repeat("è", 10))
	assert.NotContains(t, prompt, strings.Repeat("è", 11))
}

func TestClassify_ContactDetails(t *testing.T) {
	completer := &fakeCompleter{response: `{"client_name":"Mario Rossi","client_phone_number":"  ","client_city":"null"}`}
	client := NewClient(completer, 4000, zerolog.Nop())

	result, err := client.Classify(context.Background(), roster, "a@example.com", "s", "b")
	require.NoError(t, err)
	require.NotNil(t, result.Contact.Name)
	assert.Equal(t, "Mario Rossi", *result.Contact.Name)
	assert.Nil(t, result.Contact.PhoneNumber)
	assert.Nil(t, result.Contact.City)
}

func TestContactPhoneFieldNames(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"current name", `{"client_name":"Mario Rossi","client_phone_number":"+39 333 1234567","client_city":"Milano"}`, "+39 333 1234567"},
		{"legacy name", `{"client_phone":"02 123456","client_city":"Milano"}`, "02 123456"},
		{"current name wins", `{"client_phone_number":"333 1","client_phone":"333 2"}`, "333 1"},
		{"blank current falls back", `{"client_phone_number":" ","client_phone":"333 2"}`, "333 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(&fakeCompleter{response: tt.response}, 4000, zerolog.Nop())

			result, err := client.Classify(context.Background(), roster, "a@example.com", "s", "b")
			require.NoError(t, err)
			require.NotNil(t, result.Contact.PhoneNumber)
			assert.Equal(t, tt.want, *result.Contact.PhoneNumber)

			info := client.ExtractContactInfo(context.Background(), "a@example.com", "s", "b")
			require.NotNil(t, info.PhoneNumber)
			assert.Equal(t, tt.want, *info.PhoneNumber)
		})
	}
}

func TestExtractContactInfo_NeverFails(t *testing.T) {
	for _, completer := range []*fakeCompleter{
		{err: errors.New("boom")},
		{response: "not json"},
		{response: `[1,2]`},
	} {
		client := NewClient(completer, 4000, zerolog.Nop())
		info := client.ExtractContactInfo(context.Background(), "a@example.com", "s", "b")
		assert.True(t, info.IsEmpty())
	}

	client := NewClient(&fakeCompleter{response: `{"client_phone_number":"+39 333 1234567","client_city":"Torino"}`}, 4000, zerolog.Nop())
	info := client.ExtractContactInfo(context.Background(), "a@example.com", "s", "b")
	assert.Nil(t, info.Name)
	assert.Equal(t, "+39 333 1234567", *info.PhoneNumber)
	assert.Equal(t, "Torino", *info.City)
}

func TestExtractSkills(t *testing.T) {
	client := NewClient(&fakeCompleter{response: "```json\n[\"paghe\", \"  \", \"730\"]\n```"}, 4000, zerolog.Nop())
	assert.Equal(t, []string{"paghe", "730"}, client.ExtractSkills(context.Background(), "Gestisce paghe e 730"))

	assert.Nil(t, client.ExtractSkills(context.Background(), "   "))

	failing := NewClient(&fakeCompleter{err: errors.New("boom")}, 4000, zerolog.Nop())
	assert.Nil(t, failing.ExtractSkills(context.Background(), "x"))
}

// Any response either decodes to a roster member or to no assignment, and the
// confidence always lands in [0, 1].
func TestClassify_OutputBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.SampledFrom([]string{"staff-1", "staff-2", "staff-3", "", "null"}).Draw(t, "id")
		confidence := rapid.OneOf(
			rapid.Map(rapid.Float64Range(-5, 5), func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }),
			rapid.StringMatching(`"[0-9a-z.\-]{0,6}"`),
		).Draw(t, "confidence")

		response := `{"assigned_to_staff_id":"` + id + `","ai_confidence_score":` + confidence + `}`
		client := NewClient(&fakeCompleter{response: response}, 4000, zerolog.Nop())

		result, err := client.Classify(context.Background(), roster, "a@example.com", "s", "b")
		if err != nil {
			return
		}
		if result.AssignedStaffID != nil {
			assert.Contains(t, []string{"staff-1", "staff-2"}, *result.AssignedStaffID)
		}
		assert.GreaterOrEqual(t, result.Confidence, 0.0)
		assert.LessOrEqual(t, result.Confidence, 1.0)
	})
}

func strPtr(s string) *string { return &s }
