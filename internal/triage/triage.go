// Package triage asks the language model which staff member should handle a
// message and which client contact details it contains.
package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mailtriage/internal/models"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// ErrAnalysisFailed marks any failure of the classification call
var ErrAnalysisFailed = errors.New("AI analysis failed")

// AnalysisError describes why a classification could not be used
type AnalysisError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrAnalysisFailed, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrAnalysisFailed, e.Reason)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrAnalysisFailed) hold for every AnalysisError
func (e *AnalysisError) Is(target error) bool { return target == ErrAnalysisFailed }

// Completer sends a prompt to a chat model and returns its text
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Client classifies messages against the staff roster
type Client struct {
	llm          Completer
	maxBodyChars int
	logger       zerolog.Logger
}

// NewClient creates a triage client; message bodies are cut to maxBodyChars runes
func NewClient(llm Completer, maxBodyChars int, logger zerolog.Logger) *Client {
	if maxBodyChars <= 0 {
		maxBodyChars = 4000
	}
	return &Client{
		llm:          llm,
		maxBodyChars: maxBodyChars,
		logger:       logger.With().Str("component", "triage").Logger(),
	}
}

// Classify picks a staff member for the message. The returned assignment is
// always a member of roster or nil.
func (c *Client) Classify(ctx context.Context, roster []models.StaffMember, sender, subject, body string) (*models.TriageResult, error) {
	prompt := buildTriagePrompt(roster, sender, subject, truncate(body, c.maxBodyChars))

	text, err := c.llm.Complete(ctx, triageSystemPrompt, prompt)
	if err != nil {
		return nil, &AnalysisError{Reason: "completion request failed", Err: err}
	}

	var doc gjson.Result
	switch d := Decode(text).(type) {
	case Parsed:
		doc = d.JSON
	case Malformed:
		c.logger.Warn().Str("reason", d.Reason).Str("raw", truncate(d.Raw, 500)).Msg("Malformed triage response")
		return nil, &AnalysisError{Reason: d.Reason, Raw: d.Raw}
	}
	if !doc.IsObject() {
		return nil, &AnalysisError{Reason: "response is not a JSON object", Raw: text}
	}

	result := &models.TriageResult{
		Confidence: coerceConfidence(doc.Get("ai_confidence_score")),
		IsUrgent:   coerceBool(doc.Get("is_urgent")),
		Contact:    contactFrom(doc),
	}
	if reasoning := coerceString(doc.Get("ai_reasoning")); reasoning != nil {
		result.Reasoning = *reasoning
	}

	if id := coerceString(doc.Get("assigned_to_staff_id")); id != nil {
		for _, member := range roster {
			if member.ID == *id {
				assigned := member.ID
				result.AssignedStaffID = &assigned
				break
			}
		}
		if result.AssignedStaffID == nil {
			c.logger.Warn().Str("staff_id", *id).Msg("Model assigned an unknown staff member, ignoring")
		}
	}

	return result, nil
}

// ExtractContactInfo looks for the client's name, phone and city in a reply.
// Failures degrade to an empty result.
func (c *Client) ExtractContactInfo(ctx context.Context, sender, subject, body string) models.ContactInfo {
	prompt := fmt.Sprintf(contactPromptTemplate, sender, subject, truncate(body, c.maxBodyChars))

	text, err := c.llm.Complete(ctx, contactSystemPrompt, prompt)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Contact extraction failed")
		return models.ContactInfo{}
	}

	switch d := Decode(text).(type) {
	case Parsed:
		if !d.JSON.IsObject() {
			return models.ContactInfo{}
		}
		return contactFrom(d.JSON)
	case Malformed:
		c.logger.Warn().Str("reason", d.Reason).Msg("Malformed contact extraction response")
	}
	return models.ContactInfo{}
}

// ExtractSkills turns a free-text description of responsibilities into skill
// tags. Failures degrade to an empty list.
func (c *Client) ExtractSkills(ctx context.Context, description string) []string {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil
	}

	text, err := c.llm.Complete(ctx, skillsSystemPrompt, fmt.Sprintf(skillsPromptTemplate, description))
	if err != nil {
		c.logger.Warn().Err(err).Msg("Skill extraction failed")
		return nil
	}

	d, ok := Decode(text).(Parsed)
	if !ok || !d.JSON.IsArray() {
		return nil
	}

	var skills []string
	for _, item := range d.JSON.Array() {
		if s := coerceString(item); s != nil {
			skills = append(skills, *s)
		}
	}
	return skills
}

// contactFrom reads the contact fields; client_phone is accepted for older prompts
func contactFrom(doc gjson.Result) models.ContactInfo {
	phone := coerceString(doc.Get("client_phone_number"))
	if phone == nil {
		phone = coerceString(doc.Get("client_phone"))
	}
	return models.ContactInfo{
		Name:        coerceString(doc.Get("client_name")),
		PhoneNumber: phone,
		City:        coerceString(doc.Get("client_city")),
	}
}

func truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}
