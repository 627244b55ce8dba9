package clients

import (
	"strings"
	"time"

	"mailtriage/internal/models"
)

// Field is a client attribute required for completeness
type Field string

const (
	FieldFullName Field = "full_name"
	FieldPhone    Field = "phone_number"
	FieldCity     Field = "city"
)

// NormalizeEmail lowercases and trims an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsFullName reports whether a name has at least two words
func IsFullName(name *string) bool {
	if name == nil {
		return false
	}
	return strings.Contains(strings.TrimSpace(*name), " ")
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// MissingFields lists the attributes that keep a client incomplete
func MissingFields(c *models.Client) []Field {
	var missing []Field
	if !IsFullName(c.Name) {
		missing = append(missing, FieldFullName)
	}
	if !present(c.PhoneNumber) {
		missing = append(missing, FieldPhone)
	}
	if !present(c.City) {
		missing = append(missing, FieldCity)
	}
	return missing
}

// IsComplete reports whether full name, phone and city are all known
func IsComplete(c *models.Client) bool {
	return len(MissingFields(c)) == 0
}

// State is the follow-up state of a client: Complete or AwaitingInfo
type State interface {
	state()
}

// Complete means no information is missing and no follow-up is outstanding
type Complete struct{}

// AwaitingInfo means information is missing; Retries follow-ups were sent so far
type AwaitingInfo struct {
	Retries          int
	LastSentAt       *time.Time
	CorrelationToken string
}

func (Complete) state()     {}
func (AwaitingInfo) state() {}

// StateOf derives the follow-up state of a client record
func StateOf(c *models.Client) State {
	if IsComplete(c) {
		return Complete{}
	}
	s := AwaitingInfo{Retries: c.FollowUpRetries, LastSentAt: c.FollowUpSentAt}
	if c.FollowUpMessageID != nil {
		s.CorrelationToken = *c.FollowUpMessageID
	}
	return s
}

// Decision is what the pipeline should do next for a client
type Decision int

const (
	// DecisionForward: the client is complete, forward to staff
	DecisionForward Decision = iota
	// DecisionFollowUp: request the missing information
	DecisionFollowUp
	// DecisionGiveUp: information is missing and the retry budget is spent
	DecisionGiveUp
)

func (d Decision) String() string {
	switch d {
	case DecisionForward:
		return "forward"
	case DecisionFollowUp:
		return "follow_up"
	default:
		return "give_up"
	}
}

// Decide picks the next step for a client given the retry budget
func Decide(c *models.Client, maxRetries int) Decision {
	switch s := StateOf(c).(type) {
	case AwaitingInfo:
		if s.Retries < maxRetries {
			return DecisionFollowUp
		}
		return DecisionGiveUp
	default:
		return DecisionForward
	}
}

// MergeOutcome reports what a merge changed
type MergeOutcome struct {
	Changed        bool
	BecameComplete bool
	FollowUpReset  bool
}

// ApplyContact merges extracted attributes into a client and returns the new
// record. Empty values never erase, equal values are no-ops, and a name
// without a surname never replaces a full name. When the result is complete,
// any follow-up state is cleared.
func ApplyContact(c models.Client, info models.ContactInfo) (models.Client, MergeOutcome) {
	var out MergeOutcome
	wasComplete := IsComplete(&c)

	if v := clean(info.Name); v != nil && !equal(c.Name, v) && (IsFullName(v) || !IsFullName(c.Name)) {
		c.Name = v
		out.Changed = true
	}
	if v := clean(info.PhoneNumber); v != nil && !equal(c.PhoneNumber, v) {
		c.PhoneNumber = v
		out.Changed = true
	}
	if v := clean(info.City); v != nil && !equal(c.City, v) {
		c.City = v
		out.Changed = true
	}

	if IsComplete(&c) {
		out.BecameComplete = !wasComplete
		if hasFollowUpState(&c) {
			c = ResetFollowUp(c)
			out.FollowUpReset = true
			out.Changed = true
		}
	}

	return c, out
}

// ResetFollowUp clears flag, timestamp, correlation token and retry counter
func ResetFollowUp(c models.Client) models.Client {
	c.FollowUpEmailSent = false
	c.FollowUpSentAt = nil
	c.FollowUpMessageID = nil
	c.FollowUpRetries = 0
	return c
}

// RecordFollowUp registers a follow-up that was actually sent
func RecordFollowUp(c models.Client, token string, at time.Time) models.Client {
	c.FollowUpEmailSent = true
	c.FollowUpSentAt = &at
	c.FollowUpMessageID = &token
	c.FollowUpRetries++
	return c
}

func hasFollowUpState(c *models.Client) bool {
	return c.FollowUpEmailSent || c.FollowUpSentAt != nil || c.FollowUpMessageID != nil || c.FollowUpRetries != 0
}

func clean(s *string) *string {
	if !present(s) {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func equal(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
