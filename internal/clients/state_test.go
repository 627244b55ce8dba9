package clients

import (
	"testing"
	"time"

	"mailtriage/internal/models"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func strPtr(s string) *string { return &s }

func TestIsComplete(t *testing.T) {
	tests := []struct {
		name    string
		client  models.Client
		want    bool
		missing []Field
	}{
		{"empty", models.Client{}, false, []Field{FieldFullName, FieldPhone, FieldCity}},
		{"first name only", models.Client{Name: strPtr("Mario"), PhoneNumber: strPtr("333"), City: strPtr("Roma")}, false, []Field{FieldFullName}},
		{"blank phone", models.Client{Name: strPtr("Mario Rossi"), PhoneNumber: strPtr("  "), City: strPtr("Roma")}, false, []Field{FieldPhone}},
		{"complete", models.Client{Name: strPtr("Mario Rossi"), PhoneNumber: strPtr("333"), City: strPtr("Roma")}, true, nil},
		{"padded single name", models.Client{Name: strPtr(" Mario "), PhoneNumber: strPtr("333"), City: strPtr("Roma")}, false, []Field{FieldFullName}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsComplete(&tt.client))
			assert.Equal(t, tt.missing, MissingFields(&tt.client))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "mario@example.com", NormalizeEmail("  Mario@Example.COM "))
}

func TestApplyContact(t *testing.T) {
	sentAt := time.Now()
	base := models.Client{
		Email:             "mario@example.com",
		Name:              strPtr("Mario Rossi"),
		FollowUpEmailSent: true,
		FollowUpSentAt:    &sentAt,
		FollowUpMessageID: strPtr("followup-1@studio.it"),
		FollowUpRetries:   1,
	}

	t.Run("empty values never erase", func(t *testing.T) {
		merged, out := ApplyContact(base, models.ContactInfo{Name: strPtr(""), City: strPtr("  ")})
		assert.False(t, out.Changed)
		assert.Equal(t, "Mario Rossi", *merged.Name)
		assert.Nil(t, merged.City)
	})

	t.Run("single name does not replace full name", func(t *testing.T) {
		merged, out := ApplyContact(base, models.ContactInfo{Name: strPtr("Mario")})
		assert.False(t, out.Changed)
		assert.Equal(t, "Mario Rossi", *merged.Name)
	})

	t.Run("becoming complete resets follow-up state", func(t *testing.T) {
		merged, out := ApplyContact(base, models.ContactInfo{PhoneNumber: strPtr("+39 333 1234567"), City: strPtr("Milano")})
		assert.True(t, out.Changed)
		assert.True(t, out.BecameComplete)
		assert.True(t, out.FollowUpReset)
		assert.False(t, merged.FollowUpEmailSent)
		assert.Nil(t, merged.FollowUpSentAt)
		assert.Nil(t, merged.FollowUpMessageID)
		assert.Equal(t, 0, merged.FollowUpRetries)
	})

	t.Run("partial info keeps follow-up state", func(t *testing.T) {
		merged, out := ApplyContact(base, models.ContactInfo{City: strPtr("Milano")})
		assert.True(t, out.Changed)
		assert.False(t, out.BecameComplete)
		assert.True(t, merged.FollowUpEmailSent)
		assert.Equal(t, 1, merged.FollowUpRetries)
	})
}

func TestDecide(t *testing.T) {
	complete := models.Client{Name: strPtr("Mario Rossi"), PhoneNumber: strPtr("333"), City: strPtr("Roma")}
	assert.Equal(t, DecisionForward, Decide(&complete, 2))

	incomplete := models.Client{Name: strPtr("Mario")}
	assert.Equal(t, DecisionFollowUp, Decide(&incomplete, 2))

	incomplete.FollowUpRetries = 2
	assert.Equal(t, DecisionGiveUp, Decide(&incomplete, 2))
	assert.Equal(t, "give_up", Decide(&incomplete, 2).String())
}

func TestStateOf(t *testing.T) {
	c := models.Client{FollowUpRetries: 1, FollowUpMessageID: strPtr("tok")}
	s, ok := StateOf(&c).(AwaitingInfo)
	assert.True(t, ok)
	assert.Equal(t, 1, s.Retries)
	assert.Equal(t, "tok", s.CorrelationToken)
}

func optionalString() *rapid.Generator[*string] {
	return rapid.Custom(func(t *rapid.T) *string {
		if rapid.Bool().Draw(t, "nil") {
			return nil
		}
		v := rapid.SampledFrom([]string{"", " ", "Mario", "Mario Rossi", "Anna Maria Bianchi", "333 1234567", "Roma", "Milano"}).Draw(t, "value")
		return &v
	})
}

func contactGen() *rapid.Generator[models.ContactInfo] {
	return rapid.Custom(func(t *rapid.T) models.ContactInfo {
		return models.ContactInfo{
			Name:        optionalString().Draw(t, "name"),
			PhoneNumber: optionalString().Draw(t, "phone"),
			City:        optionalString().Draw(t, "city"),
		}
	})
}

func TestApplyContact_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := models.Client{
			Name:        optionalString().Draw(t, "start_name"),
			PhoneNumber: optionalString().Draw(t, "start_phone"),
			City:        optionalString().Draw(t, "start_city"),
		}
		info := contactGen().Draw(t, "info")

		once, _ := ApplyContact(start, info)
		twice, out := ApplyContact(once, info)

		assert.Equal(t, once, twice)
		assert.False(t, out.Changed)
	})
}

func TestApplyContact_MonotonicEnrichment(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		client := models.Client{}
		steps := rapid.SliceOfN(contactGen(), 1, 8).Draw(t, "steps")

		for _, info := range steps {
			before := client
			client, _ = ApplyContact(client, info)

			if present(before.Name) {
				assert.True(t, present(client.Name))
			}
			if present(before.PhoneNumber) {
				assert.True(t, present(client.PhoneNumber))
			}
			if present(before.City) {
				assert.True(t, present(client.City))
			}
			if IsComplete(&before) {
				assert.True(t, IsComplete(&client))
			}
		}
	})
}

// Simulates cycles of replies and follow-ups: the counter never exceeds the
// maximum and completeness always resets it.
func TestFollowUpRetriesBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxRetries := rapid.IntRange(0, 4).Draw(t, "max")
		client := models.Client{}
		steps := rapid.SliceOfN(contactGen(), 1, 12).Draw(t, "replies")

		for i, info := range steps {
			client, _ = ApplyContact(client, info)
			switch Decide(&client, maxRetries) {
			case DecisionFollowUp:
				client = RecordFollowUp(client, "tok", time.Unix(int64(i), 0))
			case DecisionForward:
				assert.Equal(t, 0, client.FollowUpRetries)
				assert.False(t, client.FollowUpEmailSent)
			}
			assert.LessOrEqual(t, client.FollowUpRetries, maxRetries)
		}
	})
}
