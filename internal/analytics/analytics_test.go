package analytics

import (
	"context"
	"testing"
	"time"

	"mailtriage/internal/database/dbtest"
	"mailtriage/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService_NilClient(t *testing.T) {
	service, err := NewService(nil, zerolog.Nop())
	assert.Error(t, err)
	assert.Nil(t, service)
}

func TestNilServiceIsNoop(t *testing.T) {
	var service *Service
	assert.NoError(t, service.TrackEvent(context.Background(), EventForwardSent, 1, nil))
	service.Track(context.Background(), EventForwardSent, nil)
	service.TrackCycle(context.Background(), &models.CycleReport{})
}

func TestRange(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC)
	midnight := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		period    string
		want      string
		wantStart time.Time
		wantEnd   time.Time
	}{
		{PeriodToday, PeriodToday, midnight, now},
		{PeriodYesterday, PeriodYesterday, midnight.AddDate(0, 0, -1), midnight},
		{PeriodLast7Days, PeriodLast7Days, now.AddDate(0, 0, -7), now},
		{PeriodLast30Days, PeriodLast30Days, now.AddDate(0, 0, -30), now},
		{"bogus", PeriodToday, midnight, now},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			period, start, end := Range(tt.period, now)
			assert.Equal(t, tt.want, period)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestGetSummary(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)
	service, err := NewService(store.Client(), zerolog.Nop())
	require.NoError(t, err)

	now := time.Now().UTC()
	service.now = func() time.Time { return now.Add(-time.Minute) }

	service.Track(ctx, EventForwardSent, map[string]interface{}{"staff_id": "s1"})
	service.Track(ctx, EventForwardSent, nil)
	require.NoError(t, service.TrackEvent(ctx, EventEmailIngested, 3, nil))
	service.TrackFollowUpsExhausted(ctx, "mario@example.com", 2)
	service.TrackCycle(ctx, &models.CycleReport{Fetched: 3, Processed: 3})

	require.NoError(t, store.InsertConversation(ctx, &models.Conversation{Subject: "s", ClientID: "c", Status: models.ConversationOpen}))
	require.NoError(t, store.InsertConversation(ctx, &models.Conversation{Subject: "s", ClientID: "c", Status: models.ConversationClosed}))

	service.now = func() time.Time { return now }
	summary, err := service.GetSummary(ctx, PeriodLast7Days)
	require.NoError(t, err)

	assert.Equal(t, PeriodLast7Days, summary.Period)
	assert.Equal(t, 2, summary.ForwardsSent)
	assert.Equal(t, 3, summary.EmailsIngested)
	assert.Equal(t, 1, summary.FollowUpsExhausted)
	assert.Equal(t, 1, summary.Cycles)
	assert.Equal(t, 0, summary.ForwardErrors)
	assert.Equal(t, 1, summary.OpenConversations)
}

func TestHashEmail(t *testing.T) {
	assert.Equal(t, "ma***com", hashEmail("mario@example.com"))
	assert.Equal(t, "***", hashEmail("ab"))
}
