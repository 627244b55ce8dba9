package conversations

import (
	"context"
	"errors"
	"testing"
	"time"

	"mailtriage/internal/database"
	"mailtriage/internal/database/dbtest"
	"mailtriage/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.ConversationStatus
		want     bool
	}{
		{models.ConversationOpen, models.ConversationAwaitingClient, true},
		{models.ConversationAwaitingClient, models.ConversationOpen, true},
		{models.ConversationOpen, models.ConversationClosed, true},
		{models.ConversationAwaitingClient, models.ConversationClosed, true},
		{models.ConversationOpen, models.ConversationOpen, true},
		{models.ConversationClosed, models.ConversationOpen, false},
		{models.ConversationClosed, models.ConversationAwaitingClient, false},
		{models.ConversationClosed, models.ConversationClosed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestParseStatus(t *testing.T) {
	status, err := ParseStatus("closed")
	require.NoError(t, err)
	assert.Equal(t, models.ConversationClosed, status)

	_, err = ParseStatus("archived")
	assert.Error(t, err)

	assert.True(t, ValidResolution("resolved"))
	assert.False(t, ValidResolution("maybe"))
}

func TestReplyHeaders(t *testing.T) {
	tests := []struct {
		name        string
		parent      *models.Email
		wantReplyTo string
		wantRefs    []string
	}{
		{"nil parent", nil, "", nil},
		{"no reference", &models.Email{}, "", nil},
		{"first message", &models.Email{Reference: strPtr("a@x")}, "a@x", []string{"a@x"}},
		{
			"existing chain",
			&models.Email{Reference: strPtr("c@x"), References: strPtr("a@x b@x")},
			"c@x", []string{"a@x", "b@x", "c@x"},
		},
		{
			"in-reply-to only",
			&models.Email{Reference: strPtr("b@x"), InReplyTo: strPtr("a@x")},
			"b@x", []string{"a@x", "b@x"},
		},
		{
			"duplicate in chain",
			&models.Email{Reference: strPtr("b@x"), References: strPtr("a@x b@x")},
			"b@x", []string{"a@x", "b@x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replyTo, refs := ReplyHeaders(tt.parent)
			assert.Equal(t, tt.wantReplyTo, replyTo)
			assert.Equal(t, tt.wantRefs, refs)
		})
	}
}

func TestReplySubject(t *testing.T) {
	assert.Equal(t, "Re: Busta paga", ReplySubject("Busta paga"))
	assert.Equal(t, "RE: Busta paga", ReplySubject(" RE: Busta paga"))
	assert.Nil(t, JoinReferences(nil))
	assert.Equal(t, "a b", *JoinReferences([]string{"a", "b"}))
}

func seedClient(t *testing.T, store *database.Store, c *models.Client) *models.Client {
	t.Helper()
	require.NoError(t, store.InsertClient(context.Background(), c))
	return c
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)
	resolver := NewResolver(store, zerolog.Nop())

	sentAt := time.Now().UTC()
	awaiting := seedClient(t, store, &models.Client{
		Email:             "mario@example.com",
		Name:              strPtr("Mario"),
		FollowUpEmailSent: true,
		FollowUpSentAt:    &sentAt,
		FollowUpMessageID: strPtr("followup-1@studio.it"),
		FollowUpRetries:   1,
	})
	known := seedClient(t, store, &models.Client{
		Email:       "anna@example.com",
		Name:        strPtr("Anna Bianchi"),
		PhoneNumber: strPtr("333"),
		City:        strPtr("Roma"),
	})

	conv, err := resolver.Open(ctx, known, "Busta paga", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationOpen, conv.Status)

	t.Run("unknown sender is a new thread", func(t *testing.T) {
		res, err := resolver.Resolve(ctx, &models.RawMessage{From: "nuovo@example.com"})
		require.NoError(t, err)
		assert.Equal(t, KindNewThread, res.Kind)
		assert.Nil(t, res.Client)
	})

	t.Run("header correlation", func(t *testing.T) {
		res, err := resolver.Resolve(ctx, &models.RawMessage{
			From:       "mario.rossi@altro.it",
			InReplyTo:  "followup-1@studio.it",
			References: []string{"orig@example.com", "followup-1@studio.it"},
		})
		require.NoError(t, err)
		assert.Equal(t, KindFollowUpReply, res.Kind)
		assert.True(t, res.Correlated)
		assert.Equal(t, awaiting.ID, res.Client.ID)
	})

	t.Run("flag fallback", func(t *testing.T) {
		res, err := resolver.Resolve(ctx, &models.RawMessage{From: "MARIO@example.com"})
		require.NoError(t, err)
		assert.Equal(t, KindFollowUpReply, res.Kind)
		assert.False(t, res.Correlated)
		assert.Nil(t, res.Conversation)
	})

	t.Run("active conversation", func(t *testing.T) {
		res, err := resolver.Resolve(ctx, &models.RawMessage{From: "anna@example.com"})
		require.NoError(t, err)
		assert.Equal(t, KindExistingThread, res.Kind)
		require.NotNil(t, res.Conversation)
		assert.Equal(t, conv.ID, res.Conversation.ID)
	})

	t.Run("closed conversation starts a new thread", func(t *testing.T) {
		require.NoError(t, resolver.Transition(ctx, conv, models.ConversationClosed, strPtr(models.ResolutionResolved)))

		res, err := resolver.Resolve(ctx, &models.RawMessage{From: "anna@example.com"})
		require.NoError(t, err)
		assert.Equal(t, KindNewThread, res.Kind)
		assert.Equal(t, known.ID, res.Client.ID)
		assert.Nil(t, res.Conversation)
	})
}

func TestOpen_IncompleteClientAwaits(t *testing.T) {
	store := dbtest.NewStore(t)
	resolver := NewResolver(store, zerolog.Nop())
	client := seedClient(t, store, &models.Client{Email: "x@example.com"})

	conv, err := resolver.Open(context.Background(), client, "Info", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationAwaitingClient, conv.Status)
}

func TestTransition(t *testing.T) {
	ctx := context.Background()
	store := dbtest.NewStore(t)
	resolver := NewResolver(store, zerolog.Nop())
	client := seedClient(t, store, &models.Client{Email: "x@example.com"})

	conv, err := resolver.Open(ctx, client, "Info", nil)
	require.NoError(t, err)

	require.NoError(t, resolver.Transition(ctx, conv, models.ConversationOpen, strPtr("resolved")))
	assert.Nil(t, conv.ResolutionStatus, "resolution only applies when closing")

	require.NoError(t, resolver.Transition(ctx, conv, models.ConversationClosed, strPtr(models.ResolutionUnresolved)))

	stored, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationClosed, stored.Status)
	assert.Equal(t, models.ResolutionUnresolved, *stored.ResolutionStatus)

	err = resolver.Transition(ctx, conv, models.ConversationOpen, nil)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}
