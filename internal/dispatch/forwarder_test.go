package dispatch

import (
	"context"
	"errors"
	"testing"

	"mailtriage/internal/conversations"
	"mailtriage/internal/database"
	"mailtriage/internal/database/dbtest"
	"mailtriage/internal/email"
	"mailtriage/internal/models"
	"mailtriage/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []*email.OutboundMessage
	err  error
}

func (f *fakeSender) Send(ctx context.Context, msg *email.OutboundMessage) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "sg-1", nil
}

func strPtr(s string) *string { return &s }

type fixture struct {
	store     *database.Store
	blobs     *storage.BlobStore
	sender    *fakeSender
	forwarder *Forwarder
	staff     *models.StaffMember
	conv      *models.Conversation
	email     *models.Email
}

func newFixture(t *testing.T, client *models.Client) *fixture {
	ctx := context.Background()
	store := dbtest.NewStore(t)
	blobs, err := storage.NewBlobStore(t.TempDir())
	require.NoError(t, err)
	sender := &fakeSender{}
	resolver := conversations.NewResolver(store, zerolog.Nop())

	staff := &models.StaffMember{Name: "Anna Bianchi", Email: "anna@studio.it", Responsibilities: "Paghe"}
	require.NoError(t, store.InsertStaff(ctx, staff))
	require.NoError(t, store.InsertClient(ctx, client))

	conv, err := resolver.Open(ctx, client, "Busta paga", nil)
	require.NoError(t, err)

	e := &models.Email{
		ConversationID:    &conv.ID,
		Reference:         strPtr("orig@example.com"),
		Sender:            client.Email,
		SenderType:        models.SenderClient,
		Subject:           "Busta paga",
		BodyText:          "Buongiorno,\nallego il cedolino.",
		AssignedToStaffID: &staff.ID,
		AIConfidence:      0.85,
		AIReasoning:       strPtr("Riguarda le paghe"),
		IsUrgent:          true,
		Status:            models.EmailStatusAnalyzed,
	}
	require.NoError(t, store.InsertEmail(ctx, e))

	forwarder := NewForwarder(store, blobs, sender, resolver, nil, "https://studio.example.com/", zerolog.Nop())
	return &fixture{store, blobs, sender, forwarder, staff, conv, e}
}

func completeClient() *models.Client {
	return &models.Client{
		Email:       "mario@example.com",
		Name:        strPtr("Mario Rossi"),
		PhoneNumber: strPtr("333 1234567"),
		City:        strPtr("Bologna"),
	}
}

func TestForward_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, completeClient())

	ref, err := f.blobs.Put([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, f.store.InsertAttachment(ctx, &models.Attachment{
		EmailID: f.email.ID, Filename: "cedolino.pdf", MimeType: "application/pdf", Size: 8, BlobRef: ref,
	}))
	require.NoError(t, f.store.InsertAttachment(ctx, &models.Attachment{
		EmailID: f.email.ID, Filename: "lost.pdf", MimeType: "application/pdf", Size: 1, BlobRef: "0000000000000000000000000000000000000000000000000000000000000000",
	}))

	require.NoError(t, f.forwarder.Forward(ctx, f.email, f.conv, Options{}))

	require.Len(t, f.sender.sent, 1)
	msg := f.sender.sent[0]
	assert.Equal(t, "anna@studio.it", msg.To)
	assert.Equal(t, "mario@example.com", msg.ReplyTo)
	assert.Equal(t, "[Smistato da AI] Busta paga", msg.Subject)
	assert.Contains(t, msg.Text, "Riguarda le paghe")
	assert.Contains(t, msg.Text, "https://studio.example.com/?conversation_id="+f.conv.ID)
	assert.Contains(t, msg.Text, "> allego il cedolino.")
	assert.Contains(t, msg.Text, "85%")
	assert.Contains(t, msg.HTML, "<blockquote>")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "cedolino.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, []byte("%PDF-1.4"), msg.Attachments[0].Content)

	stored, err := f.store.GetEmail(ctx, f.email.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EmailStatusForwarded, stored.Status)

	conv, err := f.store.GetConversation(ctx, f.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationOpen, conv.Status)
	assert.Equal(t, f.staff.ID, *conv.AssignedToStaffID)
}

func TestForward_ProviderFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, completeClient())
	f.sender.err = errors.New("SendGrid API error: status 503")

	err := f.forwarder.Forward(ctx, f.email, f.conv, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrForwardFailed))

	stored, err := f.store.GetEmail(ctx, f.email.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EmailStatusForwardError, stored.Status)
}

func TestForward_IncompleteClient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &models.Client{Email: "x@example.com", Name: strPtr("Mario")})

	err := f.forwarder.Forward(ctx, f.email, f.conv, Options{})
	assert.ErrorIs(t, err, ErrClientIncomplete)
	assert.Empty(t, f.sender.sent)

	require.NoError(t, f.forwarder.Forward(ctx, f.email, f.conv, Options{Force: true}))
	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0].Text, "**Telefono:** -")

	conv, err := f.store.GetConversation(ctx, f.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConversationOpen, conv.Status)
}

func TestForward_NotAssigned(t *testing.T) {
	f := newFixture(t, completeClient())
	f.email.AssignedToStaffID = nil

	err := f.forwarder.Forward(context.Background(), f.email, f.conv, Options{})
	assert.ErrorIs(t, err, ErrNotAssigned)
}

func TestForward_StaffOverride(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, completeClient())
	other := &models.StaffMember{Name: "Luca Verdi", Email: "luca@studio.it", Responsibilities: "730"}
	require.NoError(t, f.store.InsertStaff(ctx, other))

	require.NoError(t, f.forwarder.Forward(ctx, f.email, f.conv, Options{StaffID: other.ID}))
	assert.Equal(t, "luca@studio.it", f.sender.sent[0].To)
	assert.Equal(t, other.ID, *f.email.AssignedToStaffID)
}
