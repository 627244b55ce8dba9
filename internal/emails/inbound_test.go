package emails

import (
	"testing"

	"mailtriage/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInbound(t *testing.T) {
	form := InboundForm{
		From:    `"Mario Rossi" <Mario@Example.com>`,
		To:      "studio@example.com",
		Subject: "Re: Busta paga",
		Text:    "Il mio numero \xe8 333 1234567",
		Headers: "Message-ID: <reply-1@example.com>\r\n" +
			"In-Reply-To: <followup-1@studio.it>\r\n" +
			"References: <orig@example.com> <followup-1@studio.it>\r\n" +
			"Date: Mon, 02 Jan 2006 15:04:05 +0100\r\n",
		Charsets:    `{"to":"UTF-8","subject":"UTF-8","text":"iso-8859-1","from":"UTF-8"}`,
		Attachments: []models.RawAttachment{{Filename: "doc.pdf", MimeType: "application/pdf", Content: []byte("x")}},
	}

	raw, err := ParseInbound(form)
	require.NoError(t, err)
	assert.Equal(t, "mario@example.com", raw.From)
	assert.Equal(t, "Mario Rossi", raw.FromName)
	assert.Equal(t, "reply-1@example.com", raw.MessageID)
	assert.Equal(t, "followup-1@studio.it", raw.InReplyTo)
	assert.Equal(t, []string{"orig@example.com", "followup-1@studio.it"}, raw.References)
	assert.Equal(t, "Il mio numero è 333 1234567", raw.TextBody)
	assert.Equal(t, 2006, raw.Date.Year())
	assert.Len(t, raw.Attachments, 1)
}

func TestParseInbound_HTMLOnlyAndNoHeaders(t *testing.T) {
	raw, err := ParseInbound(InboundForm{
		From: "anna@example.com",
		HTML: "<p>Buongiorno</p><script>x()</script>",
	})
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", raw.From)
	assert.Empty(t, raw.MessageID)
	assert.Contains(t, raw.TextBody, "Buongiorno")
	assert.NotContains(t, raw.TextBody, "x()")
}

func TestParseInbound_SenderFromHeaders(t *testing.T) {
	raw, err := ParseInbound(InboundForm{
		Headers: "From: Luca <luca@example.com>\nSubject: Domanda\n",
		Text:    "ciao",
	})
	require.NoError(t, err)
	assert.Equal(t, "luca@example.com", raw.From)
	assert.Equal(t, "Domanda", raw.Subject)
}

func TestParseInbound_NoSender(t *testing.T) {
	_, err := ParseInbound(InboundForm{Text: "ciao"})
	assert.Error(t, err)
}
