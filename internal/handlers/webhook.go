package handlers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"

	"mailtriage/internal/emails"
	"mailtriage/internal/models"
	"mailtriage/internal/pipeline"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// maxWebhookMemory bounds the in-memory part of a multipart inbound post
const maxWebhookMemory = 32 << 20

// Ingester processes a message pushed by the mail provider
type Ingester interface {
	Ingest(ctx context.Context, raw *models.RawMessage) (pipeline.Outcome, error)
}

// WebhookResponse acknowledges an inbound post
type WebhookResponse struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message" example:"processed"`
	Outcome string `json:"outcome,omitempty" example:"follow_up_sent"`
}

// WebhookHandler receives SendGrid Inbound Parse posts. It always answers
// 200 so the provider does not redeliver; failures are logged.
// @Summary Inbound mail webhook
// @Description SendGrid Inbound Parse endpoint, parsed fields or raw MIME in the "email" field
// @Tags emails
// @Accept mpfd
// @Produce json
// @Success 200 {object} WebhookResponse
// @Router /api/emails/webhook [post]
func WebhookHandler(ingester Ingester, logger zerolog.Logger) echo.HandlerFunc {
	logger = logger.With().Str("component", "webhook").Logger()

	return func(c echo.Context) error {
		raw, err := readInbound(c.Request())
		if err != nil {
			logger.Warn().Err(err).Msg("Inbound post ignored")
			return c.JSON(http.StatusOK, WebhookResponse{Status: "ignored", Message: err.Error()})
		}

		outcome, err := ingester.Ingest(c.Request().Context(), raw)
		if err != nil {
			logger.Error().Err(err).Str("sender", raw.From).Str("message_id", raw.MessageID).Msg("Inbound message failed")
			return c.JSON(http.StatusOK, WebhookResponse{Status: "error", Message: "message stored for review"})
		}

		return c.JSON(http.StatusOK, WebhookResponse{
			Status:  "success",
			Message: fmt.Sprintf("message from %s processed", raw.From),
			Outcome: string(outcome),
		})
	}
}

func readInbound(req *http.Request) (*models.RawMessage, error) {
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		if err := req.ParseMultipartForm(maxWebhookMemory); err != nil {
			return nil, fmt.Errorf("invalid multipart body: %w", err)
		}
	} else if err := req.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}

	if mime := req.FormValue("email"); strings.TrimSpace(mime) != "" {
		return emails.ParseMessage(strings.NewReader(mime))
	}

	attachments, err := formAttachments(req.MultipartForm)
	if err != nil {
		return nil, err
	}
	return emails.ParseInbound(emails.InboundForm{
		From:        req.FormValue("from"),
		To:          req.FormValue("to"),
		Subject:     req.FormValue("subject"),
		Text:        req.FormValue("text"),
		HTML:        req.FormValue("html"),
		Headers:     req.FormValue("headers"),
		Charsets:    req.FormValue("charsets"),
		Attachments: attachments,
	})
}

func formAttachments(form *multipart.Form) ([]models.RawAttachment, error) {
	if form == nil {
		return nil, nil
	}

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var out []models.RawAttachment
	for _, field := range fields {
		for _, fh := range form.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open attachment %s: %w", fh.Filename, err)
			}
			content, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read attachment %s: %w", fh.Filename, err)
			}
			mimeType := fh.Header.Get("Content-Type")
			if mimeType == "" {
				mimeType = "application/octet-stream"
			}
			out = append(out, models.RawAttachment{Filename: fh.Filename, MimeType: mimeType, Content: content})
		}
	}
	return out, nil
}
