package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"mailtriage/internal/conversations"
	"mailtriage/internal/database"
	"mailtriage/internal/dispatch"
	"mailtriage/internal/models"
	"mailtriage/internal/storage"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Replier sends staff replies and manual forwards
type Replier interface {
	StaffReply(ctx context.Context, conversationID, staffID, body string) (*models.Email, error)
	ForwardEmail(ctx context.Context, emailID string, opts dispatch.Options) (*models.Email, error)
}

// ListConversationsHandler lists conversations, open and awaiting_client by default
// @Summary List conversations
// @Tags conversations
// @Produce json
// @Param status query string false "Comma separated statuses (open, awaiting_client, closed)"
// @Param staff_id query string false "Assigned staff member"
// @Param start_date query string false "Created on or after (YYYY-MM-DD or RFC3339)"
// @Param end_date query string false "Created on or before (YYYY-MM-DD or RFC3339)"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /api/conversations [get]
func ListConversationsHandler(store *database.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		filter, err := conversationFilter(c)
		if err != nil {
			return badRequest(c, err.Error())
		}
		if len(filter.Statuses) == 0 {
			filter.Statuses = []models.ConversationStatus{models.ConversationOpen, models.ConversationAwaitingClient}
		}

		list, err := store.ListConversations(c.Request().Context(), filter)
		if err != nil {
			return fail(c, err)
		}
		return ok(c, list)
	}
}

// ListClosedConversationsHandler lists closed conversations
// @Summary List closed conversations
// @Tags conversations
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /api/conversations/closed [get]
func ListClosedConversationsHandler(store *database.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		filter, err := conversationFilter(c)
		if err != nil {
			return badRequest(c, err.Error())
		}
		filter.Statuses = []models.ConversationStatus{models.ConversationClosed}

		list, err := store.ListConversations(c.Request().Context(), filter)
		if err != nil {
			return fail(c, err)
		}
		return ok(c, list)
	}
}

func conversationFilter(c echo.Context) (models.ConversationFilter, error) {
	var filter models.ConversationFilter

	if raw := c.QueryParam("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status, err := conversations.ParseStatus(strings.TrimSpace(s))
			if err != nil {
				return filter, err
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	filter.StaffID = c.QueryParam("staff_id")

	var err error
	if filter.StartDate, err = parseDate(c.QueryParam("start_date"), false); err != nil {
		return filter, err
	}
	if filter.EndDate, err = parseDate(c.QueryParam("end_date"), true); err != nil {
		return filter, err
	}
	return filter, nil
}

// parseDate accepts RFC3339 or a bare date; a bare end date covers the whole day
func parseDate(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", value)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// GetConversationHandler returns a conversation with its messages
// @Summary Get a conversation
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /api/conversations/{id} [get]
func GetConversationHandler(store *database.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		summary, err := store.GetConversationSummary(ctx, c.Param("id"))
		if err != nil {
			return fail(c, err)
		}
		messages, err := store.ListConversationEmails(ctx, summary.ID)
		if err != nil {
			return fail(c, err)
		}
		if messages == nil {
			messages = []models.Email{}
		}
		return ok(c, models.ConversationDetail{Conversation: *summary, Messages: messages})
	}
}

// UpdateConversationHandler changes status, resolution or assignee
// @Summary Update a conversation
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Param request body models.ConversationUpdateRequest true "Changes"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /api/conversations/{id} [put]
func UpdateConversationHandler(store *database.Store, resolver *conversations.Resolver) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.ConversationUpdateRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		}
		if req.Status == nil && req.AssignedToStaffID == nil && req.ResolutionStatus == nil {
			return badRequest(c, "nothing to update")
		}

		var status models.ConversationStatus
		if req.Status != nil {
			parsed, err := conversations.ParseStatus(*req.Status)
			if err != nil {
				return badRequest(c, err.Error())
			}
			status = parsed
		}
		if req.ResolutionStatus != nil && !conversations.ValidResolution(*req.ResolutionStatus) {
			return badRequest(c, fmt.Sprintf("invalid resolution status %q", *req.ResolutionStatus))
		}

		ctx := c.Request().Context()
		conv, err := resolver.Get(ctx, c.Param("id"))
		if err != nil {
			return fail(c, err)
		}

		if req.AssignedToStaffID != nil {
			staffID := strings.TrimSpace(*req.AssignedToStaffID)
			var assignee *string
			if staffID != "" {
				if _, err := store.GetStaff(ctx, staffID); err != nil {
					if errors.Is(err, database.ErrNotFound) {
						return badRequest(c, "unknown staff member")
					}
					return fail(c, err)
				}
				assignee = &staffID
			}
			if err := store.AssignConversation(ctx, conv.ID, assignee); err != nil {
				return fail(c, err)
			}
			conv.AssignedToStaffID = assignee
		}

		switch {
		case req.Status != nil:
			resolution := req.ResolutionStatus
			if status == models.ConversationClosed && resolution == nil {
				r := models.ResolutionResolved
				resolution = &r
			}
			if err := resolver.Transition(ctx, conv, status, resolution); err != nil {
				return fail(c, err)
			}
		case req.ResolutionStatus != nil:
			if conv.Status != models.ConversationClosed {
				return badRequest(c, "resolution can only be set on closed conversations")
			}
			if err := store.UpdateConversationStatus(ctx, conv.ID, conv.Status, req.ResolutionStatus); err != nil {
				return fail(c, err)
			}
		}

		summary, err := store.GetConversationSummary(ctx, conv.ID)
		if err != nil {
			return fail(c, err)
		}
		return ok(c, summary)
	}
}

// DeleteConversationHandler removes a conversation, its messages and the
// attachment content nothing else refers to.
// @Summary Delete a conversation
// @Tags conversations
// @Produce json
// @Param id path string true "Conversation ID"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /api/conversations/{id} [delete]
func DeleteConversationHandler(store *database.Store, blobs *storage.BlobStore, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		conv, err := store.GetConversation(ctx, c.Param("id"))
		if err != nil {
			return fail(c, err)
		}

		unused, err := store.DeleteConversation(ctx, conv.ID)
		if err != nil {
			return fail(c, err)
		}
		for _, ref := range unused {
			if err := blobs.Delete(ref); err != nil {
				logger.Warn().Err(err).Str("blob_ref", ref).Msg("Failed to delete attachment content")
			}
		}

		logger.Info().Str("conversation_id", conv.ID).Int("blobs_deleted", len(unused)).Msg("Conversation deleted")
		return c.JSON(http.StatusOK, models.APIResponse{Success: true, Message: "conversation deleted"})
	}
}

// ReplyHandler sends a staff reply to the client of a conversation
// @Summary Reply to the client
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path string true "Conversation ID"
// @Param request body models.ReplyRequest true "Reply"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Failure 500 {object} models.APIResponse
// @Router /api/conversations/{id}/reply [post]
func ReplyHandler(replier Replier) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.ReplyRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		}
		if strings.TrimSpace(req.Body) == "" || strings.TrimSpace(req.StaffID) == "" {
			return badRequest(c, "staff_id and body are required")
		}

		sent, err := replier.StaffReply(c.Request().Context(), c.Param("id"), req.StaffID, req.Body)
		if err != nil {
			return fail(c, err)
		}
		return ok(c, sent)
	}
}

// ForwardEmailHandler forwards a stored client message to staff again
// @Summary Forward a message to staff
// @Tags emails
// @Accept json
// @Produce json
// @Param id path string true "Email ID"
// @Param request body models.ForwardRequest false "Options"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Failure 502 {object} models.APIResponse
// @Router /api/emails/{id}/forward [post]
func ForwardEmailHandler(replier Replier) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.ForwardRequest
		if c.Request().ContentLength > 0 {
			if err := c.Bind(&req); err != nil {
				return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
			}
		}

		forwarded, err := replier.ForwardEmail(c.Request().Context(), c.Param("id"), dispatch.Options{
			Force:   req.Force,
			StaffID: req.StaffID,
		})
		if err != nil {
			return fail(c, err)
		}
		return ok(c, forwarded)
	}
}
