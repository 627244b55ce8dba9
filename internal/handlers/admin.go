package handlers

import (
	"context"
	"errors"
	"net/http"

	"mailtriage/internal/models"
	"mailtriage/internal/pipeline"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// CycleRunner runs one processing cycle now
type CycleRunner interface {
	RunNow(ctx context.Context) (*models.CycleReport, error)
}

// ProcessEmailsHandler runs a processing cycle on demand
// @Summary Process new mail now
// @Description Fetches unseen mail and processes it; rejected while a cycle is running
// @Tags Admin
// @Produce json
// @Success 200 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Failure 503 {object} models.APIResponse
// @Router /api/admin/process-emails [post]
func ProcessEmailsHandler(runner CycleRunner, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		report, err := runner.RunNow(c.Request().Context())
		if errors.Is(err, pipeline.ErrNoMailbox) {
			return c.JSON(http.StatusServiceUnavailable, models.APIResponse{Success: false, Error: err.Error()})
		}
		if err != nil {
			logger.Error().Err(err).Msg("On-demand cycle failed")
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, models.APIResponse{Success: true, Message: "cycle completed", Data: report})
	}
}
