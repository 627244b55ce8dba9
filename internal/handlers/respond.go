package handlers

import (
	"errors"
	"net/http"

	"mailtriage/internal/conversations"
	"mailtriage/internal/database"
	"mailtriage/internal/dispatch"
	"mailtriage/internal/models"
	"mailtriage/internal/scheduler"

	"github.com/labstack/echo/v4"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrDuplicate),
		errors.Is(err, conversations.ErrInvalidTransition),
		errors.Is(err, scheduler.ErrBusy),
		errors.Is(err, dispatch.ErrNotAssigned),
		errors.Is(err, dispatch.ErrClientIncomplete):
		return http.StatusConflict
	case errors.Is(err, dispatch.ErrForwardFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func fail(c echo.Context, err error) error {
	return c.JSON(statusFor(err), models.APIResponse{Success: false, Error: err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, models.APIResponse{Success: false, Error: msg})
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: data})
}
