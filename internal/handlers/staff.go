package handlers

import (
	"fmt"
	"net/http"

	"mailtriage/internal/database"
	"mailtriage/internal/models"
	"mailtriage/internal/staff"

	"github.com/labstack/echo/v4"
)

// ListStaffHandler returns the roster
// @Summary List staff members
// @Tags staff
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /api/staff [get]
func ListStaffHandler(directory *staff.Directory) echo.HandlerFunc {
	return func(c echo.Context) error {
		members, err := directory.List(c.Request().Context())
		if err != nil {
			return fail(c, err)
		}
		if members == nil {
			members = []models.StaffMember{}
		}
		return ok(c, members)
	}
}

// CreateStaffHandler adds a staff member; skills are extracted from the
// responsibilities when none are given.
// @Summary Create a staff member
// @Tags staff
// @Accept json
// @Produce json
// @Param request body models.StaffRequest true "Staff member"
// @Success 201 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /api/staff [post]
func CreateStaffHandler(directory *staff.Directory) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.StaffRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		}

		m, err := directory.Create(c.Request().Context(), req)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusCreated, models.APIResponse{Success: true, Message: "staff member created", Data: m})
	}
}

// UpdateStaffHandler replaces the details of a staff member
// @Summary Update a staff member
// @Tags staff
// @Accept json
// @Produce json
// @Param id path string true "Staff ID"
// @Param request body models.StaffRequest true "Staff member"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /api/staff/{id} [put]
func UpdateStaffHandler(directory *staff.Directory) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req models.StaffRequest
		if err := c.Bind(&req); err != nil {
			return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		}

		m, err := directory.Update(c.Request().Context(), c.Param("id"), req)
		if err != nil {
			return fail(c, err)
		}
		return ok(c, m)
	}
}

// ListClientsHandler returns all clients, newest first
// @Summary List clients
// @Tags clients
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /api/clients [get]
func ListClientsHandler(store *database.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		list, err := store.ListClients(c.Request().Context())
		if err != nil {
			return fail(c, err)
		}
		if list == nil {
			list = []models.Client{}
		}
		return ok(c, list)
	}
}

// InboxHandler returns the staff worklist
// @Summary Staff inbox
// @Description Assigned messages that were analyzed or forwarded
// @Tags emails
// @Produce json
// @Param staff_id query string false "Only messages assigned to this staff member"
// @Success 200 {object} models.APIResponse
// @Router /api/inbox [get]
func InboxHandler(store *database.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		items, err := store.ListInbox(c.Request().Context(), c.QueryParam("staff_id"))
		if err != nil {
			return fail(c, err)
		}
		return ok(c, items)
	}
}
