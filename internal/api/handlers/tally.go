package handlers

import (
	"strconv"

	"tallyboard/internal/auth"
	"tallyboard/internal/models"
	"tallyboard/internal/service"
	ws "tallyboard/internal/websocket"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
)

// TallyHandler handles HTTP requests for the tally tracker
type TallyHandler struct {
	tally     *service.TallyService
	hub       *ws.Hub
	validator *validator.Validate
}

// NewTallyHandler creates a new tally handler
func NewTallyHandler(tally *service.TallyService, hub *ws.Hub) *TallyHandler {
	return &TallyHandler{
		tally:     tally,
		hub:       hub,
		validator: validator.New(),
	}
}

// AddContribution handles POST /api/v1/contributions.
// Contributors always tally against their own name; admins may name anyone
// and fall back to their own name when the field is blank.
func (h *TallyHandler) AddContribution(c *fiber.Ctx) error {
	var req models.ContributionRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
	}

	if err := h.validator.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
	}

	session := auth.SessionFromCtx(c)
	userName := session.Name
	if session.Role == models.RoleAdmin && req.UserName != "" {
		userName = req.UserName
	}

	entry, err := h.tally.AddContribution(c.Context(), userName, req.Amount)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to add contribution",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(entry)
}

// SetMyTotal handles PUT /api/v1/me/total. It overwrites the caller's
// accumulated value; a caller who never contributed gets a 404, never a
// fresh entry.
func (h *TallyHandler) SetMyTotal(c *fiber.Ctx) error {
	var req models.SetTotalRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
	}

	if err := h.validator.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
	}

	session := auth.SessionFromCtx(c)
	entry, ok, err := h.tally.SetTotal(c.Context(), session.Name, *req.Total)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to set total",
			Message: err.Error(),
		})
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "No entry for this name",
		})
	}

	return c.Status(fiber.StatusOK).JSON(entry)
}

// GetMyTotal handles GET /api/v1/me/total
func (h *TallyHandler) GetMyTotal(c *fiber.Ctx) error {
	session := auth.SessionFromCtx(c)

	total, err := h.tally.MyTotal(c.Context(), session.Name)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to get total",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"userName": session.Name,
		"total":    total,
	})
}

// GetStats handles GET /api/v1/stats
func (h *TallyHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.tally.Stats(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to retrieve stats",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(stats)
}

// GetGrandTotal handles GET /api/v1/stats/total
func (h *TallyHandler) GetGrandTotal(c *fiber.Ctx) error {
	total, err := h.tally.GrandTotal(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to retrieve grand total",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"grandTotal": total,
	})
}

// GetHistory handles GET /api/v1/entries (admin only)
func (h *TallyHandler) GetHistory(c *fiber.Ctx) error {
	entries, err := h.tally.History(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to retrieve entries",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data":  entries,
		"total": len(entries),
	})
}

// UpdateEntry handles PUT /api/v1/entries/:id (admin only)
func (h *TallyHandler) UpdateEntry(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid entry id",
			Message: err.Error(),
		})
	}

	var req models.UpdateEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
	}

	if err := h.validator.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
	}

	entry, ok, err := h.tally.UpdateEntry(c.Context(), id, *req.Value)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to update entry",
			Message: err.Error(),
		})
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
			Error: "Entry not found",
		})
	}

	return c.Status(fiber.StatusOK).JSON(entry)
}

// DeleteEntry handles DELETE /api/v1/entries/:id (admin only)
func (h *TallyHandler) DeleteEntry(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid entry id",
			Message: err.Error(),
		})
	}

	if err := h.tally.DeleteEntry(c.Context(), id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to delete entry",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Entry deleted",
	})
}

// ClearAll handles DELETE /api/v1/entries (admin only)
func (h *TallyHandler) ClearAll(c *fiber.Ctx) error {
	if err := h.tally.ClearAll(c.Context()); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to clear entries",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "All entries cleared",
	})
}

// GetAdminDashboard handles GET /api/v1/admin/dashboard (admin only)
func (h *TallyHandler) GetAdminDashboard(c *fiber.Ctx) error {
	dashboard, err := h.tally.AdminDashboard(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to retrieve dashboard",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(dashboard)
}

// GetVisibility handles GET /api/v1/me/visibility
func (h *TallyHandler) GetVisibility(c *fiber.Ctx) error {
	session := auth.SessionFromCtx(c)

	showAll, err := h.tally.ShowAll(c.Context(), session.Name)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to get visibility",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"showAll": showAll,
	})
}

// SetVisibility handles PUT /api/v1/me/visibility
func (h *TallyHandler) SetVisibility(c *fiber.Ctx) error {
	var req models.VisibilityRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Invalid request body",
			Message: err.Error(),
		})
	}

	if err := h.validator.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
	}

	session := auth.SessionFromCtx(c)
	if err := h.tally.SetShowAll(c.Context(), session.Name, *req.ShowAll); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to set visibility",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"showAll": *req.ShowAll,
	})
}

// HealthCheck handles GET /api/v1/health
func (h *TallyHandler) HealthCheck(c *fiber.Ctx) error {
	if err := h.tally.HealthCheck(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error:   "Health check failed",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "healthy",
	})
}

// HandleWebSocket attaches a websocket connection to the hub
func (h *TallyHandler) HandleWebSocket(conn *fiberws.Conn) {
	ws.ServeWS(h.hub, conn)
}
