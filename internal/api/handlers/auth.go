package handlers

import (
	"errors"
	"log"

	"tallyboard/internal/auth"
	"tallyboard/internal/models"
	"tallyboard/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles login, logout and session introspection
type AuthHandler struct {
	sessions  *auth.SessionManager
	tally     *service.TallyService
	validator *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(sessions *auth.SessionManager, tally *service.TallyService) *AuthHandler {
	return &AuthHandler{
		sessions:  sessions,
		tally:     tally,
		validator: validator.New(),
	}
}

// LoginContributor handles POST /api/v1/login/contributor
func (h *AuthHandler) LoginContributor(c *fiber.Ctx) error {
	var req models.ContributorLoginRequest

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

	token, session, err := h.sessions.LoginContributor(c.Context(), req.Name)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to create session",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(models.LoginResponse{
		Token:   token,
		Session: session,
	})
}

// LoginAdmin handles POST /api/v1/login/admin. A successful admin login also
// records the name in the admin badge set.
func (h *AuthHandler) LoginAdmin(c *fiber.Ctx) error {
	var req models.AdminLoginRequest

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

	token, session, err := h.sessions.LoginAdmin(c.Context(), req.Name, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{
				Error: "Invalid credentials",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to create session",
			Message: err.Error(),
		})
	}

	if err := h.tally.RecordAdminName(c.Context(), session.Name); err != nil {
		// The badge set is cosmetic; a failed write must not block login.
		log.Printf("Failed to record admin name %q: %v", session.Name, err)
	}

	return c.Status(fiber.StatusOK).JSON(models.LoginResponse{
		Token:   token,
		Session: session,
	})
}

// Logout handles POST /api/v1/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token := auth.TokenFromCtx(c)
	if err := h.sessions.Logout(c.Context(), token); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to log out",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Logged out",
	})
}

// GetSession handles GET /api/v1/session
func (h *AuthHandler) GetSession(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(auth.SessionFromCtx(c))
}
