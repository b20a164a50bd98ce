package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-rubric-api/internal/middleware"
	"github.com/noah-isme/gema-rubric-api/internal/utils"
	"github.com/noah-isme/gema-rubric-api/internal/validation"
)

const (
	roleAdmin   = "admin"
	roleTeacher = "teacher"
	roleStudent = "student"
)

var errForbidden = errors.New("insufficient permissions")

func userIDFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(string); ok {
			return strings.TrimSpace(id)
		}
	}
	return ""
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return strings.ToLower(strings.TrimSpace(role))
		}
	}
	return ""
}

func isStaff(role string) bool {
	return role == roleAdmin || role == roleTeacher
}

func idParam(c *fiber.Ctx) (string, bool) {
	id := strings.TrimSpace(c.Params("id"))
	return id, id != ""
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// sendValidationError renders field-level failures; other errors fall through to false.
func sendValidationError(c *fiber.Ctx, err error) (bool, error) {
	var validationErr *validation.Error
	if errors.As(err, &validationErr) {
		return true, utils.Fail(c, fiber.StatusBadRequest, "validation failed", validationErr.FieldMap())
	}
	if validation.IsError(err) {
		return true, utils.Fail(c, fiber.StatusBadRequest, err.Error(), nil)
	}
	return false, nil
}
