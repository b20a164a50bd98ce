package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-rubric-api/internal/dto"
	"github.com/noah-isme/gema-rubric-api/internal/middleware"
	"github.com/noah-isme/gema-rubric-api/internal/service"
	"github.com/noah-isme/gema-rubric-api/internal/utils"
)

// RubricHandler exposes rubric authoring endpoints.
type RubricHandler struct {
	service service.RubricService
	logger  zerolog.Logger
}

// NewRubricHandler constructs the handler.
func NewRubricHandler(service service.RubricService, logger zerolog.Logger) *RubricHandler {
	return &RubricHandler{
		service: service,
		logger:  logger.With().Str("component", "rubric_handler").Logger(),
	}
}

// Register attaches rubric endpoints to the router group. Writes require a teacher or admin.
func (h *RubricHandler) Register(router fiber.Router) {
	staffOnly := middleware.RequireRole(roleTeacher, roleAdmin)

	router.Get("/", h.list)
	router.Get("/templates", h.templates)
	router.Get("/:id", h.get)
	router.Post("/", staffOnly, h.create)
	router.Patch("/:id", staffOnly, h.update)
	router.Post("/:id/duplicate", staffOnly, h.duplicate)
	router.Delete("/:id", staffOnly, h.delete)
}

func (h *RubricHandler) list(c *fiber.Ctx) error {
	var (
		rubrics []dto.RubricResponse
		err     error
	)

	projectID := strings.TrimSpace(c.Query("project_id"))
	createdBy := strings.TrimSpace(c.Query("created_by"))

	switch {
	case projectID != "":
		rubrics, err = h.service.ListByProject(c.UserContext(), projectID)
	case createdBy != "":
		rubrics, err = h.service.ListByCreator(c.UserContext(), createdBy)
	default:
		rubrics, err = h.service.ListByCreator(c.UserContext(), userIDFromContext(c))
	}
	if err != nil {
		return h.handleError(c, err, "failed to list rubrics")
	}

	return utils.OK(c, rubrics, "rubrics retrieved", fiber.Map{"count": len(rubrics)})
}

func (h *RubricHandler) templates(c *fiber.Ctx) error {
	rubrics, err := h.service.ListTemplates(c.UserContext())
	if err != nil {
		return h.handleError(c, err, "failed to list rubric templates")
	}
	return utils.OK(c, rubrics, "rubric templates retrieved", fiber.Map{"count": len(rubrics)})
}

func (h *RubricHandler) get(c *fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	rubric, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err, "failed to load rubric")
	}
	return utils.SendSuccess(c, "rubric retrieved", rubric)
}

func (h *RubricHandler) create(c *fiber.Ctx) error {
	var payload dto.RubricCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	rubric, err := h.service.Create(c.UserContext(), payload, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err, "failed to create rubric")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "rubric created", rubric)
}

func (h *RubricHandler) update(c *fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.RubricUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	rubric, err := h.service.Update(c.UserContext(), id, payload)
	if err != nil {
		return h.handleError(c, err, "failed to update rubric")
	}
	return utils.SendSuccess(c, "rubric updated", rubric)
}

func (h *RubricHandler) duplicate(c *fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.RubricDuplicateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	rubric, err := h.service.Duplicate(c.UserContext(), id, payload, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err, "failed to duplicate rubric")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "rubric duplicated", rubric)
}

func (h *RubricHandler) delete(c *fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return h.handleError(c, err, "failed to delete rubric")
	}
	return utils.SendSuccess(c, "rubric deleted", nil)
}

func (h *RubricHandler) handleError(c *fiber.Ctx, err error, message string) error {
	if handled, resp := sendValidationError(c, err); handled {
		return resp
	}

	switch {
	case errors.Is(err, service.ErrRubricNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "rubric not found")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(message)
		return utils.SendError(c, fiber.StatusInternalServerError, message)
	}
}
