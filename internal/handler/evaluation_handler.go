package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-rubric-api/internal/dto"
	"github.com/noah-isme/gema-rubric-api/internal/middleware"
	"github.com/noah-isme/gema-rubric-api/internal/models"
	"github.com/noah-isme/gema-rubric-api/internal/service"
	"github.com/noah-isme/gema-rubric-api/internal/utils"
)

const (
	finalizeRateLimit  = 30
	finalizeRateWindow = time.Minute
)

// EvaluationHandler exposes scoring endpoints for evaluators and read access for students.
type EvaluationHandler struct {
	service service.EvaluationService
	logger  zerolog.Logger
}

// NewEvaluationHandler constructs the handler.
func NewEvaluationHandler(service service.EvaluationService, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service: service,
		logger:  logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register attaches evaluation endpoints to the router group.
func (h *EvaluationHandler) Register(router fiber.Router) {
	readers := middleware.RequireRole(roleStudent, roleTeacher, roleAdmin)
	staffOnly := middleware.RequireRole(roleTeacher, roleAdmin)
	finalizeLimiter := middleware.RateLimit("evaluation_finalize", finalizeRateLimit, finalizeRateWindow)

	router.Get("/", readers, h.list)
	router.Get("/summary", staffOnly, h.summary)
	router.Get("/:id", readers, h.get)
	router.Post("/", staffOnly, h.create)
	router.Patch("/:id", staffOnly, h.update)
	router.Delete("/:id", staffOnly, h.delete)
	router.Post("/:id/finalize", staffOnly, finalizeLimiter, h.finalize)
	router.Post("/:id/calculate-score", staffOnly, h.calculateScore)
}

func (h *EvaluationHandler) list(c *fiber.Ctx) error {
	var filter dto.EvaluationListFilter
	if err := c.QueryParser(&filter); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}
	filter.DeliverableID = strings.TrimSpace(filter.DeliverableID)
	filter.StudentID = strings.TrimSpace(filter.StudentID)
	filter.EvaluatorID = strings.TrimSpace(filter.EvaluatorID)

	role := userRoleFromContext(c)
	userID := userIDFromContext(c)

	if !isStaff(role) {
		if filter.StudentID != "" && filter.StudentID != userID {
			return h.handleError(c, errForbidden, "")
		}
		evaluations, err := h.service.ListByStudent(c.UserContext(), userID)
		if err != nil {
			return h.handleError(c, err, "failed to list evaluations")
		}
		visible := make([]dto.EvaluationResponse, 0, len(evaluations))
		for _, evaluation := range evaluations {
			if evaluation.Status == string(models.EvaluationStatusCompleted) && matchesFilter(evaluation, filter) {
				visible = append(visible, evaluation)
			}
		}
		return utils.OK(c, visible, "evaluations retrieved", fiber.Map{"count": len(visible)})
	}

	var (
		evaluations []dto.EvaluationResponse
		err         error
	)
	switch {
	case filter.DeliverableID != "":
		evaluations, err = h.service.ListByDeliverable(c.UserContext(), filter.DeliverableID)
	case filter.StudentID != "":
		evaluations, err = h.service.ListByStudent(c.UserContext(), filter.StudentID)
	case filter.EvaluatorID != "":
		evaluations, err = h.service.ListByEvaluator(c.UserContext(), filter.EvaluatorID)
	default:
		evaluations, err = h.service.ListByEvaluator(c.UserContext(), userID)
	}
	if err != nil {
		return h.handleError(c, err, "failed to list evaluations")
	}

	// the index picks the candidates, the remaining filters narrow them
	matched := make([]dto.EvaluationResponse, 0, len(evaluations))
	for _, evaluation := range evaluations {
		if matchesFilter(evaluation, filter) {
			matched = append(matched, evaluation)
		}
	}

	return utils.OK(c, matched, "evaluations retrieved", fiber.Map{"count": len(matched)})
}

func matchesFilter(evaluation dto.EvaluationResponse, filter dto.EvaluationListFilter) bool {
	if filter.DeliverableID != "" && evaluation.DeliverableID != filter.DeliverableID {
		return false
	}
	if filter.StudentID != "" && evaluation.StudentID != filter.StudentID {
		return false
	}
	if filter.EvaluatorID != "" && evaluation.EvaluatorID != filter.EvaluatorID {
		return false
	}
	return true
}

func (h *EvaluationHandler) summary(c *fiber.Ctx) error {
	deliverableID := strings.TrimSpace(c.Query("deliverable_id"))
	if deliverableID == "" {
		return utils.Fail(c, fiber.StatusBadRequest, "validation failed", map[string]string{"deliverable_id": "deliverable_id is required"})
	}

	summary, err := h.service.SummarizeDeliverable(c.UserContext(), deliverableID)
	if err != nil {
		return h.handleError(c, err, "failed to summarize evaluations")
	}
	return utils.SendSuccess(c, "evaluation summary retrieved", summary)
}

func (h *EvaluationHandler) get(c *fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	evaluation, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err, "failed to load evaluation")
	}

	if !isStaff(userRoleFromContext(c)) {
		if evaluation.StudentID != userIDFromContext(c) || evaluation.Status != string(models.EvaluationStatusCompleted) {
			return h.handleError(c, errForbidden, "")
		}
	}

	return utils.SendSuccess(c, "evaluation retrieved", evaluation)
}

func (h *EvaluationHandler) create(c *fiber.Ctx) error {
	var payload dto.EvaluationCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	evaluation, err := h.service.Create(c.UserContext(), payload, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err, "failed to create evaluation")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "evaluation created", evaluation)
}

func (h *EvaluationHandler) update(c *fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.EvaluationUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if err := h.authorizeCompletedChange(c, id); err != nil {
		return h.handleError(c, err, "failed to load evaluation")
	}

	evaluation, err := h.service.Update(c.UserContext(), id, payload)
	if err != nil {
		return h.handleError(c, err, "failed to update evaluation")
	}
	return utils.SendSuccess(c, "evaluation updated", evaluation)
}

func (h *EvaluationHandler) delete(c *fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	if err := h.authorizeCompletedChange(c, id); err != nil {
		return h.handleError(c, err, "failed to load evaluation")
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return h.handleError(c, err, "failed to delete evaluation")
	}
	return utils.SendSuccess(c, "evaluation deleted", nil)
}

func (h *EvaluationHandler) finalize(c *fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	evaluation, err := h.service.Finalize(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err, "failed to finalize evaluation")
	}

	requestLogger(h.logger, c).Info().
		Str("evaluation_id", evaluation.ID).
		Str("tier", evaluation.Tier).
		Msg("evaluation finalized")

	return utils.SendSuccess(c, "evaluation finalized", evaluation)
}

func (h *EvaluationHandler) calculateScore(c *fiber.Ctx) error {
	id, ok := idParam(c)
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	evaluation, err := h.service.CalculateScore(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err, "failed to calculate score")
	}
	return utils.SendSuccess(c, "evaluation score recalculated", evaluation)
}

// authorizeCompletedChange only lets admins modify evaluations that were already finalized.
func (h *EvaluationHandler) authorizeCompletedChange(c *fiber.Ctx, id string) error {
	if userRoleFromContext(c) == roleAdmin {
		return nil
	}

	evaluation, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	if evaluation.Status == string(models.EvaluationStatusCompleted) {
		return errForbidden
	}
	return nil
}

func (h *EvaluationHandler) handleError(c *fiber.Ctx, err error, message string) error {
	if handled, resp := sendValidationError(c, err); handled {
		return resp
	}

	switch {
	case errors.Is(err, errForbidden):
		return utils.SendError(c, fiber.StatusForbidden, errForbidden.Error())
	case errors.Is(err, service.ErrCannotFinalize):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrEvaluationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "evaluation not found")
	case errors.Is(err, service.ErrRubricNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "rubric not found")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(message)
		return utils.SendError(c, fiber.StatusInternalServerError, message)
	}
}
