package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/gema-rubric-api/internal/dto"
	"github.com/noah-isme/gema-rubric-api/internal/events"
	"github.com/noah-isme/gema-rubric-api/internal/models"
	"github.com/noah-isme/gema-rubric-api/internal/observability"
	"github.com/noah-isme/gema-rubric-api/internal/repository"
	"github.com/noah-isme/gema-rubric-api/internal/validation"
)

// ErrRubricNotFound indicates the rubric was not located.
var ErrRubricNotFound = errors.New("rubric not found")

// RubricService exposes rubric authoring operations.
type RubricService interface {
	Create(ctx context.Context, payload dto.RubricCreateRequest, actorID string) (dto.RubricResponse, error)
	Get(ctx context.Context, id string) (dto.RubricResponse, error)
	ListByProject(ctx context.Context, projectID string) ([]dto.RubricResponse, error)
	ListByCreator(ctx context.Context, userID string) ([]dto.RubricResponse, error)
	ListTemplates(ctx context.Context) ([]dto.RubricResponse, error)
	Update(ctx context.Context, id string, payload dto.RubricUpdateRequest) (dto.RubricResponse, error)
	Duplicate(ctx context.Context, id string, payload dto.RubricDuplicateRequest, actorID string) (dto.RubricResponse, error)
	Delete(ctx context.Context, id string) error
}

type rubricService struct {
	repo      repository.RubricRepository
	validator *validation.Validator
	publisher events.Publisher
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewRubricService constructs the rubric service.
func NewRubricService(repo repository.RubricRepository, validator *validation.Validator, publisher events.Publisher, logger zerolog.Logger) RubricService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &rubricService{
		repo:      repo,
		validator: validator,
		publisher: publisher,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "rubric_service").Logger(),
	}
}

func (s *rubricService) Create(ctx context.Context, payload dto.RubricCreateRequest, actorID string) (dto.RubricResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RubricResponse{}, err
	}

	rubric, err := s.repo.Create(ctx, models.Rubric{
		Name:        strings.TrimSpace(payload.Name),
		Description: s.sanitize(payload.Description),
		ProjectID:   payload.ProjectID,
		CreatedBy:   actorID,
		Criteria:    s.sanitizeCriteria(dto.ToCriteriaModels(payload.Criteria)),
		IsTemplate:  payload.IsTemplate,
		Status:      models.RubricStatus(payload.Status),
	})
	if err != nil {
		return dto.RubricResponse{}, err
	}

	observability.RubricOperations().WithLabelValues("create").Inc()
	s.logger.Info().Str("rubric_id", rubric.ID).Str("created_by", actorID).Msg("rubric created")

	return dto.NewRubricResponse(rubric), nil
}

func (s *rubricService) Get(ctx context.Context, id string) (dto.RubricResponse, error) {
	rubric, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.RubricResponse{}, mapRubricError(err)
	}
	return dto.NewRubricResponse(rubric), nil
}

func (s *rubricService) ListByProject(ctx context.Context, projectID string) ([]dto.RubricResponse, error) {
	rubrics, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return dto.NewRubricResponseSlice(rubrics), nil
}

func (s *rubricService) ListByCreator(ctx context.Context, userID string) ([]dto.RubricResponse, error) {
	rubrics, err := s.repo.ListByCreator(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewRubricResponseSlice(rubrics), nil
}

func (s *rubricService) ListTemplates(ctx context.Context) ([]dto.RubricResponse, error) {
	rubrics, err := s.repo.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewRubricResponseSlice(rubrics), nil
}

func (s *rubricService) Update(ctx context.Context, id string, payload dto.RubricUpdateRequest) (dto.RubricResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RubricResponse{}, err
	}

	patch := repository.RubricPatch{
		ProjectID:  payload.ProjectID,
		IsTemplate: payload.IsTemplate,
	}
	if payload.Name != nil {
		name := strings.TrimSpace(*payload.Name)
		patch.Name = &name
	}
	if payload.Description != nil {
		description := s.sanitize(*payload.Description)
		patch.Description = &description
	}
	if payload.Criteria != nil {
		criteria := s.sanitizeCriteria(dto.ToCriteriaModels(*payload.Criteria))
		patch.Criteria = &criteria
	}
	if payload.Status != nil {
		status := models.RubricStatus(*payload.Status)
		patch.Status = &status
	}

	rubric, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return dto.RubricResponse{}, mapRubricError(err)
	}

	observability.RubricOperations().WithLabelValues("update").Inc()
	return dto.NewRubricResponse(rubric), nil
}

func (s *rubricService) Duplicate(ctx context.Context, id string, payload dto.RubricDuplicateRequest, actorID string) (dto.RubricResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-rubric-api/internal/service/rubric")
	ctx, span := tracer.Start(ctx, "rubric.duplicate")
	span.SetAttributes(
		attribute.String("rubric.source_id", id),
		attribute.String("rubric.actor_id", actorID),
	)
	defer span.End()

	duplicate, err := s.repo.Duplicate(ctx, id, repository.DuplicateOptions{
		Name:       payload.Name,
		ProjectID:  payload.ProjectID,
		CreatedBy:  actorID,
		IsTemplate: payload.IsTemplate,
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, repository.ErrNotFound) {
			span.SetStatus(codes.Error, "rubric_not_found")
			return dto.RubricResponse{}, ErrRubricNotFound
		}
		span.SetStatus(codes.Error, "rubric_duplicate_failed")
		return dto.RubricResponse{}, err
	}

	span.SetAttributes(attribute.String("rubric.copy_id", duplicate.ID))
	observability.RubricOperations().WithLabelValues("duplicate").Inc()
	s.logger.Info().Str("source_id", id).Str("rubric_id", duplicate.ID).Msg("rubric duplicated")

	return dto.NewRubricResponse(duplicate), nil
}

func (s *rubricService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRubricError(err)
	}

	observability.RubricOperations().WithLabelValues("delete").Inc()

	payload := map[string]interface{}{"rubric_id": id, "deleted_at": time.Now().UTC()}
	if err := s.publisher.Publish(ctx, events.RubricDeleted, payload); err != nil {
		s.logger.Warn().Err(err).Str("rubric_id", id).Msg("failed to publish rubric deletion")
	}

	return nil
}

func (s *rubricService) sanitize(value string) string {
	return plainText(s.sanitizer, value)
}

func (s *rubricService) sanitizeCriteria(criteria []models.Criterion) []models.Criterion {
	for i := range criteria {
		criteria[i].Name = strings.TrimSpace(criteria[i].Name)
		criteria[i].Description = s.sanitize(criteria[i].Description)
		for j := range criteria[i].Levels {
			criteria[i].Levels[j].Description = s.sanitize(criteria[i].Levels[j].Description)
		}
	}
	return criteria
}

func mapRubricError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrRubricNotFound
	}
	return err
}
