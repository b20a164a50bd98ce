package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

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
	"github.com/noah-isme/gema-rubric-api/internal/scoring"
	"github.com/noah-isme/gema-rubric-api/internal/validation"
)

var (
	// ErrEvaluationNotFound indicates the evaluation was not located.
	ErrEvaluationNotFound = errors.New("evaluation not found")
	// ErrCannotFinalize wraps the missing record that prevented a finalize.
	ErrCannotFinalize = errors.New("cannot finalize evaluation")
)

// EvaluationService coordinates scoring of deliverables against rubrics.
type EvaluationService interface {
	Create(ctx context.Context, payload dto.EvaluationCreateRequest, evaluatorID string) (dto.EvaluationResponse, error)
	Get(ctx context.Context, id string) (dto.EvaluationResponse, error)
	ListByDeliverable(ctx context.Context, deliverableID string) ([]dto.EvaluationResponse, error)
	ListByStudent(ctx context.Context, studentID string) ([]dto.EvaluationResponse, error)
	ListByEvaluator(ctx context.Context, evaluatorID string) ([]dto.EvaluationResponse, error)
	Update(ctx context.Context, id string, payload dto.EvaluationUpdateRequest) (dto.EvaluationResponse, error)
	Delete(ctx context.Context, id string) error
	Finalize(ctx context.Context, id string) (dto.EvaluationResponse, error)
	CalculateScore(ctx context.Context, id string) (dto.EvaluationResponse, error)
	SummarizeDeliverable(ctx context.Context, deliverableID string) (dto.DeliverableEvaluationSummary, error)
}

type evaluationService struct {
	evaluations repository.EvaluationRepository
	rubrics     repository.RubricRepository
	validator   *validation.Validator
	publisher   events.Publisher
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
}

// NewEvaluationService constructs the evaluation service.
func NewEvaluationService(evaluations repository.EvaluationRepository, rubrics repository.RubricRepository, validator *validation.Validator, publisher events.Publisher, logger zerolog.Logger) EvaluationService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &evaluationService{
		evaluations: evaluations,
		rubrics:     rubrics,
		validator:   validator,
		publisher:   publisher,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "evaluation_service").Logger(),
	}
}

func (s *evaluationService) Create(ctx context.Context, payload dto.EvaluationCreateRequest, evaluatorID string) (dto.EvaluationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EvaluationResponse{}, err
	}

	rubric, err := s.rubrics.GetByID(ctx, payload.RubricID)
	if err != nil {
		return dto.EvaluationResponse{}, mapRubricError(err)
	}

	criteria := s.sanitizeCriteria(dto.ToCriterionEvaluationModels(payload.CriteriaEvaluations))
	totals := scoring.Recompute(criteria, rubric)

	evaluation, err := s.evaluations.Create(ctx, models.Evaluation{
		DeliverableID:       strings.TrimSpace(payload.DeliverableID),
		EvaluatorID:         evaluatorID,
		StudentID:           strings.TrimSpace(payload.StudentID),
		RubricID:            rubric.ID,
		CriteriaEvaluations: criteria,
		OverallFeedback:     s.sanitize(payload.OverallFeedback),
		TotalScore:          totals.TotalScore,
		MaxPossibleScore:    totals.MaxPossibleScore,
		Status:              models.EvaluationStatusDraft,
	})
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	s.logger.Info().
		Str("evaluation_id", evaluation.ID).
		Str("deliverable_id", evaluation.DeliverableID).
		Str("evaluator_id", evaluatorID).
		Msg("evaluation created")

	return dto.NewEvaluationResponse(evaluation), nil
}

func (s *evaluationService) Get(ctx context.Context, id string) (dto.EvaluationResponse, error) {
	evaluation, err := s.evaluations.GetByID(ctx, id)
	if err != nil {
		return dto.EvaluationResponse{}, mapEvaluationError(err)
	}
	return dto.NewEvaluationResponse(evaluation), nil
}

func (s *evaluationService) ListByDeliverable(ctx context.Context, deliverableID string) ([]dto.EvaluationResponse, error) {
	evaluations, err := s.evaluations.ListByDeliverable(ctx, deliverableID)
	if err != nil {
		return nil, err
	}
	return dto.NewEvaluationResponseSlice(evaluations), nil
}

func (s *evaluationService) ListByStudent(ctx context.Context, studentID string) ([]dto.EvaluationResponse, error) {
	evaluations, err := s.evaluations.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return dto.NewEvaluationResponseSlice(evaluations), nil
}

func (s *evaluationService) ListByEvaluator(ctx context.Context, evaluatorID string) ([]dto.EvaluationResponse, error) {
	evaluations, err := s.evaluations.ListByEvaluator(ctx, evaluatorID)
	if err != nil {
		return nil, err
	}
	return dto.NewEvaluationResponseSlice(evaluations), nil
}

// Update edits scores and feedback. Status only changes through Finalize.
func (s *evaluationService) Update(ctx context.Context, id string, payload dto.EvaluationUpdateRequest) (dto.EvaluationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.EvaluationResponse{}, err
	}

	var patch repository.EvaluationPatch
	if payload.CriteriaEvaluations != nil {
		criteria := s.sanitizeCriteria(dto.ToCriterionEvaluationModels(*payload.CriteriaEvaluations))
		patch.CriteriaEvaluations = &criteria
	}
	if payload.OverallFeedback != nil {
		feedback := s.sanitize(*payload.OverallFeedback)
		patch.OverallFeedback = &feedback
	}

	evaluation, err := s.evaluations.Update(ctx, id, patch)
	if err != nil {
		return dto.EvaluationResponse{}, mapEvaluationError(err)
	}

	return dto.NewEvaluationResponse(evaluation), nil
}

func (s *evaluationService) Delete(ctx context.Context, id string) error {
	if err := s.evaluations.Delete(ctx, id); err != nil {
		return mapEvaluationError(err)
	}
	s.logger.Info().Str("evaluation_id", id).Msg("evaluation deleted")
	return nil
}

func (s *evaluationService) Finalize(ctx context.Context, id string) (dto.EvaluationResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-rubric-api/internal/service/evaluation")
	ctx, span := tracer.Start(ctx, "evaluation.finalize")
	span.SetAttributes(attribute.String("evaluation.id", id))
	defer span.End()

	evaluation, err := s.evaluations.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, repository.ErrNotFound) {
			span.SetStatus(codes.Error, "evaluation_not_found")
			return dto.EvaluationResponse{}, fmt.Errorf("%w: %w", ErrCannotFinalize, ErrEvaluationNotFound)
		}
		span.SetStatus(codes.Error, "evaluation_lookup_failed")
		return dto.EvaluationResponse{}, err
	}

	if evaluation.IsCompleted() {
		span.SetAttributes(attribute.Bool("evaluation.idempotent", true))
		return dto.NewEvaluationResponse(evaluation), nil
	}

	rubric, err := s.rubrics.GetByID(ctx, evaluation.RubricID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, repository.ErrNotFound) {
			span.SetStatus(codes.Error, "rubric_not_found")
			return dto.EvaluationResponse{}, fmt.Errorf("%w: %w", ErrCannotFinalize, ErrRubricNotFound)
		}
		span.SetStatus(codes.Error, "rubric_lookup_failed")
		return dto.EvaluationResponse{}, err
	}

	totals := scoring.Recompute(evaluation.CriteriaEvaluations, rubric)
	status := models.EvaluationStatusCompleted
	finalized, err := s.evaluations.Update(ctx, id, repository.EvaluationPatch{
		TotalScore:       &totals.TotalScore,
		MaxPossibleScore: &totals.MaxPossibleScore,
		Status:           &status,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation_update_failed")
		return dto.EvaluationResponse{}, mapEvaluationError(err)
	}

	response := dto.NewEvaluationResponse(finalized)
	span.SetAttributes(
		attribute.Float64("evaluation.total_score", totals.TotalScore),
		attribute.Int("evaluation.max_possible_score", totals.MaxPossibleScore),
		attribute.Int("evaluation.dropped_criteria", totals.Dropped),
		attribute.String("evaluation.tier", response.Tier),
	)
	observability.EvaluationsFinalized().WithLabelValues(response.Tier).Inc()

	if totals.Dropped > 0 {
		s.logger.Warn().Str("evaluation_id", id).Int("dropped", totals.Dropped).Msg("criterion evaluations no longer on rubric were excluded")
	}

	if err := s.publisher.Publish(ctx, events.EvaluationFinalized, response); err != nil {
		s.logger.Warn().Err(err).Str("evaluation_id", id).Msg("failed to publish evaluation finalized event")
	}

	return response, nil
}

func (s *evaluationService) CalculateScore(ctx context.Context, id string) (dto.EvaluationResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-rubric-api/internal/service/evaluation")
	ctx, span := tracer.Start(ctx, "evaluation.calculate_score")
	span.SetAttributes(attribute.String("evaluation.id", id))
	defer span.End()

	evaluation, err := s.evaluations.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation_lookup_failed")
		return dto.EvaluationResponse{}, mapEvaluationError(err)
	}

	rubric, err := s.rubrics.GetByID(ctx, evaluation.RubricID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rubric_lookup_failed")
		return dto.EvaluationResponse{}, mapRubricError(err)
	}

	totals := scoring.Recompute(evaluation.CriteriaEvaluations, rubric)
	updated, err := s.evaluations.Update(ctx, id, repository.EvaluationPatch{
		TotalScore:       &totals.TotalScore,
		MaxPossibleScore: &totals.MaxPossibleScore,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation_update_failed")
		return dto.EvaluationResponse{}, mapEvaluationError(err)
	}

	span.SetAttributes(
		attribute.Float64("evaluation.total_score", totals.TotalScore),
		attribute.Int("evaluation.max_possible_score", totals.MaxPossibleScore),
	)

	return dto.NewEvaluationResponse(updated), nil
}

func (s *evaluationService) SummarizeDeliverable(ctx context.Context, deliverableID string) (dto.DeliverableEvaluationSummary, error) {
	evaluations, err := s.evaluations.ListByDeliverable(ctx, deliverableID)
	if err != nil {
		return dto.DeliverableEvaluationSummary{}, err
	}

	summary := dto.DeliverableEvaluationSummary{
		DeliverableID: deliverableID,
		TierCounts:    make(map[string]int, len(scoring.Tiers)),
	}
	for _, tier := range scoring.Tiers {
		summary.TierCounts[string(tier)] = 0
	}

	totalPercent := 0
	for _, evaluation := range evaluations {
		if !evaluation.IsCompleted() {
			summary.Drafts++
			continue
		}
		percent, tier := scoring.ClassifyScore(evaluation.TotalScore, float64(evaluation.MaxPossibleScore))
		summary.Completed++
		summary.TierCounts[string(tier)]++
		totalPercent += percent
	}

	if summary.Completed > 0 {
		average := float64(totalPercent) / float64(summary.Completed)
		summary.AveragePercentage = math.Round(average*100) / 100
	}

	return summary, nil
}

func (s *evaluationService) sanitize(value string) string {
	return plainText(s.sanitizer, value)
}

func (s *evaluationService) sanitizeCriteria(items []models.CriterionEvaluation) []models.CriterionEvaluation {
	for i := range items {
		items[i].CriterionID = strings.TrimSpace(items[i].CriterionID)
		items[i].Feedback = s.sanitize(items[i].Feedback)
	}
	return items
}

func mapEvaluationError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrEvaluationNotFound
	}
	return err
}
