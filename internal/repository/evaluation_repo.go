package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noah-isme/gema-rubric-api/internal/kv"
	"github.com/noah-isme/gema-rubric-api/internal/models"
	"github.com/noah-isme/gema-rubric-api/internal/validation"
)

const evaluationCollection = "evaluations"

// EvaluationKey returns the primary key of an evaluation.
// Pattern: evaluations:{evaluation_id}
func EvaluationKey(id string) kv.Key {
	return kv.NewKey(evaluationCollection, id)
}

// EvaluationDeliverableIndexKey pattern: evaluations:by_deliverable:{deliverable_id}:{evaluation_id}
func EvaluationDeliverableIndexKey(deliverableID, id string) kv.Key {
	return evaluationIndex("by_deliverable", deliverableID).Append(id)
}

// EvaluationStudentIndexKey pattern: evaluations:by_student:{student_id}:{evaluation_id}
func EvaluationStudentIndexKey(studentID, id string) kv.Key {
	return evaluationIndex("by_student", studentID).Append(id)
}

// EvaluationEvaluatorIndexKey pattern: evaluations:by_evaluator:{evaluator_id}:{evaluation_id}
func EvaluationEvaluatorIndexKey(evaluatorID, id string) kv.Key {
	return evaluationIndex("by_evaluator", evaluatorID).Append(id)
}

func evaluationIndex(name, owner string) kv.Key {
	return kv.NewKey(evaluationCollection, name, owner)
}

// EvaluationPatch carries the fields to merge into an existing evaluation. Nil fields are left untouched.
type EvaluationPatch struct {
	CriteriaEvaluations *[]models.CriterionEvaluation
	OverallFeedback     *string
	TotalScore          *float64
	MaxPossibleScore    *int
	Status              *models.EvaluationStatus
}

// EvaluationRepository persists evaluations and maintains their secondary indexes.
type EvaluationRepository interface {
	Create(ctx context.Context, evaluation models.Evaluation) (models.Evaluation, error)
	GetByID(ctx context.Context, id string) (models.Evaluation, error)
	ListByDeliverable(ctx context.Context, deliverableID string) ([]models.Evaluation, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Evaluation, error)
	ListByEvaluator(ctx context.Context, evaluatorID string) ([]models.Evaluation, error)
	Update(ctx context.Context, id string, patch EvaluationPatch) (models.Evaluation, error)
	Delete(ctx context.Context, id string) error
}

type evaluationRepository struct {
	store     kv.Store
	validator *validation.Validator
	opts      Options
}

// NewEvaluationRepository instantiates the repository.
func NewEvaluationRepository(store kv.Store, validator *validation.Validator, opts Options) EvaluationRepository {
	return &evaluationRepository{store: store, validator: validator, opts: opts.withDefaults()}
}

func (r *evaluationRepository) Create(ctx context.Context, evaluation models.Evaluation) (models.Evaluation, error) {
	now := r.opts.Now()
	evaluation.ID = r.opts.NewID()
	evaluation.CreatedAt = now
	evaluation.UpdatedAt = now
	if evaluation.Status == "" {
		evaluation.Status = models.EvaluationStatusDraft
	}
	if evaluation.CriteriaEvaluations == nil {
		evaluation.CriteriaEvaluations = []models.CriterionEvaluation{}
	}

	if err := r.validator.Struct(evaluation); err != nil {
		return models.Evaluation{}, err
	}

	payload, err := json.Marshal(evaluation)
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("failed to encode evaluation: %w", err)
	}

	batch := kv.NewBatch().
		Set(EvaluationKey(evaluation.ID), payload).
		Set(EvaluationDeliverableIndexKey(evaluation.DeliverableID, evaluation.ID), indexValue(evaluation.ID)).
		Set(EvaluationStudentIndexKey(evaluation.StudentID, evaluation.ID), indexValue(evaluation.ID)).
		Set(EvaluationEvaluatorIndexKey(evaluation.EvaluatorID, evaluation.ID), indexValue(evaluation.ID))

	if err := r.store.Commit(ctx, batch); err != nil {
		return models.Evaluation{}, err
	}

	return evaluation, nil
}

func (r *evaluationRepository) GetByID(ctx context.Context, id string) (models.Evaluation, error) {
	if strings.TrimSpace(id) == "" {
		return models.Evaluation{}, ErrNotFound
	}
	return loadJSON[models.Evaluation](ctx, r.store, EvaluationKey(id))
}

func (r *evaluationRepository) ListByDeliverable(ctx context.Context, deliverableID string) ([]models.Evaluation, error) {
	return resolveIndex[models.Evaluation](ctx, r.store, evaluationIndex("by_deliverable", deliverableID), EvaluationKey)
}

func (r *evaluationRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Evaluation, error) {
	return resolveIndex[models.Evaluation](ctx, r.store, evaluationIndex("by_student", studentID), EvaluationKey)
}

func (r *evaluationRepository) ListByEvaluator(ctx context.Context, evaluatorID string) ([]models.Evaluation, error) {
	return resolveIndex[models.Evaluation](ctx, r.store, evaluationIndex("by_evaluator", evaluatorID), EvaluationKey)
}

func (r *evaluationRepository) Update(ctx context.Context, id string, patch EvaluationPatch) (models.Evaluation, error) {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return models.Evaluation{}, err
	}

	now := r.opts.Now()
	updated := existing
	if patch.CriteriaEvaluations != nil {
		updated.CriteriaEvaluations = append([]models.CriterionEvaluation{}, (*patch.CriteriaEvaluations)...)
	}
	if patch.OverallFeedback != nil {
		updated.OverallFeedback = *patch.OverallFeedback
	}
	if patch.TotalScore != nil {
		updated.TotalScore = *patch.TotalScore
	}
	if patch.MaxPossibleScore != nil {
		updated.MaxPossibleScore = *patch.MaxPossibleScore
	}
	if patch.Status != nil {
		updated.Status = *patch.Status
		if updated.Status == models.EvaluationStatusCompleted && existing.Status != models.EvaluationStatusCompleted {
			evaluatedAt := now
			updated.EvaluatedAt = &evaluatedAt
		}
	}
	updated.UpdatedAt = now

	if err := r.validator.Struct(updated); err != nil {
		return models.Evaluation{}, err
	}

	payload, err := json.Marshal(updated)
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("failed to encode evaluation: %w", err)
	}

	if err := r.store.Set(ctx, EvaluationKey(updated.ID), payload); err != nil {
		return models.Evaluation{}, err
	}

	return updated, nil
}

func (r *evaluationRepository) Delete(ctx context.Context, id string) error {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	batch := kv.NewBatch().
		Delete(EvaluationKey(existing.ID)).
		Delete(EvaluationDeliverableIndexKey(existing.DeliverableID, existing.ID)).
		Delete(EvaluationStudentIndexKey(existing.StudentID, existing.ID)).
		Delete(EvaluationEvaluatorIndexKey(existing.EvaluatorID, existing.ID))

	return r.store.Commit(ctx, batch)
}
