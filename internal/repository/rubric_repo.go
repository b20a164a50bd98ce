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

const rubricCollection = "rubrics"

// RubricKey returns the primary key of a rubric.
// Pattern: rubrics:{rubric_id}
func RubricKey(id string) kv.Key {
	return kv.NewKey(rubricCollection, id)
}

// RubricProjectIndexKey returns the project index entry of a rubric.
// Pattern: rubrics:by_project:{project_id}:{rubric_id}
func RubricProjectIndexKey(projectID, id string) kv.Key {
	return rubricProjectIndex(projectID).Append(id)
}

func rubricProjectIndex(projectID string) kv.Key {
	return kv.NewKey(rubricCollection, "by_project", projectID)
}

// RubricCreatorIndexKey returns the creator index entry of a rubric.
// Pattern: rubrics:by_creator:{user_id}:{rubric_id}
func RubricCreatorIndexKey(userID, id string) kv.Key {
	return rubricCreatorIndex(userID).Append(id)
}

func rubricCreatorIndex(userID string) kv.Key {
	return kv.NewKey(rubricCollection, "by_creator", userID)
}

// RubricTemplateIndexKey returns the template index entry of a rubric.
// Pattern: rubrics:templates:{rubric_id}
func RubricTemplateIndexKey(id string) kv.Key {
	return rubricTemplateIndex.Append(id)
}

var rubricTemplateIndex = kv.NewKey(rubricCollection, "templates")

// RubricPatch carries the fields to merge into an existing rubric. Nil fields are left untouched.
// A ProjectID pointing at an empty string detaches the rubric from its project.
type RubricPatch struct {
	Name        *string
	Description *string
	ProjectID   *string
	Criteria    *[]models.Criterion
	IsTemplate  *bool
	Status      *models.RubricStatus
}

// DuplicateOptions describes the identity of a duplicated rubric.
type DuplicateOptions struct {
	Name       string
	ProjectID  *string
	CreatedBy  string
	IsTemplate bool
}

// RubricRepository persists rubrics and maintains their secondary indexes.
type RubricRepository interface {
	Create(ctx context.Context, rubric models.Rubric) (models.Rubric, error)
	GetByID(ctx context.Context, id string) (models.Rubric, error)
	ListByProject(ctx context.Context, projectID string) ([]models.Rubric, error)
	ListByCreator(ctx context.Context, userID string) ([]models.Rubric, error)
	ListTemplates(ctx context.Context) ([]models.Rubric, error)
	Update(ctx context.Context, id string, patch RubricPatch) (models.Rubric, error)
	Duplicate(ctx context.Context, id string, opts DuplicateOptions) (models.Rubric, error)
	Delete(ctx context.Context, id string) error
}

type rubricRepository struct {
	store     kv.Store
	validator *validation.Validator
	opts      Options
}

// NewRubricRepository instantiates the repository.
func NewRubricRepository(store kv.Store, validator *validation.Validator, opts Options) RubricRepository {
	return &rubricRepository{store: store, validator: validator, opts: opts.withDefaults()}
}

func (r *rubricRepository) Create(ctx context.Context, rubric models.Rubric) (models.Rubric, error) {
	now := r.opts.Now()
	rubric.ID = r.opts.NewID()
	rubric.CreatedAt = now
	rubric.UpdatedAt = now
	if rubric.Status == "" {
		rubric.Status = models.RubricStatusDraft
	}
	rubric.ProjectID = normalizeProjectID(rubric.ProjectID)
	rubric.Criteria = rubric.CloneCriteria()
	r.assignCriterionIDs(rubric.Criteria)

	if err := r.validator.Struct(rubric); err != nil {
		return models.Rubric{}, err
	}

	payload, err := json.Marshal(rubric)
	if err != nil {
		return models.Rubric{}, fmt.Errorf("failed to encode rubric: %w", err)
	}

	batch := kv.NewBatch().Set(RubricKey(rubric.ID), payload)
	if !rubric.IsGlobal() {
		batch.Set(RubricProjectIndexKey(*rubric.ProjectID, rubric.ID), indexValue(rubric.ID))
	}
	batch.Set(RubricCreatorIndexKey(rubric.CreatedBy, rubric.ID), indexValue(rubric.ID))
	if rubric.IsTemplate {
		batch.Set(RubricTemplateIndexKey(rubric.ID), indexValue(rubric.ID))
	}

	if err := r.store.Commit(ctx, batch); err != nil {
		return models.Rubric{}, err
	}

	return rubric, nil
}

func (r *rubricRepository) GetByID(ctx context.Context, id string) (models.Rubric, error) {
	if strings.TrimSpace(id) == "" {
		return models.Rubric{}, ErrNotFound
	}
	return loadJSON[models.Rubric](ctx, r.store, RubricKey(id))
}

func (r *rubricRepository) ListByProject(ctx context.Context, projectID string) ([]models.Rubric, error) {
	return resolveIndex[models.Rubric](ctx, r.store, rubricProjectIndex(projectID), RubricKey)
}

func (r *rubricRepository) ListByCreator(ctx context.Context, userID string) ([]models.Rubric, error) {
	return resolveIndex[models.Rubric](ctx, r.store, rubricCreatorIndex(userID), RubricKey)
}

func (r *rubricRepository) ListTemplates(ctx context.Context) ([]models.Rubric, error) {
	return resolveIndex[models.Rubric](ctx, r.store, rubricTemplateIndex, RubricKey)
}

func (r *rubricRepository) Update(ctx context.Context, id string, patch RubricPatch) (models.Rubric, error) {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return models.Rubric{}, err
	}

	updated := existing
	if patch.Name != nil {
		updated.Name = *patch.Name
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	if patch.ProjectID != nil {
		updated.ProjectID = normalizeProjectID(patch.ProjectID)
	}
	if patch.Criteria != nil {
		updated.Criteria = models.Rubric{Criteria: *patch.Criteria}.CloneCriteria()
		r.assignCriterionIDs(updated.Criteria)
	}
	if patch.IsTemplate != nil {
		updated.IsTemplate = *patch.IsTemplate
	}
	if patch.Status != nil {
		updated.Status = *patch.Status
	}
	updated.UpdatedAt = r.opts.Now()

	if err := r.validator.Struct(updated); err != nil {
		return models.Rubric{}, err
	}

	payload, err := json.Marshal(updated)
	if err != nil {
		return models.Rubric{}, fmt.Errorf("failed to encode rubric: %w", err)
	}

	batch := kv.NewBatch().Set(RubricKey(updated.ID), payload)

	if updated.IsTemplate != existing.IsTemplate {
		if updated.IsTemplate {
			batch.Set(RubricTemplateIndexKey(updated.ID), indexValue(updated.ID))
		} else {
			batch.Delete(RubricTemplateIndexKey(updated.ID))
		}
	}

	if projectKey(existing.ProjectID) != projectKey(updated.ProjectID) {
		if !existing.IsGlobal() {
			batch.Delete(RubricProjectIndexKey(*existing.ProjectID, updated.ID))
		}
		if !updated.IsGlobal() {
			batch.Set(RubricProjectIndexKey(*updated.ProjectID, updated.ID), indexValue(updated.ID))
		}
	}

	if err := r.store.Commit(ctx, batch); err != nil {
		return models.Rubric{}, err
	}

	return updated, nil
}

func (r *rubricRepository) Duplicate(ctx context.Context, id string, opts DuplicateOptions) (models.Rubric, error) {
	source, err := r.GetByID(ctx, id)
	if err != nil {
		return models.Rubric{}, err
	}

	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = source.Name + " (copy)"
	}

	criteria := source.CloneCriteria()
	for i := range criteria {
		criteria[i].ID = ""
		for j := range criteria[i].Levels {
			criteria[i].Levels[j].ID = ""
		}
	}

	return r.Create(ctx, models.Rubric{
		Name:        name,
		Description: source.Description,
		ProjectID:   opts.ProjectID,
		CreatedBy:   opts.CreatedBy,
		Criteria:    criteria,
		IsTemplate:  opts.IsTemplate,
		Status:      models.RubricStatusDraft,
	})
}

func (r *rubricRepository) Delete(ctx context.Context, id string) error {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	batch := kv.NewBatch().Delete(RubricKey(existing.ID))
	if !existing.IsGlobal() {
		batch.Delete(RubricProjectIndexKey(*existing.ProjectID, existing.ID))
	}
	batch.Delete(RubricCreatorIndexKey(existing.CreatedBy, existing.ID))
	if existing.IsTemplate {
		batch.Delete(RubricTemplateIndexKey(existing.ID))
	}

	return r.store.Commit(ctx, batch)
}

func (r *rubricRepository) assignCriterionIDs(criteria []models.Criterion) {
	for i := range criteria {
		if criteria[i].ID == "" {
			criteria[i].ID = r.opts.NewID()
		}
		for j := range criteria[i].Levels {
			if criteria[i].Levels[j].ID == "" {
				criteria[i].Levels[j].ID = r.opts.NewID()
			}
		}
	}
}

func normalizeProjectID(projectID *string) *string {
	if projectID == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*projectID)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func projectKey(projectID *string) string {
	if projectID == nil {
		return ""
	}
	return *projectID
}
