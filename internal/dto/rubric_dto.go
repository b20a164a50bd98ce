package dto

import (
	"time"

	"github.com/noah-isme/gema-rubric-api/internal/models"
)

// PerformanceLevelRequest describes one level in rubric payloads.
type PerformanceLevelRequest struct {
	ID          string  `json:"id"`
	Description string  `json:"description" validate:"required"`
	PointValue  float64 `json:"point_value" validate:"gte=0"`
}

// CriterionRequest describes one criterion in rubric payloads.
type CriterionRequest struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name" validate:"required"`
	Description string                    `json:"description"`
	MaxPoints   int                       `json:"max_points" validate:"gte=1"`
	Levels      []PerformanceLevelRequest `json:"levels" validate:"min=1,dive"`
}

// RubricCreateRequest is the payload for creating a rubric.
type RubricCreateRequest struct {
	Name        string             `json:"name" validate:"required"`
	Description string             `json:"description"`
	ProjectID   *string            `json:"project_id"`
	Criteria    []CriterionRequest `json:"criteria" validate:"min=1,dive"`
	IsTemplate  bool               `json:"is_template"`
	Status      string             `json:"status" validate:"omitempty,oneof=draft active archived"`
}

// RubricUpdateRequest is the partial payload for updating a rubric.
type RubricUpdateRequest struct {
	Name        *string             `json:"name" validate:"omitempty,min=1"`
	Description *string             `json:"description"`
	ProjectID   *string             `json:"project_id"`
	Criteria    *[]CriterionRequest `json:"criteria" validate:"omitempty,min=1,dive"`
	IsTemplate  *bool               `json:"is_template"`
	Status      *string             `json:"status" validate:"omitempty,oneof=draft active archived"`
}

// RubricDuplicateRequest is the payload for duplicating a rubric.
type RubricDuplicateRequest struct {
	Name       string  `json:"name"`
	ProjectID  *string `json:"project_id"`
	IsTemplate bool    `json:"is_template"`
}

// PerformanceLevelResponse serializes a performance level.
type PerformanceLevelResponse struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	PointValue  float64 `json:"point_value"`
}

// CriterionResponse serializes a criterion.
type CriterionResponse struct {
	ID          string                     `json:"id"`
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	MaxPoints   int                        `json:"max_points"`
	Levels      []PerformanceLevelResponse `json:"levels"`
}

// RubricResponse is returned to API clients when viewing rubrics.
type RubricResponse struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	ProjectID   *string             `json:"project_id"`
	CreatedBy   string              `json:"created_by"`
	Criteria    []CriterionResponse `json:"criteria"`
	MaxPoints   int                 `json:"max_points"`
	IsTemplate  bool                `json:"is_template"`
	Status      string              `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// ToCriteriaModels converts request criteria into model criteria.
func ToCriteriaModels(criteria []CriterionRequest) []models.Criterion {
	out := make([]models.Criterion, 0, len(criteria))
	for _, criterion := range criteria {
		levels := make([]models.PerformanceLevel, 0, len(criterion.Levels))
		for _, level := range criterion.Levels {
			levels = append(levels, models.PerformanceLevel{
				ID:          level.ID,
				Description: level.Description,
				PointValue:  level.PointValue,
			})
		}
		out = append(out, models.Criterion{
			ID:          criterion.ID,
			Name:        criterion.Name,
			Description: criterion.Description,
			MaxPoints:   criterion.MaxPoints,
			Levels:      levels,
		})
	}
	return out
}

// NewRubricResponse converts a Rubric model into a DTO.
func NewRubricResponse(model models.Rubric) RubricResponse {
	response := RubricResponse{
		ID:          model.ID,
		Name:        model.Name,
		Description: model.Description,
		ProjectID:   model.ProjectID,
		CreatedBy:   model.CreatedBy,
		IsTemplate:  model.IsTemplate,
		Status:      string(model.Status),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		Criteria:    make([]CriterionResponse, 0, len(model.Criteria)),
	}

	for _, criterion := range model.Criteria {
		levels := make([]PerformanceLevelResponse, 0, len(criterion.Levels))
		for _, level := range criterion.Levels {
			levels = append(levels, PerformanceLevelResponse{
				ID:          level.ID,
				Description: level.Description,
				PointValue:  level.PointValue,
			})
		}
		response.Criteria = append(response.Criteria, CriterionResponse{
			ID:          criterion.ID,
			Name:        criterion.Name,
			Description: criterion.Description,
			MaxPoints:   criterion.MaxPoints,
			Levels:      levels,
		})
		response.MaxPoints += criterion.MaxPoints
	}

	return response
}

// NewRubricResponseSlice converts rubric models into DTOs.
func NewRubricResponseSlice(models []models.Rubric) []RubricResponse {
	responses := make([]RubricResponse, 0, len(models))
	for _, rubric := range models {
		responses = append(responses, NewRubricResponse(rubric))
	}
	return responses
}
