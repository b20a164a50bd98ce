package models

import "time"

// RubricStatus enumerates the lifecycle states of a rubric.
type RubricStatus string

const (
	// RubricStatusDraft marks a rubric that is still being written.
	RubricStatusDraft RubricStatus = "draft"
	// RubricStatusActive marks a rubric available for evaluations.
	RubricStatusActive RubricStatus = "active"
	// RubricStatusArchived marks a retired rubric.
	RubricStatusArchived RubricStatus = "archived"
)

// Rubric is a named set of scoring criteria used to evaluate deliverables.
type Rubric struct {
	ID          string       `json:"id" validate:"required"`
	Name        string       `json:"name" validate:"required"`
	Description string       `json:"description,omitempty"`
	ProjectID   *string      `json:"project_id" validate:"omitempty,min=1"`
	CreatedBy   string       `json:"created_by" validate:"required"`
	Criteria    []Criterion  `json:"criteria" validate:"min=1,dive"`
	IsTemplate  bool         `json:"is_template"`
	Status      RubricStatus `json:"status" validate:"oneof=draft active archived"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Criterion is one scored dimension of a rubric.
type Criterion struct {
	ID          string             `json:"id,omitempty"`
	Name        string             `json:"name" validate:"required"`
	Description string             `json:"description,omitempty"`
	MaxPoints   int                `json:"max_points" validate:"gte=1"`
	Levels      []PerformanceLevel `json:"levels" validate:"min=1,dive"`
}

// PerformanceLevel is one discrete point value a criterion can be scored at.
type PerformanceLevel struct {
	ID          string  `json:"id,omitempty"`
	Description string  `json:"description" validate:"required"`
	PointValue  float64 `json:"point_value" validate:"gte=0"`
}

// IsGlobal reports whether the rubric is not bound to a project.
func (r Rubric) IsGlobal() bool {
	return r.ProjectID == nil || *r.ProjectID == ""
}

// CriterionByID looks up a criterion on the rubric.
func (r Rubric) CriterionByID(id string) (Criterion, bool) {
	for _, criterion := range r.Criteria {
		if criterion.ID != "" && criterion.ID == id {
			return criterion, true
		}
	}
	return Criterion{}, false
}

// CloneCriteria returns a deep copy of the criteria and their levels.
func (r Rubric) CloneCriteria() []Criterion {
	if r.Criteria == nil {
		return nil
	}
	out := make([]Criterion, len(r.Criteria))
	for i, criterion := range r.Criteria {
		out[i] = criterion
		if criterion.Levels != nil {
			out[i].Levels = make([]PerformanceLevel, len(criterion.Levels))
			copy(out[i].Levels, criterion.Levels)
		}
	}
	return out
}
