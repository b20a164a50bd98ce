package models

import "time"

// EvaluationStatus enumerates the lifecycle states of an evaluation.
type EvaluationStatus string

const (
	// EvaluationStatusDraft is the initial, freely editable state.
	EvaluationStatusDraft EvaluationStatus = "draft"
	// EvaluationStatusCompleted is reached through finalization.
	EvaluationStatusCompleted EvaluationStatus = "completed"
)

// Evaluation is one evaluator's scoring of one student's deliverable against one rubric.
type Evaluation struct {
	ID                  string                `json:"id" validate:"required"`
	DeliverableID       string                `json:"deliverable_id" validate:"required"`
	EvaluatorID         string                `json:"evaluator_id" validate:"required"`
	StudentID           string                `json:"student_id" validate:"required"`
	RubricID            string                `json:"rubric_id" validate:"required"`
	CriteriaEvaluations []CriterionEvaluation `json:"criteria_evaluations" validate:"dive"`
	OverallFeedback     string                `json:"overall_feedback,omitempty"`
	TotalScore          float64               `json:"total_score" validate:"gte=0"`
	MaxPossibleScore    int                   `json:"max_possible_score" validate:"gte=0"`
	Status              EvaluationStatus      `json:"status" validate:"oneof=draft completed"`
	EvaluatedAt         *time.Time            `json:"evaluated_at,omitempty" validate:"required_if=Status completed"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// CriterionEvaluation is the score and feedback given to one rubric criterion.
type CriterionEvaluation struct {
	CriterionID string  `json:"criterion_id" validate:"required"`
	Score       float64 `json:"score" validate:"gte=0"`
	Feedback    string  `json:"feedback,omitempty"`
}

// IsCompleted reports whether the evaluation has been finalized.
func (e Evaluation) IsCompleted() bool {
	return e.Status == EvaluationStatusCompleted
}
