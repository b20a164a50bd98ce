package dto

import (
	"time"

	"github.com/noah-isme/gema-rubric-api/internal/models"
	"github.com/noah-isme/gema-rubric-api/internal/scoring"
)

// CriterionEvaluationRequest carries the score for one criterion.
type CriterionEvaluationRequest struct {
	CriterionID string  `json:"criterion_id" validate:"required"`
	Score       float64 `json:"score" validate:"gte=0"`
	Feedback    string  `json:"feedback"`
}

// EvaluationCreateRequest is the payload for starting an evaluation.
type EvaluationCreateRequest struct {
	DeliverableID       string                       `json:"deliverable_id" validate:"required"`
	StudentID           string                       `json:"student_id" validate:"required"`
	RubricID            string                       `json:"rubric_id" validate:"required"`
	CriteriaEvaluations []CriterionEvaluationRequest `json:"criteria_evaluations" validate:"dive"`
	OverallFeedback     string                       `json:"overall_feedback"`
}

// EvaluationUpdateRequest is the partial payload for editing an evaluation.
type EvaluationUpdateRequest struct {
	CriteriaEvaluations *[]CriterionEvaluationRequest `json:"criteria_evaluations" validate:"omitempty,dive"`
	OverallFeedback     *string                       `json:"overall_feedback"`
}

// EvaluationListFilter describes query string filters for listing evaluations.
type EvaluationListFilter struct {
	DeliverableID string `query:"deliverable_id"`
	StudentID     string `query:"student_id"`
	EvaluatorID   string `query:"evaluator_id"`
}

// CriterionEvaluationResponse serializes one criterion score.
type CriterionEvaluationResponse struct {
	CriterionID string  `json:"criterion_id"`
	Score       float64 `json:"score"`
	Feedback    string  `json:"feedback"`
}

// EvaluationResponse is returned to API clients when viewing evaluations.
type EvaluationResponse struct {
	ID                  string                        `json:"id"`
	DeliverableID       string                        `json:"deliverable_id"`
	EvaluatorID         string                        `json:"evaluator_id"`
	StudentID           string                        `json:"student_id"`
	RubricID            string                        `json:"rubric_id"`
	CriteriaEvaluations []CriterionEvaluationResponse `json:"criteria_evaluations"`
	OverallFeedback     string                        `json:"overall_feedback"`
	TotalScore          float64                       `json:"total_score"`
	MaxPossibleScore    int                           `json:"max_possible_score"`
	Percentage          int                           `json:"percentage"`
	Tier                string                        `json:"tier"`
	TierColor           string                        `json:"tier_color"`
	Status              string                        `json:"status"`
	EvaluatedAt         *time.Time                    `json:"evaluated_at"`
	CreatedAt           time.Time                     `json:"created_at"`
	UpdatedAt           time.Time                     `json:"updated_at"`
}

// DeliverableEvaluationSummary aggregates the completed evaluations of a deliverable.
type DeliverableEvaluationSummary struct {
	DeliverableID     string         `json:"deliverable_id"`
	Completed         int            `json:"completed"`
	Drafts            int            `json:"drafts"`
	AveragePercentage float64        `json:"average_percentage"`
	TierCounts        map[string]int `json:"tier_counts"`
}

// ToCriterionEvaluationModels converts request scores into model scores.
func ToCriterionEvaluationModels(items []CriterionEvaluationRequest) []models.CriterionEvaluation {
	out := make([]models.CriterionEvaluation, 0, len(items))
	for _, item := range items {
		out = append(out, models.CriterionEvaluation{
			CriterionID: item.CriterionID,
			Score:       item.Score,
			Feedback:    item.Feedback,
		})
	}
	return out
}

// NewEvaluationResponse converts an Evaluation model into a DTO.
func NewEvaluationResponse(model models.Evaluation) EvaluationResponse {
	percent, tier := scoring.ClassifyScore(model.TotalScore, float64(model.MaxPossibleScore))

	response := EvaluationResponse{
		ID:                  model.ID,
		DeliverableID:       model.DeliverableID,
		EvaluatorID:         model.EvaluatorID,
		StudentID:           model.StudentID,
		RubricID:            model.RubricID,
		CriteriaEvaluations: make([]CriterionEvaluationResponse, 0, len(model.CriteriaEvaluations)),
		OverallFeedback:     model.OverallFeedback,
		TotalScore:          model.TotalScore,
		MaxPossibleScore:    model.MaxPossibleScore,
		Percentage:          percent,
		Tier:                string(tier),
		TierColor:           tier.Color(),
		Status:              string(model.Status),
		EvaluatedAt:         model.EvaluatedAt,
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
	}

	for _, item := range model.CriteriaEvaluations {
		response.CriteriaEvaluations = append(response.CriteriaEvaluations, CriterionEvaluationResponse{
			CriterionID: item.CriterionID,
			Score:       item.Score,
			Feedback:    item.Feedback,
		})
	}

	return response
}

// NewEvaluationResponseSlice converts evaluation models into DTOs.
func NewEvaluationResponseSlice(models []models.Evaluation) []EvaluationResponse {
	responses := make([]EvaluationResponse, 0, len(models))
	for _, evaluation := range models {
		responses = append(responses, NewEvaluationResponse(evaluation))
	}
	return responses
}
