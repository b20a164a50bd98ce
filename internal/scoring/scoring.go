// Package scoring holds the pure arithmetic of rubric evaluations: recomputing totals
// against a rubric and classifying a score into one of five tiers.
package scoring

import (
	"math"

	"github.com/noah-isme/gema-rubric-api/internal/models"
)

// Tier is a classification band for a percentage score.
type Tier string

const (
	TierExcellent        Tier = "excellent"
	TierGood             Tier = "good"
	TierSatisfactory     Tier = "satisfactory"
	TierNeedsImprovement Tier = "needs_improvement"
	TierInsufficient     Tier = "insufficient"
)

// Tiers lists every tier from top to bottom.
var Tiers = []Tier{TierExcellent, TierGood, TierSatisfactory, TierNeedsImprovement, TierInsufficient}

// Color returns the display colour associated with the tier.
func (t Tier) Color() string {
	switch t {
	case TierExcellent:
		return "green"
	case TierGood:
		return "blue"
	case TierSatisfactory:
		return "yellow"
	case TierNeedsImprovement:
		return "orange"
	default:
		return "red"
	}
}

// Totals is the outcome of recomputing an evaluation against its rubric.
type Totals struct {
	TotalScore       float64
	MaxPossibleScore int
	// Matched counts the criterion-evaluations that still exist on the rubric.
	Matched int
	// Dropped counts the criterion-evaluations whose criterion is no longer on the rubric.
	Dropped int
}

// Recompute sums the scores of criterion-evaluations whose criterion is still on the rubric,
// together with the max points of those criteria. Scores are not clamped.
func Recompute(criteria []models.CriterionEvaluation, rubric models.Rubric) Totals {
	var totals Totals
	for _, evaluation := range criteria {
		criterion, ok := rubric.CriterionByID(evaluation.CriterionID)
		if !ok {
			totals.Dropped++
			continue
		}
		totals.TotalScore += evaluation.Score
		totals.MaxPossibleScore += criterion.MaxPoints
		totals.Matched++
	}
	return totals
}

// Percentage returns round(100*score/max) with halves rounded up. A non-positive max yields 0.
func Percentage(score, max float64) int {
	if max <= 0 {
		return 0
	}
	return int(math.Floor(100*score/max + 0.5))
}

// Classify maps a percentage to its tier.
func Classify(percent int) Tier {
	switch {
	case percent >= 90:
		return TierExcellent
	case percent >= 80:
		return TierGood
	case percent >= 70:
		return TierSatisfactory
	case percent >= 60:
		return TierNeedsImprovement
	default:
		return TierInsufficient
	}
}

// ClassifyScore combines Percentage and Classify.
func ClassifyScore(score, max float64) (int, Tier) {
	percent := Percentage(score, max)
	return percent, Classify(percent)
}
