package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-rubric-api/internal/kv"
	"github.com/noah-isme/gema-rubric-api/internal/models"
	"github.com/noah-isme/gema-rubric-api/internal/validation"
)

func newEvaluationRepo(t *testing.T, store kv.Store) (EvaluationRepository, *fixedClock) {
	t.Helper()
	clock := newClock()
	return NewEvaluationRepository(store, validation.New(), Options{Now: clock.Now}), clock
}

func sampleEvaluation() models.Evaluation {
	return models.Evaluation{
		DeliverableID: "deliverable-1",
		EvaluatorID:   "teacher-1",
		StudentID:     "student-1",
		RubricID:      "rubric-1",
		CriteriaEvaluations: []models.CriterionEvaluation{
			{CriterionID: "c1", Score: 4, Feedback: "Needs sources"},
		},
	}
}

func TestEvaluationRepositoryCreateAndList(t *testing.T) {
	store := setupRedisStore(t)
	repo, _ := newEvaluationRepo(t, store)
	ctx := context.Background()

	created, err := repo.Create(ctx, sampleEvaluation())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, models.EvaluationStatusDraft, created.Status)
	require.Nil(t, created.EvaluatedAt)

	other := sampleEvaluation()
	other.StudentID = "student-2"
	second, err := repo.Create(ctx, other)
	require.NoError(t, err)

	byDeliverable, err := repo.ListByDeliverable(ctx, "deliverable-1")
	require.NoError(t, err)
	require.Len(t, byDeliverable, 2)
	require.Equal(t, created.ID, byDeliverable[0].ID)
	require.Equal(t, second.ID, byDeliverable[1].ID)

	byStudent, err := repo.ListByStudent(ctx, "student-2")
	require.NoError(t, err)
	require.Len(t, byStudent, 1)
	require.Equal(t, second.ID, byStudent[0].ID)

	byEvaluator, err := repo.ListByEvaluator(ctx, "teacher-1")
	require.NoError(t, err)
	require.Len(t, byEvaluator, 2)
}

func TestEvaluationRepositoryCreateValidates(t *testing.T) {
	repo, _ := newEvaluationRepo(t, setupRedisStore(t))
	ctx := context.Background()

	negative := sampleEvaluation()
	negative.CriteriaEvaluations[0].Score = -1
	_, err := repo.Create(ctx, negative)
	require.True(t, validation.IsError(err))

	missingRubric := sampleEvaluation()
	missingRubric.RubricID = ""
	_, err = repo.Create(ctx, missingRubric)
	require.True(t, validation.IsError(err))

	completedWithoutTime := sampleEvaluation()
	completedWithoutTime.Status = models.EvaluationStatusCompleted
	_, err = repo.Create(ctx, completedWithoutTime)
	require.True(t, validation.IsError(err))
}

func TestEvaluationRepositoryListSkipsDanglingIndex(t *testing.T) {
	store := setupRedisStore(t)
	repo, _ := newEvaluationRepo(t, store)
	ctx := context.Background()

	created, err := repo.Create(ctx, sampleEvaluation())
	require.NoError(t, err)

	// primary record removed without its index entries
	require.NoError(t, store.Delete(ctx, EvaluationKey(created.ID)))

	listed, err := repo.ListByStudent(ctx, "student-1")
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestEvaluationRepositoryUpdateStampsEvaluatedAtOnCompletion(t *testing.T) {
	repo, clock := newEvaluationRepo(t, setupRedisStore(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, sampleEvaluation())
	require.NoError(t, err)

	clock.Advance(time.Hour)
	feedback := "Solid work"
	updated, err := repo.Update(ctx, created.ID, EvaluationPatch{OverallFeedback: &feedback})
	require.NoError(t, err)
	require.Equal(t, feedback, updated.OverallFeedback)
	require.Nil(t, updated.EvaluatedAt)
	require.Equal(t, clock.Now(), updated.UpdatedAt)

	clock.Advance(time.Hour)
	completed := models.EvaluationStatusCompleted
	finalized, err := repo.Update(ctx, created.ID, EvaluationPatch{Status: &completed})
	require.NoError(t, err)
	require.NotNil(t, finalized.EvaluatedAt)
	require.Equal(t, clock.Now(), *finalized.EvaluatedAt)
	stampedAt := *finalized.EvaluatedAt

	clock.Advance(time.Hour)
	again, err := repo.Update(ctx, created.ID, EvaluationPatch{Status: &completed})
	require.NoError(t, err)
	require.Equal(t, stampedAt, *again.EvaluatedAt, "already completed evaluations keep their stamp")

	_, err = repo.Update(ctx, "missing", EvaluationPatch{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEvaluationRepositoryUpdateOverwritesLastWriteWins(t *testing.T) {
	repo, _ := newEvaluationRepo(t, setupSQLStore(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, sampleEvaluation())
	require.NoError(t, err)

	first := "first"
	second := "second"
	_, err = repo.Update(ctx, created.ID, EvaluationPatch{OverallFeedback: &first})
	require.NoError(t, err)
	_, err = repo.Update(ctx, created.ID, EvaluationPatch{OverallFeedback: &second})
	require.NoError(t, err)

	stored, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "second", stored.OverallFeedback)
}

func TestEvaluationRepositoryDeleteRemovesIndexes(t *testing.T) {
	store := setupRedisStore(t)
	repo, _ := newEvaluationRepo(t, store)
	ctx := context.Background()

	created, err := repo.Create(ctx, sampleEvaluation())
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, created.ID))

	entries, err := store.List(ctx, kv.NewKey("evaluations"))
	require.NoError(t, err)
	require.Empty(t, entries)

	require.ErrorIs(t, repo.Delete(ctx, created.ID), ErrNotFound)
}
