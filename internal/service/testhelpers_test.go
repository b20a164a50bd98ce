package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-rubric-api/internal/dto"
	"github.com/noah-isme/gema-rubric-api/internal/kv"
	"github.com/noah-isme/gema-rubric-api/internal/repository"
	"github.com/noah-isme/gema-rubric-api/internal/validation"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type publishedEvent struct {
	eventType string
	payload   interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{eventType: eventType, payload: payload})
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.eventType)
	}
	return out
}

type serviceFixture struct {
	store       kv.Store
	rubrics     repository.RubricRepository
	evaluations repository.EvaluationRepository
	rubricSvc   RubricService
	evalSvc     EvaluationService
	publisher   *recordingPublisher
	now         time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	store, err := kv.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	opts := repository.Options{Now: func() time.Time { return now }}
	validator := validation.New()
	publisher := &recordingPublisher{}

	rubrics := repository.NewRubricRepository(store, validator, opts)
	evaluations := repository.NewEvaluationRepository(store, validator, opts)

	return &serviceFixture{
		store:       store,
		rubrics:     rubrics,
		evaluations: evaluations,
		rubricSvc:   NewRubricService(rubrics, validator, publisher, testLogger()),
		evalSvc:     NewEvaluationService(evaluations, rubrics, validator, publisher, testLogger()),
		publisher:   publisher,
		now:         now,
	}
}

// singleCriterionRubric is a rubric with one criterion worth 10 points and levels of 10 and 4.
func singleCriterionRubric() dto.RubricCreateRequest {
	return dto.RubricCreateRequest{
		Name: "Lab Report",
		Criteria: []dto.CriterionRequest{{
			Name:      "Analysis",
			MaxPoints: 10,
			Levels: []dto.PerformanceLevelRequest{
				{Description: "Thorough", PointValue: 10},
				{Description: "Superficial", PointValue: 4},
			},
		}},
	}
}

func stringPointer(value string) *string {
	return &value
}
