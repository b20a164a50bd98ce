package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-rubric-api/internal/kv"
	"github.com/noah-isme/gema-rubric-api/internal/models"
)

func setupRedisStore(t *testing.T) kv.Store {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	store, err := kv.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func setupSQLStore(t *testing.T) kv.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)

	store, err := kv.NewSQLStore(db, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newClock() *fixedClock {
	return &fixedClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func stringPointer(value string) *string {
	return &value
}

func sampleRubric(createdBy string, projectID *string) models.Rubric {
	return models.Rubric{
		Name:      "Research Report",
		ProjectID: projectID,
		CreatedBy: createdBy,
		Criteria: []models.Criterion{
			{
				Name:      "Argument",
				MaxPoints: 10,
				Levels: []models.PerformanceLevel{
					{Description: "Compelling", PointValue: 10},
					{Description: "Partial", PointValue: 4},
				},
			},
			{
				Name:      "Sources",
				MaxPoints: 5,
				Levels:    []models.PerformanceLevel{{Description: "Cited", PointValue: 5}},
			},
		},
	}
}
