package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-rubric-api/internal/config"
	"github.com/noah-isme/gema-rubric-api/internal/events"
	"github.com/noah-isme/gema-rubric-api/internal/handler"
	"github.com/noah-isme/gema-rubric-api/internal/kv"
	"github.com/noah-isme/gema-rubric-api/internal/repository"
	"github.com/noah-isme/gema-rubric-api/internal/router"
	"github.com/noah-isme/gema-rubric-api/internal/service"
	"github.com/noah-isme/gema-rubric-api/internal/validation"
)

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Meta    map[string]int    `json:"meta"`
	Details map[string]string `json:"details"`
}

type actor struct {
	id   string
	role string
}

var (
	teacher = actor{id: "teacher-1", role: "teacher"}
	admin   = actor{id: "admin-1", role: "admin"}
	student = actor{id: "student-1", role: "student"}
)

func setupRubricApp(t *testing.T) *fiber.App {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	store, err := kv.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := zerolog.New(io.Discard)
	validator := validation.New()
	publisher := events.NopPublisher{}

	rubricRepo := repository.NewRubricRepository(store, validator, repository.Options{})
	evaluationRepo := repository.NewEvaluationRepository(store, validator, repository.Options{})

	rubricService := service.NewRubricService(rubricRepo, validator, publisher, logger)
	evaluationService := service.NewEvaluationService(evaluationRepo, rubricRepo, validator, publisher, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", StoreDriver: config.StoreDriverRedis}, router.Dependencies{
		RubricHandler:     handler.NewRubricHandler(rubricService, logger),
		EvaluationHandler: handler.NewEvaluationHandler(evaluationService, logger),
		Store:             store,
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", c.Get("X-Test-User"))
			c.Locals("user_role", c.Get("X-Test-Role"))
			return c.Next()
		},
	})

	return app
}

func doRequest(t *testing.T, app *fiber.App, as actor, method, path string, body interface{}) (*http.Response, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Test-User", as.id)
	req.Header.Set("X-Test-Role", as.role)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	return resp, decodeResponse(t, resp)
}

func decodeResponse(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func decodeData(t *testing.T, payload envelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(payload.Data, target))
}

func rubricPayload(projectID string) map[string]interface{} {
	payload := map[string]interface{}{
		"name":        "Lab Report",
		"description": "Weekly lab write-up",
		"criteria": []map[string]interface{}{{
			"name":       "Analysis",
			"max_points": 10,
			"levels": []map[string]interface{}{
				{"description": "Thorough", "point_value": 10},
				{"description": "Superficial", "point_value": 4},
			},
		}},
	}
	if projectID != "" {
		payload["project_id"] = projectID
	}
	return payload
}
