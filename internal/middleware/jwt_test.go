package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newJWTApp() *fiber.App {
	app := fiber.New()
	app.Use(JWTProtected(testSecret))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": c.Locals("user_id"), "user_role": c.Locals("user_role")})
	})
	return app
}

func TestJWTProtectedExposesSubjectAndRole(t *testing.T) {
	app := newJWTApp()
	token := signToken(t, jwt.MapClaims{
		"sub":  "0192f3a4-teacher",
		"role": " Teacher ",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeJSON(t, resp, &body)
	require.Equal(t, "0192f3a4-teacher", body["user_id"])
	require.Equal(t, "teacher", body["user_role"])
}

func TestJWTProtectedAcceptsNumericSubject(t *testing.T) {
	app := newJWTApp()
	token := signToken(t, jwt.MapClaims{"sub": float64(42), "roles": []interface{}{"student"}}, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeJSON(t, resp, &body)
	require.Equal(t, "42", body["user_id"])
	require.Equal(t, "student", body["user_role"])
}

func TestJWTProtectedRejectsInvalidTokens(t *testing.T) {
	app := newJWTApp()

	cases := map[string]string{
		"missing header":  "",
		"wrong scheme":    "Basic abc",
		"wrong secret":    "Bearer " + signToken(t, jwt.MapClaims{"sub": "u1"}, "other"),
		"expired":         "Bearer " + signToken(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Hour).Unix()}, testSecret),
		"missing subject": "Bearer " + signToken(t, jwt.MapClaims{"role": "admin"}, testSecret),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}
