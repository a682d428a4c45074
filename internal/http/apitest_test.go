package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"librarium/internal/http/handlers"
	"librarium/internal/repos"
)

func newTestApp(t *testing.T) (*fiber.App, *sqlx.DB) {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	app := fiber.New()
	handlers.NewDeps(db).Mount(app)
	return app, db
}

// doJSON fires a request with an optional bearer token and JSON body and
// decodes the response body into a generic map.
func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.Unmarshal(raw, &out), "body: %s", raw)
	}
	return resp.StatusCode, out
}

// register creates an account through the API and returns its token.
func register(t *testing.T, app *fiber.App, name, email string) string {
	t.Helper()
	status, body := doJSON(t, app, "POST", "/api/register", "", map[string]any{
		"name": name, "email": email, "role": "User", "password": "Passw0rd!",
	})
	require.Equal(t, http.StatusCreated, status, "register body: %v", body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

// loginAdmin signs in as the seeded bootstrap admin.
func loginAdmin(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, body := doJSON(t, app, "POST", "/api/login", "", map[string]any{
		"email": "admin@librarium.test", "password": "ChangeMe123!",
	})
	require.Equal(t, http.StatusOK, status, "admin login body: %v", body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}
