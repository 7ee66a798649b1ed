package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/stemforge/api/internal/auth"
	"github.com/stemforge/api/internal/middleware"
	"github.com/stemforge/api/internal/service"
)

const testJWTSecret = "test-secret"

// setupApp wires the separation routes the way main.go does. The asynq
// client points at nothing; tests stay on paths that never enqueue.
func setupApp(t *testing.T) *fiber.App {
	t.Helper()

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: "localhost:0"})
	t.Cleanup(func() { asynqClient.Close() })

	separationService := service.NewSeparationService(asynqClient)
	separationHandler := NewSeparationHandler(separationService, validator.New(), t.TempDir())

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)

	app := fiber.New()
	api := app.Group("/api", authMiddleware.Authenticate())
	api.Post("/separation/link", separationHandler.FromLink)
	api.Post("/separation/file", separationHandler.FromFile)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string, authed bool) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		token, err := auth.GenerateToken("user-1", "user@example.com", testJWTSecret)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("invalid JSON response %q: %v", data, err)
	}
	return result
}

func TestSeparationLink_NoAuth(t *testing.T) {
	app := setupApp(t)

	resp := doRequest(t, app, http.MethodPost, "/api/separation/link",
		`{"url":"https://media.example/watch?v=abc","callback_url":"https://caller.example/hook"}`, false)

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	result := parseJSON(t, resp)
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatal("expected error object in response")
	}
	if errObj["code"] != "UNAUTHORIZED" {
		t.Errorf("expected error code UNAUTHORIZED, got %v", errObj["code"])
	}
}

func TestSeparationLink_InvalidToken(t *testing.T) {
	app := setupApp(t)

	req, _ := http.NewRequest(http.MethodPost, "/api/separation/link", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer not-a-token")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestSeparationLink_MissingURL(t *testing.T) {
	app := setupApp(t)

	resp := doRequest(t, app, http.MethodPost, "/api/separation/link",
		`{"callback_url":"https://caller.example/hook"}`, true)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSeparationLink_MissingCallback(t *testing.T) {
	app := setupApp(t)

	resp := doRequest(t, app, http.MethodPost, "/api/separation/link",
		`{"url":"https://media.example/watch?v=abc"}`, true)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSeparationLink_DurationTooLong(t *testing.T) {
	app := setupApp(t)

	resp := doRequest(t, app, http.MethodPost, "/api/separation/link",
		`{"url":"https://media.example/watch?v=abc","callback_url":"https://caller.example/hook","duration":600}`, true)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSeparationLink_NegativeStart(t *testing.T) {
	app := setupApp(t)

	resp := doRequest(t, app, http.MethodPost, "/api/separation/link",
		`{"url":"https://media.example/watch?v=abc","callback_url":"https://caller.example/hook","start_time":-5}`, true)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSeparationLink_MalformedBody(t *testing.T) {
	app := setupApp(t)

	resp := doRequest(t, app, http.MethodPost, "/api/separation/link", `{not json`, true)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSeparationFile_MissingFile(t *testing.T) {
	app := setupApp(t)

	req, _ := http.NewRequest(http.MethodPost, "/api/separation/file",
		strings.NewReader("callback_url=https%3A%2F%2Fcaller.example%2Fhook"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	token, err := auth.GenerateToken("user-1", "user@example.com", testJWTSecret)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
