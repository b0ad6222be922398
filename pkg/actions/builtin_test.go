package actions

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peopleops/stride/pkg/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLog(t *testing.T) {
	handler := Log(testLogger())

	output, err := handler(context.Background(), map[string]any{"employee_id": "emp-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, output["logged_at"])
}

func TestHTTPRequest_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	handler := HTTPRequest(testLogger())

	output, err := handler(context.Background(), map[string]any{"url": server.URL})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, output["status_code"])
	assert.Equal(t, map[string]any{"ok": true}, output["body"])
}

func TestHTTPRequest_PostWithPayload(t *testing.T) {
	var received string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received = string(body)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "token", r.Header.Get("Authorization"))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))
	defer server.Close()

	handler := HTTPRequest(testLogger())

	output, err := handler(context.Background(), map[string]any{
		"url":     server.URL,
		"method":  "post",
		"payload": map[string]any{"employee_id": "emp-1"},
		"headers": map[string]any{"Authorization": "token"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, output["status_code"])
	assert.Equal(t, "created", output["body"])
	assert.JSONEq(t, `{"employee_id":"emp-1"}`, received)
}

func TestHTTPRequest_MissingURL(t *testing.T) {
	handler := HTTPRequest(testLogger())

	_, err := handler(context.Background(), map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url")
}

func TestRegisterBuiltins(t *testing.T) {
	actions := registry.NewActionRegistry()
	RegisterBuiltins(actions, testLogger())

	for _, name := range []string{"log", "http_request"} {
		handler, err := actions.Handler(name)
		require.NoError(t, err)
		assert.NotNil(t, handler)
	}
}
