// Package actions provides built-in action handlers that ship with the
// engine. Applications register their own business handlers alongside
// these through the action registry.
package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/peopleops/stride/pkg/registry"
)

const httpRequestTimeout = 30 * time.Second

// Log returns a handler that logs its variables and echoes nothing back.
// Useful as a placeholder while wiring up new definitions.
func Log(logger *slog.Logger) registry.ActionHandler {
	return func(ctx context.Context, variables map[string]any) (map[string]any, error) {
		logger.InfoContext(ctx, "log action", "variables", variables)

		return map[string]any{"logged_at": time.Now().UTC().Format(time.RFC3339)}, nil
	}
}

// HTTPRequest returns a handler that performs an HTTP call described by its
// variables: "url" (required), "method" (default GET), "headers" and
// "payload" (optional). The response is exposed as status_code, body and
// headers.
func HTTPRequest(logger *slog.Logger) registry.ActionHandler {
	return func(ctx context.Context, variables map[string]any) (map[string]any, error) {
		url, _ := variables["url"].(string)
		if url == "" {
			return nil, fmt.Errorf("http_request action requires a url variable")
		}

		method, _ := variables["method"].(string)
		if method == "" {
			method = http.MethodGet
		}

		method = strings.ToUpper(method)

		var bodyReader io.Reader

		if payload, ok := variables["payload"]; ok {
			encoded, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("failed to encode payload: %w", err)
			}

			bodyReader = strings.NewReader(string(encoded))
		}

		reqCtx, cancel := context.WithTimeout(ctx, httpRequestTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("failed to create http request: %w", err)
		}

		if bodyReader != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		if headers, ok := variables["headers"].(map[string]any); ok {
			for key, value := range headers {
				if strVal, ok := value.(string); ok {
					req.Header.Set(key, strVal)
				}
			}
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("http request failed: %w", err)
		}
		defer resp.Body.Close()

		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		var body any
		if err := json.Unmarshal(bodyBytes, &body); err != nil {
			body = string(bodyBytes)
		}

		logger.DebugContext(ctx, "http_request action completed",
			"method", method,
			"url", url,
			"status_code", resp.StatusCode,
		)

		return map[string]any{
			"status_code": resp.StatusCode,
			"body":        body,
			"headers":     resp.Header,
		}, nil
	}
}

// RegisterBuiltins installs the built-in handlers on the given registry.
func RegisterBuiltins(actions *registry.ActionRegistry, logger *slog.Logger) {
	actions.Register("log", Log(logger))
	actions.Register("http_request", HTTPRequest(logger))
}
