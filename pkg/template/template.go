// Package template provides templating for notification messages and
// dynamic step configuration.
package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/peopleops/stride/pkg/models"
)

// RenderWithContext renders input against a run's execution context. Step
// data is exposed under stable namespaces so templates survive engine
// changes.
func RenderWithContext(input string, executionCtx *models.ExecutionContext) (any, error) {
	data := map[string]any{
		"vars":    executionCtx.Variables,
		"steps":   executionCtx.StepResults,
		"trigger": executionCtx.TriggerData,
		"run": map[string]any{
			"id":          executionCtx.RunID,
			"workflow_id": executionCtx.WorkflowID,
			"event":       executionCtx.TriggerEvent,
		},
	}

	return Render(input, data)
}

// Render executes a text/template against data and coerces the result:
// JSON objects/arrays are decoded, then numbers, then booleans, otherwise
// the raw string is returned.
func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("render").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}

		return nil, fmt.Errorf("failed to parse json '%s': %w", result, err)
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// RenderString renders and returns the result as a string regardless of the
// coerced type.
func RenderString(templateStr string, executionCtx *models.ExecutionContext) (string, error) {
	result, err := RenderWithContext(templateStr, executionCtx)
	if err != nil {
		return "", err
	}

	if s, ok := result.(string); ok {
		return s, nil
	}

	return fmt.Sprintf("%v", result), nil
}
