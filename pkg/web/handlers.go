// Package web provides the REST API for definitions, triggers, and runs.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/peopleops/stride/pkg/definitions"
	"github.com/peopleops/stride/pkg/engine"
	"github.com/peopleops/stride/pkg/models"
	"github.com/peopleops/stride/pkg/runstore"
)

type APIHandlers struct {
	engine      *engine.Engine
	definitions *definitions.Store
	store       runstore.RunStore
	validator   *validator.Validate
}

func NewAPIHandlers(
	eng *engine.Engine,
	defs *definitions.Store,
	store runstore.RunStore,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		engine:      eng,
		definitions: defs,
		store:       store,
		validator:   validate,
	}
}

func (h *APIHandlers) RegisterDefinition(c fiber.Ctx) error {
	var req RegisterDefinitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	def := &models.WorkflowDefinition{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Steps:       req.Steps,
		Triggers:    req.Triggers,
		Metadata:    req.Metadata,
	}

	if err := h.definitions.Register(def); err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(def)
}

func (h *APIHandlers) GetDefinitions(c fiber.Ctx) error {
	defs := h.definitions.List()

	return c.JSON(fiber.Map{
		"definitions": defs,
		"total_count": len(defs),
	})
}

func (h *APIHandlers) GetDefinition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Definition ID is required")
	}

	def, err := h.definitions.Get(id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(def)
}

func (h *APIHandlers) TriggerEvent(c fiber.Ctx) error {
	eventName := c.Params("event")
	if eventName == "" {
		return badRequest(c, "Event name is required")
	}

	var req TriggerRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	runs, err := h.engine.Trigger(c.Context(), eventName, req.Data)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"event": eventName,
		"runs":  runs,
	})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := h.engine.Run(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) GetRuns(c fiber.Ctx) error {
	status := models.RunStatus(c.Query("status"))

	runs, err := h.engine.Runs(c.Context(), status)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"runs":        runs,
		"total_count": len(runs),
	})
}

func (h *APIHandlers) CancelRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := h.engine.Cancel(c.Context(), id)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) ResumeRun(c fiber.Ctx) error {
	resumeKey := c.Params("key")
	if resumeKey == "" {
		return badRequest(c, "Resume key is required")
	}

	var req DecisionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	run, err := h.engine.Resume(c.Context(), resumeKey, models.Decision{
		Approved:  *req.Approved,
		DecidedBy: req.DecidedBy,
		Comment:   req.Comment,
	})
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	storeCheck := "ok"
	if err := h.store.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
		storeCheck = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"run_store": storeCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
