package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/peopleops/stride/pkg/definitions"
	"github.com/peopleops/stride/pkg/engine"
	"github.com/peopleops/stride/pkg/runstore"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleEngineError maps domain errors onto problem responses.
func handleEngineError(c fiber.Ctx, err error) error {
	switch {
	case definitions.IsInvalidDefinition(err):
		return badRequest(c, err.Error())

	case definitions.IsDefinitionNotFound(err):
		return notFound(c, err.Error())

	case runstore.IsRunNotFound(err):
		return notFound(c, err.Error())

	case engine.IsUnknownResumeKey(err):
		return notFound(c, err.Error())

	case engine.IsAlreadyTerminal(err):
		return conflict(c, err.Error())

	case engine.IsInvalidRunState(err):
		return conflict(c, err.Error())

	case runstore.IsClaimConflict(err):
		return conflict(c, err.Error())

	default:
		return internalError(c, err)
	}
}
