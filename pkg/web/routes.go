package web

import "github.com/gofiber/fiber/v3"

// RegisterRoutes mounts the API surface on the app.
func RegisterRoutes(app *fiber.App, handlers *APIHandlers) {
	d := app.Group("/definitions")
	d.Post("/", handlers.RegisterDefinition)
	d.Get("/", handlers.GetDefinitions)
	d.Get("/:id", handlers.GetDefinition)

	app.Post("/triggers/:event", handlers.TriggerEvent)

	r := app.Group("/runs")
	r.Get("/", handlers.GetRuns)
	r.Get("/:id", handlers.GetRun)
	r.Post("/:id/cancel", handlers.CancelRun)

	app.Post("/resume/:key", handlers.ResumeRun)

	app.Get("/health", handlers.HealthCheck)
}
