// Package main provides the Stride API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/peopleops/stride/pkg/definitions"
	"github.com/peopleops/stride/pkg/engine"
	"github.com/peopleops/stride/pkg/runstore"
	"github.com/peopleops/stride/pkg/web"
)

type API struct {
	logger      *slog.Logger
	engine      *engine.Engine
	definitions *definitions.Store
	store       runstore.RunStore
	validate    *validator.Validate
}

func NewAPI(
	log *slog.Logger,
	eng *engine.Engine,
	defs *definitions.Store,
	store runstore.RunStore,
) *API {
	return &API{
		logger:      log,
		engine:      eng,
		definitions: defs,
		store:       store,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.engine, a.definitions, a.store, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Stride API")
	})

	web.RegisterRoutes(app, handlers)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
