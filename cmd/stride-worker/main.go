package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/peopleops/stride/pkg/actions"
	"github.com/peopleops/stride/pkg/cmd"
	"github.com/peopleops/stride/pkg/config"
	"github.com/peopleops/stride/pkg/definitions"
	"github.com/peopleops/stride/pkg/engine"
	"github.com/peopleops/stride/pkg/identity"
	"github.com/peopleops/stride/pkg/log"
	"github.com/peopleops/stride/pkg/notify"
	"github.com/peopleops/stride/pkg/otelhelper"
	"github.com/peopleops/stride/pkg/registry"
)

func main() {
	command := &cli.Command{
		Name:                  "stride-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker to execute workflow runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Run store URL (postgres://, redis:// or memory://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "definitions-path",
				Usage:    "Directory of workflow definition JSON files loaded at startup",
				Required: true,
				Sources:  cli.EnvVars("DEFINITIONS_PATH"),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Worker configuration YAML (approvers, schedules, notifications)",
				Sources: cli.EnvVars("WORKER_CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("stride-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Stride Worker")

			workerConfig, err := config.LoadWorkerConfig(command.String("config"))
			if err != nil {
				return err
			}

			provider := identity.NewStaticProvider(workerConfig.Approvers)

			var transport notify.Transport = notify.NewSlogTransport(logger)

			if workerConfig.Notifications.Transport == "redis" {
				if workerConfig.Notifications.RedisURL == "" {
					return fmt.Errorf("redis notification transport requires redis_url")
				}

				streamTransport, err := notify.NewRedisStreamTransport(workerConfig.Notifications.RedisURL, logger)
				if err != nil {
					return err
				}

				defer func() {
					if err := streamTransport.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close notification transport", "error", err)
					}
				}()

				transport = streamTransport
			}

			actionRegistry := registry.NewActionRegistry()
			actions.RegisterBuiltins(actionRegistry, logger)

			reg, err := cmd.NewRegistry(logger, provider, transport, actionRegistry)
			if err != nil {
				return err
			}

			defs := definitions.NewStore(logger, reg)

			loaded, err := definitions.LoadDirectory(defs, command.String("definitions-path"))
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Loaded workflow definitions", "count", loaded)

			store, err := cmd.NewRunStore(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close run store", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "stride-worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			engineConfig := engine.Config{
				Store:       store,
				Definitions: defs,
				Registry:    reg,
				EventBus:    eventBus,
				Logger:      logger,
				WorkerID:    workerID,
			}

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "stride-worker")
				if err != nil {
					return err
				}

				engineConfig.Tracer = tracer
			}

			eng, err := engine.NewEngine(engineConfig)
			if err != nil {
				return err
			}

			worker := NewWorkerManager(workerID, eng, eventBus, logger)

			if err := worker.LoadSchedules(workerConfig.Schedules); err != nil {
				return err
			}

			if err := worker.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
