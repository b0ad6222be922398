package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/peopleops/stride/pkg/actions"
	"github.com/peopleops/stride/pkg/cmd"
	"github.com/peopleops/stride/pkg/definitions"
	"github.com/peopleops/stride/pkg/engine"
	"github.com/peopleops/stride/pkg/identity"
	"github.com/peopleops/stride/pkg/log"
	"github.com/peopleops/stride/pkg/notify"
	"github.com/peopleops/stride/pkg/registry"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "stride-api",
		Usage:                 "Manage workflow definitions and runs over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
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
				Name:    "definitions-path",
				Usage:   "Directory of workflow definition JSON files loaded at startup",
				Sources: cli.EnvVars("DEFINITIONS_PATH"),
			},
			&cli.StringFlag{
				Name:    "approvers-path",
				Usage:   "JSON file with the approver directory",
				Sources: cli.EnvVars("APPROVERS_PATH"),
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

			logger := log.WithModule("stride-api")

			logger.InfoContext(ctx, "Initializing Stride API")

			provider, err := identity.LoadProviderFile(command.String("approvers-path"))
			if err != nil {
				return err
			}

			actionRegistry := registry.NewActionRegistry()
			actions.RegisterBuiltins(actionRegistry, logger)

			reg, err := cmd.NewRegistry(logger, provider, notify.NewSlogTransport(logger), actionRegistry)
			if err != nil {
				return err
			}

			defs := definitions.NewStore(logger, reg)

			if dir := command.String("definitions-path"); dir != "" {
				loaded, err := definitions.LoadDirectory(defs, dir)
				if err != nil {
					return err
				}

				logger.InfoContext(ctx, "Loaded workflow definitions", "count", loaded)
			}

			store, err := cmd.NewRunStore(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close run store", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "stride-api", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			eng, err := engine.NewEngine(engine.Config{
				Store:       store,
				Definitions: defs,
				Registry:    reg,
				EventBus:    eventBus,
				Logger:      logger,
				WorkerID:    "stride-api",
			})
			if err != nil {
				return err
			}

			api := NewAPI(logger, eng, defs, store)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
