package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/ecospheres/isomorphe/pkg/cmd"
	"github.com/ecospheres/isomorphe/pkg/eventbus"
	"github.com/ecospheres/isomorphe/pkg/log"
)

func main() {
	cmd := &cli.Command{
		Name:                  "isomorphe-api",
		EnableShellCompletion: true,
		Usage:                 "Start the ISOmorphe migration API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to start the API server on",
				Value:   9091,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "redis-url",
				Usage:    "Redis connection URL for the job queue",
				Required: true,
				Sources:  cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "transformations-path",
				Usage:   "Path to the directory containing transformation stylesheets",
				Value:   "./transformations",
				Sources: cli.EnvVars("TRANSFORMATIONS_PATH"),
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

			logger := log.WithModule("isomorphe-api")

			bus := cmd.NewEventBus(logger)
			defer func() {
				if err := bus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			q, closeQueue, err := cmd.NewJobQueue(command.String("redis-url"), bus, logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := closeQueue(); err != nil {
					logger.ErrorContext(ctx, "Failed to close job queue", "error", err)
				}
			}()

			if err := eventbus.SubscribeLifecycleLogging(ctx, bus, log.WithModule("lifecycle")); err != nil {
				return err
			}

			api := NewAPI(logger, q, command.String("transformations-path"))

			logger.InfoContext(ctx, "Starting ISOmorphe API", "port", command.Int("port"))

			return api.Start(int(command.Int("port")))
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
