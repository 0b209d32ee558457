// Package main provides the ISOmorphe queue worker.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/ecospheres/isomorphe/pkg/cmd"
	"github.com/ecospheres/isomorphe/pkg/eventbus"
	"github.com/ecospheres/isomorphe/pkg/log"
	"github.com/ecospheres/isomorphe/pkg/queue"
	"github.com/ecospheres/isomorphe/pkg/transformation"
)

func main() {
	cmd := &cli.Command{
		Name:                  "isomorphe-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker to run transform and migrate jobs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
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
				Name:    "xsltproc",
				Usage:   "XSLT processor command",
				Value:   "xsltproc",
				Sources: cli.EnvVars("XSLTPROC"),
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

			logger := log.WithModule("isomorphe-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing ISOmorphe worker")

			transformer := &transformation.XSLTProc{Command: command.String("xsltproc")}
			if !transformer.Available() {
				logger.WarnContext(ctx, "XSLT processor not found, transform jobs will fail",
					"command", command.String("xsltproc"))
			}

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

			worker := queue.NewWorker(
				workerID,
				q,
				bus,
				transformer,
				command.String("transformations-path"),
				logger,
			)

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := eventbus.SubscribeLifecycleLogging(ctx, bus, log.WithModule("lifecycle")); err != nil {
				return err
			}

			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			return nil
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
