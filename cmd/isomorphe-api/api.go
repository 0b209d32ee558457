// Package main provides the ISOmorphe API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/ecospheres/isomorphe/pkg/queue"
	"github.com/ecospheres/isomorphe/pkg/web"
)

type API struct {
	logger              *slog.Logger
	queue               *queue.Queue
	transformationsPath string
	validate            *validator.Validate
}

func NewAPI(logger *slog.Logger, q *queue.Queue, transformationsPath string) *API {
	return &API{
		logger:              logger,
		queue:               q,
		transformationsPath: transformationsPath,
		validate:            validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.queue, a.validate, a.transformationsPath, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("ISOmorphe API")
	})

	app.Get("/transformations", handlers.GetTransformations)
	app.Post("/select/preview", handlers.PreviewSelection)
	app.Post("/groups", handlers.GetGroups)
	app.Post("/transform", handlers.CreateTransformJob)
	app.Post("/migrate/:jobID", handlers.CreateMigrateJob)
	app.Post("/jobs/:jobID/mef", handlers.DownloadMef)
	app.Get("/jobs/:id", handlers.GetJob)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
