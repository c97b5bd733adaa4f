// Package main provides the flowengine API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/zapdesk/flowengine/pkg/eventbus"
	"github.com/zapdesk/flowengine/pkg/persistence"
	"github.com/zapdesk/flowengine/pkg/services"
	"github.com/zapdesk/flowengine/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	flowService := services.NewFlow(a.persistence, a.validate)
	sessionService := services.NewSession(a.persistence, a.eventBus)

	handlers := web.NewAPIHandlers(flowService, sessionService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowengine API")
	})

	f := app.Group("/flows")
	f.Get("/", handlers.GetFlows)
	f.Post("/", handlers.CreateFlow)
	f.Get("/:id", handlers.GetFlow)
	f.Patch("/:id", handlers.UpdateFlow)
	f.Delete("/:id", handlers.DeleteFlow)
	f.Post("/:id/duplicate", handlers.DuplicateFlow)

	// Canvas and version endpoints:
	f.Get("/:id/canvas", handlers.GetCanvas)
	f.Put("/:id/canvas", handlers.SaveCanvas)
	f.Get("/:id/versions", handlers.GetVersions)
	f.Post("/:id/versions/:version/restore", handlers.RestoreVersion)

	app.Post("/messages", handlers.ReceiveMessage)

	s := app.Group("/sessions")
	s.Post("/", handlers.StartSession)
	s.Get("/:conversationId", handlers.GetSession)
	s.Post("/:conversationId/cancel", handlers.CancelSession)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
