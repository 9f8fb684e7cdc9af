// Package main provides the Signoff API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/signoffhq/signoff/pkg/cache"
	"github.com/signoffhq/signoff/pkg/eventbus"
	"github.com/signoffhq/signoff/pkg/persistence"
	"github.com/signoffhq/signoff/pkg/registry"
	"github.com/signoffhq/signoff/pkg/services"
	"github.com/signoffhq/signoff/pkg/web"
)

type API struct {
	logger          *slog.Logger
	persistence     persistence.Persistence
	registry        *registry.Registry
	eventBus        eventbus.EventBus
	invalidator     cache.Invalidator
	validate        *validator.Validate
	approvalService *services.Approval
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	invalidator cache.Invalidator,
) *API {
	registryInstance := registry.NewDefaultRegistry(logger)

	return &API{
		logger:          logger,
		persistence:     persistence,
		registry:        registryInstance,
		eventBus:        eventBus,
		invalidator:     invalidator,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		approvalService: services.NewApproval(persistence, registryInstance, invalidator, eventBus, logger),
	}
}

func (a *API) ApprovalService() *services.Approval {
	return a.approvalService
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.approvalService, a.validate, a.registry, web.DefaultAuthorizer)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Signoff API")
	})

	approvals := app.Group("/approvals")
	approvals.Get("/", handlers.GetApprovals)
	approvals.Post("/", handlers.CreateApproval)
	approvals.Get("/:id", handlers.GetApproval)
	approvals.Get("/:id/current-step", handlers.GetCurrentStep)

	steps := app.Group("/steps")
	steps.Post("/:id/approve", handlers.ApproveStep)
	steps.Post("/:id/reject", handlers.RejectStep)

	app.Get("/workflow-types", handlers.GetWorkflowTypes)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
