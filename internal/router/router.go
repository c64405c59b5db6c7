package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-grading-api/internal/config"
	"github.com/noah-isme/gema-grading-api/internal/handler"
	"github.com/noah-isme/gema-grading-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SessionHandler  *handler.GradingSessionHandler
	AnalysisHandler *handler.AnalysisHandler
	Sessions        handler.SessionCounter
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Sessions))

	sessions := api.Group("/grading/sessions")
	if deps.SessionHandler != nil {
		deps.SessionHandler.Register(sessions)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.Register(sessions)
	}
}
