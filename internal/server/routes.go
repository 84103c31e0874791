package server

import (
	"github.com/gofiber/fiber/v2"

	"tokoscout/internal/core/history"
	"tokoscout/internal/core/session"
	"tokoscout/internal/health"
	"tokoscout/internal/platform/redis"
)

type Dependencies struct {
	Console *session.Controller
	History *history.Store
	Redis   *redis.Service
}

func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	healthHandler := health.NewHealthHandler(d.Redis)
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)

	api := app.Group("/v1")

	consoleHandler := session.NewHandler(d.Console)
	api.Post("/queries", consoleHandler.HandleAddQuery)
	api.Get("/queries", consoleHandler.HandleListQueries)
	api.Delete("/queries/last", consoleHandler.HandlePopQuery)
	api.Delete("/queries/:index", consoleHandler.HandleRemoveQuery)

	api.Post("/search", consoleHandler.HandleSubmit)
	api.Get("/search", consoleHandler.HandleSnapshot)
	api.Post("/view/toggle", consoleHandler.HandleToggle)

	historyHandler := history.NewHandler(d.History)
	api.Get("/history", historyHandler.HandleList)
	api.Post("/history/:id/load", consoleHandler.HandleLoadHistory)
	api.Delete("/history/:id", historyHandler.HandleDelete)
	api.Delete("/history", historyHandler.HandleClear)

	return healthHandler
}
