package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thnhpht/ITS/internal/api/http/handlers"
	"github.com/thnhpht/ITS/internal/auth"
	"github.com/thnhpht/ITS/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Callback       *handlers.CallbackHandler
	Routing        *handlers.RoutingHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/api/v1")
	v1.Post("/login", cfg.Auth.Login)

	v1.Put("/its/:refNo", cfg.AuthMiddleware.Handle, auth.RequireRole(auth.RoleCallback), cfg.Callback.Resolve)

	ops := v1.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole(auth.RoleOperator))
	ops.Post("/routing/preview", cfg.Routing.Preview)
	ops.Post("/recipients/lookup", cfg.Routing.Recipients)
}
