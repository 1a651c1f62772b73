package http

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deskhub/support-service/internal/api/http/handlers"
	"github.com/deskhub/support-service/internal/auth"
	"github.com/deskhub/support-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Availability   *handlers.AvailabilityHandler
	Analytics      *handlers.AnalyticsHandler
	Stream         *handlers.StreamHandler
	AuthMiddleware *auth.AuthMiddleware
	Registry       *prometheus.Registry
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/me", cfg.Users.Me)
	protected.Get("/me/availability", auth.RequireAgentOrAdmin(), cfg.Availability.GetAvailability)
	protected.Patch("/me/availability", auth.RequireAgentOrAdmin(), cfg.Availability.UpdateAvailability)

	tickets := protected.Group("/tickets")
	tickets.Post("", cfg.Tickets.CreateTicket)
	tickets.Get("", cfg.Tickets.ListTickets)
	tickets.Get("/search", cfg.Tickets.SearchTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/status", auth.RequireAgentOrAdmin(), cfg.Tickets.SetStatus)
	tickets.Get("/:id/messages", cfg.Tickets.ListMessages)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Get("/:id/attachments", cfg.Tickets.ListAttachments)
	tickets.Get("/:id/events", cfg.Stream.Stream)
	tickets.Post("/:id/assign", auth.RequireAgentOrAdmin(), cfg.Tickets.Assign)
	tickets.Post("/:id/draft-reply", auth.RequireAgentOrAdmin(), cfg.Tickets.DraftReply)

	admin := protected.Group("/admin", auth.RequireRole(domain.RoleAdmin))
	admin.Post("/users", cfg.Users.CreateUser)
	admin.Get("/agents", cfg.Availability.ListAgents)
	admin.Get("/analytics/summary", cfg.Analytics.Summary)
	admin.Get("/analytics/volume", cfg.Analytics.Volume)
	admin.Get("/analytics/resolution", cfg.Analytics.Resolution)
}
