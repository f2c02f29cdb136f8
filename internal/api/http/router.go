package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/servicedesk/internal/api/http/handlers"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Chat           *handlers.ChatHandler
	Tickets        *handlers.TicketsHandler
	Support        *handlers.SupportHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	app.Post("/auth/login", cfg.Auth.Login)

	authed := guard(cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	app.Get("/notifications", authed(cfg.Notifications.List)...)
	app.Post("/notifications/:id/ack", authed(cfg.Notifications.Acknowledge)...)
	app.Post("/chat/prompt", authed(cfg.Chat.RequestPrompt)...)

	business := guard(cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleBusiness))
	app.Post("/chat/messages", business(cfg.Chat.SendMessage)...)
	app.Get("/chat/messages", business(cfg.Chat.ListMessages)...)
	app.Delete("/chat/session", business(cfg.Chat.EndSession)...)
	app.Get("/tickets", business(cfg.Tickets.ListTickets)...)
	app.Get("/tickets/:id", business(cfg.Tickets.GetTicket)...)
	app.Get("/incidents/:id", business(cfg.Tickets.GetIncident)...)

	support := guard(cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleSupport))
	app.Get("/support/incidents", support(cfg.Support.ListIncidents)...)
	app.Get("/support/tickets", support(cfg.Support.ListTickets)...)
	app.Post("/support/tickets/:id/worklog", support(cfg.Support.AddWorklog)...)
	app.Post("/support/incidents/:id/request-approval", support(cfg.Support.RequestApproval)...)
	app.Post("/support/incidents/:id/approve", support(cfg.Support.Approve)...)
	app.Post("/support/incidents/:id/reject", support(cfg.Support.Reject)...)
	app.Post("/support/incidents/:id/escalate", support(cfg.Support.Escalate)...)
	app.Post("/support/incidents/:id/link", support(cfg.Support.AttachLink)...)
	app.Post("/support/incidents/:id/email", support(cfg.Support.SendEmail)...)
	app.Post("/support/incidents/:id/close", support(cfg.Support.Close)...)
}

// guard prefixes a handler with per-route middleware. An empty-prefix
// fiber group would apply its middleware to every later route.
func guard(middleware ...fiber.Handler) func(fiber.Handler) []fiber.Handler {
	return func(h fiber.Handler) []fiber.Handler {
		chain := make([]fiber.Handler, 0, len(middleware)+1)
		chain = append(chain, middleware...)
		return append(chain, h)
	}
}
