package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/helpdesk/internal/api/http/handlers"
	"github.com/opsdesk/helpdesk/internal/auth"
	"github.com/opsdesk/helpdesk/internal/delegation"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health               *handlers.HealthHandler
	Users                *handlers.UsersHandler
	Organizations        *handlers.OrganizationsHandler
	Departments          *handlers.DepartmentsHandler
	Members              *handlers.MembersHandler
	Tickets              *handlers.TicketsHandler
	Agent                *handlers.AgentHandler
	AuthMiddleware       *auth.AuthMiddleware
	DelegationMiddleware *delegation.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Users.Me)

	// organization creation needs only a session; everything below an
	// :org_id additionally needs an active membership there
	orgs := app.Group("/orgs", cfg.AuthMiddleware.Handle)
	orgs.Post("/", cfg.Organizations.Create)

	org := orgs.Group("/:org_id", cfg.AuthMiddleware.RequireMembership)
	org.Get("/", cfg.Organizations.Get)
	org.Put("/instruction", cfg.Organizations.UpdateInstruction)
	org.Post("/agent-context", cfg.Organizations.IssueAgentContext)

	org.Post("/departments", cfg.Departments.Create)
	org.Get("/departments", cfg.Departments.List)
	org.Put("/departments/:id", cfg.Departments.Update)
	org.Delete("/departments/:id", cfg.Departments.Delete)

	org.Post("/members", cfg.Members.Add)
	org.Get("/members", cfg.Members.List)
	org.Get("/members/:id", cfg.Members.Get)
	org.Put("/members/:id/role", cfg.Members.ChangeRole)
	org.Put("/members/:id/department", cfg.Members.ChangeDepartment)
	org.Delete("/members/:id", cfg.Members.Remove)

	org.Post("/tickets", cfg.Tickets.Create)
	org.Get("/tickets", cfg.Tickets.List)
	org.Get("/tickets/:id", cfg.Tickets.Get)
	org.Patch("/tickets/:id", cfg.Tickets.Update)
	org.Put("/tickets/:id/status", cfg.Tickets.ChangeStatus)
	org.Put("/tickets/:id/assignees", cfg.Tickets.Assign)
	org.Put("/tickets/:id/department", cfg.Tickets.ReassignDepartment)
	org.Post("/tickets/:id/messages", cfg.Tickets.AddMessage)
	org.Get("/tickets/:id/messages", cfg.Tickets.ListMessages)
	org.Get("/tickets/:id/history", cfg.Tickets.History)

	// agent tool surface, authenticated by the two-token protocol
	agent := app.Group("/agent/tools", cfg.DelegationMiddleware.Handle)
	agent.Post("/describe", cfg.Agent.Describe)
	agent.Post("/tickets/create", cfg.Agent.CreateTicket)
	agent.Post("/tickets/update", cfg.Agent.UpdateTicket)
	agent.Post("/tickets/list", cfg.Agent.ListTickets)
}
