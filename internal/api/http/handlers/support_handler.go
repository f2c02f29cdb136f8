package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// SupportHandler exposes the support engineer's dashboard actions.
type SupportHandler struct {
	tickets *service.TicketService
	support *service.SupportService
}

// NewSupportHandler constructs handler.
func NewSupportHandler(tickets *service.TicketService, support *service.SupportService) *SupportHandler {
	return &SupportHandler{tickets: tickets, support: support}
}

// ListIncidents GET /support/incidents.
func (h *SupportHandler) ListIncidents(c *fiber.Ctx) error {
	filter := service.IncidentFilter{Assignee: c.Query("assignee")}
	if status := c.Query("status"); status != "" {
		st := domain.IncidentStatus(status)
		if !st.Valid() {
			return apperrors.NewValidationError("unknown status", map[string]any{"status": status})
		}
		filter.Statuses = []domain.IncidentStatus{st}
	}
	page := parseInt(c.Query("page"), 1)
	filter.Limit = parseInt(c.Query("page_size"), 50)
	filter.Offset = (page - 1) * filter.Limit

	incidents := h.tickets.ListIncidents(c.UserContext(), filter)
	items := make([]dto.IncidentResponse, 0, len(incidents))
	for _, inc := range incidents {
		items = append(items, dto.NewIncidentResponse(inc))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListTickets GET /support/tickets.
func (h *SupportHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets := h.tickets.ListStaffTickets(c.UserContext(), filter)
	items := make([]dto.TicketSummary, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, dto.NewTicketSummary(t))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddWorklog POST /support/tickets/:id/worklog.
func (h *SupportHandler) AddWorklog(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.WorklogRequest
	if err := bodyParse(c, &req); err != nil {
		return err
	}
	ticket, err := h.support.AddWorklog(c.UserContext(), c.Params("id"), principal.Account.Identity, req.Action, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket, "")})
}

// RequestApproval POST /support/incidents/:id/request-approval.
func (h *SupportHandler) RequestApproval(c *fiber.Ctx) error {
	incident, err := h.support.RequestApproval(c.UserContext(), c.Params("id"))
	return h.incident(c, incident, err, fiber.StatusAccepted)
}

// Approve POST /support/incidents/:id/approve.
func (h *SupportHandler) Approve(c *fiber.Ctx) error {
	incident, err := h.support.Approve(c.UserContext(), c.Params("id"))
	return h.incident(c, incident, err, fiber.StatusOK)
}

// Reject POST /support/incidents/:id/reject.
func (h *SupportHandler) Reject(c *fiber.Ctx) error {
	var req dto.IncidentNoteRequest
	if err := bodyParse(c, &req); err != nil {
		return err
	}
	incident, err := h.support.Reject(c.UserContext(), c.Params("id"), req.Note)
	return h.incident(c, incident, err, fiber.StatusOK)
}

// Escalate POST /support/incidents/:id/escalate.
func (h *SupportHandler) Escalate(c *fiber.Ctx) error {
	var req dto.IncidentNoteRequest
	if err := bodyParse(c, &req); err != nil {
		return err
	}
	incident, err := h.support.Escalate(c.UserContext(), c.Params("id"), req.Note)
	return h.incident(c, incident, err, fiber.StatusOK)
}

// AttachLink POST /support/incidents/:id/link.
func (h *SupportHandler) AttachLink(c *fiber.Ctx) error {
	var req dto.DownloadLinkRequest
	if err := bodyParse(c, &req); err != nil {
		return err
	}
	incident, err := h.support.AttachDownloadLink(c.UserContext(), c.Params("id"), req.Link)
	return h.incident(c, incident, err, fiber.StatusOK)
}

// SendEmail POST /support/incidents/:id/email.
func (h *SupportHandler) SendEmail(c *fiber.Ctx) error {
	incident, err := h.support.SendEmail(c.UserContext(), c.Params("id"))
	return h.incident(c, incident, err, fiber.StatusOK)
}

// Close POST /support/incidents/:id/close.
func (h *SupportHandler) Close(c *fiber.Ctx) error {
	incident, err := h.support.CloseIncident(c.UserContext(), c.Params("id"))
	return h.incident(c, incident, err, fiber.StatusOK)
}

func (h *SupportHandler) incident(c *fiber.Ctx, incident domain.Incident, err error, status int) error {
	if err != nil {
		return err
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.NewIncidentResponse(incident)})
}
