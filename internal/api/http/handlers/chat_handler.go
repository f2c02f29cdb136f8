package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/dto"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/chat"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// ChatHandler drives the business user's assistant session.
type ChatHandler struct {
	chat   *chat.Dispatcher
	events events.Dispatcher
}

// NewChatHandler constructs handler.
func NewChatHandler(dispatcher *chat.Dispatcher, bus events.Dispatcher) *ChatHandler {
	return &ChatHandler{chat: dispatcher, events: bus}
}

// SendMessage POST /chat/messages.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.ChatMessageRequest
	if err := bodyParse(c, &req); err != nil {
		return err
	}
	session := h.chat.Session(principal.Account.Identity)
	class, err := h.chat.Send(c.UserContext(), session, req.Text)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": dto.ChatSendResponse{
		Intent:    string(class.Intent),
		Sensitive: class.Sensitive,
	}})
}

// ListMessages GET /chat/messages.
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	session := h.chat.Session(principal.Account.Identity)
	return c.JSON(fiber.Map{"data": dto.ChatConversationResponse{
		Messages: session.Messages(),
		Thinking: session.Thinking(),
	}})
}

// EndSession DELETE /chat/session.
func (h *ChatHandler) EndSession(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	revoked := h.chat.EndSession(principal.Account.Identity)
	return c.JSON(fiber.Map{"data": fiber.Map{"revoked_steps": revoked}})
}

// RequestPrompt POST /chat/prompt publishes ChatPromptRequested.
func (h *ChatHandler) RequestPrompt(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.ChatPromptRequest
	if err := bodyParse(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return apperrors.NewValidationError("prompt required", nil)
	}
	identity := req.Identity
	if identity == "" {
		identity = principal.Account.Identity
	}
	if _, known := domain.LookupAccount(identity); !known {
		return apperrors.NewNotFound("account", map[string]any{"identity": identity})
	}
	err := h.events.Publish(c.UserContext(), events.Event{
		Type:    events.EventChatPromptRequested,
		Actor:   events.Actor{Identity: principal.Account.Identity, Role: principal.Account.Role},
		Payload: events.ChatPromptRequestedPayload{Identity: identity, Prompt: req.Prompt},
	})
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusAccepted)
}
