package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskhub/support-service/internal/api/dto"
	"github.com/deskhub/support-service/internal/auth"
	"github.com/deskhub/support-service/internal/domain"
	"github.com/deskhub/support-service/internal/service"
	apperrors "github.com/deskhub/support-service/pkg/util"
)

// AvailabilityHandler manages agent availability endpoints.
type AvailabilityHandler struct {
	service *service.AvailabilityService
}

// NewAvailabilityHandler constructs handler.
func NewAvailabilityHandler(availabilityService *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: availabilityService}
}

// GetAvailability GET /me/availability.
func (h *AvailabilityHandler) GetAvailability(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	profile, err := h.service.GetProfile(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": availabilityResponse(profile)})
}

// UpdateAvailability PATCH /me/availability.
func (h *AvailabilityHandler) UpdateAvailability(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.UpdateAvailabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	profile, err := h.service.UpdateProfile(c.UserContext(), user.ID, service.ProfileUpdate{
		IsAvailable: req.IsAvailable,
		Capacity:    req.Capacity,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": availabilityResponse(profile)})
}

// ListAgents GET /admin/agents. Presence and load overview.
func (h *AvailabilityHandler) ListAgents(c *fiber.Ctx) error {
	agents, err := h.service.ListAgents(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.AgentPresence, 0, len(agents))
	for i := range agents {
		items = append(items, agentPresence(&agents[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func availabilityResponse(profile *service.AgentProfile) dto.AvailabilityResponse {
	return dto.AvailabilityResponse{
		Role:                profile.Agent.Role,
		IsAvailable:         profile.Agent.IsAvailable,
		Capacity:            profile.Agent.Capacity,
		ActiveAssignedCount: profile.ActiveCount,
	}
}

func agentPresence(load *domain.AgentLoad) dto.AgentPresence {
	return dto.AgentPresence{
		ID:                  load.Agent.ID,
		Username:            load.Agent.Username,
		Email:               load.Agent.Email,
		IsAvailable:         load.Agent.IsAvailable,
		Capacity:            load.Agent.Capacity,
		ActiveAssignedCount: load.ActiveCount,
	}
}
