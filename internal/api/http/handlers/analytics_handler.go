package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/deskhub/support-service/internal/api/dto"
	"github.com/deskhub/support-service/internal/service"
	apperrors "github.com/deskhub/support-service/pkg/util"
)

// AnalyticsHandler serves the admin reporting endpoints.
type AnalyticsHandler struct {
	service *service.AnalyticsService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analyticsService *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: analyticsService}
}

// Summary GET /admin/analytics/summary.
func (h *AnalyticsHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.service.Summary(c.UserContext())
	if err != nil {
		return err
	}
	byStatus := make(map[string]int, len(summary.ByStatus))
	for status, count := range summary.ByStatus {
		byStatus[string(status)] = count
	}
	return c.JSON(fiber.Map{"data": dto.AnalyticsSummaryResponse{
		Total:    summary.Total,
		OpenLike: summary.OpenLike,
		ByStatus: byStatus,
	}})
}

// Volume GET /admin/analytics/volume?days=30.
func (h *AnalyticsHandler) Volume(c *fiber.Ctx) error {
	days := 30
	if daysStr := c.Query("days"); daysStr != "" {
		parsed, err := strconv.Atoi(daysStr)
		if err != nil {
			return apperrors.NewValidationError("days must be an integer", nil)
		}
		days = parsed
	}
	series, err := h.service.Volume(c.UserContext(), days)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAnalyticsVolumeResponse(days, series)})
}

// Resolution GET /admin/analytics/resolution.
func (h *AnalyticsHandler) Resolution(c *fiber.Ctx) error {
	stats, err := h.service.Resolution(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAnalyticsResolutionResponse(stats)})
}
