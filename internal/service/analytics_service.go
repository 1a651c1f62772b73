package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/deskhub/support-service/internal/domain"
	"github.com/deskhub/support-service/internal/repository"
	apperrors "github.com/deskhub/support-service/pkg/util"
)

// TicketSummary is the admin dashboard headline: total tickets, how many are
// still in flight, and the full status breakdown.
type TicketSummary struct {
	Total    int
	OpenLike int
	ByStatus map[domain.TicketStatus]int
}

// AnalyticsService answers admin reporting queries over the ticket table.
type AnalyticsService struct {
	store  repository.Store
	logger *zap.Logger
}

// NewAnalyticsService creates the service.
func NewAnalyticsService(store repository.Store, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{store: store, logger: logger}
}

// Summary returns ticket counts grouped by status. OpenLike counts everything
// that is neither RESOLVED nor CLOSED.
func (s *AnalyticsService) Summary(ctx context.Context) (*TicketSummary, error) {
	byStatus, err := s.store.Tickets().CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	summary := &TicketSummary{ByStatus: byStatus}
	for status, count := range byStatus {
		summary.Total += count
		if status != domain.TicketStatusResolved && status != domain.TicketStatusClosed {
			summary.OpenLike += count
		}
	}
	return summary, nil
}

// Volume returns the daily created-ticket series over the trailing window.
func (s *AnalyticsService) Volume(ctx context.Context, days int) ([]domain.TicketVolumePoint, error) {
	if days <= 0 {
		return nil, apperrors.NewValidationError("days must be > 0", nil)
	}
	since := time.Now().AddDate(0, 0, -days)
	series, err := s.store.Tickets().DailyCreatedCounts(ctx, since)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return series, nil
}

// Resolution returns the count of ever-closed tickets and their average
// open-to-close duration.
func (s *AnalyticsService) Resolution(ctx context.Context) (domain.ResolutionStats, error) {
	stats, err := s.store.Tickets().ResolutionStats(ctx)
	if err != nil {
		return domain.ResolutionStats{}, apperrors.MapError(err)
	}
	return stats, nil
}
