package dto

import (
	"github.com/deskhub/support-service/internal/domain"
)

// AnalyticsSummaryResponse is the admin dashboard headline payload.
type AnalyticsSummaryResponse struct {
	Total    int            `json:"total"`
	OpenLike int            `json:"open_like"`
	ByStatus map[string]int `json:"by_status"`
}

// VolumePoint is one day in the created-ticket series.
type VolumePoint struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// AnalyticsVolumeResponse wraps the daily series with its window size.
type AnalyticsVolumeResponse struct {
	Days   int           `json:"days"`
	Series []VolumePoint `json:"series"`
}

// AnalyticsResolutionResponse reports average resolution time in seconds.
// AvgResolutionSeconds is null until at least one ticket has closed.
type AnalyticsResolutionResponse struct {
	ResolvedCount        int    `json:"resolved_count"`
	AvgResolutionSeconds *int64 `json:"avg_resolution_seconds"`
}

// NewAnalyticsVolumeResponse maps the daily series.
func NewAnalyticsVolumeResponse(days int, series []domain.TicketVolumePoint) AnalyticsVolumeResponse {
	points := make([]VolumePoint, 0, len(series))
	for _, point := range series {
		points = append(points, VolumePoint{
			Day:   point.Day.Format("2006-01-02"),
			Count: point.Count,
		})
	}
	return AnalyticsVolumeResponse{Days: days, Series: points}
}

// NewAnalyticsResolutionResponse maps the resolution aggregate.
func NewAnalyticsResolutionResponse(stats domain.ResolutionStats) AnalyticsResolutionResponse {
	return AnalyticsResolutionResponse{
		ResolvedCount:        stats.ResolvedCount,
		AvgResolutionSeconds: stats.AvgResolutionSeconds,
	}
}
