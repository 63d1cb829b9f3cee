package rest

import (
	"context"
	"math"
	"time"

	"github.com/bwise1/waste_patrol/internal/geo"
	"github.com/bwise1/waste_patrol/internal/heatmap"
	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/bwise1/waste_patrol/util"
	"github.com/bwise1/waste_patrol/util/values"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTimeframe    = "30d"
	topAddressesLimit   = 10
	defaultActivityRows = 20
	maxActivityRows     = 100
)

// activity types
const (
	ActivityReportCreated  = "report_created"
	ActivityReportAssigned = "report_assigned"
	ActivityReportResolved = "report_resolved"
)

// TimeframeStart returns the start of a dashboard window ending at now.
// Unknown timeframes fall back to 30 days.
func TimeframeStart(timeframe string, now time.Time) (string, time.Time) {
	switch timeframe {
	case "7d":
		return timeframe, now.AddDate(0, 0, -7)
	case "90d":
		return timeframe, now.AddDate(0, 0, -90)
	case "1y":
		return timeframe, now.AddDate(-1, 0, 0)
	default:
		return defaultTimeframe, now.AddDate(0, 0, -30)
	}
}

func (api *API) DashboardStatsHelper(ctx context.Context, timeframe string) (model.DashboardStats, string, string, error) {
	timeframe, since := TimeframeStart(timeframe, time.Now().UTC())

	cacheKey := "dashboard:stats:" + timeframe
	if cached, ok := api.Cache.Get(cacheKey); ok {
		return cached.(model.DashboardStats), values.Success, "Dashboard statistics retrieved successfully", nil
	}

	stats := model.DashboardStats{Timeframe: timeframe}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.Overview, err = api.OverviewRepo(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.PriorityDistribution, err = api.PriorityDistributionRepo(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.DailyTrends, err = api.DailyTrendsRepo(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		stats.VolumeStats, err = api.VolumeStatsRepo(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TopLocations, err = api.TopAddressesRepo(gctx, topAddressesLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.DashboardStats{}, values.Error, "Failed to fetch dashboard statistics", err
	}

	if stats.Overview.TotalReports > 0 {
		stats.Overview.ResolutionRate = math.Round(float64(stats.Overview.ResolvedReports) / float64(stats.Overview.TotalReports) * 100)
	}
	stats.VolumeStats.AverageVolume = util.Round(stats.VolumeStats.AverageVolume, 2)

	api.Cache.Set(cacheKey, stats, api.Config.StatsCacheTTL)
	return stats, values.Success, "Dashboard statistics retrieved successfully", nil
}

// HeatmapResult is what the heatmap endpoint returns in json format.
type HeatmapResult struct {
	Points  []model.HeatmapPoint `json:"points"`
	Total   int                  `json:"total"`
	Filters map[string]string    `json:"filters"`
}

func (api *API) HeatmapHelper(ctx context.Context, params model.HeatmapParams) ([]model.HeatmapPoint, string, string, error) {
	if params.Status != "" && util.ValidateVar(params.Status, "report_status") != nil {
		return nil, values.BadRequestBody, "Invalid status filter", nil
	}
	if params.Priority != "" && util.ValidateVar(params.Priority, "priority") != nil {
		return nil, values.BadRequestBody, "Invalid priority filter", nil
	}
	if params.Aggregate && params.Bounds == nil {
		return nil, values.BadRequestBody, "aggregate requires bounds", nil
	}

	rows, err := api.HeatmapRepo(ctx, params)
	if err != nil {
		return nil, values.Error, "Failed to fetch heatmap data", err
	}

	points := make([]model.HeatmapPoint, 0, len(rows))
	for _, r := range rows {
		if params.Bounds != nil && !geo.Contains(*params.Bounds, r.Latitude, r.Longitude) {
			continue
		}
		id, createdAt := r.ID, r.CreatedAt
		points = append(points, model.HeatmapPoint{
			Latitude:   r.Latitude,
			Longitude:  r.Longitude,
			Weight:     heatmap.Weight(r.Detection),
			Intensity:  heatmap.Intensity(r.Detection.SeverityLevel),
			ReportID:   &id,
			ReportCode: r.ReportCode,
			Priority:   r.Priority,
			Status:     r.Status,
			Severity:   r.Detection.SeverityLevel,
			CreatedAt:  &createdAt,
		})
	}

	if params.Aggregate && params.Bounds != nil {
		points = heatmap.Aggregate(points, heatmap.CellLevel(*params.Bounds))
	}
	return points, values.Success, "Heatmap data retrieved successfully", nil
}

func (api *API) RecentActivityHelper(ctx context.Context, limit int) ([]model.Activity, string, string, error) {
	if limit <= 0 {
		limit = defaultActivityRows
	}
	if limit > maxActivityRows {
		limit = maxActivityRows
	}

	activities, err := api.RecentActivityRepo(ctx, limit)
	if err != nil {
		return nil, values.Error, "Failed to fetch recent activity", err
	}
	return activities, values.Success, "Recent activity retrieved successfully", nil
}

func describeActivity(act *model.Activity, resolverName *string) {
	switch act.Status {
	case values.StatusResolved:
		act.Type = ActivityReportResolved
		name := "Authority"
		if resolverName != nil {
			name = *resolverName
		}
		act.Description = "Waste report resolved by " + name
	case values.StatusInProgress:
		act.Type = ActivityReportAssigned
		name := "Authority"
		if act.Assignee != nil {
			name = act.Assignee.Name
		}
		act.Description = "Waste report assigned to " + name
	default:
		act.Type = ActivityReportCreated
		name := "Unknown"
		if act.Citizen != nil && act.Citizen.Name != "" {
			name = act.Citizen.Name
		}
		act.Description = "New waste report created by " + name
	}
}
