package rest

import (
	"context"
	"fmt"
	"time"

	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/google/uuid"
)

func (api *API) OverviewRepo(ctx context.Context) (model.Overview, error) {
	query := `
        SELECT
            (SELECT COUNT(*) FROM waste_reports WHERE is_active = TRUE),
            (SELECT COUNT(*) FROM waste_reports WHERE is_active = TRUE AND status = 'pending'),
            (SELECT COUNT(*) FROM waste_reports WHERE is_active = TRUE AND status = 'in_progress'),
            (SELECT COUNT(*) FROM waste_reports WHERE is_active = TRUE AND status = 'resolved'),
            (SELECT COUNT(*) FROM users WHERE is_active = TRUE AND role = 'citizen'),
            (SELECT COUNT(*) FROM users WHERE is_active = TRUE AND role = 'authority')`

	var o model.Overview
	err := api.DB.QueryRow(ctx, query).Scan(
		&o.TotalReports, &o.PendingReports, &o.InProgressReports, &o.ResolvedReports,
		&o.TotalCitizens, &o.TotalAuthorities,
	)
	if err != nil {
		return model.Overview{}, fmt.Errorf("counting overview: %w", err)
	}
	return o, nil
}

func (api *API) PriorityDistributionRepo(ctx context.Context) (map[string]int, error) {
	rows, err := api.DB.Query(ctx, `
        SELECT priority, COUNT(*) FROM waste_reports
        WHERE is_active = TRUE
        GROUP BY priority`)
	if err != nil {
		return nil, fmt.Errorf("counting priorities: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var (
			priority string
			count    int
		)
		if err := rows.Scan(&priority, &count); err != nil {
			return nil, fmt.Errorf("scanning priority count: %w", err)
		}
		out[priority] = count
	}
	return out, rows.Err()
}

func (api *API) DailyTrendsRepo(ctx context.Context, since time.Time) ([]model.DailyTrend, error) {
	rows, err := api.DB.Query(ctx, `
        SELECT TO_CHAR(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
               COUNT(*),
               COUNT(*) FILTER (WHERE status = 'resolved')
        FROM waste_reports
        WHERE is_active = TRUE AND created_at >= $1
        GROUP BY day
        ORDER BY day`, since)
	if err != nil {
		return nil, fmt.Errorf("computing daily trends: %w", err)
	}
	defer rows.Close()

	trends := []model.DailyTrend{}
	for rows.Next() {
		var t model.DailyTrend
		if err := rows.Scan(&t.Date, &t.Count, &t.Resolved); err != nil {
			return nil, fmt.Errorf("scanning daily trend: %w", err)
		}
		trends = append(trends, t)
	}
	return trends, rows.Err()
}

func (api *API) VolumeStatsRepo(ctx context.Context) (model.VolumeStats, error) {
	var v model.VolumeStats
	err := api.DB.QueryRow(ctx, `
        SELECT COALESCE(SUM(estimated_volume), 0), COALESCE(AVG(estimated_volume), 0), COALESCE(MAX(estimated_volume), 0)
        FROM waste_reports
        WHERE is_active = TRUE AND total_waste_area > 0`,
	).Scan(&v.TotalVolume, &v.AverageVolume, &v.MaxVolume)
	if err != nil {
		return model.VolumeStats{}, fmt.Errorf("computing volume stats: %w", err)
	}
	return v, nil
}

func (api *API) TopAddressesRepo(ctx context.Context, limit int) ([]model.AddressCount, error) {
	rows, err := api.DB.Query(ctx, `
        SELECT address, COUNT(*) AS reports
        FROM waste_reports
        WHERE is_active = TRUE AND total_waste_area > 0
        GROUP BY address
        ORDER BY reports DESC, address
        LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("finding top addresses: %w", err)
	}
	defer rows.Close()

	out := []model.AddressCount{}
	for rows.Next() {
		var a model.AddressCount
		if err := rows.Scan(&a.Address, &a.Count); err != nil {
			return nil, fmt.Errorf("scanning address count: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// HeatmapRepo loads the raw points. Bounds only pre-filter on latitude; longitude
// is checked by the caller so viewports crossing the antimeridian still work.
func (api *API) HeatmapRepo(ctx context.Context, params model.HeatmapParams) ([]heatmapRow, error) {
	query := `
        SELECT id, report_code, ST_Y(position::geometry), ST_X(position::geometry),
               total_waste_area, estimated_volume, severity_level, priority, status, created_at
        FROM waste_reports
        WHERE is_active = TRUE`
	args := []interface{}{}

	if params.Status != "" {
		args = append(args, params.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if params.Priority != "" {
		args = append(args, params.Priority)
		query += fmt.Sprintf(" AND priority = $%d", len(args))
	}
	if params.Bounds != nil {
		args = append(args, params.Bounds.SouthWestLat, params.Bounds.NorthEastLat)
		query += fmt.Sprintf(" AND ST_Y(position::geometry) BETWEEN $%d AND $%d", len(args)-1, len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := api.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading heatmap: %w", err)
	}
	defer rows.Close()

	var out []heatmapRow
	for rows.Next() {
		var h heatmapRow
		err := rows.Scan(&h.ID, &h.ReportCode, &h.Latitude, &h.Longitude,
			&h.Detection.TotalWasteArea, &h.Detection.EstimatedVolume, &h.Detection.SeverityLevel,
			&h.Priority, &h.Status, &h.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning heatmap row: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

type heatmapRow struct {
	ID         uuid.UUID
	ReportCode string
	Latitude   float64
	Longitude  float64
	Detection  model.Detection
	Priority   string
	Status     string
	CreatedAt  time.Time
}

func (api *API) RecentActivityRepo(ctx context.Context, limit int) ([]model.Activity, error) {
	rows, err := api.DB.Query(ctx, `
        SELECT r.id, r.report_code, r.status, r.priority, r.address, r.updated_at,
               c.id, c.name, c.email,
               a.id, a.name, a.email,
               rb.name
        FROM waste_reports r
        JOIN users c ON c.id = r.citizen_id
        LEFT JOIN users a ON a.id = r.assigned_to
        LEFT JOIN users rb ON rb.id = r.resolved_by
        WHERE r.is_active = TRUE
        ORDER BY r.updated_at DESC
        LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("loading recent activity: %w", err)
	}
	defer rows.Close()

	out := []model.Activity{}
	for rows.Next() {
		var (
			act                       model.Activity
			citizen                   model.UserSummary
			assigneeID                *uuid.UUID
			assigneeName, assigneeEml *string
			resolverName              *string
		)
		err := rows.Scan(&act.ReportID, &act.ReportCode, &act.Status, &act.Priority, &act.Address, &act.Timestamp,
			&citizen.ID, &citizen.Name, &citizen.Email,
			&assigneeID, &assigneeName, &assigneeEml,
			&resolverName)
		if err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		act.Citizen = &citizen
		if assigneeID != nil && assigneeName != nil {
			act.Assignee = &model.UserSummary{ID: *assigneeID, Name: *assigneeName}
			if assigneeEml != nil {
				act.Assignee.Email = *assigneeEml
			}
		}
		describeActivity(&act, resolverName)
		out = append(out, act)
	}
	return out, rows.Err()
}
