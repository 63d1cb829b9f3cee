package rest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrLocationNotFound = errors.New("location not found")

const locationColumns = `
            l.id, l.name, l.type,
            ST_Y(l.position::geometry) AS latitude, ST_X(l.position::geometry) AS longitude,
            l.street, l.area, l.city, l.state, l.zip_code, l.country, l.boundary::text,
            l.schedule_frequency, l.schedule_days, l.schedule_time, l.last_collection, l.next_collection,
            l.total_reports, l.resolved_reports, l.average_resolution_hours, l.last_report_date, l.risk_level,
            l.is_active, l.created_at, l.updated_at`

// locationCandidate is a location whose boundary or point may cover a report.
type locationCandidate struct {
	ID        uuid.UUID
	Latitude  float64
	Longitude float64
	Boundary  *string
}

// locationReportStats is the raw aggregate over reports covered by a location.
type locationReportStats struct {
	Total          int
	Resolved       int
	Open           int
	AvgResolution  float64
	LastReportDate *time.Time
}

func scanLocation(row pgx.Row, extra ...interface{}) (model.Location, error) {
	var (
		loc      model.Location
		boundary *string
	)
	dest := []interface{}{
		&loc.ID, &loc.Name, &loc.Type,
		&loc.Latitude, &loc.Longitude,
		&loc.Address.Street, &loc.Address.Area, &loc.Address.City, &loc.Address.State, &loc.Address.ZipCode,
		&loc.Address.Country, &boundary,
		&loc.Schedule.Frequency, &loc.Schedule.Days, &loc.Schedule.Time,
		&loc.Schedule.LastCollection, &loc.Schedule.NextCollection,
		&loc.Statistics.TotalReports, &loc.Statistics.ResolvedReports, &loc.Statistics.AverageResolutionHours,
		&loc.Statistics.LastReportDate, &loc.Statistics.RiskLevel,
		&loc.IsActive, &loc.CreatedAt, &loc.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return model.Location{}, err
	}

	if boundary != nil {
		loc.Boundary = []byte(*boundary)
	}
	if loc.Schedule.Days == nil {
		loc.Schedule.Days = []string{}
	}
	return loc, nil
}

func collectLocations(rows pgx.Rows, withDistance bool) ([]model.Location, error) {
	defer rows.Close()

	locations := []model.Location{}
	for rows.Next() {
		var (
			loc      model.Location
			err      error
			distance float64
		)
		if withDistance {
			loc, err = scanLocation(rows, &distance)
			loc.Distance = &distance
		} else {
			loc, err = scanLocation(rows)
		}
		if err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

func (api *API) ListLocationsRepo(ctx context.Context, params model.LocationListParams) ([]model.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations l WHERE l.is_active = TRUE`
	args := []interface{}{}

	if params.Type != "" {
		args = append(args, params.Type)
		query += fmt.Sprintf(" AND l.type = $%d", len(args))
	}
	if params.City != "" {
		args = append(args, "%"+params.City+"%")
		query += fmt.Sprintf(" AND l.city ILIKE $%d", len(args))
	}
	args = append(args, params.Limit)
	query += fmt.Sprintf(" ORDER BY l.total_reports DESC, l.name LIMIT $%d", len(args))

	rows, err := api.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	return collectLocations(rows, false)
}

func (api *API) NearbyLocationsRepo(ctx context.Context, params model.NearbyLocationParams) ([]model.Location, error) {
	query := `
        SELECT ` + locationColumns + `,
            ST_Distance(l.position, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) AS distance
        FROM locations l
        WHERE l.is_active = TRUE
          AND ST_DWithin(l.position, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
        ORDER BY distance
        LIMIT $4`

	rows, err := api.DB.Query(ctx, query, params.Longitude, params.Latitude, params.Radius, params.Limit)
	if err != nil {
		return nil, fmt.Errorf("finding nearby locations: %w", err)
	}
	return collectLocations(rows, true)
}

func (api *API) GetLocationByIDRepo(ctx context.Context, id uuid.UUID) (model.Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations l WHERE l.id = $1 AND l.is_active = TRUE`

	loc, err := scanLocation(api.DB.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Location{}, ErrLocationNotFound
	}
	return loc, err
}

func locationArgs(req model.LocationRequest) []interface{} {
	var boundary *string
	if len(req.Boundary) > 0 {
		s := string(req.Boundary)
		boundary = &s
	}
	days := req.Days
	if days == nil {
		days = []string{}
	}
	return []interface{}{
		req.Name, req.Type, req.Longitude, req.Latitude,
		req.Street, req.Area, req.City, req.State, req.ZipCode, req.Country,
		boundary, req.Frequency, days, req.Time,
	}
}

func (api *API) CreateLocationRepo(ctx context.Context, req model.LocationRequest) (model.Location, error) {
	query := `
        INSERT INTO locations AS l (
            name, type, position, street, area, city, state, zip_code, country,
            boundary, schedule_frequency, schedule_days, schedule_time
        ) VALUES (
            $1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5, $6, $7, $8, $9, $10,
            $11::jsonb, $12, $13, $14
        ) RETURNING ` + locationColumns

	loc, err := scanLocation(api.DB.QueryRow(ctx, query, locationArgs(req)...))
	if err != nil {
		return model.Location{}, fmt.Errorf("inserting location: %w", err)
	}
	return loc, nil
}

func (api *API) UpdateLocationRepo(ctx context.Context, id uuid.UUID, req model.LocationRequest) (model.Location, error) {
	query := `
        UPDATE locations AS l SET
            name = $1, type = $2, position = ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography,
            street = $5, area = $6, city = $7, state = $8, zip_code = $9, country = $10,
            boundary = $11::jsonb, schedule_frequency = $12, schedule_days = $13, schedule_time = $14,
            updated_at = NOW()
        WHERE l.id = $15 AND l.is_active = TRUE
        RETURNING ` + locationColumns

	args := append(locationArgs(req), id)
	loc, err := scanLocation(api.DB.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Location{}, ErrLocationNotFound
	}
	if err != nil {
		return model.Location{}, fmt.Errorf("updating location: %w", err)
	}
	return loc, nil
}

func (api *API) RecordCollectionRepo(ctx context.Context, id uuid.UUID, collectedAt time.Time, next *time.Time) (model.Location, error) {
	query := `
        UPDATE locations AS l SET last_collection = $1, next_collection = $2, updated_at = NOW()
        WHERE l.id = $3 AND l.is_active = TRUE
        RETURNING ` + locationColumns

	loc, err := scanLocation(api.DB.QueryRow(ctx, query, collectedAt, next, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Location{}, ErrLocationNotFound
	}
	if err != nil {
		return model.Location{}, fmt.Errorf("recording collection: %w", err)
	}
	return loc, nil
}

// LocationCandidatesRepo returns locations with a boundary, or whose point lies within radius metres.
func (api *API) LocationCandidatesRepo(ctx context.Context, lat, lng, radius float64) ([]locationCandidate, error) {
	query := `
        SELECT l.id, ST_Y(l.position::geometry), ST_X(l.position::geometry), l.boundary::text
        FROM locations l
        WHERE l.is_active = TRUE
          AND (l.boundary IS NOT NULL
               OR ST_DWithin(l.position, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3))`

	rows, err := api.DB.Query(ctx, query, lng, lat, radius)
	if err != nil {
		return nil, fmt.Errorf("finding candidate locations: %w", err)
	}
	defer rows.Close()

	var out []locationCandidate
	for rows.Next() {
		var c locationCandidate
		if err := rows.Scan(&c.ID, &c.Latitude, &c.Longitude, &c.Boundary); err != nil {
			return nil, fmt.Errorf("scanning candidate location: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LocationReportStatsRepo aggregates the reports covered by a location's
// boundary, or lying within radius metres of its point when it has none.
func (api *API) LocationReportStatsRepo(ctx context.Context, id uuid.UUID, radius float64) (locationReportStats, error) {
	query := `
        SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE r.status = 'resolved'),
            COUNT(*) FILTER (WHERE r.status IN ('pending', 'in_progress')),
            COALESCE(AVG(EXTRACT(EPOCH FROM (r.resolved_at - r.created_at)) / 3600)
                FILTER (WHERE r.status = 'resolved' AND r.resolved_at IS NOT NULL), 0),
            MAX(r.created_at)
        FROM waste_reports r
        JOIN locations l ON l.id = $1
        WHERE r.is_active = TRUE
          AND CASE
                WHEN l.boundary IS NOT NULL
                    THEN ST_Covers(ST_SetSRID(ST_GeomFromGeoJSON(l.boundary::text), 4326), r.position::geometry)
                ELSE ST_DWithin(r.position, l.position, $2)
              END`

	var s locationReportStats
	err := api.DB.QueryRow(ctx, query, id, radius).Scan(&s.Total, &s.Resolved, &s.Open, &s.AvgResolution, &s.LastReportDate)
	if err != nil {
		return locationReportStats{}, fmt.Errorf("aggregating location stats: %w", err)
	}
	return s, nil
}

func (api *API) UpdateLocationStatsRepo(ctx context.Context, id uuid.UUID, stats model.LocationStatistics) error {
	query := `
        UPDATE locations SET
            total_reports = $2, resolved_reports = $3, average_resolution_hours = $4,
            last_report_date = $5, risk_level = $6, updated_at = NOW()
        WHERE id = $1`

	_, err := api.DB.Exec(ctx, query, id,
		stats.TotalReports, stats.ResolvedReports, stats.AverageResolutionHours,
		stats.LastReportDate, stats.RiskLevel,
	)
	if err != nil {
		return fmt.Errorf("updating location stats: %w", err)
	}
	return nil
}
