package rest

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/bwise1/waste_patrol/internal/geo"
	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/bwise1/waste_patrol/util"
	"github.com/bwise1/waste_patrol/util/values"
	"github.com/google/uuid"
)

const (
	defaultLocationCountry = "Bangladesh"
	maxLocationLimit       = 50
	defaultNearbyRadius    = 5000
	defaultNearbyLimit     = 10

	// reports within this many metres count toward a location without a boundary
	locationCoverRadius = 500
)

// risk levels
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// RiskLevel grades a location by its open report count.
func RiskLevel(open int) string {
	switch {
	case open >= 10:
		return RiskHigh
	case open >= 3:
		return RiskMedium
	default:
		return RiskLow
	}
}

// NextCollection returns when the next pickup is due after from.
func NextCollection(frequency *string, from time.Time) *time.Time {
	if frequency == nil {
		return nil
	}
	var next time.Time
	switch *frequency {
	case "daily":
		next = from.AddDate(0, 0, 1)
	case "weekly":
		next = from.AddDate(0, 0, 7)
	case "bi-weekly":
		next = from.AddDate(0, 0, 14)
	case "monthly":
		next = from.AddDate(0, 1, 0)
	default:
		return nil
	}
	return &next
}

func validateLocationRequest(req *model.LocationRequest) (string, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Country == "" {
		req.Country = defaultLocationCountry
	}
	if err := util.ValidateStruct(req); err != nil {
		return "Validation failed", err
	}
	if len(req.Boundary) > 0 && string(req.Boundary) != "null" {
		if _, err := geo.ParsePolygon(req.Boundary); err != nil {
			return "Boundary must be a valid GeoJSON polygon", err
		}
	} else {
		req.Boundary = nil
	}
	return "", nil
}

func (api *API) ListLocationsHelper(ctx context.Context, params model.LocationListParams) ([]model.Location, string, string, error) {
	if params.Limit <= 0 || params.Limit > maxLocationLimit {
		params.Limit = maxLocationLimit
	}
	if params.Type != "" && util.ValidateVar(params.Type, "oneof=residential commercial industrial public park street") != nil {
		return nil, values.BadRequestBody, "Invalid location type", nil
	}

	locations, err := api.ListLocationsRepo(ctx, params)
	if err != nil {
		return nil, values.Error, "Failed to fetch locations", err
	}
	return locations, values.Success, "Locations retrieved successfully", nil
}

func (api *API) NearbyLocationsHelper(ctx context.Context, params model.NearbyLocationParams) ([]model.Location, string, string, error) {
	if params.Radius <= 0 {
		params.Radius = defaultNearbyRadius
	}
	if params.Limit <= 0 || params.Limit > maxLocationLimit {
		params.Limit = defaultNearbyLimit
	}

	locations, err := api.NearbyLocationsRepo(ctx, params)
	if err != nil {
		return nil, values.Error, "Failed to find nearby locations", err
	}
	return locations, values.Success, "Nearby locations retrieved successfully", nil
}

func (api *API) GetLocationHelper(ctx context.Context, id uuid.UUID) (model.Location, string, string, error) {
	loc, err := api.GetLocationByIDRepo(ctx, id)
	if err != nil {
		if errors.Is(err, ErrLocationNotFound) {
			return model.Location{}, values.NotFound, "Location not found", err
		}
		return model.Location{}, values.Error, "Failed to fetch location", err
	}
	return loc, values.Success, "Location retrieved successfully", nil
}

func (api *API) CreateLocationHelper(ctx context.Context, req model.LocationRequest) (model.Location, string, string, error) {
	if message, err := validateLocationRequest(&req); err != nil {
		return model.Location{}, values.BadRequestBody, message, err
	}

	loc, err := api.CreateLocationRepo(ctx, req)
	if err != nil {
		return model.Location{}, values.Error, "Failed to create location", err
	}
	api.refreshLocation(ctx, loc.ID)
	return loc, values.Created, "Location created successfully", nil
}

func (api *API) UpdateLocationHelper(ctx context.Context, id uuid.UUID, req model.LocationRequest) (model.Location, string, string, error) {
	if message, err := validateLocationRequest(&req); err != nil {
		return model.Location{}, values.BadRequestBody, message, err
	}

	loc, err := api.UpdateLocationRepo(ctx, id, req)
	if err != nil {
		if errors.Is(err, ErrLocationNotFound) {
			return model.Location{}, values.NotFound, "Location not found", err
		}
		return model.Location{}, values.Error, "Failed to update location", err
	}
	api.refreshLocation(ctx, loc.ID)
	return loc, values.Success, "Location updated successfully", nil
}

func (api *API) RecordCollectionHelper(ctx context.Context, id uuid.UUID, req model.CollectionRequest) (model.Location, string, string, error) {
	loc, err := api.GetLocationByIDRepo(ctx, id)
	if err != nil {
		if errors.Is(err, ErrLocationNotFound) {
			return model.Location{}, values.NotFound, "Location not found", err
		}
		return model.Location{}, values.Error, "Failed to fetch location", err
	}

	collectedAt := time.Now().UTC()
	if req.CollectedAt != nil {
		if req.CollectedAt.After(collectedAt) {
			return model.Location{}, values.BadRequestBody, "Collection time cannot be in the future", nil
		}
		collectedAt = req.CollectedAt.UTC()
	}

	updated, err := api.RecordCollectionRepo(ctx, id, collectedAt, NextCollection(loc.Schedule.Frequency, collectedAt))
	if err != nil {
		return model.Location{}, values.Error, "Failed to record collection", err
	}
	return updated, values.Success, "Collection recorded successfully", nil
}

// coversPoint reports whether a candidate location's area includes the point.
func (c locationCandidate) coversPoint(lat, lng float64) bool {
	if c.Boundary != nil {
		poly, err := geo.ParsePolygon([]byte(*c.Boundary))
		if err == nil {
			return poly.Contains(lat, lng)
		}
		log.WithError(err).WithField("location_id", c.ID).Warn("ignoring unreadable location boundary")
	}
	return geo.Distance(c.Latitude, c.Longitude, lat, lng) <= locationCoverRadius
}

// RefreshLocationStatsNear recomputes statistics for every location covering the point
// and returns the ids it refreshed.
func (api *API) RefreshLocationStatsNear(ctx context.Context, lat, lng float64) ([]uuid.UUID, error) {
	candidates, err := api.LocationCandidatesRepo(ctx, lat, lng, locationCoverRadius)
	if err != nil {
		return nil, err
	}

	var refreshed []uuid.UUID
	for _, c := range candidates {
		if !c.coversPoint(lat, lng) {
			continue
		}
		if err := api.RefreshLocationStats(ctx, c.ID); err != nil {
			return refreshed, err
		}
		refreshed = append(refreshed, c.ID)
	}
	return refreshed, nil
}

func (api *API) RefreshLocationStats(ctx context.Context, id uuid.UUID) error {
	s, err := api.LocationReportStatsRepo(ctx, id, locationCoverRadius)
	if err != nil {
		return err
	}
	return api.UpdateLocationStatsRepo(ctx, id, model.LocationStatistics{
		TotalReports:           s.Total,
		ResolvedReports:        s.Resolved,
		AverageResolutionHours: util.Round(s.AvgResolution, 2),
		LastReportDate:         s.LastReportDate,
		RiskLevel:              RiskLevel(s.Open),
	})
}

// refreshLocationStatsAround logs instead of failing; stats lag is tolerable for the caller.
func (api *API) refreshLocationStatsAround(ctx context.Context, lat, lng float64) {
	if _, err := api.RefreshLocationStatsNear(ctx, lat, lng); err != nil {
		log.WithError(err).WithFields(log.Fields{"lat": lat, "lng": lng}).Error("failed to refresh location stats")
	}
}

func (api *API) refreshLocation(ctx context.Context, id uuid.UUID) {
	if err := api.RefreshLocationStats(ctx, id); err != nil {
		log.WithError(err).WithField("location_id", id).Error("failed to refresh location stats")
	}
}
