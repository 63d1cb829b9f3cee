package rest

import (
	"net/http"
	"strconv"

	"github.com/bwise1/waste_patrol/internal/geo"
	"github.com/bwise1/waste_patrol/internal/heatmap"
	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/bwise1/waste_patrol/util"
	"github.com/bwise1/waste_patrol/util/tracing"
	"github.com/bwise1/waste_patrol/util/values"
	"github.com/go-chi/chi/v5"
)

func (api *API) DashboardRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Group(func(r chi.Router) {
		r.Use(api.RequireLogin)
		r.Use(api.RequireRole(values.RoleAuthority, values.RoleAdmin))
		r.Method(http.MethodGet, "/stats", Handler(api.DashboardStats))
		r.Method(http.MethodGet, "/heatmap", Handler(api.Heatmap))
		r.Method(http.MethodGet, "/recent-activity", Handler(api.RecentActivity))
	})

	return mux
}

func (api *API) DashboardStats(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	stats, status, message, err := api.DashboardStatsHelper(r.Context(), r.URL.Query().Get("timeframe"))
	if err != nil || status != values.Success {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       stats,
	}
}

// filterValue treats "all" as no filter.
func filterValue(r *http.Request, key string) string {
	v := r.URL.Query().Get(key)
	if v == "all" {
		return ""
	}
	return v
}

func (api *API) Heatmap(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	params := model.HeatmapParams{
		Status:   filterValue(r, "status"),
		Priority: filterValue(r, "priority"),
	}
	if raw := r.URL.Query().Get("bounds"); raw != "" {
		bounds, err := geo.ParseBounds(raw)
		if err != nil {
			return respondWithError(err, "bounds must be swLat,swLng,neLat,neLng", values.BadRequestBody, &tc)
		}
		params.Bounds = bounds
	}
	if raw := r.URL.Query().Get("aggregate"); raw != "" {
		aggregate, err := strconv.ParseBool(raw)
		if err != nil {
			return respondWithError(err, "aggregate must be true or false", values.BadRequestBody, &tc)
		}
		params.Aggregate = aggregate
	}

	points, status, message, err := api.HeatmapHelper(r.Context(), params)
	if err != nil || status != values.Success {
		return respondWithError(err, message, status, &tc)
	}

	if r.URL.Query().Get("format") == "geojson" {
		return &ServerResponse{
			Message:    message,
			Status:     status,
			StatusCode: util.StatusCode(status),
			Data:       heatmap.FeatureCollection(points),
		}
	}

	filters := map[string]string{
		"status":   r.URL.Query().Get("status"),
		"priority": r.URL.Query().Get("priority"),
		"bounds":   r.URL.Query().Get("bounds"),
	}
	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       HeatmapResult{Points: points, Total: len(points), Filters: filters},
	}
}

func (api *API) RecentActivity(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	activities, status, message, err := api.RecentActivityHelper(r.Context(), util.QueryInt(r, "limit", defaultActivityRows))
	if err != nil || status != values.Success {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data: map[string]interface{}{
			"activities": activities,
			"total":      len(activities),
		},
	}
}
