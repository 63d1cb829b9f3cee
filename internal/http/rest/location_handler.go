package rest

import (
	"net/http"
	"strings"

	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/bwise1/waste_patrol/util"
	"github.com/bwise1/waste_patrol/util/tracing"
	"github.com/bwise1/waste_patrol/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

func (api *API) LocationRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Method(http.MethodGet, "/", Handler(api.ListLocations))
	mux.Method(http.MethodGet, "/nearby", Handler(api.NearbyLocations))
	mux.Method(http.MethodGet, "/{id}", Handler(api.GetLocation))

	mux.Group(func(r chi.Router) {
		r.Use(api.RequireLogin)
		r.Use(api.RequireRole(values.RoleAuthority, values.RoleAdmin))
		r.Method(http.MethodPost, "/", Handler(api.CreateLocation))
		r.Method(http.MethodPut, "/{id}", Handler(api.UpdateLocation))
		r.Method(http.MethodPost, "/{id}/collections", Handler(api.RecordCollection))
	})

	return mux
}

func (api *API) ListLocations(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	params := model.LocationListParams{
		Type:  r.URL.Query().Get("type"),
		City:  strings.TrimSpace(r.URL.Query().Get("city")),
		Limit: util.QueryInt(r, "limit", maxLocationLimit),
	}

	locations, status, message, err := api.ListLocationsHelper(r.Context(), params)
	if err != nil || status != values.Success {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       locations,
	}
}

func (api *API) NearbyLocations(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	lat, err := util.QueryFloat(r, "latitude")
	if err != nil {
		return respondWithError(err, "latitude must be a number", values.BadRequestBody, &tc)
	}
	lng, err := util.QueryFloat(r, "longitude")
	if err != nil {
		return respondWithError(err, "longitude must be a number", values.BadRequestBody, &tc)
	}
	if lat == nil || lng == nil {
		return respondWithError(errors.New("missing coordinates"), "Latitude and longitude are required", values.BadRequestBody, &tc)
	}

	params := model.NearbyLocationParams{
		Latitude:  *lat,
		Longitude: *lng,
		Radius:    float64(util.QueryInt(r, "radius", defaultNearbyRadius)),
		Limit:     util.QueryInt(r, "limit", defaultNearbyLimit),
	}

	locations, status, message, err := api.NearbyLocationsHelper(r.Context(), params)
	if err != nil || status != values.Success {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       locations,
	}
}

func (api *API) GetLocation(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	id, err := pathUUID(r, "id")
	if err != nil {
		return respondWithError(err, "Invalid location id", values.BadRequestBody, &tc)
	}

	loc, status, message, err := api.GetLocationHelper(r.Context(), id)
	if err != nil || status != values.Success {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       loc,
	}
}

func (api *API) CreateLocation(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	var req model.LocationRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}

	loc, status, message, err := api.CreateLocationHelper(r.Context(), req)
	if err != nil || status != values.Created {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       loc,
	}
}

func (api *API) UpdateLocation(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	id, err := pathUUID(r, "id")
	if err != nil {
		return respondWithError(err, "Invalid location id", values.BadRequestBody, &tc)
	}

	var req model.LocationRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}

	loc, status, message, err := api.UpdateLocationHelper(r.Context(), id, req)
	if err != nil || status != values.Success {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       loc,
	}
}

func (api *API) RecordCollection(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	id, err := pathUUID(r, "id")
	if err != nil {
		return respondWithError(err, "Invalid location id", values.BadRequestBody, &tc)
	}

	var req model.CollectionRequest
	if r.ContentLength > 0 {
		if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
			return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
		}
	}

	loc, status, message, err := api.RecordCollectionHelper(r.Context(), id, req)
	if err != nil || status != values.Success {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       loc,
	}
}
