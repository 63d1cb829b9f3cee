package rest

import (
	"net/http"
	"strings"

	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/bwise1/waste_patrol/util"
	"github.com/bwise1/waste_patrol/util/tracing"
	"github.com/bwise1/waste_patrol/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (api *API) UserRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Group(func(r chi.Router) {
		r.Use(api.RequireLogin)
		r.Method(http.MethodPut, "/profile", Handler(api.UpdateProfile))
		r.Method(http.MethodPut, "/password", Handler(api.ChangePassword))
		r.Method(http.MethodGet, "/authorities", Handler(api.ListAuthorities))

		r.With(api.RequireRole(values.RoleAuthority, values.RoleAdmin)).
			Method(http.MethodGet, "/", Handler(api.ListUsers))

		r.Group(func(r chi.Router) {
			r.Use(api.RequireRole(values.RoleAdmin))
			r.Method(http.MethodPut, "/{id}/toggle-status", Handler(api.ToggleUserStatus))
			r.Method(http.MethodPut, "/{id}/role", Handler(api.UpdateUserRole))
		})
	})

	return mux
}

func currentUser(r *http.Request) (model.User, error) {
	return util.GetUserFromContext(r.Context())
}

func pathUUID(r *http.Request, key string) (uuid.UUID, error) {
	return util.StringToUUID(chi.URLParam(r, key))
}

func (api *API) GetProfile(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	user, err := currentUser(r)
	if err != nil {
		return respondWithError(err, "unable to get user from context", values.NotAuthorised, &tc)
	}

	return &ServerResponse{
		Message:    "User profile retrieved successfully",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       user,
	}
}

func (api *API) UpdateProfile(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	user, err := currentUser(r)
	if err != nil {
		return respondWithError(err, "unable to get user from context", values.NotAuthorised, &tc)
	}

	var req model.UpdateProfileRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	req.Name = strings.TrimSpace(req.Name)

	updated, status, message, err := api.UpdateProfileHelper(r.Context(), user, req)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       updated,
	}
}

func (api *API) ChangePassword(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	user, err := currentUser(r)
	if err != nil {
		return respondWithError(err, "unable to get user from context", values.NotAuthorised, &tc)
	}

	var req model.ChangePasswordRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}

	status, message, err := api.ChangePasswordHelper(r.Context(), user, req)
	if err != nil || status != values.Success {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
	}
}

func (api *API) ListUsers(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	params := model.UserListParams{
		Role:   r.URL.Query().Get("role"),
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Page:   util.QueryInt(r, "page", 1),
		Limit:  util.QueryInt(r, "limit", 10),
	}

	data, status, message, err := api.ListUsersHelper(r.Context(), params)
	if err != nil || status != values.Success {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       data,
	}
}

func (api *API) ListAuthorities(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	authorities, err := api.ListAuthoritiesRepo(r.Context())
	if err != nil {
		return respondWithError(err, "Failed to fetch authorities", values.Error, &tc)
	}

	return &ServerResponse{
		Message:    "Authorities retrieved successfully",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       authorities,
	}
}

func (api *API) ToggleUserStatus(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	actor, err := currentUser(r)
	if err != nil {
		return respondWithError(err, "unable to get user from context", values.NotAuthorised, &tc)
	}
	target, err := pathUUID(r, "id")
	if err != nil {
		return respondWithError(err, "Invalid user id", values.BadRequestBody, &tc)
	}

	user, status, message, err := api.ToggleUserStatusHelper(r.Context(), actor, target)
	if err != nil || status != values.Success {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       user,
	}
}

func (api *API) UpdateUserRole(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	actor, err := currentUser(r)
	if err != nil {
		return respondWithError(err, "unable to get user from context", values.NotAuthorised, &tc)
	}
	target, err := pathUUID(r, "id")
	if err != nil {
		return respondWithError(err, "Invalid user id", values.BadRequestBody, &tc)
	}

	var req model.UpdateRoleRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}

	user, status, message, err := api.UpdateUserRoleHelper(r.Context(), actor, target, req)
	if err != nil || status != values.Success {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       user,
	}
}
