package rest

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/bwise1/waste_patrol/internal/geo"
	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/bwise1/waste_patrol/util"
	"github.com/bwise1/waste_patrol/util/imaging"
	"github.com/bwise1/waste_patrol/util/tracing"
	"github.com/bwise1/waste_patrol/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

var errMissingImage = errors.New("waste image is required")

func (api *API) ReportRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Method(http.MethodGet, "/public", Handler(api.GetPublicReports))

	mux.Group(func(r chi.Router) {
		r.Use(api.RequireLogin)
		r.Method(http.MethodPost, "/", Handler(api.CreateReport))
		r.Method(http.MethodGet, "/", Handler(api.ListReports))
		r.Method(http.MethodGet, "/{id}", Handler(api.GetReport))
		r.Method(http.MethodPost, "/{id}/comments", Handler(api.AddComment))
		r.Method(http.MethodDelete, "/{id}", Handler(api.DeleteReport))

		r.Group(func(r chi.Router) {
			r.Use(api.RequireRole(values.RoleAuthority, values.RoleAdmin))
			r.Method(http.MethodGet, "/assigned/route", Handler(api.GetPickupRoute))
			r.Method(http.MethodPut, "/{id}/assign", Handler(api.AssignReport))
			r.Method(http.MethodPut, "/{id}/status", Handler(api.UpdateReportStatus))
			r.Method(http.MethodPut, "/{id}/resolve", Handler(api.ResolveReport))
		})
	})

	return mux
}

// parseMultipart caps the body at the upload limit before parsing the form.
func (api *API) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, api.Config.MaxUploadSize)
	return r.ParseMultipartForm(api.Config.MaxUploadSize)
}

func readUpload(fh *multipart.FileHeader) (imageUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return imageUpload{}, errors.Wrap(err, "open upload")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return imageUpload{}, errors.Wrap(err, "read upload")
	}
	return imageUpload{Filename: fh.Filename, Data: data}, nil
}

func formFloat(r *http.Request, key string) (float64, bool, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "invalid %s", key)
	}
	return v, true, nil
}

func (api *API) CreateReport(w http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	user, err := currentUser(r)
	if err != nil {
		return respondWithError(err, "unable to get user from context", values.NotAuthorised, &tc)
	}

	if err := api.parseMultipart(w, r); err != nil {
		return respondWithError(err, "Invalid upload, images must be at most "+strconv.FormatInt(api.Config.MaxUploadSize>>20, 10)+"MB", values.BadRequestBody, &tc)
	}

	files := r.MultipartForm.File["wasteImage"]
	if len(files) == 0 {
		return respondWithError(errMissingImage, "Waste image is required", values.BadRequestBody, &tc)
	}
	upload, err := readUpload(files[0])
	if err != nil {
		return respondWithError(err, "Unable to read image", values.BadRequestBody, &tc)
	}

	lat, hasLat, err := formFloat(r, "latitude")
	if err != nil {
		return respondWithError(err, "latitude must be a number", values.BadRequestBody, &tc)
	}
	lng, hasLng, err := formFloat(r, "longitude")
	if err != nil {
		return respondWithError(err, "longitude must be a number", values.BadRequestBody, &tc)
	}
	if !hasLat || !hasLng {
		exifLat, exifLng, ok := imaging.GPS(upload.Data)
		if !ok {
			return respondWithError(nil, "Location is required", values.BadRequestBody, &tc)
		}
		lat, lng = exifLat, exifLng
	}

	req := model.CreateReportRequest{
		Latitude:  lat,
		Longitude: lng,
		Address:   strings.TrimSpace(r.FormValue("address")),
		Landmark:  strings.TrimSpace(r.FormValue("landmark")),
	}

	report, status, message, err := api.CreateReportHelper(r.Context(), user, req, upload)
	if err != nil || status != values.Created {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       report,
	}
}

func (api *API) GetPublicReports(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	reports, status, message, err := api.PublicReportsHelper(r.Context())
	if err != nil || status != values.Success {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       reports,
	}
}

func (api *API) ListReports(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	user, err := currentUser(r)
	if err != nil {
		return respondWithError(err, "unable to get user from context", values.NotAuthorised, &tc)
	}

	lat, err := util.QueryFloat(r, queryKey(r, "latitude", "lat"))
	if err != nil {
		return respondWithError(err, "latitude must be a number", values.BadRequestBody, &tc)
	}
	lng, err := util.QueryFloat(r, queryKey(r, "longitude", "lng"))
	if err != nil {
		return respondWithError(err, "longitude must be a number", values.BadRequestBody, &tc)
	}
	assignedTo, err := util.QueryUUID(r, queryKey(r, "assigned_to", "assignedTo"))
	if err != nil {
		return respondWithError(err, "assigned_to must be a valid id", values.BadRequestBody, &tc)
	}
	citizenID, err := util.QueryUUID(r, queryKey(r, "citizen_id", "citizenId"))
	if err != nil {
		return respondWithError(err, "citizen_id must be a valid id", values.BadRequestBody, &tc)
	}

	params := model.ReportListParams{
		Status:     r.URL.Query().Get("status"),
		Priority:   r.URL.Query().Get("priority"),
		CitizenID:  citizenID,
		AssignedTo: assignedTo,
		Latitude:   lat,
		Longitude:  lng,
		Radius:     float64(util.QueryInt(r, "radius", defaultSearchRadius)),
		Page:       util.QueryInt(r, "page", 1),
		Limit:      util.QueryInt(r, "limit", 10),
	}

	data, status, message, err := api.ListReportsHelper(r.Context(), user, params)
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

// queryKey returns the first of keys set in the query string, or the first key.
func queryKey(r *http.Request, keys ...string) string {
	q := r.URL.Query()
	for _, k := range keys {
		if q.Get(k) != "" {
			return k
		}
	}
	return keys[0]
}

func (api *API) GetReport(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	user, err := currentUser(r)
	if err != nil {
		return respondWithError(err, "unable to get user from context", values.NotAuthorised, &tc)
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		return respondWithError(err, "Invalid report id", values.BadRequestBody, &tc)
	}

	report, status, message, err := api.GetReportHelper(r.Context(), user, id)
	if err != nil || status != values.Success {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       report,
	}
}

func (api *API) AddComment(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	user, err := currentUser(r)
	if err != nil {
		return respondWithError(err, "unable to get user from context", values.NotAuthorised, &tc)
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		return respondWithError(err, "Invalid report id", values.BadRequestBody, &tc)
	}

	var req model.CreateCommentRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}

	comment, status, message, err := api.AddCommentHelper(r.Context(), user, id, req)
	if err != nil || status != values.Created {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       comment,
	}
}

func (api *API) AssignReport(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	id, err := pathUUID(r, "id")
	if err != nil {
		return respondWithError(err, "Invalid report id", values.BadRequestBody, &tc)
	}

	var req model.AssignReportRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}

	report, status, message, err := api.AssignReportHelper(r.Context(), id, req)
	if err != nil || status != values.Success {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       report,
	}
}

func (api *API) UpdateReportStatus(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	user, err := currentUser(r)
	if err != nil {
		return respondWithError(err, "unable to get user from context", values.NotAuthorised, &tc)
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		return respondWithError(err, "Invalid report id", values.BadRequestBody, &tc)
	}

	var req model.UpdateStatusRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}

	report, status, message, err := api.UpdateReportStatusHelper(r.Context(), user, id, req)
	if err != nil || status != values.Success {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       report,
	}
}

func (api *API) ResolveReport(w http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	user, err := currentUser(r)
	if err != nil {
		return respondWithError(err, "unable to get user from context", values.NotAuthorised, &tc)
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		return respondWithError(err, "Invalid report id", values.BadRequestBody, &tc)
	}

	if err := api.parseMultipart(w, r); err != nil {
		return respondWithError(err, "Invalid resolution form", values.BadRequestBody, &tc)
	}

	files := r.MultipartForm.File["afterImages"]
	uploads := make([]imageUpload, 0, len(files))
	for _, fh := range files {
		upload, err := readUpload(fh)
		if err != nil {
			return respondWithError(err, "Unable to read image", values.BadRequestBody, &tc)
		}
		uploads = append(uploads, upload)
	}

	req := model.ResolveReportRequest{Notes: r.FormValue("resolutionNotes")}

	report, status, message, err := api.ResolveReportHelper(r.Context(), user, id, req, uploads)
	if err != nil || status != values.Success {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       report,
	}
}

func (api *API) DeleteReport(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	user, err := currentUser(r)
	if err != nil {
		return respondWithError(err, "unable to get user from context", values.NotAuthorised, &tc)
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		return respondWithError(err, "Invalid report id", values.BadRequestBody, &tc)
	}

	status, message, err := api.DeleteReportHelper(r.Context(), user, id)
	if err != nil || status != values.Success {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
	}
}

func (api *API) GetPickupRoute(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	user, err := currentUser(r)
	if err != nil {
		return respondWithError(err, "unable to get user from context", values.NotAuthorised, &tc)
	}

	lat, err := util.QueryFloat(r, "lat")
	if err != nil {
		return respondWithError(err, "lat must be a number", values.BadRequestBody, &tc)
	}
	lng, err := util.QueryFloat(r, "lng")
	if err != nil {
		return respondWithError(err, "lng must be a number", values.BadRequestBody, &tc)
	}

	var start *geo.Point
	if lat != nil && lng != nil {
		start = &geo.Point{Lat: *lat, Lng: *lng}
	}

	route, status, message, err := api.PickupRouteHelper(r.Context(), user, start)
	if err != nil || status != values.Success {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       route,
	}
}
