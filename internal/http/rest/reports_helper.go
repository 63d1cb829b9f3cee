package rest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/bwise1/waste_patrol/internal/events"
	"github.com/bwise1/waste_patrol/internal/geo"
	"github.com/bwise1/waste_patrol/internal/http/detection"
	"github.com/bwise1/waste_patrol/internal/metrics"
	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/bwise1/waste_patrol/util"
	"github.com/bwise1/waste_patrol/util/imaging"
	"github.com/bwise1/waste_patrol/util/values"
	"github.com/bwise1/waste_patrol/util/websockets"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	reportImageFolder     = "waste-reports"
	resolutionImageFolder = "resolutions"
	publicReportsCacheKey = "reports:public"
	publicReportsLimit    = 100
	publicReportsTTL      = 30 * time.Second
	defaultSearchRadius   = 5000
	maxAfterImages        = 5
)

// reportTransitions lists the statuses each status may move to.
var reportTransitions = map[string][]string{
	values.StatusPending:    {values.StatusInProgress, values.StatusRejected, values.StatusResolved},
	values.StatusInProgress: {values.StatusPending, values.StatusResolved, values.StatusRejected},
	values.StatusRejected:   {values.StatusPending},
	values.StatusResolved:   {},
}

func CanTransition(from, to string) bool {
	for _, s := range reportTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// imageUpload is one file taken from a multipart form.
type imageUpload struct {
	Filename string
	Data     []byte
}

func isStaff(user model.User) bool {
	return user.Role == values.RoleAuthority || user.Role == values.RoleAdmin
}

// storeImage validates, normalizes and stores an uploaded image.
func (api *API) storeImage(ctx context.Context, folder string, upload imageUpload) (model.Image, []byte, string, string, error) {
	mime, err := imaging.DetectType(upload.Data)
	if err != nil {
		return model.Image{}, nil, values.BadRequestBody, "Only JPEG and PNG images are allowed", err
	}

	data, err := imaging.Normalize(upload.Data, imaging.DefaultMaxDimension)
	if err != nil {
		return model.Image{}, nil, values.BadRequestBody, "Unable to read image", err
	}

	ext := ".jpg"
	if mime == imaging.MimePNG {
		ext = ".png"
	}
	name := fmt.Sprintf("%s-%d-%s%s", strings.TrimSuffix(folder, "s"), time.Now().UnixMilli(), util.GenerateShortCode(6), ext)

	stored, err := api.Store.Save(ctx, folder, strings.ToLower(name), data)
	if err != nil {
		return model.Image{}, nil, values.Error, "Failed to store image", err
	}

	return model.Image{
		Filename: stored.Filename,
		URL:      stored.URL,
		Size:     stored.Size,
		Mimetype: mime,
	}, data, values.Success, "", nil
}

func (api *API) CreateReportHelper(ctx context.Context, citizen model.User, req model.CreateReportRequest, upload imageUpload) (model.Report, string, string, error) {
	if err := util.ValidateVar(req.Latitude, "latitude"); err != nil {
		return model.Report{}, values.BadRequestBody, "Latitude must be between -90 and 90", err
	}
	if err := util.ValidateVar(req.Longitude, "longitude"); err != nil {
		return model.Report{}, values.BadRequestBody, "Longitude must be between -180 and 180", err
	}
	if req.Address == "" && api.Geocoder != nil {
		address, err := api.Geocoder.ReverseAddress(ctx, req.Latitude, req.Longitude)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{"lat": req.Latitude, "lng": req.Longitude}).Warn("reverse geocoding failed")
		} else {
			req.Address = address
		}
	}
	if err := util.ValidateStruct(req); err != nil {
		return model.Report{}, values.BadRequestBody, "Validation failed", err
	}

	original, data, status, message, err := api.storeImage(ctx, reportImageFolder, upload)
	if err != nil {
		return model.Report{}, status, message, err
	}

	detected, err := api.Analyzer.Analyze(ctx, original.Filename, data)
	if err != nil {
		metrics.AnalysisTotal.WithLabelValues(detection.SourceAI, "error").Inc()
		return model.Report{}, values.Unavailable, "Waste analysis is unavailable, please try again later", err
	}
	metrics.AnalysisTotal.WithLabelValues(detected.Source, "ok").Inc()

	report := model.Report{
		ReportCode:    util.GenerateReportCode(time.Now()),
		CitizenID:     citizen.ID,
		Citizen:       &model.UserSummary{ID: citizen.ID, Name: citizen.Name, Email: citizen.Email, Phone: citizen.Phone},
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		Address:       req.Address,
		OriginalImage: original,
		Detection:     detected,
		Status:        values.StatusPending,
		Priority:      detection.Priority(detected),
		Resolution:    model.Resolution{AfterImages: []string{}},
	}
	if req.Landmark != "" {
		report.Landmark = &req.Landmark
	}
	if detected.ProcessedFilename != "" && detected.Source == detection.SourceAI && api.ProcessedURL != nil {
		report.ProcessedImage = &model.Image{
			Filename: detected.ProcessedFilename,
			URL:      api.ProcessedURL(detected.ProcessedFilename),
		}
	}

	if err := api.CreateReportRepo(ctx, &report); err != nil {
		return model.Report{}, values.Error, "Failed to create report", err
	}

	metrics.ReportsCreatedTotal.WithLabelValues(report.Priority).Inc()
	api.Cache.Delete(publicReportsCacheKey)
	api.refreshLocationStatsAround(ctx, report.Latitude, report.Longitude)
	api.emitReportEvent(ctx, events.ReportCreated, report)

	log.WithFields(log.Fields{
		"report_code": report.ReportCode,
		"priority":    report.Priority,
		"source":      report.Detection.Source,
	}).Info("waste report created")

	return report, values.Created, "Waste report created successfully", nil
}

func (api *API) PublicReportsHelper(ctx context.Context) ([]model.PublicReport, string, string, error) {
	if cached, ok := api.Cache.Get(publicReportsCacheKey); ok {
		return cached.([]model.PublicReport), values.Success, "Public reports retrieved successfully", nil
	}

	reports, err := api.PublicReportsRepo(ctx, publicReportsLimit)
	if err != nil {
		return nil, values.Error, "Failed to fetch public reports", err
	}
	api.Cache.Set(publicReportsCacheKey, reports, publicReportsTTL)
	return reports, values.Success, "Public reports retrieved successfully", nil
}

func (api *API) ListReportsHelper(ctx context.Context, user model.User, params model.ReportListParams) (model.ReportList, string, string, error) {
	if params.Limit > maxPageSize {
		params.Limit = maxPageSize
	}
	if params.Status != "" && util.ValidateVar(params.Status, "report_status") != nil {
		return model.ReportList{}, values.BadRequestBody, "Invalid status filter", nil
	}
	if params.Priority != "" && util.ValidateVar(params.Priority, "priority") != nil {
		return model.ReportList{}, values.BadRequestBody, "Invalid priority filter", nil
	}
	if (params.Latitude == nil) != (params.Longitude == nil) {
		return model.ReportList{}, values.BadRequestBody, "latitude and longitude must be given together", nil
	}
	if params.Radius <= 0 {
		params.Radius = defaultSearchRadius
	}
	// citizens only ever see their own reports, whatever they ask for
	if user.Role == values.RoleCitizen {
		params.CitizenID = &user.ID
	}

	reports, total, err := api.ListReportsRepo(ctx, params)
	if err != nil {
		return model.ReportList{}, values.Error, "Failed to fetch reports", err
	}
	return model.ReportList{
		Reports:    reports,
		Pagination: model.NewPagination(params.Page, params.Limit, total),
	}, values.Success, "Reports retrieved successfully", nil
}

// loadReportFor fetches a report and applies the citizen ownership rule.
func (api *API) loadReportFor(ctx context.Context, user model.User, id uuid.UUID) (model.Report, string, string, error) {
	report, err := api.GetReportByIDRepo(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReportNotFound) {
			return model.Report{}, values.NotFound, "Report not found", err
		}
		return model.Report{}, values.Error, "Failed to fetch report", err
	}
	if user.Role == values.RoleCitizen && report.CitizenID != user.ID {
		return model.Report{}, values.NotAllowed, "Access denied", nil
	}
	return report, values.Success, "", nil
}

func (api *API) GetReportHelper(ctx context.Context, user model.User, id uuid.UUID) (model.Report, string, string, error) {
	report, status, message, err := api.loadReportFor(ctx, user, id)
	if err != nil || status != values.Success {
		return model.Report{}, status, message, err
	}

	comments, err := api.ListCommentsRepo(ctx, id)
	if err != nil {
		return model.Report{}, values.Error, "Failed to fetch comments", err
	}
	report.Comments = comments
	return report, values.Success, "Report retrieved successfully", nil
}

func (api *API) AddCommentHelper(ctx context.Context, user model.User, id uuid.UUID, req model.CreateCommentRequest) (model.Comment, string, string, error) {
	req.Message = strings.TrimSpace(req.Message)
	if err := util.ValidateStruct(req); err != nil {
		return model.Comment{}, values.BadRequestBody, "Validation failed", err
	}

	_, status, message, err := api.loadReportFor(ctx, user, id)
	if err != nil || status != values.Success {
		return model.Comment{}, status, message, err
	}

	comment := model.Comment{
		ReportID: id,
		UserID:   user.ID,
		User:     &model.UserSummary{ID: user.ID, Name: user.Name, Email: user.Email},
		Message:  req.Message,
	}
	if err := api.CreateCommentRepo(ctx, &comment); err != nil {
		return model.Comment{}, values.Error, "Failed to add comment", err
	}
	return comment, values.Created, "Comment added successfully", nil
}

func (api *API) AssignReportHelper(ctx context.Context, id uuid.UUID, req model.AssignReportRequest) (model.Report, string, string, error) {
	if err := util.ValidateStruct(req); err != nil {
		return model.Report{}, values.BadRequestBody, "Validation failed", err
	}

	assignee, err := api.GetUserByID(ctx, req.AssignedTo.String())
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return model.Report{}, values.Error, values.SystemErr, err
	}
	if err != nil || assignee.Role != values.RoleAuthority || !assignee.IsActive {
		return model.Report{}, values.BadRequestBody, "Assignee must be an active authority", nil
	}

	report, err := api.GetReportByIDRepo(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReportNotFound) {
			return model.Report{}, values.NotFound, "Report not found", err
		}
		return model.Report{}, values.Error, "Failed to fetch report", err
	}
	if report.Status == values.StatusResolved {
		return model.Report{}, values.Conflict, "Resolved reports cannot be reassigned", nil
	}

	if err := api.AssignReportRepo(ctx, id, assignee.ID); err != nil {
		if errors.Is(err, ErrReportStateStale) {
			return model.Report{}, values.Conflict, "Report was updated by someone else, please retry", err
		}
		return model.Report{}, values.Error, "Failed to assign report", err
	}

	now := time.Now().UTC()
	report.Status = values.StatusInProgress
	report.AssignedTo = &assignee.ID
	report.AssignedAt = &now
	report.Assignee = &model.UserSummary{ID: assignee.ID, Name: assignee.Name, Email: assignee.Email, Phone: assignee.Phone}

	api.Cache.Delete(publicReportsCacheKey)
	api.sendEmail(ctx, assignee.Email, "reportAssigned.tmpl", map[string]interface{}{
		"Name":       assignee.Name,
		"ReportCode": report.ReportCode,
		"Address":    report.Address,
		"Priority":   report.Priority,
		"ReportedAt": report.CreatedAt,
	})
	api.emitReportEvent(ctx, events.ReportAssigned, report)

	return report, values.Success, "Report assigned successfully", nil
}

func (api *API) UpdateReportStatusHelper(ctx context.Context, actor model.User, id uuid.UUID, req model.UpdateStatusRequest) (model.Report, string, string, error) {
	if err := util.ValidateStruct(req); err != nil {
		return model.Report{}, values.BadRequestBody, "Validation failed", err
	}

	report, err := api.GetReportByIDRepo(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReportNotFound) {
			return model.Report{}, values.NotFound, "Report not found", err
		}
		return model.Report{}, values.Error, "Failed to fetch report", err
	}

	if !CanTransition(report.Status, req.Status) {
		return model.Report{}, values.Unprocessable,
			fmt.Sprintf("Cannot change status from %s to %s", report.Status, req.Status), nil
	}

	if err := api.UpdateReportStatusRepo(ctx, id, report.Status, req.Status, actor.ID); err != nil {
		if errors.Is(err, ErrReportStateStale) {
			return model.Report{}, values.Conflict, "Report was updated by someone else, please retry", err
		}
		return model.Report{}, values.Error, "Failed to update report status", err
	}

	now := time.Now().UTC()
	report.Status = req.Status
	report.UpdatedAt = now
	switch req.Status {
	case values.StatusPending:
		report.AssignedTo, report.AssignedAt, report.Assignee = nil, nil, nil
	case values.StatusResolved:
		report.Resolution.ResolvedBy = &actor.ID
		report.Resolution.ResolvedAt = &now
		api.refreshLocationStatsAround(ctx, report.Latitude, report.Longitude)
	}

	api.Cache.Delete(publicReportsCacheKey)
	api.emitReportEvent(ctx, events.ReportStatusChanged, report)

	return report, values.Success, "Report status updated successfully", nil
}

func (api *API) ResolveReportHelper(ctx context.Context, actor model.User, id uuid.UUID, req model.ResolveReportRequest, uploads []imageUpload) (model.Report, string, string, error) {
	req.Notes = strings.TrimSpace(req.Notes)
	if err := util.ValidateStruct(req); err != nil {
		return model.Report{}, values.BadRequestBody, "Validation failed", err
	}
	if len(uploads) > maxAfterImages {
		return model.Report{}, values.BadRequestBody, fmt.Sprintf("At most %d after images are allowed", maxAfterImages), nil
	}

	report, err := api.GetReportByIDRepo(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReportNotFound) {
			return model.Report{}, values.NotFound, "Report not found", err
		}
		return model.Report{}, values.Error, "Failed to fetch report", err
	}
	if report.Status == values.StatusResolved {
		return model.Report{}, values.Conflict, "Report is already resolved", nil
	}
	if report.Status == values.StatusRejected {
		return model.Report{}, values.Unprocessable, "Rejected reports cannot be resolved", nil
	}

	afterImages := make([]string, 0, len(uploads))
	for _, upload := range uploads {
		img, _, status, message, err := api.storeImage(ctx, resolutionImageFolder, upload)
		if err != nil {
			return model.Report{}, status, message, err
		}
		afterImages = append(afterImages, img.URL)
	}

	if err := api.ResolveReportRepo(ctx, id, actor.ID, req.Notes, afterImages); err != nil {
		if errors.Is(err, ErrReportStateStale) {
			return model.Report{}, values.Conflict, "Report was updated by someone else, please retry", err
		}
		return model.Report{}, values.Error, "Failed to resolve report", err
	}

	now := time.Now().UTC()
	report.Status = values.StatusResolved
	report.UpdatedAt = now
	report.Resolution = model.Resolution{
		ResolvedBy:  &actor.ID,
		ResolvedAt:  &now,
		Notes:       &req.Notes,
		AfterImages: afterImages,
	}

	api.Cache.Delete(publicReportsCacheKey)
	api.refreshLocationStatsAround(ctx, report.Latitude, report.Longitude)
	if report.Citizen != nil && report.Citizen.Email != "" {
		api.sendEmail(ctx, report.Citizen.Email, "reportResolved.tmpl", map[string]interface{}{
			"Name":       report.Citizen.Name,
			"ReportCode": report.ReportCode,
			"Address":    report.Address,
			"Notes":      req.Notes,
		})
	}
	api.emitReportEvent(ctx, events.ReportResolved, report)

	return report, values.Success, "Report resolved successfully", nil
}

func (api *API) DeleteReportHelper(ctx context.Context, user model.User, id uuid.UUID) (string, string, error) {
	report, err := api.GetReportByIDRepo(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReportNotFound) {
			return values.NotFound, "Report not found", err
		}
		return values.Error, "Failed to fetch report", err
	}
	if report.CitizenID != user.ID {
		return values.NotAllowed, "Access denied", nil
	}
	if report.Status != values.StatusPending {
		return values.Unprocessable, "Only pending reports can be deleted", nil
	}

	if err := api.SoftDeleteReportRepo(ctx, id); err != nil {
		if errors.Is(err, ErrReportStateStale) {
			return values.Conflict, "Report was updated by someone else, please retry", err
		}
		return values.Error, "Failed to delete report", err
	}
	api.Cache.Delete(publicReportsCacheKey)
	return values.Success, "Report deleted successfully", nil
}

// PickupRouteHelper orders the caller's in-progress reports by nearest neighbour.
func (api *API) PickupRouteHelper(ctx context.Context, user model.User, start *geo.Point) (model.PickupRoute, string, string, error) {
	stops, err := api.AssignedReportsRepo(ctx, user.ID)
	if err != nil {
		return model.PickupRoute{}, values.Error, "Failed to fetch assigned reports", err
	}
	if len(stops) == 0 {
		return model.PickupRoute{Stops: []model.RouteStop{}}, values.Success, "No assigned reports", nil
	}

	origin := geo.Point{Lat: stops[0].Latitude, Lng: stops[0].Longitude}
	if start != nil {
		origin = *start
	}

	points := make([]geo.Point, len(stops))
	for i, s := range stops {
		points[i] = geo.Point{Lat: s.Latitude, Lng: s.Longitude}
	}
	order, distance := geo.NearestNeighbourOrder(origin, points)

	ordered := make([]model.RouteStop, 0, len(stops))
	coords := make([][]float64, 0, len(stops)+1)
	if start != nil {
		coords = append(coords, []float64{start.Lat, start.Lng})
	}
	for _, i := range order {
		ordered = append(ordered, stops[i])
		coords = append(coords, []float64{stops[i].Latitude, stops[i].Longitude})
	}

	return model.PickupRoute{
		Stops:          ordered,
		Polyline:       util.EncodePolyline(coords),
		DistanceMeters: util.Round(distance, 1),
	}, values.Success, "Pickup route generated successfully", nil
}

// emitReportEvent pushes a report event to live feed subscribers and the broker.
// The live feed is unauthenticated and only ever sees the public projection.
func (api *API) emitReportEvent(ctx context.Context, eventType string, report model.Report) {
	lat, lng := report.Latitude, report.Longitude
	api.Hub.Broadcast(websockets.Event{
		Type:      eventType,
		Data:      report.Public(),
		Latitude:  &lat,
		Longitude: &lng,
	})

	if err := api.Events.Publish(ctx, eventType, report); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"type":        eventType,
			"report_code": report.ReportCode,
		}).Error("failed to publish report event")
	}
}

func (api *API) sendEmail(ctx context.Context, recipient, templateName string, data map[string]interface{}) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := api.Mailer.Send(ctx, recipient, data, templateName); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"to":       recipient,
				"template": templateName,
			}).Error("failed to send email")
		}
	}()
}
