package rest

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrReportNotFound   = errors.New("report not found")
	ErrReportStateStale = errors.New("report changed state concurrently")
)

const reportColumns = `
            r.id, r.report_code, r.citizen_id,
            ST_Y(r.position::geometry) AS latitude, ST_X(r.position::geometry) AS longitude,
            r.address, r.landmark,
            r.original_image_filename, r.original_image_url, r.original_image_size, r.original_image_mimetype,
            r.processed_image_filename, r.processed_image_url,
            r.total_waste_area, r.estimated_volume, r.waste_types, r.severity_level, r.detection_source,
            r.status, r.priority, r.assigned_to, r.assigned_at,
            r.resolved_by, r.resolved_at, r.resolution_notes, r.after_images,
            r.is_active, r.created_at, r.updated_at,
            c.name, c.email, c.phone,
            a.name, a.email, a.phone`

const reportJoins = `
        FROM waste_reports r
        JOIN users c ON c.id = r.citizen_id
        LEFT JOIN users a ON a.id = r.assigned_to`

func scanReport(row pgx.Row) (model.Report, error) {
	var (
		report                      model.Report
		processedName, processedURL *string
		citizen                     model.UserSummary
		assigneeName, assigneeEmail *string
		assigneePhone               *string
	)
	err := row.Scan(
		&report.ID, &report.ReportCode, &report.CitizenID,
		&report.Latitude, &report.Longitude,
		&report.Address, &report.Landmark,
		&report.OriginalImage.Filename, &report.OriginalImage.URL, &report.OriginalImage.Size, &report.OriginalImage.Mimetype,
		&processedName, &processedURL,
		&report.Detection.TotalWasteArea, &report.Detection.EstimatedVolume, &report.Detection.WasteTypes,
		&report.Detection.SeverityLevel, &report.Detection.Source,
		&report.Status, &report.Priority, &report.AssignedTo, &report.AssignedAt,
		&report.Resolution.ResolvedBy, &report.Resolution.ResolvedAt, &report.Resolution.Notes, &report.Resolution.AfterImages,
		&report.IsActive, &report.CreatedAt, &report.UpdatedAt,
		&citizen.Name, &citizen.Email, &citizen.Phone,
		&assigneeName, &assigneeEmail, &assigneePhone,
	)
	if err != nil {
		return model.Report{}, err
	}

	citizen.ID = report.CitizenID
	report.Citizen = &citizen
	if processedURL != nil {
		report.ProcessedImage = &model.Image{URL: *processedURL}
		if processedName != nil {
			report.ProcessedImage.Filename = *processedName
		}
	}
	if report.AssignedTo != nil && assigneeName != nil {
		report.Assignee = &model.UserSummary{ID: *report.AssignedTo, Name: *assigneeName, Phone: assigneePhone}
		if assigneeEmail != nil {
			report.Assignee.Email = *assigneeEmail
		}
	}
	if report.Detection.WasteTypes == nil {
		report.Detection.WasteTypes = []string{}
	}
	if report.Resolution.AfterImages == nil {
		report.Resolution.AfterImages = []string{}
	}
	return report, nil
}

// CreateReportRepo inserts the report and fills in its generated columns.
func (api *API) CreateReportRepo(ctx context.Context, report *model.Report) error {
	query := `
        INSERT INTO waste_reports (
            report_code, citizen_id, position, address, landmark,
            original_image_filename, original_image_url, original_image_size, original_image_mimetype,
            processed_image_filename, processed_image_url,
            total_waste_area, estimated_volume, waste_types, severity_level, detection_source,
            status, priority
        ) VALUES (
            $1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5, $6,
            $7, $8, $9, $10,
            $11, $12,
            $13, $14, $15, $16, $17,
            $18, $19
        ) RETURNING id, is_active, created_at, updated_at
    `
	var processedName, processedURL *string
	if report.ProcessedImage != nil {
		processedName = &report.ProcessedImage.Filename
		processedURL = &report.ProcessedImage.URL
	}

	err := api.DB.QueryRow(ctx, query,
		report.ReportCode, report.CitizenID, report.Longitude, report.Latitude, report.Address, report.Landmark,
		report.OriginalImage.Filename, report.OriginalImage.URL, report.OriginalImage.Size, report.OriginalImage.Mimetype,
		processedName, processedURL,
		report.Detection.TotalWasteArea, report.Detection.EstimatedVolume, report.Detection.WasteTypes,
		report.Detection.SeverityLevel, report.Detection.Source,
		report.Status, report.Priority,
	).Scan(&report.ID, &report.IsActive, &report.CreatedAt, &report.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

func (api *API) GetReportByIDRepo(ctx context.Context, id uuid.UUID) (model.Report, error) {
	query := `SELECT ` + reportColumns + reportJoins + `
        WHERE r.id = $1 AND r.is_active = TRUE`

	report, err := scanReport(api.DB.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Report{}, ErrReportNotFound
	}
	return report, err
}

func (api *API) ListReportsRepo(ctx context.Context, params model.ReportListParams) ([]model.Report, int, error) {
	whereClause := " WHERE r.is_active = TRUE"
	args := []interface{}{}
	argCount := 0

	if params.Status != "" {
		argCount++
		whereClause += fmt.Sprintf(" AND r.status = $%d", argCount)
		args = append(args, params.Status)
	}
	if params.Priority != "" {
		argCount++
		whereClause += fmt.Sprintf(" AND r.priority = $%d", argCount)
		args = append(args, params.Priority)
	}
	if params.CitizenID != nil {
		argCount++
		whereClause += fmt.Sprintf(" AND r.citizen_id = $%d", argCount)
		args = append(args, *params.CitizenID)
	}
	if params.AssignedTo != nil {
		argCount++
		whereClause += fmt.Sprintf(" AND r.assigned_to = $%d", argCount)
		args = append(args, *params.AssignedTo)
	}
	if params.Latitude != nil && params.Longitude != nil {
		whereClause += fmt.Sprintf(
			" AND ST_DWithin(r.position, ST_SetSRID(ST_MakePoint($%d, $%d), 4326)::geography, $%d)",
			argCount+1, argCount+2, argCount+3)
		args = append(args, *params.Longitude, *params.Latitude, params.Radius)
		argCount += 3
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM waste_reports r` + whereClause
	if err := api.DB.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting reports: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s %s %s
        ORDER BY r.created_at DESC
        LIMIT $%d OFFSET $%d`, reportColumns, reportJoins, whereClause, argCount+1, argCount+2)
	args = append(args, params.Limit, (params.Page-1)*params.Limit)

	rows, err := api.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	reports := []model.Report{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		reports = append(reports, report)
	}
	return reports, total, rows.Err()
}

func (api *API) PublicReportsRepo(ctx context.Context, limit int) ([]model.PublicReport, error) {
	query := `
        SELECT
            id, report_code,
            ST_Y(position::geometry) AS latitude, ST_X(position::geometry) AS longitude,
            address, status, priority,
            total_waste_area, estimated_volume, waste_types, severity_level, detection_source,
            original_image_url, processed_image_url, created_at
        FROM waste_reports
        WHERE is_active = TRUE AND status <> 'resolved'
        ORDER BY created_at DESC
        LIMIT $1
    `
	rows, err := api.DB.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying public reports: %w", err)
	}
	defer rows.Close()

	reports := []model.PublicReport{}
	for rows.Next() {
		var p model.PublicReport
		err := rows.Scan(
			&p.ID, &p.ReportCode, &p.Latitude, &p.Longitude,
			&p.Address, &p.Status, &p.Priority,
			&p.Detection.TotalWasteArea, &p.Detection.EstimatedVolume, &p.Detection.WasteTypes,
			&p.Detection.SeverityLevel, &p.Detection.Source,
			&p.ImageURL, &p.ProcessedURL, &p.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		reports = append(reports, p)
	}
	return reports, rows.Err()
}

func (api *API) ListCommentsRepo(ctx context.Context, reportID uuid.UUID) ([]model.Comment, error) {
	query := `
        SELECT c.id, c.report_id, c.user_id, c.message, c.created_at, u.name, u.email
        FROM report_comments c
        JOIN users u ON u.id = c.user_id
        WHERE c.report_id = $1
        ORDER BY c.created_at ASC
    `
	rows, err := api.DB.Query(ctx, query, reportID)
	if err != nil {
		return nil, fmt.Errorf("querying comments: %w", err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		var u model.UserSummary
		if err := rows.Scan(&c.ID, &c.ReportID, &c.UserID, &c.Message, &c.CreatedAt, &u.Name, &u.Email); err != nil {
			return nil, err
		}
		u.ID = c.UserID
		c.User = &u
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (api *API) CreateCommentRepo(ctx context.Context, comment *model.Comment) error {
	query := `
        INSERT INTO report_comments (report_id, user_id, message)
        VALUES ($1, $2, $3)
        RETURNING id, created_at
    `
	return api.DB.QueryRow(ctx, query, comment.ReportID, comment.UserID, comment.Message).
		Scan(&comment.ID, &comment.CreatedAt)
}

func (api *API) AssignReportRepo(ctx context.Context, id, assignee uuid.UUID) error {
	query := `
        UPDATE waste_reports
        SET assigned_to = $2, assigned_at = NOW(), status = 'in_progress', updated_at = NOW()
        WHERE id = $1 AND is_active = TRUE AND status <> 'resolved'
    `
	tag, err := api.DB.Exec(ctx, query, id, assignee)
	if err != nil {
		return fmt.Errorf("assigning report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReportStateStale
	}
	return nil
}

// UpdateReportStatusRepo moves a report from one status to another. It fails with
// ErrReportStateStale when the stored status is no longer from.
func (api *API) UpdateReportStatusRepo(ctx context.Context, id uuid.UUID, from, to string, actor uuid.UUID) error {
	query := `
        UPDATE waste_reports
        SET status = $2::text,
            resolved_by = CASE WHEN $2::text = 'resolved' THEN $3 ELSE resolved_by END,
            resolved_at = CASE WHEN $2::text = 'resolved' THEN NOW() ELSE resolved_at END,
            assigned_to = CASE WHEN $2::text = 'pending' THEN NULL ELSE assigned_to END,
            assigned_at = CASE WHEN $2::text = 'pending' THEN NULL ELSE assigned_at END,
            updated_at = NOW()
        WHERE id = $1 AND status = $4 AND is_active = TRUE
    `
	tag, err := api.DB.Exec(ctx, query, id, to, actor, from)
	if err != nil {
		return fmt.Errorf("updating report status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReportStateStale
	}
	return nil
}

func (api *API) ResolveReportRepo(ctx context.Context, id, actor uuid.UUID, notes string, afterImages []string) error {
	query := `
        UPDATE waste_reports
        SET status = 'resolved', resolved_by = $2, resolved_at = NOW(),
            resolution_notes = $3, after_images = $4, updated_at = NOW()
        WHERE id = $1 AND is_active = TRUE AND status IN ('pending', 'in_progress')
    `
	tag, err := api.DB.Exec(ctx, query, id, actor, notes, afterImages)
	if err != nil {
		return fmt.Errorf("resolving report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReportStateStale
	}
	return nil
}

func (api *API) SoftDeleteReportRepo(ctx context.Context, id uuid.UUID) error {
	query := `
        UPDATE waste_reports
        SET is_active = FALSE, updated_at = NOW()
        WHERE id = $1 AND status = 'pending' AND is_active = TRUE
    `
	tag, err := api.DB.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReportStateStale
	}
	return nil
}

func (api *API) AssignedReportsRepo(ctx context.Context, assignee uuid.UUID) ([]model.RouteStop, error) {
	query := `
        SELECT id, report_code, ST_Y(position::geometry), ST_X(position::geometry), address, priority
        FROM waste_reports
        WHERE assigned_to = $1 AND status = 'in_progress' AND is_active = TRUE
        ORDER BY created_at ASC
    `
	rows, err := api.DB.Query(ctx, query, assignee)
	if err != nil {
		return nil, fmt.Errorf("querying assigned reports: %w", err)
	}
	defer rows.Close()

	stops := []model.RouteStop{}
	for rows.Next() {
		var s model.RouteStop
		if err := rows.Scan(&s.ReportID, &s.ReportCode, &s.Latitude, &s.Longitude, &s.Address, &s.Priority); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}
