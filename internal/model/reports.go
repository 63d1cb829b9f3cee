package model

import (
	"time"

	"github.com/google/uuid"
)

type Image struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
}

// Detection is the waste estimate attached to a report.
type Detection struct {
	TotalWasteArea    float64  `json:"total_waste_area"`
	EstimatedVolume   float64  `json:"estimated_volume"`
	WasteTypes        []string `json:"waste_types"`
	SeverityLevel     string   `json:"severity_level"`
	Source            string   `json:"source"`
	ProcessedFilename string   `json:"-"`
}

type Resolution struct {
	ResolvedBy  *uuid.UUID `json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	AfterImages []string   `json:"after_images"`
}

type Report struct {
	ID             uuid.UUID    `json:"id"`
	ReportCode     string       `json:"report_code"`
	CitizenID      uuid.UUID    `json:"citizen_id"`
	Citizen        *UserSummary `json:"citizen,omitempty"`
	Latitude       float64      `json:"latitude"`
	Longitude      float64      `json:"longitude"`
	Address        string       `json:"address"`
	Landmark       *string      `json:"landmark,omitempty"`
	OriginalImage  Image        `json:"original_image"`
	ProcessedImage *Image       `json:"processed_image,omitempty"`
	Detection      Detection    `json:"detection"`
	Status         string       `json:"status"`
	Priority       string       `json:"priority"`
	AssignedTo     *uuid.UUID   `json:"assigned_to,omitempty"`
	Assignee       *UserSummary `json:"assignee,omitempty"`
	AssignedAt     *time.Time   `json:"assigned_at,omitempty"`
	Resolution     Resolution   `json:"resolution"`
	Comments       []Comment    `json:"comments,omitempty"`
	IsActive       bool         `json:"is_active"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// CreateReportRequest holds the multipart form fields of a new report.
type CreateReportRequest struct {
	Latitude  float64 `validate:"latitude"`
	Longitude float64 `validate:"longitude"`
	Address   string  `validate:"required,min=5,max=500"`
	Landmark  string  `validate:"omitempty,max=255"`
}

type ReportListParams struct {
	Status     string
	Priority   string
	CitizenID  *uuid.UUID
	AssignedTo *uuid.UUID
	Latitude   *float64
	Longitude  *float64
	Radius     float64
	Page       int
	Limit      int
}

type ReportList struct {
	Reports    []Report   `json:"reports"`
	Pagination Pagination `json:"pagination"`
}

type AssignReportRequest struct {
	AssignedTo uuid.UUID `json:"assigned_to" validate:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,report_status"`
}

type ResolveReportRequest struct {
	Notes string `validate:"required,min=10,max=2000"`
}

// PublicReport is what the unauthenticated heatmap feed exposes.
type PublicReport struct {
	ID           uuid.UUID `json:"id"`
	ReportCode   string    `json:"report_code"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Address      string    `json:"address"`
	Status       string    `json:"status"`
	Priority     string    `json:"priority"`
	Detection    Detection `json:"detection"`
	ImageURL     string    `json:"image_url"`
	ProcessedURL *string   `json:"processed_image_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Public strips everything but what the unauthenticated feeds may show.
func (r Report) Public() PublicReport {
	p := PublicReport{
		ID:         r.ID,
		ReportCode: r.ReportCode,
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
		Address:    r.Address,
		Status:     r.Status,
		Priority:   r.Priority,
		Detection:  r.Detection,
		ImageURL:   r.OriginalImage.URL,
		CreatedAt:  r.CreatedAt,
	}
	if r.ProcessedImage != nil {
		url := r.ProcessedImage.URL
		p.ProcessedURL = &url
	}
	return p
}

type RouteStop struct {
	ReportID   uuid.UUID `json:"report_id"`
	ReportCode string    `json:"report_code"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Address    string    `json:"address"`
	Priority   string    `json:"priority"`
}

type PickupRoute struct {
	Stops          []RouteStop `json:"stops"`
	Polyline       string      `json:"polyline"`
	DistanceMeters float64     `json:"distance_meters"`
}
