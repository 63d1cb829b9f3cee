package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type LocationAddress struct {
	Street  *string `json:"street,omitempty"`
	Area    *string `json:"area,omitempty"`
	City    *string `json:"city,omitempty"`
	State   *string `json:"state,omitempty"`
	ZipCode *string `json:"zip_code,omitempty"`
	Country string  `json:"country"`
}

type CollectionSchedule struct {
	Frequency      *string    `json:"frequency,omitempty"`
	Days           []string   `json:"days"`
	Time           *string    `json:"time,omitempty"`
	LastCollection *time.Time `json:"last_collection,omitempty"`
	NextCollection *time.Time `json:"next_collection,omitempty"`
}

type LocationStatistics struct {
	TotalReports           int        `json:"total_reports"`
	ResolvedReports        int        `json:"resolved_reports"`
	AverageResolutionHours float64    `json:"average_resolution_hours"`
	LastReportDate         *time.Time `json:"last_report_date,omitempty"`
	RiskLevel              string     `json:"risk_level"`
}

type Location struct {
	ID         uuid.UUID          `json:"id"`
	Name       string             `json:"name"`
	Type       string             `json:"type"`
	Latitude   float64            `json:"latitude"`
	Longitude  float64            `json:"longitude"`
	Address    LocationAddress    `json:"address"`
	Boundary   json.RawMessage    `json:"boundary,omitempty"`
	Schedule   CollectionSchedule `json:"collection_schedule"`
	Statistics LocationStatistics `json:"statistics"`
	Distance   *float64           `json:"distance,omitempty"`
	IsActive   bool               `json:"is_active"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// LocationRequest creates or replaces a location. Boundary is a GeoJSON polygon geometry.
type LocationRequest struct {
	Name      string          `json:"name" validate:"required,min=2,max=100"`
	Type      string          `json:"type" validate:"required,oneof=residential commercial industrial public park street"`
	Latitude  float64         `json:"latitude" validate:"latitude"`
	Longitude float64         `json:"longitude" validate:"longitude"`
	Street    *string         `json:"street"`
	Area      *string         `json:"area"`
	City      *string         `json:"city"`
	State     *string         `json:"state"`
	ZipCode   *string         `json:"zip_code"`
	Country   string          `json:"country"`
	Boundary  json.RawMessage `json:"boundary"`
	Frequency *string         `json:"frequency" validate:"omitempty,oneof=daily weekly bi-weekly monthly"`
	Days      []string        `json:"days" validate:"omitempty,dive,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	Time      *string         `json:"time" validate:"omitempty,len=5"`
}

type LocationListParams struct {
	Type  string
	City  string
	Limit int
}

type NearbyLocationParams struct {
	Latitude  float64
	Longitude float64
	Radius    float64
	Limit     int
}

type CollectionRequest struct {
	CollectedAt *time.Time `json:"collected_at"`
}
