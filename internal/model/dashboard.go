package model

import (
	"time"

	"github.com/google/uuid"
)

type Overview struct {
	TotalReports      int     `json:"total_reports"`
	PendingReports    int     `json:"pending_reports"`
	InProgressReports int     `json:"in_progress_reports"`
	ResolvedReports   int     `json:"resolved_reports"`
	TotalCitizens     int     `json:"total_citizens"`
	TotalAuthorities  int     `json:"total_authorities"`
	ResolutionRate    float64 `json:"resolution_rate"`
}

type DailyTrend struct {
	Date     string `json:"date"`
	Count    int    `json:"count"`
	Resolved int    `json:"resolved"`
}

type VolumeStats struct {
	TotalVolume   float64 `json:"total_volume"`
	AverageVolume float64 `json:"average_volume"`
	MaxVolume     float64 `json:"max_volume"`
}

type AddressCount struct {
	Address string `json:"address"`
	Count   int    `json:"count"`
}

type DashboardStats struct {
	Timeframe            string         `json:"timeframe"`
	Overview             Overview       `json:"overview"`
	PriorityDistribution map[string]int `json:"priority_distribution"`
	DailyTrends          []DailyTrend   `json:"daily_trends"`
	VolumeStats          VolumeStats    `json:"volume_stats"`
	TopLocations         []AddressCount `json:"top_locations"`
}

type HeatmapParams struct {
	Status    string
	Priority  string
	Bounds    *Bounds
	Aggregate bool
}

type Bounds struct {
	SouthWestLat float64 `json:"sw_lat"`
	SouthWestLng float64 `json:"sw_lng"`
	NorthEastLat float64 `json:"ne_lat"`
	NorthEastLng float64 `json:"ne_lng"`
}

type HeatmapPoint struct {
	Latitude   float64    `json:"lat"`
	Longitude  float64    `json:"lng"`
	Weight     float64    `json:"weight"`
	Intensity  float64    `json:"intensity"`
	Count      int        `json:"count,omitempty"`
	ReportID   *uuid.UUID `json:"report_id,omitempty"`
	ReportCode string     `json:"report_code,omitempty"`
	Priority   string     `json:"priority,omitempty"`
	Status     string     `json:"status,omitempty"`
	Severity   string     `json:"severity,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

type Activity struct {
	Type        string       `json:"type"`
	Description string       `json:"description"`
	ReportID    uuid.UUID    `json:"report_id"`
	ReportCode  string       `json:"report_code"`
	Status      string       `json:"status"`
	Priority    string       `json:"priority"`
	Address     string       `json:"address"`
	Citizen     *UserSummary `json:"citizen,omitempty"`
	Assignee    *UserSummary `json:"assignee,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}
