package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/bwise1/waste_patrol/util"
	"github.com/bwise1/waste_patrol/util/tracing"
	"github.com/bwise1/waste_patrol/util/values"
)

const healthCheckTimeout = 3 * time.Second

type dependencyHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type HealthReport struct {
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Uptime    float64          `json:"uptime"`
	Database  dependencyHealth `json:"database"`
	AIService dependencyHealth `json:"ai_service"`
}

// Health reports ok as long as the database answers; the AI service being down
// only degrades report creation to the mock analyzer.
func (api *API) Health(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	report := HealthReport{
		Status:    "OK",
		Timestamp: time.Now().UTC(),
		Uptime:    util.Round(time.Since(api.startedAt).Seconds(), 0),
		Database:  dependencyHealth{Status: "up"},
		AIService: dependencyHealth{Status: "disabled"},
	}

	if err := api.DB.Ping(ctx); err != nil {
		report.Status = "DEGRADED"
		report.Database = dependencyHealth{Status: "down", Error: err.Error()}
	}

	if api.AIHealth != nil {
		h, err := api.AIHealth.Health(ctx)
		switch {
		case err != nil:
			report.AIService = dependencyHealth{Status: "down", Error: err.Error()}
		case !h.ModelLoaded:
			report.AIService = dependencyHealth{Status: "model_not_loaded"}
		default:
			report.AIService = dependencyHealth{Status: "up"}
		}
	}

	status := values.Success
	if report.Database.Status != "up" {
		status = values.Unavailable
		log.WithFields(log.Fields{
			"request_id": tc.RequestID,
			"database":   report.Database.Error,
		}).Warn("health check failed")
	}

	return &ServerResponse{
		Message:    "Waste Patrol API health",
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       report,
	}
}
