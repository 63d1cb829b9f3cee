package rest

import (
	"encoding/json"
	"net/http"

	"github.com/apex/log"
	"github.com/bwise1/waste_patrol/util"
	"github.com/bwise1/waste_patrol/util/tracing"
)

// ServerResponse is the envelope every endpoint answers with.
type ServerResponse struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Status     string            `json:"status"`
	StatusCode int               `json:"-"`
	Data       interface{}       `json:"data,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
}

func respondWithError(err error, message, status string, tc *tracing.Context) *ServerResponse {
	code := util.StatusCode(status)

	entry := log.WithFields(log.Fields{
		"status":      status,
		"status_code": code,
	})
	if tc != nil {
		entry = entry.WithFields(log.Fields{
			"request_id":     tc.RequestID,
			"request_source": tc.RequestSource,
		})
	}
	if err != nil {
		entry = entry.WithError(err)
	}
	if code >= http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Warn(message)
	}

	return &ServerResponse{
		Err:        err,
		Message:    message,
		Status:     status,
		StatusCode: code,
		Errors:     util.ValidationMessages(err),
	}
}

func writeJSONResponse(w http.ResponseWriter, content []byte, statusCode int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write(content); err != nil {
		log.WithError(err).Error("unable to write response")
	}
}

func writeErrorResponse(w http.ResponseWriter, err error, status, message string) {
	resp := &ServerResponse{
		Err:        err,
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
	}
	content, _ := json.Marshal(resp)
	writeJSONResponse(w, content, resp.StatusCode)
}
