package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"testing"

	"github.com/bwise1/waste_patrol/internal/http/detection"
	"github.com/bwise1/waste_patrol/util/values"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/health", nil, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report HealthReport
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &report))
	assert.Equal(t, "OK", report.Status)
	assert.Equal(t, "up", report.Database.Status)
	assert.Equal(t, "disabled", report.AIService.Status)

	env.api.AIHealth = fakeAIHealth{health: &detection.Health{ModelLoaded: false}}
	rec = env.request(t, http.MethodGet, "/api/health", nil, "", nil)
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &report))
	assert.Equal(t, "model_not_loaded", report.AIService.Status)

	env.api.AIHealth = fakeAIHealth{err: errors.New("dial tcp: connection refused")}
	rec = env.request(t, http.MethodGet, "/api/health", nil, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &report))
	assert.Equal(t, "down", report.AIService.Status)
	assert.Equal(t, "OK", report.Status)
}

func TestHealthDatabaseDown(t *testing.T) {
	env := newTestEnv(t)
	pinged, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pinged.Close)
	env.api.DB = pinged
	env.api.AIHealth = fakeAIHealth{health: &detection.Health{ModelLoaded: true}}

	pinged.ExpectPing().WillReturnError(errors.New("connection refused"))

	rec := env.request(t, http.MethodGet, "/api/health", nil, "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report HealthReport
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &report))
	assert.Equal(t, "DEGRADED", report.Status)
	assert.Equal(t, "down", report.Database.Status)
	assert.Equal(t, "up", report.AIService.Status)
	assert.NoError(t, pinged.ExpectationsWereMet())
}

func TestNotFoundRoute(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/nothing-here", nil, "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", decode(t, rec).Message)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t)
	env.api.Config.RateLimitMaxRequests = 2
	env.api.limiters.Flush()

	for i := 0; i < 2; i++ {
		rec := env.request(t, http.MethodGet, "/api/health", nil, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := env.request(t, http.MethodGet, "/api/health", nil, "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, strconv.Itoa(60), rec.Header().Get("Retry-After"))
	assert.Equal(t, values.TooManyRequests, decode(t, rec).Status)
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, err)
	req.Header.Set(values.HeaderRequestID, "req-123")
	rec := env.serve(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(values.HeaderRequestID))
}
