package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/bwise1/waste_patrol/util/values"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolylineRoundTrip(t *testing.T) {
	coords := [][]float64{{23.8103, 90.4125}, {23.7806, 90.4193}, {23.7465, 90.3760}}

	encoded := EncodePolyline(coords)
	require.NotEmpty(t, encoded)

	decoded, err := DecodePolyLines(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(coords))
	for i := range coords {
		assert.InDelta(t, coords[i][0], decoded[i][0], 1e-5)
		assert.InDelta(t, coords[i][1], decoded[i][1], 1e-5)
	}
}

func TestGenerateReportCode(t *testing.T) {
	code := GenerateReportCode(time.Date(2025, 4, 5, 14, 30, 45, 0, time.UTC))
	assert.Regexp(t, regexp.MustCompile(`^WR-[0-9A-Z]+-[0-9A-Z]{5}$`), code)
	assert.NotEqual(t, code, GenerateReportCode(time.Date(2025, 4, 5, 14, 30, 46, 0, time.UTC)))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.5, Round(15000.0/10000, 2))
	assert.Equal(t, 0.123, Round(0.12345, 3))
	assert.Equal(t, 0.0, Round(0, 2))
}

func TestStatusCode(t *testing.T) {
	cases := map[string]int{
		values.Success:         http.StatusOK,
		values.Created:         http.StatusCreated,
		values.BadRequestBody:  http.StatusBadRequest,
		values.NotAllowed:      http.StatusForbidden,
		values.NotFound:        http.StatusNotFound,
		values.NotAuthorised:   http.StatusUnauthorized,
		values.TokenExpired:    http.StatusUnauthorized,
		values.Conflict:        http.StatusConflict,
		values.TooManyRequests: http.StatusTooManyRequests,
		values.Error:           http.StatusInternalServerError,
	}
	for status, want := range cases {
		assert.Equal(t, want, StatusCode(status), status)
	}
}

func TestGetUserIDFromContext(t *testing.T) {
	_, err := GetUserIDFromContext(context.Background())
	assert.Error(t, err)

	id := uuid.New()
	ctx := context.WithValue(context.Background(), values.ContextUserKey, model.User{ID: id, Role: values.RoleCitizen})
	got, err := GetUserIDFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestQueryHelpers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?page=3&limit=-1&lat=23.5&bad=x&id="+uuid.Nil.String(), nil)

	assert.Equal(t, 3, QueryInt(r, "page", 1))
	assert.Equal(t, 10, QueryInt(r, "limit", 10))
	assert.Equal(t, 7, QueryInt(r, "missing", 7))

	lat, err := QueryFloat(r, "lat")
	require.NoError(t, err)
	assert.Equal(t, 23.5, *lat)

	missing, err := QueryFloat(r, "lng")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = QueryFloat(r, "bad")
	assert.Error(t, err)

	id, err := QueryUUID(r, "id")
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, *id)
}

func TestValidationMessages(t *testing.T) {
	req := model.CreateReportRequest{Latitude: 91, Longitude: 10, Address: "abc"}
	err := ValidateStruct(req)
	require.Error(t, err)

	msgs := ValidationMessages(err)
	assert.Equal(t, "must be between -90 and 90", msgs["latitude"])
	assert.Equal(t, "must be at least 5 characters", msgs["address"])
	assert.NotContains(t, msgs, "longitude")

	assert.Nil(t, ValidationMessages(assert.AnError))
}

func TestCustomEnumValidators(t *testing.T) {
	assert.NoError(t, ValidateStruct(model.UpdateStatusRequest{Status: values.StatusResolved}))
	assert.Error(t, ValidateStruct(model.UpdateStatusRequest{Status: "closed"}))
	assert.NoError(t, ValidateStruct(model.UpdateRoleRequest{Role: values.RoleAuthority}))
	assert.Error(t, ValidateStruct(model.UpdateRoleRequest{Role: "superuser"}))
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("http://localhost:8000"))
	assert.True(t, IsURL("https://api.wastepatrol.app/v1"))
	assert.False(t, IsURL("localhost:8000"))
	assert.False(t, IsURL("/uploads"))
}
