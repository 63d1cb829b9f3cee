package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bwise1/waste_patrol/config"
	"github.com/bwise1/waste_patrol/internal/http/detection"
	"github.com/bwise1/waste_patrol/internal/model"
	"github.com/bwise1/waste_patrol/util"
	"github.com/bwise1/waste_patrol/util/storage"
	"github.com/bwise1/waste_patrol/util/values"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu    sync.Mutex
	saved []string
}

func (s *fakeStore) Save(_ context.Context, folder, filename string, data []byte) (storage.StoredFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, folder+"/"+filename)
	return storage.StoredFile{
		Filename: filename,
		URL:      "https://cdn.test/" + folder + "/" + filename,
		Size:     int64(len(data)),
	}, nil
}

type sentMail struct {
	To       string
	Template string
	Data     any
}

type fakeMailer struct {
	sent chan sentMail
}

func (m *fakeMailer) Send(_ context.Context, recipient string, data any, templateName string) error {
	m.sent <- sentMail{To: recipient, Template: templateName, Data: data}
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) Publish(_ context.Context, eventType string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type failingAnalyzer struct{}

func (failingAnalyzer) Analyze(context.Context, string, []byte) (model.Detection, error) {
	return model.Detection{}, fmt.Errorf("connection refused")
}

type fakeGeocoder struct {
	mu      sync.Mutex
	calls   int
	address string
}

func (g *fakeGeocoder) ReverseAddress(context.Context, float64, float64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.address, nil
}

func (g *fakeGeocoder) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fakeAIHealth struct {
	health *detection.Health
	err    error
}

func (f fakeAIHealth) Health(context.Context) (*detection.Health, error) {
	return f.health, f.err
}

type testEnv struct {
	api    *API
	mock   pgxmock.PgxPoolIface
	store  *fakeStore
	mailer *fakeMailer
	events *fakePublisher
	server http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	cfg := &config.Config{
		JwtSecret:            "test-secret",
		JwtExpires:           "1h",
		RefreshSecret:        "test-refresh-secret",
		RefreshExpiry:        "24h",
		RateLimitWindow:      time.Minute,
		RateLimitMaxRequests: 1000,
		StatsCacheTTL:        time.Minute,
		MaxUploadSize:        10 << 20,
		CorsAllowedOrigins:   []string{"http://localhost:3000"},
	}

	env := &testEnv{
		mock:   mock,
		store:  &fakeStore{},
		mailer: &fakeMailer{sent: make(chan sentMail, 4)},
		events: &fakePublisher{},
	}
	env.api = &API{
		Config:   cfg,
		DB:       mock,
		Store:    env.store,
		Analyzer: detection.Mock{Rand: func() float64 { return 0.9 }},
		Mailer:   env.mailer,
		Events:   env.events,
	}
	env.api.Init()
	env.server = env.api.setUpServerHandler()
	return env
}

func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func testUser(role string) model.User {
	now := time.Now().UTC()
	return model.User{
		ID:           uuid.New(),
		Name:         "Test " + role,
		Email:        role + "@example.com",
		Role:         role,
		AuthProvider: values.AuthProviderEmail,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

var userColumnNames = []string{
	"id", "name", "email", "password_hash", "role", "phone", "address",
	"auth_provider", "is_active", "created_at", "updated_at",
}

func userRows(users ...model.User) *pgxmock.Rows {
	rows := pgxmock.NewRows(userColumnNames)
	for _, u := range users {
		rows.AddRow(u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Phone, u.Address,
			u.AuthProvider, u.IsActive, u.CreatedAt, u.UpdatedAt)
	}
	return rows
}

// expectUser queues the user lookup RequireLogin performs.
func (e *testEnv) expectUser(u model.User) {
	e.mock.ExpectQuery(`SELECT .+ FROM users WHERE id = \$1`).
		WithArgs(u.ID.String()).
		WillReturnRows(userRows(u))
}

func reportRows(reports ...model.Report) *pgxmock.Rows {
	cols := make([]string, 35)
	for i := range cols {
		cols[i] = fmt.Sprintf("c%d", i)
	}
	rows := pgxmock.NewRows(cols)
	for _, r := range reports {
		var assigneeName, assigneeEmail *string
		if r.Assignee != nil {
			assigneeName, assigneeEmail = &r.Assignee.Name, &r.Assignee.Email
		}
		rows.AddRow(
			r.ID, r.ReportCode, r.CitizenID,
			r.Latitude, r.Longitude,
			r.Address, r.Landmark,
			r.OriginalImage.Filename, r.OriginalImage.URL, r.OriginalImage.Size, r.OriginalImage.Mimetype,
			nil, nil,
			r.Detection.TotalWasteArea, r.Detection.EstimatedVolume, r.Detection.WasteTypes,
			r.Detection.SeverityLevel, r.Detection.Source,
			r.Status, r.Priority, r.AssignedTo, r.AssignedAt,
			r.Resolution.ResolvedBy, r.Resolution.ResolvedAt, r.Resolution.Notes, r.Resolution.AfterImages,
			true, r.CreatedAt, r.UpdatedAt,
			r.Citizen.Name, r.Citizen.Email, nil,
			assigneeName, assigneeEmail, nil,
		)
	}
	return rows
}

func testReport(citizen model.User, status string) model.Report {
	now := time.Now().UTC().Add(-time.Hour)
	return model.Report{
		ID:         uuid.New(),
		ReportCode: util.GenerateReportCode(now),
		CitizenID:  citizen.ID,
		Citizen:    &model.UserSummary{ID: citizen.ID, Name: citizen.Name, Email: citizen.Email},
		Latitude:   23.7806,
		Longitude:  90.4193,
		Address:    "Road 11, Banani, Dhaka",
		OriginalImage: model.Image{
			Filename: "waste-report-1.jpg",
			URL:      "https://cdn.test/waste-reports/waste-report-1.jpg",
			Size:     1024,
			Mimetype: "image/jpeg",
		},
		Detection: model.Detection{
			TotalWasteArea:  32000,
			EstimatedVolume: 3.2,
			WasteTypes:      []string{"waste"},
			SeverityLevel:   values.SeverityHigh,
			Source:          detection.SourceAI,
		},
		Status:     status,
		Priority:   values.PriorityMedium,
		Resolution: model.Resolution{AfterImages: []string{}},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (e *testEnv) token(t *testing.T, u model.User) string {
	t.Helper()
	token, _, err := e.api.createToken(u)
	require.NoError(t, err)
	return token
}

func (e *testEnv) request(t *testing.T, method, path string, body io.Reader, contentType string, as *model.User) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(t, *as))
	}
	return e.serve(req)
}

func (e *testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) jsonRequest(t *testing.T, method, path string, payload any, as *model.User) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	return e.request(t, method, path, body, "application/json", as)
}

type envelope struct {
	Message string            `json:"message"`
	Status  string            `json:"status"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 120, G: 90, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type formFile struct {
	field, name string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}
