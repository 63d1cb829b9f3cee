package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bwise1/waste_patrol/config"
	"github.com/bwise1/waste_patrol/internal/db"
	deps "github.com/bwise1/waste_patrol/internal/debs"
	"github.com/bwise1/waste_patrol/internal/events"
	"github.com/bwise1/waste_patrol/internal/http/detection"
	googleauth "github.com/bwise1/waste_patrol/internal/http/google"
	"github.com/bwise1/waste_patrol/internal/metrics"
	"github.com/bwise1/waste_patrol/util/email"
	"github.com/bwise1/waste_patrol/util/storage"
	"github.com/bwise1/waste_patrol/util/tracing"
	"github.com/bwise1/waste_patrol/util/values"
	"github.com/bwise1/waste_patrol/util/websockets"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
)

const (
	defaultIdleTimeout    = time.Minute
	defaultReadTimeout    = 30 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultShutdownPeriod = 30 * time.Second
)

type Handler func(w http.ResponseWriter, r *http.Request) *ServerResponse

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := h(w, r)
	if resp == nil {
		return
	}
	respByte, err := json.Marshal(resp)
	if err != nil {
		writeErrorResponse(w, err, values.Error, "unable to marshal server response")
		return
	}
	writeJSONResponse(w, respByte, resp.StatusCode)
}

// Geocoder turns a coordinate into a street address.
type Geocoder interface {
	ReverseAddress(ctx context.Context, lat, lon float64) (string, error)
}

// GoogleProfiles resolves Google access tokens.
type GoogleProfiles interface {
	Profile(ctx context.Context, accessToken string) (*googleauth.Profile, error)
}

// AIHealthChecker reports whether the detection service is up.
type AIHealthChecker interface {
	Health(ctx context.Context) (*detection.Health, error)
}

type API struct {
	Server *http.Server
	Config *config.Config
	Deps   *deps.Dependencies
	DB     db.Pool

	Store        storage.Store
	Analyzer     detection.Analyzer
	AIHealth     AIHealthChecker
	ProcessedURL func(filename string) string
	Geocoder     Geocoder
	Google       GoogleProfiles
	Mailer       email.Sender
	Events       events.Publisher
	Hub          *websockets.WebSocketManager
	Cache        *cache.Cache

	limiters  *cache.Cache
	limiterMu sync.Mutex
	startedAt time.Time
}

// New wires an API from its dependencies.
func New(cfg *config.Config, d *deps.Dependencies) *API {
	api := &API{
		Config:    cfg,
		Deps:      d,
		DB:        d.DB.Pool(),
		Store:     d.Store,
		Analyzer:  d.Analyzer,
		Mailer:    d.Mailer,
		Events:    d.Publisher,
		Hub:       d.WebSocket,
		Cache:     d.Cache,
		Google:    d.Google,
		startedAt: time.Now(),
	}
	if d.Detector != nil {
		api.AIHealth = d.Detector
		api.ProcessedURL = d.Detector.ProcessedURL
	}
	if d.Geocoder != nil {
		api.Geocoder = d.Geocoder
	}
	api.Init()
	return api
}

// Init fills in defaults for anything not wired.
func (api *API) Init() {
	if api.startedAt.IsZero() {
		api.startedAt = time.Now()
	}
	if api.Cache == nil {
		api.Cache = cache.New(api.Config.StatsCacheTTL, 2*api.Config.StatsCacheTTL)
	}
	if api.limiters == nil {
		api.limiters = cache.New(api.Config.RateLimitWindow, 2*api.Config.RateLimitWindow)
	}
	if api.Events == nil {
		api.Events = events.Noop{}
	}
	if api.Mailer == nil {
		api.Mailer = email.LogMailer{}
	}
	if api.Hub == nil {
		api.Hub = websockets.NewWebSocketManager()
	}
	if api.Analyzer == nil {
		api.Analyzer = detection.Mock{}
	}
}

func (api *API) Serve() error {
	api.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", api.Config.Port),
		IdleTimeout:  defaultIdleTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout + api.Config.AIServiceTimeout,
		Handler:      api.setUpServerHandler(),
	}
	return api.Server.ListenAndServe()
}

func (api *API) setUpServerHandler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)
	mux.Use(RequestTracing)
	mux.Use(api.Instrument)
	mux.Use(api.CORS())

	mux.Method(http.MethodGet, "/", Handler(api.Index))
	mux.Handle("/metrics", metrics.Handler())

	if local, ok := api.Store.(*storage.Local); ok {
		mux.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(local.Root()))))
	}

	mux.Route("/api", func(r chi.Router) {
		r.Use(api.RateLimit)

		r.Mount("/auth", api.AuthRoutes())
		r.Mount("/users", api.UserRoutes())
		r.Mount("/reports", api.ReportRoutes())
		r.Mount("/locations", api.LocationRoutes())
		r.Mount("/dashboard", api.DashboardRoutes())
		r.Method(http.MethodGet, "/health", Handler(api.Health))
		r.Get("/ws", api.Hub.HandleConnections)
	})

	mux.NotFound(Handler(api.NotFound).ServeHTTP)
	mux.MethodNotAllowed(Handler(api.MethodNotAllowed).ServeHTTP)

	return mux
}

func (api *API) Index(_ http.ResponseWriter, _ *http.Request) *ServerResponse {
	return &ServerResponse{
		Message:    "Waste Patrol API",
		Status:     values.Success,
		StatusCode: http.StatusOK,
	}
}

func (api *API) NotFound(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc, _ := r.Context().Value(values.ContextTracingKey).(tracing.Context)
	return respondWithError(nil, "Route not found", values.NotFound, &tc)
}

func (api *API) MethodNotAllowed(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc, _ := r.Context().Value(values.ContextTracingKey).(tracing.Context)
	resp := respondWithError(nil, "Method not allowed", values.BadRequestBody, &tc)
	resp.StatusCode = http.StatusMethodNotAllowed
	return resp
}

func (api *API) Shutdown(ctx context.Context) error {
	if api.Server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultShutdownPeriod)
	defer cancel()
	return api.Server.Shutdown(ctx)
}
