package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/bwise1/waste_patrol/internal/metrics"
	"github.com/bwise1/waste_patrol/util/tracing"
	"github.com/bwise1/waste_patrol/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt"
	"github.com/jackc/pgx/v5"
	"github.com/lucsky/cuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

const defaultRequestSource = "web"

var (
	errTokenExpired = errors.New("token expired")
	errInvalidToken = errors.New("invalid token")
)

// RequestTracing handles the request tracing context
func RequestTracing(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		requestSource := r.Header.Get(values.HeaderRequestSource)
		if requestSource == "" {
			requestSource = defaultRequestSource
		}

		requestID := r.Header.Get(values.HeaderRequestID)
		if requestID == "" {
			requestID = cuid.New()
		}
		w.Header().Set(values.HeaderRequestID, requestID)

		tracingContext := tracing.Context{
			RequestID:     requestID,
			RequestSource: requestSource,
		}

		ctx = context.WithValue(ctx, values.ContextTracingKey, tracingContext)
		next.ServeHTTP(w, r.WithContext(ctx))
	}

	return http.HandlerFunc(fn)
}

// Instrument logs each request and records its metrics.
func (api *API) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		metrics.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDurationSeconds.WithLabelValues(route, r.Method).Observe(elapsed.Seconds())

		tc, _ := r.Context().Value(values.ContextTracingKey).(tracing.Context)
		log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     status,
			"bytes":      ww.BytesWritten(),
			"duration":   elapsed.String(),
			"request_id": tc.RequestID,
			"source":     tc.RequestSource,
		}).Info("request")
	})
}

// CORS restricts browsers to the configured origins.
func (api *API) CORS() func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   api.Config.CorsAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", values.HeaderRequestID, values.HeaderRequestSource},
		ExposedHeaders:   []string{values.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}

// RateLimit allows RateLimitMaxRequests per RateLimitWindow for each client IP.
func (api *API) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !api.limiterFor(clientIP(r)).Allow() {
			w.Header().Set("Retry-After", strconv.Itoa(int(api.Config.RateLimitWindow.Seconds())))
			writeErrorResponse(w, nil, values.TooManyRequests, "Too many requests from this IP, please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (api *API) limiterFor(ip string) *rate.Limiter {
	api.limiterMu.Lock()
	defer api.limiterMu.Unlock()

	if l, ok := api.limiters.Get(ip); ok {
		api.limiters.Set(ip, l, cache.DefaultExpiration)
		return l.(*rate.Limiter)
	}

	burst := api.Config.RateLimitMaxRequests
	every := api.Config.RateLimitWindow / time.Duration(burst)
	l := rate.NewLimiter(rate.Every(every), burst)
	api.limiters.Set(ip, l, cache.DefaultExpiration)
	return l
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RequireLogin authenticates the bearer token and puts the user in the request context.
func (api *API) RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.Split(r.Header.Get("Authorization"), " ")
		if len(authorization) != 2 || authorization[0] != "Bearer" {
			writeErrorResponse(w, errors.New(values.NotAuthorised), values.NotAuthorised, "Access denied. No token provided.")
			return
		}

		claims, err := api.verifyToken(authorization[1], false)
		if err != nil {
			if errors.Is(err, errTokenExpired) {
				writeErrorResponse(w, err, values.TokenExpired, "Token expired.")
				return
			}
			writeErrorResponse(w, err, values.NotAuthorised, "Invalid token.")
			return
		}

		dbCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		user, err := api.GetUserByID(dbCtx, claims.UserID)
		if errors.Is(err, pgx.ErrNoRows) {
			writeErrorResponse(w, err, values.NotAuthorised, "Invalid token.")
			return
		}
		if err != nil {
			log.WithError(err).WithField("user_id", claims.UserID).Error("loading authenticated user")
			writeErrorResponse(w, err, values.Error, "Unable to verify user, please try again later.")
			return
		}
		if !user.IsActive {
			writeErrorResponse(w, nil, values.NotAllowed, "Account is deactivated.")
			return
		}

		ctx := context.WithValue(r.Context(), values.ContextUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole must run after RequireLogin.
func (api *API) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := currentUser(r)
			if err != nil {
				writeErrorResponse(w, err, values.NotAuthorised, "Access denied.")
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeErrorResponse(w, nil, values.NotAllowed, "Access denied. Insufficient permissions.")
		})
	}
}

func (api *API) verifyToken(tokenString string, isRefresh bool) (*TokenClaims, error) {
	secret := api.Config.JwtSecret
	if isRefresh {
		secret = api.Config.RefreshSecret
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if ve, ok := err.(*jwt.ValidationError); ok {
		if ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, errTokenExpired
		}
	}

	if err != nil || !token.Valid {
		log.WithError(err).Debug("error verifying token")
		return nil, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidToken
	}

	tokenType, _ := claims["typ"].(string)
	if (isRefresh && tokenType != tokenTypeRefresh) || (!isRefresh && tokenType != tokenTypeAccess) {
		return nil, fmt.Errorf("invalid token type %q", tokenType)
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("invalid user id")
	}

	role, _ := claims["role"].(string)
	exp, _ := claims["exp"].(float64)

	return &TokenClaims{
		UserID: userID,
		Role:   role,
		Type:   tokenType,
		Exp:    int64(exp),
	}, nil
}
