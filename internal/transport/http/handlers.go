// Copyright 2026 The Parishauth Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// @title Parishauth API
// @version 1.0.0
// @description Parish registration, login and administration
// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/horaires-messes/parishauth/internal/audit"
	"github.com/horaires-messes/parishauth/internal/identity"
	"github.com/horaires-messes/parishauth/internal/observability/logger"
	"github.com/horaires-messes/parishauth/internal/observability/metrics"
	"github.com/horaires-messes/parishauth/internal/token"
)

// TokenVerifier validates bearer tokens
type TokenVerifier interface {
	Verify(raw string) (*token.Principal, error)
}

// AccessRecorder receives every guard decision
type AccessRecorder interface {
	AccessDecision(ctx context.Context, allowed bool, reason string)
}

// Pinger reports backend health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	verifier        TokenVerifier
	auditLogger     audit.Logger
	access          AccessRecorder
	db              Pinger
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithAccessRecorder records guard decisions on r
func WithAccessRecorder(r AccessRecorder) HandlerOption {
	return func(h *Handler) {
		h.access = r
	}
}

// WithHealthCheck makes /health report the state of p
func WithHealthCheck(p Pinger) HandlerOption {
	return func(h *Handler) {
		h.db = p
	}
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	verifier TokenVerifier,
	auditLogger audit.Logger,
	opts ...HandlerOption,
) *Handler {
	h := &Handler{
		identityService: identityService,
		verifier:        verifier,
		auditLogger:     auditLogger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RouterConfig holds router-level middleware settings
type RouterConfig struct {
	RateLimiter    *RateLimiter
	RequestTimeout time.Duration
	HTTPMetrics    *metrics.HTTPMetrics
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	if cfg.HTTPMetrics != nil {
		r.Use(cfg.HTTPMetrics.Instrument)
	}
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/health", h.HealthCheck)
	if cfg.HTTPMetrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.HTTPMetrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public
		r.Group(func(r chi.Router) {
			if cfg.RateLimiter != nil {
				r.Use(RateLimitMiddleware(cfg.RateLimiter))
			}
			r.Post("/auth/login", h.Login)
			r.Post("/auth/register", h.Register)
		})

		// Bearer protected
		r.Group(func(r chi.Router) {
			r.Use(h.BearerAuth)

			r.Get("/auth/me", h.Me)
			r.Put("/admin/change-password", h.ChangePassword)

			r.Route("/admin/parishes/{parishID}", func(r chi.Router) {
				r.Use(h.RequireParishAccess("parishID"))
				r.Get("/", h.GetParish)
				r.Put("/", h.UpdateParish)
			})

			r.Route("/admin/master", func(r chi.Router) {
				r.Use(h.RequireSuperAdmin)
				r.Get("/parishes", h.ListParishes)
				r.Post("/parishes", h.CreateParish)
				r.Delete("/parishes/{parishID}", h.DeleteParish)
				r.Put("/parishes/{parishID}/credentials", h.UpdateCredentials)
				r.Put("/parishes/{parishID}/approve", h.ApproveParish)
				r.Put("/parishes/{parishID}/reject", h.RejectParish)
				r.Get("/pending", h.ListPending)
			})
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service and its database are reachable
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "health check failed", logger.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "parishauth",
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "parishauth",
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"message": message,
	})
}

// decodeJSON reads a JSON request body of at most 1 MiB
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}
