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

package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/horaires-messes/parishauth/internal/audit"
	"github.com/horaires-messes/parishauth/internal/authz"
	"github.com/horaires-messes/parishauth/internal/observability/logger"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// BearerAuth verifies the Authorization header and stores the caller in the request context
func (h *Handler) BearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", bearerRealm)
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		p, err := h.verifier.Verify(raw)
		if err != nil {
			writeError(w, r, err)
			return
		}

		ctx := WithCaller(r.Context(), authz.Caller{ID: p.IdentityID, Role: p.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, raw, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// RequireSuperAdmin denies every caller but the super admin
func (h *Handler) RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.guard(w, r, 0, true) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireParishAccess admits the super admin and the parish named by the URL parameter
func (h *Handler) RequireParishAccess(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			target, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid parish id")
				return
			}
			if !h.guard(w, r, target, false) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// guard evaluates the access decision for the request and writes the denial if any
func (h *Handler) guard(w http.ResponseWriter, r *http.Request, target int64, requiresSuper bool) bool {
	caller, ok := GetCaller(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", bearerRealm)
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return false
	}

	d := authz.Authorize(caller, target, requiresSuper)
	if h.access != nil {
		h.access.AccessDecision(r.Context(), d.Allowed, string(d.Reason))
	}
	if d.Allowed {
		return true
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeAccessDenied,
		TenantID:  strconv.FormatInt(target, 10),
		ActorID:   strconv.FormatInt(caller.ID, 10),
		Resource:  r.URL.Path,
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
		Metadata: map[string]any{
			audit.AttrReason: string(d.Reason),
			audit.AttrRole:   string(caller.Role),
		},
	})
	slog.WarnContext(r.Context(), "access denied",
		logger.ParishID(caller.ID),
		logger.TargetParishID(target),
		logger.Role(string(caller.Role)),
		logger.Decision(false),
		logger.Reason(string(d.Reason)),
	)
	writeError(w, r, d.Err())
	return false
}
