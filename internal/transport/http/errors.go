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
	"errors"
	"log/slog"
	"net/http"

	"github.com/horaires-messes/parishauth/internal/authz"
	"github.com/horaires-messes/parishauth/internal/identity"
	"github.com/horaires-messes/parishauth/internal/observability/logger"
	"github.com/horaires-messes/parishauth/internal/token"
)

const bearerRealm = `Bearer realm="parishauth"`

// writeError maps a domain error onto an HTTP response. Unknown errors are logged and
// reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", bearerRealm)
		respondError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, token.ErrTokenExpired):
		challenge(w, "token expired")
	case errors.Is(err, token.ErrTokenInvalid):
		challenge(w, "invalid token")
	case errors.Is(err, identity.ErrPendingApproval):
		respondError(w, http.StatusForbidden, "account pending approval")
	case errors.Is(err, authz.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, identity.ErrSuperAdminProtected):
		respondError(w, http.StatusForbidden, "the super admin account cannot be deleted")
	case errors.Is(err, identity.ErrIdentityNotFound):
		respondError(w, http.StatusNotFound, "parish not found")
	case errors.Is(err, identity.ErrEmailAlreadyExists):
		respondError(w, http.StatusConflict, "email already in use")
	case errors.Is(err, identity.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrWeakPassword):
		respondError(w, http.StatusBadRequest, "password does not meet security requirements")
	case errors.Is(err, identity.ErrCurrentPasswordMismatch):
		respondError(w, http.StatusBadRequest, "current password is incorrect")
	default:
		slog.ErrorContext(r.Context(), "request failed",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// challenge answers 401 for a presented but unusable bearer token
func challenge(w http.ResponseWriter, description string) {
	w.Header().Set("WWW-Authenticate", bearerRealm+`, error="invalid_token", error_description="`+description+`"`)
	respondError(w, http.StatusUnauthorized, description)
}
