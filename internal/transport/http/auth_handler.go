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
	"net/http"
	"time"

	"github.com/horaires-messes/parishauth/internal/identity"
)

// LoginRequest represents login data
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token and the parish it belongs to
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ParishID     int64     `json:"parish_id"`
	ParishName   string    `json:"parish_name"`
	Role         string    `json:"role"`
	IsSuperAdmin bool      `json:"is_super_admin"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// RegisterRequest represents a parish registration
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	identity.Profile
}

func (r RegisterRequest) input() identity.RegisterInput {
	return identity.RegisterInput{Email: r.Email, Password: r.Password, Profile: r.Profile}
}

// RegisterResponse acknowledges a registration awaiting approval
type RegisterResponse struct {
	Message    string `json:"message"`
	ParishID   int64  `json:"parish_id"`
	ParishName string `json:"parish_name"`
}

// ChangePasswordRequest represents a self-service password rotation
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login authenticates a parish or the super admin
// @Summary Login
// @Description Verify credentials and issue a bearer token
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.identityService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{
		AccessToken:  res.Token,
		TokenType:    "bearer",
		ParishID:     res.IdentityID,
		ParishName:   res.Name,
		Role:         string(res.Role),
		IsSuperAdmin: res.Role == identity.RoleSuperAdmin,
		ExpiresAt:    res.ExpiresAt,
	})
}

// Register submits a new parish for approval
// @Summary Register a parish
// @Description Create a pending parish account. Login is refused until a super admin approves it.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration Data"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ident, err := h.identityService.Register(r.Context(), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, RegisterResponse{
		Message:    "registration submitted, awaiting approval",
		ParishID:   ident.ID,
		ParishName: ident.Profile.Name,
	})
}

// Me returns the authenticated parish
// @Summary Current parish
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} ParishResponse
// @Failure 401 {object} map[string]string
// @Router /auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetCaller(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	ident, err := h.identityService.GetIdentity(r.Context(), caller.ID)
	if err != nil {
		// the account was deleted after the token was issued
		if errors.Is(err, identity.ErrIdentityNotFound) {
			challenge(w, "unknown subject")
			return
		}
		writeError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, newParishResponse(ident))
}

// ChangePassword rotates the caller's own password
// @Summary Change password
// @Tags Auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "Passwords"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /admin/change-password [put]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := GetCaller(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.identityService.ChangePassword(r.Context(), caller.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}

	respondMessage(w, http.StatusOK, "password updated")
}
