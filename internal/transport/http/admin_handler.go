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
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/horaires-messes/parishauth/internal/identity"
)

// ParishResponse is the public view of a parish account. The password hash never leaves the service.
type ParishResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	State string `json:"state"`
	identity.Profile
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newParishResponse(i *identity.Identity) ParishResponse {
	return ParishResponse{
		ID:        i.ID,
		Email:     i.Email,
		Role:      string(i.Role),
		State:     string(i.State),
		Profile:   i.Profile,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
}

func newParishList(items []*identity.Identity) []ParishResponse {
	out := make([]ParishResponse, 0, len(items))
	for _, i := range items {
		out = append(out, newParishResponse(i))
	}
	return out
}

// UpdateCredentialsRequest overwrites a parish's login. Omitted or empty fields are kept.
type UpdateCredentialsRequest struct {
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

// parishID reads the parish path parameter; the guard has already validated it
func parishID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "parishID"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid parish id")
		return 0, false
	}
	return id, true
}

func actorID(r *http.Request) int64 {
	c, _ := GetCaller(r.Context())
	return c.ID
}

// GetParish returns a single parish
// @Summary Get parish
// @Tags Parishes
// @Produce json
// @Security BearerAuth
// @Param parishID path int true "Parish ID"
// @Success 200 {object} ParishResponse
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/parishes/{parishID} [get]
func (h *Handler) GetParish(w http.ResponseWriter, r *http.Request) {
	id, ok := parishID(w, r)
	if !ok {
		return
	}

	ident, err := h.identityService.GetIdentity(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newParishResponse(ident))
}

// UpdateParish replaces a parish's profile
// @Summary Update parish profile
// @Tags Parishes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param parishID path int true "Parish ID"
// @Param request body identity.Profile true "Profile"
// @Success 200 {object} ParishResponse
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /admin/parishes/{parishID} [put]
func (h *Handler) UpdateParish(w http.ResponseWriter, r *http.Request) {
	id, ok := parishID(w, r)
	if !ok {
		return
	}

	var profile identity.Profile
	if err := decodeJSON(w, r, &profile); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ident, err := h.identityService.UpdateProfile(r.Context(), actorID(r), id, profile)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newParishResponse(ident))
}

// ListParishes returns every parish, newest first
// @Summary List parishes
// @Tags Master
// @Produce json
// @Security BearerAuth
// @Success 200 {array} ParishResponse
// @Failure 403 {object} map[string]string
// @Router /admin/master/parishes [get]
func (h *Handler) ListParishes(w http.ResponseWriter, r *http.Request) {
	items, err := h.identityService.ListParishes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newParishList(items))
}

// ListPending returns registrations awaiting approval
// @Summary List pending registrations
// @Tags Master
// @Produce json
// @Security BearerAuth
// @Success 200 {array} ParishResponse
// @Router /admin/master/pending [get]
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	items, err := h.identityService.ListPending(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newParishList(items))
}

// CreateParish creates an already approved parish
// @Summary Create parish
// @Tags Master
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RegisterRequest true "Parish"
// @Success 201 {object} ParishResponse
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /admin/master/parishes [post]
func (h *Handler) CreateParish(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ident, err := h.identityService.CreateParish(r.Context(), actorID(r), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newParishResponse(ident))
}

// DeleteParish removes a parish permanently
// @Summary Delete parish
// @Tags Master
// @Produce json
// @Security BearerAuth
// @Param parishID path int true "Parish ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/master/parishes/{parishID} [delete]
func (h *Handler) DeleteParish(w http.ResponseWriter, r *http.Request) {
	id, ok := parishID(w, r)
	if !ok {
		return
	}

	if err := h.identityService.DeleteParish(r.Context(), actorID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "parish deleted")
}

// UpdateCredentials overwrites a parish's email or password
// @Summary Update parish credentials
// @Tags Master
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param parishID path int true "Parish ID"
// @Param request body UpdateCredentialsRequest true "Credentials"
// @Success 200 {object} ParishResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /admin/master/parishes/{parishID}/credentials [put]
func (h *Handler) UpdateCredentials(w http.ResponseWriter, r *http.Request) {
	id, ok := parishID(w, r)
	if !ok {
		return
	}

	var req UpdateCredentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ident, err := h.identityService.UpdateCredentials(r.Context(), actorID(r), id, identity.CredentialsUpdate{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newParishResponse(ident))
}

// ApproveParish moves a pending registration to approved
// @Summary Approve registration
// @Tags Master
// @Produce json
// @Security BearerAuth
// @Param parishID path int true "Parish ID"
// @Success 200 {object} ParishResponse
// @Failure 404 {object} map[string]string
// @Router /admin/master/parishes/{parishID}/approve [put]
func (h *Handler) ApproveParish(w http.ResponseWriter, r *http.Request) {
	id, ok := parishID(w, r)
	if !ok {
		return
	}

	ident, err := h.identityService.Approve(r.Context(), actorID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newParishResponse(ident))
}

// RejectParish discards a pending registration
// @Summary Reject registration
// @Tags Master
// @Produce json
// @Security BearerAuth
// @Param parishID path int true "Parish ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/master/parishes/{parishID}/reject [put]
func (h *Handler) RejectParish(w http.ResponseWriter, r *http.Request) {
	id, ok := parishID(w, r)
	if !ok {
		return
	}

	if err := h.identityService.Reject(r.Context(), actorID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "registration rejected")
}
