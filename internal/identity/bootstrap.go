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

package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/horaires-messes/parishauth/internal/audit"
	"github.com/horaires-messes/parishauth/internal/observability/logger"
)

// BootstrapConfig describes the super admin created on first start
type BootstrapConfig struct {
	Email    string
	Password string
	Name     string
}

// BootstrapService creates the single super admin identity when none exists
type BootstrapService struct {
	store       Store
	hasher      *PasswordHasher
	auditLogger audit.Logger
	cfg         BootstrapConfig
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(store Store, hasher *PasswordHasher, auditLogger audit.Logger, cfg BootstrapConfig) *BootstrapService {
	return &BootstrapService{
		store:       store,
		hasher:      hasher,
		auditLogger: auditLogger,
		cfg:         cfg,
	}
}

// Bootstrap inserts the super admin if configured and not already present.
// It returns the created identity, or nil when nothing was done.
func (s *BootstrapService) Bootstrap(ctx context.Context) (*Identity, error) {
	email := normalizeEmail(s.cfg.Email)
	if email == "" || s.cfg.Password == "" {
		return nil, nil
	}

	existing, err := s.store.FindSuperAdmin(ctx)
	if err == nil && existing != nil {
		// Already bootstrapped, skip silently
		return nil, nil
	}
	if err != nil && !errors.Is(err, ErrIdentityNotFound) {
		return nil, fmt.Errorf("failed to check for existing super admin: %w", err)
	}

	if err := validateEmail(email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(s.cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	name := s.cfg.Name
	if name == "" {
		name = "Super Admin"
	}

	ident := &Identity{
		Email:        email,
		PasswordHash: hash,
		Role:         RoleSuperAdmin,
		State:        StateApproved,
		Profile:      Profile{Name: name},
	}
	if err := s.store.Insert(ctx, ident); err != nil {
		if s.lostRace(ctx, email, err) {
			slog.InfoContext(ctx, "super admin created concurrently, skipping bootstrap", logger.Email(email))
			return nil, nil
		}
		if errors.Is(err, ErrEmailAlreadyExists) {
			return nil, fmt.Errorf("bootstrap email %s belongs to an existing parish: %w", email, err)
		}
		return nil, fmt.Errorf("failed to create super admin during bootstrap: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSuperAdminBootstrapped,
		TenantID: idString(ident.ID),
		ActorID:  audit.ActorSystemBootstrap,
		Resource: "super_admin",
		Metadata: map[string]any{audit.AttrEmail: email},
	})

	slog.InfoContext(ctx, "bootstrapped super admin", logger.Email(email), logger.ParishID(ident.ID))
	return ident, nil
}

// lostRace reports whether an insert failure means another instance bootstrapped first
func (s *BootstrapService) lostRace(ctx context.Context, email string, err error) bool {
	if errors.Is(err, ErrSuperAdminExists) {
		return true
	}
	if !errors.Is(err, ErrEmailAlreadyExists) {
		return false
	}
	existing, findErr := s.store.FindSuperAdmin(ctx)
	return findErr == nil && existing.Email == email
}
