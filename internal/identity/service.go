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
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/horaires-messes/parishauth/internal/audit"
	"github.com/horaires-messes/parishauth/internal/ids"
	"github.com/horaires-messes/parishauth/internal/observability/logger"
	"github.com/horaires-messes/parishauth/internal/observability/tracing"
)

const tracerName = "github.com/horaires-messes/parishauth/internal/identity"

// Metrics receives login and registration outcomes
type Metrics interface {
	LoginAttempt(ctx context.Context, result string)
	Registration(ctx context.Context, outcome string)
}

type noopMetrics struct{}

func (noopMetrics) LoginAttempt(context.Context, string) {}
func (noopMetrics) Registration(context.Context, string) {}

// AuthResult is returned by a successful login
type AuthResult struct {
	IdentityID int64
	Role       Role
	Name       string
	Token      string
	ExpiresAt  time.Time
}

// Service implements registration, approval, login and credential management
type Service struct {
	store             Store
	hasher            *PasswordHasher
	issuer            TokenIssuer
	notifier          Notifier
	auditLogger       audit.Logger
	metrics           Metrics
	minPasswordLength int
	tracer            trace.Tracer

	dummyOnce sync.Once
	dummy     string
}

// Option configures a Service
type Option func(*Service)

// WithMinPasswordLength sets the minimum accepted password length
func WithMinPasswordLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.minPasswordLength = n
		}
	}
}

// WithMetrics records outcomes on m
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewService creates a new identity service
func NewService(
	store Store,
	hasher *PasswordHasher,
	issuer TokenIssuer,
	notifier Notifier,
	auditLogger audit.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		store:             store,
		hasher:            hasher,
		issuer:            issuer,
		notifier:          notifier,
		auditLogger:       auditLogger,
		metrics:           noopMetrics{},
		minPasswordLength: 1,
		tracer:            otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a pending parish identity awaiting super admin approval.
// Email uniqueness is enforced by the store.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Identity, error) {
	ctx, span := s.tracer.Start(ctx, "identity.Register")
	defer span.End()

	if err := s.validateRegistration(&in); err != nil {
		return nil, err
	}

	ident, err := s.insert(ctx, in, StatePending)
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			s.metrics.Registration(ctx, "conflict")
		} else {
			tracing.RecordError(span, err)
		}
		return nil, err
	}
	span.SetAttributes(tracing.ParishAttr(ident.ID))

	s.metrics.Registration(ctx, "submitted")
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRegistrationSubmitted,
		TenantID: idString(ident.ID),
		ActorID:  audit.ActorAnonymous,
		Resource: ident.Profile.Name,
		Metadata: map[string]any{audit.AttrEmail: ident.Email},
	})

	s.notify(ctx, notifySubmitted, ident)
	return ident, nil
}

// CreateParish creates an already approved parish identity on behalf of the super admin
func (s *Service) CreateParish(ctx context.Context, actorID int64, in RegisterInput) (*Identity, error) {
	if err := s.validateRegistration(&in); err != nil {
		return nil, err
	}

	ident, err := s.insert(ctx, in, StateApproved)
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeParishCreated,
		TenantID: idString(ident.ID),
		ActorID:  idString(actorID),
		Resource: ident.Profile.Name,
		Metadata: map[string]any{audit.AttrEmail: ident.Email},
	})
	return ident, nil
}

func (s *Service) insert(ctx context.Context, in RegisterInput, state ApprovalState) (*Identity, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	ident := &Identity{
		Email:        in.Email,
		PasswordHash: hash,
		Role:         RoleTenantAdmin,
		State:        state,
		Profile:      in.Profile,
	}
	if err := s.store.Insert(ctx, ident); err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}
	return ident, nil
}

// Approve moves a pending registration to approved and notifies the parish.
// The transition is a single conditional write, so concurrent approvals and
// rejections of the same registration have exactly one winner.
func (s *Service) Approve(ctx context.Context, actorID, id int64) (*Identity, error) {
	ctx, span := s.tracer.Start(ctx, "identity.Approve", trace.WithAttributes(tracing.ParishAttr(id)))
	defer span.End()

	ident, err := s.store.Approve(ctx, id)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, err
		}
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("failed to approve identity: %w", err)
	}

	s.metrics.Registration(ctx, "approved")
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRegistrationApproved,
		TenantID: idString(ident.ID),
		ActorID:  idString(actorID),
		Resource: ident.Profile.Name,
		Metadata: map[string]any{audit.AttrState: string(StateApproved)},
	})

	s.notify(ctx, notifyApproved, ident)
	return ident, nil
}

// Reject deletes a pending registration and notifies the applicant
func (s *Service) Reject(ctx context.Context, actorID, id int64) error {
	ctx, span := s.tracer.Start(ctx, "identity.Reject", trace.WithAttributes(tracing.ParishAttr(id)))
	defer span.End()

	ident, err := s.store.DeletePending(ctx, id)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return err
		}
		tracing.RecordError(span, err)
		return fmt.Errorf("failed to reject identity: %w", err)
	}

	ident.State = StateRejected
	s.metrics.Registration(ctx, "rejected")
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRegistrationRejected,
		TenantID: idString(ident.ID),
		ActorID:  idString(actorID),
		Resource: ident.Profile.Name,
		Metadata: map[string]any{
			audit.AttrEmail: ident.Email,
			audit.AttrState: string(StateRejected),
		},
	})

	s.notify(ctx, notifyRejected, ident)
	return nil
}

// Login verifies credentials and issues an access token.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	ctx, span := s.tracer.Start(ctx, "identity.Login")
	defer span.End()

	email = normalizeEmail(email)

	ident, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrIdentityNotFound) {
			tracing.RecordError(span, err)
			s.metrics.LoginAttempt(ctx, "error")
			return nil, fmt.Errorf("failed to look up identity: %w", err)
		}
		// Burn the same Argon2 work as a real account so timing does not reveal registered emails
		s.hasher.Verify(password, s.dummyHash())
		s.loginFailed(ctx, 0, email, "unknown_email")
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, ident.PasswordHash) {
		s.loginFailed(ctx, ident.ID, email, "invalid_password")
		return nil, ErrInvalidCredentials
	}

	if !ident.CanAuthenticate() {
		s.loginFailed(ctx, ident.ID, email, "pending_approval")
		s.metrics.LoginAttempt(ctx, "pending_approval")
		return nil, ErrPendingApproval
	}

	token, expiresAt, err := s.issuer.Issue(ident.ID, ident.Role)
	if err != nil {
		tracing.RecordError(span, err)
		s.metrics.LoginAttempt(ctx, "error")
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	span.SetAttributes(tracing.ParishAttr(ident.ID))

	s.metrics.LoginAttempt(ctx, "success")
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLoginSuccess,
		TenantID: idString(ident.ID),
		ActorID:  idString(ident.ID),
		Resource: "login",
		Metadata: map[string]any{audit.AttrRole: string(ident.Role)},
	})

	return &AuthResult{
		IdentityID: ident.ID,
		Role:       ident.Role,
		Name:       ident.Profile.Name,
		Token:      token,
		ExpiresAt:  expiresAt,
	}, nil
}

// dummyHash returns a hash of a random secret made with the live parameters.
// It is computed once, on the first login for an unknown email.
func (s *Service) dummyHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(ids.New())
		if err != nil {
			slog.Warn("failed to prepare dummy password hash", logger.Error(err))
			return
		}
		s.dummy = h
	})
	return s.dummy
}

func (s *Service) loginFailed(ctx context.Context, id int64, email, reason string) {
	actor := audit.ActorAnonymous
	if id != 0 {
		actor = idString(id)
	}
	if reason != "pending_approval" {
		s.metrics.LoginAttempt(ctx, "invalid_credentials")
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLoginFailed,
		ActorID:  actor,
		Resource: "login",
		Metadata: map[string]any{
			audit.AttrReason: reason,
			audit.AttrEmail:  email,
		},
	})
}

// ChangePassword replaces the caller's password after checking the current one
func (s *Service) ChangePassword(ctx context.Context, id int64, current, next string) error {
	ident, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(current, ident.PasswordHash) {
		return ErrCurrentPasswordMismatch
	}
	if err := s.validatePassword(next); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	ident.PasswordHash = hash

	if err := s.store.Update(ctx, ident); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePasswordChanged,
		TenantID: idString(id),
		ActorID:  idString(id),
		Resource: "password",
	})
	return nil
}

// UpdateCredentials overwrites a parish's login email and/or password.
// Only tenant identities can be targeted.
func (s *Service) UpdateCredentials(ctx context.Context, actorID, targetID int64, upd CredentialsUpdate) (*Identity, error) {
	ident, err := s.tenant(ctx, targetID)
	if err != nil {
		return nil, err
	}

	var changed []string
	if upd.Email != nil && *upd.Email != "" {
		email := normalizeEmail(*upd.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		if email != ident.Email {
			ident.Email = email
			changed = append(changed, "email")
		}
	}
	if upd.Password != nil && *upd.Password != "" {
		if err := s.validatePassword(*upd.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(*upd.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		ident.PasswordHash = hash
		changed = append(changed, "password")
	}

	if len(changed) == 0 {
		return ident, nil
	}

	if err := s.store.Update(ctx, ident); err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) || errors.Is(err, ErrIdentityNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update credentials: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeCredentialsUpdated,
		TenantID: idString(ident.ID),
		ActorID:  idString(actorID),
		Resource: "credentials",
		Metadata: map[string]any{"fields": changed},
	})
	return ident, nil
}

// UpdateProfile replaces a parish's descriptive fields. Callers must have passed the tenant guard.
func (s *Service) UpdateProfile(ctx context.Context, actorID, id int64, profile Profile) (*Identity, error) {
	ident, err := s.tenant(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateProfile(&profile); err != nil {
		return nil, err
	}

	ident.Profile = profile
	if err := s.store.Update(ctx, ident); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeProfileUpdated,
		TenantID: idString(id),
		ActorID:  idString(actorID),
		Resource: profile.Name,
	})
	return ident, nil
}

// DeleteParish permanently removes a tenant identity
func (s *Service) DeleteParish(ctx context.Context, actorID, id int64) error {
	ident, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if ident.IsSuperAdmin() {
		return ErrSuperAdminProtected
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete identity: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeParishDeleted,
		TenantID: idString(id),
		ActorID:  idString(actorID),
		Resource: ident.Profile.Name,
		Metadata: map[string]any{audit.AttrEmail: ident.Email},
	})
	return nil
}

// GetIdentity retrieves an identity by ID
func (s *Service) GetIdentity(ctx context.Context, id int64) (*Identity, error) {
	return s.store.FindByID(ctx, id)
}

// ListParishes returns every tenant identity regardless of state
func (s *Service) ListParishes(ctx context.Context) ([]*Identity, error) {
	return s.store.List(ctx, ListFilter{Role: RoleTenantAdmin})
}

// ListPending returns registrations awaiting approval, newest first
func (s *Service) ListPending(ctx context.Context) ([]*Identity, error) {
	return s.store.List(ctx, ListFilter{Role: RoleTenantAdmin, State: StatePending})
}

func (s *Service) tenant(ctx context.Context, id int64) (*Identity, error) {
	ident, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ident.IsSuperAdmin() {
		return nil, ErrIdentityNotFound
	}
	return ident, nil
}

type notification string

const (
	notifySubmitted notification = "registration_submitted"
	notifyApproved  notification = "registration_approved"
	notifyRejected  notification = "registration_rejected"
)

// notify runs a best-effort notification; failures are logged and swallowed
func (s *Service) notify(ctx context.Context, kind notification, ident *Identity) {
	if s.notifier == nil {
		return
	}

	var err error
	switch kind {
	case notifySubmitted:
		err = s.notifier.RegistrationSubmitted(ctx, ident)
	case notifyApproved:
		err = s.notifier.RegistrationApproved(ctx, ident)
	case notifyRejected:
		err = s.notifier.RegistrationRejected(ctx, ident)
	}
	if err != nil {
		slog.WarnContext(ctx, "notification failed",
			logger.Component("identity"),
			logger.Operation(string(kind)),
			logger.ParishID(ident.ID),
			logger.Error(err),
		)
	}
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
