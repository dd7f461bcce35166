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
	"time"
)

// Domain errors
var (
	ErrIdentityNotFound        = errors.New("identity not found")
	ErrEmailAlreadyExists      = errors.New("email already in use")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrPendingApproval         = errors.New("account pending approval")
	ErrCurrentPasswordMismatch = errors.New("current password is incorrect")
	ErrWeakPassword            = errors.New("password does not meet security requirements")
	ErrInvalidInput            = errors.New("invalid input")
	ErrSuperAdminProtected     = errors.New("super admin account cannot be modified")
	ErrSuperAdminExists        = errors.New("super admin already exists")
)

// Role is the closed set of roles an identity may hold.
type Role string

const (
	RoleTenantAdmin Role = "tenant_admin"
	RoleSuperAdmin  Role = "super_admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleTenantAdmin || r == RoleSuperAdmin
}

// ParseRole converts a wire value into a Role, rejecting anything unknown.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	if !r.Valid() {
		return "", false
	}
	return r, true
}

// ApprovalState tracks where a parish registration sits in the approval workflow.
// StateRejected is terminal and never persisted: rejection deletes the row.
type ApprovalState string

const (
	StatePending  ApprovalState = "pending"
	StateApproved ApprovalState = "approved"
	StateRejected ApprovalState = "rejected"
)

// Identity is a parish administrator account, or the single super admin.
// The identity ID doubles as the tenant ID of the parish it administers.
type Identity struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         Role
	State        ApprovalState
	Profile      Profile
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsSuperAdmin reports whether the identity holds the super admin role.
func (i *Identity) IsSuperAdmin() bool {
	return i.Role == RoleSuperAdmin
}

// CanAuthenticate reports whether the approval gate lets this identity log in.
// The super admin is always treated as approved whatever its stored state.
func (i *Identity) CanAuthenticate() bool {
	return i.IsSuperAdmin() || i.State == StateApproved
}

// Profile holds the public description of the parish.
type Profile struct {
	Name         string `json:"name"`
	City         string `json:"city"`
	Region       string `json:"region,omitempty"`
	Address      string `json:"address,omitempty"`
	Phone        string `json:"phone,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	Website      string `json:"website,omitempty"`

	// DioceseID references the diocese catalog of the mass-times directory.
	// It is stored as given; the catalog itself lives outside this service.
	DioceseID *int64   `json:"diocese_id,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// ListFilter narrows Store.List. Zero values mean "any".
type ListFilter struct {
	Role  Role
	State ApprovalState
}

// Store defines the persistence contract for identities.
//
// Implementations must enforce email uniqueness atomically and report a
// violation from Insert or Update as ErrEmailAlreadyExists. Lookups that
// match nothing return ErrIdentityNotFound.
type Store interface {
	// FindByEmail retrieves an identity by its login email
	FindByEmail(ctx context.Context, email string) (*Identity, error)

	// FindByID retrieves an identity by ID
	FindByID(ctx context.Context, id int64) (*Identity, error)

	// FindSuperAdmin retrieves the super admin identity, if one exists
	FindSuperAdmin(ctx context.Context) (*Identity, error)

	// Insert stores a new identity and assigns its ID and timestamps
	Insert(ctx context.Context, identity *Identity) error

	// Update replaces the email, password hash and profile of an existing identity.
	// It never changes the role or the approval state.
	Update(ctx context.Context, identity *Identity) error

	// Approve atomically moves a pending tenant identity to approved and returns it.
	// Anything else, including a concurrent approval or rejection, is ErrIdentityNotFound.
	Approve(ctx context.Context, id int64) (*Identity, error)

	// DeletePending atomically removes a pending tenant identity and returns the removed row,
	// with the same not-found rule as Approve
	DeletePending(ctx context.Context, id int64) (*Identity, error)

	// Delete removes an identity permanently
	Delete(ctx context.Context, id int64) error

	// List returns identities matching the filter, newest first
	List(ctx context.Context, filter ListFilter) ([]*Identity, error)
}

// Notifier delivers best-effort messages about registration lifecycle events.
type Notifier interface {
	RegistrationSubmitted(ctx context.Context, identity *Identity) error
	RegistrationApproved(ctx context.Context, identity *Identity) error
	RegistrationRejected(ctx context.Context, identity *Identity) error
}

// TokenIssuer mints bearer tokens for authenticated identities.
type TokenIssuer interface {
	Issue(identityID int64, role Role) (string, time.Time, error)
}
