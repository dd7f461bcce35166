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

// Package authz decides whether a caller may act on a parish.
package authz

import (
	"errors"
	"fmt"

	"github.com/horaires-messes/parishauth/internal/identity"
)

// ErrForbidden is returned when a decision denies access
var ErrForbidden = errors.New("forbidden")

// Reason explains a denial
type Reason string

const (
	// ReasonSuperAdminRequired denies a tenant caller on a super admin operation
	ReasonSuperAdminRequired Reason = "super_admin_required"

	// ReasonTenantMismatch denies a tenant caller acting on another parish
	ReasonTenantMismatch Reason = "tenant_mismatch"

	// ReasonInvalidRole denies a caller whose role is not recognised
	ReasonInvalidRole Reason = "invalid_role"
)

// Caller is the authenticated principal making a request
type Caller struct {
	ID   int64
	Role identity.Role
}

// IsSuperAdmin reports whether the caller holds the super admin role
func (c Caller) IsSuperAdmin() bool {
	return c.Role == identity.RoleSuperAdmin
}

// Decision is the outcome of an access check. It is never cached.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Err returns nil for an allow and an error wrapping ErrForbidden for a deny
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
}

func allow() Decision { return Decision{Allowed: true} }

func deny(r Reason) Decision { return Decision{Reason: r} }

// Authorize decides whether caller may act on the parish identified by target.
// Super admin only operations ignore target. Otherwise the super admin may act on
// any parish and a tenant admin only on its own.
func Authorize(caller Caller, target int64, requiresSuper bool) Decision {
	if !caller.Role.Valid() {
		return deny(ReasonInvalidRole)
	}

	if requiresSuper {
		if caller.IsSuperAdmin() {
			return allow()
		}
		return deny(ReasonSuperAdminRequired)
	}

	if caller.IsSuperAdmin() || caller.ID == target {
		return allow()
	}
	return deny(ReasonTenantMismatch)
}
