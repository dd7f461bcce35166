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

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/horaires-messes/parishauth/internal/identity"
)

const (
	uniqueViolation = "23505"

	constraintEmail      = "parishes_email_key"
	constraintSuperAdmin = "parishes_single_super_admin"
)

const identityColumns = `id, email, password_hash, role, state,
	name, city, region, address, phone, contact_email, website,
	diocese_id, latitude, longitude,
	created_at, updated_at`

// IdentityRepository implements identity.Store on PostgreSQL
type IdentityRepository struct {
	db *sql.DB
}

var _ identity.Store = (*IdentityRepository)(nil)

// NewIdentityRepository creates a new identity repository
func NewIdentityRepository(db *sql.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row scanner) (*identity.Identity, error) {
	var i identity.Identity
	var role, state string
	err := row.Scan(
		&i.ID, &i.Email, &i.PasswordHash, &role, &state,
		&i.Profile.Name, &i.Profile.City, &i.Profile.Region, &i.Profile.Address,
		&i.Profile.Phone, &i.Profile.ContactEmail, &i.Profile.Website,
		&i.Profile.DioceseID, &i.Profile.Latitude, &i.Profile.Longitude,
		&i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	i.Role = identity.Role(role)
	i.State = identity.ApprovalState(state)
	return &i, nil
}

func (r *IdentityRepository) findOne(ctx context.Context, where string, args ...any) (*identity.Identity, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM parishes WHERE `+where, args...)
	i, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, identity.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return i, nil
}

// FindByEmail retrieves an identity by its login email
func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	return r.findOne(ctx, `email = $1`, email)
}

// FindByID retrieves an identity by ID
func (r *IdentityRepository) FindByID(ctx context.Context, id int64) (*identity.Identity, error) {
	return r.findOne(ctx, `id = $1`, id)
}

// FindSuperAdmin retrieves the super admin identity
func (r *IdentityRepository) FindSuperAdmin(ctx context.Context) (*identity.Identity, error) {
	return r.findOne(ctx, `role = $1 LIMIT 1`, string(identity.RoleSuperAdmin))
}

// Insert stores a new identity and fills in its ID and timestamps
func (r *IdentityRepository) Insert(ctx context.Context, i *identity.Identity) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO parishes (
			email, password_hash, role, state,
			name, city, region, address, phone, contact_email, website,
			diocese_id, latitude, longitude
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at
	`,
		i.Email, i.PasswordHash, string(i.Role), string(i.State),
		i.Profile.Name, i.Profile.City, i.Profile.Region, i.Profile.Address,
		i.Profile.Phone, i.Profile.ContactEmail, i.Profile.Website,
		i.Profile.DioceseID, i.Profile.Latitude, i.Profile.Longitude,
	).Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to insert identity: %w", err)
	}
	return nil
}

// Update replaces the login and profile fields of an identity.
// Role and state are left alone; state only moves through Approve and DeletePending.
func (r *IdentityRepository) Update(ctx context.Context, i *identity.Identity) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE parishes SET
			email = $2, password_hash = $3,
			name = $4, city = $5, region = $6, address = $7,
			phone = $8, contact_email = $9, website = $10,
			diocese_id = $11, latitude = $12, longitude = $13,
			updated_at = NOW()
		WHERE id = $1
		RETURNING state, updated_at
	`,
		i.ID, i.Email, i.PasswordHash,
		i.Profile.Name, i.Profile.City, i.Profile.Region, i.Profile.Address,
		i.Profile.Phone, i.Profile.ContactEmail, i.Profile.Website,
		i.Profile.DioceseID, i.Profile.Latitude, i.Profile.Longitude,
	).Scan(&i.State, &i.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return identity.ErrIdentityNotFound
		}
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to update identity: %w", err)
	}
	return nil
}

// pendingTenant matches a registration that can still be approved or rejected
const pendingTenant = `id = $1 AND state = 'pending' AND role = 'tenant_admin'`

// Approve moves a pending tenant to approved in a single conditional write
func (r *IdentityRepository) Approve(ctx context.Context, id int64) (*identity.Identity, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE parishes SET state = 'approved', updated_at = NOW()
		WHERE `+pendingTenant+`
		RETURNING `+identityColumns, id)
	i, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, identity.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to approve identity: %w", err)
	}
	return i, nil
}

// DeletePending removes a pending tenant in a single conditional write and returns the removed row
func (r *IdentityRepository) DeletePending(ctx context.Context, id int64) (*identity.Identity, error) {
	row := r.db.QueryRowContext(ctx, `DELETE FROM parishes WHERE `+pendingTenant+` RETURNING `+identityColumns, id)
	i, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, identity.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to delete pending identity: %w", err)
	}
	return i, nil
}

// Delete removes an identity permanently
func (r *IdentityRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM parishes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	if n == 0 {
		return identity.ErrIdentityNotFound
	}
	return nil
}

// List returns identities matching filter, newest first
func (r *IdentityRepository) List(ctx context.Context, filter identity.ListFilter) ([]*identity.Identity, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Role != "" {
		args = append(args, string(filter.Role))
		conds = append(conds, "role = $"+strconv.Itoa(len(args)))
	}
	if filter.State != "" {
		args = append(args, string(filter.State))
		conds = append(conds, "state = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + identityColumns + ` FROM parishes`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	defer rows.Close()

	var out []*identity.Identity
	for rows.Next() {
		i, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		out = append(out, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	return out, nil
}

// mapUniqueViolation translates unique constraint errors into domain errors, or returns nil
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	if pgErr.ConstraintName == constraintSuperAdmin {
		return identity.ErrSuperAdminExists
	}
	return identity.ErrEmailAlreadyExists
}
