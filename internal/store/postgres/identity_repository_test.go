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
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/horaires-messes/parishauth/internal/identity"
)

var columns = []string{
	"id", "email", "password_hash", "role", "state",
	"name", "city", "region", "address", "phone", "contact_email", "website",
	"diocese_id", "latitude", "longitude",
	"created_at", "updated_at",
}

func newMock(t *testing.T) (*IdentityRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewIdentityRepository(db), mock
}

func parishRow(rows *sqlmock.Rows, id int64, email, state string, created time.Time) *sqlmock.Rows {
	return rows.AddRow(id, email, "$argon2id$hash", "tenant_admin", state,
		"Saint-Joseph", "Dakar", "", "", "", "", "", nil, nil, nil, created, created)
}

// TestPurpose: Validates that a unique violation on insert surfaces as a conflict.
// Scope: Unit Test
// Security: Email uniqueness is enforced by the database, not by a racy pre-check
// Expected: 23505 on the email key maps to ErrEmailAlreadyExists, on the super admin index to ErrSuperAdminExists.
// Test Case ID: STO-01
func TestIdentityRepository_Insert_UniqueViolation(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO parishes")).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: constraintEmail})
	err := repo.Insert(ctx, &identity.Identity{Email: "dup@x.sn", Role: identity.RoleTenantAdmin, State: identity.StatePending})
	assert.ErrorIs(t, err, identity.ErrEmailAlreadyExists)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO parishes")).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: constraintSuperAdmin})
	err = repo.Insert(ctx, &identity.Identity{Email: "boss@x.sn", Role: identity.RoleSuperAdmin, State: identity.StateApproved})
	assert.ErrorIs(t, err, identity.ErrSuperAdminExists)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO parishes")).
		WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "parishes_state_check"})
	err = repo.Insert(ctx, &identity.Identity{Email: "x@x.sn", State: identity.StateRejected})
	require.Error(t, err)
	assert.False(t, errors.Is(err, identity.ErrEmailAlreadyExists))

	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPurpose: Validates that insert fills in the generated id and timestamps.
// Scope: Unit Test
// Expected: Identity carries the database-assigned values.
// Test Case ID: STO-02
func TestIdentityRepository_Insert(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	diocese, lat, lon := int64(3), 14.69, -17.44

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO parishes")).
		WithArgs("a@x.sn", "hash", "tenant_admin", "pending", "Saint-Joseph", "Dakar", "", "", "", "", "", int64(3), 14.69, -17.44).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(7), now, now))

	i := &identity.Identity{
		Email:        "a@x.sn",
		PasswordHash: "hash",
		Role:         identity.RoleTenantAdmin,
		State:        identity.StatePending,
		Profile: identity.Profile{
			Name:      "Saint-Joseph",
			City:      "Dakar",
			DioceseID: &diocese,
			Latitude:  &lat,
			Longitude: &lon,
		},
	}
	require.NoError(t, repo.Insert(context.Background(), i))
	assert.Equal(t, int64(7), i.ID)
	assert.Equal(t, now, i.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPurpose: Validates lookups and the not-found mapping.
// Scope: Unit Test
// Expected: Rows are decoded into identities, missing rows yield ErrIdentityNotFound.
// Test Case ID: STO-03
func TestIdentityRepository_Find(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM parishes WHERE email = $1")).
		WithArgs("a@x.sn").
		WillReturnRows(parishRow(sqlmock.NewRows(columns), 7, "a@x.sn", "approved", now))
	i, err := repo.FindByEmail(ctx, "a@x.sn")
	require.NoError(t, err)
	assert.Equal(t, int64(7), i.ID)
	assert.Equal(t, identity.RoleTenantAdmin, i.Role)
	assert.Equal(t, identity.StateApproved, i.State)
	assert.Equal(t, "Dakar", i.Profile.City)
	assert.Nil(t, i.Profile.Latitude)

	mock.ExpectQuery(regexp.QuoteMeta("FROM parishes WHERE id = $1")).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByID(ctx, 99)
	assert.ErrorIs(t, err, identity.ErrIdentityNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("FROM parishes WHERE role = $1 LIMIT 1")).
		WithArgs("super_admin").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.FindSuperAdmin(ctx)
	assert.ErrorIs(t, err, identity.ErrIdentityNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("FROM parishes WHERE id = $1")).
		WithArgs(int64(1)).
		WillReturnError(errors.New("connection reset"))
	_, err = repo.FindByID(ctx, 1)
	require.Error(t, err)
	assert.False(t, errors.Is(err, identity.ErrIdentityNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPurpose: Validates update semantics.
// Scope: Unit Test
// Security: Email uniqueness on credential change; profile edits never write the approval state
// Expected: The statement has no state assignment, the stored state is read back, missing rows yield not found, a taken email yields a conflict.
// Test Case ID: STO-04
func TestIdentityRepository_Update(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()
	i := &identity.Identity{ID: 7, Email: "b@x.sn", State: identity.StatePending}

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE parishes SET")).
		WithArgs(int64(7), "b@x.sn", "", "", "", "", "", "", "", "", nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"state", "updated_at"}).AddRow("approved", time.Now()))
	require.NoError(t, repo.Update(ctx, i))
	assert.False(t, i.UpdatedAt.IsZero())
	assert.Equal(t, identity.StateApproved, i.State, "state comes from the row, not the caller")

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE parishes SET")).WillReturnError(sql.ErrNoRows)
	assert.ErrorIs(t, repo.Update(ctx, i), identity.ErrIdentityNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE parishes SET")).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: constraintEmail})
	assert.ErrorIs(t, repo.Update(ctx, i), identity.ErrEmailAlreadyExists)

	assert.NoError(t, mock.ExpectationsWereMet())

	var sent string
	db, captured, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherFunc(func(_, actual string) error {
		sent = actual
		return nil
	})))
	require.NoError(t, err)
	defer db.Close()
	captured.ExpectQuery("UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"state", "updated_at"}).AddRow("pending", time.Now()))
	require.NoError(t, NewIdentityRepository(db).Update(ctx, i))
	assert.NotRegexp(t, `state\s*=`, sent)
}

// TestPurpose: Validates deletion and its not-found mapping.
// Scope: Unit Test
// Expected: Zero affected rows yields ErrIdentityNotFound.
// Test Case ID: STO-05
func TestIdentityRepository_Delete(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM parishes WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(ctx, 7))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM parishes WHERE id = $1")).
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(ctx, 8), identity.ErrIdentityNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPurpose: Validates filtered listing.
// Scope: Unit Test
// Expected: Filters become positional predicates and rows come back in query order.
// Test Case ID: STO-06
func TestIdentityRepository_List(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rows := sqlmock.NewRows(columns)
	parishRow(rows, 9, "new@x.sn", "pending", now)
	parishRow(rows, 8, "old@x.sn", "pending", now.Add(-time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("FROM parishes WHERE role = $1 AND state = $2 ORDER BY created_at DESC, id DESC")).
		WithArgs("tenant_admin", "pending").
		WillReturnRows(rows)

	out, err := repo.List(ctx, identity.ListFilter{Role: identity.RoleTenantAdmin, State: identity.StatePending})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(9), out[0].ID)
	assert.Equal(t, int64(8), out[1].ID)

	mock.ExpectQuery(regexp.QuoteMeta("FROM parishes ORDER BY created_at DESC, id DESC")).
		WillReturnRows(sqlmock.NewRows(columns))
	out, err = repo.List(ctx, identity.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, out)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPurpose: Validates that approval transitions are single conditional statements.
// Scope: Unit Test
// Security: Concurrent approve/reject cannot both succeed
// Expected: Both statements require a pending tenant row; no matching row yields ErrIdentityNotFound.
// Test Case ID: STO-07
func TestIdentityRepository_PendingTransitions(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE parishes SET state = 'approved', updated_at = NOW() WHERE " + pendingTenant)).
		WithArgs(int64(7)).
		WillReturnRows(parishRow(sqlmock.NewRows(columns), 7, "a@x.sn", "approved", now))
	i, err := repo.Approve(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, identity.StateApproved, i.State)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE " + pendingTenant)).
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.Approve(ctx, 7)
	assert.ErrorIs(t, err, identity.ErrIdentityNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM parishes WHERE " + pendingTenant + " RETURNING")).
		WithArgs(int64(8)).
		WillReturnRows(parishRow(sqlmock.NewRows(columns), 8, "b@x.sn", "pending", now))
	removed, err := repo.DeletePending(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, "b@x.sn", removed.Email)

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM parishes WHERE " + pendingTenant)).
		WithArgs(int64(8)).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.DeletePending(ctx, 8)
	assert.ErrorIs(t, err, identity.ErrIdentityNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfig_ConnString(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "u", Password: "p", Database: "parishauth", SSLMode: "disable", MaxOpenConns: 10, MaxIdleConns: 2}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=parishauth sslmode=disable pool_max_conns=10 pool_min_conns=2", cfg.ConnString())

	cfg.URL = "postgres://u:p@db/parishauth"
	assert.Equal(t, "postgres://u:p@db/parishauth", cfg.ConnString())
}

func TestInitialSchema_Embedded(t *testing.T) {
	assert.Contains(t, InitialSchema, "CREATE TABLE IF NOT EXISTS parishes")
	assert.Contains(t, InitialSchema, constraintEmail)
	assert.Contains(t, InitialSchema, constraintSuperAdmin)
}
