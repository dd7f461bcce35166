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

//go:build integration
// +build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/horaires-messes/parishauth/internal/identity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	cfg := Config{
		URL:          os.Getenv("DATABASE_URL"),
		Host:         "localhost",
		Port:         "5432",
		User:         "parishauth",
		Password:     "parishauth_dev_password",
		Database:     "parishauth",
		SSLMode:      "disable",
		MaxOpenConns: 10,
		MaxIdleConns: 2,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := New(ctx, cfg)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to database: %v", err)
	}
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx, InitialSchema))
	return db
}

// TestPurpose: Validates that concurrent inserts of the same email leave exactly one row.
// Scope: Database Integration Test
// Security: Race-free email uniqueness (no check-then-insert)
// Expected: One insert succeeds, all others return ErrEmailAlreadyExists.
// Test Case ID: STO-INT-01
// Metadata:
//   - Category: Identity
//   - Priority: High
//   - Tags: concurrency, uniqueness
func TestIdentityRepository_ConcurrentInsert(t *testing.T) {
	db := openTestDB(t)
	repo := NewIdentityRepository(db.SQL())
	ctx := context.Background()

	email := fmt.Sprintf("race-%d@x.sn", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = db.Pool().Exec(context.Background(), "DELETE FROM parishes WHERE email = $1", email)
	})

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.Insert(ctx, &identity.Identity{
				Email:        email,
				PasswordHash: "hash",
				Role:         identity.RoleTenantAdmin,
				State:        identity.StatePending,
				Profile:      identity.Profile{Name: "Race", City: "Dakar"},
			})
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, identity.ErrEmailAlreadyExists)
	}
	assert.Equal(t, 1, ok)
}

// TestPurpose: Validates the full row lifecycle against a real database.
// Scope: Database Integration Test
// Expected: Inserted rows can be found, updated, listed and deleted.
// Test Case ID: STO-INT-02
func TestIdentityRepository_Lifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewIdentityRepository(db.SQL())
	ctx := context.Background()

	i := &identity.Identity{
		Email:        fmt.Sprintf("life-%d@x.sn", time.Now().UnixNano()),
		PasswordHash: "hash",
		Role:         identity.RoleTenantAdmin,
		State:        identity.StatePending,
		Profile:      identity.Profile{Name: "Sainte-Anne", City: "Ziguinchor"},
	}
	require.NoError(t, repo.Insert(ctx, i))
	require.NotZero(t, i.ID)
	t.Cleanup(func() { _ = repo.Delete(context.Background(), i.ID) })

	got, err := repo.FindByEmail(ctx, i.Email)
	require.NoError(t, err)
	assert.Equal(t, i.ID, got.ID)
	assert.Equal(t, identity.StatePending, got.State)

	pending, err := repo.List(ctx, identity.ListFilter{Role: identity.RoleTenantAdmin, State: identity.StatePending})
	require.NoError(t, err)
	var found bool
	for _, p := range pending {
		found = found || p.ID == i.ID
	}
	assert.True(t, found)

	approved, err := repo.Approve(ctx, i.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.StateApproved, approved.State)

	// Already approved: both transitions must now miss.
	_, err = repo.Approve(ctx, i.ID)
	assert.ErrorIs(t, err, identity.ErrIdentityNotFound)
	_, err = repo.DeletePending(ctx, i.ID)
	assert.ErrorIs(t, err, identity.ErrIdentityNotFound)

	got.Profile.City = "Oussouye"
	require.NoError(t, repo.Update(ctx, got))

	got, err = repo.FindByID(ctx, i.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.StateApproved, got.State)
	assert.Equal(t, "Oussouye", got.Profile.City)

	require.NoError(t, repo.Delete(ctx, i.ID))
	_, err = repo.FindByID(ctx, i.ID)
	assert.ErrorIs(t, err, identity.ErrIdentityNotFound)
}
