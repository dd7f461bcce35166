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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates Argon2id hashing and verification.
// Scope: Unit Test
// Security: Password storage
// Expected: Round trip succeeds, wrong password fails, equal inputs hash differently.
// Test Case ID: IDN-PWD-01
func TestPasswordHasher_RoundTrip(t *testing.T) {
	h := newTestHasher()

	a, err := h.Hash("pw1")
	require.NoError(t, err)
	b, err := h.Hash("pw1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "$argon2id$v=19$m=1024,t=1,p=1$"))
	assert.NotEqual(t, a, b, "salt must be random per hash")

	assert.True(t, h.Verify("pw1", a))
	assert.True(t, h.Verify("pw1", b))
	assert.False(t, h.Verify("pw2", a))
	assert.False(t, h.Verify("", a))
}

// TestPurpose: Validates that hashes produced with other parameters still verify.
// Scope: Unit Test
// Expected: Parameters are read from the encoded hash, not the hasher.
// Test Case ID: IDN-PWD-02
func TestPasswordHasher_VerifyForeignParameters(t *testing.T) {
	old := NewPasswordHasher(2048, 2, 2, 8, 16)
	encoded, err := old.Hash("rotate-me")
	require.NoError(t, err)

	assert.True(t, newTestHasher().Verify("rotate-me", encoded))
}

// TestPurpose: Validates that malformed hashes never verify and never panic.
// Scope: Unit Test
// Security: Fail closed on corrupted storage
// Expected: false for every malformed input.
// Test Case ID: IDN-PWD-03
func TestPasswordHasher_VerifyMalformed(t *testing.T) {
	h := newTestHasher()
	valid, err := h.Hash("pw1")
	require.NoError(t, err)
	parts := strings.Split(valid, "$")

	tests := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"plaintext", "pw1"},
		{"bcrypt", "$2b$12$abcdefghijklmnopqrstuuABCDEFGHIJKLMNOPQRSTUVWXYZ01234"},
		{"argon2i", strings.Replace(valid, "argon2id", "argon2i", 1)},
		{"wrong version", strings.Replace(valid, "v=19", "v=16", 1)},
		{"garbled params", strings.Join([]string{"", parts[1], parts[2], "m=x,t=1,p=1", parts[4], parts[5]}, "$")},
		{"zero memory", strings.Join([]string{"", parts[1], parts[2], "m=0,t=1,p=1", parts[4], parts[5]}, "$")},
		{"huge memory", strings.Join([]string{"", parts[1], parts[2], "m=4294967295,t=1,p=1", parts[4], parts[5]}, "$")},
		{"huge iterations", strings.Join([]string{"", parts[1], parts[2], "m=1024,t=9999,p=1", parts[4], parts[5]}, "$")},
		{"bad salt", strings.Join([]string{"", parts[1], parts[2], parts[3], "!!!", parts[5]}, "$")},
		{"empty hash", strings.Join([]string{"", parts[1], parts[2], parts[3], parts[4], ""}, "$")},
		{"truncated", strings.Join(parts[:5], "$")},
		{"extra segment", valid + "$extra"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, h.Verify("pw1", tt.encoded))
			})
		})
	}
}
