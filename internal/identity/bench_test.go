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
	"testing"
)

func BenchmarkPasswordHasher_Hash(b *testing.B) {
	// RFC 9106 second recommended option
	hasher := NewPasswordHasher(64*1024, 3, 4, 16, 32)
	password := "correct-horse-battery-staple"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := hasher.Hash(password); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPasswordHasher_Verify(b *testing.B) {
	hasher := NewPasswordHasher(64*1024, 3, 4, 16, 32)
	password := "correct-horse-battery-staple"
	hash, err := hasher.Hash(password)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !hasher.Verify(password, hash) {
			b.Fatal("verify failed")
		}
	}
}

func BenchmarkPasswordHasher_VerifyMalformed(b *testing.B) {
	hasher := NewPasswordHasher(64*1024, 3, 4, 16, 32)

	for i := 0; i < b.N; i++ {
		if hasher.Verify("x", "$argon2id$v=19$m=bogus") {
			b.Fatal("malformed hash verified")
		}
	}
}
