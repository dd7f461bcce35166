package token

import (
	"testing"

	"github.com/horaires-messes/parishauth/internal/identity"
)

func BenchmarkIssuer_Issue(b *testing.B) {
	iss, err := NewIssuer(Config{SigningKey: testKey})
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := iss.Issue(7, identity.RoleTenantAdmin); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkIssuer_Verify(b *testing.B) {
	iss, err := NewIssuer(Config{SigningKey: testKey})
	if err != nil {
		b.Fatal(err)
	}
	raw, _, err := iss.Issue(7, identity.RoleTenantAdmin)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := iss.Verify(raw); err != nil {
			b.Fatal(err)
		}
	}
}
