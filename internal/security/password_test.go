package security_test

import (
	"testing"

	"github.com/taskforge/taskforge/internal/security"
)

func TestHashPasswordNeverStoresPlaintext(t *testing.T) {
	plain := "pw12345678"

	hash, err := security.HashPassword(plain)

	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}

	if hash == plain {
		t.Fatalf("hash must not equal the plaintext")
	}

	if !security.VerifyPassword(hash, plain) {
		t.Fatalf("verify should succeed for the original plaintext")
	}

	if security.VerifyPassword(hash, "pw12345679") {
		t.Fatalf("verify should fail for a different password")
	}
}

func TestHashPasswordSaltsEachCall(t *testing.T) {
	h1, err := security.HashPassword("pw12345678")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}

	h2, err := security.HashPassword("pw12345678")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}

	if h1 == h2 {
		t.Fatalf("two hashes of the same password should differ via their salts")
	}
}

func TestVerifyPasswordFailsClosedOnMalformedHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{name: "empty", hash: ""},
		{name: "garbage", hash: "not-a-bcrypt-hash"},
		{name: "truncated", hash: "$2a$10$short"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if security.VerifyPassword(tc.hash, "pw12345678") {
				t.Fatalf("malformed hash %q must verify as false", tc.hash)
			}
		})
	}
}
