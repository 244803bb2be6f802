package security

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashProducesArgon2id(t *testing.T) {
	t.Parallel()

	h := NewMultiSchemeHasher()
	encoded, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("new hashes must be argon2id, got %q", encoded)
	}
	if !h.Verify("correct horse battery staple", encoded) {
		t.Fatal("round-trip verify failed")
	}
	if h.Verify("wrong password", encoded) {
		t.Fatal("wrong password must not verify")
	}
}

func TestHashSaltsAreUnique(t *testing.T) {
	t.Parallel()

	h := NewMultiSchemeHasher()
	first, err := h.Hash("pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	second, err := h.Hash("pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password must differ by salt")
	}
}

func TestVerifyLegacyDigest(t *testing.T) {
	t.Parallel()

	h := NewMultiSchemeHasher()
	sum := sha256.Sum256([]byte("legacy-password"))
	stored := hex.EncodeToString(sum[:])

	if !h.Verify("legacy-password", stored) {
		t.Fatal("unsalted digest hash should verify")
	}
	if h.Verify("other-password", stored) {
		t.Fatal("wrong password should not verify against digest hash")
	}
}

func TestVerifyLegacyBcrypt(t *testing.T) {
	t.Parallel()

	h := NewMultiSchemeHasher()
	stored, err := bcrypt.GenerateFromPassword([]byte("bcrypt-era-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	if !h.Verify("bcrypt-era-password", string(stored)) {
		t.Fatal("bcrypt hash should verify")
	}
	if h.Verify("not-it", string(stored)) {
		t.Fatal("wrong password should not verify against bcrypt hash")
	}
}

func TestClassifyHash(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		stored string
		want   hashScheme
	}{
		{"sha256 digest", strings.Repeat("ab", 32), schemeLegacyDigest},
		{"uppercase hex is not legacy", strings.Repeat("AB", 32), schemeArgon2id},
		{"short hex is not legacy", "abcdef", schemeArgon2id},
		{"bcrypt 2a", "$2a$10$abcdefghijklmnopqrstuv", schemeLegacyBcrypt},
		{"bcrypt 2b", "$2b$12$abcdefghijklmnopqrstuv", schemeLegacyBcrypt},
		{"bcrypt 2y", "$2y$12$abcdefghijklmnopqrstuv", schemeLegacyBcrypt},
		{"argon2id", "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$ZGlnZXN0", schemeArgon2id},
		{"unknown defaults to argon2id", "plainly not a hash", schemeArgon2id},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := classifyHash(tc.stored); got != tc.want {
				t.Fatalf("classifyHash(%q) = %d, want %d", tc.stored, got, tc.want)
			}
		})
	}
}

func TestVerifyRejectsMalformedArgon2id(t *testing.T) {
	t.Parallel()

	h := NewMultiSchemeHasher()
	for _, stored := range []string{
		"",
		"$argon2id$",
		"$argon2id$v=19$m=65536,t=3,p=2$!!!$ZGlnZXN0",
		"$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$ZGlnZXN0",
	} {
		if h.Verify("anything", stored) {
			t.Fatalf("malformed hash %q must not verify", stored)
		}
	}
}
