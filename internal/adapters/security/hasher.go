// Package security implements the credential and token primitives behind the
// application-layer ports.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// hashScheme tags the storage format of a password hash. Three generations
// coexist so credential stores migrate without downtime: verification
// transparently handles all three while new hashes always use the current
// scheme. There is no rehash-on-login; migration happens via re-registration.
type hashScheme int

const (
	schemeLegacyDigest hashScheme = iota
	schemeLegacyBcrypt
	schemeArgon2id
)

const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 2
	argonKeyLen  = 32
	argonSaltLen = 16
)

// MultiSchemeHasher hashes with argon2id and verifies against all three
// historical schemes, selected by inspecting the stored hash's shape.
type MultiSchemeHasher struct{}

func NewMultiSchemeHasher() *MultiSchemeHasher {
	return &MultiSchemeHasher{}
}

// Hash produces an argon2id hash in the standard encoded form.
func (h *MultiSchemeHasher) Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	digest := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	)
	return encoded, nil
}

// Verify checks password against storedHash under whichever scheme the hash
// shape indicates. Each branch runs its full comparison; no early exits
// beyond what the underlying primitive performs.
func (h *MultiSchemeHasher) Verify(password, storedHash string) bool {
	switch classifyHash(storedHash) {
	case schemeLegacyDigest:
		sum := sha256.Sum256([]byte(password))
		computed := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
	case schemeLegacyBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password)) == nil
	default:
		return verifyArgon2id(password, storedHash)
	}
}

// classifyHash selects the verification scheme from the stored hash alone.
func classifyHash(storedHash string) hashScheme {
	if len(storedHash) == 64 && isLowerHex(storedHash) {
		return schemeLegacyDigest
	}
	if strings.HasPrefix(storedHash, "$2a$") ||
		strings.HasPrefix(storedHash, "$2b$") ||
		strings.HasPrefix(storedHash, "$2y$") {
		return schemeLegacyBcrypt
	}
	return schemeArgon2id
}

func isLowerHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

func verifyArgon2id(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	// Expected: "", "argon2id", "v=19", "m=...,t=...,p=...", salt, digest.
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}
	var memory, timeCost uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, timeCost, memory, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
