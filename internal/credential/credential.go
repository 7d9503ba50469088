// Package credential derives and verifies password credentials.
//
// A credential is stored as (salt, secret) where
//
//	secret = PBKDF2-SHA256(password, salt‖pepper, iterations)
//
// and pepper is a single random byte that is never persisted. Withholding the
// pepper multiplies offline brute-force cost by 256 while costing the server
// at most 256 extra KDF evaluations per verification. This is a deliberate
// space/verification-cost trade-off, not an error.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"

	"golang.org/x/crypto/pbkdf2"

	dErrors "undertone/pkg/domain-errors"
)

// pepperDomain is the number of candidate values a one-byte pepper can take.
const pepperDomain = 256

// Params configures credential derivation. The zero value is unusable; use
// DefaultParams or build from config.
type Params struct {
	// SecretSize is the byte length of secrets, salts, challenges, and
	// responses.
	SecretSize int
	// Iterations is the PBKDF2 iteration count.
	Iterations int
	// MinPasswordLength is the creation-time password policy.
	MinPasswordLength int
}

// DefaultParams returns the production parameters.
func DefaultParams() Params {
	return Params{SecretSize: 32, Iterations: 10000, MinPasswordLength: 8}
}

// Create derives a fresh credential for password. The returned salt is
// persisted alongside the secret; the pepper byte is generated, folded into
// the derivation, and discarded.
func (p Params) Create(password string) (salt, secret []byte, err error) {
	if len(password) < p.MinPasswordLength {
		return nil, nil, dErrors.New(dErrors.CodeInvalidInput, "PasswordInsecure")
	}

	salt = make([]byte, p.SecretSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "read random salt")
	}

	pepper := make([]byte, 1)
	if _, err := rand.Read(pepper); err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "read random pepper")
	}

	secret = p.derive([]byte(password), append(append(make([]byte, 0, p.SecretSize+1), salt...), pepper[0]))
	return salt, secret, nil
}

// Verify reports whether password matches the stored (salt, secret) pair. It
// recomputes the KDF for every candidate pepper value. The scan always
// completes all 256 candidates and compares each in constant time, so the
// duration does not depend on which pepper was chosen at creation or on
// whether any candidate matched.
func (p Params) Verify(password string, salt, secret []byte) bool {
	if len(salt) == 0 || len(secret) == 0 {
		return false
	}

	combined := make([]byte, len(salt)+1)
	copy(combined, salt)

	match := 0
	for pepper := 0; pepper < pepperDomain; pepper++ {
		combined[len(salt)] = byte(pepper)
		candidate := p.derive([]byte(password), combined)
		match |= subtle.ConstantTimeCompare(candidate, secret)
	}
	return match == 1
}

// DeriveResponse computes the expected answer to a challenge: the KDF of the
// shared secret keyed by the challenge bytes. Used on both sides of the admin
// challenge-response protocol.
func (p Params) DeriveResponse(secret, challenge []byte) []byte {
	return p.derive(secret, challenge)
}

// NewChallenge draws a fresh random challenge.
func (p Params) NewChallenge() ([]byte, error) {
	challenge := make([]byte, p.SecretSize)
	if _, err := rand.Read(challenge); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read random challenge")
	}
	return challenge, nil
}

// NewSecret draws a fresh random shared secret (admin seeding).
func (p Params) NewSecret() ([]byte, error) {
	secret := make([]byte, p.SecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read random secret")
	}
	return secret, nil
}

func (p Params) derive(key, salt []byte) []byte {
	return pbkdf2.Key(key, salt, p.Iterations, p.SecretSize, sha256.New)
}
