// Package cryptox holds the credential hasher. Verifiers are bcrypt hashes:
// salted, adaptive and one-way, so the same password never hashes twice to
// the same string.
package cryptox

import (
	"fmt"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"golang.org/x/crypto/bcrypt"
)

// Hasher turns plaintext secrets into storable verifiers and checks them.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, verifier string) bool
}

// generateFromPassword is a seam for tests.
var generateFromPassword = bcrypt.GenerateFromPassword

// BcryptHasher implements Hasher with golang.org/x/crypto/bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, clamped to bcrypt's
// [MinCost, MaxCost]. Zero means bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	switch {
	case cost == 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns a bcrypt verifier for plaintext. Every failure of the
// primitive, including bcrypt.ErrPasswordTooLong, is reported as
// common.ErrorHashingUnavailable.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	b, err := generateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w: %w", common.ErrorHashingUnavailable, err)
	}
	return string(b), nil
}

// Verify reports whether plaintext matches verifier.
func (h *BcryptHasher) Verify(plaintext, verifier string) bool {
	return bcrypt.CompareHashAndPassword([]byte(verifier), []byte(plaintext)) == nil
}
