package secret

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher one-way hashes secrets before they are persisted. A 6-digit OTP
// space is small, so the real protection of the OTP flow is the attempts cap
// plus expiry; bcrypt just makes offline brute force of a leaked table
// expensive.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given bcrypt cost. Pass 0 for the
// default cost; tests pass bcrypt.MinCost.
func NewHasher(cost int) *Hasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify compares a presented secret against a stored hash. Never raw string
// equality.
func (h *Hasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
