// Package secret generates and hashes one-time secrets: 6-digit OTP codes and
// opaque magic-link tokens.
package secret

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
)

const (
	otpMin = 100000
	otpMax = 999999

	linkTokenBytes = 32
)

// GenerateOTP returns a 6-digit numeric code drawn uniformly from
// [100000, 999999]. Fixed width, so no leading-zero ambiguity.
func GenerateOTP() (string, error) {
	span := uint64(otpMax - otpMin + 1)

	// Rejection sampling to keep the draw uniform.
	limit := (1 << 63) / span * span
	for {
		var buf [8]byte
		_, err := rand.Read(buf[:])
		if err != nil {
			return "", err
		}
		n := binary.BigEndian.Uint64(buf[:]) >> 1
		if n >= limit {
			continue
		}
		code := otpMin + int(n%span)
		return formatOTP(code), nil
	}
}

func formatOTP(code int) string {
	digits := make([]byte, 6)
	for i := 5; i >= 0; i-- {
		digits[i] = byte('0' + code%10)
		code /= 10
	}
	return string(digits)
}

// GenerateLinkToken returns a cryptographically random 32-byte token,
// hex-encoded to 64 characters. It is used as a bearer credential in a URL
// query parameter, so it must be effectively unguessable.
func GenerateLinkToken() (string, error) {
	buf := make([]byte, linkTokenBytes)
	_, err := rand.Read(buf)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
