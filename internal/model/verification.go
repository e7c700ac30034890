package model

import (
	"time"
)

// Kind determines the downstream action when a verification succeeds.
const (
	KindSignup        = "signup"
	KindLogin         = "login"
	KindPasswordReset = "password_reset"
)

// Channel is the secret format: a 6-digit OTP typed by the user, or an
// opaque link token carried in a URL.
const (
	ChannelOTP  = "otp"
	ChannelLink = "link"
)

// Verification is one pending verification attempt. Only the bcrypt hash of
// the secret is stored; the plaintext exists in the outbound email and nowhere
// else. One table serves both the OTP and magic-link flows.
type Verification struct {
	ID            string     `db:"id"`
	Email         string     `db:"email"`
	SecretHash    string     `db:"secret_hash"`
	Kind          string     `db:"kind"`
	Channel       string     `db:"channel"`
	ExpiresAt     time.Time  `db:"expires_at"`
	UsedAt        *time.Time `db:"used_at"`
	InvalidatedAt *time.Time `db:"invalidated_at"`
	Attempts      int        `db:"attempts"`

	// Signup payload: the user row is not created until verification
	// succeeds, so the display name and pre-hashed password ride along here.
	PendingName         *string `db:"pending_name"`
	PendingPasswordHash *string `db:"pending_password_hash"`

	CreatedAt time.Time `db:"created_at"`
}

func (v *Verification) IsExpired() bool {
	return time.Now().After(v.ExpiresAt)
}

func (v *Verification) IsUsed() bool {
	return v.UsedAt != nil
}

// IsValid reports whether the record can still be consumed. The attempts cap
// only applies to the OTP channel; a link token is unguessable and single-use.
func (v *Verification) IsValid(maxAttempts int) bool {
	if v.IsUsed() || v.IsExpired() || v.InvalidatedAt != nil {
		return false
	}
	if v.Channel == ChannelOTP && v.Attempts >= maxAttempts {
		return false
	}
	return true
}
