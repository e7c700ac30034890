package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bonds-app/bonds/internal/apperr"
	"github.com/bonds-app/bonds/internal/model"
	"github.com/bonds-app/bonds/internal/repository"
	"github.com/bonds-app/bonds/internal/secret"
	"github.com/bonds-app/bonds/internal/validation"
)

// SignupPayload rides along on a signup verification record so no user row
// exists until verification succeeds. The password arrives here already
// hashed.
type SignupPayload struct {
	Name         string
	PasswordHash string
}

// RequestResult is returned to the client after a code or link was issued.
type RequestResult struct {
	Email     string
	ExpiresAt time.Time
}

// VerificationConfig carries the tunables of the verification flows.
type VerificationConfig struct {
	OTPExpiry   time.Duration
	LinkExpiry  time.Duration
	MaxAttempts int
	RateQuota   int
	RateWindow  time.Duration
}

// VerificationService orchestrates both verification flows: rate check,
// secret generation, hashing, persistence, delivery, and consumption.
// Records move Pending -> Used | Expired | AttemptsExhausted (OTP only).
type VerificationService struct {
	store  repository.VerificationRepository
	hasher *secret.Hasher
	sender Sender
	cfg    VerificationConfig
}

func NewVerificationService(store repository.VerificationRepository, hasher *secret.Hasher, sender Sender, cfg VerificationConfig) *VerificationService {
	return &VerificationService{
		store:  store,
		hasher: hasher,
		sender: sender,
		cfg:    cfg,
	}
}

// checkRateLimit rejects when the email already generated its quota of
// records inside the trailing window. Request-count over a sliding
// query-filter window, nothing fancier.
func (s *VerificationService) checkRateLimit(email string) error {
	count, err := s.store.CountByEmailSince(email, time.Now().Add(-s.cfg.RateWindow))
	if err != nil {
		return apperr.Internal(err)
	}
	if count >= s.cfg.RateQuota {
		return apperr.RateLimited("Too many verification requests. Please wait a few minutes and try again.")
	}
	return nil
}

// RequestOTP issues a fresh 6-digit code for the email. Any outstanding
// records for the email are invalidated in the same transaction that stores
// the new one, so at most one secret is ever active. A non-nil payload makes
// this a signup verification.
func (s *VerificationService) RequestOTP(ctx context.Context, email, name string, payload *SignupPayload) (*RequestResult, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	if err := s.checkRateLimit(email); err != nil {
		return nil, err
	}

	code, err := secret.GenerateOTP()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	hash, err := s.hasher.Hash(code)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	rec := &model.Verification{
		Email:      email,
		SecretHash: hash,
		Kind:       model.KindLogin,
		Channel:    model.ChannelOTP,
		ExpiresAt:  time.Now().Add(s.cfg.OTPExpiry),
	}
	if payload != nil {
		rec.Kind = model.KindSignup
		rec.PendingName = &payload.Name
		rec.PendingPasswordHash = &payload.PasswordHash
	}

	if err := s.store.CreateReplacing(rec); err != nil {
		return nil, apperr.Internal(err)
	}

	// Fire-and-forget: a failed send never fails the request. The code is
	// already persisted and the sender logs it on its fallback path.
	go func() {
		if err := s.sender.SendOTPEmail(email, name, code, rec.ExpiresAt); err != nil {
			slog.Error("otp email delivery failed", "error", err, "email", email)
		}
	}()

	slog.Info("otp issued", "email", email, "kind", rec.Kind, "expires_at", rec.ExpiresAt)
	return &RequestResult{Email: email, ExpiresAt: rec.ExpiresAt}, nil
}

// VerifyOTP consumes the active record for the email when the presented code
// matches its hash. A wrong code burns one attempt; the attempts cap is what
// protects the small 6-digit space. Only OTP-channel records are considered,
// so a link token cannot be consumed here.
func (s *VerificationService) VerifyOTP(ctx context.Context, email, code string) (*model.Verification, error) {
	email = validation.NormalizeEmail(email)

	rec, err := s.store.ActiveByEmail(email, model.ChannelOTP)
	if err == repository.ErrVerificationNotFound {
		return nil, apperr.NotFoundOrExpired("Code not found or expired. Please request a new one.")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if !rec.IsValid(s.cfg.MaxAttempts) {
		return nil, apperr.TooManyAttempts("Too many incorrect attempts. Please request a new code.")
	}

	if !s.hasher.Verify(code, rec.SecretHash) {
		attempts, err := s.store.IncrementAttempts(rec.ID)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		remaining := s.cfg.MaxAttempts - attempts
		if remaining <= 0 {
			return nil, apperr.TooManyAttempts("Too many incorrect attempts. Please request a new code.")
		}
		return nil, apperr.Validation(fmt.Sprintf("Incorrect code. %d attempt(s) remaining.", remaining))
	}

	consumed, err := s.store.MarkUsed(rec.ID)
	if err == repository.ErrVerificationNotFound {
		// Lost the consume race to a concurrent request.
		return nil, apperr.NotFoundOrExpired("Code not found or expired. Please request a new one.")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	slog.Info("otp verified", "email", email, "kind", consumed.Kind)
	return consumed, nil
}

// RequestMagicLink issues a single-use opaque link token for the email.
func (s *VerificationService) RequestMagicLink(ctx context.Context, email, kind string, payload *SignupPayload) (*RequestResult, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	switch kind {
	case model.KindSignup, model.KindLogin, model.KindPasswordReset:
	default:
		return nil, apperr.Validation("Unknown verification kind.")
	}
	if kind == model.KindSignup && payload == nil {
		return nil, apperr.Validation("Signup requires a name and password.")
	}

	if err := s.checkRateLimit(email); err != nil {
		return nil, err
	}

	token, err := secret.GenerateLinkToken()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	hash, err := s.hasher.Hash(token)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	rec := &model.Verification{
		Email:      email,
		SecretHash: hash,
		Kind:       kind,
		Channel:    model.ChannelLink,
		ExpiresAt:  time.Now().Add(s.cfg.LinkExpiry),
	}
	if payload != nil {
		rec.PendingName = &payload.Name
		rec.PendingPasswordHash = &payload.PasswordHash
	}

	if err := s.store.CreateReplacing(rec); err != nil {
		return nil, apperr.Internal(err)
	}

	go func() {
		if err := s.sender.SendMagicLinkEmail(email, kind, token); err != nil {
			slog.Error("magic link delivery failed", "error", err, "email", email, "kind", kind)
		}
	}()

	slog.Info("magic link issued", "email", email, "kind", kind, "expires_at", rec.ExpiresAt)
	return &RequestResult{Email: email, ExpiresAt: rec.ExpiresAt}, nil
}

// VerifyMagicLink locates the record matching the presented token by hashing
// it against every active link record. The token is the only correlation key
// and is never stored in plaintext, so a linear scan is the deliberate
// trade-off; outstanding links number at most a handful.
func (s *VerificationService) VerifyMagicLink(ctx context.Context, token string) (*model.Verification, error) {
	if token == "" {
		return nil, apperr.NotFoundOrExpired("Invalid or expired link.")
	}

	recs, err := s.store.AllActive()
	if err != nil {
		return nil, apperr.Internal(err)
	}

	for i := range recs {
		rec := &recs[i]
		if rec.Channel != model.ChannelLink {
			continue
		}
		if !s.hasher.Verify(token, rec.SecretHash) {
			continue
		}

		consumed, err := s.store.MarkUsed(rec.ID)
		if err == repository.ErrVerificationNotFound {
			return nil, apperr.NotFoundOrExpired("Invalid or expired link.")
		}
		if err != nil {
			return nil, apperr.Internal(err)
		}

		slog.Info("magic link verified", "email", consumed.Email, "kind", consumed.Kind)
		return consumed, nil
	}

	return nil, apperr.NotFoundOrExpired("Invalid or expired link.")
}

// ResendOTP replaces the outstanding record with a fresh code, carrying over
// the kind and any signup payload. Replacement resets the attempt counter.
func (s *VerificationService) ResendOTP(ctx context.Context, email, name string) (*RequestResult, error) {
	email = validation.NormalizeEmail(email)

	rec, err := s.store.ActiveByEmail(email, model.ChannelOTP)
	if err != nil && err != repository.ErrVerificationNotFound {
		return nil, apperr.Internal(err)
	}

	var payload *SignupPayload
	if rec != nil && rec.Kind == model.KindSignup && rec.PendingName != nil && rec.PendingPasswordHash != nil {
		payload = &SignupPayload{Name: *rec.PendingName, PasswordHash: *rec.PendingPasswordHash}
		if name == "" {
			name = *rec.PendingName
		}
	}

	return s.RequestOTP(ctx, email, name, payload)
}
