package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bonds-app/bonds/internal/apperr"
	"github.com/bonds-app/bonds/internal/model"
	"github.com/bonds-app/bonds/internal/repository"
	"github.com/bonds-app/bonds/internal/secret"
	"github.com/bonds-app/bonds/internal/validation"
)

// AuthService glues the verification flows to the user directory: signup
// orchestration, password login, and completing a verified flow into a user.
type AuthService struct {
	users        repository.UserRepository
	verification *VerificationService
	hasher       *secret.Hasher
}

func NewAuthService(users repository.UserRepository, verification *VerificationService, hasher *secret.Hasher) *AuthService {
	return &AuthService{
		users:        users,
		verification: verification,
		hasher:       hasher,
	}
}

// Signup validates the input and issues a signup OTP. The user row is not
// created here; the display name and pre-hashed password ride on the
// verification record until the code is confirmed.
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (*RequestResult, error) {
	email = validation.NormalizeEmail(email)

	if err := validation.ValidateName(name); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	_, err := s.users.ByEmail(email)
	if err == nil {
		return nil, apperr.Validation("An account with this email already exists.")
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperr.Internal(err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return s.verification.RequestOTP(ctx, email, name, &SignupPayload{
		Name:         name,
		PasswordHash: passwordHash,
	})
}

// SignupMagicLink is the link-based variant of Signup.
func (s *AuthService) SignupMagicLink(ctx context.Context, name, email, password string) (*RequestResult, error) {
	email = validation.NormalizeEmail(email)

	if err := validation.ValidateName(name); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	_, err := s.users.ByEmail(email)
	if err == nil {
		return nil, apperr.Validation("An account with this email already exists.")
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperr.Internal(err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return s.verification.RequestMagicLink(ctx, email, model.KindSignup, &SignupPayload{
		Name:         name,
		PasswordHash: passwordHash,
	})
}

// ResolveVerifiedUser turns a consumed verification record into the user it
// authenticates. For signup kinds the account is created here, from the
// record's payload, without re-prompting the password.
func (s *AuthService) ResolveVerifiedUser(rec *model.Verification) (*model.User, error) {
	switch rec.Kind {
	case model.KindSignup:
		return s.completeSignup(rec)
	case model.KindLogin, model.KindPasswordReset:
		user, err := s.users.ByEmail(rec.Email)
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperr.Unauthorized("Unauthorized")
		}
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if !user.IsActive {
			return nil, apperr.Unauthorized("Account is deactivated")
		}
		return user, nil
	default:
		return nil, apperr.Internal(errors.New("unknown verification kind: " + rec.Kind))
	}
}

func (s *AuthService) completeSignup(rec *model.Verification) (*model.User, error) {
	if rec.PendingName == nil || rec.PendingPasswordHash == nil {
		return nil, apperr.Internal(errors.New("signup record missing pending payload"))
	}

	user := &model.User{
		Email:        rec.Email,
		Name:         *rec.PendingName,
		PasswordHash: rec.PendingPasswordHash,
		Role:         model.RoleMember,
		IsActive:     true,
		IsVerified:   true,
	}

	err := s.users.Create(user)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		// Someone completed signup for this email between request and
		// verify. Treat the existing account as the authenticated one.
		existing, lookupErr := s.users.ByEmail(rec.Email)
		if lookupErr != nil {
			return nil, apperr.Internal(lookupErr)
		}
		return existing, nil
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	slog.Info("account created", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// Login authenticates with email and password. All credential failures
// collapse to one message so callers cannot probe which emails exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = validation.NormalizeEmail(email)

	user, err := s.users.ByEmail(email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperr.Unauthorized("Invalid email or password")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if !user.HasPassword() || !s.hasher.Verify(password, *user.PasswordHash) {
		return nil, apperr.Unauthorized("Invalid email or password")
	}

	if !user.IsVerified {
		return nil, apperr.Unauthorized("Email not verified")
	}
	if !user.IsActive {
		return nil, apperr.Unauthorized("Account is deactivated")
	}

	return user, nil
}

// RequestPasswordReset issues a reset link. Unknown emails succeed silently
// to prevent enumeration.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*RequestResult, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	_, err := s.users.ByEmail(email)
	if errors.Is(err, repository.ErrUserNotFound) {
		slog.Info("password reset requested for unknown email", "email", email)
		return &RequestResult{Email: email}, nil
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return s.verification.RequestMagicLink(ctx, email, model.KindPasswordReset, nil)
}

// ResetPassword consumes a password_reset link token and sets the new
// password for the account it belongs to.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validation.ValidatePassword(newPassword); err != nil {
		return apperr.Validation(err.Error())
	}

	rec, err := s.verification.VerifyMagicLink(ctx, token)
	if err != nil {
		return err
	}
	if rec.Kind != model.KindPasswordReset {
		return apperr.NotFoundOrExpired("Invalid or expired link.")
	}

	user, err := s.users.ByEmail(rec.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return apperr.NotFoundOrExpired("Invalid or expired link.")
	}
	if err != nil {
		return apperr.Internal(err)
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperr.Internal(err)
	}

	if err := s.users.SetPassword(user.ID, passwordHash); err != nil {
		return apperr.Internal(err)
	}

	slog.Info("password reset completed", "user_id", user.ID)
	return nil
}
