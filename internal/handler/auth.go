package handler

import (
	"errors"
	"net/http"

	"github.com/bonds-app/bonds/internal/apperr"
	"github.com/bonds-app/bonds/internal/config"
	"github.com/bonds-app/bonds/internal/ctxkeys"
	"github.com/bonds-app/bonds/internal/model"
	"github.com/bonds-app/bonds/internal/repository"
	"github.com/bonds-app/bonds/internal/service"
)

type authHandler struct {
	auth         *service.AuthService
	verification *service.VerificationService
	sessions     *service.SessionService
	users        repository.UserRepository
	isProduction bool
}

func NewAuthHandler(auth *service.AuthService, verification *service.VerificationService, sessions *service.SessionService, users repository.UserRepository, cfg *config.Config) *authHandler {
	return &authHandler{
		auth:         auth,
		verification: verification,
		sessions:     sessions,
		users:        users,
		isProduction: cfg.IsProduction(),
	}
}

// Signup issues a signup OTP. No account exists until the code is verified.
func (h *authHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.isProduction)
		return
	}

	result, err := h.auth.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondError(w, r, err, h.isProduction)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message":     "Verification code sent",
		"maskedEmail": maskEmail(result.Email),
		"expiresAt":   result.ExpiresAt,
	})
}

// VerifyOTP consumes the code, creates the account for signup flows, and
// starts a session.
func (h *authHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.isProduction)
		return
	}
	if req.OTP == "" {
		respondError(w, r, apperr.Validation("Verification code is required"), h.isProduction)
		return
	}

	rec, err := h.verification.VerifyOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		respondError(w, r, err, h.isProduction)
		return
	}

	user, err := h.auth.ResolveVerifiedUser(rec)
	if err != nil {
		respondError(w, r, err, h.isProduction)
		return
	}

	h.startSession(w, r, user, http.StatusCreated)
}

func (h *authHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.isProduction)
		return
	}
	if req.Email == "" {
		respondError(w, r, apperr.Validation("Email is required"), h.isProduction)
		return
	}

	result, err := h.verification.ResendOTP(r.Context(), req.Email, req.Name)
	if err != nil {
		respondError(w, r, err, h.isProduction)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message":     "Verification code sent",
		"maskedEmail": maskEmail(result.Email),
		"expiresAt":   result.ExpiresAt,
	})
}

func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.isProduction)
		return
	}

	user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, err, h.isProduction)
		return
	}

	h.startSession(w, r, user, http.StatusOK)
}

func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookies(w)
	respondJSON(w, http.StatusOK, map[string]any{"message": "Logged out"})
}

// Me returns the authenticated identity attached by the session middleware.
func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{"user": user})
}

// Refresh re-issues the token pair from a valid refresh token.
func (h *authHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(service.RefreshTokenCookie)
	if err != nil || cookie.Value == "" {
		respondError(w, r, apperr.Unauthorized("Unauthorized"), h.isProduction)
		return
	}

	userID, err := h.sessions.VerifyRefresh(cookie.Value)
	if err != nil {
		respondError(w, r, err, h.isProduction)
		return
	}

	user, err := h.users.ByID(userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		respondError(w, r, apperr.Unauthorized("Unauthorized"), h.isProduction)
		return
	}
	if err != nil {
		respondError(w, r, apperr.Internal(err), h.isProduction)
		return
	}
	if !user.IsActive {
		respondError(w, r, apperr.Unauthorized("Unauthorized"), h.isProduction)
		return
	}

	h.startSession(w, r, user, http.StatusOK)
}

// RequestMagicLink issues a link token for signup, login, or password reset.
func (h *authHandler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Kind     string `json:"kind"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.isProduction)
		return
	}

	var result *service.RequestResult
	var err error
	switch req.Kind {
	case model.KindSignup:
		result, err = h.auth.SignupMagicLink(r.Context(), req.Name, req.Email, req.Password)
	case model.KindPasswordReset:
		result, err = h.auth.RequestPasswordReset(r.Context(), req.Email)
	default:
		result, err = h.verification.RequestMagicLink(r.Context(), req.Email, model.KindLogin, nil)
	}
	if err != nil {
		respondError(w, r, err, h.isProduction)
		return
	}

	payload := map[string]any{
		"message":     "Check your inbox for a sign-in link",
		"maskedEmail": maskEmail(result.Email),
	}
	if !result.ExpiresAt.IsZero() {
		payload["expiresAt"] = result.ExpiresAt
	}
	respondJSON(w, http.StatusOK, payload)
}

// VerifyMagicLink consumes a signup or login link token and starts a session.
func (h *authHandler) VerifyMagicLink(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	rec, err := h.verification.VerifyMagicLink(r.Context(), token)
	if err != nil {
		respondError(w, r, err, h.isProduction)
		return
	}

	// Reset tokens belong to the reset-password endpoint; a consumed one
	// cannot start a session.
	if rec.Kind == model.KindPasswordReset {
		respondError(w, r, apperr.NotFoundOrExpired("Invalid or expired link."), h.isProduction)
		return
	}

	user, err := h.auth.ResolveVerifiedUser(rec)
	if err != nil {
		respondError(w, r, err, h.isProduction)
		return
	}

	status := http.StatusOK
	if rec.Kind == model.KindSignup {
		status = http.StatusCreated
	}
	h.startSession(w, r, user, status)
}

func (h *authHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.isProduction)
		return
	}

	if err := h.auth.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		respondError(w, r, err, h.isProduction)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"message": "Password updated. You can log in now."})
}

// startSession mints the token pair, sets both cookies, and echoes the access
// token in the body for clients that cannot rely on cookies.
func (h *authHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User, status int) {
	pair, err := h.sessions.Issue(user)
	if err != nil {
		respondError(w, r, apperr.Internal(err), h.isProduction)
		return
	}

	h.sessions.SetCookies(w, pair)

	// Never serialize the hash, even accidentally.
	user.PasswordHash = nil

	respondJSON(w, status, map[string]any{
		"user":  user,
		"token": pair.AccessToken,
	})
}
