package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/bonds-app/bonds/internal/ctxkeys"
	"github.com/bonds-app/bonds/internal/repository"
	"github.com/bonds-app/bonds/internal/service"
)

// Session validates the bearer credential on every request and attaches the
// identity to the context when it checks out. The credential comes from the
// access-token cookie, or an Authorization header for clients that cannot
// use cookies.
//
// Failures never abort the request here; the request stays anonymous and
// RequireAuth rejects it with a generic 401. The specific cause (no token,
// bad signature, expired, unknown user, deactivated account) is only logged.
func Session(sessions *service.SessionService, users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := credentialFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := sessions.VerifyAccess(token)
			if err != nil {
				slog.Debug("session token rejected", "error", err, "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.ByID(userID)
			if err != nil {
				slog.Debug("session user lookup failed", "error", err, "user_id", userID)
				next.ServeHTTP(w, r)
				return
			}

			if !user.IsActive {
				slog.Debug("session rejected for deactivated account", "user_id", userID)
				next.ServeHTTP(w, r)
				return
			}

			// Identity projection only; never carry the hash around.
			user.PasswordHash = nil

			next.ServeHTTP(w, r.WithContext(ctxkeys.WithUser(r.Context(), user)))
		})
	}
}

func credentialFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(service.AccessTokenCookie)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	auth := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return after
	}
	return ""
}

// RequireAuth rejects anonymous requests with a generic 401 body.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.User(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success":false,"error":"Unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	}
}
