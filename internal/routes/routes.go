package routes

import (
	"net/http"

	"github.com/bonds-app/bonds/internal/app"
	"github.com/bonds-app/bonds/internal/handler"
	"github.com/bonds-app/bonds/internal/middleware"
)

func SetupRoutes(a *app.App) http.Handler {
	auth := handler.NewAuthHandler(a.AuthService, a.VerificationService, a.SessionService, a.UserRepository, a.Cfg)

	mux := http.NewServeMux()

	// Secret-issuing endpoints get the per-IP limiter on top of the
	// per-email quota inside the verification service.
	rateLimiter := middleware.RateLimitAuth()

	mux.HandleFunc("POST /auth/signup", rateLimiter(auth.Signup))
	mux.HandleFunc("POST /auth/verify-otp", auth.VerifyOTP)
	mux.HandleFunc("POST /auth/resend-otp", rateLimiter(auth.ResendOTP))
	mux.HandleFunc("POST /auth/magic-link", rateLimiter(auth.RequestMagicLink))
	mux.HandleFunc("GET /auth/magic-link/{token}", auth.VerifyMagicLink)
	mux.HandleFunc("POST /auth/reset-password", auth.ResetPassword)

	mux.HandleFunc("POST /auth/login", rateLimiter(auth.Login))
	mux.HandleFunc("POST /auth/logout", auth.Logout)
	mux.HandleFunc("POST /auth/refresh", auth.Refresh)
	mux.HandleFunc("GET /auth/me", middleware.RequireAuth(auth.Me))

	return middleware.Chain(mux,
		middleware.RequestLogging,
		middleware.Session(a.SessionService, a.UserRepository),
	)
}
