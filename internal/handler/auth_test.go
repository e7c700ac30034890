package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bonds-app/bonds/internal/app"
	"github.com/bonds-app/bonds/internal/config"
	"github.com/bonds-app/bonds/internal/db/dbtest"
	"github.com/bonds-app/bonds/internal/model"
	"github.com/bonds-app/bonds/internal/repository"
	"github.com/bonds-app/bonds/internal/routes"
	"github.com/bonds-app/bonds/internal/secret"
	"github.com/bonds-app/bonds/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type capturedOTP struct {
	email string
	code  string
}

type capturedLink struct {
	kind  string
	token string
}

type stubSender struct {
	otps  chan capturedOTP
	links chan capturedLink
}

func (s *stubSender) SendOTPEmail(email, name, code string, expiresAt time.Time) error {
	s.otps <- capturedOTP{email: email, code: code}
	return nil
}

func (s *stubSender) SendMagicLinkEmail(email, kind, token string) error {
	s.links <- capturedLink{kind: kind, token: token}
	return nil
}

func (s *stubSender) waitOTP(t *testing.T) capturedOTP {
	t.Helper()
	select {
	case otp := <-s.otps:
		return otp
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for otp email")
		return capturedOTP{}
	}
}

func (s *stubSender) waitLink(t *testing.T) capturedLink {
	t.Helper()
	select {
	case link := <-s.links:
		return link
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for magic link email")
		return capturedLink{}
	}
}

type testServer struct {
	*httptest.Server
	client *http.Client
	sender *stubSender
	users  repository.UserRepository
	hasher *secret.Hasher
	ip     string
}

var testIPCounter int

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		AppName:          "bonds",
		AppEnv:           "test",
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: 720 * time.Hour,
	}

	db := dbtest.New(t)
	users := repository.NewUserRepository(db)
	store := repository.NewVerificationRepository(db)
	hasher := secret.NewHasher(bcrypt.MinCost)
	sender := &stubSender{
		otps:  make(chan capturedOTP, 16),
		links: make(chan capturedLink, 16),
	}

	verification := service.NewVerificationService(store, hasher, sender, service.VerificationConfig{
		OTPExpiry:   5 * time.Minute,
		LinkExpiry:  10 * time.Minute,
		MaxAttempts: 3,
		RateQuota:   10,
		RateWindow:  5 * time.Minute,
	})
	sessions := service.NewSessionService(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry, false)
	auth := service.NewAuthService(users, verification, hasher)

	a := &app.App{
		Cfg:                    cfg,
		DB:                     db,
		UserRepository:         users,
		VerificationRepository: store,
		VerificationService:    verification,
		AuthService:            auth,
		SessionService:         sessions,
	}

	srv := httptest.NewServer(routes.SetupRoutes(a))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	// Each fixture claims its own client IP so the shared per-IP limiter
	// cannot bleed between tests.
	testIPCounter++

	return &testServer{
		Server: srv,
		client: &http.Client{Jar: jar},
		sender: sender,
		users:  users,
		hasher: hasher,
		ip:     fmt.Sprintf("10.1.2.%d", testIPCounter),
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", ts.ip)

	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp, parsed
}

func (ts *testServer) seedUser(t *testing.T, email, password string) *model.User {
	t.Helper()
	hash, err := ts.hasher.Hash(password)
	require.NoError(t, err)

	user := &model.User{
		Email:        email,
		Name:         "Jo",
		PasswordHash: &hash,
		IsActive:     true,
		IsVerified:   true,
	}
	require.NoError(t, ts.users.Create(user))
	return user
}

func TestSignupVerifySession(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, "POST", "/auth/signup", map[string]string{
		"name":     "Jo",
		"email":    "new@x.com",
		"password": "str0ng-passw0rd",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "n***@x.com", body["maskedEmail"])

	// No account yet.
	_, err := ts.users.ByEmail("new@x.com")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	otp := ts.sender.waitOTP(t)
	require.Equal(t, "new@x.com", otp.email)

	resp, body = ts.do(t, "POST", "/auth/verify-otp", map[string]string{
		"email": "new@x.com",
		"otp":   otp.code,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body["token"])
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "new@x.com", user["email"])
	assert.Equal(t, true, user["isVerified"])

	names := map[string]bool{}
	for _, c := range resp.Cookies() {
		names[c.Name] = true
		assert.True(t, c.HttpOnly)
	}
	assert.True(t, names["accessToken"])
	assert.True(t, names["refreshToken"])

	// The session cookie authenticates /auth/me.
	resp, body = ts.do(t, "GET", "/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user, ok = body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "new@x.com", user["email"])

	// Refresh re-issues the pair.
	resp, body = ts.do(t, "POST", "/auth/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])

	// Logout clears the cookies; /auth/me goes back to 401.
	resp, _ = ts.do(t, "POST", "/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.do(t, "GET", "/auth/me", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Unauthorized", body["error"])
}

func TestVerifyOTPRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, "POST", "/auth/verify-otp", map[string]string{
		"email": "a@x.com",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])

	resp, _ = ts.do(t, "POST", "/auth/verify-otp", map[string]string{
		"email": "a@x.com",
		"otp":   "123456",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResendOTP(t *testing.T) {
	ts := newTestServer(t)

	_, _ = ts.do(t, "POST", "/auth/signup", map[string]string{
		"name":     "Jo",
		"email":    "new@x.com",
		"password": "str0ng-passw0rd",
	})
	first := ts.sender.waitOTP(t)

	resp, _ := ts.do(t, "POST", "/auth/resend-otp", map[string]string{"email": "new@x.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := ts.sender.waitOTP(t)

	// Only the replacement code completes the signup.
	if first.code != second.code {
		resp, _ = ts.do(t, "POST", "/auth/verify-otp", map[string]string{
			"email": "new@x.com",
			"otp":   first.code,
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}

	resp, body := ts.do(t, "POST", "/auth/verify-otp", map[string]string{
		"email": "new@x.com",
		"otp":   second.code,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Jo", user["name"])
}

func TestLoginEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "a@x.com", "str0ng-passw0rd")

	resp, body := ts.do(t, "POST", "/auth/login", map[string]string{
		"email":    "a@x.com",
		"password": "wrong-password",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid email or password", body["error"])

	resp, body = ts.do(t, "POST", "/auth/login", map[string]string{
		"email":    "a@x.com",
		"password": "str0ng-passw0rd",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])
}

func TestBearerHeaderAuth(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "a@x.com", "str0ng-passw0rd")

	_, body := ts.do(t, "POST", "/auth/login", map[string]string{
		"email":    "a@x.com",
		"password": "str0ng-passw0rd",
	})
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	// A cookie-less client authenticates with the Authorization header.
	req, err := http.NewRequest("GET", ts.URL+"/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Forwarded-For", ts.ip)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMagicLinkLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "a@x.com", "str0ng-passw0rd")

	resp, body := ts.do(t, "POST", "/auth/magic-link", map[string]string{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a***@x.com", body["maskedEmail"])

	link := ts.sender.waitLink(t)
	assert.Equal(t, model.KindLogin, link.kind)

	resp, body = ts.do(t, "GET", "/auth/magic-link/"+link.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["token"])

	// The link is single use.
	resp, _ = ts.do(t, "GET", "/auth/magic-link/"+link.token, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMagicLinkSignup(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, "POST", "/auth/magic-link", map[string]string{
		"kind":     model.KindSignup,
		"name":     "Jo",
		"email":    "new@x.com",
		"password": "str0ng-passw0rd",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	link := ts.sender.waitLink(t)
	resp, body := ts.do(t, "GET", "/auth/magic-link/"+link.token, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "new@x.com", user["email"])
}

func TestPasswordResetEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "a@x.com", "old-passw0rd")

	resp, _ := ts.do(t, "POST", "/auth/magic-link", map[string]string{
		"kind":  model.KindPasswordReset,
		"email": "a@x.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	link := ts.sender.waitLink(t)
	require.Equal(t, model.KindPasswordReset, link.kind)

	// A reset token cannot start a session through the magic-link endpoint.
	resp, _ = ts.do(t, "GET", "/auth/magic-link/"+link.token, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// That attempt consumed the token; request a fresh one for the reset.
	resp, _ = ts.do(t, "POST", "/auth/magic-link", map[string]string{
		"kind":  model.KindPasswordReset,
		"email": "a@x.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	link = ts.sender.waitLink(t)

	resp, _ = ts.do(t, "POST", "/auth/reset-password", map[string]string{
		"token":    link.token,
		"password": "new-passw0rd",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.do(t, "POST", "/auth/login", map[string]string{
		"email":    "a@x.com",
		"password": "old-passw0rd",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.do(t, "POST", "/auth/login", map[string]string{
		"email":    "a@x.com",
		"password": "new-passw0rd",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestResetTokenRejectedAsOTP(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUser(t, "a@x.com", "str0ng-passw0rd")

	resp, _ := ts.do(t, "POST", "/auth/magic-link", map[string]string{
		"kind":  model.KindPasswordReset,
		"email": "a@x.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	link := ts.sender.waitLink(t)

	// A reset link token posted as an OTP must not mint a session.
	resp, body := ts.do(t, "POST", "/auth/verify-otp", map[string]string{
		"email": "a@x.com",
		"otp":   link.token,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Nil(t, body["token"])

	// The failed attempt did not consume the token; the reset still works.
	resp, _ = ts.do(t, "POST", "/auth/reset-password", map[string]string{
		"token":    link.token,
		"password": "new-passw0rd",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPasswordResetUnknownEmailSilent(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, "POST", "/auth/magic-link", map[string]string{
		"kind":  model.KindPasswordReset,
		"email": "nobody@x.com",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	_, hasExpiry := body["expiresAt"]
	assert.False(t, hasExpiry)
}

func TestAuthRateLimitPerIP(t *testing.T) {
	ts := newTestServer(t)

	var resp *http.Response
	for i := 0; i < 11; i++ {
		resp, _ = ts.do(t, "POST", "/auth/login", map[string]string{
			"email":    "a@x.com",
			"password": "whatever",
		})
	}
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest("GET", ts.URL+"/nope", nil)
	require.NoError(t, err)
	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
