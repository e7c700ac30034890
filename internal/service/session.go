package service

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bonds-app/bonds/internal/apperr"
	"github.com/bonds-app/bonds/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenPair is one issued session: a short-lived access token and a
// long-lived refresh token, both HS256-signed with the shared secret.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SessionService signs and verifies session tokens. There is no server-side
// session table: validity is signature plus expiry, so revocation is only
// possible by rotating the signing secret.
type SessionService struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	isProduction  bool
}

func NewSessionService(secret string, accessExpiry, refreshExpiry time.Duration, isProduction bool) *SessionService {
	return &SessionService{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		isProduction:  isProduction,
	}
}

// Issue mints an access+refresh pair bound to the user identity.
func (s *SessionService) Issue(user *model.User) (*TokenPair, error) {
	access, err := s.sign(user, tokenTypeAccess, s.accessExpiry)
	if err != nil {
		return nil, err
	}

	refresh, err := s.sign(user, tokenTypeRefresh, s.refreshExpiry)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *SessionService) sign(user *model.User, typ string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"typ":     typ,
		"exp":     now.Add(expiry).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifyAccess validates an access token and returns the user id it claims.
func (s *SessionService) VerifyAccess(tokenString string) (string, error) {
	return s.verify(tokenString, tokenTypeAccess)
}

// VerifyRefresh validates a refresh token and returns the user id it claims.
func (s *SessionService) VerifyRefresh(tokenString string) (string, error) {
	return s.verify(tokenString, tokenTypeRefresh)
}

func (s *SessionService) verify(tokenString, wantTyp string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperr.Unauthorized("Session expired")
		}
		return "", apperr.Unauthorized("Invalid session")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", apperr.Unauthorized("Invalid session")
	}

	typ, _ := claims["typ"].(string)
	if typ != wantTyp {
		return "", apperr.Unauthorized("Invalid session")
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return "", apperr.Unauthorized("Invalid session")
	}

	return userID, nil
}

// SetCookies attaches both tokens as http-only cookies. SameSite is Strict in
// production and Lax in development so the local SPA dev server still works.
func (s *SessionService) SetCookies(w http.ResponseWriter, pair *TokenPair) {
	sameSite := http.SameSiteLaxMode
	if s.isProduction {
		sameSite = http.SameSiteStrictMode
	}

	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    pair.AccessToken,
		Expires:  time.Now().Add(s.accessExpiry),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: sameSite,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    pair.RefreshToken,
		Expires:  time.Now().Add(s.refreshExpiry),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: sameSite,
	})
}

func (s *SessionService) ClearCookies(w http.ResponseWriter) {
	sameSite := http.SameSiteLaxMode
	if s.isProduction {
		sameSite = http.SameSiteStrictMode
	}

	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Expires:  time.Unix(0, 0),
			Path:     "/",
			HttpOnly: true,
			Secure:   s.isProduction,
			SameSite: sameSite,
		})
	}
}
