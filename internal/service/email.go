package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bonds-app/bonds/internal/model"
	"github.com/resend/resend-go/v2"
)

// Sender delivers one-time secrets to a user's inbox. The verification
// service only depends on this interface, so tests substitute a stub.
type Sender interface {
	SendOTPEmail(email, name, code string, expiresAt time.Time) error
	SendMagicLinkEmail(email, kind, token string) error
}

type EmailService struct {
	client    *resend.Client
	fromEmail string
	clientURL string
	appName   string
	isDev     bool
}

func NewEmailService(apiKey, fromEmail, clientURL, appName string, isDev bool) *EmailService {
	var client *resend.Client
	if apiKey != "" && !isDev {
		client = resend.NewClient(apiKey)
	}

	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
		clientURL: clientURL,
		appName:   appName,
		isDev:     isDev,
	}
}

func (s *EmailService) SendOTPEmail(email, name, code string, expiresAt time.Time) error {
	subject, body := otpEmailTemplate(name, code, expiresAt, s.appName)

	// Dev mode logs the code instead of sending; the same log line is the
	// operator fallback channel during delivery outages.
	if s.isDev {
		slog.Info("email sent (dev mode)", "type", "otp", "to", email, "subject", subject, "code", code)
		return nil
	}

	if s.client == nil {
		return fmt.Errorf("email service not configured (missing RESEND_API_KEY)")
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{email},
		Subject: subject,
		Text:    body,
	}

	_, err := s.client.Emails.SendWithContext(context.Background(), params)
	if err == nil {
		slog.Info("email sent", "type", "otp", "to", email)
	}
	return err
}

func (s *EmailService) SendMagicLinkEmail(email, kind, token string) error {
	linkURL := s.magicLinkURL(kind, token)
	subject, body := magicLinkEmailTemplate(kind, linkURL, s.appName)

	if s.isDev {
		slog.Info("email sent (dev mode)", "type", "magic_link", "kind", kind, "to", email, "subject", subject, "url", linkURL)
		return nil
	}

	if s.client == nil {
		return fmt.Errorf("email service not configured (missing RESEND_API_KEY)")
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{email},
		Subject: subject,
		Text:    body,
	}

	_, err := s.client.Emails.SendWithContext(context.Background(), params)
	if err == nil {
		slog.Info("email sent", "type", "magic_link", "kind", kind, "to", email)
	}
	return err
}

// magicLinkURL builds the SPA route that will present the token back to the
// API. Password reset lands on its own page so the user can type a new
// password before the token is spent.
func (s *EmailService) magicLinkURL(kind, token string) string {
	if kind == model.KindPasswordReset {
		return fmt.Sprintf("%s/reset-password?token=%s", s.clientURL, token)
	}
	return fmt.Sprintf("%s/auth/magic-link?token=%s", s.clientURL, token)
}
