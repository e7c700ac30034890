package service

import (
	"fmt"
	"time"

	"github.com/bonds-app/bonds/internal/model"
)

func otpEmailTemplate(name, code string, expiresAt time.Time, appName string) (subject, body string) {
	greeting := "Hi"
	if name != "" {
		greeting = "Hi " + name
	}

	subject = fmt.Sprintf("%s is your %s verification code", code, appName)
	body = fmt.Sprintf(`%s,

Your %s verification code is:

    %s

It expires at %s. If you didn't request this code, you can ignore this email.

— %s`, greeting, appName, code, expiresAt.Format("15:04 MST"), appName)
	return subject, body
}

func magicLinkEmailTemplate(kind, linkURL, appName string) (subject, body string) {
	switch kind {
	case model.KindPasswordReset:
		subject = fmt.Sprintf("Reset your %s password", appName)
		body = fmt.Sprintf(`Hi,

Someone asked to reset the password for your %s account. If that was you,
follow this link:

%s

The link works once and expires shortly. If you didn't ask for a reset,
ignore this email and your password stays as it is.

— %s`, appName, linkURL, appName)
	case model.KindSignup:
		subject = fmt.Sprintf("Finish creating your %s account", appName)
		body = fmt.Sprintf(`Hi,

Follow this link to finish setting up your %s account:

%s

The link works once and expires shortly.

— %s`, appName, linkURL, appName)
	default:
		subject = fmt.Sprintf("Sign in to %s", appName)
		body = fmt.Sprintf(`Hi,

Follow this link to sign in to %s:

%s

The link works once and expires shortly. If you didn't request it, you can
ignore this email.

— %s`, appName, linkURL, appName)
	}
	return subject, body
}
