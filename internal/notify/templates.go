// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package notify

import (
	"fmt"
	"html"
	"net/url"
)

// Message kinds.
const (
	KindWelcome         = "welcome"
	KindVerified        = "verified"
	KindPasswordReset   = "password_reset"
	KindPasswordChanged = "password_changed"
)

const brand = "BestWishes"

// WelcomeMessage carries the verification code sent after registration.
func WelcomeMessage(to Recipient, otp string) Message {
	return Message{
		Kind:    KindWelcome,
		To:      to,
		Subject: "Welcome to " + brand,
		Text:    fmt.Sprintf("Hi %s, your %s verification code is %s. It expires in 15 minutes.", to.Name, brand, otp),
		HTML: fmt.Sprintf(`<p>Hi %s,</p>
<p>Thanks for joining %s. Use this code to verify your email:</p>
<h1 style="letter-spacing: 3px;">%s</h1>
<p>The code expires in 15 minutes.</p>`, html.EscapeString(to.Name), brand, html.EscapeString(otp)),
	}
}

// VerifiedMessage confirms the account has been verified.
func VerifiedMessage(to Recipient) Message {
	return Message{
		Kind:    KindVerified,
		To:      to,
		Subject: brand + " Account Verified",
		Text:    fmt.Sprintf("Your account is now verified. Please login to %s.", brand),
		HTML:    fmt.Sprintf("<p>Your account is now verified. Please login to %s.</p>", brand),
	}
}

// ResetLink builds the reset URL from base with the raw token and user id.
func ResetLink(base, token, userID string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("id", userID)
	return base + "?" + q.Encode()
}

// PasswordResetMessage carries the reset link.
func PasswordResetMessage(to Recipient, link string) Message {
	return Message{
		Kind:    KindPasswordReset,
		To:      to,
		Subject: brand + " Reset Password",
		Text:    "Use this link to reset your password: " + link,
		HTML: fmt.Sprintf(`<p>A password reset was requested for your account.</p>
<p><a href="%s">Reset Password</a></p>
<p>If you did not ask for this, you can ignore this email.</p>`, html.EscapeString(link)),
	}
}

// PasswordChangedMessage confirms a completed reset.
func PasswordChangedMessage(to Recipient) Message {
	return Message{
		Kind:    KindPasswordChanged,
		To:      to,
		Subject: brand + " New password Success",
		Text:    "Your password was changed. You can now login with the new password.",
		HTML:    "<p>Your password was changed. You can now login with the new password.</p>",
	}
}
