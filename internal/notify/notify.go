// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

// Package notify delivers outbound email for the account flows.
package notify

import (
	"context"
	"log/slog"
)

// Recipient identifies who a message is addressed to.
type Recipient struct {
	Email string
	Name  string
}

// Message is a rendered email.
type Message struct {
	To      Recipient
	Subject string
	Text    string
	HTML    string
	// Kind labels the message for logs and metrics, e.g. "welcome".
	Kind string
}

// Dispatcher sends a message synchronously.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// LogDispatcher writes messages to a logger instead of sending them. It is
// the development fallback when no SMTP server is configured.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a LogDispatcher. A nil logger uses slog.Default.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

// Send implements Dispatcher.
func (d *LogDispatcher) Send(ctx context.Context, msg Message) error {
	d.logger.InfoContext(ctx, "email not sent, smtp disabled",
		"kind", msg.Kind,
		"to", msg.To.Email,
		"subject", msg.Subject,
	)
	d.logger.DebugContext(ctx, "email body", "kind", msg.Kind, "text", msg.Text)
	return nil
}

var _ Dispatcher = (*LogDispatcher)(nil)
