// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BestWishes Contributors

package notify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"gopkg.in/gomail.v2"
)

// SMTPConfig holds mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string

	// Attempts is the total number of tries per message, including the first.
	Attempts uint64
	// Backoff is the base delay of the exponential retry.
	Backoff time.Duration
}

// Enabled reports whether enough is configured to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

// mailSender is the gomail surface used by SMTPDispatcher.
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPDispatcher delivers messages through an SMTP server, retrying
// transient failures with exponential backoff.
type SMTPDispatcher struct {
	cfg    SMTPConfig
	sender mailSender
	logger *slog.Logger
}

// NewSMTPDispatcher creates an SMTPDispatcher.
func NewSMTPDispatcher(cfg SMTPConfig, logger *slog.Logger) (*SMTPDispatcher, error) {
	if !cfg.Enabled() {
		return nil, oops.Code("SMTP_CONFIG_INVALID").Errorf("smtp host and from address are required")
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPDispatcher{
		cfg:    cfg,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: logger,
	}, nil
}

// Send implements Dispatcher.
func (d *SMTPDispatcher) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To.Email) == "" {
		return oops.Code("NOTIFY_RECIPIENT_EMPTY").With("kind", msg.Kind).Errorf("empty recipient")
	}

	m := d.build(msg)
	attempt := 0
	backoff := retry.WithMaxRetries(d.cfg.Attempts-1, retry.NewExponential(d.cfg.Backoff))
	err := retry.Do(ctx, backoff, func(_ context.Context) error {
		attempt++
		if err := d.sender.DialAndSend(m); err != nil {
			d.logger.WarnContext(ctx, "smtp send failed",
				"kind", msg.Kind,
				"attempt", attempt,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("NOTIFY_SEND_FAILED").
			With("kind", msg.Kind).
			With("attempts", attempt).
			Wrap(err)
	}

	d.logger.InfoContext(ctx, "email sent", "kind", msg.Kind, "to", msg.To.Email)
	return nil
}

func (d *SMTPDispatcher) build(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", d.cfg.From, d.cfg.FromName)
	if msg.To.Name != "" {
		m.SetAddressHeader("To", msg.To.Email, msg.To.Name)
	} else {
		m.SetHeader("To", msg.To.Email)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	return m
}

var _ Dispatcher = (*SMTPDispatcher)(nil)
