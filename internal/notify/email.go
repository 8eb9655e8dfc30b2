// File: internal/notify/email.go
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"botforge/internal/observability"

	"go.uber.org/zap"
)

// ===============================
// EMAIL CHANNEL
// ===============================

// EmailConfig holds SMTP delivery settings for the email channel.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// EmailChannel delivers alert notifications over SMTP.
type EmailChannel struct {
	config EmailConfig
	logger *zap.Logger

	// send is swappable in tests.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailChannel creates an email channel.
func NewEmailChannel(config EmailConfig, logger *zap.Logger) (*EmailChannel, error) {
	if config.Host == "" || config.From == "" || len(config.To) == 0 {
		return nil, fmt.Errorf("email channel requires host, from address and at least one recipient")
	}
	if config.Port == 0 {
		config.Port = 587
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailChannel{
		config: config,
		logger: logger,
		send:   smtp.SendMail,
	}, nil
}

// Name implements observability.Channel.
func (c *EmailChannel) Name() string { return "email" }

// Deliver sends the notification as a plain-text email. net/smtp has no
// context support, so the send runs on a goroutine and the ctx deadline is
// honored by abandoning the attempt.
func (c *EmailChannel) Deliver(ctx context.Context, n observability.Notification) error {
	var auth smtp.Auth
	if c.config.Username != "" {
		auth = smtp.PlainAuth("", c.config.Username, c.config.Password, c.config.Host)
	}

	msg := c.buildMessage(n)
	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)

	done := make(chan error, 1)
	go func() {
		done <- c.send(addr, auth, c.config.From, c.config.To, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send alert email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send alert email: %w", ctx.Err())
	}
}

func (c *EmailChannel) buildMessage(n observability.Notification) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", c.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(c.config.To, ", "))
	fmt.Fprintf(&b, "Subject: [%s] %s\r\n", strings.ToUpper(string(n.Severity)), n.Title)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	fmt.Fprintf(&b, "%s\n\nType: %s\nSeverity: %s\nTime: %s\n",
		n.Message, n.Type, n.Severity, n.Timestamp.Format("2006-01-02 15:04:05 MST"))
	return []byte(b.String())
}
