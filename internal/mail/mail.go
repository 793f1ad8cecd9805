// Package mail is the outbound email boundary. Delivery is delegated
// to an SMTP relay; when no relay is configured the mailer reports
// failure so callers exercise their fallback (the invite flow returns
// the invite link to the caller instead of dropping it).
package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// ErrNotConfigured signals that no SMTP relay is set up.
var ErrNotConfigured = errors.New("mail transport not configured")

// Config holds SMTP relay settings; an empty Host disables delivery.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Mailer sends HTML mail through the configured relay.
type Mailer struct {
	cfg    Config
	logger *zap.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func New(cfg Config, logger *zap.Logger) *Mailer {
	if cfg.From == "" {
		cfg.From = "noreply@short.ly"
	}
	return &Mailer{cfg: cfg, logger: logger, send: smtp.SendMail}
}

// Send delivers one message. An unconfigured transport logs the
// message at debug level and returns ErrNotConfigured.
func (m *Mailer) Send(ctx context.Context, to, subject, html string) error {
	if m.cfg.Host == "" {
		m.logger.Debug("mail transport unconfigured, dropping message",
			zap.String("to", to), zap.String("subject", subject))
		return ErrNotConfigured
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(html)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := m.cfg.Host + ":" + m.cfg.Port
	if err := m.send(addr, auth, m.cfg.From, []string{to}, []byte(msg.String())); err != nil {
		m.logger.Error("mail send failed", zap.String("to", to), zap.Error(err))
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
