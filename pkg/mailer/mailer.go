package mailer

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/nucleo-eljunko/comodato-api/pkg/config"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers email messages. Implementations must be safe for
// concurrent use; delivery happens off the request path via the job queue.
type Sender interface {
	Send(msg Message) error
}

// SMTPSender delivers mail through a plain-auth SMTP relay.
type SMTPSender struct {
	addr   string
	auth   smtp.Auth
	sender string
}

// NewSMTPSender builds an SMTP-backed sender from mail configuration.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		addr:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		auth:   auth,
		sender: cfg.Sender,
	}
}

// Send delivers a single message.
func (s *SMTPSender) Send(msg Message) error {
	payload := strings.Join([]string{
		"From: " + s.sender,
		"To: " + msg.To,
		"Subject: " + msg.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		msg.Body,
	}, "\r\n")

	if err := smtp.SendMail(s.addr, s.auth, s.sender, []string{msg.To}, []byte(payload)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// LogSender logs messages instead of delivering them. Used in development
// and tests when no SMTP host is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender builds a logging sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs the message and reports success.
func (s *LogSender) Send(msg Message) error {
	s.logger.Sugar().Infow("mail (not delivered)", "to", msg.To, "subject", msg.Subject)
	return nil
}

// FromConfig selects the SMTP sender when a host is configured and the
// logging sender otherwise.
func FromConfig(cfg config.MailConfig, logger *zap.Logger) Sender {
	if cfg.Host == "" {
		return NewLogSender(logger)
	}
	return NewSMTPSender(cfg)
}
