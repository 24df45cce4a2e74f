package services

import (
	"fmt"
	"io"

	"student-portal/config"
	"student-portal/logger"

	"gopkg.in/gomail.v2"
)

// Attachment is an in-memory file added to an outgoing mail.
type Attachment struct {
	Name  string
	Write func(w io.Writer) error
}

// SMTPSender delivers mail through the configured SMTP relay.
type SMTPSender struct {
	from string
	dial *gomail.Dialer
}

// NewSMTPSender builds a sender from cfg. It fails when no credentials are set.
func NewSMTPSender(cfg *config.Config) (*SMTPSender, error) {
	from := cfg.EmailFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	if from == "" {
		return nil, fmt.Errorf("email sender not configured (set EMAIL_FROM or SMTP_USER)")
	}
	if cfg.SMTPUser == "" || cfg.SMTPPass == "" {
		return nil, fmt.Errorf("smtp credentials not configured (set SMTP_USER and SMTP_PASS)")
	}

	host := cfg.SMTPHost
	if host == "" {
		host = "smtp.gmail.com"
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}
	return &SMTPSender{from: from, dial: gomail.NewDialer(host, port, cfg.SMTPUser, cfg.SMTPPass)}, nil
}

// Send sends an HTML mail.
func (s *SMTPSender) Send(to, subject, body string, attachments ...Attachment) error {
	m := composeMessage(s.from, to, subject, body, attachments...)
	if err := s.dial.DialAndSend(m); err != nil {
		logger.Error("Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	logger.Info("Email sent to %s", to)
	return nil
}

func composeMessage(from, to, subject, body string, attachments ...Attachment) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	for _, a := range attachments {
		write := a.Write
		m.Attach(a.Name, gomail.SetCopyFunc(func(w io.Writer) error { return write(w) }))
	}
	return m
}
