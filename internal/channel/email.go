package channel

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	// From defaults to User.
	From string
}

type mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailSender struct {
	cfg    SMTPConfig
	mailer mailer
}

func NewEmailSender(cfg SMTPConfig) *EmailSender {
	return &EmailSender{
		cfg:    cfg,
		mailer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
	}
}

func (s *EmailSender) configured() bool {
	return s.cfg.Host != "" && s.cfg.User != "" && s.cfg.Password != ""
}

func (s *EmailSender) Send(ctx context.Context, to string, msg Message) error {
	if !s.configured() {
		return fmt.Errorf("email: %w", ErrNotConfigured)
	}

	from := s.cfg.From
	if from == "" {
		from = s.cfg.User
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)

	// gomail has no context support; the send keeps running in the
	// background if ctx expires first.
	done := make(chan error, 1)
	go func() { done <- s.mailer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("email: send to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("email: send to %s: %w", to, ctx.Err())
	}
}
