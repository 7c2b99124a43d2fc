package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"time"

	"github.com/Dan9191/infotelecom-auth/internal/config"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	s := &Sender{
		cfg:    cfg,
		logger: logger,
	}
	s.send = s.smtpSend
	return s
}

func (s *Sender) smtpSend(e *email.Email) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	return e.Send(addr, auth)
}

func (s *Sender) Name() string { return "email" }

// Notify sends the welcome email for a registration event
func (s *Sender) Notify(_ context.Context, ev Event) error {
	if ev.Type != EventUserRegistered {
		return nil
	}
	return s.SendWelcome(ev.User.Email, ev.User.Name)
}

// SendWelcome sends the greeting to a newly registered user
func (s *Sender) SendWelcome(to, name string) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = "Добро пожаловать в Инфотелеком"
	e.Text = []byte(fmt.Sprintf(
		"Здравствуйте, %s!\n\n"+
			"Вы успешно зарегистрировались. Для входа используйте адрес %s.\n\n"+
			"С уважением,\nИнфотелеком", name, to,
	))

	if err := s.send(e); err != nil {
		s.logger.Errorf("Failed to send welcome email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}

// SendDigest sends the registration count for a period to the admin
func (s *Sender) SendDigest(to string, count int, since time.Time) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Регистрации с %s", since.Format("2006-01-02 15:04"))
	e.Text = []byte(fmt.Sprintf(
		"Новых пользователей с %s: %d\n",
		since.Format("2006-01-02 15:04:05"), count,
	))

	if err := s.send(e); err != nil {
		s.logger.Errorf("Failed to send digest to %s: %v", to, err)
		return fmt.Errorf("failed to send digest: %w", err)
	}

	s.logger.Infof("Digest sent to %s: %d registrations", to, count)
	return nil
}
