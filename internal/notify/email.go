package notify

import (
	"time"

	"gopkg.in/gomail.v2"

	"screenpilot/internal/logging"
)

// EmailConfig configures the SMTP sink.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// EmailSink sends events over SMTP. Delivery errors are logged and
// swallowed; an unreachable mail server must never stop a workflow.
type EmailSink struct {
	cfg    EmailConfig
	dialer *gomail.Dialer
}

// NewEmailSink creates an SMTP-backed sink.
func NewEmailSink(cfg EmailConfig) *EmailSink {
	return &EmailSink{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *EmailSink) Notify(ev Event) {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", s.cfg.To...)
	m.SetHeader("Subject", ev.Subject)
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	m.SetBody("text/plain", ev.Body())

	if err := s.dialer.DialAndSend(m); err != nil {
		logging.Get(logging.CategoryNotify).Error("email delivery failed: %v", err)
		return
	}
	logging.Notify("sent alert %q to %d recipients", ev.Subject, len(s.cfg.To))
}
