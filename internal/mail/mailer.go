// Package mail sends transactional email over SMTP.
package mail

import (
	"fmt"
	"log/slog"

	gomail "gopkg.in/gomail.v2"
)

// Sender delivers mail through a single SMTP account.
type Sender struct {
	dialer *gomail.Dialer
	from   string
	log    *slog.Logger
}

// NewSender builds a Sender for the given SMTP server and account.
func NewSender(host string, port int, username, password, from string, log *slog.Logger) *Sender {
	return &Sender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		log:    log,
	}
}

// SendPasswordReset mails a reset link to the given address.
func (s *Sender) SendPasswordReset(to, username, resetURL string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Reset your Parley password")
	m.SetBody("text/plain", fmt.Sprintf(
		"Hi %s,\n\nA password reset was requested for your account. "+
			"Open the link below to choose a new password:\n\n%s\n\n"+
			"If you did not request this, you can ignore this email.\n",
		username, resetURL))
	m.AddAlternative("text/html", fmt.Sprintf(
		"<p>Hi %s,</p>"+
			"<p>A password reset was requested for your account. "+
			"Click the link below to choose a new password:</p>"+
			"<p><a href=%q>Reset password</a></p>"+
			"<p>If you did not request this, you can ignore this email.</p>",
		username, resetURL))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("mail: send reset: %w", err)
	}
	s.log.Info("sent password reset email", "to", to)
	return nil
}
