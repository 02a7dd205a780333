package auth

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/evcraddock/portfolio/internal/email"
)

// SMTP returns the mail server settings of c.
func (c Config) SMTP() email.SMTPConfig {
	return email.SMTPConfig{
		Host: c.SMTPHost,
		Port: c.SMTPPort,
		User: c.SMTPUser,
		Pass: c.SMTPPass,
		From: c.SMTPFrom,
	}
}

// Mailer sends magic link emails.
type Mailer struct {
	config Config
	send   email.SendFunc
}

// NewMailer creates a mailer that delivers through SMTP.
func NewMailer(config Config) *Mailer {
	return &Mailer{config: config, send: email.Send}
}

// SendMagicLink mails a browser login link, or logs it in dev mode.
// It returns the link.
func (m *Mailer) SendMagicLink(to, token string) (string, error) {
	return m.sendLink(to, "/auth/verify", token,
		"Portfolio comments: login link",
		"Click the link below to log in and leave comments:")
}

// SendCLIMagicLink mails a link that finishes a pf CLI login.
func (m *Mailer) SendCLIMagicLink(to, token string) (string, error) {
	return m.sendLink(to, "/cli/auth/verify", token,
		"Portfolio comments: CLI login link",
		"Click the link below to log in to the pf command line tool:")
}

func (m *Mailer) sendLink(to, path, token, subject, intro string) (string, error) {
	link := fmt.Sprintf("%s%s?token=%s", m.config.BaseURL, path, url.QueryEscape(token))

	if m.config.DevMode {
		slog.Info("magic link", "email", to, "link", link)
		return link, nil
	}

	body := fmt.Sprintf("%s\n\n%s\n\nThis link expires in 15 minutes and can only be used once.", intro, link)
	if err := m.send(m.config.SMTP(), []string{to}, subject, body); err != nil {
		return "", fmt.Errorf("sending login link: %w", err)
	}
	return link, nil
}
