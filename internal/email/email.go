// Package email formats and sends the site's outgoing mail over SMTP.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/evcraddock/portfolio/internal/comment"
)

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// IsConfigured returns true if SMTP settings are present.
func (c SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.From != ""
}

// SendFunc delivers one message. Send is the SMTP implementation.
type SendFunc func(cfg SMTPConfig, to []string, subject, body string) error

// Notifier tells the site owner about new comments.
type Notifier struct {
	cfg     SMTPConfig
	to      string
	baseURL string
	send    SendFunc
}

// NewNotifier creates a notifier that mails to. send may be nil for Send.
func NewNotifier(cfg SMTPConfig, to, baseURL string, send SendFunc) *Notifier {
	if send == nil {
		send = Send
	}
	return &Notifier{cfg: cfg, to: to, baseURL: baseURL, send: send}
}

// Enabled reports whether notifications have a recipient and a mail server.
func (n *Notifier) Enabled() bool {
	return n != nil && n.to != "" && n.cfg.IsConfigured()
}

// NotifyComment mails the owner about c. It does nothing when disabled.
func (n *Notifier) NotifyComment(ctx context.Context, c *comment.Comment) error {
	if !n.Enabled() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("New comment from %s", c.Username)
	if err := n.send(n.cfg, []string{n.to}, subject, FormatNotification(c, n.baseURL)); err != nil {
		return fmt.Errorf("notifying about comment %d: %w", c.ID, err)
	}
	slog.Debug("comment notification sent", "comment_id", c.ID, "to", n.to)
	return nil
}

// FormatNotification builds the plain-text body of a new comment notification.
func FormatNotification(c *comment.Comment, baseURL string) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s (%s) left a comment on %s:\n\n", c.Username, c.Email, FormatTimestamp(c.Timestamp))
	for _, line := range strings.Split(strings.TrimSpace(c.Text), "\n") {
		fmt.Fprintf(&buf, "  > %s\n", line)
	}
	fmt.Fprintf(&buf, "\nComment #%d\n%s/\n", c.ID, strings.TrimRight(baseURL, "/"))

	return buf.String()
}

// FormatTimestamp renders t like "3/14/2024, 9:05pm".
func FormatTimestamp(t time.Time) string {
	return t.Format("1/2/2006, 3:04pm")
}

// Send sends an email via SMTP.
// Supports both port 465 (implicit TLS) and port 587 (STARTTLS).
func Send(cfg SMTPConfig, to []string, subject, body string) error {
	if !cfg.IsConfigured() {
		return fmt.Errorf("SMTP not configured")
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		cfg.From,
		strings.Join(to, ", "),
		subject,
		body,
	)

	addr := cfg.Host + ":" + cfg.Port

	if cfg.Port == "465" {
		return sendImplicitTLS(cfg, addr, to, msg)
	}
	return sendSTARTTLS(cfg, addr, to, msg)
}

// sendImplicitTLS connects over TLS directly (port 465/SMTPS).
func sendImplicitTLS(cfg SMTPConfig, addr string, to []string, msg string) (err error) {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: cfg.Host})
	if err != nil {
		return fmt.Errorf("TLS dial: %w", err)
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer func() {
		if quitErr := c.Quit(); quitErr != nil && err == nil {
			err = fmt.Errorf("quit: %w", quitErr)
		}
	}()

	if cfg.User != "" {
		if err := c.Auth(smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return nil
}

// sendSTARTTLS connects plain then upgrades to TLS (port 587).
func sendSTARTTLS(cfg SMTPConfig, addr string, to []string, msg string) error {
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, cfg.From, to, []byte(msg)); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}
