// Package email formats notification digests and sends mail over SMTP.
package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/evcraddock/mela/internal/config"
	"github.com/evcraddock/mela/internal/notification"
)

// ErrNotConfigured is returned by Send when SMTP settings are missing.
var ErrNotConfigured = fmt.Errorf("SMTP not configured")

// DigestSubject is the subject line for a digest of n notifications.
func DigestSubject(n int) string {
	if n == 1 {
		return "Mela: 1 new notification"
	}
	return fmt.Sprintf("Mela: %d new notifications", n)
}

// FormatDigest builds a plain-text body listing notes, each with a link
// to the item or wanted ad it concerns.
func FormatDigest(name string, notes []*notification.Notification, baseURL string) string {
	var buf bytes.Buffer
	baseURL = strings.TrimRight(baseURL, "/")

	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&buf, "Hi %s,\n\n", name)
	if len(notes) == 1 {
		fmt.Fprintf(&buf, "You have 1 new notification on Mela:\n\n")
	} else {
		fmt.Fprintf(&buf, "You have %d new notifications on Mela:\n\n", len(notes))
	}

	for i, n := range notes {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, n.Title)
		if n.Body != "" {
			fmt.Fprintf(&buf, "   %s\n", n.Body)
		}
		switch {
		case n.RelatedItemID != nil:
			fmt.Fprintf(&buf, "   %s/items/%s\n", baseURL, *n.RelatedItemID)
		case n.RelatedWantedAdID != nil:
			fmt.Fprintf(&buf, "   %s/wanted/%s\n", baseURL, *n.RelatedWantedAdID)
		}
		fmt.Fprintln(&buf)
	}

	fmt.Fprintf(&buf, "See all notifications: %s/notifications\n", baseURL)
	return buf.String()
}

// Send sends a plain-text email. Port 465 uses implicit TLS; any other
// port uses STARTTLS when the server offers it.
func Send(cfg config.SMTPConfig, to []string, subject, body string) error {
	if !cfg.Configured() {
		return ErrNotConfigured
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	msg := buildMessage(cfg.From, to, subject, body, time.Now())
	addr := cfg.Host + ":" + cfg.Port

	if cfg.Port == "465" {
		return sendImplicitTLS(cfg, addr, to, msg)
	}
	return sendSTARTTLS(cfg, addr, to, msg)
}

func buildMessage(from string, to []string, subject, body string, now time.Time) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	fmt.Fprintf(&sb, "Date: %s\r\n", now.Format(time.RFC1123Z))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(sb.String())
}

// sendImplicitTLS connects over TLS directly (port 465).
func sendImplicitTLS(cfg config.SMTPConfig, addr string, to []string, msg []byte) (err error) {
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
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}
	return nil
}

// sendSTARTTLS connects plain then upgrades to TLS.
func sendSTARTTLS(cfg config.SMTPConfig, addr string, to []string, msg []byte) error {
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, cfg.From, to, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}
