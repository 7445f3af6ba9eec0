package auth

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/evcraddock/mela/internal/config"
	"github.com/evcraddock/mela/internal/email"
)

// SendFunc delivers one email.
type SendFunc func(cfg config.SMTPConfig, to []string, subject, body string) error

// Mailer sends login links. In dev mode, or without SMTP settings, the
// link is logged instead.
type Mailer struct {
	smtp    config.SMTPConfig
	baseURL string
	devMode bool
	log     *zap.Logger
	send    SendFunc
}

// NewMailer creates a mailer.
func NewMailer(smtp config.SMTPConfig, baseURL string, devMode bool, log *zap.Logger) *Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mailer{
		smtp:    smtp,
		baseURL: strings.TrimRight(baseURL, "/"),
		devMode: devMode,
		log:     log.Named("mailer"),
		send:    email.Send,
	}
}

// SendMagicLink emails a browser login link and returns it.
func (m *Mailer) SendMagicLink(to, token string) (string, error) {
	link := fmt.Sprintf("%s/auth/verify?token=%s", m.baseURL, token)
	body := fmt.Sprintf(
		"Click the link below to log in to Mela:\n\n%s\n\nThis link expires in 15 minutes and can only be used once.",
		link,
	)
	return link, m.deliver(to, "Mela: your login link", body, link)
}

// SendCLIMagicLink emails a link that finishes a CLI login.
func (m *Mailer) SendCLIMagicLink(to, token string) (string, error) {
	link := fmt.Sprintf("%s/cli/auth/verify?token=%s", m.baseURL, token)
	body := fmt.Sprintf(
		"Click the link below to log in to the Mela CLI:\n\n%s\n\nThis link expires in 15 minutes and can only be used once.",
		link,
	)
	return link, m.deliver(to, "Mela: CLI login link", body, link)
}

func (m *Mailer) deliver(to, subject, body, link string) error {
	if m.devMode || !m.smtp.Configured() {
		m.log.Info("magic link", zap.String("email", to), zap.String("link", link))
		return nil
	}
	if err := m.send(m.smtp, []string{to}, subject, body); err != nil {
		return fmt.Errorf("sending login email: %w", err)
	}
	return nil
}
