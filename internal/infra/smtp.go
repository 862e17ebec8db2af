package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/smtp"

	"pharmapos/internal/config"

	"github.com/jordan-wright/email"
)

// ErrMailerDisabled is returned by Send when no SMTP host is configured.
var ErrMailerDisabled = errors.New("mailer: SMTP not configured")

// Attachment is an in-memory file attached to a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one outgoing email.
type Message struct {
	To          []string
	Subject     string
	Text        string
	Attachments []Attachment
}

// Mailer wraps SMTP configuration for sending receipts and stock alerts.
type Mailer struct {
	host     string
	user     string
	password string
	addr     string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
	}
}

// Enabled reports whether an SMTP host is configured.
func (m *Mailer) Enabled() bool { return m.host != "" }

// Send delivers msg. The SMTP client has no context support, so ctx is only
// checked before dialing.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if !m.Enabled() {
		return ErrMailerDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = m.user
	e.To = msg.To
	e.Subject = msg.Subject
	e.Text = []byte(msg.Text)
	for _, a := range msg.Attachments {
		if _, err := e.Attach(bytes.NewReader(a.Data), a.Filename, a.ContentType); err != nil {
			return fmt.Errorf("mailer: attach %s: %w", a.Filename, err)
		}
	}

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	return e.Send(m.addr, auth)
}
