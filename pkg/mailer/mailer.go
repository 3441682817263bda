package mailer

import (
	"context"
	"fmt"
	"net/mail"

	"go.uber.org/zap"

	"crisp-academy/backend/config"
)

// Template names
const (
	TemplateWelcome           = "welcome"
	TemplatePasswordReset     = "password_reset"
	TemplateCertificateIssued = "certificate_issued"
)

// Attachment file sent along with a message
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message one outgoing email. TemplateName renders Subject, TextContent and
// HTMLContent when they are empty.
type Message struct {
	To           []mail.Address
	Subject      string
	TemplateName string
	TemplateData map[string]string
	TextContent  string
	HTMLContent  string
	Attachments  []Attachment
}

// HasRecipients reports whether the message has somewhere to go.
func (m *Message) HasRecipients() bool { return len(m.To) > 0 }

// HasContent reports whether the message has a body.
func (m *Message) HasContent() bool { return m.TextContent != "" || m.HTMLContent != "" }

// Mailer delivers rendered messages. Send is synchronous; retries belong to the caller.
type Mailer interface {
	Send(ctx context.Context, msg *Message) error
}

// New builds the mailer selected by cfg.Driver.
func New(cfg *config.MailConfig, logger *zap.Logger) (Mailer, error) {
	renderer, err := NewRenderer(cfg.AppName, cfg.FrontendURL)
	if err != nil {
		return nil, err
	}
	from := mail.Address{Name: cfg.FromName, Address: cfg.FromAddress}

	switch cfg.Driver {
	case "sendgrid":
		return NewSendgridMailer(cfg.SendgridAPIKey, from, cfg.AppName, renderer), nil
	case "console", "":
		return NewConsoleMailer(from, cfg.AppName, renderer, logger), nil
	default:
		return nil, fmt.Errorf("mailer: unknown driver %q", cfg.Driver)
	}
}

func prepare(renderer *Renderer, msg *Message) error {
	if !msg.HasRecipients() {
		return ErrNoRecipients
	}
	if msg.TemplateName != "" {
		if err := renderer.Render(msg); err != nil {
			return err
		}
	}
	if !msg.HasContent() && len(msg.Attachments) == 0 {
		return ErrEmptyMessage
	}
	return nil
}
