package mailer

import (
	"context"
	"net/mail"
	"strings"

	"go.uber.org/zap"
)

// consoleMailer writes messages to the log instead of sending them.
type consoleMailer struct {
	from       mail.Address
	subjPrefix string
	renderer   *Renderer
	logger     *zap.Logger
}

// NewConsoleMailer creates the development mailer.
func NewConsoleMailer(from mail.Address, appName string, renderer *Renderer, logger *zap.Logger) Mailer {
	return &consoleMailer{
		from:       from,
		subjPrefix: "[" + appName + "] ",
		renderer:   renderer,
		logger:     logger,
	}
}

func (m *consoleMailer) Send(_ context.Context, msg *Message) error {
	if err := prepare(m.renderer, msg); err != nil {
		return err
	}

	attachments := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		attachments = append(attachments, a.Filename)
	}

	m.logger.Info("email (console driver)",
		zap.String("from", m.from.String()),
		zap.String("to", joinAddresses(msg.To)),
		zap.String("subject", m.subjPrefix+msg.Subject),
		zap.String("template", msg.TemplateName),
		zap.Strings("attachments", attachments),
		zap.String("body", msg.TextContent),
	)
	return nil
}

func joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}
