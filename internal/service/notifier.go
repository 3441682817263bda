package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"crisp-academy/backend/internal/model"
	"crisp-academy/backend/internal/queue"
	"crisp-academy/backend/pkg/mailer"
)

// notifier turns domain events into email:send tasks.
// Enqueue failures are logged and swallowed unless the caller needs them.
type notifier struct {
	enqueuer queue.Enqueuer
	logger   *zap.Logger
}

func newNotifier(enqueuer queue.Enqueuer, logger *zap.Logger) *notifier {
	return &notifier{enqueuer: enqueuer, logger: logger}
}

func (n *notifier) enqueue(ctx context.Context, p queue.EmailPayload) error {
	if n.enqueuer == nil {
		n.logger.Warn("email queue not configured, dropping email", zap.String("template", p.Template))
		return nil
	}
	if err := n.enqueuer.EnqueueEmail(ctx, p); err != nil {
		n.logger.Error("enqueue email failed", zap.String("template", p.Template), zap.Error(err))
		return err
	}
	return nil
}

// Welcome sends the temporary password of a new account.
func (n *notifier) Welcome(ctx context.Context, user *model.User, tempPassword string) {
	_ = n.enqueue(ctx, queue.EmailPayload{
		To:       user.Email,
		Name:     user.Name,
		Template: mailer.TemplateWelcome,
		Data: map[string]string{
			"name":          user.Name,
			"email":         user.Email,
			"temp_password": tempPassword,
		},
	})
}

// PasswordReset sends a reset link.
func (n *notifier) PasswordReset(ctx context.Context, user *model.User, token string, ttl time.Duration) error {
	return n.enqueue(ctx, queue.EmailPayload{
		To:       user.Email,
		Name:     user.Name,
		Template: mailer.TemplatePasswordReset,
		Data: map[string]string{
			"name":       user.Name,
			"token":      token,
			"expires_in": ttl.String(),
		},
	})
}

// CertificateIssued sends the certificate PDF.
func (n *notifier) CertificateIssued(ctx context.Context, cert *model.Certificate, user *model.User, session *model.Session) error {
	return n.enqueue(ctx, queue.EmailPayload{
		To:       user.Email,
		Name:     user.Name,
		Template: mailer.TemplateCertificateIssued,
		Data: map[string]string{
			"name":               user.Name,
			"session_title":      session.Title,
			"percentage":         fmt.Sprintf("%.2f", cert.Percentage),
			"certificate_number": cert.CertificateNumber,
		},
		AttachmentKey:  cert.FileKey,
		AttachmentName: cert.CertificateNumber + ".pdf",
		CertificateID:  cert.CertificateID,
	})
}
