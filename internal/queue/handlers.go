package queue

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"crisp-academy/backend/pkg/mailer"
	"crisp-academy/backend/pkg/storage"
)

// CertificateWorker is the certificate side the worker drives.
type CertificateWorker interface {
	// Generate renders, stores and issues a pending certificate.
	Generate(ctx context.Context, certificateID string) error
	MarkEmailed(ctx context.Context, certificateID string) error
}

// ProgressExpirer finalises attempts that ran out of time.
type ProgressExpirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

// Handlers executes tasks.
type Handlers struct {
	mailer       mailer.Mailer
	store        storage.Store
	certificates CertificateWorker
	progress     ProgressExpirer
	logger       *zap.Logger
	now          func() time.Time
}

// NewHandlers creates task handlers.
func NewHandlers(m mailer.Mailer, store storage.Store, certs CertificateWorker, progress ProgressExpirer, logger *zap.Logger) *Handlers {
	return &Handlers{
		mailer:       m,
		store:        store,
		certificates: certs,
		progress:     progress,
		logger:       logger,
		now:          time.Now,
	}
}

// NewServeMux routes task types to handlers.
func NewServeMux(h *Handlers) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailSend, h.HandleEmail)
	mux.HandleFunc(TypeCertificateGenerate, h.HandleCertificate)
	mux.HandleFunc(TypeProgressExpireSweep, h.HandleExpireSweep)
	return mux
}

// HandleEmail delivers one templated email.
func (h *Handlers) HandleEmail(ctx context.Context, t *asynq.Task) error {
	var p EmailPayload
	if err := decode(t, &p); err != nil {
		return err
	}

	msg := &mailer.Message{
		To:           []mail.Address{{Name: p.Name, Address: p.To}},
		TemplateName: p.Template,
		TemplateData: p.Data,
	}

	if p.AttachmentKey != "" {
		content, err := h.store.Get(ctx, p.AttachmentKey)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("attachment %s: %v: %w", p.AttachmentKey, err, asynq.SkipRetry)
			}
			return fmt.Errorf("load attachment %s: %w", p.AttachmentKey, err)
		}
		name := p.AttachmentName
		if name == "" {
			name = "attachment.pdf"
		}
		msg.Attachments = append(msg.Attachments, mailer.Attachment{
			Filename:    name,
			ContentType: "application/pdf",
			Content:     content,
		})
	}

	if err := h.mailer.Send(ctx, msg); err != nil {
		if errors.Is(err, mailer.ErrUnknownTemplate) || errors.Is(err, mailer.ErrNoRecipients) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	h.logger.Info("email sent", zap.String("template", p.Template))

	if p.CertificateID != "" {
		if err := h.certificates.MarkEmailed(ctx, p.CertificateID); err != nil {
			// the email is out; a retry would send it twice
			h.logger.Warn("mark certificate emailed failed",
				zap.String("certificate_id", p.CertificateID), zap.Error(err))
		}
	}
	return nil
}

// HandleCertificate generates one certificate.
func (h *Handlers) HandleCertificate(ctx context.Context, t *asynq.Task) error {
	var p CertificatePayload
	if err := decode(t, &p); err != nil {
		return err
	}
	if err := h.certificates.Generate(ctx, p.CertificateID); err != nil {
		return fmt.Errorf("generate certificate %s: %w", p.CertificateID, err)
	}
	return nil
}

// HandleExpireSweep finalises overdue attempts.
func (h *Handlers) HandleExpireSweep(ctx context.Context, _ *asynq.Task) error {
	n, err := h.progress.ExpireOverdue(ctx, h.now().UTC())
	if err != nil {
		return err
	}
	if n > 0 {
		h.logger.Info("expired overdue attempts", zap.Int("count", n))
	}
	return nil
}
