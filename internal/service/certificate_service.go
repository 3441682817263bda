package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/model"
	"crisp-academy/backend/internal/queue"
	"crisp-academy/backend/internal/repository"
	"crisp-academy/backend/pkg/certificate"
	"crisp-academy/backend/pkg/storage"
)

// ── certificate errors ──

var (
	ErrCertificateNotFound  = errors.New("certificate not found")
	ErrCertificateNotIssued = errors.New("certificate has not been issued yet")
)

// CertificateRenderer draws a certificate document.
type CertificateRenderer interface {
	Render(d certificate.Data) ([]byte, error)
}

// CertificateService certificate reads for users and admins, plus the
// generation steps the worker runs.
type CertificateService interface {
	ListMine(ctx context.Context, userID string) ([]dto.CertificateResponse, error)
	List(ctx context.Context, req *dto.CertificateListRequest) ([]dto.CertificateResponse, int64, error)
	Get(ctx context.Context, id string, caller Caller) (*dto.CertificateResponse, error)
	// Download returns the PDF and its file name.
	Download(ctx context.Context, id string, caller Caller) ([]byte, string, error)
	Regenerate(ctx context.Context, id string, callerID string) (*dto.CertificateResponse, error)

	queue.CertificateWorker
}

type certificateService struct {
	repo     *repository.Repository
	store    storage.Store
	renderer CertificateRenderer
	enqueuer queue.Enqueuer
	notifier *notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewCertificateService creates a CertificateService
func NewCertificateService(
	repo *repository.Repository,
	store storage.Store,
	renderer CertificateRenderer,
	enqueuer queue.Enqueuer,
	logger *zap.Logger,
) CertificateService {
	return &certificateService{
		repo:     repo,
		store:    store,
		renderer: renderer,
		enqueuer: enqueuer,
		notifier: newNotifier(enqueuer, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// newCertificateNumber CERT-YYYYMM-XXXXXXXX
func newCertificateNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("CERT-%s-%s", at.Format("200601"), suffix)
}

// ────────────────────── reads ──────────────────────

func (s *certificateService) ListMine(ctx context.Context, userID string) ([]dto.CertificateResponse, error) {
	certs, err := s.repo.Certificate.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("list certificates failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	result := make([]dto.CertificateResponse, 0, len(certs))
	for i := range certs {
		result = append(result, *toCertificateResponse(&certs[i]))
	}
	return result, nil
}

func (s *certificateService) List(ctx context.Context, req *dto.CertificateListRequest) ([]dto.CertificateResponse, int64, error) {
	filters := &repository.CertificateListFilters{SessionID: req.SessionID, Status: req.Status}
	certs, total, err := s.repo.Certificate.List(ctx, filters, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("list certificates failed", zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.CertificateResponse, 0, len(certs))
	for i := range certs {
		result = append(result, *toCertificateResponse(&certs[i]))
	}
	return result, total, nil
}

func (s *certificateService) Get(ctx context.Context, id string, caller Caller) (*dto.CertificateResponse, error) {
	cert, err := s.getVisible(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	return toCertificateResponse(cert), nil
}

func (s *certificateService) Download(ctx context.Context, id string, caller Caller) ([]byte, string, error) {
	cert, err := s.getVisible(ctx, id, caller)
	if err != nil {
		return nil, "", err
	}
	if cert.Status != model.CertificateStatusIssued || cert.FileKey == "" {
		return nil, "", ErrCertificateNotIssued
	}

	content, err := s.store.Get(ctx, cert.FileKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("issued certificate file missing", zap.String("id", id), zap.String("key", cert.FileKey))
			return nil, "", ErrCertificateNotIssued
		}
		s.logger.Error("load certificate file failed", zap.String("id", id), zap.Error(err))
		return nil, "", err
	}
	return content, cert.CertificateNumber + ".pdf", nil
}

// ────────────────────── Regenerate ──────────────────────

func (s *certificateService) Regenerate(ctx context.Context, id string, callerID string) (*dto.CertificateResponse, error) {
	if s.enqueuer == nil {
		return nil, ErrFeatureUnavailable
	}
	cert, err := s.getCertificate(ctx, id)
	if err != nil {
		return nil, err
	}

	cert.Status = model.CertificateStatusPending
	cert.FailureReason = ""
	cert.UpdatedBy = &callerID
	if err := s.repo.Certificate.Update(ctx, cert); err != nil {
		s.logger.Error("reset certificate failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	if err := s.enqueuer.EnqueueCertificate(ctx, id); err != nil {
		s.logger.Error("enqueue certificate failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return toCertificateResponse(cert), nil
}

// ═══════════════════════════════════════════════════════════
// Generate renders the PDF, stores it, marks the certificate issued
// and queues the email. Failures mark it failed and are returned
// so the queue retries.
// ═══════════════════════════════════════════════════════════

func (s *certificateService) Generate(ctx context.Context, id string) error {
	cert, err := s.repo.Certificate.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %w", ErrCertificateNotFound, asynq.SkipRetry)
		}
		return err
	}

	user, err := s.repo.User.GetByID(ctx, cert.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.markFailed(ctx, cert, "recipient no longer exists")
			return fmt.Errorf("%w: %w", ErrUserNotFound, asynq.SkipRetry)
		}
		return err
	}
	session := cert.Session
	if session == nil {
		if session, err = s.repo.Session.GetByID(ctx, cert.SessionID); err != nil {
			return err
		}
	}

	// a retry after a failed email enqueue only needs the email
	if cert.Status == model.CertificateStatusIssued && cert.FileKey != "" {
		if cert.EmailedAt == nil {
			return s.notifier.CertificateIssued(ctx, cert, user, session)
		}
		return nil
	}

	issuedAt := s.now().UTC()
	department := ""
	if user.Department != nil {
		department = user.Department.Name
	}

	content, err := s.renderer.Render(certificate.Data{
		Number:       cert.CertificateNumber,
		Recipient:    user.Name,
		Department:   department,
		SessionTitle: session.Title,
		Percentage:   cert.Percentage,
		IssuedAt:     issuedAt,
	})
	if err != nil {
		s.markFailed(ctx, cert, "render: "+err.Error())
		return fmt.Errorf("render certificate: %w", err)
	}

	key := certificate.FileKey(cert.CertificateNumber, issuedAt)
	if err := s.store.Put(ctx, key, content); err != nil {
		s.markFailed(ctx, cert, "store: "+err.Error())
		return fmt.Errorf("store certificate: %w", err)
	}

	cert.Status = model.CertificateStatusIssued
	cert.FileKey = key
	cert.IssuedAt = &issuedAt
	cert.FailureReason = ""
	if err := s.repo.Certificate.Update(ctx, cert); err != nil {
		s.logger.Error("mark certificate issued failed", zap.String("id", id), zap.Error(err))
		return err
	}

	s.logger.Info("certificate issued", zap.String("id", id), zap.String("number", cert.CertificateNumber))
	return s.notifier.CertificateIssued(ctx, cert, user, session)
}

func (s *certificateService) MarkEmailed(ctx context.Context, id string) error {
	cert, err := s.getCertificate(ctx, id)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	cert.EmailedAt = &now
	return s.repo.Certificate.Update(ctx, cert)
}

// ── helpers ──

func (s *certificateService) markFailed(ctx context.Context, cert *model.Certificate, reason string) {
	cert.Status = model.CertificateStatusFailed
	cert.FailureReason = reason
	if err := s.repo.Certificate.Update(ctx, cert); err != nil {
		s.logger.Error("mark certificate failed failed", zap.String("id", cert.CertificateID), zap.Error(err))
	}
	s.logger.Warn("certificate generation failed", zap.String("id", cert.CertificateID), zap.String("reason", reason))
}

func (s *certificateService) getCertificate(ctx context.Context, id string) (*model.Certificate, error) {
	cert, err := s.repo.Certificate.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCertificateNotFound
		}
		s.logger.Error("query certificate failed", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	return cert, nil
}

// getVisible hides other users' certificates from non-admins.
func (s *certificateService) getVisible(ctx context.Context, id string, caller Caller) (*model.Certificate, error) {
	cert, err := s.getCertificate(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.Role != model.RoleAdmin && cert.UserID != caller.UserID {
		return nil, ErrCertificateNotFound
	}
	return cert, nil
}

func toCertificateResponse(cert *model.Certificate) *dto.CertificateResponse {
	resp := &dto.CertificateResponse{
		ID:                cert.CertificateID,
		CertificateNumber: cert.CertificateNumber,
		UserID:            cert.UserID,
		SessionID:         cert.SessionID,
		Score:             cert.Score,
		Percentage:        cert.Percentage,
		Status:            cert.Status,
		IssuedAt:          formatTimePtr(cert.IssuedAt),
		EmailedAt:         formatTimePtr(cert.EmailedAt),
		FailureReason:     cert.FailureReason,
	}
	if cert.User != nil {
		resp.UserName = cert.User.Name
	}
	if cert.Session != nil {
		resp.SessionTitle = cert.Session.Title
	}
	return resp
}
