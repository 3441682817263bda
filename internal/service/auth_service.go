package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"crisp-academy/backend/config"
	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/model"
	"crisp-academy/backend/internal/queue"
	"crisp-academy/backend/internal/repository"
	"crisp-academy/backend/pkg/jwt"
	"crisp-academy/backend/pkg/redis"
)

// ── auth errors ──

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidRefreshToken = errors.New("refresh token is invalid or expired")
	ErrTokenRevoked        = errors.New("token has been revoked")
	ErrWrongPassword       = errors.New("current password is incorrect")
	ErrInvalidResetToken   = errors.New("reset token is invalid or expired")
	ErrFeatureUnavailable  = errors.New("feature is unavailable without redis")
)

// AuthService authentication
type AuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error)
	// Logout revokes the access token jti until it would have expired anyway.
	Logout(ctx context.Context, jti string, expiresAt time.Time) error
	GetCurrentUser(ctx context.Context, userID string) (*dto.UserDetailResponse, error)
	ChangePassword(ctx context.Context, userID string, req *dto.ChangePasswordRequest) error
	// ForgotPassword never reveals whether the email exists.
	ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error
}

type authService struct {
	cfg      *config.Config
	repo     *repository.Repository
	jwtMgr   *jwt.Manager
	rdb      *redis.Client // nil degrades blacklist checks open
	notifier *notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthService creates an AuthService
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	enqueuer queue.Enqueuer,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:      cfg,
		repo:     repo,
		jwtMgr:   jwtMgr,
		rdb:      rdb,
		notifier: newNotifier(enqueuer, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	user, err := s.repo.User.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("query user failed", zap.Error(err))
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	resp, err := s.issueTokens(user, req.RememberMe)
	if err != nil {
		return nil, err
	}

	if err := s.repo.User.UpdateLastLogin(ctx, user.UserID, s.now().UTC()); err != nil {
		s.logger.Warn("record last login failed", zap.String("user_id", user.UserID), zap.Error(err))
	}

	return resp, nil
}

// ────────────────────── RefreshToken ──────────────────────

func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	claims, err := s.jwtMgr.ParseToken(refreshToken)
	if err != nil || claims.TokenType != jwt.TokenTypeRefresh {
		return nil, ErrInvalidRefreshToken
	}

	if s.rdb != nil {
		revoked, err := s.rdb.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Warn("blacklist lookup failed, allowing refresh", zap.Error(err))
		} else if revoked {
			return nil, ErrTokenRevoked
		}
	}

	// reload so role and department changes take effect on refresh
	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		s.logger.Error("query user failed", zap.String("user_id", claims.UserID), zap.Error(err))
		return nil, err
	}

	resp, err := s.issueTokens(user, claims.RememberMe)
	if err != nil {
		return nil, err
	}

	// rotate: the old refresh token is single use
	if s.rdb != nil && claims.ExpiresAt != nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		if err := s.rdb.BlacklistToken(ctx, claims.ID, ttl); err != nil {
			s.logger.Warn("revoke old refresh token failed", zap.Error(err))
		}
	}

	return resp, nil
}

// ────────────────────── Logout ──────────────────────

func (s *authService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.rdb == nil || jti == "" {
		return nil
	}
	ttl := expiresAt.Sub(s.now())
	if err := s.rdb.BlacklistToken(ctx, jti, ttl); err != nil {
		s.logger.Error("blacklist token failed", zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── GetCurrentUser ──────────────────────

func (s *authService) GetCurrentUser(ctx context.Context, userID string) (*dto.UserDetailResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("query user failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	resp := &dto.UserDetailResponse{
		UserResponse: *toUserResponse(user),
		CreatedAt:    formatTime(user.CreatedAt),
	}
	if user.LastLoginAt != nil {
		resp.LastLoginAt = formatTime(*user.LastLoginAt)
	}
	return resp, nil
}

// ────────────────────── ChangePassword ──────────────────────

func (s *authService) ChangePassword(ctx context.Context, userID string, req *dto.ChangePasswordRequest) error {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return ErrWrongPassword
	}

	return s.setPassword(ctx, user, req.NewPassword, userID)
}

// ────────────────────── ForgotPassword ──────────────────────

func (s *authService) ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error {
	if s.rdb == nil {
		return ErrFeatureUnavailable
	}

	user, err := s.repo.User.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		s.logger.Error("query user failed", zap.Error(err))
		return err
	}

	ttl := s.cfg.Auth.ResetTokenTTL
	token, err := s.rdb.CreateResetToken(ctx, user.UserID, ttl)
	if err != nil {
		s.logger.Error("store reset token failed", zap.Error(err))
		return err
	}

	// the response does not reveal whether the email went out
	if err := s.notifier.PasswordReset(ctx, user, token, ttl); err != nil {
		s.logger.Warn("password reset email not queued", zap.String("user_id", user.UserID), zap.Error(err))
	}
	return nil
}

// ────────────────────── ResetPassword ──────────────────────

func (s *authService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	if s.rdb == nil {
		return ErrFeatureUnavailable
	}

	userID, err := s.rdb.ConsumeResetToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, redis.ErrResetTokenNotFound) {
			return ErrInvalidResetToken
		}
		s.logger.Error("consume reset token failed", zap.Error(err))
		return err
	}

	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}

	return s.setPassword(ctx, user, req.NewPassword, userID)
}

// ── helpers ──

func (s *authService) setPassword(ctx context.Context, user *model.User, password, callerID string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("hash password failed", zap.Error(err))
		return err
	}
	user.PasswordHash = string(hash)
	user.MustChangePassword = false
	user.UpdatedBy = &callerID

	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("update password failed", zap.String("user_id", user.UserID), zap.Error(err))
		return err
	}
	return nil
}

func (s *authService) issueTokens(user *model.User, rememberMe bool) (*dto.TokenResponse, error) {
	accessToken, err := s.jwtMgr.GenerateAccessToken(user.UserID, user.Role, user.DepartmentID)
	if err != nil {
		s.logger.Error("sign access token failed", zap.Error(err))
		return nil, err
	}
	refreshToken, err := s.jwtMgr.GenerateRefreshToken(user.UserID, user.Role, user.DepartmentID, rememberMe)
	if err != nil {
		s.logger.Error("sign refresh token failed", zap.Error(err))
		return nil, err
	}
	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:         *toUserResponse(user),
	}, nil
}
