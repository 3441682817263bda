package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"crisp-academy/backend/config"
	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/service"
	"crisp-academy/backend/pkg/response"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/v1/auth"
)

// AuthHandler authentication endpoints
type AuthHandler struct {
	authSvc      service.AuthService
	authCfg      *config.AuthConfig
	secureCookie bool
}

// NewAuthHandler creates an AuthHandler
func NewAuthHandler(authSvc service.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authSvc:      authSvc,
		authCfg:      &cfg.Auth,
		secureCookie: strings.HasPrefix(cfg.Server.BaseURL, "https://"),
	}
}

// Login
// @Summary  Log in with email and password
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body dto.LoginRequest true "credentials"
// @Success  200 {object} response.Response{data=dto.TokenResponse}
// @Router   /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	maxAge := h.authCfg.RefreshTokenTTLDefault
	if req.RememberMe {
		maxAge = h.authCfg.RefreshTokenTTLRemember
	}
	h.setRefreshCookie(c, result.RefreshToken, int(maxAge.Seconds()))
	response.OK(c, result)
}

// RefreshToken
// @Summary  Rotate the token pair; the refresh cookie wins over the body
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body dto.RefreshTokenRequest false "refresh token"
// @Success  200 {object} response.Response{data=dto.TokenResponse}
// @Router   /auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, _ := c.Cookie(refreshCookieName)
	if token == "" {
		var req dto.RefreshTokenRequest
		if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
			return
		}
		token = req.RefreshToken
	}
	if token == "" {
		response.Unauthorized(c, response.CodeUnauthorized, "refresh token is required")
		return
	}

	result, err := h.authSvc.RefreshToken(c.Request.Context(), token)
	if err != nil {
		h.clearRefreshCookie(c)
		h.handleAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken, int(h.authCfg.RefreshTokenTTLDefault.Seconds()))
	response.OK(c, result)
}

// Logout
// @Summary   Revoke the current access token
// @Tags      auth
// @Security  BearerAuth
// @Success   200 {object} response.Response
// @Router    /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	jti, expiresAt := tokenInfo(c)
	if err := h.authSvc.Logout(c.Request.Context(), jti, expiresAt); err != nil {
		response.InternalError(c)
		return
	}
	h.clearRefreshCookie(c)
	response.OK(c, nil)
}

// GetCurrentUser
// @Summary   Current user
// @Tags      auth
// @Security  BearerAuth
// @Success   200 {object} response.Response{data=dto.UserDetailResponse}
// @Router    /auth/me [get]
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	user, err := h.authSvc.GetCurrentUser(c.Request.Context(), userID)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}
	response.OK(c, user)
}

// ChangePassword
// @Summary   Change own password
// @Tags      auth
// @Security  BearerAuth
// @Param     body body dto.ChangePasswordRequest true "passwords"
// @Success   200 {object} response.Response
// @Router    /auth/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authSvc.ChangePassword(c.Request.Context(), userID, &req); err != nil {
		h.handleAuthError(c, err)
		return
	}
	response.OK(c, nil)
}

// ForgotPassword
// @Summary  Email a password reset token; always succeeds for unknown emails
// @Tags     auth
// @Param    body body dto.ForgotPasswordRequest true "email"
// @Success  200 {object} response.Response
// @Router   /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authSvc.ForgotPassword(c.Request.Context(), &req); err != nil {
		h.handleAuthError(c, err)
		return
	}
	response.OK(c, nil)
}

// ResetPassword
// @Summary  Set a new password with an emailed token
// @Tags     auth
// @Param    body body dto.ResetPasswordRequest true "token and password"
// @Success  200 {object} response.Response
// @Router   /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authSvc.ResetPassword(c.Request.Context(), &req); err != nil {
		h.handleAuthError(c, err)
		return
	}
	response.OK(c, nil)
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string, maxAge int) {
	if token == "" {
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, token, maxAge, refreshCookiePath, "", h.secureCookie, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath, "", h.secureCookie, true)
}

// handleAuthError maps auth errors to 11xxx codes.
func (h *AuthHandler) handleAuthError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, 11001, "invalid email or password")
	case errors.Is(err, service.ErrInvalidRefreshToken):
		response.Unauthorized(c, 11002, "refresh token is invalid or expired")
	case errors.Is(err, service.ErrTokenRevoked):
		response.Unauthorized(c, 11003, "token has been revoked")
	case errors.Is(err, service.ErrWrongPassword):
		response.BadRequest(c, 11004, "current password is incorrect")
	case errors.Is(err, service.ErrInvalidResetToken):
		response.BadRequest(c, 11005, "reset token is invalid or expired")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 11006, "user not found")
	default:
		response.InternalError(c)
	}
}
