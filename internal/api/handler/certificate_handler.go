package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/service"
	"crisp-academy/backend/pkg/response"
)

// CertificateHandler certificate endpoints
type CertificateHandler struct {
	certSvc service.CertificateService
}

// NewCertificateHandler creates a CertificateHandler
func NewCertificateHandler(certSvc service.CertificateService) *CertificateHandler {
	return &CertificateHandler{certSvc: certSvc}
}

// ListMine
// @Summary   The caller's certificates
// @Tags      certificates
// @Security  BearerAuth
// @Success   200 {object} response.Response{data=[]dto.CertificateResponse}
// @Router    /me/certificates [get]
func (h *CertificateHandler) ListMine(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.certSvc.ListMine(c.Request.Context(), userID)
	if err != nil {
		h.handleCertificateError(c, err)
		return
	}
	response.OK(c, list)
}

// List
// @Summary   All certificates
// @Tags      certificates
// @Security  BearerAuth
// @Param     session_id query string false "session filter"
// @Param     status query string false "pending|issued|failed"
// @Success   200 {object} response.Response{data=response.PageData}
// @Router    /certificates [get]
func (h *CertificateHandler) List(c *gin.Context) {
	var req dto.CertificateListRequest
	if !bindQuery(c, &req) {
		return
	}

	list, total, err := h.certSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleCertificateError(c, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Get
// @Summary   Certificate by id; staff may only read their own
// @Tags      certificates
// @Security  BearerAuth
// @Param     id path string true "certificate id"
// @Success   200 {object} response.Response{data=dto.CertificateResponse}
// @Router    /certificates/{id} [get]
func (h *CertificateHandler) Get(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	cert, err := h.certSvc.Get(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.handleCertificateError(c, err)
		return
	}
	response.OK(c, cert)
}

// Download
// @Summary   Download the issued PDF
// @Tags      certificates
// @Security  BearerAuth
// @Produce   application/pdf
// @Param     id path string true "certificate id"
// @Success   200 {file} file
// @Router    /certificates/{id}/download [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	pdf, filename, err := h.certSvc.Download(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.handleCertificateError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// Regenerate
// @Summary   Re-render and re-send a certificate
// @Tags      certificates
// @Security  BearerAuth
// @Param     id path string true "certificate id"
// @Success   200 {object} response.Response{data=dto.CertificateResponse}
// @Router    /certificates/{id}/regenerate [post]
func (h *CertificateHandler) Regenerate(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	cert, err := h.certSvc.Regenerate(c.Request.Context(), c.Param("id"), callerID)
	if err != nil {
		h.handleCertificateError(c, err)
		return
	}
	response.OK(c, cert)
}

// handleCertificateError maps certificate errors to 33xxx codes.
func (h *CertificateHandler) handleCertificateError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrCertificateNotFound):
		response.NotFound(c, 33001, "certificate not found")
	case errors.Is(err, service.ErrCertificateNotIssued):
		response.Conflict(c, 33002, "certificate has not been issued yet")
	default:
		response.InternalError(c)
	}
}
