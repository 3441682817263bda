package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/service"
	pkgerrors "crisp-academy/backend/pkg/errors"
	"crisp-academy/backend/pkg/response"
)

// SessionHandler learning session endpoints
type SessionHandler struct {
	sessionSvc service.SessionService
}

// NewSessionHandler creates a SessionHandler
func NewSessionHandler(sessionSvc service.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

// Create
// @Summary   Create a draft session
// @Tags      sessions
// @Security  BearerAuth
// @Param     body body dto.CreateSessionRequest true "session"
// @Success   201 {object} response.Response{data=dto.SessionResponse}
// @Router    /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.CreateSessionRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.sessionSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	response.Created(c, session)
}

// List
// @Summary   List sessions; staff only see published and closed ones
// @Tags      sessions
// @Security  BearerAuth
// @Param     status query string false "draft|published|closed"
// @Success   200 {object} response.Response{data=response.PageData}
// @Router    /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	var req dto.SessionListRequest
	if !bindQuery(c, &req) {
		return
	}

	list, total, err := h.sessionSvc.List(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Get
// @Summary   Session by id
// @Tags      sessions
// @Security  BearerAuth
// @Param     id path string true "session id"
// @Success   200 {object} response.Response{data=dto.SessionResponse}
// @Router    /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	session, err := h.sessionSvc.Get(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	response.OK(c, session)
}

// Update
// @Summary   Update a session; requires the current version
// @Tags      sessions
// @Security  BearerAuth
// @Param     id path string true "session id"
// @Param     body body dto.UpdateSessionRequest true "fields"
// @Success   200 {object} response.Response{data=dto.SessionResponse}
// @Router    /sessions/{id} [put]
func (h *SessionHandler) Update(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.UpdateSessionRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.sessionSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	response.OK(c, session)
}

// Delete
// @Summary   Delete a session without attempts
// @Tags      sessions
// @Security  BearerAuth
// @Param     id path string true "session id"
// @Success   200 {object} response.Response
// @Router    /sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.sessionSvc.Delete(c.Request.Context(), c.Param("id"), callerID); err != nil {
		h.handleSessionError(c, err)
		return
	}
	response.OK(c, nil)
}

// Publish
// @Summary   Publish a draft session
// @Tags      sessions
// @Security  BearerAuth
// @Param     id path string true "session id"
// @Success   200 {object} response.Response{data=dto.SessionResponse}
// @Router    /sessions/{id}/publish [post]
func (h *SessionHandler) Publish(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionSvc.Publish(c.Request.Context(), c.Param("id"), callerID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	response.OK(c, session)
}

// Close
// @Summary   Close a published session
// @Tags      sessions
// @Security  BearerAuth
// @Param     id path string true "session id"
// @Success   200 {object} response.Response{data=dto.SessionResponse}
// @Router    /sessions/{id}/close [post]
func (h *SessionHandler) Close(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionSvc.Close(c.Request.Context(), c.Param("id"), callerID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	response.OK(c, session)
}

// Results
// @Summary   Attempts of a session; HODs are limited to their department
// @Tags      sessions
// @Security  BearerAuth
// @Param     id path string true "session id"
// @Param     department_id query string false "department filter"
// @Success   200 {object} response.Response{data=response.PageData}
// @Router    /sessions/{id}/results [get]
func (h *SessionHandler) Results(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	var req dto.SessionResultsRequest
	if !bindQuery(c, &req) {
		return
	}

	list, total, err := h.sessionSvc.Results(c.Request.Context(), c.Param("id"), &req, caller)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// ExportResults
// @Summary   Download the results as xlsx
// @Tags      sessions
// @Security  BearerAuth
// @Produce   application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param     id path string true "session id"
// @Param     department_id query string false "department filter"
// @Success   200 {file} file
// @Router    /sessions/{id}/results/export [get]
func (h *SessionHandler) ExportResults(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	buf, filename, err := h.sessionSvc.ExportResults(c.Request.Context(), c.Param("id"), c.Query("department_id"), caller)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// handleSessionError maps session errors to 30xxx codes.
func (h *SessionHandler) handleSessionError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, 30001, "session not found")
	case errors.Is(err, service.ErrSessionWindowInvalid):
		response.BadRequest(c, 30002, "ends_at must be after starts_at")
	case errors.Is(err, service.ErrSessionLocked):
		response.Conflict(c, 30003, "duration and pass mark are locked once staff have started the session")
	case errors.Is(err, service.ErrSessionHasProgress):
		response.Conflict(c, 30004, "session already has attempts")
	case errors.Is(err, service.ErrSessionNoQuestions):
		response.Unprocessable(c, 30005, "session has no questions")
	case errors.Is(err, service.ErrSessionInvalidStatus):
		response.Conflict(c, 30006, "session status does not allow this operation")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 30007, "session was modified by someone else, reload and retry")
	default:
		response.InternalError(c)
	}
}
