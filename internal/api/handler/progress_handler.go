package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/service"
	"crisp-academy/backend/pkg/response"
)

// ProgressHandler session attempt endpoints for staff
type ProgressHandler struct {
	progressSvc service.ProgressService
}

// NewProgressHandler creates a ProgressHandler
func NewProgressHandler(progressSvc service.ProgressService) *ProgressHandler {
	return &ProgressHandler{progressSvc: progressSvc}
}

// Start
// @Summary   Start or resume the caller's attempt
// @Tags      progress
// @Security  BearerAuth
// @Param     id path string true "session id"
// @Success   200 {object} response.Response{data=dto.ProgressResponse}
// @Router    /sessions/{id}/start [post]
func (h *ProgressHandler) Start(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	p, err := h.progressSvc.Start(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handleProgressError(c, err)
		return
	}
	response.OK(c, p)
}

// Get
// @Summary   The caller's attempt with remaining time
// @Tags      progress
// @Security  BearerAuth
// @Param     id path string true "session id"
// @Success   200 {object} response.Response{data=dto.ProgressResponse}
// @Router    /sessions/{id}/progress [get]
func (h *ProgressHandler) Get(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	p, err := h.progressSvc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handleProgressError(c, err)
		return
	}
	response.OK(c, p)
}

// CategoryQuestions
// @Summary   Questions of the current category without answers
// @Tags      progress
// @Security  BearerAuth
// @Param     id path string true "session id"
// @Param     category path string true "CRISP category"
// @Success   200 {object} response.Response{data=dto.CategoryQuestionsResponse}
// @Router    /sessions/{id}/categories/{category}/questions [get]
func (h *ProgressHandler) CategoryQuestions(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.progressSvc.CategoryQuestions(c.Request.Context(), userID, c.Param("id"), c.Param("category"))
	if err != nil {
		h.handleProgressError(c, err)
		return
	}
	response.OK(c, result)
}

// SyncAnswers
// @Summary   Save answers of the current category
// @Tags      progress
// @Security  BearerAuth
// @Param     id path string true "session id"
// @Param     body body dto.SyncAnswersRequest true "answers"
// @Success   200 {object} response.Response{data=dto.ProgressResponse}
// @Router    /sessions/{id}/answers [put]
func (h *ProgressHandler) SyncAnswers(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.SyncAnswersRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.progressSvc.SyncAnswers(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		h.handleProgressError(c, err)
		return
	}
	response.OK(c, p)
}

// CompleteCategory
// @Summary   Finish the current category and move to the next
// @Tags      progress
// @Security  BearerAuth
// @Param     id path string true "session id"
// @Param     body body dto.CompleteCategoryRequest true "category"
// @Success   200 {object} response.Response{data=dto.ProgressResponse}
// @Router    /sessions/{id}/complete-category [post]
func (h *ProgressHandler) CompleteCategory(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.CompleteCategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	p, err := h.progressSvc.CompleteCategory(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		h.handleProgressError(c, err)
		return
	}
	response.OK(c, p)
}

// Submit
// @Summary   Score and complete the attempt
// @Tags      progress
// @Security  BearerAuth
// @Param     id path string true "session id"
// @Success   200 {object} response.Response{data=dto.ProgressResponse}
// @Router    /sessions/{id}/submit [post]
func (h *ProgressHandler) Submit(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	p, err := h.progressSvc.Submit(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.handleProgressError(c, err)
		return
	}
	response.OK(c, p)
}

// ListMine
// @Summary   The caller's attempts
// @Tags      progress
// @Security  BearerAuth
// @Success   200 {object} response.Response{data=[]dto.ProgressResponse}
// @Router    /me/progress [get]
func (h *ProgressHandler) ListMine(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	list, err := h.progressSvc.ListMine(c.Request.Context(), userID)
	if err != nil {
		h.handleProgressError(c, err)
		return
	}
	response.OK(c, list)
}

// handleProgressError maps attempt errors to 32xxx codes.
func (h *ProgressHandler) handleProgressError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, 30001, "session not found")
	case errors.Is(err, service.ErrProgressNotFound):
		response.NotFound(c, 32001, "session has not been started")
	case errors.Is(err, service.ErrProgressAlreadyCompleted):
		response.Conflict(c, 32002, "session already completed")
	case errors.Is(err, service.ErrProgressExpired):
		response.Conflict(c, 32003, "time limit reached, the attempt was submitted")
	case errors.Is(err, service.ErrSessionNotOpen):
		response.Forbidden(c, 32004, "session is not open")
	case errors.Is(err, service.ErrSessionNoQuestions):
		response.Unprocessable(c, 30005, "session has no questions")
	case errors.Is(err, service.ErrCategoryNotCurrent):
		response.Conflict(c, 32005, "category is not the current category")
	case errors.Is(err, service.ErrQuestionNotInCategory):
		response.BadRequest(c, 32006, "question does not belong to the current category")
	case errors.Is(err, service.ErrAnswerOutOfRange):
		response.BadRequest(c, 32007, "answer does not index an option")
	default:
		response.InternalError(c)
	}
}
