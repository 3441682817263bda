package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/service"
	"crisp-academy/backend/pkg/response"
)

// QuestionHandler question bank endpoints
type QuestionHandler struct {
	questionSvc service.QuestionService
}

// NewQuestionHandler creates a QuestionHandler
func NewQuestionHandler(questionSvc service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionSvc: questionSvc}
}

// List
// @Summary   Questions of a session with answers, in CRISP order
// @Tags      questions
// @Security  BearerAuth
// @Param     id path string true "session id"
// @Success   200 {object} response.Response{data=[]dto.QuestionResponse}
// @Router    /sessions/{id}/questions [get]
func (h *QuestionHandler) List(c *gin.Context) {
	list, err := h.questionSvc.ListBySession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleQuestionError(c, err)
		return
	}
	response.OK(c, list)
}

// Create
// @Summary   Add a question to a session
// @Tags      questions
// @Security  BearerAuth
// @Param     id path string true "session id"
// @Param     body body dto.CreateQuestionRequest true "question"
// @Success   201 {object} response.Response{data=dto.QuestionResponse}
// @Router    /sessions/{id}/questions [post]
func (h *QuestionHandler) Create(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.CreateQuestionRequest
	if !bindJSON(c, &req) {
		return
	}

	q, err := h.questionSvc.Create(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		h.handleQuestionError(c, err)
		return
	}
	response.Created(c, q)
}

// Update
// @Summary   Update a question
// @Tags      questions
// @Security  BearerAuth
// @Param     qid path string true "question id"
// @Param     body body dto.UpdateQuestionRequest true "fields"
// @Success   200 {object} response.Response{data=dto.QuestionResponse}
// @Router    /questions/{qid} [put]
func (h *QuestionHandler) Update(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.UpdateQuestionRequest
	if !bindJSON(c, &req) {
		return
	}

	q, err := h.questionSvc.Update(c.Request.Context(), c.Param("qid"), &req, callerID)
	if err != nil {
		h.handleQuestionError(c, err)
		return
	}
	response.OK(c, q)
}

// Delete
// @Summary   Delete a question
// @Tags      questions
// @Security  BearerAuth
// @Param     qid path string true "question id"
// @Success   200 {object} response.Response
// @Router    /questions/{qid} [delete]
func (h *QuestionHandler) Delete(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.questionSvc.Delete(c.Request.Context(), c.Param("qid"), callerID); err != nil {
		h.handleQuestionError(c, err)
		return
	}
	response.OK(c, nil)
}

// Import
// @Summary   Bulk-add questions from an xlsx sheet
// @Tags      questions
// @Security  BearerAuth
// @Accept    multipart/form-data
// @Param     id path string true "session id"
// @Param     file formData file true "xlsx workbook"
// @Success   200 {object} response.Response{data=dto.ImportResponse}
// @Router    /sessions/{id}/questions/import [post]
func (h *QuestionHandler) Import(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	f, ok := uploadedFile(c)
	if !ok {
		return
	}
	defer f.Close()

	rows, err := h.questionSvc.ParseImportFile(f)
	if err != nil {
		handleImportParseError(c, err)
		return
	}

	result, err := h.questionSvc.Import(c.Request.Context(), c.Param("id"), rows, callerID)
	if err != nil {
		h.handleQuestionError(c, err)
		return
	}
	response.OK(c, result)
}

// handleQuestionError maps question errors to 31xxx codes.
func (h *QuestionHandler) handleQuestionError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrQuestionNotFound):
		response.NotFound(c, 31001, "question not found")
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, 30001, "session not found")
	case errors.Is(err, service.ErrCorrectOptionRange):
		response.BadRequest(c, 31002, "correct_option must index one of the options")
	case errors.Is(err, service.ErrQuestionSessionLocked):
		response.Conflict(c, 31003, "questions cannot change once staff have started the session")
	default:
		response.InternalError(c)
	}
}
