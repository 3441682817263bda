package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/service"
	"crisp-academy/backend/internal/ws"
	"crisp-academy/backend/pkg/response"
)

// TriviaHandler monthly trivia endpoints
type TriviaHandler struct {
	triviaSvc service.TriviaService
	hub       *ws.Hub
	upgrader  *websocket.Upgrader
	logger    *zap.Logger
}

// NewTriviaHandler creates a TriviaHandler
func NewTriviaHandler(triviaSvc service.TriviaService, hub *ws.Hub, upgrader *websocket.Upgrader, logger *zap.Logger) *TriviaHandler {
	return &TriviaHandler{triviaSvc: triviaSvc, hub: hub, upgrader: upgrader, logger: logger}
}

// ── admin ──

// Create
// @Summary   Create the trivia of a month
// @Tags      trivia
// @Security  BearerAuth
// @Param     body body dto.CreateTriviaRequest true "trivia"
// @Success   201 {object} response.Response{data=dto.TriviaResponse}
// @Router    /trivia [post]
func (h *TriviaHandler) Create(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.CreateTriviaRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.triviaSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleTriviaError(c, err)
		return
	}
	response.Created(c, t)
}

// Seed
// @Summary   Generate the trivia of a month
// @Tags      trivia
// @Security  BearerAuth
// @Param     body body dto.SeedTriviaRequest true "month"
// @Success   201 {object} response.Response{data=dto.TriviaResponse}
// @Router    /trivia/seed [post]
func (h *TriviaHandler) Seed(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.SeedTriviaRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.triviaSvc.Seed(c.Request.Context(), req.Month, callerID)
	if err != nil {
		h.handleTriviaError(c, err)
		return
	}
	response.Created(c, t)
}

// List
// @Summary   All trivia, newest month first
// @Tags      trivia
// @Security  BearerAuth
// @Success   200 {object} response.Response{data=response.PageData}
// @Router    /trivia [get]
func (h *TriviaHandler) List(c *gin.Context) {
	var req dto.PaginationRequest
	if !bindQuery(c, &req) {
		return
	}

	list, total, err := h.triviaSvc.List(c.Request.Context(), &req)
	if err != nil {
		h.handleTriviaError(c, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Update
// @Summary   Update a trivia
// @Tags      trivia
// @Security  BearerAuth
// @Param     id path string true "trivia id"
// @Param     body body dto.UpdateTriviaRequest true "fields"
// @Success   200 {object} response.Response{data=dto.TriviaResponse}
// @Router    /trivia/{id} [put]
func (h *TriviaHandler) Update(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.UpdateTriviaRequest
	if !bindJSON(c, &req) {
		return
	}

	t, err := h.triviaSvc.Update(c.Request.Context(), c.Param("id"), &req, callerID)
	if err != nil {
		h.handleTriviaError(c, err)
		return
	}
	response.OK(c, t)
}

// Delete
// @Summary   Delete a trivia
// @Tags      trivia
// @Security  BearerAuth
// @Param     id path string true "trivia id"
// @Success   200 {object} response.Response
// @Router    /trivia/{id} [delete]
func (h *TriviaHandler) Delete(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.triviaSvc.Delete(c.Request.Context(), c.Param("id"), callerID); err != nil {
		h.handleTriviaError(c, err)
		return
	}
	response.OK(c, nil)
}

// ── staff ──

// Current
// @Summary   The open trivia without answers
// @Tags      trivia
// @Security  BearerAuth
// @Success   200 {object} response.Response{data=dto.TriviaResponse}
// @Router    /trivia/current [get]
func (h *TriviaHandler) Current(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	t, err := h.triviaSvc.Current(c.Request.Context(), caller)
	if err != nil {
		h.handleTriviaError(c, err)
		return
	}
	response.OK(c, t)
}

// Get
// @Summary   Trivia by id; answers are hidden from staff
// @Tags      trivia
// @Security  BearerAuth
// @Param     id path string true "trivia id"
// @Success   200 {object} response.Response{data=dto.TriviaResponse}
// @Router    /trivia/{id} [get]
func (h *TriviaHandler) Get(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	t, err := h.triviaSvc.Get(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.handleTriviaError(c, err)
		return
	}
	response.OK(c, t)
}

// Participate
// @Summary   Submit answers once
// @Tags      trivia
// @Security  BearerAuth
// @Param     id path string true "trivia id"
// @Param     body body dto.ParticipateRequest true "answers"
// @Success   201 {object} response.Response{data=dto.ParticipationResponse}
// @Router    /trivia/{id}/participate [post]
func (h *TriviaHandler) Participate(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	var req dto.ParticipateRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.triviaSvc.Participate(c.Request.Context(), c.Param("id"), userID, &req)
	if err != nil {
		h.handleTriviaError(c, err)
		return
	}
	response.Created(c, result)
}

// MyParticipation
// @Summary   The caller's result with correct answers
// @Tags      trivia
// @Security  BearerAuth
// @Param     id path string true "trivia id"
// @Success   200 {object} response.Response{data=dto.ParticipationResponse}
// @Router    /trivia/{id}/participation [get]
func (h *TriviaHandler) MyParticipation(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.triviaSvc.MyParticipation(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.handleTriviaError(c, err)
		return
	}
	response.OK(c, result)
}

// Leaderboard
// @Summary   Ranking of a trivia
// @Tags      trivia
// @Security  BearerAuth
// @Param     id path string true "trivia id"
// @Param     limit query int false "max rows"
// @Success   200 {object} response.Response{data=[]dto.LeaderboardEntry}
// @Router    /trivia/{id}/leaderboard [get]
func (h *TriviaHandler) Leaderboard(c *gin.Context) {
	var req dto.LeaderboardRequest
	if !bindQuery(c, &req) {
		return
	}

	board, err := h.triviaSvc.Leaderboard(c.Request.Context(), c.Param("id"), req.GetLimit())
	if err != nil {
		h.handleTriviaError(c, err)
		return
	}
	response.OK(c, board)
}

// Live
// @Summary   Websocket of leaderboard updates; pass the token as access_token
// @Tags      trivia
// @Security  BearerAuth
// @Param     id path string true "trivia id"
// @Router    /trivia/{id}/live [get]
func (h *TriviaHandler) Live(c *gin.Context) {
	id := c.Param("id")
	board, err := h.triviaSvc.Leaderboard(c.Request.Context(), id, service.LiveLeaderboardSize)
	if err != nil {
		h.handleTriviaError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Debug("websocket upgrade failed", zap.String("trivia_id", id), zap.Error(err))
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(ws.Message{Type: service.MessageTriviaLeaderboard, Data: board}); err != nil {
		_ = conn.Close()
		return
	}
	h.hub.Serve(service.TriviaRoom(id), conn)
}

// handleTriviaError maps trivia errors to 40xxx codes.
func (h *TriviaHandler) handleTriviaError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrTriviaNotFound):
		response.NotFound(c, 40001, "trivia not found")
	case errors.Is(err, service.ErrTriviaMonthExists):
		response.Conflict(c, 40002, "trivia for this month already exists")
	case errors.Is(err, service.ErrTriviaWindowInvalid):
		response.BadRequest(c, 40003, "ends_at must be after starts_at")
	case errors.Is(err, service.ErrTriviaNotOpen):
		response.Forbidden(c, 40004, "trivia is not open")
	case errors.Is(err, service.ErrTriviaAlreadyParticipated):
		response.Conflict(c, 40005, "you have already taken this trivia")
	case errors.Is(err, service.ErrTriviaAnswerCount):
		response.BadRequest(c, 40006, "answer count does not match question count")
	case errors.Is(err, service.ErrTriviaHasParticipations):
		response.Conflict(c, 40007, "questions cannot change once staff have participated")
	case errors.Is(err, service.ErrTriviaParticipationMissing):
		response.NotFound(c, 40008, "you have not taken this trivia")
	case errors.Is(err, service.ErrTriviaQuestionInvalid),
		errors.Is(err, service.ErrCorrectOptionRange):
		response.BadRequest(c, 40009, err.Error())
	default:
		response.InternalError(c)
	}
}
