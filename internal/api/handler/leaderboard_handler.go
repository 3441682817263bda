package handler

import (
	"github.com/gin-gonic/gin"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/service"
	"crisp-academy/backend/pkg/response"
)

// LeaderboardHandler overall ranking
type LeaderboardHandler struct {
	leaderboardSvc service.LeaderboardService
}

// NewLeaderboardHandler creates a LeaderboardHandler
func NewLeaderboardHandler(leaderboardSvc service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardSvc: leaderboardSvc}
}

// Overall
// @Summary   Staff ranked by total score
// @Tags      leaderboard
// @Security  BearerAuth
// @Param     department_id query string false "department filter"
// @Param     limit query int false "max rows"
// @Success   200 {object} response.Response{data=[]dto.LeaderboardEntry}
// @Router    /leaderboard [get]
func (h *LeaderboardHandler) Overall(c *gin.Context) {
	var req dto.LeaderboardRequest
	if !bindQuery(c, &req) {
		return
	}

	board, err := h.leaderboardSvc.Overall(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, board)
}
