package handler

import (
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"crisp-academy/backend/config"
	"crisp-academy/backend/internal/service"
	"crisp-academy/backend/internal/ws"
)

// Handler aggregates every HTTP handler.
type Handler struct {
	Auth        *AuthHandler
	User        *UserHandler
	Department  *DepartmentHandler
	Session     *SessionHandler
	Question    *QuestionHandler
	Progress    *ProgressHandler
	Certificate *CertificateHandler
	Trivia      *TriviaHandler
	Leaderboard *LeaderboardHandler
}

// NewHandler builds the aggregate.
func NewHandler(cfg *config.Config, svc *service.Service, hub *ws.Hub, upgrader *websocket.Upgrader, logger *zap.Logger) *Handler {
	return &Handler{
		Auth:        NewAuthHandler(svc.Auth, cfg),
		User:        NewUserHandler(svc.User),
		Department:  NewDepartmentHandler(svc.Department),
		Session:     NewSessionHandler(svc.Session),
		Question:    NewQuestionHandler(svc.Question),
		Progress:    NewProgressHandler(svc.Progress),
		Certificate: NewCertificateHandler(svc.Certificate),
		Trivia:      NewTriviaHandler(svc.Trivia, hub, upgrader, logger),
		Leaderboard: NewLeaderboardHandler(svc.Leaderboard),
	}
}
