package service

import (
	"go.uber.org/zap"

	"crisp-academy/backend/config"
	"crisp-academy/backend/internal/queue"
	"crisp-academy/backend/internal/repository"
	"crisp-academy/backend/pkg/jwt"
	"crisp-academy/backend/pkg/redis"
	"crisp-academy/backend/pkg/storage"
)

// Caller identity of the authenticated user making a request.
type Caller struct {
	UserID       string
	Role         string
	DepartmentID string
}

// Service aggregates every service.
type Service struct {
	Auth        AuthService
	User        UserService
	Department  DepartmentService
	Session     SessionService
	Question    QuestionService
	Progress    ProgressService
	Certificate CertificateService
	Trivia      TriviaService
	Leaderboard LeaderboardService
}

// Deps collaborators shared by the services. Redis, Enqueuer and
// Broadcaster may be nil; the affected features degrade.
type Deps struct {
	Config      *config.Config
	Repo        *repository.Repository
	JWT         *jwt.Manager
	Redis       *redis.Client
	Enqueuer    queue.Enqueuer
	Store       storage.Store
	Renderer    CertificateRenderer
	Generator   TriviaGenerator
	Broadcaster Broadcaster
	Logger      *zap.Logger
}

// NewService builds the aggregate.
func NewService(d Deps) *Service {
	generator := d.Generator
	if generator == nil {
		generator = NewStaticTriviaGenerator()
	}
	return &Service{
		Auth:        NewAuthService(d.Config, d.Repo, d.JWT, d.Redis, d.Enqueuer, d.Logger),
		User:        NewUserService(d.Repo, d.Enqueuer, d.Logger),
		Department:  NewDepartmentService(d.Repo, d.Logger),
		Session:     NewSessionService(d.Repo, d.Logger),
		Question:    NewQuestionService(d.Repo, d.Logger),
		Progress:    NewProgressService(d.Repo, d.Enqueuer, d.Logger),
		Certificate: NewCertificateService(d.Repo, d.Store, d.Renderer, d.Enqueuer, d.Logger),
		Trivia:      NewTriviaService(d.Repo, generator, d.Broadcaster, d.Config.Trivia.QuestionsPerMonth, d.Logger),
		Leaderboard: NewLeaderboardService(d.Repo, d.Logger),
	}
}
