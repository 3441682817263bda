package service

import (
	"context"

	"go.uber.org/zap"

	"crisp-academy/backend/internal/dto"
	"crisp-academy/backend/internal/repository"
)

// LeaderboardService overall ranking by accumulated score
type LeaderboardService interface {
	Overall(ctx context.Context, req *dto.LeaderboardRequest) ([]dto.LeaderboardEntry, error)
}

type leaderboardService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewLeaderboardService creates a LeaderboardService
func NewLeaderboardService(repo *repository.Repository, logger *zap.Logger) LeaderboardService {
	return &leaderboardService{repo: repo, logger: logger}
}

func (s *leaderboardService) Overall(ctx context.Context, req *dto.LeaderboardRequest) ([]dto.LeaderboardEntry, error) {
	users, err := s.repo.User.Leaderboard(ctx, req.DepartmentID, req.GetLimit())
	if err != nil {
		s.logger.Error("overall leaderboard failed", zap.Error(err))
		return nil, err
	}

	entries := make([]dto.LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entry := dto.LeaderboardEntry{
			Rank:         i + 1,
			UserID:       u.UserID,
			Name:         u.Name,
			DepartmentID: u.DepartmentID,
			Score:        u.TotalScore,
		}
		if u.Department != nil {
			entry.DepartmentName = u.Department.Name
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
