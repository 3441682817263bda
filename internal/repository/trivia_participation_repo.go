package repository

import (
	"context"

	"gorm.io/gorm"

	"crisp-academy/backend/internal/model"
)

// TriviaParticipationRepository trivia submissions
type TriviaParticipationRepository interface {
	Create(ctx context.Context, p *model.TriviaParticipation) error
	GetByUserAndTrivia(ctx context.Context, userID, triviaID string) (*model.TriviaParticipation, error)
	// Leaderboard best scores of a trivia, earliest submission first on ties
	Leaderboard(ctx context.Context, triviaID string, limit int) ([]model.TriviaParticipation, error)
}

type triviaParticipationRepo struct {
	db *gorm.DB
}

// NewTriviaParticipationRepo creates a TriviaParticipationRepository
func NewTriviaParticipationRepo(db *gorm.DB) TriviaParticipationRepository {
	return &triviaParticipationRepo{db: db}
}

func (r *triviaParticipationRepo) Create(ctx context.Context, p *model.TriviaParticipation) error {
	return r.db.WithContext(ctx).Omit("User").Create(p).Error
}

func (r *triviaParticipationRepo) GetByUserAndTrivia(ctx context.Context, userID, triviaID string) (*model.TriviaParticipation, error) {
	var p model.TriviaParticipation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND trivia_id = ?", userID, triviaID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *triviaParticipationRepo) Leaderboard(ctx context.Context, triviaID string, limit int) ([]model.TriviaParticipation, error) {
	var list []model.TriviaParticipation
	err := r.db.WithContext(ctx).
		Preload("User").Preload("User.Department").
		Where("trivia_id = ?", triviaID).
		Order("score DESC, submitted_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
