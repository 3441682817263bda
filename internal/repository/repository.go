package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository aggregates every repository behind one handle.
type Repository struct {
	db *gorm.DB

	User                UserRepository
	Role                RoleRepository
	Department          DepartmentRepository
	Session             SessionRepository
	QuestionBank        QuestionBankRepository
	Progress            ProgressRepository
	Certificate         CertificateRepository
	Trivia              TriviaRepository
	TriviaParticipation TriviaParticipationRepository
}

// NewRepository builds the aggregate on db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:                  db,
		User:                NewUserRepo(db),
		Role:                NewRoleRepo(db),
		Department:          NewDepartmentRepo(db),
		Session:             NewSessionRepo(db),
		QuestionBank:        NewQuestionBankRepo(db),
		Progress:            NewProgressRepo(db),
		Certificate:         NewCertificateRepo(db),
		Trivia:              NewTriviaRepo(db),
		TriviaParticipation: NewTriviaParticipationRepo(db),
	}
}

// BeginTx starts a transaction. Returns nil without a database (unit tests).
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	return tx, tx.Error
}

// WithTx returns an aggregate bound to tx. A nil tx returns r itself.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

// Transaction runs fn inside one database transaction, committing when fn
// returns nil. Without a database fn runs against r directly.
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
