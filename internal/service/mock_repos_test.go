package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"crisp-academy/backend/internal/model"
	"crisp-academy/backend/internal/queue"
	"crisp-academy/backend/internal/repository"
	"crisp-academy/backend/internal/ws"
	"crisp-academy/backend/pkg/certificate"
	pkgerrors "crisp-academy/backend/pkg/errors"
)

var errDuplicateKey = errors.New("duplicate key value violates unique constraint")

// ═══════════════════════════════════════════════════════════
// repository aggregate
// ═══════════════════════════════════════════════════════════

type testRepos struct {
	users          *mockUserRepo
	roles          *mockRoleRepo
	depts          *mockDeptRepo
	sessions       *mockSessionRepo
	questions      *mockQuestionRepo
	progress       *mockProgressRepo
	certs          *mockCertificateRepo
	trivia         *mockTriviaRepo
	participations *mockParticipationRepo
}

// newTestRepository builds an aggregate without a database, so
// Transaction and BeginTx run directly against the mocks.
func newTestRepository() (*repository.Repository, *testRepos) {
	m := &testRepos{
		roles:          newMockRoleRepo(),
		depts:          newMockDeptRepo(),
		sessions:       newMockSessionRepo(),
		questions:      newMockQuestionRepo(),
		progress:       newMockProgressRepo(),
		certs:          newMockCertificateRepo(),
		trivia:         newMockTriviaRepo(),
		participations: newMockParticipationRepo(),
	}
	m.users = newMockUserRepo(m.depts)
	m.depts.users = m.users

	repo := &repository.Repository{
		User:                m.users,
		Role:                m.roles,
		Department:          m.depts,
		Session:             m.sessions,
		QuestionBank:        m.questions,
		Progress:            m.progress,
		Certificate:         m.certs,
		Trivia:              m.trivia,
		TriviaParticipation: m.participations,
	}
	return repo, m
}

const (
	testDeptNursing  = "dept-nursing"
	testDeptPharmacy = "dept-pharmacy"
)

// seedUser stores a user with a bcrypt hash of password.
func (m *testRepos) seedUser(id, staffID, role, deptID, password string) *model.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := &model.User{
		UserID:       id,
		Name:         "Staff " + staffID,
		StaffID:      staffID,
		Email:        strings.ToLower(staffID) + "@crisp.test",
		PasswordHash: string(hash),
		Role:         role,
		DepartmentID: deptID,
	}
	m.users.users[id] = user
	return user
}

// ── users ──

type mockUserRepo struct {
	users map[string]*model.User
	depts *mockDeptRepo
	// beforeUpdate runs inside Update, standing in for a concurrent writer
	beforeUpdate func()
}

func newMockUserRepo(depts *mockDeptRepo) *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User), depts: depts}
}

// withDepartment returns a detached copy of u, like a row read from the database.
func (m *mockUserRepo) withDepartment(u *model.User) *model.User {
	cp := *u
	if d, ok := m.depts.departments[cp.DepartmentID]; ok {
		cp.Department = d
	}
	return &cp
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.StaffID == user.StaffID || strings.EqualFold(u.Email, user.Email) {
			return errDuplicateKey
		}
	}
	if user.UserID == "" {
		user.UserID = uuid.NewString()
	}
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return m.withDepartment(u), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByStaffID(_ context.Context, staffID string) (*model.User, error) {
	for _, u := range m.users {
		if u.StaffID == staffID {
			return m.withDepartment(u), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return m.withDepartment(u), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// Update copies the columns the gorm repository writes.
func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate()
	}
	stored, ok := m.users[user.UserID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Name = user.Name
	stored.StaffID = user.StaffID
	stored.Email = user.Email
	stored.PasswordHash = user.PasswordHash
	stored.Role = user.Role
	stored.DepartmentID = user.DepartmentID
	stored.MustChangePassword = user.MustChangePassword
	stored.UpdatedBy = user.UpdatedBy
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) ListWithFilters(_ context.Context, filters *repository.UserListFilters, offset, limit int) ([]model.User, int64, error) {
	var matched []model.User
	for _, u := range m.users {
		if filters.DepartmentID != "" && u.DepartmentID != filters.DepartmentID {
			continue
		}
		if filters.Role != "" && u.Role != filters.Role {
			continue
		}
		if kw := strings.ToLower(filters.Keyword); kw != "" &&
			!strings.Contains(strings.ToLower(u.Name), kw) &&
			!strings.Contains(strings.ToLower(u.StaffID), kw) &&
			!strings.Contains(strings.ToLower(u.Email), kw) {
			continue
		}
		matched = append(matched, *m.withDepartment(u))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StaffID < matched[j].StaffID })
	return page(matched, offset, limit), int64(len(matched)), nil
}

func (m *mockUserRepo) ListByIDs(_ context.Context, ids []string) ([]model.User, error) {
	var result []model.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			result = append(result, *u)
		}
	}
	return result, nil
}

func (m *mockUserRepo) AddScore(_ context.Context, userID string, delta int) error {
	u, ok := m.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.TotalScore += delta
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	if u, ok := m.users[userID]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

func (m *mockUserRepo) Leaderboard(_ context.Context, departmentID string, limit int) ([]model.User, error) {
	var result []model.User
	for _, u := range m.users {
		if departmentID != "" && u.DepartmentID != departmentID {
			continue
		}
		result = append(result, *m.withDepartment(u))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalScore != result[j].TotalScore {
			return result[i].TotalScore > result[j].TotalScore
		}
		return result[i].Name < result[j].Name
	})
	return page(result, 0, limit), nil
}

// ── roles ──

type mockRoleRepo struct {
	roles []model.Role
}

func newMockRoleRepo() *mockRoleRepo {
	return &mockRoleRepo{roles: []model.Role{
		{Code: model.RoleAdmin, Name: "Administrator"},
		{Code: model.RoleHOD, Name: "Head of Department"},
		{Code: model.RoleStaff, Name: "Staff"},
	}}
}

func (m *mockRoleRepo) List(_ context.Context) ([]model.Role, error) {
	return m.roles, nil
}

func (m *mockRoleRepo) GetByCode(_ context.Context, code string) (*model.Role, error) {
	for i := range m.roles {
		if m.roles[i].Code == code {
			return &m.roles[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── departments ──

type mockDeptRepo struct {
	departments map[string]*model.Department
	users       *mockUserRepo
}

func newMockDeptRepo() *mockDeptRepo {
	return &mockDeptRepo{
		departments: map[string]*model.Department{
			testDeptNursing:  {DepartmentID: testDeptNursing, Name: "Nursing", IsActive: true},
			testDeptPharmacy: {DepartmentID: testDeptPharmacy, Name: "Pharmacy", IsActive: true},
		},
	}
}

func (m *mockDeptRepo) Create(_ context.Context, dept *model.Department) error {
	if dept.DepartmentID == "" {
		dept.DepartmentID = uuid.NewString()
	}
	m.departments[dept.DepartmentID] = dept
	return nil
}

func (m *mockDeptRepo) GetByID(_ context.Context, id string) (*model.Department, error) {
	if d, ok := m.departments[id]; ok {
		return d, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDeptRepo) GetByName(_ context.Context, name string) (*model.Department, error) {
	for _, d := range m.departments {
		if strings.EqualFold(d.Name, name) {
			return d, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDeptRepo) List(_ context.Context) ([]model.Department, error) {
	var result []model.Department
	for _, d := range m.departments {
		if d.IsActive {
			result = append(result, *d)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *mockDeptRepo) ListAll(_ context.Context) ([]model.Department, error) {
	var result []model.Department
	for _, d := range m.departments {
		result = append(result, *d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *mockDeptRepo) Update(_ context.Context, dept *model.Department) error {
	m.departments[dept.DepartmentID] = dept
	return nil
}

func (m *mockDeptRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.departments, id)
	return nil
}

func (m *mockDeptRepo) CountMembers(_ context.Context, departmentID string) (int64, error) {
	var n int64
	if m.users == nil {
		return 0, nil
	}
	for _, u := range m.users.users {
		if u.DepartmentID == departmentID {
			n++
		}
	}
	return n, nil
}

func (m *mockDeptRepo) BatchCountMembers(ctx context.Context, departmentIDs []string) (map[string]int64, error) {
	result := make(map[string]int64, len(departmentIDs))
	for _, id := range departmentIDs {
		n, _ := m.CountMembers(ctx, id)
		if n > 0 {
			result[id] = n
		}
	}
	return result, nil
}

// ── sessions ──

// mockSessionRepo stores copies so version checks behave like the database.
type mockSessionRepo struct {
	sessions map[string]model.Session
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[string]model.Session)}
}

func (m *mockSessionRepo) Create(_ context.Context, s *model.Session) error {
	if s.SessionID == "" {
		s.SessionID = uuid.NewString()
	}
	if s.Version == 0 {
		s.Version = 1
	}
	m.sessions[s.SessionID] = *s
	return nil
}

func (m *mockSessionRepo) GetByID(_ context.Context, id string) (*model.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (m *mockSessionRepo) List(_ context.Context, filters *repository.SessionListFilters, offset, limit int) ([]model.Session, int64, error) {
	var matched []model.Session
	for _, s := range m.sessions {
		if filters.Status != "" && s.Status != filters.Status {
			continue
		}
		if filters.AvailableAt != nil && !s.IsOpenAt(*filters.AvailableAt) {
			continue
		}
		matched = append(matched, s)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Title < matched[j].Title })
	return page(matched, offset, limit), int64(len(matched)), nil
}

func (m *mockSessionRepo) Update(_ context.Context, s *model.Session) error {
	stored, ok := m.sessions[s.SessionID]
	if !ok || stored.Version != s.Version {
		return pkgerrors.ErrOptimisticLock
	}
	s.Version++
	m.sessions[s.SessionID] = *s
	return nil
}

func (m *mockSessionRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.sessions, id)
	return nil
}

// ── question bank ──

type mockQuestionRepo struct {
	questions map[string]model.QuestionBank
	failBatch bool
}

func newMockQuestionRepo() *mockQuestionRepo {
	return &mockQuestionRepo{questions: make(map[string]model.QuestionBank)}
}

func (m *mockQuestionRepo) Create(_ context.Context, q *model.QuestionBank) error {
	if q.QuestionBankID == "" {
		q.QuestionBankID = uuid.NewString()
	}
	m.questions[q.QuestionBankID] = *q
	return nil
}

func (m *mockQuestionRepo) BatchCreate(ctx context.Context, questions []model.QuestionBank) error {
	if m.failBatch {
		return errors.New("batch insert failed")
	}
	for i := range questions {
		if err := m.Create(ctx, &questions[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockQuestionRepo) GetByID(_ context.Context, id string) (*model.QuestionBank, error) {
	q, ok := m.questions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &q, nil
}

func (m *mockQuestionRepo) Update(_ context.Context, q *model.QuestionBank) error {
	m.questions[q.QuestionBankID] = *q
	return nil
}

func (m *mockQuestionRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.questions, id)
	return nil
}

func (m *mockQuestionRepo) ListBySession(_ context.Context, sessionID string) ([]model.QuestionBank, error) {
	var result []model.QuestionBank
	for _, q := range m.questions {
		if q.SessionID == sessionID {
			result = append(result, q)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].OrderNum != result[j].OrderNum {
			return result[i].OrderNum < result[j].OrderNum
		}
		return result[i].Question < result[j].Question
	})
	return result, nil
}

func (m *mockQuestionRepo) ListBySessionAndCategory(ctx context.Context, sessionID, category string) ([]model.QuestionBank, error) {
	all, _ := m.ListBySession(ctx, sessionID)
	var result []model.QuestionBank
	for _, q := range all {
		if q.Category == category {
			result = append(result, q)
		}
	}
	return result, nil
}

func (m *mockQuestionRepo) CountByCategory(_ context.Context, sessionID string) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, q := range m.questions {
		if q.SessionID == sessionID {
			counts[q.Category]++
		}
	}
	return counts, nil
}

// ── progress ──

// mockProgressRepo stores copies so Complete can detect a finished attempt.
type mockProgressRepo struct {
	mu       sync.Mutex
	attempts map[string]model.UserSessionProgress
	// beforeUpdate runs inside Update before the lock, standing in for a concurrent writer
	beforeUpdate func()
}

func newMockProgressRepo() *mockProgressRepo {
	return &mockProgressRepo{attempts: make(map[string]model.UserSessionProgress)}
}

func (m *mockProgressRepo) Create(_ context.Context, p *model.UserSessionProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.UserID == p.UserID && a.SessionID == p.SessionID {
			return errDuplicateKey
		}
	}
	if p.ProgressID == "" {
		p.ProgressID = uuid.NewString()
	}
	m.attempts[p.ProgressID] = *p
	return nil
}

func (m *mockProgressRepo) GetByID(_ context.Context, id string) (*model.UserSessionProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (m *mockProgressRepo) GetByUserAndSession(_ context.Context, userID, sessionID string) (*model.UserSessionProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.attempts {
		if p.UserID == userID && p.SessionID == sessionID {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockProgressRepo) Update(_ context.Context, p *model.UserSessionProgress) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.attempts[p.ProgressID]
	if !ok || stored.Status != model.ProgressStatusInProgress {
		return pkgerrors.ErrOptimisticLock
	}
	stored.Answers = p.Answers
	stored.CurrentCategory = p.CurrentCategory
	stored.CompletedCategories = p.CompletedCategories
	stored.LastSyncedAt = p.LastSyncedAt
	stored.UpdatedBy = p.UpdatedBy
	m.attempts[p.ProgressID] = stored
	return nil
}

func (m *mockProgressRepo) Complete(_ context.Context, p *model.UserSessionProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.attempts[p.ProgressID]
	if !ok || stored.Status != model.ProgressStatusInProgress {
		return pkgerrors.ErrOptimisticLock
	}
	p.Status = model.ProgressStatusCompleted
	m.attempts[p.ProgressID] = *p
	return nil
}

func (m *mockProgressRepo) ListByUser(_ context.Context, userID string) ([]model.UserSessionProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.UserSessionProgress
	for _, p := range m.attempts {
		if p.UserID == userID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockProgressRepo) ListBySession(_ context.Context, sessionID, departmentID string, offset, limit int) ([]model.UserSessionProgress, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []model.UserSessionProgress
	for _, p := range m.attempts {
		if p.SessionID != sessionID {
			continue
		}
		if departmentID != "" && (p.User == nil || p.User.DepartmentID != departmentID) {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartedAt.Before(matched[j].StartedAt) })
	return page(matched, offset, limit), int64(len(matched)), nil
}

func (m *mockProgressRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]model.UserSessionProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.UserSessionProgress
	for _, p := range m.attempts {
		if p.Status == model.ProgressStatusInProgress && p.ExpiresAt.Before(now) {
			result = append(result, p)
		}
	}
	return page(result, 0, limit), nil
}

func (m *mockProgressRepo) CountBySession(_ context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.attempts {
		if p.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

func (m *mockProgressRepo) CountCompletedByUsers(_ context.Context, userIDs []string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	result := make(map[string]int64)
	for _, p := range m.attempts {
		if wanted[p.UserID] && p.Status == model.ProgressStatusCompleted {
			result[p.UserID]++
		}
	}
	return result, nil
}

// ── certificates ──

type mockCertificateRepo struct {
	certs map[string]model.Certificate
}

func newMockCertificateRepo() *mockCertificateRepo {
	return &mockCertificateRepo{certs: make(map[string]model.Certificate)}
}

func (m *mockCertificateRepo) Create(_ context.Context, cert *model.Certificate) error {
	for _, c := range m.certs {
		if c.UserID == cert.UserID && c.SessionID == cert.SessionID {
			return errDuplicateKey
		}
	}
	if cert.CertificateID == "" {
		cert.CertificateID = uuid.NewString()
	}
	m.certs[cert.CertificateID] = *cert
	return nil
}

func (m *mockCertificateRepo) GetByID(_ context.Context, id string) (*model.Certificate, error) {
	c, ok := m.certs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (m *mockCertificateRepo) GetByUserAndSession(_ context.Context, userID, sessionID string) (*model.Certificate, error) {
	for _, c := range m.certs {
		if c.UserID == userID && c.SessionID == sessionID {
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCertificateRepo) Update(_ context.Context, cert *model.Certificate) error {
	m.certs[cert.CertificateID] = *cert
	return nil
}

func (m *mockCertificateRepo) ListByUser(_ context.Context, userID string) ([]model.Certificate, error) {
	var result []model.Certificate
	for _, c := range m.certs {
		if c.UserID == userID {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *mockCertificateRepo) List(_ context.Context, filters *repository.CertificateListFilters, offset, limit int) ([]model.Certificate, int64, error) {
	var matched []model.Certificate
	for _, c := range m.certs {
		if filters.SessionID != "" && c.SessionID != filters.SessionID {
			continue
		}
		if filters.Status != "" && c.Status != filters.Status {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CertificateNumber < matched[j].CertificateNumber })
	return page(matched, offset, limit), int64(len(matched)), nil
}

// ── trivia ──

type mockTriviaRepo struct {
	trivia map[string]model.Trivia
	// beforeCreate runs inside Create, standing in for a concurrent writer
	beforeCreate func()
}

func newMockTriviaRepo() *mockTriviaRepo {
	return &mockTriviaRepo{trivia: make(map[string]model.Trivia)}
}

func (m *mockTriviaRepo) Create(_ context.Context, t *model.Trivia) error {
	if m.beforeCreate != nil {
		m.beforeCreate()
	}
	for _, existing := range m.trivia {
		if existing.Month == t.Month {
			return errDuplicateKey
		}
	}
	if t.TriviaID == "" {
		t.TriviaID = uuid.NewString()
	}
	m.trivia[t.TriviaID] = *t
	return nil
}

func (m *mockTriviaRepo) GetByID(_ context.Context, id string) (*model.Trivia, error) {
	t, ok := m.trivia[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &t, nil
}

func (m *mockTriviaRepo) GetByMonth(_ context.Context, month string) (*model.Trivia, error) {
	for _, t := range m.trivia {
		if t.Month == month {
			return &t, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTriviaRepo) GetCurrent(_ context.Context, now time.Time) (*model.Trivia, error) {
	for _, t := range m.trivia {
		if t.IsOpenAt(now) {
			return &t, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTriviaRepo) List(_ context.Context, offset, limit int) ([]model.Trivia, int64, error) {
	var all []model.Trivia
	for _, t := range m.trivia {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Month > all[j].Month })
	return page(all, offset, limit), int64(len(all)), nil
}

func (m *mockTriviaRepo) Update(_ context.Context, t *model.Trivia) error {
	m.trivia[t.TriviaID] = *t
	return nil
}

func (m *mockTriviaRepo) Delete(_ context.Context, id string, _ string) error {
	delete(m.trivia, id)
	return nil
}

// ── trivia participations ──

type mockParticipationRepo struct {
	participations []model.TriviaParticipation
}

func newMockParticipationRepo() *mockParticipationRepo {
	return &mockParticipationRepo{}
}

func (m *mockParticipationRepo) Create(_ context.Context, p *model.TriviaParticipation) error {
	for _, existing := range m.participations {
		if existing.UserID == p.UserID && existing.TriviaID == p.TriviaID {
			return errDuplicateKey
		}
	}
	if p.ParticipationID == "" {
		p.ParticipationID = uuid.NewString()
	}
	m.participations = append(m.participations, *p)
	return nil
}

func (m *mockParticipationRepo) GetByUserAndTrivia(_ context.Context, userID, triviaID string) (*model.TriviaParticipation, error) {
	for _, p := range m.participations {
		if p.UserID == userID && p.TriviaID == triviaID {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockParticipationRepo) Leaderboard(_ context.Context, triviaID string, limit int) ([]model.TriviaParticipation, error) {
	var result []model.TriviaParticipation
	for _, p := range m.participations {
		if p.TriviaID == triviaID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].SubmittedAt.Before(result[j].SubmittedAt)
	})
	return page(result, 0, limit), nil
}

// ═══════════════════════════════════════════════════════════
// collaborators
// ═══════════════════════════════════════════════════════════

type fakeEnqueuer struct {
	emails       []queue.EmailPayload
	certificates []string
	err          error
}

func (f *fakeEnqueuer) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	if f.err != nil {
		return f.err
	}
	f.emails = append(f.emails, p)
	return nil
}

func (f *fakeEnqueuer) EnqueueCertificate(_ context.Context, certificateID string) error {
	if f.err != nil {
		return f.err
	}
	f.certificates = append(f.certificates, certificateID)
	return nil
}

func (f *fakeEnqueuer) templates() []string {
	out := make([]string, 0, len(f.emails))
	for _, e := range f.emails {
		out = append(out, e.Template)
	}
	return out
}

type fakeRenderer struct {
	rendered []certificate.Data
	err      error
}

func (f *fakeRenderer) Render(d certificate.Data) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.rendered = append(f.rendered, d)
	return []byte("%PDF-1.4 " + d.Number), nil
}

type fakeBroadcaster struct {
	rooms    []string
	messages []ws.Message
}

func (f *fakeBroadcaster) Broadcast(room string, msg ws.Message) {
	f.rooms = append(f.rooms, room)
	f.messages = append(f.messages, msg)
}

// page applies offset and limit the way the SQL repositories do.
func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}
