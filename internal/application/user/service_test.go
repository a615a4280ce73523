package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edusphere-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Create(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}
func (m *mockUserStore) List(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.User), args.Error(1)
}
func (m *mockUserStore) Delete(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

type mockAttemptStore struct{ mock.Mock }

func (m *mockAttemptStore) ListByStudent(ctx context.Context, studentID string) ([]domain.Attempt, error) {
	args := m.Called(ctx, studentID)
	return args.Get(0).([]domain.Attempt), args.Error(1)
}
func (m *mockAttemptStore) ListByExam(ctx context.Context, examID string) ([]domain.Attempt, error) {
	args := m.Called(ctx, examID)
	return args.Get(0).([]domain.Attempt), args.Error(1)
}
func (m *mockAttemptStore) Delete(ctx context.Context, examID, studentID string) error {
	return m.Called(ctx, examID, studentID).Error(0)
}

type mockExamStore struct{ mock.Mock }

func (m *mockExamStore) ListByAuthor(ctx context.Context, authorID string) ([]domain.Exam, error) {
	args := m.Called(ctx, authorID)
	return args.Get(0).([]domain.Exam), args.Error(1)
}
func (m *mockExamStore) Delete(ctx context.Context, examID string) error {
	return m.Called(ctx, examID).Error(0)
}

type mockMaterials struct{ mock.Mock }

func (m *mockMaterials) DeleteByAuthor(ctx context.Context, authorID string) error {
	return m.Called(ctx, authorID).Error(0)
}

type mockAuditStore struct{ mock.Mock }

func (m *mockAuditStore) DeleteByActor(ctx context.Context, actorID string) error {
	return m.Called(ctx, actorID).Error(0)
}

type mockAudit struct{ mock.Mock }

func (m *mockAudit) Record(ctx context.Context, entry domain.AuditLog) error {
	return m.Called(ctx, entry).Error(0)
}

// --- helpers ---

var (
	admin   = domain.Principal{UserID: "a1", Role: domain.RoleAdmin}
	teacher = domain.Principal{UserID: "t1", Role: domain.RoleTeacher}
	base    = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	users     *mockUserStore
	attempts  *mockAttemptStore
	exams     *mockExamStore
	materials *mockMaterials
	auditRepo *mockAuditStore
	audit     *mockAudit
	svc       Service
}

func newFixture() *fixture {
	f := &fixture{
		users:     &mockUserStore{},
		attempts:  &mockAttemptStore{},
		exams:     &mockExamStore{},
		materials: &mockMaterials{},
		auditRepo: &mockAuditStore{},
		audit:     &mockAudit{},
	}
	f.audit.On("Record", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.svc = NewService(ServiceDeps{
		UserRepo:    f.users,
		AttemptRepo: f.attempts,
		ExamRepo:    f.exams,
		Materials:   f.materials,
		AuditRepo:   f.auditRepo,
		Audit:       f.audit,
		Now:         func() time.Time { return base },
		HashCost:    bcrypt.MinCost,
	})
	return f
}

func auditAction(action string) interface{} {
	return mock.MatchedBy(func(e domain.AuditLog) bool { return e.Action == action })
}

// --- List ---

func TestList_ExcludesSelfByDefault(t *testing.T) {
	f := newFixture()
	f.users.On("List", mock.Anything).Return([]domain.User{
		{UserID: "a1", CreatedAt: base},
		{UserID: "s1", CreatedAt: base.Add(time.Hour)},
		{UserID: "t1", CreatedAt: base.Add(2 * time.Hour)},
	}, nil)

	users, err := f.svc.List(context.Background(), admin, false)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "t1", users[0].UserID)
	assert.Equal(t, "s1", users[1].UserID)

	all, err := f.svc.List(context.Background(), admin, true)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestList_NonAdminForbidden(t *testing.T) {
	f := newFixture()
	_, err := f.svc.List(context.Background(), teacher, false)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

// --- Create ---

func TestCreate_PreVerifiedUser(t *testing.T) {
	f := newFixture()
	var created *domain.User
	f.users.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.User) }).
		Return(nil)

	u, err := f.svc.Create(context.Background(), admin, domain.CreateUserRequest{
		Name: "Docente", Email: "Doc@Example.com", Password: "secret123", Role: domain.RoleTeacher,
	})

	require.NoError(t, err)
	assert.Same(t, created, u)
	assert.True(t, u.Verified)
	assert.True(t, u.Active)
	assert.Equal(t, "doc@example.com", u.Email)
	f.audit.AssertCalled(t, "Record", mock.Anything, auditAction(domain.AuditUserCreated))
}

func TestCreate_AdminRoleForbidden(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Create(context.Background(), admin, domain.CreateUserRequest{
		Name: "X", Email: "x@example.com", Password: "secret123", Role: domain.RoleAdmin,
	})
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreate_EmailConflict(t *testing.T) {
	f := newFixture()
	f.users.On("Create", mock.Anything, mock.Anything).Return(domain.ErrConflict)

	_, err := f.svc.Create(context.Background(), admin, domain.CreateUserRequest{
		Name: "X", Email: "x@example.com", Password: "secret123", Role: domain.RoleStudent,
	})
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

// --- UpdateRole / SetActive ---

func TestUpdateRole_Promotes(t *testing.T) {
	f := newFixture()
	f.users.On("Update", mock.Anything, "s1", map[string]interface{}{fieldRole: domain.RoleTeacher}).Return(nil)
	f.users.On("Get", mock.Anything, "s1").Return(&domain.User{UserID: "s1", Role: domain.RoleTeacher}, nil)

	u, err := f.svc.UpdateRole(context.Background(), admin, "s1", domain.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTeacher, u.Role)
	f.audit.AssertCalled(t, "Record", mock.Anything, auditAction(domain.AuditUserRoleUpdated))
}

func TestUpdateRole_InvalidRole(t *testing.T) {
	f := newFixture()
	_, err := f.svc.UpdateRole(context.Background(), admin, "s1", "ROOT")
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestUpdateRole_CannotDemoteSelf(t *testing.T) {
	f := newFixture()
	_, err := f.svc.UpdateRole(context.Background(), admin, "a1", domain.RoleStudent)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestUpdateRole_MissingUser(t *testing.T) {
	f := newFixture()
	f.users.On("Update", mock.Anything, "ghost", mock.Anything).Return(domain.ErrNotFound)

	_, err := f.svc.UpdateRole(context.Background(), admin, "ghost", domain.RoleTeacher)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSetActive_Deactivates(t *testing.T) {
	f := newFixture()
	f.users.On("Update", mock.Anything, "s1", map[string]interface{}{fieldActive: false}).Return(nil)
	f.users.On("Get", mock.Anything, "s1").Return(&domain.User{UserID: "s1", Active: false}, nil)

	u, err := f.svc.SetActive(context.Background(), admin, "s1", false)
	require.NoError(t, err)
	assert.False(t, u.Active)
	f.audit.AssertCalled(t, "Record", mock.Anything, auditAction(domain.AuditUserDeactivated))
}

func TestSetActive_CannotDeactivateSelf(t *testing.T) {
	f := newFixture()
	_, err := f.svc.SetActive(context.Background(), admin, "a1", false)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

// --- Delete ---

func TestDelete_Cascades(t *testing.T) {
	f := newFixture()
	u := &domain.User{UserID: "t1", Email: "t1@example.com", Role: domain.RoleTeacher}
	f.users.On("Get", mock.Anything, "t1").Return(u, nil)
	f.attempts.On("ListByStudent", mock.Anything, "t1").Return([]domain.Attempt{}, nil)
	f.exams.On("ListByAuthor", mock.Anything, "t1").Return([]domain.Exam{{ExamID: "E1"}}, nil)
	f.attempts.On("ListByExam", mock.Anything, "E1").Return([]domain.Attempt{
		{ExamID: "E1", StudentID: "s1"}, {ExamID: "E1", StudentID: "s2"},
	}, nil)
	f.attempts.On("Delete", mock.Anything, "E1", "s1").Return(nil)
	f.attempts.On("Delete", mock.Anything, "E1", "s2").Return(nil)
	f.exams.On("Delete", mock.Anything, "E1").Return(nil)
	f.materials.On("DeleteByAuthor", mock.Anything, "t1").Return(nil)
	f.auditRepo.On("DeleteByActor", mock.Anything, "t1").Return(nil)
	f.users.On("Delete", mock.Anything, u).Return(nil)

	require.NoError(t, f.svc.Delete(context.Background(), admin, "t1"))

	f.attempts.AssertExpectations(t)
	f.exams.AssertExpectations(t)
	f.materials.AssertExpectations(t)
	f.auditRepo.AssertExpectations(t)
	f.users.AssertExpectations(t)
	f.audit.AssertCalled(t, "Record", mock.Anything, auditAction(domain.AuditUserDeleted))
}

func TestDelete_StopsOnFailure(t *testing.T) {
	f := newFixture()
	u := &domain.User{UserID: "s1"}
	f.users.On("Get", mock.Anything, "s1").Return(u, nil)
	f.attempts.On("ListByStudent", mock.Anything, "s1").Return([]domain.Attempt{{ExamID: "E1", StudentID: "s1"}}, nil)
	f.attempts.On("Delete", mock.Anything, "E1", "s1").Return(errors.New("throttled"))

	err := f.svc.Delete(context.Background(), admin, "s1")
	require.Error(t, err)
	f.users.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestDelete_Self(t *testing.T) {
	f := newFixture()
	err := f.svc.Delete(context.Background(), admin, "a1")
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestDelete_Missing(t *testing.T) {
	f := newFixture()
	f.users.On("Get", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)
	err := f.svc.Delete(context.Background(), admin, "ghost")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
