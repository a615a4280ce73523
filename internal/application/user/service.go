package user

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/edusphere-api/internal/domain"
	"github.com/edusphere-api/internal/pkg/authz"
	"github.com/edusphere-api/internal/pkg/id"
	"github.com/edusphere-api/internal/pkg/sanitize"
	"golang.org/x/crypto/bcrypt"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldRole   = "role"
	fieldActive = "active"
)

// Service is the admin-only user management surface.
type Service interface {
	List(ctx context.Context, p domain.Principal, includeSelf bool) ([]domain.User, error)
	Create(ctx context.Context, p domain.Principal, req domain.CreateUserRequest) (*domain.User, error)
	UpdateRole(ctx context.Context, p domain.Principal, userID, role string) (*domain.User, error)
	SetActive(ctx context.Context, p domain.Principal, userID string, active bool) (*domain.User, error)
	Delete(ctx context.Context, p domain.Principal, userID string) error
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	List(ctx context.Context) ([]domain.User, error)
	Delete(ctx context.Context, u *domain.User) error
}

type attemptStore interface {
	ListByStudent(ctx context.Context, studentID string) ([]domain.Attempt, error)
	ListByExam(ctx context.Context, examID string) ([]domain.Attempt, error)
	Delete(ctx context.Context, examID, studentID string) error
}

type examStore interface {
	ListByAuthor(ctx context.Context, authorID string) ([]domain.Exam, error)
	Delete(ctx context.Context, examID string) error
}

type materialRemover interface {
	DeleteByAuthor(ctx context.Context, authorID string) error
}

type auditStore interface {
	DeleteByActor(ctx context.Context, actorID string) error
}

type auditRecorder interface {
	Record(ctx context.Context, entry domain.AuditLog) error
}

type service struct {
	repo      userStore
	attempts  attemptStore
	exams     examStore
	materials materialRemover
	auditLogs auditStore
	audit     auditRecorder
	now       func() time.Time
	hashCost  int
}

type ServiceDeps struct {
	UserRepo    userStore
	AttemptRepo attemptStore
	ExamRepo    examStore
	Materials   materialRemover
	AuditRepo   auditStore
	Audit       auditRecorder
	Now         func() time.Time
	HashCost    int
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:      deps.UserRepo,
		attempts:  deps.AttemptRepo,
		exams:     deps.ExamRepo,
		materials: deps.Materials,
		auditLogs: deps.AuditRepo,
		audit:     deps.Audit,
		now:       deps.Now,
		hashCost:  deps.HashCost,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.hashCost == 0 {
		s.hashCost = bcrypt.DefaultCost
	}
	return s
}

func (s *service) List(ctx context.Context, p domain.Principal, includeSelf bool) ([]domain.User, error) {
	if err := authz.RequireRole(p, domain.RoleAdmin); err != nil {
		return nil, err
	}
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if !includeSelf {
		users = slices.DeleteFunc(users, func(u domain.User) bool { return u.UserID == p.UserID })
	}
	slices.SortFunc(users, func(a, b domain.User) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return users, nil
}

// Create adds a pre-verified student or teacher. Admins cannot be created here.
func (s *service) Create(ctx context.Context, p domain.Principal, req domain.CreateUserRequest) (*domain.User, error) {
	if err := authz.RequireRole(p, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if req.Role == domain.RoleAdmin {
		return nil, fmt.Errorf("admins cannot be created through this route: %w", domain.ErrForbidden)
	}
	if req.Role != domain.RoleStudent && req.Role != domain.RoleTeacher {
		return nil, fmt.Errorf("invalid role: %w", domain.ErrBadRequest)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Name:         sanitize.Text(req.Name),
		Email:        domain.NormalizeEmail(req.Email),
		PasswordHash: string(hash),
		Role:         req.Role,
		Verified:     true,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.record(ctx, p, domain.AuditUserCreated, u.UserID, map[string]string{"email": u.Email, "role": u.Role})
	return u, nil
}

func (s *service) UpdateRole(ctx context.Context, p domain.Principal, userID, role string) (*domain.User, error) {
	if err := authz.RequireRole(p, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if !domain.ValidRole(role) {
		return nil, fmt.Errorf("invalid role: %w", domain.ErrBadRequest)
	}
	if userID == p.UserID && role != domain.RoleAdmin {
		return nil, fmt.Errorf("admins cannot demote themselves: %w", domain.ErrBadRequest)
	}
	if err := s.repo.Update(ctx, userID, map[string]interface{}{fieldRole: role}); err != nil {
		return nil, err
	}
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, p, domain.AuditUserRoleUpdated, userID, map[string]string{"email": u.Email, "role": role})
	return u, nil
}

// SetActive toggles whether the account may log in.
func (s *service) SetActive(ctx context.Context, p domain.Principal, userID string, active bool) (*domain.User, error) {
	if err := authz.RequireRole(p, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if userID == p.UserID && !active {
		return nil, fmt.Errorf("admins cannot deactivate themselves: %w", domain.ErrBadRequest)
	}
	if err := s.repo.Update(ctx, userID, map[string]interface{}{fieldActive: active}); err != nil {
		return nil, err
	}
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	action := domain.AuditUserDeactivated
	if active {
		action = domain.AuditUserActivated
	}
	s.record(ctx, p, action, userID, map[string]string{"email": u.Email})
	return u, nil
}

// Delete removes the user and everything that references them: their
// attempts, the exams they authored (with those exams' attempts), their
// materials and their audit trail.
func (s *service) Delete(ctx context.Context, p domain.Principal, userID string) error {
	if err := authz.RequireRole(p, domain.RoleAdmin); err != nil {
		return err
	}
	if userID == p.UserID {
		return fmt.Errorf("admins cannot delete themselves: %w", domain.ErrBadRequest)
	}
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}

	own, err := s.attempts.ListByStudent(ctx, userID)
	if err != nil {
		return fmt.Errorf("list attempts: %w", err)
	}
	if err := s.deleteAttempts(ctx, own); err != nil {
		return err
	}

	exams, err := s.exams.ListByAuthor(ctx, userID)
	if err != nil {
		return fmt.Errorf("list exams: %w", err)
	}
	for _, e := range exams {
		attempts, err := s.attempts.ListByExam(ctx, e.ExamID)
		if err != nil {
			return fmt.Errorf("list attempts for exam %s: %w", e.ExamID, err)
		}
		if err := s.deleteAttempts(ctx, attempts); err != nil {
			return err
		}
		if err := s.exams.Delete(ctx, e.ExamID); err != nil {
			return fmt.Errorf("delete exam %s: %w", e.ExamID, err)
		}
	}

	if err := s.materials.DeleteByAuthor(ctx, userID); err != nil {
		return fmt.Errorf("delete materials: %w", err)
	}
	if err := s.auditLogs.DeleteByActor(ctx, userID); err != nil {
		return fmt.Errorf("delete audit logs: %w", err)
	}
	if err := s.repo.Delete(ctx, u); err != nil {
		return err
	}
	s.record(ctx, p, domain.AuditUserDeleted, userID, map[string]string{"email": u.Email})
	return nil
}

func (s *service) deleteAttempts(ctx context.Context, attempts []domain.Attempt) error {
	for _, a := range attempts {
		if err := s.attempts.Delete(ctx, a.ExamID, a.StudentID); err != nil {
			return fmt.Errorf("delete attempt %s: %w", a.SubmissionID, err)
		}
	}
	return nil
}

func (s *service) record(ctx context.Context, p domain.Principal, action, targetID string, details map[string]string) {
	if err := s.audit.Record(ctx, domain.AuditLog{
		ActorID:  p.UserID,
		Action:   action,
		TargetID: targetID,
		Details:  details,
	}); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
