package attempt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/edusphere-api/internal/domain"
	"github.com/edusphere-api/internal/pkg/authz"
	"github.com/edusphere-api/internal/pkg/id"
	"github.com/edusphere-api/internal/pkg/sanitize"
)

type attemptStore interface {
	Create(ctx context.Context, a *domain.Attempt) error
	GetBySubmissionID(ctx context.Context, submissionID string) (*domain.Attempt, error)
	SetGrade(ctx context.Context, examID, studentID string, grade float64, feedback *string, gradedAt time.Time) error
	ListByExam(ctx context.Context, examID string) ([]domain.Attempt, error)
	ListByStudent(ctx context.Context, studentID string) ([]domain.Attempt, error)
}

type examLookup interface {
	Get(ctx context.Context, examID string) (*domain.Exam, error)
}

type userLookup interface {
	GetMany(ctx context.Context, ids []string) (map[string]*domain.User, error)
}

type auditRecorder interface {
	Record(ctx context.Context, entry domain.AuditLog) error
}

// Service records exam submissions and their grades. A (student, exam)
// pair has at most one attempt; the store rejects the second write.
type Service interface {
	Submit(ctx context.Context, p domain.Principal, req domain.SubmitRequest) (*domain.Attempt, error)
	Grade(ctx context.Context, p domain.Principal, submissionID string, req domain.GradeRequest) (*domain.Attempt, error)
	Get(ctx context.Context, p domain.Principal, submissionID string) (*domain.Attempt, error)
	ListForStudent(ctx context.Context, p domain.Principal) ([]domain.StudentResult, error)
	ListForExam(ctx context.Context, p domain.Principal, examID string) ([]domain.ExamSubmission, error)
}

type ServiceDeps struct {
	AttemptRepo attemptStore
	ExamRepo    examLookup
	UserRepo    userLookup
	Audit       auditRecorder
	Now         func() time.Time
}

type service struct {
	repo  attemptStore
	exams examLookup
	users userLookup
	audit auditRecorder
	now   func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:  deps.AttemptRepo,
		exams: deps.ExamRepo,
		users: deps.UserRepo,
		audit: deps.Audit,
		now:   deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Submit(ctx context.Context, p domain.Principal, req domain.SubmitRequest) (*domain.Attempt, error) {
	if err := authz.RequireRole(p, domain.RoleStudent); err != nil {
		return nil, err
	}
	e, err := s.exams.Get(ctx, req.ExamID)
	if err != nil {
		return nil, err
	}
	if !e.AssignedToStudent(p.UserID) {
		return nil, fmt.Errorf("exam %s not assigned: %w", e.ExamID, domain.ErrForbidden)
	}
	if err := e.CheckAnswers(req.Answers); err != nil {
		return nil, err
	}
	answers := req.Answers
	if answers == nil {
		answers = []domain.Answer{}
	}
	a := &domain.Attempt{
		SubmissionID:  id.New(),
		ExamID:        e.ExamID,
		StudentID:     p.UserID,
		Answers:       answers,
		SubmittedAt:   s.now().UTC(),
		AutoSubmitted: req.AutoSubmitted,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *service) Grade(ctx context.Context, p domain.Principal, submissionID string, req domain.GradeRequest) (*domain.Attempt, error) {
	if err := authz.RequireRole(p, domain.RoleTeacher, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if req.Grade == nil || math.IsNaN(*req.Grade) || *req.Grade < 0 || *req.Grade > 100 {
		return nil, fmt.Errorf("grade must be between 0 and 100: %w", domain.ErrBadRequest)
	}
	a, e, err := s.owned(ctx, p, submissionID)
	if err != nil {
		return nil, err
	}
	feedback := sanitize.Ptr(req.Feedback)
	gradedAt := s.now().UTC()
	if err := s.repo.SetGrade(ctx, a.ExamID, a.StudentID, *req.Grade, feedback, gradedAt); err != nil {
		return nil, err
	}
	a.Grade = req.Grade
	a.Feedback = feedback
	a.GradedAt = &gradedAt

	if err := s.audit.Record(ctx, domain.AuditLog{
		ActorID:  p.UserID,
		Action:   domain.AuditSubmissionGraded,
		TargetID: a.SubmissionID,
		Details: map[string]string{
			"examId":    e.ExamID,
			"studentId": a.StudentID,
			"grade":     strconv.FormatFloat(*req.Grade, 'f', -1, 64),
		},
	}); err != nil {
		slog.Warn("audit record failed", "action", domain.AuditSubmissionGraded, "err", err)
	}
	return a, nil
}

func (s *service) Get(ctx context.Context, p domain.Principal, submissionID string) (*domain.Attempt, error) {
	if err := authz.RequireRole(p, domain.RoleTeacher, domain.RoleAdmin); err != nil {
		return nil, err
	}
	a, _, err := s.owned(ctx, p, submissionID)
	return a, err
}

// ListForStudent returns the caller's own attempts, newest first.
func (s *service) ListForStudent(ctx context.Context, p domain.Principal) ([]domain.StudentResult, error) {
	if err := authz.RequireRole(p, domain.RoleStudent); err != nil {
		return nil, err
	}
	attempts, err := s.repo.ListByStudent(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(attempts)
	titles := make(map[string]string)
	out := make([]domain.StudentResult, 0, len(attempts))
	for _, a := range attempts {
		title, ok := titles[a.ExamID]
		if !ok {
			e, err := s.exams.Get(ctx, a.ExamID)
			switch {
			case err == nil:
				title = e.Title
			case !errors.Is(err, domain.ErrNotFound):
				return nil, err
			}
			titles[a.ExamID] = title
		}
		out = append(out, domain.StudentResult{Attempt: a, ExamTitle: title})
	}
	return out, nil
}

func (s *service) ListForExam(ctx context.Context, p domain.Principal, examID string) ([]domain.ExamSubmission, error) {
	if err := authz.RequireRole(p, domain.RoleTeacher, domain.RoleAdmin); err != nil {
		return nil, err
	}
	e, err := s.exams.Get(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := authz.RequireOwnerOrAdmin(p, e.AuthorID); err != nil {
		return nil, err
	}
	attempts, err := s.repo.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(attempts)
	ids := make([]string, len(attempts))
	for i, a := range attempts {
		ids[i] = a.StudentID
	}
	students, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ExamSubmission, len(attempts))
	for i, a := range attempts {
		out[i].Attempt = a
		if u := students[a.StudentID]; u != nil {
			out[i].StudentName = u.Name
			out[i].StudentEmail = u.Email
		}
	}
	return out, nil
}

// owned loads an attempt and its exam, checking the caller authored the exam.
func (s *service) owned(ctx context.Context, p domain.Principal, submissionID string) (*domain.Attempt, *domain.Exam, error) {
	a, err := s.repo.GetBySubmissionID(ctx, submissionID)
	if err != nil {
		return nil, nil, err
	}
	e, err := s.exams.Get(ctx, a.ExamID)
	if err != nil {
		return nil, nil, err
	}
	if err := authz.RequireOwnerOrAdmin(p, e.AuthorID); err != nil {
		return nil, nil, err
	}
	return a, e, nil
}

func sortNewestFirst(attempts []domain.Attempt) {
	slices.SortFunc(attempts, func(a, b domain.Attempt) int { return b.SubmittedAt.Compare(a.SubmittedAt) })
}
