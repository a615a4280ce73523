package exam

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/edusphere-api/internal/domain"
	"github.com/edusphere-api/internal/pkg/authz"
	"github.com/edusphere-api/internal/pkg/id"
	"github.com/edusphere-api/internal/pkg/sanitize"
	"golang.org/x/sync/errgroup"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldTitle      = "title"
	fieldQuestions  = "questions"
	fieldDuration   = "duration"
	fieldAssignedTo = "assigned_to"
)

const countConcurrency = 8

type examStore interface {
	Put(ctx context.Context, e *domain.Exam) error
	Get(ctx context.Context, examID string) (*domain.Exam, error)
	Update(ctx context.Context, examID string, updates map[string]interface{}) error
	Delete(ctx context.Context, examID string) error
	List(ctx context.Context) ([]domain.Exam, error)
}

type attemptCounter interface {
	CountByExam(ctx context.Context, examID string) (int, error)
}

type userLookup interface {
	GetMany(ctx context.Context, ids []string) (map[string]*domain.User, error)
}

type Service interface {
	Create(ctx context.Context, p domain.Principal, in domain.ExamInput) (*domain.Exam, error)
	List(ctx context.Context, p domain.Principal) ([]domain.ExamSummary, error)
	Get(ctx context.Context, p domain.Principal, examID string) (*domain.Exam, error)
	Update(ctx context.Context, p domain.Principal, examID string, in domain.ExamInput) (*domain.Exam, error)
	Delete(ctx context.Context, p domain.Principal, examID string) error
}

type ServiceDeps struct {
	ExamRepo    examStore
	AttemptRepo attemptCounter
	UserRepo    userLookup
	Now         func() time.Time
}

type service struct {
	repo     examStore
	attempts attemptCounter
	users    userLookup
	now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{repo: deps.ExamRepo, attempts: deps.AttemptRepo, users: deps.UserRepo, now: deps.Now}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func normalize(in domain.ExamInput) domain.ExamInput {
	in.Title = sanitize.Text(in.Title)
	for i := range in.Questions {
		in.Questions[i].Question = sanitize.Text(in.Questions[i].Question)
		for j := range in.Questions[i].Options {
			in.Questions[i].Options[j] = sanitize.Text(in.Questions[i].Options[j])
		}
	}
	if in.Duration <= 0 {
		in.Duration = domain.DefaultExamDuration
	}
	if in.AssignedTo == nil {
		in.AssignedTo = []string{}
	}
	return in
}

func (s *service) Create(ctx context.Context, p domain.Principal, in domain.ExamInput) (*domain.Exam, error) {
	if err := authz.RequireRole(p, domain.RoleTeacher, domain.RoleAdmin); err != nil {
		return nil, err
	}
	in = normalize(in)
	now := s.now().UTC()
	e := &domain.Exam{
		ExamID:          id.New(),
		Title:           in.Title,
		Questions:       in.Questions,
		DurationMinutes: in.Duration,
		AuthorID:        p.UserID,
		AssignedTo:      in.AssignedTo,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Put(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// List returns exams newest first. Students only see exams assigned to
// them, without the answer key.
func (s *service) List(ctx context.Context, p domain.Principal) ([]domain.ExamSummary, error) {
	exams, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	student := p.Role == domain.RoleStudent
	if student {
		exams = slices.DeleteFunc(exams, func(e domain.Exam) bool { return !e.AssignedToStudent(p.UserID) })
	}
	slices.SortFunc(exams, func(a, b domain.Exam) int { return b.CreatedAt.Compare(a.CreatedAt) })

	out := make([]domain.ExamSummary, len(exams))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(countConcurrency)
	for i := range exams {
		e := exams[i]
		if student {
			e = e.WithoutAnswerKey()
		}
		out[i].Exam = e
		g.Go(func() error {
			n, err := s.attempts.CountByExam(gctx, e.ExamID)
			if err != nil {
				return err
			}
			out[i].SubmissionCount = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	authorIDs := make([]string, 0, len(out))
	for _, e := range out {
		authorIDs = append(authorIDs, e.AuthorID)
	}
	slices.Sort(authorIDs)
	authors, err := s.users.GetMany(ctx, slices.Compact(authorIDs))
	if err != nil {
		return nil, err
	}
	for i := range out {
		if u := authors[out[i].AuthorID]; u != nil {
			out[i].AuthorName = u.Name
		}
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, p domain.Principal, examID string) (*domain.Exam, error) {
	e, err := s.repo.Get(ctx, examID)
	if err != nil {
		return nil, err
	}
	if p.Role == domain.RoleStudent {
		if !e.AssignedToStudent(p.UserID) {
			return nil, fmt.Errorf("exam %s not assigned: %w", examID, domain.ErrForbidden)
		}
		safe := e.WithoutAnswerKey()
		return &safe, nil
	}
	return e, nil
}

// Update replaces title, questions, duration and assignment. Exams with
// submissions are frozen.
func (s *service) Update(ctx context.Context, p domain.Principal, examID string, in domain.ExamInput) (*domain.Exam, error) {
	e, err := s.editable(ctx, p, examID)
	if err != nil {
		return nil, err
	}
	in = normalize(in)
	e.Title = in.Title
	e.Questions = in.Questions
	e.DurationMinutes = in.Duration
	e.AssignedTo = in.AssignedTo
	if err := e.Validate(); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		fieldTitle:      e.Title,
		fieldQuestions:  e.Questions,
		fieldDuration:   e.DurationMinutes,
		fieldAssignedTo: e.AssignedTo,
	}
	if err := s.repo.Update(ctx, examID, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, examID)
}

func (s *service) Delete(ctx context.Context, p domain.Principal, examID string) error {
	if _, err := s.editable(ctx, p, examID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, examID)
}

func (s *service) editable(ctx context.Context, p domain.Principal, examID string) (*domain.Exam, error) {
	if err := authz.RequireRole(p, domain.RoleTeacher, domain.RoleAdmin); err != nil {
		return nil, err
	}
	e, err := s.repo.Get(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := authz.RequireOwnerOrAdmin(p, e.AuthorID); err != nil {
		return nil, err
	}
	n, err := s.attempts.CountByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, fmt.Errorf("exam %s has %d submissions: %w", examID, n, domain.ErrConflict)
	}
	return e, nil
}

