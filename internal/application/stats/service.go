package stats

import (
	"context"
	"math"
	"slices"

	"github.com/edusphere-api/internal/domain"
	"github.com/edusphere-api/internal/pkg/authz"
	"golang.org/x/sync/errgroup"
)

const fanOut = 8

type attemptLister interface {
	ListByExam(ctx context.Context, examID string) ([]domain.Attempt, error)
	ListByStudent(ctx context.Context, studentID string) ([]domain.Attempt, error)
}

type examStore interface {
	Get(ctx context.Context, examID string) (*domain.Exam, error)
	List(ctx context.Context) ([]domain.Exam, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetMany(ctx context.Context, ids []string) (map[string]*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

type materialLister interface {
	List(ctx context.Context) ([]domain.Material, error)
}

type Service interface {
	StudentPerformance(ctx context.Context, p domain.Principal, studentID string) (*domain.StudentPerformance, error)
	CourseStats(ctx context.Context, p domain.Principal) ([]domain.ExamStats, error)
	SiteStats(ctx context.Context, p domain.Principal) (*domain.SiteStats, error)
}

type ServiceDeps struct {
	AttemptRepo  attemptLister
	ExamRepo     examStore
	UserRepo     userStore
	MaterialRepo materialLister
}

type service struct {
	attempts  attemptLister
	exams     examStore
	users     userStore
	materials materialLister
}

func NewService(deps ServiceDeps) Service {
	return &service{
		attempts:  deps.AttemptRepo,
		exams:     deps.ExamRepo,
		users:     deps.UserRepo,
		materials: deps.MaterialRepo,
	}
}

// StudentPerformance lists a student's graded attempts with their average.
func (s *service) StudentPerformance(ctx context.Context, p domain.Principal, studentID string) (*domain.StudentPerformance, error) {
	if err := authz.RequireRole(p, domain.RoleTeacher, domain.RoleAdmin); err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.attempts.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	out := &domain.StudentPerformance{
		StudentID:      u.UserID,
		StudentName:    u.Name,
		TotalSubmitted: len(attempts),
		Submissions:    []domain.StudentResult{},
	}
	var grades []float64
	for _, a := range attempts {
		if a.Grade == nil {
			continue
		}
		grades = append(grades, *a.Grade)
		title := ""
		if e, err := s.exams.Get(ctx, a.ExamID); err == nil {
			title = e.Title
		}
		out.Submissions = append(out.Submissions, domain.StudentResult{Attempt: a, ExamTitle: title})
	}
	slices.SortFunc(out.Submissions, func(a, b domain.StudentResult) int {
		return b.SubmittedAt.Compare(a.SubmittedAt)
	})
	out.AverageGrade = average(grades)
	return out, nil
}

// CourseStats aggregates every exam's submissions. Admin only.
func (s *service) CourseStats(ctx context.Context, p domain.Principal) ([]domain.ExamStats, error) {
	if err := authz.RequireRole(p, domain.RoleAdmin); err != nil {
		return nil, err
	}
	exams, err := s.exams.List(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(exams, func(a, b domain.Exam) int { return b.CreatedAt.Compare(a.CreatedAt) })

	out := make([]domain.ExamStats, len(exams))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOut)
	for i, e := range exams {
		out[i] = domain.ExamStats{ExamID: e.ExamID, Title: e.Title}
		g.Go(func() error {
			attempts, err := s.attempts.ListByExam(gctx, e.ExamID)
			if err != nil {
				return err
			}
			var grades []float64
			for _, a := range attempts {
				if a.Grade != nil {
					grades = append(grades, *a.Grade)
				}
			}
			out[i].SubmissionCount = len(attempts)
			out[i].GradedCount = len(grades)
			out[i].AverageGrade = average(grades)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	authorIDs := make([]string, len(exams))
	for i, e := range exams {
		authorIDs[i] = e.AuthorID
	}
	authors, err := s.users.GetMany(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	for i, e := range exams {
		if u := authors[e.AuthorID]; u != nil {
			out[i].AuthorName = u.Name
		}
	}
	return out, nil
}

func (s *service) SiteStats(ctx context.Context, p domain.Principal) (*domain.SiteStats, error) {
	if err := authz.RequireRole(p, domain.RoleAdmin); err != nil {
		return nil, err
	}
	var (
		users     []domain.User
		exams     []domain.Exam
		materials []domain.Material
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = s.users.List(gctx)
		return
	})
	g.Go(func() (err error) {
		exams, err = s.exams.List(gctx)
		return
	})
	g.Go(func() (err error) {
		materials, err = s.materials.List(gctx)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := &domain.SiteStats{Materials: len(materials), Exams: len(exams)}
	for _, u := range users {
		switch u.Role {
		case domain.RoleStudent:
			out.Students++
		case domain.RoleTeacher:
			out.Teachers++
		case domain.RoleAdmin:
			out.TotalAdmins++
		}
	}
	return out, nil
}

// average rounds to two decimals; nil when nothing is graded.
func average(grades []float64) *float64 {
	if len(grades) == 0 {
		return nil
	}
	var sum float64
	for _, g := range grades {
		sum += g
	}
	avg := math.Round(sum/float64(len(grades))*100) / 100
	return &avg
}
