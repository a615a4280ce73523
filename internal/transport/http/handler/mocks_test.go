package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edusphere-api/internal/application/material"
	"github.com/edusphere-api/internal/domain"
	jwtinfra "github.com/edusphere-api/internal/infrastructure/jwt"
	"github.com/edusphere-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) Register(ctx context.Context, req domain.RegisterRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockAuthSvc) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginChallenge, error) {
	args := m.Called(ctx, req)
	if c, _ := args.Get(0).(*domain.LoginChallenge); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) (*domain.Session, error) {
	args := m.Called(ctx, req)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) ResendOTP(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *mockAuthSvc) RequestPasswordReset(ctx context.Context, email string) string {
	return m.Called(ctx, email).String(0)
}

func (m *mockAuthSvc) ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type mockAttemptSvc struct{ mock.Mock }

func (m *mockAttemptSvc) Submit(ctx context.Context, p domain.Principal, req domain.SubmitRequest) (*domain.Attempt, error) {
	args := m.Called(ctx, p, req)
	if a, _ := args.Get(0).(*domain.Attempt); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAttemptSvc) Grade(ctx context.Context, p domain.Principal, submissionID string, req domain.GradeRequest) (*domain.Attempt, error) {
	args := m.Called(ctx, p, submissionID, req)
	if a, _ := args.Get(0).(*domain.Attempt); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAttemptSvc) Get(ctx context.Context, p domain.Principal, submissionID string) (*domain.Attempt, error) {
	args := m.Called(ctx, p, submissionID)
	if a, _ := args.Get(0).(*domain.Attempt); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAttemptSvc) ListForStudent(ctx context.Context, p domain.Principal) ([]domain.StudentResult, error) {
	args := m.Called(ctx, p)
	rows, _ := args.Get(0).([]domain.StudentResult)
	return rows, args.Error(1)
}

func (m *mockAttemptSvc) ListForExam(ctx context.Context, p domain.Principal, examID string) ([]domain.ExamSubmission, error) {
	args := m.Called(ctx, p, examID)
	rows, _ := args.Get(0).([]domain.ExamSubmission)
	return rows, args.Error(1)
}

type mockExamSvc struct{ mock.Mock }

func (m *mockExamSvc) Create(ctx context.Context, p domain.Principal, in domain.ExamInput) (*domain.Exam, error) {
	args := m.Called(ctx, p, in)
	if e, _ := args.Get(0).(*domain.Exam); e != nil {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockExamSvc) List(ctx context.Context, p domain.Principal) ([]domain.ExamSummary, error) {
	args := m.Called(ctx, p)
	rows, _ := args.Get(0).([]domain.ExamSummary)
	return rows, args.Error(1)
}

func (m *mockExamSvc) Get(ctx context.Context, p domain.Principal, examID string) (*domain.Exam, error) {
	args := m.Called(ctx, p, examID)
	if e, _ := args.Get(0).(*domain.Exam); e != nil {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockExamSvc) Update(ctx context.Context, p domain.Principal, examID string, in domain.ExamInput) (*domain.Exam, error) {
	args := m.Called(ctx, p, examID, in)
	if e, _ := args.Get(0).(*domain.Exam); e != nil {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockExamSvc) Delete(ctx context.Context, p domain.Principal, examID string) error {
	return m.Called(ctx, p, examID).Error(0)
}

type mockUserSvc struct{ mock.Mock }

func (m *mockUserSvc) List(ctx context.Context, p domain.Principal, includeSelf bool) ([]domain.User, error) {
	args := m.Called(ctx, p, includeSelf)
	users, _ := args.Get(0).([]domain.User)
	return users, args.Error(1)
}

func (m *mockUserSvc) Create(ctx context.Context, p domain.Principal, req domain.CreateUserRequest) (*domain.User, error) {
	args := m.Called(ctx, p, req)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) UpdateRole(ctx context.Context, p domain.Principal, userID, role string) (*domain.User, error) {
	args := m.Called(ctx, p, userID, role)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) SetActive(ctx context.Context, p domain.Principal, userID string, active bool) (*domain.User, error) {
	args := m.Called(ctx, p, userID, active)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) Delete(ctx context.Context, p domain.Principal, userID string) error {
	return m.Called(ctx, p, userID).Error(0)
}

type mockAuditSvc struct{ mock.Mock }

func (m *mockAuditSvc) Record(ctx context.Context, entry domain.AuditLog) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockAuditSvc) List(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	args := m.Called(ctx, limit)
	rows, _ := args.Get(0).([]domain.AuditEntry)
	return rows, args.Error(1)
}

type mockStatsSvc struct{ mock.Mock }

func (m *mockStatsSvc) StudentPerformance(ctx context.Context, p domain.Principal, studentID string) (*domain.StudentPerformance, error) {
	args := m.Called(ctx, p, studentID)
	if s, _ := args.Get(0).(*domain.StudentPerformance); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStatsSvc) CourseStats(ctx context.Context, p domain.Principal) ([]domain.ExamStats, error) {
	args := m.Called(ctx, p)
	rows, _ := args.Get(0).([]domain.ExamStats)
	return rows, args.Error(1)
}

func (m *mockStatsSvc) SiteStats(ctx context.Context, p domain.Principal) (*domain.SiteStats, error) {
	args := m.Called(ctx, p)
	if s, _ := args.Get(0).(*domain.SiteStats); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockMaterialSvc struct{ mock.Mock }

func (m *mockMaterialSvc) Create(ctx context.Context, p domain.Principal, in material.CreateInput) (*domain.Material, error) {
	args := m.Called(ctx, p, in)
	if mat, _ := args.Get(0).(*domain.Material); mat != nil {
		return mat, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMaterialSvc) List(ctx context.Context) ([]domain.Material, error) {
	args := m.Called(ctx)
	rows, _ := args.Get(0).([]domain.Material)
	return rows, args.Error(1)
}

func (m *mockMaterialSvc) Get(ctx context.Context, materialID string) (*domain.Material, error) {
	args := m.Called(ctx, materialID)
	if mat, _ := args.Get(0).(*domain.Material); mat != nil {
		return mat, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMaterialSvc) Download(ctx context.Context, materialID string, index int) (io.ReadCloser, *domain.Attachment, error) {
	args := m.Called(ctx, materialID, index)
	rc, _ := args.Get(0).(io.ReadCloser)
	a, _ := args.Get(1).(*domain.Attachment)
	return rc, a, args.Error(2)
}

func (m *mockMaterialSvc) Delete(ctx context.Context, p domain.Principal, materialID string) error {
	return m.Called(ctx, p, materialID).Error(0)
}

func (m *mockMaterialSvc) DeleteByAuthor(ctx context.Context, authorID string) error {
	return m.Called(ctx, authorID).Error(0)
}

var (
	student = domain.Principal{UserID: "s1", Role: domain.RoleStudent, Email: "s1@example.com"}
	teacher = domain.Principal{UserID: "t1", Role: domain.RoleTeacher, Email: "t1@example.com"}
	admin   = domain.Principal{UserID: "a1", Role: domain.RoleAdmin, Email: "a1@example.com"}
)

// jsonReq builds a request with v encoded as the body. A string is sent verbatim.
func jsonReq(t *testing.T, method, target string, v interface{}) *http.Request {
	t.Helper()
	var body io.Reader
	switch b := v.(type) {
	case nil:
	case string:
		body = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	r := httptest.NewRequest(method, target, body)
	r.Header.Set("Content-Type", "application/json")
	return r
}

// as attaches p's claims to r the way middleware.Auth would.
func as(r *http.Request, p domain.Principal) *http.Request {
	claims := &jwtinfra.Claims{UserID: p.UserID, Role: p.Role, Email: p.Email}
	return r.WithContext(middleware.WithClaims(r.Context(), claims))
}

// withParams injects chi URL params into the request context.
func withParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(v))
}
