// Package examclient talks to the EduSphere API on behalf of a student taking an exam.
package examclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/edusphere-api/internal/domain"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login checks the password. The server answers with a challenge; the token
// only comes from VerifyOTP.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.LoginChallenge, error) {
	var out domain.LoginChallenge
	err := c.do(ctx, http.MethodPost, "/auth/login", domain.LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &out, nil
}

// VerifyOTP completes the login and keeps the issued token for later calls.
func (c *Client) VerifyOTP(ctx context.Context, email, code string) (*domain.Session, error) {
	var out struct {
		Message string       `json:"message"`
		Token   string       `json:"token"`
		User    *domain.User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/verify-otp", domain.VerifyOTPRequest{Email: email, Code: code}, &out)
	if err != nil {
		return nil, fmt.Errorf("verify otp: %w", err)
	}
	if out.Token == "" {
		return nil, fmt.Errorf("verify otp: empty token: %w", domain.ErrUnauthorized)
	}
	c.mu.Lock()
	c.token = out.Token
	c.mu.Unlock()
	return &domain.Session{Token: out.Token, User: out.User}, nil
}

func (c *Client) ListExams(ctx context.Context) ([]domain.Exam, error) {
	var out []domain.Exam
	if err := c.do(ctx, http.MethodGet, "/exams", nil, &out); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return out, nil
}

func (c *Client) GetExam(ctx context.Context, examID string) (*domain.Exam, error) {
	var out domain.Exam
	if err := c.do(ctx, http.MethodGet, "/exams/"+url.PathEscape(examID), nil, &out); err != nil {
		return nil, fmt.Errorf("get exam %s: %w", examID, err)
	}
	return &out, nil
}

// Submit sends an attempt. A second submission for the same exam comes back
// as domain.ErrDuplicateSubmission.
func (c *Client) Submit(ctx context.Context, req domain.SubmitRequest) error {
	if req.Answers == nil {
		req.Answers = []domain.Answer{}
	}
	var out struct {
		Message      string `json:"message"`
		SubmissionID string `json:"submissionId"`
	}
	if err := c.do(ctx, http.MethodPost, "/submissions", req, &out); err != nil {
		return fmt.Errorf("submit %s: %w", req.ExamID, err)
	}
	return nil
}

func (c *Client) MyResults(ctx context.Context) ([]domain.StudentResult, error) {
	var out []domain.StudentResult
	if err := c.do(ctx, http.MethodGet, "/submissions/my-results", nil, &out); err != nil {
		return nil, fmt.Errorf("my results: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return errorFromResponse(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// APIError is a non-2xx answer. It unwraps to the matching domain sentinel.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return domain.ErrBadRequest
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrDuplicateSubmission
	}
	return nil
}

func errorFromResponse(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload); err == nil {
		apiErr.Message = payload.Message
	}
	return apiErr
}
