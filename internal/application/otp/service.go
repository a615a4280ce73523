package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/edusphere-api/internal/domain"
	"github.com/edusphere-api/internal/pkg/token"
)

// DefaultTTL is how long an issued code stays valid.
const DefaultTTL = 10 * time.Minute

type codeStore interface {
	Put(ctx context.Context, c *domain.OneTimeCode) error
	Consume(ctx context.Context, email, purpose, code string, now time.Time) error
	ConsumeAndVerifyUser(ctx context.Context, email, code, userID string, now time.Time) error
	ConsumeAndSetPassword(ctx context.Context, email, code, userID, passwordHash string, now time.Time) error
}

// Service issues and redeems one-time codes. Every redeem is single-use:
// the store flips used=true under a condition, so a replay always fails.
type Service interface {
	Issue(ctx context.Context, email, purpose string) (string, error)
	Consume(ctx context.Context, email, purpose, code string) error
	RedeemVerification(ctx context.Context, email, code, userID string) error
	RedeemPasswordReset(ctx context.Context, email, code, userID, passwordHash string) error
	TTL() time.Duration
}

type ServiceDeps struct {
	Store    codeStore
	TTL      time.Duration
	Now      func() time.Time
	Generate func() (string, error)
}

type service struct {
	store    codeStore
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
}

func NewService(deps ServiceDeps) Service {
	s := &service{store: deps.Store, ttl: deps.TTL, now: deps.Now, generate: deps.Generate}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.generate == nil {
		s.generate = token.NewOTPCode
	}
	return s
}

func (s *service) TTL() time.Duration { return s.ttl }

// Issue stores a fresh code for (email, purpose), replacing any previous one.
func (s *service) Issue(ctx context.Context, email, purpose string) (string, error) {
	if purpose != domain.PurposeVerification && purpose != domain.PurposePasswordReset {
		return "", fmt.Errorf("unknown otp purpose %q: %w", purpose, domain.ErrBadRequest)
	}
	code, err := s.generate()
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	c := &domain.OneTimeCode{
		Email:    email,
		Purpose:  purpose,
		Code:     code,
		IssuedAt: now,
	}
	c.SetDeadline(now.Add(s.ttl))
	if err := s.store.Put(ctx, c); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	return code, nil
}

func (s *service) Consume(ctx context.Context, email, purpose, code string) error {
	return s.store.Consume(ctx, email, purpose, code, s.now())
}

func (s *service) RedeemVerification(ctx context.Context, email, code, userID string) error {
	return s.store.ConsumeAndVerifyUser(ctx, email, code, userID, s.now())
}

func (s *service) RedeemPasswordReset(ctx context.Context, email, code, userID, passwordHash string) error {
	return s.store.ConsumeAndSetPassword(ctx, email, code, userID, passwordHash, s.now())
}
