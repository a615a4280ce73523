package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edusphere-api/internal/domain"
	"github.com/edusphere-api/internal/pkg/id"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

type logStore interface {
	Put(ctx context.Context, l *domain.AuditLog) error
	List(ctx context.Context, limit int) ([]domain.AuditLog, error)
}

type actorLookup interface {
	GetMany(ctx context.Context, ids []string) (map[string]*domain.User, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

type Service interface {
	Record(ctx context.Context, entry domain.AuditLog) error
	List(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

type ServiceDeps struct {
	Repo      logStore
	Users     actorLookup
	Publisher eventPublisher // optional
	Now       func() time.Time
}

type service struct {
	repo      logStore
	users     actorLookup
	publisher eventPublisher
	now       func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{repo: deps.Repo, users: deps.Users, publisher: deps.Publisher, now: deps.Now}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Record appends entry. ID, IP and timestamp are filled here; an entry
// without an actor is dropped.
func (s *service) Record(ctx context.Context, entry domain.AuditLog) error {
	if entry.ActorID == "" {
		return nil
	}
	entry.LogID = id.New()
	entry.IP = ClientIP(ctx)
	entry.CreatedAt = s.now().UTC()
	if err := s.repo.Put(ctx, &entry); err != nil {
		return fmt.Errorf("record audit %s: %w", entry.Action, err)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, entry.Action, entry); err != nil {
			slog.Warn("audit publish failed", "action", entry.Action, "log_id", entry.LogID, "err", err)
		}
	}
	return nil
}

func (s *service) List(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	logs, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(logs))
	for _, l := range logs {
		ids = append(ids, l.ActorID)
	}
	actors, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.AuditEntry, len(logs))
	for i, l := range logs {
		out[i].AuditLog = l
		if u := actors[l.ActorID]; u != nil {
			out[i].ActorName = u.Name
			out[i].ActorEmail = u.Email
		}
	}
	return out, nil
}
