package material

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/edusphere-api/internal/domain"
	"github.com/edusphere-api/internal/pkg/authz"
	"github.com/edusphere-api/internal/pkg/id"
	"github.com/edusphere-api/internal/pkg/sanitize"
)

const (
	MaxAttachments = 10
	urlTTL         = 15 * time.Minute
)

type UploadInput struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
}

type CreateInput struct {
	Title   string
	Content string
	Files   []UploadInput
}

type materialStore interface {
	Put(ctx context.Context, m *domain.Material) error
	Get(ctx context.Context, materialID string) (*domain.Material, error)
	List(ctx context.Context) ([]domain.Material, error)
	ListByAuthor(ctx context.Context, authorID string) ([]domain.Material, error)
	Delete(ctx context.Context, materialID string) error
}

type objectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type auditRecorder interface {
	Record(ctx context.Context, entry domain.AuditLog) error
}

type Service interface {
	Create(ctx context.Context, p domain.Principal, in CreateInput) (*domain.Material, error)
	List(ctx context.Context) ([]domain.Material, error)
	Get(ctx context.Context, materialID string) (*domain.Material, error)
	Download(ctx context.Context, materialID string, index int) (io.ReadCloser, *domain.Attachment, error)
	Delete(ctx context.Context, p domain.Principal, materialID string) error
	DeleteByAuthor(ctx context.Context, authorID string) error
}

type ServiceDeps struct {
	MaterialRepo materialStore
	Objects      objectStore
	Audit        auditRecorder
	Now          func() time.Time
}

type service struct {
	repo    materialStore
	objects objectStore
	audit   auditRecorder
	now     func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{repo: deps.MaterialRepo, objects: deps.Objects, audit: deps.Audit, now: deps.Now}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Create(ctx context.Context, p domain.Principal, in CreateInput) (*domain.Material, error) {
	if err := authz.RequireRole(p, domain.RoleTeacher, domain.RoleAdmin); err != nil {
		return nil, err
	}
	title := sanitize.Text(in.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required: %w", domain.ErrBadRequest)
	}
	if len(in.Files) > MaxAttachments {
		return nil, fmt.Errorf("at most %d attachments: %w", MaxAttachments, domain.ErrBadRequest)
	}
	materialID := id.New()
	attachments := make([]domain.Attachment, 0, len(in.Files))
	for i, f := range in.Files {
		a, err := s.upload(ctx, materialID, i, f)
		if err != nil {
			s.removeObjects(ctx, attachments)
			return nil, err
		}
		attachments = append(attachments, a)
	}
	now := s.now().UTC()
	m := &domain.Material{
		MaterialID:  materialID,
		Title:       title,
		Content:     sanitize.Text(in.Content),
		AuthorID:    p.UserID,
		Attachments: attachments,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Put(ctx, m); err != nil {
		s.removeObjects(ctx, attachments)
		return nil, err
	}
	if err := s.audit.Record(ctx, domain.AuditLog{
		ActorID:  p.UserID,
		Action:   domain.AuditMaterialCreated,
		TargetID: materialID,
		Details:  map[string]string{"title": title},
	}); err != nil {
		slog.Warn("audit record failed", "action", domain.AuditMaterialCreated, "err", err)
	}
	return m, nil
}

func (s *service) upload(ctx context.Context, materialID string, i int, f UploadInput) (domain.Attachment, error) {
	safeName := sanitizeFilename(f.Filename)
	key := fmt.Sprintf("materials/%s/%d-%s", materialID, i, safeName)
	contentType := f.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFromName(safeName)
	}
	hasher := sha256.New()
	counter := &countingReader{r: io.TeeReader(f.Reader, hasher)}
	if _, err := s.objects.Upload(ctx, key, counter, contentType); err != nil {
		return domain.Attachment{}, err
	}
	return domain.Attachment{
		Key:         key,
		Name:        safeName,
		ContentType: contentType,
		Size:        counter.n,
		Hash:        hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

func (s *service) List(ctx context.Context) ([]domain.Material, error) {
	return s.repo.List(ctx)
}

// Get returns the material with short-lived download URLs on each attachment.
func (s *service) Get(ctx context.Context, materialID string) (*domain.Material, error) {
	m, err := s.repo.Get(ctx, materialID)
	if err != nil {
		return nil, err
	}
	for i := range m.Attachments {
		url, err := s.objects.PresignedURL(ctx, m.Attachments[i].Key, urlTTL)
		if err != nil {
			return nil, err
		}
		m.Attachments[i].URL = url
	}
	return m, nil
}

func (s *service) Download(ctx context.Context, materialID string, index int) (io.ReadCloser, *domain.Attachment, error) {
	m, err := s.repo.Get(ctx, materialID)
	if err != nil {
		return nil, nil, err
	}
	if index < 0 || index >= len(m.Attachments) {
		return nil, nil, fmt.Errorf("attachment %d not found: %w", index, domain.ErrNotFound)
	}
	a := m.Attachments[index]
	rc, err := s.objects.Download(ctx, a.Key)
	if err != nil {
		return nil, nil, err
	}
	return rc, &a, nil
}

func (s *service) Delete(ctx context.Context, p domain.Principal, materialID string) error {
	if err := authz.RequireRole(p, domain.RoleTeacher, domain.RoleAdmin); err != nil {
		return err
	}
	m, err := s.repo.Get(ctx, materialID)
	if err != nil {
		return err
	}
	if err := authz.RequireOwnerOrAdmin(p, m.AuthorID); err != nil {
		return err
	}
	return s.delete(ctx, m)
}

// DeleteByAuthor removes every material the user authored, objects included.
func (s *service) DeleteByAuthor(ctx context.Context, authorID string) error {
	ms, err := s.repo.ListByAuthor(ctx, authorID)
	if err != nil {
		return err
	}
	for i := range ms {
		if err := s.delete(ctx, &ms[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) delete(ctx context.Context, m *domain.Material) error {
	if err := s.repo.Delete(ctx, m.MaterialID); err != nil {
		return err
	}
	s.removeObjects(ctx, m.Attachments)
	return nil
}

// removeObjects is best effort; an orphaned object is only wasted space.
func (s *service) removeObjects(ctx context.Context, attachments []domain.Attachment) {
	for _, a := range attachments {
		if err := s.objects.Delete(ctx, a.Key); err != nil {
			slog.Warn("failed to delete attachment object", "key", a.Key, "err", err)
		}
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func contentTypeFromName(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".docx"):
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case strings.HasSuffix(lower, ".pptx"):
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case strings.HasSuffix(lower, ".txt"):
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// sanitizeFilename drops directory components and replaces anything outside
// [A-Za-z0-9._-] so the name is safe inside an S3 key.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if result := b.String(); result != "" && result != "." && result != ".." {
		return result
	}
	return "_"
}
