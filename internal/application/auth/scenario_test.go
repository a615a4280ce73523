package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/edusphere-api/internal/application/otp"
	"github.com/edusphere-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// memDB backs both the user store and the code store.
type memDB struct {
	mu    sync.Mutex
	users map[string]*domain.User
	codes map[string]domain.OneTimeCode
}

func newMemDB() *memDB {
	return &memDB{users: map[string]*domain.User{}, codes: map[string]domain.OneTimeCode{}}
}

func (m *memDB) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return domain.ErrConflict
	}
	cp := *u
	m.users[u.Email] = &cp
	return nil
}

func (m *memDB) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memDB) Put(_ context.Context, c *domain.OneTimeCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[c.Email+"#"+c.Purpose] = *c
	return nil
}

func (m *memDB) consume(email, purpose, code string, now time.Time) error {
	c, ok := m.codes[email+"#"+purpose]
	if !ok || c.Code != code || !c.Usable(now) {
		return domain.ErrInvalidOrExpiredCode
	}
	c.Used = true
	m.codes[email+"#"+purpose] = c
	return nil
}

func (m *memDB) Consume(_ context.Context, email, purpose, code string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consume(email, purpose, code, now)
}

func (m *memDB) ConsumeAndVerifyUser(_ context.Context, email, code, _ string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.consume(email, domain.PurposeVerification, code, now); err != nil {
		return err
	}
	m.users[email].Verified = true
	return nil
}

func (m *memDB) ConsumeAndSetPassword(_ context.Context, email, code, _, hash string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.consume(email, domain.PurposePasswordReset, code, now); err != nil {
		return err
	}
	m.users[email].PasswordHash = hash
	return nil
}

// inbox keeps the last code mailed to each address.
type inbox struct {
	mu   sync.Mutex
	last map[string]string
}

func (i *inbox) SendVerificationCode(_ context.Context, to, code string, _ time.Duration) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.last[to] = code
	return nil
}

func (i *inbox) SendPasswordResetCode(ctx context.Context, to, code string, ttl time.Duration) error {
	return i.SendVerificationCode(ctx, to, code, ttl)
}

type staticSigner struct{}

func (staticSigner) Sign(userID, _, _ string) (string, error) { return "token-" + userID, nil }

type nopAudit struct{}

func (nopAudit) Record(context.Context, domain.AuditLog) error { return nil }

func newScenario() (Service, *memDB, *inbox) {
	db := newMemDB()
	box := &inbox{last: map[string]string{}}
	codes := []string{"111111", "222222", "333333", "444444"}
	n := 0
	svc := NewService(ServiceDeps{
		UserRepo: db,
		Codes: otp.NewService(otp.ServiceDeps{Store: db, Generate: func() (string, error) {
			c := codes[n%len(codes)]
			n++
			return c, nil
		}}),
		Mailer:      box,
		JWTProvider: staticSigner{},
		Audit:       nopAudit{},
		HashCost:    bcrypt.MinCost,
	})
	return svc, db, box
}

func TestScenario_RegisterResendVerify(t *testing.T) {
	svc, _, box := newScenario()
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "secret123"})
	require.NoError(t, err)
	first := box.last["alice@example.com"]

	_, err = svc.ResendOTP(ctx, "alice@example.com")
	require.NoError(t, err)
	second := box.last["alice@example.com"]
	require.NotEqual(t, first, second)

	_, err = svc.VerifyOTP(ctx, domain.VerifyOTPRequest{Email: "alice@example.com", Code: first})
	assert.True(t, errors.Is(err, domain.ErrInvalidOrExpiredCode))

	sess, err := svc.VerifyOTP(ctx, domain.VerifyOTPRequest{Email: "alice@example.com", Code: second})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, domain.RoleStudent, sess.User.Role)
	assert.True(t, sess.User.Verified)

	_, err = svc.VerifyOTP(ctx, domain.VerifyOTPRequest{Email: "alice@example.com", Code: second})
	assert.True(t, errors.Is(err, domain.ErrInvalidOrExpiredCode))
}

func TestScenario_ResetThenLoginWithNewPassword(t *testing.T) {
	svc, _, box := newScenario()
	ctx := context.Background()

	_, err := svc.Register(ctx, domain.RegisterRequest{Name: "Bob", Email: "bob@example.com", Password: "oldpass1"})
	require.NoError(t, err)

	svc.RequestPasswordReset(ctx, "bob@example.com")
	code := box.last["bob@example.com"]
	_, err = svc.ResetPassword(ctx, domain.ResetPasswordRequest{Email: "bob@example.com", Code: code, NewPassword: "newpass1"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, domain.LoginRequest{Email: "bob@example.com", Password: "oldpass1"})
	assert.True(t, errors.Is(err, domain.ErrInvalidCredentials))

	ch, err := svc.Login(ctx, domain.LoginRequest{Email: "bob@example.com", Password: "newpass1"})
	require.NoError(t, err)
	assert.True(t, ch.RequireOTP)
}
