package otp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/edusphere-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore applies the same conditions as the DynamoDB repo.
type memStore struct {
	mu       sync.Mutex
	codes    map[string]domain.OneTimeCode
	verified map[string]bool
	hashes   map[string]string
}

func newMemStore() *memStore {
	return &memStore{codes: map[string]domain.OneTimeCode{}, verified: map[string]bool{}, hashes: map[string]string{}}
}

func key(email, purpose string) string { return email + "#" + purpose }

func (m *memStore) Put(_ context.Context, c *domain.OneTimeCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[key(c.Email, c.Purpose)] = *c
	return nil
}

func (m *memStore) Consume(_ context.Context, email, purpose, code string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consumeLocked(email, purpose, code, now)
}

func (m *memStore) consumeLocked(email, purpose, code string, now time.Time) error {
	c, ok := m.codes[key(email, purpose)]
	if !ok || c.Code != code || !c.Usable(now) {
		return fmt.Errorf("consume: %w", domain.ErrInvalidOrExpiredCode)
	}
	c.Used = true
	m.codes[key(email, purpose)] = c
	return nil
}

func (m *memStore) ConsumeAndVerifyUser(_ context.Context, email, code, userID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.consumeLocked(email, domain.PurposeVerification, code, now); err != nil {
		return err
	}
	m.verified[userID] = true
	return nil
}

func (m *memStore) ConsumeAndSetPassword(_ context.Context, email, code, userID, hash string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.consumeLocked(email, domain.PurposePasswordReset, code, now); err != nil {
		return err
	}
	m.hashes[userID] = hash
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func sequence(codes ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}

func newTestService(store *memStore, clk *clock, gen func() (string, error)) Service {
	return NewService(ServiceDeps{Store: store, Now: clk.now, Generate: gen})
}

func TestIssue_StoresCodeWithTenMinuteExpiry(t *testing.T) {
	store := newMemStore()
	clk := &clock{t: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clk, sequence("123456"))

	code, err := svc.Issue(context.Background(), "a@b.com", domain.PurposeVerification)
	require.NoError(t, err)
	assert.Equal(t, "123456", code)
	stored := store.codes[key("a@b.com", domain.PurposeVerification)]
	assert.Equal(t, clk.t.Add(10*time.Minute).Unix(), stored.ExpiresAt)
	assert.Equal(t, clk.t.Add(10*time.Minute).UnixMilli(), stored.ValidUntil)
	assert.False(t, stored.Used)
	assert.Equal(t, DefaultTTL, svc.TTL())
}

func TestIssue_UnknownPurpose(t *testing.T) {
	svc := newTestService(newMemStore(), &clock{t: time.Now()}, sequence("123456"))
	_, err := svc.Issue(context.Background(), "a@b.com", "SOMETHING")
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestConsume_SucceedsAtMostOnce(t *testing.T) {
	clk := &clock{t: time.Now()}
	svc := newTestService(newMemStore(), clk, sequence("111111"))
	ctx := context.Background()

	code, err := svc.Issue(ctx, "a@b.com", domain.PurposeVerification)
	require.NoError(t, err)

	require.NoError(t, svc.Consume(ctx, "a@b.com", domain.PurposeVerification, code))
	err = svc.Consume(ctx, "a@b.com", domain.PurposeVerification, code)
	assert.True(t, errors.Is(err, domain.ErrInvalidOrExpiredCode))
}

func TestConsume_ReissueInvalidatesPrevious(t *testing.T) {
	clk := &clock{t: time.Now()}
	svc := newTestService(newMemStore(), clk, sequence("111111", "222222"))
	ctx := context.Background()

	first, err := svc.Issue(ctx, "a@b.com", domain.PurposeVerification)
	require.NoError(t, err)
	second, err := svc.Issue(ctx, "a@b.com", domain.PurposeVerification)
	require.NoError(t, err)

	assert.True(t, errors.Is(svc.Consume(ctx, "a@b.com", domain.PurposeVerification, first), domain.ErrInvalidOrExpiredCode))
	assert.NoError(t, svc.Consume(ctx, "a@b.com", domain.PurposeVerification, second))
}

func TestConsume_PurposesAreIndependent(t *testing.T) {
	clk := &clock{t: time.Now()}
	svc := newTestService(newMemStore(), clk, sequence("111111", "222222"))
	ctx := context.Background()

	verify, err := svc.Issue(ctx, "a@b.com", domain.PurposeVerification)
	require.NoError(t, err)
	_, err = svc.Issue(ctx, "a@b.com", domain.PurposePasswordReset)
	require.NoError(t, err)

	assert.True(t, errors.Is(svc.Consume(ctx, "a@b.com", domain.PurposePasswordReset, verify), domain.ErrInvalidOrExpiredCode))
	assert.NoError(t, svc.Consume(ctx, "a@b.com", domain.PurposeVerification, verify))
}

func TestConsume_ExpiresAfterTenMinutes(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(newMemStore(), clk, sequence("111111"))
	ctx := context.Background()

	code, err := svc.Issue(ctx, "a@b.com", domain.PurposeVerification)
	require.NoError(t, err)

	clk.advance(10 * time.Minute)
	err = svc.Consume(ctx, "a@b.com", domain.PurposeVerification, code)
	assert.True(t, errors.Is(err, domain.ErrInvalidOrExpiredCode))
}

func TestConsume_ValidJustBeforeExpiry(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(newMemStore(), clk, sequence("111111"))
	ctx := context.Background()

	code, err := svc.Issue(ctx, "a@b.com", domain.PurposeVerification)
	require.NoError(t, err)

	clk.advance(9*time.Minute + 59*time.Second)
	assert.NoError(t, svc.Consume(ctx, "a@b.com", domain.PurposeVerification, code))
}

func TestRedeem_ConcurrentCallersOnlyOneWins(t *testing.T) {
	store := newMemStore()
	clk := &clock{t: time.Now()}
	svc := newTestService(store, clk, sequence("333333"))
	ctx := context.Background()
	code, err := svc.Issue(ctx, "a@b.com", domain.PurposeVerification)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if svc.RedeemVerification(ctx, "a@b.com", code, "u1") == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.True(t, store.verified["u1"])
}

func TestRedeemPasswordReset_WrongPurposeCode(t *testing.T) {
	store := newMemStore()
	clk := &clock{t: time.Now()}
	svc := newTestService(store, clk, sequence("444444"))
	ctx := context.Background()
	code, err := svc.Issue(ctx, "a@b.com", domain.PurposeVerification)
	require.NoError(t, err)

	err = svc.RedeemPasswordReset(ctx, "a@b.com", code, "u1", "hash")
	assert.True(t, errors.Is(err, domain.ErrInvalidOrExpiredCode))
	assert.Empty(t, store.hashes)
}
