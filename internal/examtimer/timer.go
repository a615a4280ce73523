// Package examtimer runs the client side of a timed exam: a countdown anchored
// to a persisted start time that submits whatever was answered when time runs out.
package examtimer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/edusphere-api/internal/domain"
)

type State int

const (
	NotStarted State = iota
	Running
	Expired
	Submitted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NOT_STARTED"
	case Running:
		return "RUNNING"
	case Expired:
		return "EXPIRED"
	case Submitted:
		return "SUBMITTED"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

var (
	// ErrSubmissionUnconfirmed means every delivery attempt failed. The start
	// time is kept so the attempt can still be sent later.
	ErrSubmissionUnconfirmed = errors.New("submission could not be confirmed")
	ErrSubmissionInFlight    = errors.New("submission already in progress")
	ErrNotRunning            = errors.New("exam is not running")
)

const (
	defaultTick       = time.Second
	defaultMaxRetries = 3
	defaultBackoff    = time.Second
)

// Submitter sends an attempt to the server. A duplicate must come back
// wrapping domain.ErrConflict.
type Submitter interface {
	Submit(ctx context.Context, req domain.SubmitRequest) error
}

type Config struct {
	ExamID    string
	Duration  time.Duration
	Storage   ScopedStorage
	Submitter Submitter
	Now       func() time.Time
	// Tick defaults to one second.
	Tick         time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	// OnTick receives the whole seconds left on every tick.
	OnTick func(remaining time.Duration)
	// OnExpired runs once, after the automatic submission finished or gave up.
	OnExpired func(err error)
}

// Timer is safe for concurrent use. OnTick and OnExpired run on the timer's
// goroutine and must not call Stop.
type Timer struct {
	examID     string
	duration   time.Duration
	storage    ScopedStorage
	submitter  Submitter
	now        func() time.Time
	tick       time.Duration
	maxRetries int
	backoff    time.Duration
	onTick     func(time.Duration)
	onExpired  func(error)

	mu         sync.Mutex
	state      State
	start      time.Time
	answers    map[int]int
	submitting bool
	inflight   chan struct{}

	stopOnce sync.Once
	stop     chan struct{}
	loopDone chan struct{}
	doneOnce sync.Once
	done     chan struct{}
}

// StorageKey is where the start time of examID lives, as epoch milliseconds.
func StorageKey(examID string) string { return "exam_start_" + examID }

// AnswersKey is where the recorded answers of examID live, as a JSON array.
func AnswersKey(examID string) string { return "exam_answers_" + examID }

func New(cfg Config) (*Timer, error) {
	if cfg.ExamID == "" {
		return nil, fmt.Errorf("exam id is required: %w", domain.ErrBadRequest)
	}
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive: %w", domain.ErrBadRequest)
	}
	if cfg.Storage == nil || cfg.Submitter == nil {
		return nil, fmt.Errorf("storage and submitter are required: %w", domain.ErrBadRequest)
	}
	t := &Timer{
		examID:     cfg.ExamID,
		duration:   cfg.Duration,
		storage:    cfg.Storage,
		submitter:  cfg.Submitter,
		now:        cfg.Now,
		tick:       cfg.Tick,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		onTick:     cfg.OnTick,
		onExpired:  cfg.OnExpired,
		answers:    make(map[int]int),
		stop:       make(chan struct{}),
		loopDone:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.tick <= 0 {
		t.tick = defaultTick
	}
	if t.maxRetries <= 0 {
		t.maxRetries = defaultMaxRetries
	}
	if t.backoff <= 0 {
		t.backoff = defaultBackoff
	}
	return t, nil
}

// Start loads the persisted start time, or records now if there is none, and
// begins the countdown. Answers recorded by an earlier run are restored. A
// start time already past the deadline expires at once.
func (t *Timer) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state != NotStarted {
		t.mu.Unlock()
		return fmt.Errorf("exam %s already started", t.examID)
	}
	start, err := t.anchor()
	if err != nil {
		t.mu.Unlock()
		return err
	}
	t.start = start
	t.restoreAnswers()
	t.state = Running
	t.mu.Unlock()

	go t.run(ctx)
	return nil
}

func (t *Timer) anchor() (time.Time, error) {
	key := StorageKey(t.examID)
	v, ok, err := t.storage.Get(key)
	if err != nil {
		return time.Time{}, fmt.Errorf("read start time: %w", err)
	}
	if ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.UnixMilli(ms), nil
		}
		slog.Warn("discarding unreadable exam start time", "key", key, "value", v)
	}
	ms := t.now().UnixMilli()
	if err := t.storage.Set(key, strconv.FormatInt(ms, 10)); err != nil {
		return time.Time{}, fmt.Errorf("persist start time: %w", err)
	}
	return time.UnixMilli(ms), nil
}

func (t *Timer) restoreAnswers() {
	key := AnswersKey(t.examID)
	v, ok, err := t.storage.Get(key)
	if err != nil || !ok {
		if err != nil {
			slog.Warn("could not read saved answers", "key", key, "err", err)
		}
		return
	}
	var saved []domain.Answer
	if err := json.Unmarshal([]byte(v), &saved); err != nil {
		slog.Warn("discarding unreadable saved answers", "key", key, "err", err)
		return
	}
	for _, a := range saved {
		t.answers[a.QuestionIndex] = a.Answer
	}
}

func (t *Timer) saveAnswersLocked() error {
	data, err := json.Marshal(t.answersLocked())
	if err != nil {
		return err
	}
	if err := t.storage.Set(AnswersKey(t.examID), string(data)); err != nil {
		return fmt.Errorf("persist answers: %w", err)
	}
	return nil
}

func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Timer) StartedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.start
}

// Done is closed once the attempt is confirmed by the server.
func (t *Timer) Done() <-chan struct{} { return t.done }

// Remaining is the whole seconds left at now, never negative.
func (t *Timer) Remaining(now time.Time) time.Duration {
	t.mu.Lock()
	start, state := t.start, t.state
	t.mu.Unlock()
	if state == NotStarted {
		return t.duration
	}
	return remaining(start, t.duration, now)
}

func remaining(start time.Time, d time.Duration, now time.Time) time.Duration {
	left := start.Add(d).Sub(now)
	if left <= 0 {
		return 0
	}
	if left > d {
		left = d
	}
	return left.Truncate(time.Second)
}

// Answer records option for questionIndex, replacing any earlier choice, and
// persists the full set so a restart can still send it. The choice is kept in
// memory even when persisting fails.
func (t *Timer) Answer(questionIndex, option int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Running {
		return ErrNotRunning
	}
	t.answers[questionIndex] = option
	return t.saveAnswersLocked()
}

// Answers returns the recorded choices ordered by question. Unanswered
// questions are absent.
func (t *Timer) Answers() []domain.Answer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.answersLocked()
}

func (t *Timer) answersLocked() []domain.Answer {
	out := make([]domain.Answer, 0, len(t.answers))
	for q, a := range t.answers {
		out = append(out, domain.Answer{QuestionIndex: q, Answer: a})
	}
	slices.SortFunc(out, func(a, b domain.Answer) int { return a.QuestionIndex - b.QuestionIndex })
	return out
}

// Submit sends the attempt now. It returns nil if the attempt is already recorded.
func (t *Timer) Submit(ctx context.Context) error {
	return t.submit(ctx, false)
}

// Stop ends the countdown without submitting. The start time and answers stay persisted.
func (t *Timer) Stop() {
	t.halt()
	if t.State() != NotStarted {
		<-t.loopDone
	}
}

func (t *Timer) halt() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *Timer) run(ctx context.Context) {
	defer close(t.loopDone)
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()
	for {
		if t.check(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
		}
	}
}

// check handles one tick and reports whether the loop is finished.
func (t *Timer) check(ctx context.Context) bool {
	now := t.now()
	t.mu.Lock()
	if t.state != Running {
		t.mu.Unlock()
		return true
	}
	if now.Before(t.start.Add(t.duration)) {
		left := remaining(t.start, t.duration, now)
		t.mu.Unlock()
		if t.onTick != nil {
			t.onTick(left)
		}
		return false
	}
	t.state = Expired
	t.mu.Unlock()

	if t.onTick != nil {
		t.onTick(0)
	}
	err := t.submit(ctx, true)
	if err != nil {
		slog.Error("automatic submission failed", "exam_id", t.examID, "err", err)
	}
	if t.onExpired != nil {
		t.onExpired(err)
	}
	return true
}

// submit sends the attempt once. A manual call made while another submission
// is in flight fails fast; the automatic call waits for that submission and
// only sends its own if the first one failed.
func (t *Timer) submit(ctx context.Context, auto bool) error {
	t.mu.Lock()
	for t.submitting && t.state != Submitted {
		if !auto {
			t.mu.Unlock()
			return ErrSubmissionInFlight
		}
		wait := t.inflight
		t.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrSubmissionUnconfirmed, ctx.Err())
		case <-t.stop:
			if t.State() == Submitted {
				return nil
			}
			return fmt.Errorf("%w: timer stopped", ErrSubmissionUnconfirmed)
		}
		t.mu.Lock()
	}
	switch t.state {
	case Submitted:
		t.mu.Unlock()
		return nil
	case NotStarted:
		t.mu.Unlock()
		return ErrNotRunning
	}
	t.submitting = true
	t.inflight = make(chan struct{})
	req := domain.SubmitRequest{ExamID: t.examID, Answers: t.answersLocked(), AutoSubmitted: auto}
	t.mu.Unlock()

	err := t.deliver(ctx, req)

	t.mu.Lock()
	t.submitting = false
	close(t.inflight)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	t.state = Submitted
	t.mu.Unlock()

	for _, key := range []string{StorageKey(t.examID), AnswersKey(t.examID)} {
		if err := t.storage.Remove(key); err != nil {
			slog.Warn("could not clear saved exam state", "key", key, "err", err)
		}
	}
	t.halt()
	t.doneOnce.Do(func() { close(t.done) })
	return nil
}

func (t *Timer) deliver(ctx context.Context, req domain.SubmitRequest) error {
	wait := t.backoff
	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", ErrSubmissionUnconfirmed, ctx.Err())
			case <-t.stop:
				return fmt.Errorf("%w: timer stopped: %w", ErrSubmissionUnconfirmed, lastErr)
			case <-time.After(wait):
			}
			wait *= 2
		}
		err := t.submitter.Submit(ctx, req)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, domain.ErrConflict):
			slog.Info("exam already submitted", "exam_id", t.examID)
			return nil
		case !retryable(err):
			return err
		}
		lastErr = err
		slog.Warn("submission failed, retrying",
			"exam_id", t.examID,
			"attempt", attempt+1,
			"err", err,
		)
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrSubmissionUnconfirmed, t.maxRetries+1, lastErr)
}

// retryable is false for answers the server will repeat on every try.
func retryable(err error) bool {
	for _, permanent := range []error{
		domain.ErrBadRequest,
		domain.ErrUnauthorized,
		domain.ErrForbidden,
		domain.ErrNotFound,
	} {
		if errors.Is(err, permanent) {
			return false
		}
	}
	return true
}
