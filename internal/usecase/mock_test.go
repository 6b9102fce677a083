//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/model"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/ports/repository"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// fakeClock is a settable clock. Tests move time explicitly.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(at time.Time) *fakeClock { return &fakeClock{now: at} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// -----------------------------
// Mock repositories
// -----------------------------

type MockScheduleRepo struct {
	mu    sync.Mutex
	store map[string]*model.ScheduledSend

	SaveFunc             func(ctx context.Context, tx repository.Tx, s *model.ScheduledSend) error
	TransitionStatusFunc func(ctx context.Context, tx repository.Tx, s *model.ScheduledSend, from, to model.SendStatus) error
}

func NewMockScheduleRepo() *MockScheduleRepo {
	return &MockScheduleRepo{store: make(map[string]*model.ScheduledSend)}
}

func (m *MockScheduleRepo) Save(ctx context.Context, tx repository.Tx, s *model.ScheduledSend) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *MockScheduleRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ScheduledSend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockScheduleRepo) FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledSend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*model.ScheduledSend
	for _, s := range m.store {
		if s.Status == model.SendStatusScheduled && !s.ScheduledTime.After(now) {
			cp := *s
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledTime.Before(due[j].ScheduledTime) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MockScheduleRepo) TransitionStatus(ctx context.Context, tx repository.Tx, s *model.ScheduledSend, from, to model.SendStatus) error {
	if m.TransitionStatusFunc != nil {
		return m.TransitionStatusFunc(ctx, tx, s, from, to)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[s.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Status != from {
		return domain.ErrConflict
	}
	cp := *s
	cp.Status = to
	m.store[s.ID] = &cp
	s.Status = to
	return nil
}

func (m *MockScheduleRepo) CountInWindow(ctx context.Context, tx repository.Tx, accountID string, from, to time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.store {
		if s.AccountID == accountID && s.Status != model.SendStatusCancelled &&
			!s.ScheduledTime.Before(from) && s.ScheduledTime.Before(to) {
			n++
		}
	}
	return n, nil
}

func (m *MockScheduleRepo) Stats(ctx context.Context, tx repository.Tx, now time.Time) (*model.SendStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &model.SendStats{}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for _, s := range m.store {
		switch s.Status {
		case model.SendStatusScheduled:
			st.Scheduled++
			if s.ScheduledTime.After(now) && s.ScheduledTime.Before(now.Add(time.Hour)) {
				st.NextHour++
			}
			if !s.ScheduledTime.Before(dayStart) && s.ScheduledTime.Before(dayStart.AddDate(0, 0, 1)) {
				st.Today++
			}
		case model.SendStatusSent:
			st.Sent++
		}
	}
	return st, nil
}

// All returns a snapshot sorted by nothing in particular; tests sort.
func (m *MockScheduleRepo) All() []*model.ScheduledSend {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.ScheduledSend, 0, len(m.store))
	for _, s := range m.store {
		cp := *s
		out = append(out, &cp)
	}
	return out
}

type MockExperimentRepo struct {
	mu    sync.Mutex
	store map[string]*model.Experiment

	SaveFunc func(ctx context.Context, tx repository.Tx, e *model.Experiment) error
}

func NewMockExperimentRepo() *MockExperimentRepo {
	return &MockExperimentRepo{store: make(map[string]*model.Experiment)}
}

func cloneExperiment(e *model.Experiment) *model.Experiment {
	cp := *e
	cp.Metrics = make(map[model.Variant]*model.VariantMetrics, len(e.Metrics))
	for v, m := range e.Metrics {
		mc := *m
		cp.Metrics[v] = &mc
	}
	if e.WinningVariant != nil {
		w := *e.WinningVariant
		cp.WinningVariant = &w
	}
	return &cp
}

func (m *MockExperimentRepo) Save(ctx context.Context, tx repository.Tx, e *model.Experiment) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[e.ID] = cloneExperiment(e)
	return nil
}

func (m *MockExperimentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneExperiment(e), nil
}

func (m *MockExperimentRepo) ListCompleted(ctx context.Context, tx repository.Tx) ([]*model.Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Experiment
	for _, e := range m.store {
		if e.Status == model.ExperimentStatusCompleted {
			out = append(out, cloneExperiment(e))
		}
	}
	return out, nil
}

type MockCooldownRepo struct {
	mu      sync.Mutex
	records []*model.CooldownRecord

	AppendFunc func(ctx context.Context, tx repository.Tx, rec *model.CooldownRecord) error
}

func NewMockCooldownRepo() *MockCooldownRepo { return &MockCooldownRepo{} }

func (m *MockCooldownRepo) Append(ctx context.Context, tx repository.Tx, rec *model.CooldownRecord) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, tx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records = append(m.records, &cp)
	return nil
}

func (m *MockCooldownRepo) CountSince(ctx context.Context, tx repository.Tx, accountID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.AccountID == accountID && !r.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

// MockLocker hands out locks unconditionally unless FailLock is set.
type MockLocker struct {
	mu       sync.Mutex
	FailLock bool
	held     map[string]string
}

func NewMockLocker() *MockLocker { return &MockLocker{held: make(map[string]string)} }

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailLock {
		return "", domain.ErrLockNotAcquired
	}
	if _, taken := m.held[key]; taken {
		return "", domain.ErrLockNotAcquired
	}
	m.held[key] = "tok-" + key
	return m.held[key], nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	return nil
}
