//go:build !integration

package sched_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/config"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/model"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/ports/adapter"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/ports/repository"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/infra/sched"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		PollInterval:    time.Minute,
		BatchLimit:      10,
		DispatchTimeout: 100 * time.Millisecond,
		RetryBackoff:    30 * time.Minute,
		MinDispatchGap:  time.Millisecond,
		MaxDispatchGap:  2 * time.Millisecond,
	}
}

// ---- mocks ----

type mockScheduleRepo struct {
	mu    sync.Mutex
	store map[string]*model.ScheduledSend

	TransitionStatusFunc func(ctx context.Context, tx repository.Tx, s *model.ScheduledSend, from, to model.SendStatus) error
}

func newMockScheduleRepo() *mockScheduleRepo {
	return &mockScheduleRepo{store: make(map[string]*model.ScheduledSend)}
}

func (m *mockScheduleRepo) add(s *model.ScheduledSend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
}

func (m *mockScheduleRepo) get(id string) *model.ScheduledSend {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.store[id]; ok {
		cp := *s
		return &cp
	}
	return nil
}

func (m *mockScheduleRepo) Save(ctx context.Context, tx repository.Tx, s *model.ScheduledSend) error {
	m.add(s)
	return nil
}

func (m *mockScheduleRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ScheduledSend, error) {
	if s := m.get(id); s != nil {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockScheduleRepo) FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledSend, error) {
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

func (m *mockScheduleRepo) TransitionStatus(ctx context.Context, tx repository.Tx, s *model.ScheduledSend, from, to model.SendStatus) error {
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

func (m *mockScheduleRepo) CountInWindow(ctx context.Context, tx repository.Tx, accountID string, from, to time.Time) (int, error) {
	return 0, nil
}

func (m *mockScheduleRepo) Stats(ctx context.Context, tx repository.Tx, now time.Time) (*model.SendStats, error) {
	return &model.SendStats{}, nil
}

type mockMessageStore struct {
	mu       sync.Mutex
	statuses map[string]string

	GetMessageFunc func(ctx context.Context, id string) (*adapter.StoredMessage, error)
}

func newMockMessageStore() *mockMessageStore {
	return &mockMessageStore{statuses: make(map[string]string)}
}

func (m *mockMessageStore) GetMessage(ctx context.Context, id string) (*adapter.StoredMessage, error) {
	if m.GetMessageFunc != nil {
		return m.GetMessageFunc(ctx, id)
	}
	return &adapter.StoredMessage{ID: id, Content: "hello", LeadRef: "lead-" + id}, nil
}

func (m *mockMessageStore) UpdateMessageStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[id] = status
	return nil
}

func (m *mockMessageStore) status(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[id]
}

type mockChannel struct {
	mu   sync.Mutex
	sent []adapter.OutreachMessage

	SendFunc func(ctx context.Context, msg adapter.OutreachMessage) error
}

func (m *mockChannel) Send(ctx context.Context, msg adapter.OutreachMessage) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockChannel) sentRefs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, msg := range m.sent {
		out[i] = msg.LeadProfileRef
	}
	return out
}

type mockExperiments struct {
	mu        sync.Mutex
	sentCalls []string
}

func (m *mockExperiments) Create(ctx context.Context, name string, minSample int, threshold float64) (*model.Experiment, error) {
	return nil, errors.New("not implemented")
}

func (m *mockExperiments) NextVariant(ctx context.Context, id string) (model.Variant, error) {
	return model.VariantA, nil
}

func (m *mockExperiments) RecordSent(ctx context.Context, id string, v model.Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentCalls = append(m.sentCalls, id+"/"+string(v))
	return nil
}

func (m *mockExperiments) RecordReply(ctx context.Context, id string, v model.Variant, s float64) error {
	return nil
}

func (m *mockExperiments) Results(ctx context.Context, id string) (*model.Experiment, error) {
	return nil, domain.ErrNotFound
}

func (m *mockExperiments) BestPractices(ctx context.Context) (*model.BestPractices, error) {
	return &model.BestPractices{}, nil
}

// ---- helpers ----

func dueSend(t *testing.T, repo *mockScheduleRepo, ref string, at time.Time) *model.ScheduledSend {
	t.Helper()
	s, err := model.NewScheduledSend(ref, "acct-1", at, "UTC", false, 3, at)
	if err != nil {
		t.Fatalf("seed send: %v", err)
	}
	repo.add(s)
	return s
}

// ---- tests ----

func TestQueueWorker_Tick(t *testing.T) {
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	t.Run("delivers a due send and marks it sent", func(t *testing.T) {
		repo := newMockScheduleRepo()
		msgs := newMockMessageStore()
		ch := &mockChannel{}
		exps := &mockExperiments{}
		w := sched.NewQueueWorker(repo, msgs, ch, exps, fixedClock{now}, testQueueConfig(), testLogger())

		s := dueSend(t, repo, "msg-1", now.Add(-time.Minute))
		w.Tick(context.Background())

		got := repo.get(s.ID)
		if got.Status != model.SendStatusSent {
			t.Errorf("status = %s, want sent", got.Status)
		}
		if msgs.status("msg-1") != "sent" {
			t.Errorf("message status = %q, want sent", msgs.status("msg-1"))
		}
		if len(ch.sentRefs()) != 1 {
			t.Errorf("channel saw %d sends, want 1", len(ch.sentRefs()))
		}
	})

	t.Run("future sends are left alone", func(t *testing.T) {
		repo := newMockScheduleRepo()
		ch := &mockChannel{}
		w := sched.NewQueueWorker(repo, newMockMessageStore(), ch, &mockExperiments{}, fixedClock{now}, testQueueConfig(), testLogger())

		s := dueSend(t, repo, "msg-1", now.Add(time.Hour))
		w.Tick(context.Background())

		if got := repo.get(s.ID); got.Status != model.SendStatusScheduled {
			t.Errorf("status = %s, want scheduled", got.Status)
		}
		if len(ch.sentRefs()) != 0 {
			t.Error("future send must not dispatch")
		}
	})

	t.Run("dispatch order follows scheduled time", func(t *testing.T) {
		repo := newMockScheduleRepo()
		ch := &mockChannel{}
		w := sched.NewQueueWorker(repo, newMockMessageStore(), ch, &mockExperiments{}, fixedClock{now}, testQueueConfig(), testLogger())

		dueSend(t, repo, "late", now.Add(-time.Minute))
		dueSend(t, repo, "early", now.Add(-2*time.Hour))
		dueSend(t, repo, "mid", now.Add(-time.Hour))

		w.Tick(context.Background())

		want := []string{"lead-early", "lead-mid", "lead-late"}
		got := ch.sentRefs()
		if len(got) != len(want) {
			t.Fatalf("dispatched %d, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("dispatch[%d] = %s, want %s", i, got[i], want[i])
			}
		}
	})

	t.Run("failed delivery reschedules with backoff", func(t *testing.T) {
		repo := newMockScheduleRepo()
		ch := &mockChannel{SendFunc: func(ctx context.Context, msg adapter.OutreachMessage) error {
			return errors.New("connection reset")
		}}
		w := sched.NewQueueWorker(repo, newMockMessageStore(), ch, &mockExperiments{}, fixedClock{now}, testQueueConfig(), testLogger())

		s := dueSend(t, repo, "msg-1", now.Add(-time.Minute))
		w.Tick(context.Background())

		got := repo.get(s.ID)
		if got.Status != model.SendStatusScheduled {
			t.Fatalf("status = %s, want scheduled for retry", got.Status)
		}
		if got.RetryCount != 1 {
			t.Errorf("retry count = %d, want 1", got.RetryCount)
		}
		if want := now.Add(30 * time.Minute); !got.ScheduledTime.Equal(want) {
			t.Errorf("rescheduled to %v, want %v", got.ScheduledTime, want)
		}
		if got.ErrorMessage == "" {
			t.Error("failure must record the error message")
		}
	})

	t.Run("exhausted retries fail terminally", func(t *testing.T) {
		repo := newMockScheduleRepo()
		msgs := newMockMessageStore()
		ch := &mockChannel{SendFunc: func(ctx context.Context, msg adapter.OutreachMessage) error {
			return errors.New("still down")
		}}
		w := sched.NewQueueWorker(repo, msgs, ch, &mockExperiments{}, fixedClock{now}, testQueueConfig(), testLogger())

		s := dueSend(t, repo, "msg-1", now.Add(-time.Minute))
		s.RetryCount = 2 // one attempt left of MaxRetries=3
		repo.add(s)

		w.Tick(context.Background())

		got := repo.get(s.ID)
		if got.Status != model.SendStatusFailed {
			t.Fatalf("status = %s, want failed", got.Status)
		}
		if got.RetryCount != 3 {
			t.Errorf("retry count = %d, want 3", got.RetryCount)
		}
		if msgs.status("msg-1") != "failed" {
			t.Errorf("message status = %q, want failed", msgs.status("msg-1"))
		}
	})

	t.Run("slow channel hits the dispatch deadline and counts as failure", func(t *testing.T) {
		repo := newMockScheduleRepo()
		ch := &mockChannel{SendFunc: func(ctx context.Context, msg adapter.OutreachMessage) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
				return nil
			}
		}}
		w := sched.NewQueueWorker(repo, newMockMessageStore(), ch, &mockExperiments{}, fixedClock{now}, testQueueConfig(), testLogger())

		s := dueSend(t, repo, "msg-1", now.Add(-time.Minute))
		w.Tick(context.Background())

		got := repo.get(s.ID)
		if got.Status != model.SendStatusScheduled || got.RetryCount != 1 {
			t.Errorf("timeout should schedule a retry, got status=%s retries=%d", got.Status, got.RetryCount)
		}
	})

	t.Run("lost race against a cancel drops the result", func(t *testing.T) {
		repo := newMockScheduleRepo()
		msgs := newMockMessageStore()
		ch := &mockChannel{}
		w := sched.NewQueueWorker(repo, msgs, ch, &mockExperiments{}, fixedClock{now}, testQueueConfig(), testLogger())

		s := dueSend(t, repo, "msg-1", now.Add(-time.Minute))

		// The row is cancelled after the claim but before the transition.
		repo.TransitionStatusFunc = func(ctx context.Context, tx repository.Tx, ss *model.ScheduledSend, from, to model.SendStatus) error {
			return domain.ErrConflict
		}
		w.Tick(context.Background())

		if msgs.status("msg-1") != "" {
			t.Error("conflicting transition must not touch the message status")
		}
		_ = s
	})

	t.Run("missing message schedules a retry", func(t *testing.T) {
		repo := newMockScheduleRepo()
		msgs := newMockMessageStore()
		msgs.GetMessageFunc = func(ctx context.Context, id string) (*adapter.StoredMessage, error) {
			return nil, domain.ErrNotFound
		}
		ch := &mockChannel{}
		w := sched.NewQueueWorker(repo, msgs, ch, &mockExperiments{}, fixedClock{now}, testQueueConfig(), testLogger())

		s := dueSend(t, repo, "msg-1", now.Add(-time.Minute))
		w.Tick(context.Background())

		got := repo.get(s.ID)
		if got.RetryCount != 1 {
			t.Errorf("retry count = %d, want 1", got.RetryCount)
		}
		if len(ch.sentRefs()) != 0 {
			t.Error("nothing should reach the channel without message content")
		}
	})

	t.Run("experiment sends feed the sent counter", func(t *testing.T) {
		repo := newMockScheduleRepo()
		exps := &mockExperiments{}
		w := sched.NewQueueWorker(repo, newMockMessageStore(), &mockChannel{}, exps, fixedClock{now}, testQueueConfig(), testLogger())

		s := dueSend(t, repo, "msg-1", now.Add(-time.Minute))
		v := model.VariantB
		s.ExperimentID = "exp-1"
		s.Variant = &v
		repo.add(s)

		w.Tick(context.Background())

		exps.mu.Lock()
		defer exps.mu.Unlock()
		if len(exps.sentCalls) != 1 || exps.sentCalls[0] != "exp-1/B" {
			t.Errorf("experiment calls = %v, want [exp-1/B]", exps.sentCalls)
		}
	})
}

func TestQueueWorker_RunStopsOnCancel(t *testing.T) {
	repo := newMockScheduleRepo()
	w := sched.NewQueueWorker(repo, newMockMessageStore(), &mockChannel{}, &mockExperiments{},
		fixedClock{time.Now()}, testQueueConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
