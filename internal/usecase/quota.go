package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/config"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain"
)

// CounterStore holds the rolling hour/day reservation counters behind
// QuotaTracker. The redis implementation is shared across processes; the
// in-memory one backs tests and single-node runs.
type CounterStore interface {
	// ReserveIfBelow atomically increments both window counters iff the hour
	// count is below hourlyLimit and the day count below dailyLimit. The
	// check and both increments are one atomic step per account.
	ReserveIfBelow(ctx context.Context, accountID string, hourStart, dayStart time.Time, hourlyLimit, dailyLimit int) (bool, error)

	// Release undoes one reservation in both windows (persist failed).
	Release(ctx context.Context, accountID string, hourStart, dayStart time.Time) error

	// Counts reads both counters without mutating them.
	Counts(ctx context.Context, accountID string, hourStart, dayStart time.Time) (hour int, day int, err error)
}

// QuotaTracker enforces the per-account rolling hour/day send caps.
type QuotaTracker struct {
	store         CounterStore
	hourlyLimit   int
	dailyLimit    int
	searchHorizon time.Duration
	log           *zerolog.Logger
}

func NewQuotaTracker(store CounterStore, cfg config.QuotaConfig, logger *zerolog.Logger) *QuotaTracker {
	compLog := logger.With().Str("component", "QuotaTracker").Logger()
	return &QuotaTracker{
		store:         store,
		hourlyLimit:   cfg.HourlyLimit,
		dailyLimit:    cfg.DailyLimit,
		searchHorizon: cfg.SearchHorizon,
		log:           &compLog,
	}
}

func hourWindow(t time.Time) time.Time { return t.Truncate(time.Hour) }

func dayWindow(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// CheckAndReserve reserves one send in t's hour and day windows. Returns
// false when either window is full; the counters are untouched in that case.
func (q *QuotaTracker) CheckAndReserve(ctx context.Context, accountID string, t time.Time) (bool, error) {
	if accountID == "" {
		return false, domain.ErrInvalidArgument
	}
	ok, err := q.store.ReserveIfBelow(ctx, accountID, hourWindow(t), dayWindow(t), q.hourlyLimit, q.dailyLimit)
	if err != nil {
		return false, err
	}
	if !ok {
		q.log.Debug().Str("account_id", accountID).Time("slot", t).Msg("quota window full")
	}
	return ok, nil
}

// Release undoes a reservation whose ScheduledSend row failed to persist.
func (q *QuotaTracker) Release(ctx context.Context, accountID string, t time.Time) error {
	return q.store.Release(ctx, accountID, hourWindow(t), dayWindow(t))
}

// NextAvailableSlot probes forward from `after` in whole-hour steps until a
// reservation would succeed. It never mutates the counters. The search is
// bounded by the configured horizon; domain.ErrRateLimited is returned when
// no slot exists within it.
func (q *QuotaTracker) NextAvailableSlot(ctx context.Context, accountID string, after time.Time) (time.Time, error) {
	candidate := after
	deadline := after.Add(q.searchHorizon)
	for !candidate.After(deadline) {
		hour, day, err := q.store.Counts(ctx, accountID, hourWindow(candidate), dayWindow(candidate))
		if err != nil {
			return time.Time{}, err
		}
		if hour < q.hourlyLimit && day < q.dailyLimit {
			return candidate, nil
		}
		// Jump to the top of the next hour; sub-hour probing cannot free
		// up an exhausted window.
		candidate = hourWindow(candidate).Add(time.Hour)
	}
	return time.Time{}, domain.ErrRateLimited
}

// --- in-memory store ---

// MemoryCounterStore is a process-local CounterStore. Each window keeps its
// own counter keyed by account and window start, so probing a future slot
// never disturbs the live window.
type MemoryCounterStore struct {
	mu    sync.Mutex
	hours map[string]int
	days  map[string]int
}

var _ CounterStore = (*MemoryCounterStore)(nil)

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{hours: make(map[string]int), days: make(map[string]int)}
}

func winKey(accountID string, start time.Time) string {
	return accountID + "|" + start.UTC().Format("2006010215")
}

func (s *MemoryCounterStore) ReserveIfBelow(_ context.Context, accountID string, hourStart, dayStart time.Time, hourlyLimit, dailyLimit int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hk, dk := winKey(accountID, hourStart), winKey(accountID, dayStart)
	if s.hours[hk] >= hourlyLimit || s.days[dk] >= dailyLimit {
		return false, nil
	}
	s.hours[hk]++
	s.days[dk]++
	return true, nil
}

func (s *MemoryCounterStore) Release(_ context.Context, accountID string, hourStart, dayStart time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	hk, dk := winKey(accountID, hourStart), winKey(accountID, dayStart)
	if s.hours[hk] > 0 {
		s.hours[hk]--
	}
	if s.days[dk] > 0 {
		s.days[dk]--
	}
	return nil
}

func (s *MemoryCounterStore) Counts(_ context.Context, accountID string, hourStart, dayStart time.Time) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hours[winKey(accountID, hourStart)], s.days[winKey(accountID, dayStart)], nil
}
