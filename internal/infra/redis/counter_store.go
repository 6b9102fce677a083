package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/usecase"
)

// CounterStore keeps the per-account hour/day reservation counters in redis
// so every process scheduling for the same account sees one set of windows.
// Keys are aligned to the window start and expire shortly after the window
// closes.
type CounterStore struct {
	cli *Client
}

var _ usecase.CounterStore = (*CounterStore)(nil)

func NewCounterStore(cli *Client) *CounterStore {
	return &CounterStore{cli: cli}
}

func hourKey(accountID string, start time.Time) string {
	return fmt.Sprintf("quota:%s:h:%s", accountID, start.UTC().Format("2006010215"))
}

func dayKey(accountID string, start time.Time) string {
	return fmt.Sprintf("quota:%s:d:%s", accountID, start.UTC().Format("20060102"))
}

// Check-and-increment of both windows as one atomic script, so two
// concurrent reservations cannot jointly exceed a limit.
var luaReserve = redis.NewScript(`
local hour = tonumber(redis.call("GET", KEYS[1]) or "0")
local day = tonumber(redis.call("GET", KEYS[2]) or "0")
if hour >= tonumber(ARGV[1]) or day >= tonumber(ARGV[2]) then
	return 0
end
redis.call("INCR", KEYS[1])
redis.call("INCR", KEYS[2])
redis.call("EXPIRE", KEYS[1], ARGV[3])
redis.call("EXPIRE", KEYS[2], ARGV[4])
return 1`)

// expirySlack keeps a key alive for a while after its window closes so a
// late Release still finds it.
const expirySlack = time.Hour

// windowTTL returns the seconds a counter key must live: until the window
// closes plus slack, measured from now. Reservations land days ahead when
// business-hours clamping or a full calendar pushes them out, so the TTL
// has to be anchored to the window, not to the moment of reservation.
func windowTTL(windowStart time.Time, windowLen time.Duration, now time.Time) int {
	ttl := windowStart.Add(windowLen).Sub(now) + expirySlack
	if ttl < expirySlack {
		ttl = expirySlack
	}
	return int(ttl.Seconds())
}

func (s *CounterStore) ReserveIfBelow(ctx context.Context, accountID string, hourStart, dayStart time.Time, hourlyLimit, dailyLimit int) (bool, error) {
	now := time.Now()
	res, err := luaReserve.Run(ctx, s.cli.cli,
		[]string{hourKey(accountID, hourStart), dayKey(accountID, dayStart)},
		hourlyLimit, dailyLimit,
		windowTTL(hourStart, time.Hour, now),
		windowTTL(dayStart, 24*time.Hour, now),
	).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

var luaRelease = redis.NewScript(`
for i = 1, 2 do
	local n = tonumber(redis.call("GET", KEYS[i]) or "0")
	if n > 0 then
		redis.call("DECR", KEYS[i])
	end
end
return 1`)

func (s *CounterStore) Release(ctx context.Context, accountID string, hourStart, dayStart time.Time) error {
	return luaRelease.Run(ctx, s.cli.cli,
		[]string{hourKey(accountID, hourStart), dayKey(accountID, dayStart)},
	).Err()
}

func (s *CounterStore) Counts(ctx context.Context, accountID string, hourStart, dayStart time.Time) (int, int, error) {
	pipe := s.cli.cli.Pipeline()
	h := pipe.Get(ctx, hourKey(accountID, hourStart))
	d := pipe.Get(ctx, dayKey(accountID, dayStart))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, 0, err
	}
	hour, _ := h.Int()
	day, _ := d.Int()
	return hour, day, nil
}
