//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/config"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/usecase"
)

func newCooldown(repo *MockCooldownRepo, locker *MockLocker, clock *fakeClock, weeklyLimit int) usecase.CooldownGuard {
	cfg := config.CooldownConfig{WeeklyLimit: weeklyLimit}
	return usecase.NewCooldownGuard(repo, locker, clock, cfg, newTestLogger())
}

func TestCooldownGuard_CheckCanProceed(t *testing.T) {
	ctx := context.Background()
	// Wednesday mid-week.
	now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

	t.Run("fresh account is allowed", func(t *testing.T) {
		guard := newCooldown(NewMockCooldownRepo(), NewMockLocker(), newFakeClock(now), 1)

		st, err := guard.CheckCanProceed(ctx, "acct-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !st.Allowed {
			t.Error("fresh account should be allowed")
		}
		if st.Remaining != 1 || st.UsedThisWindow != 0 {
			t.Errorf("status = %+v, want remaining 1, used 0", st)
		}
		wantReset := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC) // next Monday
		if !st.NextReset.Equal(wantReset) {
			t.Errorf("next reset = %v, want %v", st.NextReset, wantReset)
		}
	})

	t.Run("account at the weekly limit is blocked", func(t *testing.T) {
		repo := NewMockCooldownRepo()
		clock := newFakeClock(now)
		guard := newCooldown(repo, NewMockLocker(), clock, 1)

		if err := guard.RecordUsage(ctx, "acct-1", 1); err != nil {
			t.Fatalf("record: %v", err)
		}
		st, err := guard.CheckCanProceed(ctx, "acct-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if st.Allowed {
			t.Error("account at the limit should be blocked")
		}
		if st.Remaining != 0 || st.UsedThisWindow != 1 {
			t.Errorf("status = %+v, want remaining 0, used 1", st)
		}
		if st.Reason == "" {
			t.Error("blocked status should carry a reason")
		}
	})

	t.Run("usage from a previous week does not count", func(t *testing.T) {
		repo := NewMockCooldownRepo()
		clock := newFakeClock(now)
		guard := newCooldown(repo, NewMockLocker(), clock, 1)

		if err := guard.RecordUsage(ctx, "acct-1", 1); err != nil {
			t.Fatalf("record: %v", err)
		}
		// Move past the Monday reset.
		clock.Set(time.Date(2026, 1, 12, 0, 0, 1, 0, time.UTC))

		st, err := guard.CheckCanProceed(ctx, "acct-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !st.Allowed || st.UsedThisWindow != 0 {
			t.Errorf("status = %+v, want allowed with a clean window", st)
		}
	})

	t.Run("rejects empty account id", func(t *testing.T) {
		guard := newCooldown(NewMockCooldownRepo(), NewMockLocker(), newFakeClock(now), 1)
		if _, err := guard.CheckCanProceed(ctx, ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("got %v, want ErrInvalidArgument", err)
		}
	})
}

func TestCooldownGuard_RecordUsage(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

	t.Run("second session in the same week is rejected", func(t *testing.T) {
		repo := NewMockCooldownRepo()
		guard := newCooldown(repo, NewMockLocker(), newFakeClock(now), 1)

		if err := guard.RecordUsage(ctx, "acct-1", 1); err != nil {
			t.Fatalf("first record: %v", err)
		}
		if err := guard.RecordUsage(ctx, "acct-1", 1); !errors.Is(err, domain.ErrCooldownExceeded) {
			t.Errorf("got %v, want ErrCooldownExceeded", err)
		}
	})

	t.Run("higher limit admits several sessions", func(t *testing.T) {
		repo := NewMockCooldownRepo()
		guard := newCooldown(repo, NewMockLocker(), newFakeClock(now), 3)

		for i := 0; i < 3; i++ {
			if err := guard.RecordUsage(ctx, "acct-1", 1); err != nil {
				t.Fatalf("record %d: %v", i, err)
			}
		}
		if err := guard.RecordUsage(ctx, "acct-1", 1); !errors.Is(err, domain.ErrCooldownExceeded) {
			t.Errorf("got %v, want ErrCooldownExceeded after the limit", err)
		}
	})

	t.Run("lock contention is surfaced", func(t *testing.T) {
		locker := NewMockLocker()
		locker.FailLock = true
		guard := newCooldown(NewMockCooldownRepo(), locker, newFakeClock(now), 1)

		if err := guard.RecordUsage(ctx, "acct-1", 1); !errors.Is(err, domain.ErrLockNotAcquired) {
			t.Errorf("got %v, want ErrLockNotAcquired", err)
		}
	})

	t.Run("accounts are isolated", func(t *testing.T) {
		repo := NewMockCooldownRepo()
		guard := newCooldown(repo, NewMockLocker(), newFakeClock(now), 1)

		if err := guard.RecordUsage(ctx, "acct-1", 1); err != nil {
			t.Fatalf("acct-1: %v", err)
		}
		if err := guard.RecordUsage(ctx, "acct-2", 1); err != nil {
			t.Errorf("acct-2 should not be throttled by acct-1: %v", err)
		}
	})
}
