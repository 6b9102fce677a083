package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/config"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/model"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/ports"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/ports/repository"
)

// Compile-time check
var _ CooldownGuard = (*cooldownUC)(nil)

// SessionLocker serializes the check-then-record around a new bulk session so
// two concurrent session starts cannot both pass the weekly guard.
type SessionLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// CooldownGuard throttles how often an account may run a detectable bulk
// action (a scraping or outreach session). This is independent of per-message
// rate limiting: it caps the account's overall automation footprint.
type CooldownGuard interface {
	CheckCanProceed(ctx context.Context, accountID string) (*model.CooldownStatus, error)
	RecordUsage(ctx context.Context, accountID string, unitsConsumed int) error
}

type cooldownUC struct {
	records     repository.CooldownRepository
	locker      SessionLocker
	clock       ports.Clock
	weeklyLimit int
	loc         *time.Location
	log         *zerolog.Logger
}

func NewCooldownGuard(
	records repository.CooldownRepository,
	locker SessionLocker,
	clock ports.Clock,
	cfg config.CooldownConfig,
	logger *zerolog.Logger,
) *cooldownUC {
	loc := time.UTC
	if cfg.Timezone != "" {
		if l, err := time.LoadLocation(cfg.Timezone); err == nil {
			loc = l
		}
	}
	compLog := logger.With().Str("component", "CooldownGuard").Logger()
	return &cooldownUC{
		records:     records,
		locker:      locker,
		clock:       clock,
		weeklyLimit: cfg.WeeklyLimit,
		loc:         loc,
		log:         &compLog,
	}
}

func (c *cooldownUC) status(ctx context.Context, accountID string) (*model.CooldownStatus, error) {
	now := c.clock.Now().In(c.loc)
	used, err := c.records.CountSince(ctx, repository.NoTX, accountID, model.WeekStart(now))
	if err != nil {
		return nil, err
	}
	remaining := c.weeklyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	st := &model.CooldownStatus{
		Allowed:        used < c.weeklyLimit,
		UsedThisWindow: used,
		Remaining:      remaining,
		NextReset:      model.NextWeekReset(now),
	}
	if !st.Allowed {
		st.Reason = fmt.Sprintf("weekly limit of %d bulk sessions reached; resets %s",
			c.weeklyLimit, st.NextReset.Format(time.RFC3339))
	}
	return st, nil
}

func (c *cooldownUC) CheckCanProceed(ctx context.Context, accountID string) (*model.CooldownStatus, error) {
	if accountID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return c.status(ctx, accountID)
}

// RecordUsage appends one CooldownRecord for a completed bulk session. The
// session lock covers the count-then-append so concurrent sessions cannot
// jointly exceed the weekly limit.
func (c *cooldownUC) RecordUsage(ctx context.Context, accountID string, unitsConsumed int) error {
	if accountID == "" {
		return domain.ErrInvalidArgument
	}

	token, err := c.locker.TryLock(ctx, "cooldown:"+accountID, 10*time.Second)
	if err != nil {
		return domain.ErrLockNotAcquired
	}
	defer func() { _ = c.locker.Unlock(ctx, "cooldown:"+accountID, token) }()

	st, err := c.status(ctx, accountID)
	if err != nil {
		return err
	}
	if !st.Allowed {
		return domain.ErrCooldownExceeded
	}

	rec, err := model.NewCooldownRecord(accountID, c.clock.Now().In(c.loc), unitsConsumed)
	if err != nil {
		return err
	}
	if err := c.records.Append(ctx, repository.NoTX, rec); err != nil {
		return fmt.Errorf("append cooldown record: %w", err)
	}
	c.log.Info().Str("account_id", accountID).Int("units", rec.UnitsConsumed).Msg("bulk session recorded")
	return nil
}
