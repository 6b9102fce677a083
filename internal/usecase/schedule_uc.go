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
var _ SchedulerUseCase = (*schedulerUC)(nil)

// ScheduleParams describes one send to place on the calendar.
type ScheduleParams struct {
	MessageRef   string
	AccountID    string
	RequestedAt  *time.Time // nil means "as soon as allowed"
	AIOptimize   bool
	ExperimentID string         // optional
	Variant      *model.Variant // assigned by the caller via ExperimentManager
}

// BatchParams distributes several sends across a time spread.
type BatchParams struct {
	MessageRefs []string
	AccountID   string
	StartAt     *time.Time
	SpreadHours int // 0 falls back to the configured default spread
	AIOptimize  bool
}

// SchedulerUseCase assigns and validates send times.
type SchedulerUseCase interface {
	Schedule(ctx context.Context, p ScheduleParams) (*model.ScheduledSend, error)
	ScheduleBatch(ctx context.Context, p BatchParams) ([]*model.ScheduledSend, error)
	Cancel(ctx context.Context, scheduleID string) error
	Stats(ctx context.Context) (*model.SendStats, error)
}

type schedulerUC struct {
	sends         repository.ScheduleRepository
	quota         *QuotaTracker
	hours         *BusinessHoursPolicy
	advisor       *OptimalTimeAdvisor
	clock         ports.Clock
	maxRetries    int
	minSpacing    time.Duration
	defaultSpread int
	log           *zerolog.Logger
}

func NewSchedulerUseCase(
	sends repository.ScheduleRepository,
	quota *QuotaTracker,
	hours *BusinessHoursPolicy,
	advisor *OptimalTimeAdvisor,
	clock ports.Clock,
	cfg config.SchedulerConfig,
	logger *zerolog.Logger,
) *schedulerUC {
	compLog := logger.With().Str("component", "Scheduler").Logger()
	return &schedulerUC{
		sends:         sends,
		quota:         quota,
		hours:         hours,
		advisor:       advisor,
		clock:         clock,
		maxRetries:    cfg.MaxRetries,
		minSpacing:    cfg.MinSpacing,
		defaultSpread: cfg.DefaultSpread,
		log:           &compLog,
	}
}

func (s *schedulerUC) Schedule(ctx context.Context, p ScheduleParams) (*model.ScheduledSend, error) {
	if p.MessageRef == "" || p.AccountID == "" {
		return nil, domain.ErrInvalidArgument
	}

	base := s.clock.Now()
	if p.RequestedAt != nil {
		base = *p.RequestedAt
	}
	base = s.hours.Clamp(base)
	if p.AIOptimize {
		base = s.advisor.Suggest(base)
	}

	base, err := s.reserveSlot(ctx, p.AccountID, base)
	if err != nil {
		return nil, err
	}

	send, err := model.NewScheduledSend(p.MessageRef, p.AccountID, base, base.Location().String(), p.AIOptimize, s.maxRetries, s.clock.Now())
	if err != nil {
		_ = s.quota.Release(ctx, p.AccountID, base)
		return nil, err
	}
	send.ExperimentID = p.ExperimentID
	send.Variant = p.Variant

	if err := s.sends.Save(ctx, repository.NoTX, send); err != nil {
		// Give the reserved window slot back so the failed row does not
		// consume quota.
		_ = s.quota.Release(ctx, p.AccountID, base)
		return nil, fmt.Errorf("persist scheduled send: %w", err)
	}

	s.log.Info().
		Str("send_id", send.ID).
		Str("account_id", p.AccountID).
		Time("scheduled_time", send.ScheduledTime).
		Bool("ai_optimized", p.AIOptimize).
		Msg("send scheduled")
	return send, nil
}

// reserveSlot reserves quota at the candidate time, walking forward to the
// next free window when the candidate's windows are full. A concurrent caller
// can steal a probed slot between the probe and the reservation, so the
// reserve is retried on the freshly probed slot a few times.
func (s *schedulerUC) reserveSlot(ctx context.Context, accountID string, base time.Time) (time.Time, error) {
	for attempt := 0; attempt < 3; attempt++ {
		ok, err := s.quota.CheckAndReserve(ctx, accountID, base)
		if err != nil {
			return time.Time{}, err
		}
		if ok {
			return base, nil
		}
		next, err := s.quota.NextAvailableSlot(ctx, accountID, base)
		if err != nil {
			return time.Time{}, err
		}
		base = s.hours.Clamp(next)
	}
	return time.Time{}, domain.ErrRateLimited
}

func (s *schedulerUC) ScheduleBatch(ctx context.Context, p BatchParams) ([]*model.ScheduledSend, error) {
	if p.SpreadHours <= 0 {
		p.SpreadHours = s.defaultSpread
	}
	if len(p.MessageRefs) == 0 || p.AccountID == "" || p.SpreadHours <= 0 {
		return nil, domain.ErrInvalidArgument
	}

	var start time.Time
	if p.StartAt != nil {
		start = *p.StartAt
	} else {
		slot, err := s.quota.NextAvailableSlot(ctx, p.AccountID, s.clock.Now())
		if err != nil {
			return nil, err
		}
		start = slot
	}

	spacing := time.Duration(p.SpreadHours) * time.Hour / time.Duration(len(p.MessageRefs))
	if spacing < s.minSpacing {
		spacing = s.minSpacing
	}

	out := make([]*model.ScheduledSend, 0, len(p.MessageRefs))
	for i, ref := range p.MessageRefs {
		at := start.Add(time.Duration(i) * spacing)
		send, err := s.Schedule(ctx, ScheduleParams{
			MessageRef:  ref,
			AccountID:   p.AccountID,
			RequestedAt: &at,
			AIOptimize:  p.AIOptimize,
		})
		if err != nil {
			return out, fmt.Errorf("batch item %d: %w", i, err)
		}
		out = append(out, send)
	}
	return out, nil
}

// Cancel transitions a scheduled row to cancelled. Terminal rows are
// rejected with domain.ErrConflict; the compare-and-swap in the repository
// guarantees a cancel racing a dispatch produces exactly one terminal
// transition.
func (s *schedulerUC) Cancel(ctx context.Context, scheduleID string) error {
	send, err := s.sends.FindByID(ctx, repository.NoTX, scheduleID)
	if err != nil {
		return err
	}
	if !send.CanTransition(model.SendStatusCancelled) {
		return domain.ErrConflict
	}
	send.UpdatedAt = s.clock.Now()
	if err := s.sends.TransitionStatus(ctx, repository.NoTX, send, model.SendStatusScheduled, model.SendStatusCancelled); err != nil {
		return err
	}
	s.log.Info().Str("send_id", scheduleID).Msg("send cancelled")
	return nil
}

func (s *schedulerUC) Stats(ctx context.Context) (*model.SendStats, error) {
	return s.sends.Stats(ctx, repository.NoTX, s.clock.Now())
}
