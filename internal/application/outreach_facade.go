package application

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/config"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/model"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/infra/metrics"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/usecase"
)

// Reason classifies a facade outcome so transport adapters can map it to a
// status code without inspecting error chains.
type Reason string

const (
	ReasonOK                Reason = "ok"
	ReasonInvalidArgument   Reason = "invalid_argument"
	ReasonNotFound          Reason = "not_found"
	ReasonConflict          Reason = "conflict"
	ReasonRateLimited       Reason = "rate_limited"
	ReasonCooldown          Reason = "cooldown"
	ReasonDeliveryExhausted Reason = "delivery_exhausted"
	ReasonInternal          Reason = "internal"
)

func reasonFor(err error) Reason {
	switch {
	case err == nil:
		return ReasonOK
	case errors.Is(err, domain.ErrInvalidArgument):
		return ReasonInvalidArgument
	case errors.Is(err, domain.ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, domain.ErrConflict):
		return ReasonConflict
	case errors.Is(err, domain.ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, domain.ErrCooldownExceeded), errors.Is(err, domain.ErrLockNotAcquired):
		return ReasonCooldown
	case errors.Is(err, domain.ErrDeliveryExhausted):
		return ReasonDeliveryExhausted
	default:
		return ReasonInternal
	}
}

// OutreachFacade composes the timing use-cases into the operations the
// operator API exposes. Every method returns a reason-coded result; errors
// never leak raw driver faults to callers.
type OutreachFacade struct {
	Scheduler   usecase.SchedulerUseCase
	Cooldown    usecase.CooldownGuard
	Experiments usecase.ExperimentManager

	expDefaults config.ExperimentConfig
	log         *zerolog.Logger
}

func NewOutreachFacade(
	scheduler usecase.SchedulerUseCase,
	cooldown usecase.CooldownGuard,
	experiments usecase.ExperimentManager,
	expDefaults config.ExperimentConfig,
	logger *zerolog.Logger,
) *OutreachFacade {
	l := logger.With().Str("component", "OutreachFacade").Logger()
	return &OutreachFacade{
		Scheduler:   scheduler,
		Cooldown:    cooldown,
		Experiments: experiments,
		expDefaults: expDefaults,
		log:         &l,
	}
}

type ScheduleRequest struct {
	MessageRef   string
	AccountID    string
	RequestedAt  *time.Time
	AIOptimize   bool
	ExperimentID string
}

type ScheduleResult struct {
	Reason Reason               `json:"reason"`
	Send   *model.ScheduledSend `json:"send,omitempty"`
}

// ScheduleSingle places one send. When an experiment id is given the next
// variant is assigned before scheduling so exposure stays near-even.
func (f *OutreachFacade) ScheduleSingle(ctx context.Context, req ScheduleRequest) (*ScheduleResult, error) {
	if req.MessageRef == "" || req.AccountID == "" {
		return &ScheduleResult{Reason: ReasonInvalidArgument}, domain.ErrInvalidArgument
	}

	params := usecase.ScheduleParams{
		MessageRef:   req.MessageRef,
		AccountID:    req.AccountID,
		RequestedAt:  req.RequestedAt,
		AIOptimize:   req.AIOptimize,
		ExperimentID: req.ExperimentID,
	}
	if req.ExperimentID != "" {
		v, err := f.Experiments.NextVariant(ctx, req.ExperimentID)
		if err != nil {
			return &ScheduleResult{Reason: reasonFor(err)}, err
		}
		params.Variant = &v
	}

	send, err := f.Scheduler.Schedule(ctx, params)
	if err != nil {
		r := reasonFor(err)
		if r == ReasonRateLimited {
			metrics.IncQuotaDenied()
		}
		return &ScheduleResult{Reason: r}, err
	}
	return &ScheduleResult{Reason: ReasonOK, Send: send}, nil
}

type BatchRequest struct {
	MessageRefs []string
	AccountID   string
	StartAt     *time.Time
	SpreadHours int
	AIOptimize  bool
}

type BatchResult struct {
	Reason    Reason                 `json:"reason"`
	Scheduled []*model.ScheduledSend `json:"scheduled"`
	Requested int                    `json:"requested"`
}

// ScheduleBatch distributes sends across the spread. On a mid-batch failure
// the already-placed sends stay placed; the result reports how far it got.
func (f *OutreachFacade) ScheduleBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if len(req.MessageRefs) == 0 || req.AccountID == "" {
		return &BatchResult{Reason: ReasonInvalidArgument}, domain.ErrInvalidArgument
	}

	placed, err := f.Scheduler.ScheduleBatch(ctx, usecase.BatchParams{
		MessageRefs: req.MessageRefs,
		AccountID:   req.AccountID,
		StartAt:     req.StartAt,
		SpreadHours: req.SpreadHours,
		AIOptimize:  req.AIOptimize,
	})
	res := &BatchResult{Reason: reasonFor(err), Scheduled: placed, Requested: len(req.MessageRefs)}
	if res.Reason == ReasonRateLimited {
		metrics.IncQuotaDenied()
	}
	return res, err
}

type CancelResult struct {
	Reason Reason `json:"reason"`
}

func (f *OutreachFacade) Cancel(ctx context.Context, scheduleID string) (*CancelResult, error) {
	if scheduleID == "" {
		return &CancelResult{Reason: ReasonInvalidArgument}, domain.ErrInvalidArgument
	}
	err := f.Scheduler.Cancel(ctx, scheduleID)
	return &CancelResult{Reason: reasonFor(err)}, err
}

type StatsResult struct {
	Reason Reason          `json:"reason"`
	Stats  model.SendStats `json:"stats"`
}

// Stats reports queue counters. A store failure yields a zeroed structure so
// dashboards render rather than break.
func (f *OutreachFacade) Stats(ctx context.Context) *StatsResult {
	stats, err := f.Scheduler.Stats(ctx)
	if err != nil {
		f.log.Warn().Err(err).Msg("stats query failed")
		return &StatsResult{Reason: reasonFor(err)}
	}
	return &StatsResult{Reason: ReasonOK, Stats: *stats}
}

type CooldownResult struct {
	Reason Reason               `json:"reason"`
	Status model.CooldownStatus `json:"status"`
}

// CooldownStatus is a best-effort read; a store failure yields a zeroed
// structure with a non-ok reason.
func (f *OutreachFacade) CooldownStatus(ctx context.Context, accountID string) *CooldownResult {
	if accountID == "" {
		return &CooldownResult{Reason: ReasonInvalidArgument}
	}
	st, err := f.Cooldown.CheckCanProceed(ctx, accountID)
	if err != nil {
		f.log.Warn().Err(err).Str("account_id", accountID).Msg("cooldown status read failed")
		return &CooldownResult{Reason: reasonFor(err)}
	}
	return &CooldownResult{Reason: ReasonOK, Status: *st}
}

// StartSession consumes one weekly bulk-session unit for the account.
func (f *OutreachFacade) StartSession(ctx context.Context, accountID string, units int) (*CooldownResult, error) {
	if accountID == "" {
		return &CooldownResult{Reason: ReasonInvalidArgument}, domain.ErrInvalidArgument
	}
	if err := f.Cooldown.RecordUsage(ctx, accountID, units); err != nil {
		r := reasonFor(err)
		if r == ReasonCooldown {
			metrics.IncCooldownDenied()
		}
		return &CooldownResult{Reason: r}, err
	}
	st, err := f.Cooldown.CheckCanProceed(ctx, accountID)
	if err != nil {
		return &CooldownResult{Reason: ReasonOK}, nil
	}
	return &CooldownResult{Reason: ReasonOK, Status: *st}, nil
}

type ExperimentResult struct {
	Reason     Reason            `json:"reason"`
	Experiment *model.Experiment `json:"experiment,omitempty"`
}

// CreateExperiment starts a comparison. Zero thresholds fall back to the
// configured defaults before the entity applies its own floor.
func (f *OutreachFacade) CreateExperiment(ctx context.Context, name string, minSampleSize int, improvementThreshold float64) (*ExperimentResult, error) {
	if minSampleSize <= 0 {
		minSampleSize = f.expDefaults.MinSampleSize
	}
	if improvementThreshold <= 0 {
		improvementThreshold = f.expDefaults.ImprovementThreshold
	}
	exp, err := f.Experiments.Create(ctx, name, minSampleSize, improvementThreshold)
	if err != nil {
		return &ExperimentResult{Reason: reasonFor(err)}, err
	}
	return &ExperimentResult{Reason: ReasonOK, Experiment: exp}, nil
}

func (f *OutreachFacade) ExperimentResults(ctx context.Context, experimentID string) (*ExperimentResult, error) {
	if experimentID == "" {
		return &ExperimentResult{Reason: ReasonInvalidArgument}, domain.ErrInvalidArgument
	}
	exp, err := f.Experiments.Results(ctx, experimentID)
	if err != nil {
		return &ExperimentResult{Reason: reasonFor(err)}, err
	}
	return &ExperimentResult{Reason: ReasonOK, Experiment: exp}, nil
}

// RecordReply feeds an observed reply back into an experiment. The variant
// string is normalized here, at the boundary.
func (f *OutreachFacade) RecordReply(ctx context.Context, experimentID, variant string, sentimentScore float64) (*ExperimentResult, error) {
	v, err := model.ParseVariant(variant)
	if err != nil {
		return &ExperimentResult{Reason: ReasonInvalidArgument}, err
	}
	if err := f.Experiments.RecordReply(ctx, experimentID, v, sentimentScore); err != nil {
		return &ExperimentResult{Reason: reasonFor(err)}, err
	}
	exp, err := f.Experiments.Results(ctx, experimentID)
	if err != nil {
		return &ExperimentResult{Reason: ReasonOK}, nil
	}
	return &ExperimentResult{Reason: ReasonOK, Experiment: exp}, nil
}

type BestPracticesResult struct {
	Reason   Reason               `json:"reason"`
	Insights *model.BestPractices `json:"insights,omitempty"`
}

func (f *OutreachFacade) BestPractices(ctx context.Context) (*BestPracticesResult, error) {
	bp, err := f.Experiments.BestPractices(ctx)
	if err != nil {
		return &BestPracticesResult{Reason: reasonFor(err)}, err
	}
	return &BestPracticesResult{Reason: ReasonOK, Insights: bp}, nil
}
