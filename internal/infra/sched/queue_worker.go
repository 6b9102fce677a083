package sched

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/config"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/model"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/ports"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/ports/adapter"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/ports/repository"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/infra/metrics"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/usecase"
)

// QueueWorker is the single dispatch loop: it polls for due ScheduledSend
// rows on a fixed interval and pushes each through the delivery channel,
// applying retry/backoff on failure. Exactly one QueueWorker runs per
// process; ordering within a tick follows ascending scheduled_time.
type QueueWorker struct {
	sends       repository.ScheduleRepository
	messages    adapter.MessageStore
	channel     adapter.DeliveryChannel
	experiments usecase.ExperimentManager
	clock       ports.Clock
	cfg         config.QueueConfig
	rng         *rand.Rand
	log         *zerolog.Logger
}

func NewQueueWorker(
	sends repository.ScheduleRepository,
	messages adapter.MessageStore,
	channel adapter.DeliveryChannel,
	experiments usecase.ExperimentManager,
	clock ports.Clock,
	cfg config.QueueConfig,
	logger *zerolog.Logger,
) *QueueWorker {
	compLog := logger.With().Str("component", "QueueWorker").Logger()
	return &QueueWorker{
		sends:       sends,
		messages:    messages,
		channel:     channel,
		experiments: experiments,
		clock:       clock,
		cfg:         cfg,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		log:         &compLog,
	}
}

// Run blocks until ctx is cancelled. It ticks once on startup, then on every
// poll interval.
func (w *QueueWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.cfg.PollInterval).Msg("starting queue worker")
	w.Tick(ctx)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping queue worker")
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick claims due rows and dispatches them in order. Exported so tests can
// drive the worker without the ticker.
func (w *QueueWorker) Tick(ctx context.Context) {
	due, err := w.sends.FetchDue(ctx, w.clock.Now(), w.cfg.BatchLimit)
	if err != nil {
		w.log.Error().Err(err).Msg("fetch due sends failed")
		return
	}
	metrics.SetDueClaimed(len(due))
	if len(due) == 0 {
		return
	}
	w.log.Debug().Int("count", len(due)).Msg("dispatching due sends")

	for i, send := range due {
		if i > 0 && !w.interDispatchDelay(ctx) {
			return
		}
		if ctx.Err() != nil {
			return
		}
		w.dispatch(ctx, send)
	}
}

// interDispatchDelay sleeps a randomized 3-8s between dispatches within one
// tick so bursts of due messages don't fire in a detectable rhythm. Returns
// false when the context was cancelled mid-sleep.
func (w *QueueWorker) interDispatchDelay(ctx context.Context) bool {
	span := w.cfg.MaxDispatchGap - w.cfg.MinDispatchGap
	delay := w.cfg.MinDispatchGap + time.Duration(w.rng.Int63n(int64(span)+1))
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (w *QueueWorker) dispatch(ctx context.Context, send *model.ScheduledSend) {
	log := w.log.With().Str("send_id", send.ID).Str("message_ref", send.MessageRef).Logger()

	msg, err := w.messages.GetMessage(ctx, send.MessageRef)
	if err != nil {
		log.Error().Err(err).Msg("message lookup failed")
		w.recordFailure(ctx, send, "message lookup: "+err.Error())
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.DispatchTimeout)
	start := time.Now()
	err = w.channel.Send(sendCtx, adapter.OutreachMessage{
		LeadProfileRef: msg.LeadRef,
		Content:        msg.Content,
	})
	cancel()
	metrics.ObserveDispatchDuration(time.Since(start).Seconds())

	if err != nil {
		// A deadline expiry is indistinguishable from a delivery failure.
		log.Warn().Err(err).Int("retry_count", send.RetryCount).Msg("delivery failed")
		w.recordFailure(ctx, send, err.Error())
		return
	}

	send.UpdatedAt = w.clock.Now()
	if err := w.sends.TransitionStatus(ctx, repository.NoTX, send, model.SendStatusScheduled, model.SendStatusSent); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// Lost the race against a cancel; the row already reached a
			// terminal state and must not transition twice.
			metrics.IncDispatch("conflict")
			log.Warn().Msg("send transitioned concurrently; dropping result")
			return
		}
		log.Error().Err(err).Msg("mark sent failed")
		return
	}
	metrics.IncDispatch("sent")

	if err := w.messages.UpdateMessageStatus(ctx, send.MessageRef, "sent"); err != nil {
		log.Warn().Err(err).Msg("message status update failed")
	}
	if send.ExperimentID != "" && send.Variant != nil {
		if err := w.experiments.RecordSent(ctx, send.ExperimentID, *send.Variant); err != nil {
			log.Warn().Err(err).Str("experiment_id", send.ExperimentID).Msg("experiment sent-count update failed")
		}
	}
	log.Info().Msg("send delivered")
}

// recordFailure applies the retry policy: below max_retries the row stays
// scheduled with a fixed backoff; at the cap it fails terminally.
func (w *QueueWorker) recordFailure(ctx context.Context, send *model.ScheduledSend, errMsg string) {
	send.MarkRetry(errMsg, w.cfg.RetryBackoff, w.clock.Now())

	to := model.SendStatusScheduled
	outcome := "retry"
	if send.Status == model.SendStatusFailed {
		to = model.SendStatusFailed
		outcome = "failed"
	}

	if err := w.sends.TransitionStatus(ctx, repository.NoTX, send, model.SendStatusScheduled, to); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			metrics.IncDispatch("conflict")
			return
		}
		w.log.Error().Err(err).Str("send_id", send.ID).Msg("retry bookkeeping failed")
		return
	}
	metrics.IncDispatch(outcome)

	if to == model.SendStatusFailed {
		w.log.Error().
			Str("send_id", send.ID).
			Int("retry_count", send.RetryCount).
			Str("error", errMsg).
			Msg("delivery retries exhausted")
		if err := w.messages.UpdateMessageStatus(ctx, send.MessageRef, "failed"); err != nil {
			w.log.Warn().Err(err).Str("send_id", send.ID).Msg("message status update failed")
		}
	}
}
