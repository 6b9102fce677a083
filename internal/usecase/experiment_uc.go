package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/model"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/ports"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/ports/repository"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/infra/metrics"
)

// Compile-time check
var _ ExperimentManager = (*experimentUC)(nil)

// ExperimentManager runs the A/B/C message-variant comparison: near-even
// variant exposure, outcome recording, and the one-shot winner freeze.
type ExperimentManager interface {
	Create(ctx context.Context, name string, minSampleSize int, improvementThreshold float64) (*model.Experiment, error)
	NextVariant(ctx context.Context, experimentID string) (model.Variant, error)
	RecordSent(ctx context.Context, experimentID string, v model.Variant) error
	RecordReply(ctx context.Context, experimentID string, v model.Variant, sentimentScore float64) error
	Results(ctx context.Context, experimentID string) (*model.Experiment, error)
	BestPractices(ctx context.Context) (*model.BestPractices, error)
}

type experimentUC struct {
	experiments repository.ExperimentRepository
	clock       ports.Clock
	log         *zerolog.Logger

	// Serializes read-modify-write per experiment. VariantMetrics counters
	// are only ever mutated through this use-case.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewExperimentManager(experiments repository.ExperimentRepository, clock ports.Clock, logger *zerolog.Logger) *experimentUC {
	compLog := logger.With().Str("component", "ExperimentManager").Logger()
	return &experimentUC{
		experiments: experiments,
		clock:       clock,
		log:         &compLog,
		locks:       make(map[string]*sync.Mutex),
	}
}

func (u *experimentUC) lockFor(id string) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()
	l, ok := u.locks[id]
	if !ok {
		l = &sync.Mutex{}
		u.locks[id] = l
	}
	return l
}

func (u *experimentUC) Create(ctx context.Context, name string, minSampleSize int, improvementThreshold float64) (*model.Experiment, error) {
	exp, err := model.NewExperiment(name, minSampleSize, improvementThreshold)
	if err != nil {
		return nil, err
	}
	if err := u.experiments.Save(ctx, repository.NoTX, exp); err != nil {
		return nil, fmt.Errorf("persist experiment: %w", err)
	}
	u.log.Info().Str("experiment_id", exp.ID).Str("name", name).Msg("experiment created")
	return exp, nil
}

// NextVariant returns the variant with the fewest sends so far, ties broken
// in declaration order A < B < C.
func (u *experimentUC) NextVariant(ctx context.Context, experimentID string) (model.Variant, error) {
	exp, err := u.experiments.FindByID(ctx, repository.NoTX, experimentID)
	if err != nil {
		return "", err
	}
	return exp.LeastSentVariant(), nil
}

func (u *experimentUC) RecordSent(ctx context.Context, experimentID string, v model.Variant) error {
	l := u.lockFor(experimentID)
	l.Lock()
	defer l.Unlock()

	exp, err := u.experiments.FindByID(ctx, repository.NoTX, experimentID)
	if err != nil {
		return err
	}
	m, ok := exp.Metrics[v]
	if !ok {
		return domain.ErrInvalidArgument
	}
	m.SentCount++
	m.RecalcReplyRate()
	metrics.IncExperimentEvent("sent", string(v))
	return u.experiments.Save(ctx, repository.NoTX, exp)
}

// RecordReply folds one reply into the variant's counters and runs the
// winner check. Sentiment above 0.6 counts as a positive reply.
func (u *experimentUC) RecordReply(ctx context.Context, experimentID string, v model.Variant, sentimentScore float64) error {
	if sentimentScore < 0 || sentimentScore > 1 {
		return domain.ErrInvalidArgument
	}

	l := u.lockFor(experimentID)
	l.Lock()
	defer l.Unlock()

	exp, err := u.experiments.FindByID(ctx, repository.NoTX, experimentID)
	if err != nil {
		return err
	}
	m, ok := exp.Metrics[v]
	if !ok {
		return domain.ErrInvalidArgument
	}

	m.ReplyCount++
	if sentimentScore > 0.6 {
		m.PositiveReplyCount++
	}
	// Running mean over replies.
	m.AvgSentiment += (sentimentScore - m.AvgSentiment) / float64(m.ReplyCount)
	m.RecalcReplyRate()
	metrics.IncExperimentEvent("reply", string(v))

	if exp.CheckWinner(u.clock.Now()) {
		metrics.IncExperimentCompleted(string(*exp.WinningVariant))
		u.log.Info().
			Str("experiment_id", exp.ID).
			Str("winner", string(*exp.WinningVariant)).
			Float64("reply_rate", exp.Metrics[*exp.WinningVariant].ReplyRate).
			Msg("experiment completed")
	}
	return u.experiments.Save(ctx, repository.NoTX, exp)
}

func (u *experimentUC) Results(ctx context.Context, experimentID string) (*model.Experiment, error) {
	return u.experiments.FindByID(ctx, repository.NoTX, experimentID)
}

// BestPractices aggregates completed experiments: per-variant win counts,
// the average winning reply rate, and the top five experiments by winning
// reply rate.
func (u *experimentUC) BestPractices(ctx context.Context) (*model.BestPractices, error) {
	completed, err := u.experiments.ListCompleted(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}

	bp := &model.BestPractices{WinsByVariant: make(map[model.Variant]int)}
	var rateSum float64
	for _, exp := range completed {
		if exp.WinningVariant == nil {
			continue
		}
		win := *exp.WinningVariant
		rate := exp.Metrics[win].ReplyRate
		bp.CompletedExperiments++
		bp.WinsByVariant[win]++
		rateSum += rate
		bp.TopExperiments = append(bp.TopExperiments, model.ExperimentSummary{
			ID:               exp.ID,
			Name:             exp.Name,
			WinningVariant:   win,
			WinningReplyRate: rate,
		})
	}
	if bp.CompletedExperiments > 0 {
		bp.AvgWinningReplyRate = rateSum / float64(bp.CompletedExperiments)
	}
	sort.Slice(bp.TopExperiments, func(i, j int) bool {
		return bp.TopExperiments[i].WinningReplyRate > bp.TopExperiments[j].WinningReplyRate
	})
	if len(bp.TopExperiments) > 5 {
		bp.TopExperiments = bp.TopExperiments[:5]
	}
	return bp, nil
}
