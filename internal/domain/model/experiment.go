package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain"
)

// Variant is the closed set of message alternatives under comparison.
// String forms ("A", "variant_a", "a") are normalized at system boundaries
// only; inside the core a Variant is always one of these three values.
type Variant string

const (
	VariantA Variant = "A"
	VariantB Variant = "B"
	VariantC Variant = "C"
)

// Variants lists all variants in declaration order. Tie-breaks across the
// codebase rely on this ordering.
var Variants = [3]Variant{VariantA, VariantB, VariantC}

// ParseVariant normalizes an external string into a Variant.
func ParseVariant(s string) (Variant, error) {
	v := strings.ToUpper(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "variant_"))
	switch Variant(v) {
	case VariantA, VariantB, VariantC:
		return Variant(v), nil
	}
	return "", domain.ErrInvalidArgument
}

type ExperimentStatus string

const (
	ExperimentStatusActive    ExperimentStatus = "active"
	ExperimentStatusCompleted ExperimentStatus = "completed"
)

// VariantMetrics accumulates outcome counters for one variant.
type VariantMetrics struct {
	Variant            Variant `json:"variant"`
	SentCount          int     `json:"sent_count"`
	ReplyCount         int     `json:"reply_count"`
	PositiveReplyCount int     `json:"positive_reply_count"`
	AvgSentiment       float64 `json:"avg_sentiment"`
	ReplyRate          float64 `json:"reply_rate"`
}

// RecalcReplyRate recomputes the derived reply rate (replies/sends x 100).
func (m *VariantMetrics) RecalcReplyRate() {
	if m.SentCount == 0 {
		m.ReplyRate = 0
		return
	}
	m.ReplyRate = float64(m.ReplyCount) / float64(m.SentCount) * 100
}

// Experiment is an A/B/C comparison over a fixed variant set. It transitions
// once, irreversibly, from active to completed.
type Experiment struct {
	ID                   string
	Name                 string
	Status               ExperimentStatus
	MinSampleSize        int
	ImprovementThreshold float64
	WinningVariant       *Variant
	CompletedAt          *time.Time
	CreatedAt            time.Time
	Metrics              map[Variant]*VariantMetrics
}

// NewExperiment creates an active experiment with zeroed metrics for A, B, C.
func NewExperiment(name string, minSampleSize int, improvementThreshold float64) (*Experiment, error) {
	if name == "" {
		return nil, domain.ErrInvalidArgument
	}
	if minSampleSize <= 0 {
		minSampleSize = 20
	}
	if improvementThreshold <= 0 {
		improvementThreshold = 0.10
	}
	e := &Experiment{
		ID:                   uuid.NewString(),
		Name:                 name,
		Status:               ExperimentStatusActive,
		MinSampleSize:        minSampleSize,
		ImprovementThreshold: improvementThreshold,
		CreatedAt:            time.Now(),
		Metrics:              make(map[Variant]*VariantMetrics, len(Variants)),
	}
	for _, v := range Variants {
		e.Metrics[v] = &VariantMetrics{Variant: v}
	}
	return e, nil
}

// LeastSentVariant returns the variant with the fewest sends so far, ties
// broken by declaration order. Near-even exposure resistant to skew from
// early outcome feedback.
func (e *Experiment) LeastSentVariant() Variant {
	best := Variants[0]
	for _, v := range Variants[1:] {
		if e.Metrics[v].SentCount < e.Metrics[best].SentCount {
			best = v
		}
	}
	return best
}

// CheckWinner applies the winner heuristic: once every variant reached the
// minimum sample size, the best variant wins if its reply rate beats the mean
// of the others by the improvement threshold (in percentage points). Returns
// true when the experiment completed as a result of this call.
func (e *Experiment) CheckWinner(now time.Time) bool {
	if e.Status != ExperimentStatusActive {
		return false
	}
	for _, v := range Variants {
		if e.Metrics[v].SentCount < e.MinSampleSize {
			return false
		}
	}
	best := Variants[0]
	for _, v := range Variants[1:] {
		if e.Metrics[v].ReplyRate > e.Metrics[best].ReplyRate {
			best = v
		}
	}
	var otherSum float64
	for _, v := range Variants {
		if v != best {
			otherSum += e.Metrics[v].ReplyRate
		}
	}
	avgOther := otherSum / float64(len(Variants)-1)
	if e.Metrics[best].ReplyRate < avgOther+e.ImprovementThreshold*100 {
		return false
	}
	win := best
	e.Status = ExperimentStatusCompleted
	e.WinningVariant = &win
	e.CompletedAt = &now
	return true
}

// BestPractices is a read-only aggregation across completed experiments.
type BestPractices struct {
	CompletedExperiments int                 `json:"completed_experiments"`
	WinsByVariant        map[Variant]int     `json:"wins_by_variant"`
	AvgWinningReplyRate  float64             `json:"avg_winning_reply_rate"`
	TopExperiments       []ExperimentSummary `json:"top_experiments"`
}

// ExperimentSummary is one row of the best-practices report.
type ExperimentSummary struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	WinningVariant   Variant `json:"winning_variant"`
	WinningReplyRate float64 `json:"winning_reply_rate"`
}
