package usecase

import (
	"math/rand"
	"time"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/config"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/ports"
)

// OptimalTimeAdvisor nudges send times toward historically high-engagement
// hours. The scoring is a fixed heuristic tuned on reply-rate observations,
// not a learned model.
type OptimalTimeAdvisor struct {
	peak  map[int]bool
	good  map[int]bool
	avoid map[int]bool
	hours *BusinessHoursPolicy
	clock ports.Clock
	rng   *rand.Rand
}

func NewOptimalTimeAdvisor(cfg config.AdvisorConfig, hours *BusinessHoursPolicy, clock ports.Clock, rng *rand.Rand) *OptimalTimeAdvisor {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &OptimalTimeAdvisor{
		peak:  hourSet(cfg.PeakHours),
		good:  hourSet(cfg.GoodHours),
		avoid: hourSet(cfg.AvoidHours),
		hours: hours,
		clock: clock,
		rng:   rng,
	}
}

func hourSet(hs []int) map[int]bool {
	m := make(map[int]bool, len(hs))
	for _, h := range hs {
		m[h] = true
	}
	return m
}

// Score rates a candidate send time on a 0-100 scale.
func (a *OptimalTimeAdvisor) Score(t time.Time) int {
	score := 50

	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		score -= 30
	} else {
		score += 20
	}

	switch h := t.Hour(); {
	case a.peak[h]:
		score += 30
	case a.good[h]:
		score += 15
	case a.avoid[h]:
		score -= 40
	}

	if t.Sub(a.clock.Now()) < 5*time.Minute {
		score -= 10
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Suggest returns t moved to the nearest peak hour with a randomized minute
// offset, re-clamped to business hours. Times already in a peak hour keep
// their hour and get only a small jitter so batched sends don't cluster on
// the same minute.
func (a *OptimalTimeAdvisor) Suggest(t time.Time) time.Time {
	if a.peak[t.Hour()] {
		jitter := time.Duration(a.rng.Intn(5)) * time.Minute
		return a.hours.Clamp(t.Add(jitter))
	}

	target := a.nearestPeakHour(t.Hour())
	y, m, d := t.Date()
	out := time.Date(y, m, d, target, a.rng.Intn(60), 0, 0, t.Location())
	if out.Before(t) {
		out = out.AddDate(0, 0, 1)
	}
	return a.hours.Clamp(out)
}

func (a *OptimalTimeAdvisor) nearestPeakHour(h int) int {
	best := -1
	bestDist := 25
	for p := range a.peak {
		dist := p - h
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist || (dist == bestDist && p < best) {
			best = p
			bestDist = dist
		}
	}
	if best < 0 {
		return h
	}
	return best
}
