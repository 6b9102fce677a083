package usecase

import (
	"time"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/config"
)

// BusinessHoursPolicy clamps timestamps into the allowed send window:
// weekdays between StartHour and EndHour. Clamp is deterministic and
// idempotent.
type BusinessHoursPolicy struct {
	startHour int
	endHour   int
}

func NewBusinessHoursPolicy(cfg config.BusinessHoursConfig) *BusinessHoursPolicy {
	return &BusinessHoursPolicy{startHour: cfg.StartHour, endHour: cfg.EndHour}
}

// Clamp returns the earliest allowed instant at or after t. A time before the
// window opens moves to the same day's opening; a time at or past closing
// moves to the next day's opening; weekends move to Monday's opening.
func (p *BusinessHoursPolicy) Clamp(t time.Time) time.Time {
	out := t
	if out.Hour() < p.startHour {
		out = p.openingOf(out)
	} else if out.Hour() >= p.endHour {
		out = p.openingOf(out.AddDate(0, 0, 1))
	}
	for out.Weekday() == time.Saturday || out.Weekday() == time.Sunday {
		out = p.openingOf(out.AddDate(0, 0, 1))
	}
	return out
}

// Contains reports whether t already lies inside the send window.
func (p *BusinessHoursPolicy) Contains(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return t.Hour() >= p.startHour && t.Hour() < p.endHour
}

func (p *BusinessHoursPolicy) openingOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, p.startHour, 0, 0, 0, t.Location())
}
