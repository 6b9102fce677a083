package model

import (
	"time"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain"
)

// CooldownRecord marks one completed bulk session (scraping or outreach) for
// an account. Append-only; aggregated over a rolling calendar week.
type CooldownRecord struct {
	ID            int64
	AccountID     string
	Timestamp     time.Time
	UnitsConsumed int
}

func NewCooldownRecord(accountID string, at time.Time, units int) (*CooldownRecord, error) {
	if accountID == "" || at.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	if units <= 0 {
		units = 1
	}
	return &CooldownRecord{AccountID: accountID, Timestamp: at, UnitsConsumed: units}, nil
}

// WeekStart returns Monday 00:00 of the week containing t, in t's location.
func WeekStart(t time.Time) time.Time {
	// time.Weekday puts Sunday at 0; shift so Monday is day 0.
	days := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -days).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NextWeekReset returns the following Monday 00:00 in t's location.
func NextWeekReset(t time.Time) time.Time {
	return WeekStart(t).AddDate(0, 0, 7)
}

// CooldownStatus is the answer to "may this account start a bulk session".
type CooldownStatus struct {
	Allowed        bool      `json:"allowed"`
	Reason         string    `json:"reason,omitempty"`
	UsedThisWindow int       `json:"used_this_window"`
	Remaining      int       `json:"remaining"`
	NextReset      time.Time `json:"next_reset"`
}
