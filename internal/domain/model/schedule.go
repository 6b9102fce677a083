package model

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain"
)

// Shared monotonic entropy keeps IDs unique even when several sends are
// minted within the same millisecond.
var sendIDEntropy = ulid.DefaultEntropy()

type SendStatus string

const (
	SendStatusScheduled SendStatus = "scheduled"
	SendStatusSent      SendStatus = "sent"
	SendStatusFailed    SendStatus = "failed"
	SendStatusCancelled SendStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s SendStatus) Terminal() bool {
	switch s {
	case SendStatusSent, SendStatusFailed, SendStatusCancelled:
		return true
	}
	return false
}

// ScheduledSend is one planned dispatch of an outreach message. Rows are
// never deleted; they only transition toward a terminal status.
type ScheduledSend struct {
	ID            string // ULID, sortable by creation time
	MessageRef    string
	AccountID     string
	ScheduledTime time.Time
	Timezone      string
	Status        SendStatus
	RetryCount    int
	MaxRetries    int
	ErrorMessage  string
	AIOptimized   bool
	Variant       *Variant // set when the message belongs to an experiment
	ExperimentID  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewScheduledSend creates a pending dispatch row. The caller supplies now
// from its clock.
func NewScheduledSend(messageRef, accountID string, at time.Time, tz string, aiOptimized bool, maxRetries int, now time.Time) (*ScheduledSend, error) {
	if messageRef == "" || accountID == "" || at.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ScheduledSend{
		ID:            ulid.MustNew(ulid.Timestamp(now), sendIDEntropy).String(),
		MessageRef:    messageRef,
		AccountID:     accountID,
		ScheduledTime: at,
		Timezone:      tz,
		Status:        SendStatusScheduled,
		MaxRetries:    maxRetries,
		AIOptimized:   aiOptimized,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// CanTransition reports whether moving to the target status is legal.
// Only scheduled rows may move; terminal rows are immutable.
func (s *ScheduledSend) CanTransition(to SendStatus) bool {
	if s.Status != SendStatusScheduled {
		return false
	}
	switch to {
	case SendStatusSent, SendStatusFailed, SendStatusCancelled, SendStatusScheduled:
		return true
	}
	return false
}

// MarkRetry reschedules the row after a failed attempt, or fails it
// terminally when retries are exhausted.
func (s *ScheduledSend) MarkRetry(errMsg string, backoff time.Duration, now time.Time) {
	s.RetryCount++
	s.ErrorMessage = errMsg
	s.UpdatedAt = now
	if s.RetryCount >= s.MaxRetries {
		s.Status = SendStatusFailed
		return
	}
	s.ScheduledTime = now.Add(backoff)
}

// SendStats are the aggregate counts reported to operators.
type SendStats struct {
	Scheduled int `json:"scheduled"`
	NextHour  int `json:"next_hour"`
	Today     int `json:"today"`
	Sent      int `json:"sent"`
}
