package repository

import (
	"context"
	"time"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/model"
)

// ScheduleRepository is the port for ScheduledSend rows.
type ScheduleRepository interface {
	Save(ctx context.Context, tx Tx, s *model.ScheduledSend) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.ScheduledSend, error)

	// FetchDue claims up to limit scheduled rows with scheduled_time <= now,
	// ascending by scheduled_time. A claim is a lease: implementations must
	// keep a claimed row out of subsequent FetchDue calls (from any process)
	// long enough to dispatch it, and let the row resurface if the claimant
	// dies before a terminal transition.
	FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledSend, error)

	// TransitionStatus performs a compare-and-swap from `from` to `to`,
	// recording retry fields from s. Returns domain.ErrConflict when the row
	// is no longer in `from`.
	TransitionStatus(ctx context.Context, tx Tx, s *model.ScheduledSend, from, to model.SendStatus) error

	// CountInWindow counts an account's non-cancelled sends scheduled within
	// [from, to). Backs the quota windows.
	CountInWindow(ctx context.Context, tx Tx, accountID string, from, to time.Time) (int, error)

	Stats(ctx context.Context, tx Tx, now time.Time) (*model.SendStats, error)
}
