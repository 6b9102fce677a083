package repository

import (
	"context"
	"time"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/model"
)

// CooldownRepository is the port for append-only bulk-session records.
type CooldownRepository interface {
	Append(ctx context.Context, tx Tx, rec *model.CooldownRecord) error
	CountSince(ctx context.Context, tx Tx, accountID string, since time.Time) (int, error)
}
