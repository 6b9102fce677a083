package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/model"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/ports/repository"
)

// Ensure cooldownRepo implements repository.CooldownRepository
var _ repository.CooldownRepository = (*cooldownRepo)(nil)

type cooldownRepo struct {
	pool *pgxpool.Pool
}

func NewCooldownRepo(pool *pgxpool.Pool) *cooldownRepo {
	return &cooldownRepo{pool: pool}
}

func (r *cooldownRepo) Append(ctx context.Context, tx repository.Tx, rec *model.CooldownRecord) error {
	const q = `
INSERT INTO cooldown_records (account_id, recorded_at, units_consumed)
VALUES ($1,$2,$3);`
	if _, err := execSQL(ctx, r.pool, tx, q, rec.AccountID, rec.Timestamp, rec.UnitsConsumed); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *cooldownRepo) CountSince(ctx context.Context, tx repository.Tx, accountID string, since time.Time) (int, error) {
	const q = `
SELECT COUNT(*) FROM cooldown_records
 WHERE account_id=$1 AND recorded_at >= $2;`
	row, err := pickRow(ctx, r.pool, tx, q, accountID, since)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}
