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

// Ensure scheduleRepo implements repository.ScheduleRepository
var _ repository.ScheduleRepository = (*scheduleRepo)(nil)

type scheduleRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewScheduleRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *scheduleRepo {
	return &scheduleRepo{pool: pool, tm: tm}
}

const sendColumns = `
id, message_ref, account_id, scheduled_time, timezone, status, retry_count,
max_retries, error_message, ai_optimized, experiment_id, variant, created_at, updated_at`

func (r *scheduleRepo) Save(ctx context.Context, tx repository.Tx, s *model.ScheduledSend) error {
	const q = `
INSERT INTO scheduled_sends (
  id, message_ref, account_id, scheduled_time, timezone, status, retry_count,
  max_retries, error_message, ai_optimized, experiment_id, variant, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
  scheduled_time=$4, status=$6, retry_count=$7, error_message=$9, updated_at=$14;`

	var variant *string
	if s.Variant != nil {
		v := string(*s.Variant)
		variant = &v
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.MessageRef, s.AccountID, s.ScheduledTime, s.Timezone, s.Status, s.RetryCount,
		s.MaxRetries, s.ErrorMessage, s.AIOptimized, s.ExperimentID, variant, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *scheduleRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ScheduledSend, error) {
	const q = `SELECT ` + sendColumns + ` FROM scheduled_sends WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanSend(row)
}

// claimLease is how far a claimed row's scheduled_time is pushed forward
// before the claiming transaction commits. It must outlast a worst-case tick
// (batch limit x dispatch timeout plus the inter-dispatch gaps) so a row is
// never due again while its dispatch is still in flight. A crashed worker's
// rows resurface once the lease runs out.
const claimLease = 10 * time.Minute

// FetchDue claims due rows with FOR UPDATE SKIP LOCKED and leases them by
// pushing scheduled_time past the dispatch window inside the same
// transaction, so a second worker ticking concurrently cannot dispatch the
// same row. Returned rows carry their original scheduled_time; the terminal
// transition writes it back.
func (r *scheduleRepo) FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.ScheduledSend, error) {
	var out []*model.ScheduledSend
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const q = `
SELECT ` + sendColumns + `
  FROM scheduled_sends
 WHERE status='scheduled' AND scheduled_time <= $1
 ORDER BY scheduled_time ASC
 LIMIT $2
 FOR UPDATE SKIP LOCKED;`
		rows, err := queryRows(ctx, r.pool, tx, q, now, limit)
		if err != nil {
			return domain.ErrOperationFailed
		}
		defer rows.Close()
		for rows.Next() {
			s, err := scanSend(rows)
			if err != nil {
				return err
			}
			out = append(out, s)
		}
		if err := rows.Err(); err != nil {
			return domain.ErrReadDatabaseRow
		}
		rows.Close()

		if len(out) == 0 {
			return nil
		}
		ids := make([]string, len(out))
		for i, s := range out {
			ids[i] = s.ID
		}
		const lq = `
UPDATE scheduled_sends
   SET scheduled_time=$1, updated_at=$2
 WHERE id = ANY($3);`
		if _, err := execSQL(ctx, r.pool, tx, lq, now.Add(claimLease), now, ids); err != nil {
			return domain.ErrOperationFailed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TransitionStatus is the compare-and-swap at the heart of the send state
// machine: it succeeds only when the row is still in `from`, otherwise it
// reports domain.ErrConflict so the caller knows it lost the race.
func (r *scheduleRepo) TransitionStatus(ctx context.Context, tx repository.Tx, s *model.ScheduledSend, from, to model.SendStatus) error {
	const q = `
UPDATE scheduled_sends
   SET status=$3, scheduled_time=$4, retry_count=$5, error_message=$6, updated_at=$7
 WHERE id=$1 AND status=$2;`

	tag, err := execSQL(ctx, r.pool, tx, q, s.ID, from, to, s.ScheduledTime, s.RetryCount, s.ErrorMessage, s.UpdatedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		exists, err := r.exists(ctx, tx, s.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	s.Status = to
	return nil
}

func (r *scheduleRepo) exists(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS(SELECT 1 FROM scheduled_sends WHERE id=$1);`, id)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return ok, nil
}

// CountInWindow counts the non-cancelled sends an account has inside
// [from, to). Cancelled rows give their slot back.
func (r *scheduleRepo) CountInWindow(ctx context.Context, tx repository.Tx, accountID string, from, to time.Time) (int, error) {
	const q = `
SELECT COUNT(*)
  FROM scheduled_sends
 WHERE account_id=$1 AND status <> 'cancelled'
   AND scheduled_time >= $2 AND scheduled_time < $3;`
	row, err := pickRow(ctx, r.pool, tx, q, accountID, from, to)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *scheduleRepo) Stats(ctx context.Context, tx repository.Tx, now time.Time) (*model.SendStats, error) {
	const q = `
SELECT
  COUNT(*) FILTER (WHERE status='scheduled') AS scheduled,
  COUNT(*) FILTER (WHERE status='scheduled' AND scheduled_time >= $1 AND scheduled_time < $1 + INTERVAL '1 hour') AS next_hour,
  COUNT(*) FILTER (WHERE status='scheduled' AND scheduled_time >= date_trunc('day', $1::timestamptz) AND scheduled_time < date_trunc('day', $1::timestamptz) + INTERVAL '1 day') AS today,
  COUNT(*) FILTER (WHERE status='sent') AS sent
FROM scheduled_sends;`
	row, err := pickRow(ctx, r.pool, tx, q, now)
	if err != nil {
		return nil, err
	}
	var st model.SendStats
	if err := row.Scan(&st.Scheduled, &st.NextHour, &st.Today, &st.Sent); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return &st, nil
}

func scanSend(row pgx.Row) (*model.ScheduledSend, error) {
	var s model.ScheduledSend
	var status string
	var variant *string
	err := row.Scan(
		&s.ID, &s.MessageRef, &s.AccountID, &s.ScheduledTime, &s.Timezone, &status, &s.RetryCount,
		&s.MaxRetries, &s.ErrorMessage, &s.AIOptimized, &s.ExperimentID, &variant, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.Status = model.SendStatus(status)
	if variant != nil {
		v := model.Variant(*variant)
		s.Variant = &v
	}
	return &s, nil
}
