package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/model"
	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/ports/repository"
)

// Ensure experimentRepo implements repository.ExperimentRepository
var _ repository.ExperimentRepository = (*experimentRepo)(nil)

type experimentRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewExperimentRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *experimentRepo {
	return &experimentRepo{pool: pool, tm: tm}
}

// Save upserts the experiment row and all three variant metric rows in one
// transaction so counters never drift from their experiment.
func (r *experimentRepo) Save(ctx context.Context, tx repository.Tx, e *model.Experiment) error {
	run := func(ctx context.Context, tx repository.Tx) error {
		const q = `
INSERT INTO experiments (id, name, status, min_sample_size, improvement_threshold, winning_variant, completed_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  status=$3, winning_variant=$6, completed_at=$7;`

		var winner *string
		if e.WinningVariant != nil {
			w := string(*e.WinningVariant)
			winner = &w
		}
		if _, err := execSQL(ctx, r.pool, tx, q,
			e.ID, e.Name, e.Status, e.MinSampleSize, e.ImprovementThreshold, winner, e.CompletedAt, e.CreatedAt); err != nil {
			return domain.ErrOperationFailed
		}

		const vq = `
INSERT INTO experiment_variants (experiment_id, variant, sent_count, reply_count, positive_reply_count, avg_sentiment, reply_rate)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (experiment_id, variant) DO UPDATE SET
  sent_count=$3, reply_count=$4, positive_reply_count=$5, avg_sentiment=$6, reply_rate=$7;`
		for _, v := range model.Variants {
			m := e.Metrics[v]
			if _, err := execSQL(ctx, r.pool, tx, vq,
				e.ID, string(v), m.SentCount, m.ReplyCount, m.PositiveReplyCount, m.AvgSentiment, m.ReplyRate); err != nil {
				return domain.ErrOperationFailed
			}
		}
		return nil
	}

	if tx != nil {
		return run(ctx, tx)
	}
	return r.tm.WithTx(ctx, pgx.TxOptions{}, run)
}

func (r *experimentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Experiment, error) {
	const q = `
SELECT id, name, status, min_sample_size, improvement_threshold, winning_variant, completed_at, created_at
  FROM experiments WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	exp, err := scanExperiment(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadMetrics(ctx, tx, exp); err != nil {
		return nil, err
	}
	return exp, nil
}

func (r *experimentRepo) ListCompleted(ctx context.Context, tx repository.Tx) ([]*model.Experiment, error) {
	const q = `
SELECT id, name, status, min_sample_size, improvement_threshold, winning_variant, completed_at, created_at
  FROM experiments
 WHERE status='completed'
 ORDER BY completed_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	for _, exp := range out {
		if err := r.loadMetrics(ctx, tx, exp); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *experimentRepo) loadMetrics(ctx context.Context, tx repository.Tx, exp *model.Experiment) error {
	const q = `
SELECT variant, sent_count, reply_count, positive_reply_count, avg_sentiment, reply_rate
  FROM experiment_variants WHERE experiment_id=$1;`
	rows, err := queryRows(ctx, r.pool, tx, q, exp.ID)
	if err != nil {
		return domain.ErrOperationFailed
	}
	defer rows.Close()

	exp.Metrics = make(map[model.Variant]*model.VariantMetrics, len(model.Variants))
	for _, v := range model.Variants {
		exp.Metrics[v] = &model.VariantMetrics{Variant: v}
	}
	for rows.Next() {
		var m model.VariantMetrics
		var variant string
		if err := rows.Scan(&variant, &m.SentCount, &m.ReplyCount, &m.PositiveReplyCount, &m.AvgSentiment, &m.ReplyRate); err != nil {
			return domain.ErrReadDatabaseRow
		}
		m.Variant = model.Variant(variant)
		exp.Metrics[m.Variant] = &m
	}
	return rows.Err()
}

func scanExperiment(row pgx.Row) (*model.Experiment, error) {
	var e model.Experiment
	var status string
	var winner *string
	err := row.Scan(&e.ID, &e.Name, &status, &e.MinSampleSize, &e.ImprovementThreshold, &winner, &e.CompletedAt, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	e.Status = model.ExperimentStatus(status)
	if winner != nil {
		w := model.Variant(*winner)
		e.WinningVariant = &w
	}
	return &e, nil
}
