package repository

import (
	"context"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/model"
)

// ExperimentRepository is the port for experiments and their variant metrics.
type ExperimentRepository interface {
	Save(ctx context.Context, tx Tx, e *model.Experiment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Experiment, error)
	ListCompleted(ctx context.Context, tx Tx) ([]*model.Experiment, error)
}
