package delivery

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/baassiri/SC-Ai-leads-bot-sub000/internal/domain/ports/adapter"
)

// Ensure NoopChannel implements adapter.DeliveryChannel
var _ adapter.DeliveryChannel = (*NoopChannel)(nil)

// NoopChannel logs the send and reports success. Used in development and in
// dry-run deployments where messages must flow through the pipeline without
// reaching anyone.
type NoopChannel struct {
	log *zerolog.Logger
}

func NewNoopChannel(logger *zerolog.Logger) *NoopChannel {
	l := logger.With().Str("component", "delivery_noop").Logger()
	return &NoopChannel{log: &l}
}

func (c *NoopChannel) Send(ctx context.Context, msg adapter.OutreachMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.log.Info().
		Str("lead_ref", msg.LeadProfileRef).
		Int("content_len", len(msg.Content)).
		Msg("dry-run send")
	return nil
}
