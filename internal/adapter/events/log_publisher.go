package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/benefit-transfer/internal/core/domain"
	"github.com/rl1809/benefit-transfer/internal/port"
)

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	logger *zap.Logger
}

var _ port.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event domain.TransferCompleted) error {
	p.logger.Info("transfer completed",
		zap.String("transfer_id", event.TransferID),
		zap.String("from", event.FromID),
		zap.String("to", event.ToID),
		zap.Stringer("amount", event.Amount),
		zap.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
