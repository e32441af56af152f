package port

import (
	"context"

	"github.com/rl1809/benefit-transfer/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, event domain.TransferCompleted) error
	Close() error
}
