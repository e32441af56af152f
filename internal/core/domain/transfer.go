package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransferRequest struct {
	FromID         string
	ToID           string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// TransferCompleted is emitted once both legs of a transfer are committed.
type TransferCompleted struct {
	TransferID string          `json:"transfer_id"`
	FromID     string          `json:"from_id"`
	ToID       string          `json:"to_id"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}
