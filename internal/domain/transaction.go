package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionStatus string

const (
	TransactionStatusUnpaid TransactionStatus = "UNPAID"
	TransactionStatusPaid   TransactionStatus = "PAID"
)

// Transaction is a finalized purchase header. Total equals the sum of
// line_total over the cart lines bound to it at creation time. Immutable
// after creation except for administrative status edits.
type Transaction struct {
	ID        uuid.UUID         `json:"id"`
	ClientID  int64             `json:"client_id"`
	Total     float64           `json:"total"`
	Status    TransactionStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Lines     []*CartLine       `json:"lines,omitempty"`
}
