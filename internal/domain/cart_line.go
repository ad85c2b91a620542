package domain

import (
	"time"

	"github.com/google/uuid"
)

// CartLineStatus represents the lifecycle state of a cart line
type CartLineStatus string

const (
	CartLineStatusActive    CartLineStatus = "ACTIVE"
	CartLineStatusCompleted CartLineStatus = "COMPLETED"
)

// CartLine is one pending purchase row per (client, product). Repeated adds
// for the same product merge into the existing ACTIVE line. A line moves
// ACTIVE -> COMPLETED exactly once, during checkout, and never reverts.
type CartLine struct {
	ID            uuid.UUID      `json:"id"`
	ClientID      int64          `json:"client_id"`
	ProductID     int64          `json:"product_id"`
	TransactionID uuid.NullUUID  `json:"transaction_id"`
	Quantity      int32          `json:"quantity"`
	LineTotal     float64        `json:"line_total"`
	Status        CartLineStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
