package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrCartLineNotFound    = errors.New("cart line not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrOutOfStock          = errors.New("product stock not available")
	ErrDuplicateCartLine   = errors.New("active cart line for this product already exists")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// OutboxEvent is a pending integration event written in the same transaction
// as the state change it describes.
type OutboxEvent struct {
	ID          int64
	AggregateId string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// TxQueries is the conditional-update surface available inside WithinTx.
// Every mutation applies only if the target row still satisfies its predicate
// at execution time; row locks taken here are held until the unit commits.
type TxQueries interface {
	// GetProductForUpdate loads a product under a row lock, serializing
	// concurrent units touching the same product.
	GetProductForUpdate(ctx context.Context, productID int64) (*domain.Product, error)

	// DecrementStock subtracts quantity only if remaining stock still covers
	// it; returns ErrOutOfStock otherwise.
	DecrementStock(ctx context.Context, productID int64, quantity int32) error
	IncrementStock(ctx context.Context, productID int64, quantity int32) error

	FindActiveCartLineForUpdate(ctx context.Context, clientID, productID int64) (*domain.CartLine, error)
	FindActiveCartLinesForUpdate(ctx context.Context, clientID int64) ([]*domain.CartLine, error)
	CreateCartLine(ctx context.Context, line *domain.CartLine) error
	UpdateActiveCartLine(ctx context.Context, id uuid.UUID, quantity int32, lineTotal float64) error
	DeleteActiveCartLine(ctx context.Context, id uuid.UUID) error

	CreateTransaction(ctx context.Context, trans *domain.Transaction) error

	// CompleteCartLines binds every ACTIVE line of the client to the
	// transaction and flips it to COMPLETED, returning the number of rows
	// claimed. Lines already claimed by a concurrent checkout are not counted.
	CompleteCartLines(ctx context.Context, clientID int64, transactionID uuid.UUID) (int64, error)

	InsertOutboxEvent(ctx context.Context, aggregateID, eventType string, payload []byte) error
}

type RepoInterface interface {
	// WithinTx runs fn inside a single database transaction: commit on nil,
	// full rollback on error. The callback error is returned as-is so
	// sentinel errors survive the boundary.
	WithinTx(ctx context.Context, fn func(q TxQueries) error) error

	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	CreateProduct(ctx context.Context, product *domain.Product) error

	FindActiveCartLines(ctx context.Context, clientID int64) ([]*domain.CartLine, error)

	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	ListTransactionsByClient(ctx context.Context, clientID int64) ([]*domain.Transaction, error)
	FindCartLinesByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*domain.CartLine, error)
	UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status domain.TransactionStatus) error

	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error

	RunMigrations(*Credentials) error
	Close() error
}
