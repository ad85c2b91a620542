package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
	_ "github.com/lib/pq"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repository struct {
	db *sql.DB
}

type txQueries struct {
	tx *sql.Tx
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "shop_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) WithinTx(ctx context.Context, fn func(q TxQueries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if fnErr := fn(&txQueries{tx: tx}); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Printf("rollback failed: %v", rbErr)
		}
		return fnErr
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const productColumns = `id, name, description, price, stock, image_url, created_at, updated_at`

func scanProduct(row *sql.Row) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Stock,
		&p.ImageURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return scanProduct(r.db.QueryRowContext(ctx, query, id))
}

func (r *Repository) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p := &domain.Product{}
		if err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Description,
			&p.Price,
			&p.Stock,
			&p.ImageURL,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (r *Repository) CreateProduct(ctx context.Context, product *domain.Product) error {
	query := `INSERT INTO products (name, description, price, stock, image_url, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	          RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		product.Name,
		product.Description,
		product.Price,
		product.Stock,
		product.ImageURL,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

const cartLineColumns = `id, client_id, product_id, transaction_id, quantity, line_total, status, created_at, updated_at`

func scanCartLines(rows *sql.Rows) ([]*domain.CartLine, error) {
	var lines []*domain.CartLine
	for rows.Next() {
		l := &domain.CartLine{}
		if err := rows.Scan(
			&l.ID,
			&l.ClientID,
			&l.ProductID,
			&l.TransactionID,
			&l.Quantity,
			&l.LineTotal,
			&l.Status,
			&l.CreatedAt,
			&l.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart line row: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return lines, nil
}

func findActiveCartLines(ctx context.Context, db dbtx, clientID int64, forUpdate bool) ([]*domain.CartLine, error) {
	query := `SELECT ` + cartLineColumns + ` FROM cart_lines
	          WHERE client_id = $1 AND status = 'ACTIVE' ORDER BY created_at`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rows, err := db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("query active cart lines: %w", err)
	}
	defer rows.Close()

	return scanCartLines(rows)
}

func (r *Repository) FindActiveCartLines(ctx context.Context, clientID int64) ([]*domain.CartLine, error) {
	return findActiveCartLines(ctx, r.db, clientID, false)
}

func (r *Repository) FindCartLinesByTransaction(ctx context.Context, transactionID uuid.UUID) ([]*domain.CartLine, error) {
	query := `SELECT ` + cartLineColumns + ` FROM cart_lines
	          WHERE transaction_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines by transaction: %w", err)
	}
	defer rows.Close()

	return scanCartLines(rows)
}

const transactionColumns = `id, client_id, total, status, created_at, updated_at`

func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	t := &domain.Transaction{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.ClientID,
		&t.Total,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction by id: %w", err)
	}

	return t, nil
}

func (r *Repository) ListTransactionsByClient(ctx context.Context, clientID int64) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
	          WHERE client_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("query transactions by client: %w", err)
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		t := &domain.Transaction{}
		if err := rows.Scan(
			&t.ID,
			&t.ClientID,
			&t.Total,
			&t.Status,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		transactions = append(transactions, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return transactions, nil
}

func (r *Repository) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status domain.TransactionStatus) error {
	query := `UPDATE transactions SET status = $2, updated_at = NOW() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if affected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at FROM outbox_events
	          WHERE processed_at IS NULL ORDER BY created_at LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		e := &OutboxEvent{}
		if err := rows.Scan(&e.ID, &e.AggregateId, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event row: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	query := `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1 AND processed_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark outbox event processed: %w", err)
	}
	return nil
}

func (q *txQueries) GetProductForUpdate(ctx context.Context, productID int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`
	return scanProduct(q.tx.QueryRowContext(ctx, query, productID))
}

func (q *txQueries) DecrementStock(ctx context.Context, productID int64, quantity int32) error {
	query := `UPDATE products SET stock = stock - $2, updated_at = NOW()
	          WHERE id = $1 AND stock >= $2`

	res, err := q.tx.ExecContext(ctx, query, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if affected == 0 {
		return ErrOutOfStock
	}
	return nil
}

func (q *txQueries) IncrementStock(ctx context.Context, productID int64, quantity int32) error {
	query := `UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1`

	res, err := q.tx.ExecContext(ctx, query, productID, quantity)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (q *txQueries) FindActiveCartLineForUpdate(ctx context.Context, clientID, productID int64) (*domain.CartLine, error) {
	query := `SELECT ` + cartLineColumns + ` FROM cart_lines
	          WHERE client_id = $1 AND product_id = $2 AND status = 'ACTIVE' FOR UPDATE`

	l := &domain.CartLine{}
	err := q.tx.QueryRowContext(ctx, query, clientID, productID).Scan(
		&l.ID,
		&l.ClientID,
		&l.ProductID,
		&l.TransactionID,
		&l.Quantity,
		&l.LineTotal,
		&l.Status,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartLineNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query active cart line: %w", err)
	}

	return l, nil
}

func (q *txQueries) FindActiveCartLinesForUpdate(ctx context.Context, clientID int64) ([]*domain.CartLine, error) {
	return findActiveCartLines(ctx, q.tx, clientID, true)
}

func (q *txQueries) CreateCartLine(ctx context.Context, line *domain.CartLine) error {
	query := `INSERT INTO cart_lines (id, client_id, product_id, transaction_id, quantity, line_total, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	          RETURNING created_at, updated_at`

	err := q.tx.QueryRowContext(ctx, query,
		line.ID,
		line.ClientID,
		line.ProductID,
		line.TransactionID,
		line.Quantity,
		line.LineTotal,
		line.Status,
	).Scan(&line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateCartLine
		}
		return fmt.Errorf("insert cart line: %w", err)
	}
	return nil
}

func (q *txQueries) UpdateActiveCartLine(ctx context.Context, id uuid.UUID, quantity int32, lineTotal float64) error {
	query := `UPDATE cart_lines SET quantity = $2, line_total = $3, updated_at = NOW()
	          WHERE id = $1 AND status = 'ACTIVE'`

	res, err := q.tx.ExecContext(ctx, query, id, quantity, lineTotal)
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	if affected == 0 {
		return ErrCartLineNotFound
	}
	return nil
}

func (q *txQueries) DeleteActiveCartLine(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM cart_lines WHERE id = $1 AND status = 'ACTIVE'`

	res, err := q.tx.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	if affected == 0 {
		return ErrCartLineNotFound
	}
	return nil
}

func (q *txQueries) CreateTransaction(ctx context.Context, trans *domain.Transaction) error {
	query := `INSERT INTO transactions (id, client_id, total, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, NOW(), NOW())
	          RETURNING created_at, updated_at`

	err := q.tx.QueryRowContext(ctx, query,
		trans.ID,
		trans.ClientID,
		trans.Total,
		trans.Status,
	).Scan(&trans.CreatedAt, &trans.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (q *txQueries) CompleteCartLines(ctx context.Context, clientID int64, transactionID uuid.UUID) (int64, error) {
	query := `UPDATE cart_lines SET status = 'COMPLETED', transaction_id = $2, updated_at = NOW()
	          WHERE client_id = $1 AND status = 'ACTIVE'`

	res, err := q.tx.ExecContext(ctx, query, clientID, transactionID)
	if err != nil {
		return 0, fmt.Errorf("complete cart lines: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("complete cart lines: %w", err)
	}
	return affected, nil
}

func (q *txQueries) InsertOutboxEvent(ctx context.Context, aggregateID, eventType string, payload []byte) error {
	query := `INSERT INTO outbox_events (aggregate_id, event_type, payload) VALUES ($1, $2, $3)`

	if _, err := q.tx.ExecContext(ctx, query, aggregateID, eventType, payload); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
