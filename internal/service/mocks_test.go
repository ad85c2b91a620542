package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_shop/internal/cache"
	"github.com/fjod/go_shop/internal/domain"
	"github.com/fjod/go_shop/internal/repository"
	"github.com/google/uuid"
)

// mockRepo is an in-memory RepoInterface. WithinTx takes the mutex for the
// whole unit (the analog of row locking) and restores a snapshot when the
// callback fails, so rollback behavior is observable in tests.
type mockRepo struct {
	mu           sync.Mutex
	products     map[int64]*domain.Product
	lines        map[uuid.UUID]*domain.CartLine
	transactions map[uuid.UUID]*domain.Transaction
	outbox       []*repository.OutboxEvent
	nextProduct  int64
	nextOutbox   int64
	failOn       map[string]error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		products:     make(map[int64]*domain.Product),
		lines:        make(map[uuid.UUID]*domain.CartLine),
		transactions: make(map[uuid.UUID]*domain.Transaction),
		failOn:       make(map[string]error),
	}
}

func (m *mockRepo) addProduct(id int64, price float64, stock int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id] = &domain.Product{
		ID:        id,
		Name:      "product",
		Price:     price,
		Stock:     stock,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if id >= m.nextProduct {
		m.nextProduct = id + 1
	}
}

func (m *mockRepo) productStock(id int64) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

func (m *mockRepo) activeLines(clientID int64) []*domain.CartLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeLinesLocked(clientID)
}

func (m *mockRepo) activeLinesLocked(clientID int64) []*domain.CartLine {
	var lines []*domain.CartLine
	for _, l := range m.lines {
		if l.ClientID == clientID && l.Status == domain.CartLineStatusActive {
			cp := *l
			lines = append(lines, &cp)
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		if !lines[i].CreatedAt.Equal(lines[j].CreatedAt) {
			return lines[i].CreatedAt.Before(lines[j].CreatedAt)
		}
		return lines[i].ID.String() < lines[j].ID.String()
	})
	return lines
}

func (m *mockRepo) transactionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}

func (m *mockRepo) outboxEvents() []*repository.OutboxEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]*repository.OutboxEvent, len(m.outbox))
	copy(events, m.outbox)
	return events
}

func (m *mockRepo) injected(method string) error {
	return m.failOn[method]
}

type snapshot struct {
	products     map[int64]*domain.Product
	lines        map[uuid.UUID]*domain.CartLine
	transactions map[uuid.UUID]*domain.Transaction
	outbox       []*repository.OutboxEvent
}

func (m *mockRepo) snapshotLocked() snapshot {
	s := snapshot{
		products:     make(map[int64]*domain.Product, len(m.products)),
		lines:        make(map[uuid.UUID]*domain.CartLine, len(m.lines)),
		transactions: make(map[uuid.UUID]*domain.Transaction, len(m.transactions)),
		outbox:       make([]*repository.OutboxEvent, len(m.outbox)),
	}
	for k, v := range m.products {
		cp := *v
		s.products[k] = &cp
	}
	for k, v := range m.lines {
		cp := *v
		s.lines[k] = &cp
	}
	for k, v := range m.transactions {
		cp := *v
		s.transactions[k] = &cp
	}
	copy(s.outbox, m.outbox)
	return s
}

func (m *mockRepo) restoreLocked(s snapshot) {
	m.products = s.products
	m.lines = s.lines
	m.transactions = s.transactions
	m.outbox = s.outbox
}

func (m *mockRepo) WithinTx(_ context.Context, fn func(q repository.TxQueries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.snapshotLocked()
	if err := fn(&mockTx{repo: m}); err != nil {
		m.restoreLocked(s)
		return err
	}
	return nil
}

func (m *mockRepo) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("GetProduct"); err != nil {
		return nil, err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) ListProducts(context.Context) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("ListProducts"); err != nil {
		return nil, err
	}
	var products []*domain.Product
	for _, p := range m.products {
		cp := *p
		products = append(products, &cp)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (m *mockRepo) CreateProduct(_ context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("CreateProduct"); err != nil {
		return err
	}
	if m.nextProduct == 0 {
		m.nextProduct = 1
	}
	product.ID = m.nextProduct
	m.nextProduct++
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt
	cp := *product
	m.products[product.ID] = &cp
	return nil
}

func (m *mockRepo) FindActiveCartLines(_ context.Context, clientID int64) ([]*domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("FindActiveCartLines"); err != nil {
		return nil, err
	}
	return m.activeLinesLocked(clientID), nil
}

func (m *mockRepo) GetTransaction(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok {
		return nil, repository.ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockRepo) ListTransactionsByClient(_ context.Context, clientID int64) ([]*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var transactions []*domain.Transaction
	for _, t := range m.transactions {
		if t.ClientID == clientID {
			cp := *t
			transactions = append(transactions, &cp)
		}
	}
	sort.Slice(transactions, func(i, j int) bool {
		return transactions[i].CreatedAt.After(transactions[j].CreatedAt)
	})
	return transactions, nil
}

func (m *mockRepo) FindCartLinesByTransaction(_ context.Context, transactionID uuid.UUID) ([]*domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var lines []*domain.CartLine
	for _, l := range m.lines {
		if l.TransactionID.Valid && l.TransactionID.UUID == transactionID {
			cp := *l
			lines = append(lines, &cp)
		}
	}
	return lines, nil
}

func (m *mockRepo) UpdateTransactionStatus(_ context.Context, id uuid.UUID, status domain.TransactionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[id]
	if !ok {
		return repository.ErrTransactionNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return nil
}

func (m *mockRepo) GetUnprocessedEvents(_ context.Context, limit int) ([]*repository.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.outbox) {
		limit = len(m.outbox)
	}
	events := make([]*repository.OutboxEvent, limit)
	copy(events, m.outbox[:limit])
	return events, nil
}

func (m *mockRepo) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.outbox {
		if e.ID == id {
			m.outbox = append(m.outbox[:i], m.outbox[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockRepo) RunMigrations(*repository.Credentials) error { return nil }
func (m *mockRepo) Close() error                                { return nil }

// mockTx runs with the repo mutex already held by WithinTx.
type mockTx struct {
	repo *mockRepo
}

func (q *mockTx) GetProductForUpdate(_ context.Context, productID int64) (*domain.Product, error) {
	if err := q.repo.injected("GetProductForUpdate"); err != nil {
		return nil, err
	}
	p, ok := q.repo.products[productID]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (q *mockTx) DecrementStock(_ context.Context, productID int64, quantity int32) error {
	if err := q.repo.injected("DecrementStock"); err != nil {
		return err
	}
	p, ok := q.repo.products[productID]
	if !ok || p.Stock < quantity {
		return repository.ErrOutOfStock
	}
	p.Stock -= quantity
	return nil
}

func (q *mockTx) IncrementStock(_ context.Context, productID int64, quantity int32) error {
	if err := q.repo.injected("IncrementStock"); err != nil {
		return err
	}
	p, ok := q.repo.products[productID]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Stock += quantity
	return nil
}

func (q *mockTx) FindActiveCartLineForUpdate(_ context.Context, clientID, productID int64) (*domain.CartLine, error) {
	if err := q.repo.injected("FindActiveCartLineForUpdate"); err != nil {
		return nil, err
	}
	for _, l := range q.repo.lines {
		if l.ClientID == clientID && l.ProductID == productID && l.Status == domain.CartLineStatusActive {
			cp := *l
			return &cp, nil
		}
	}
	return nil, repository.ErrCartLineNotFound
}

func (q *mockTx) FindActiveCartLinesForUpdate(_ context.Context, clientID int64) ([]*domain.CartLine, error) {
	if err := q.repo.injected("FindActiveCartLinesForUpdate"); err != nil {
		return nil, err
	}
	return q.repo.activeLinesLocked(clientID), nil
}

func (q *mockTx) CreateCartLine(_ context.Context, line *domain.CartLine) error {
	if err := q.repo.injected("CreateCartLine"); err != nil {
		return err
	}
	for _, l := range q.repo.lines {
		if l.ClientID == line.ClientID && l.ProductID == line.ProductID && l.Status == domain.CartLineStatusActive {
			return repository.ErrDuplicateCartLine
		}
	}
	line.CreatedAt = time.Now()
	line.UpdatedAt = line.CreatedAt
	cp := *line
	q.repo.lines[line.ID] = &cp
	return nil
}

func (q *mockTx) UpdateActiveCartLine(_ context.Context, id uuid.UUID, quantity int32, lineTotal float64) error {
	if err := q.repo.injected("UpdateActiveCartLine"); err != nil {
		return err
	}
	l, ok := q.repo.lines[id]
	if !ok || l.Status != domain.CartLineStatusActive {
		return repository.ErrCartLineNotFound
	}
	l.Quantity = quantity
	l.LineTotal = lineTotal
	l.UpdatedAt = time.Now()
	return nil
}

func (q *mockTx) DeleteActiveCartLine(_ context.Context, id uuid.UUID) error {
	if err := q.repo.injected("DeleteActiveCartLine"); err != nil {
		return err
	}
	l, ok := q.repo.lines[id]
	if !ok || l.Status != domain.CartLineStatusActive {
		return repository.ErrCartLineNotFound
	}
	delete(q.repo.lines, id)
	return nil
}

func (q *mockTx) CreateTransaction(_ context.Context, trans *domain.Transaction) error {
	if err := q.repo.injected("CreateTransaction"); err != nil {
		return err
	}
	trans.CreatedAt = time.Now()
	trans.UpdatedAt = trans.CreatedAt
	cp := *trans
	cp.Lines = nil
	q.repo.transactions[trans.ID] = &cp
	return nil
}

func (q *mockTx) CompleteCartLines(_ context.Context, clientID int64, transactionID uuid.UUID) (int64, error) {
	if err := q.repo.injected("CompleteCartLines"); err != nil {
		return 0, err
	}
	var claimed int64
	for _, l := range q.repo.lines {
		if l.ClientID == clientID && l.Status == domain.CartLineStatusActive {
			l.Status = domain.CartLineStatusCompleted
			l.TransactionID = uuid.NullUUID{UUID: transactionID, Valid: true}
			l.UpdatedAt = time.Now()
			claimed++
		}
	}
	return claimed, nil
}

func (q *mockTx) InsertOutboxEvent(_ context.Context, aggregateID, eventType string, payload []byte) error {
	if err := q.repo.injected("InsertOutboxEvent"); err != nil {
		return err
	}
	q.repo.nextOutbox++
	q.repo.outbox = append(q.repo.outbox, &repository.OutboxEvent{
		ID:          q.repo.nextOutbox,
		AggregateId: aggregateID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   time.Now(),
	})
	return nil
}

type mockCache struct {
	m        sync.RWMutex
	products map[int64]*domain.Product
	err      error
	deletes  []int64
}

func newMockCache() *mockCache {
	return &mockCache{products: make(map[int64]*domain.Product)}
}

func (m *mockCache) Get(_ context.Context, productID int64) (*domain.Product, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[productID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return p, nil
}

func (m *mockCache) Set(_ context.Context, productID int64, product *domain.Product) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.products[productID] = product
	return nil
}

func (m *mockCache) Delete(_ context.Context, productID int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.products, productID)
	m.deletes = append(m.deletes, productID)
	return m.err
}

func (m *mockCache) deleted(productID int64) bool {
	m.m.RLock()
	defer m.m.RUnlock()
	for _, id := range m.deletes {
		if id == productID {
			return true
		}
	}
	return false
}

func (m *mockCache) getProduct(productID int64) *domain.Product {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.products[productID]
}
