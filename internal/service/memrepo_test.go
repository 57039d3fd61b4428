package service

import (
	"context"
	"fmt"
	"sync"

	"commerce-core/internal/models"
)

// memRepo is an in-memory models.Repository with real transaction
// semantics: InTx serializes callers the way row locks would, and restores a
// snapshot of the whole state when the callback fails. Error fields let
// tests inject persistence failures mid-workflow.
type memRepo struct {
	mu    sync.Mutex
	state *memState

	failInsertOrder       error
	failInsertOrderLine   error
	failInsertTransaction error
	failDeleteCartLines   error
}

type memState struct {
	products     map[int64]*models.Product
	cartLines    map[int64][]models.CartLine
	orders       map[int64]*models.Order
	orderLines   map[int64][]models.OrderLine
	transactions map[int64]*models.Transaction
	logs         []models.AuditLog

	nextOrderID int64
	nextLineID  int64
	nextTxnID   int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		state: &memState{
			products:     make(map[int64]*models.Product),
			cartLines:    make(map[int64][]models.CartLine),
			orders:       make(map[int64]*models.Order),
			orderLines:   make(map[int64][]models.OrderLine),
			transactions: make(map[int64]*models.Transaction),
		},
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		products:     make(map[int64]*models.Product, len(s.products)),
		cartLines:    make(map[int64][]models.CartLine, len(s.cartLines)),
		orders:       make(map[int64]*models.Order, len(s.orders)),
		orderLines:   make(map[int64][]models.OrderLine, len(s.orderLines)),
		transactions: make(map[int64]*models.Transaction, len(s.transactions)),
		logs:         append([]models.AuditLog(nil), s.logs...),
		nextOrderID:  s.nextOrderID,
		nextLineID:   s.nextLineID,
		nextTxnID:    s.nextTxnID,
	}
	for id, p := range s.products {
		cp := *p
		c.products[id] = &cp
	}
	for buyer, lines := range s.cartLines {
		c.cartLines[buyer] = append([]models.CartLine(nil), lines...)
	}
	for id, o := range s.orders {
		co := *o
		c.orders[id] = &co
	}
	for id, lines := range s.orderLines {
		c.orderLines[id] = append([]models.OrderLine(nil), lines...)
	}
	for id, t := range s.transactions {
		ct := *t
		c.transactions[id] = &ct
	}
	return c
}

func (r *memRepo) addProduct(p models.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := p
	r.state.products[p.ID] = &cp
}

func (r *memRepo) addCartLine(l models.CartLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.cartLines[l.BuyerID] = append(r.state.cartLines[l.BuyerID], l)
}

func (r *memRepo) product(id int64) models.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.state.products[id]
}

func (r *memRepo) order(id int64) models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.state.orders[id]
}

func (r *memRepo) orderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.orders)
}

func (r *memRepo) transactionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.transactions)
}

func (r *memRepo) cartLineCount(buyerID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.cartLines[buyerID])
}

func (r *memRepo) auditLogCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.logs)
}

func (r *memRepo) InTx(ctx context.Context, fn func(tx models.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := r.state.clone()
	if err := fn(&memTx{repo: r}); err != nil {
		r.state = snapshot
		return err
	}
	return nil
}

func (r *memRepo) CartSnapshot(ctx context.Context, buyerID int64) ([]models.SnapshotLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lines []models.SnapshotLine
	for _, cl := range r.state.cartLines[buyerID] {
		product, ok := r.state.products[cl.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, models.SnapshotLine{
			ProductID: cl.ProductID,
			Quantity:  cl.Quantity,
			UnitPrice: product.UnitPrice,
		})
	}
	return lines, nil
}

func (r *memRepo) OrderByID(ctx context.Context, orderID int64) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.state.orders[orderID]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (r *memRepo) OrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, order := range r.state.orders {
		if order.IdempotencyKey == key {
			cp := *order
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRepo) OrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.OrderLine(nil), r.state.orderLines[orderID]...), nil
}

func (r *memRepo) OrdersByBuyer(ctx context.Context, buyerID int64, status string) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var orders []models.Order
	for _, order := range r.state.orders {
		if order.BuyerID != buyerID {
			continue
		}
		if status != "" && order.Status != status {
			continue
		}
		orders = append(orders, *order)
	}
	return orders, nil
}

func (r *memRepo) TransactionsByOrder(ctx context.Context, orderID int64) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var txns []models.Transaction
	for _, txn := range r.state.transactions {
		if txn.OrderID == orderID {
			txns = append(txns, *txn)
		}
	}
	return txns, nil
}

func (r *memRepo) ProductAvailability(ctx context.Context, productID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.state.products[productID]
	if !ok {
		return 0, fmt.Errorf("product not found: %d", productID)
	}
	return product.AvailableQuantity, nil
}

// memTx operates on the live state while the repo mutex is held by InTx.
type memTx struct {
	repo *memRepo
}

func (t *memTx) ProductForUpdate(ctx context.Context, productID int64) (*models.Product, error) {
	product, ok := t.repo.state.products[productID]
	if !ok {
		return nil, fmt.Errorf("product not found: %d", productID)
	}
	cp := *product
	return &cp, nil
}

func (t *memTx) UpdateProductStock(ctx context.Context, productID int64, available int, purchasable bool) error {
	product := t.repo.state.products[productID]
	product.AvailableQuantity = available
	product.IsPurchasable = purchasable
	return nil
}

func (t *memTx) InsertOrder(ctx context.Context, order *models.Order) error {
	if t.repo.failInsertOrder != nil {
		return t.repo.failInsertOrder
	}
	t.repo.state.nextOrderID++
	order.ID = t.repo.state.nextOrderID
	cp := *order
	t.repo.state.orders[order.ID] = &cp
	return nil
}

func (t *memTx) InsertOrderLine(ctx context.Context, line *models.OrderLine) error {
	if t.repo.failInsertOrderLine != nil {
		return t.repo.failInsertOrderLine
	}
	t.repo.state.nextLineID++
	line.ID = t.repo.state.nextLineID
	t.repo.state.orderLines[line.OrderID] = append(t.repo.state.orderLines[line.OrderID], *line)
	return nil
}

func (t *memTx) OrderForUpdate(ctx context.Context, orderID int64) (*models.Order, error) {
	order, ok := t.repo.state.orders[orderID]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	order, ok := t.repo.state.orders[orderID]
	if !ok {
		return models.ErrOrderNotFound
	}
	order.Status = status
	return nil
}

func (t *memTx) OrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	return append([]models.OrderLine(nil), t.repo.state.orderLines[orderID]...), nil
}

func (t *memTx) DeleteCartLines(ctx context.Context, buyerID int64, productIDs []int64) error {
	if t.repo.failDeleteCartLines != nil {
		return t.repo.failDeleteCartLines
	}

	keep := t.repo.state.cartLines[buyerID][:0:0]
	snapshotted := make(map[int64]bool, len(productIDs))
	for _, id := range productIDs {
		snapshotted[id] = true
	}
	for _, line := range t.repo.state.cartLines[buyerID] {
		if !snapshotted[line.ProductID] {
			keep = append(keep, line)
		}
	}
	t.repo.state.cartLines[buyerID] = keep
	return nil
}

func (t *memTx) InsertTransaction(ctx context.Context, txn *models.Transaction) error {
	if t.repo.failInsertTransaction != nil {
		return t.repo.failInsertTransaction
	}
	t.repo.state.nextTxnID++
	txn.ID = t.repo.state.nextTxnID
	cp := *txn
	t.repo.state.transactions[txn.ID] = &cp
	return nil
}

func (t *memTx) TransactionForUpdate(ctx context.Context, transactionID int64) (*models.Transaction, error) {
	txn, ok := t.repo.state.transactions[transactionID]
	if !ok {
		return nil, models.ErrTransactionNotFound
	}
	cp := *txn
	return &cp, nil
}

func (t *memTx) UpdateTransactionStatus(ctx context.Context, transactionID int64, status string) error {
	txn, ok := t.repo.state.transactions[transactionID]
	if !ok {
		return models.ErrTransactionNotFound
	}
	txn.Status = status
	return nil
}

func (t *memTx) InsertAuditLog(ctx context.Context, entry *models.AuditLog) error {
	entry.ID = int64(len(t.repo.state.logs) + 1)
	t.repo.state.logs = append(t.repo.state.logs, *entry)
	return nil
}

// captureEvents records published events for assertions.
type captureEvents struct {
	mu        sync.Mutex
	created   []*models.OrderCreatedEvent
	completed []*models.OrderCompletedEvent
	refunded  []*models.OrderRefundedEvent
}

func (c *captureEvents) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created = append(c.created, event)
	return nil
}

func (c *captureEvents) PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed = append(c.completed, event)
	return nil
}

func (c *captureEvents) PublishOrderRefunded(ctx context.Context, event *models.OrderRefundedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refunded = append(c.refunded, event)
	return nil
}
