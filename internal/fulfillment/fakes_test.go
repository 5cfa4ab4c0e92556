package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/imrishuroy/go-order-fulfillment/internal/orders"
	"github.com/imrishuroy/go-order-fulfillment/internal/production"
	"github.com/imrishuroy/go-order-fulfillment/internal/sales"
	"github.com/imrishuroy/go-order-fulfillment/internal/stock"
	"github.com/shopspring/decimal"
)

// memLedger is the products table: stock levels plus routing flags.
type memLedger struct {
	mu       sync.Mutex
	products map[string]stock.Product
	readErr  error
	adjusted int
}

func newLedger(products ...stock.Product) *memLedger {
	l := &memLedger{products: map[string]stock.Product{}}
	for _, p := range products {
		l.products[p.ProductID] = p
	}
	return l
}

func (l *memLedger) GetStock(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return nil, l.readErr
	}
	out := map[string]decimal.Decimal{}
	for _, id := range ids {
		if p, ok := l.products[id]; ok {
			out[id] = p.Stock
		}
	}
	return out, nil
}

func (l *memLedger) AdjustStock(ctx context.Context, id string, delta decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.products[id]
	if !ok {
		return stock.ErrProductNotFound
	}
	p.Stock = p.Stock.Add(delta)
	l.products[id] = p
	l.adjusted++
	return nil
}

func (l *memLedger) GetProducts(ctx context.Context, ids []string) (map[string]stock.Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := map[string]stock.Product{}
	for _, id := range ids {
		if p, ok := l.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (l *memLedger) stockOf(id string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.products[id].Stock
}

// memOrders stands in for the order writer and store.
type memOrders struct {
	mu         sync.Mutex
	orders     map[string]*orders.Order
	items      map[string][]orders.OrderItem
	failHeader bool
	failItems  bool
	failInsert bool
	seq        int
	onCreate   func()
	// called between the header and the items write
	midCreate func()
	// called between deleting and re-inserting items
	midUpdate func()
}

func newOrders() *memOrders {
	return &memOrders{orders: map[string]*orders.Order{}, items: map[string][]orders.OrderItem{}}
}

func (m *memOrders) Create(ctx context.Context, userID string, h orders.Header, in []orders.ItemInput) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, total, err := orders.BuildItems(in)
	if err != nil {
		return nil, err
	}
	if m.failHeader {
		return nil, fmt.Errorf("%w: %w", orders.ErrHeaderWrite, errors.New("throttled"))
	}
	m.seq++
	o := &orders.Order{
		OrderID:     fmt.Sprintf("order-%d", m.seq),
		OrderNumber: fmt.Sprintf("PED-%d", m.seq),
		ClientID:    h.ClientID,
		UserID:      userID,
		TotalAmount: total,
		Status:      orders.StatusPending,
	}
	m.orders[o.OrderID] = o
	if m.midCreate != nil {
		m.midCreate()
	}
	if err := ctx.Err(); err != nil {
		return o, fmt.Errorf("%w: order %s: put items: %w", orders.ErrItemsWrite, o.OrderID, err)
	}
	if m.failItems {
		return o, fmt.Errorf("%w: order %s: %w", orders.ErrItemsWrite, o.OrderID, errors.New("validation exception"))
	}
	for i := range items {
		items[i].OrderID = o.OrderID
		items[i].ItemID = fmt.Sprintf("%s-item-%d", o.OrderID, i)
	}
	m.items[o.OrderID] = items
	o.Items = items
	if m.onCreate != nil {
		m.onCreate()
	}
	return o, nil
}

func (m *memOrders) Update(ctx context.Context, userID, orderID string, h orders.Header, in []orders.ItemInput) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, total, err := orders.BuildItems(in)
	if err != nil {
		return nil, err
	}
	o, ok := m.orders[orderID]
	if !ok {
		return nil, orders.ErrNotFound
	}
	o.TotalAmount = total
	o.UpdatedBy = userID
	delete(m.items, orderID)
	if m.midUpdate != nil {
		m.midUpdate()
	}
	if err := ctx.Err(); err != nil {
		return o, fmt.Errorf("%w: order %s: %w", orders.ErrItemsIntegrity, orderID, err)
	}
	if m.failInsert {
		return o, fmt.Errorf("%w: order %s", orders.ErrItemsIntegrity, orderID)
	}
	for i := range items {
		items[i].OrderID = orderID
	}
	m.items[orderID] = items
	o.Items = items
	return o, nil
}

func (m *memOrders) Get(ctx context.Context, orderID string) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[orderID], nil
}

func (m *memOrders) ListItems(ctx context.Context, orderID string) ([]orders.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[orderID], nil
}

func (m *memOrders) UpdateStatus(ctx context.Context, orderID, expected, next string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.Status != expected {
		return orders.ErrStatusMismatch
	}
	o.Status = next
	return nil
}

func (m *memOrders) SetAnomaly(ctx context.Context, orderID, anomaly string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return orders.ErrNotFound
	}
	o.Anomaly = anomaly
	return nil
}

type memSales struct {
	mu    sync.Mutex
	sales []sales.Sale
	err   error
}

func (s *memSales) GetByOrder(ctx context.Context, orderID string) (*sales.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sales {
		if s.sales[i].OrderID == orderID {
			return &s.sales[i], nil
		}
	}
	return nil, nil
}

func (s *memSales) CreateSale(ctx context.Context, sale sales.Sale) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.sales = append(s.sales, sale)
	return sale.SaleID, nil
}

type memQueue struct {
	sent []production.Request
	err  error
}

func (q *memQueue) Enqueue(ctx context.Context, req production.Request) error {
	if q.err != nil {
		return q.err
	}
	q.sent = append(q.sent, req)
	return nil
}

func (q *memQueue) Driver() string { return "mem" }

type memAlarms struct {
	raised []string
}

func (a *memAlarms) Anomaly(ctx context.Context, anomaly, orderID string) error {
	a.raised = append(a.raised, anomaly+":"+orderID)
	return nil
}

// countingGate records whether it was consulted.
type countingGate struct {
	answer bool
	calls  int
}

func (g *countingGate) Confirm(ctx context.Context, r *stock.ValidationResult) bool {
	g.calls++
	return g.answer
}
