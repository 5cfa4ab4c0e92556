package production

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/imrishuroy/go-order-fulfillment/internal/metrics"
	"github.com/imrishuroy/go-order-fulfillment/internal/orders"
	"github.com/imrishuroy/go-order-fulfillment/internal/stock"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// ErrOrderNotFound is returned when the order to dispatch does not exist.
var ErrOrderNotFound = errors.New("order to dispatch not found")

// OrderReader loads a committed order and its items.
type OrderReader interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	ListItems(ctx context.Context, orderID string) ([]orders.OrderItem, error)
}

// Dispatcher routes the manufactured lines of an order to the production queue.
type Dispatcher struct {
	orders  OrderReader
	catalog stock.Catalog
	queue   Enqueuer
	breaker *Breaker
	newID   func() string
	nowFunc func() time.Time
}

// NewDispatcher wires a dispatcher. All enqueues go through breaker.
func NewDispatcher(orders OrderReader, catalog stock.Catalog, queue Enqueuer, breaker *Breaker) *Dispatcher {
	return &Dispatcher{
		orders:  orders,
		catalog: catalog,
		queue:   queue,
		breaker: breaker,
		newID:   uuid.NewString,
		nowFunc: time.Now,
	}
}

// Dispatch enqueues one production request holding every manufactured line of
// the order. An order without manufactured lines enqueues nothing. Returns
// the request, or nil when nothing was enqueued.
func (d *Dispatcher) Dispatch(ctx context.Context, orderID string) (*Request, error) {
	o, err := d.orders.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if o == nil {
		return nil, ErrOrderNotFound
	}
	items, err := d.orders.ListItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := d.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	// merge lines of the same product, keeping first-seen order
	quantities := map[string]decimal.Decimal{}
	var lines []Item
	for _, it := range items {
		if !products[it.ProductID].IsManufactured {
			continue
		}
		if _, seen := quantities[it.ProductID]; !seen {
			lines = append(lines, Item{ProductID: it.ProductID, ProductName: it.ProductName})
		}
		quantities[it.ProductID] = quantities[it.ProductID].Add(it.Quantity)
	}
	if len(lines) == 0 {
		log.WithField("order_id", orderID).Debug("no manufactured items to dispatch")
		return nil, nil
	}
	for i := range lines {
		lines[i].Quantity = quantities[lines[i].ProductID]
	}

	req := Request{
		RequestID:   d.newID(),
		OrderID:     o.OrderID,
		OrderNumber: o.OrderNumber,
		ClientName:  o.ClientName,
		Items:       lines,
		CreatedAt:   d.nowFunc().UTC(),
	}
	if o.DeliveryDeadline != nil {
		req.DeliveryDeadline = o.DeliveryDeadline.Format(orders.DateLayout)
	}

	err = d.breaker.Do(func() error {
		return d.queue.Enqueue(ctx, req)
	})
	if err != nil {
		log.WithFields(log.Fields{"order_id": orderID, "breaker": d.breaker.State()}).
			WithError(err).Debug("production enqueue refused")
		return nil, fmt.Errorf("enqueue production request: %w", err)
	}

	metrics.ProductionEnqueuedTotal.WithLabelValues(d.queue.Driver()).Inc()
	log.WithFields(log.Fields{
		"order_id":   orderID,
		"request_id": req.RequestID,
		"items":      len(lines),
		"driver":     d.queue.Driver(),
	}).Info("production request enqueued")
	return &req, nil
}
