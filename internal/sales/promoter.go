package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/imrishuroy/go-order-fulfillment/internal/orders"
	"github.com/imrishuroy/go-order-fulfillment/internal/stock"
	log "github.com/sirupsen/logrus"
)

// ErrReleaseFailed means the sale was created but the order status could not
// be moved to released_for_sale.
var ErrReleaseFailed = errors.New("sale created but order release failed")

// SaleCreator persists a sale.
type SaleCreator interface {
	CreateSale(ctx context.Context, sale Sale) (string, error)
	GetByOrder(ctx context.Context, orderID string) (*Sale, error)
}

// StatusUpdater performs a conditional order status transition.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, orderID, expectedStatus, newStatus string) error
}

// Promoter turns orders containing direct-sale products into sales.
type Promoter struct {
	catalog stock.Catalog
	sales   SaleCreator
	orders  StatusUpdater
	newID   func() string
	nowFunc func() time.Time
}

// NewPromoter wires a Promoter.
func NewPromoter(catalog stock.Catalog, sales SaleCreator, orders StatusUpdater) *Promoter {
	return &Promoter{
		catalog: catalog,
		sales:   sales,
		orders:  orders,
		newID:   uuid.NewString,
		nowFunc: time.Now,
	}
}

// Promote creates a pending sale for the order and releases it for sale, but
// only when at least one item is a direct-sale product. An empty id with a nil
// error means there was nothing to promote. When the sale insert fails the
// order status is left untouched. On ErrReleaseFailed the sale id is still
// returned.
func (p *Promoter) Promote(ctx context.Context, order *orders.Order, items []orders.OrderItem) (string, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := p.catalog.GetProducts(ctx, ids)
	if err != nil {
		return "", fmt.Errorf("load products: %w", err)
	}
	direct := false
	for _, it := range items {
		if products[it.ProductID].IsDirectSale {
			direct = true
			break
		}
	}
	if !direct {
		return "", nil
	}

	saleID, err := p.sales.CreateSale(ctx, Sale{
		SaleID:      p.newID(),
		OrderID:     order.OrderID,
		UserID:      order.UserID,
		ClientID:    order.ClientID,
		ClientName:  order.ClientName,
		TotalAmount: order.TotalAmount,
		Status:      StatusPending,
		CreatedAt:   p.nowFunc().UTC(),
	})
	if errors.Is(err, ErrSaleExists) {
		// an earlier promotion got as far as the sale; finish its release
		saleID, err = p.existingSale(ctx, order.OrderID)
	}
	if err != nil {
		return "", fmt.Errorf("create sale: %w", err)
	}

	if err := p.orders.UpdateStatus(ctx, order.OrderID, orders.StatusPending, orders.StatusReleasedForSale); err != nil {
		log.WithFields(log.Fields{"order_id": order.OrderID, "sale_id": saleID}).
			WithError(err).Error("sale created but order not released")
		return saleID, fmt.Errorf("%w: %w", ErrReleaseFailed, err)
	}
	order.Status = orders.StatusReleasedForSale

	log.WithFields(log.Fields{"order_id": order.OrderID, "sale_id": saleID}).Info("order released for sale")
	return saleID, nil
}

func (p *Promoter) existingSale(ctx context.Context, orderID string) (string, error) {
	sale, err := p.sales.GetByOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if sale == nil {
		return "", ErrSaleExists
	}
	log.WithFields(log.Fields{"order_id": orderID, "sale_id": sale.SaleID}).Info("reusing existing sale")
	return sale.SaleID, nil
}
