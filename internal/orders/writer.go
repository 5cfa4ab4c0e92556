package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var (
	ErrNoItems       = errors.New("order must contain at least one item")
	ErrInvalidItem   = errors.New("invalid order item")
	ErrTotalMismatch = errors.New("item total does not match quantity x unit price")
	ErrMissingClient = errors.New("client is required")

	// ErrHeaderWrite means nothing was persisted.
	ErrHeaderWrite = errors.New("order header write failed")
	// ErrItemsWrite means the header was persisted but its items were not.
	ErrItemsWrite = errors.New("order items write failed after header was persisted")
	// ErrItemsIntegrity means an update deleted the existing items but could
	// not insert the replacement set; the order currently has no items.
	ErrItemsIntegrity = errors.New("order items deleted but replacement insert failed")
)

// cent is the tolerance when comparing caller-claimed totals.
var cent = decimal.New(1, -2)

// Writer creates and replaces orders as two dependent writes: header first,
// then all items as one batch.
type Writer struct {
	store   *Store
	nowFunc func() time.Time
	newID   func() string
}

// NewWriter returns a Writer backed by the given store.
func NewWriter(store *Store) *Writer {
	return &Writer{
		store:   store,
		nowFunc: time.Now,
		newID:   uuid.NewString,
	}
}

// OrderNumber renders the human-readable order number for a creation time.
func OrderNumber(t time.Time) string {
	return "PED-" + strconv.FormatInt(t.UnixMilli(), 10)
}

// BuildItems checks the requested lines and computes each line total
// server-side. The returned items carry no ids yet.
func BuildItems(inputs []ItemInput) ([]OrderItem, decimal.Decimal, error) {
	if len(inputs) == 0 {
		return nil, decimal.Zero, ErrNoItems
	}
	items := make([]OrderItem, 0, len(inputs))
	total := decimal.Zero
	for i, in := range inputs {
		if strings.TrimSpace(in.ProductID) == "" {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d has no product", ErrInvalidItem, i)
		}
		if !in.Quantity.IsPositive() {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d quantity must be greater than zero", ErrInvalidItem, i)
		}
		if in.UnitPrice.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d unit price cannot be negative", ErrInvalidItem, i)
		}
		lineTotal := LineTotal(in.Quantity, in.UnitPrice)
		if in.ClaimedTotal != nil && in.ClaimedTotal.Sub(lineTotal).Abs().GreaterThanOrEqual(cent) {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d (%s) claimed %s, computed %s",
				ErrTotalMismatch, i, in.ProductID, in.ClaimedTotal.StringFixed(2), lineTotal.StringFixed(2))
		}
		items = append(items, OrderItem{
			ProductID:   in.ProductID,
			ProductName: in.ProductName,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			TotalPrice:  lineTotal,
		})
		total = total.Add(lineTotal)
	}
	return items, total, nil
}

func (w *Writer) stamp(orderID string, items []OrderItem, now time.Time) {
	for i := range items {
		items[i].ItemID = w.newID()
		items[i].OrderID = orderID
		// keep insertion order stable when listing
		items[i].CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
	}
}

// Create persists a new order for userID. On ErrItemsWrite the returned order
// is the header that was persisted without items.
func (w *Writer) Create(ctx context.Context, userID string, h Header, inputs []ItemInput) (*Order, error) {
	if strings.TrimSpace(h.ClientID) == "" {
		return nil, ErrMissingClient
	}
	items, total, err := BuildItems(inputs)
	if err != nil {
		return nil, err
	}

	now := w.nowFunc().UTC()
	o := &Order{
		OrderID:          w.newID(),
		OrderNumber:      OrderNumber(now),
		ClientID:         h.ClientID,
		ClientName:       h.ClientName,
		SellerID:         h.SellerID,
		SellerName:       h.SellerName,
		UserID:           userID,
		TotalAmount:      total,
		DeliveryDeadline: h.DeliveryDeadline,
		PaymentMethod:    h.PaymentMethod,
		PaymentTerm:      h.PaymentTerm,
		Notes:            h.Notes,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if o.SellerID == "" {
		o.SellerID = userID
	}

	if err := w.store.PutOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHeaderWrite, err)
	}

	w.stamp(o.OrderID, items, now)
	if err := w.store.PutItems(ctx, items); err != nil {
		log.WithFields(log.Fields{"order_id": o.OrderID, "items": len(items)}).
			WithError(err).Error("order header persisted but items write failed")
		return o, fmt.Errorf("%w: order %s: %w", ErrItemsWrite, o.OrderID, err)
	}

	o.Items = items
	return o, nil
}

// Update overwrites the header of an existing order and replaces all of its
// items: every existing item is deleted, then the new set is inserted.
func (w *Writer) Update(ctx context.Context, userID, orderID string, h Header, inputs []ItemInput) (*Order, error) {
	if strings.TrimSpace(h.ClientID) == "" {
		return nil, ErrMissingClient
	}
	items, total, err := BuildItems(inputs)
	if err != nil {
		return nil, err
	}

	o, err := w.store.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHeaderWrite, err)
	}
	if o == nil {
		return nil, ErrNotFound
	}

	now := w.nowFunc().UTC()
	o.ClientID = h.ClientID
	o.ClientName = h.ClientName
	o.SellerID = h.SellerID
	o.SellerName = h.SellerName
	o.DeliveryDeadline = h.DeliveryDeadline
	o.PaymentMethod = h.PaymentMethod
	o.PaymentTerm = h.PaymentTerm
	o.Notes = h.Notes
	o.TotalAmount = total
	o.UpdatedBy = userID
	o.UpdatedAt = now
	if o.SellerID == "" {
		o.SellerID = userID
	}

	if err := w.store.UpdateHeader(ctx, o); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrHeaderWrite, err)
	}

	removed, err := w.store.DeleteItems(ctx, orderID)
	if err != nil && removed > 0 {
		log.WithFields(log.Fields{"order_id": orderID, "removed": removed}).
			WithError(err).Error("order items partially deleted")
		return o, fmt.Errorf("%w: order %s: %w", ErrItemsIntegrity, orderID, err)
	}
	if err != nil {
		// nothing was deleted, the old items are still in place
		return nil, fmt.Errorf("delete items of order %s: %w", orderID, err)
	}

	w.stamp(orderID, items, now)
	if err := w.store.PutItems(ctx, items); err != nil {
		log.WithFields(log.Fields{"order_id": orderID, "removed": removed, "items": len(items)}).
			WithError(err).Error("order items deleted but replacement insert failed")
		return o, fmt.Errorf("%w: order %s: %w", ErrItemsIntegrity, orderID, err)
	}

	if o.Anomaly != "" {
		if err := w.store.SetAnomaly(ctx, orderID, ""); err != nil {
			log.WithField("order_id", orderID).WithError(err).Warn("could not clear order anomaly")
		} else {
			o.Anomaly = ""
		}
	}

	o.Items = items
	return o, nil
}
