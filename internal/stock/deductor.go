package stock

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Deductor decrements stock for a committed order.
type Deductor struct {
	ledger Ledger
}

// NewDeductor returns a Deductor writing to ledger.
func NewDeductor(ledger Ledger) *Deductor {
	return &Deductor{ledger: ledger}
}

// Deduct applies one independent decrement per line. A failed line does not
// stop the others; the result is false if any line failed. Callers must not
// invoke it twice for the same order.
func (d *Deductor) Deduct(ctx context.Context, orderID string, lines []Line) bool {
	ok := true
	for _, l := range lines {
		if err := d.ledger.AdjustStock(ctx, l.ProductID, l.Quantity.Neg()); err != nil {
			ok = false
			log.WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": l.ProductID,
				"quantity":   l.Quantity.String(),
			}).WithError(err).Warn("stock deduction failed")
		}
	}
	return ok
}
