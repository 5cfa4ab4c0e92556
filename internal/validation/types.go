package validation

import (
	"fmt"
	"time"

	"github.com/imrishuroy/go-order-fulfillment/internal/orders"
	"github.com/shopspring/decimal"
)

// Item represents a single requested order line.
type Item struct {
	ProductID   string           `json:"product_id" validate:"required"`
	ProductName string           `json:"product_name" validate:"max=200"`
	Quantity    decimal.Decimal  `json:"quantity" validate:"gt=0"`    // fractional quantities allowed
	UnitPrice   decimal.Decimal  `json:"unit_price" validate:"gte=0"` // price per unit
	TotalPrice  *decimal.Decimal `json:"total_price,omitempty"`       // optional, checked against quantity x unit_price
}

// CreateOrderRequest is the payload for POST /orders and PUT /orders/:id
type CreateOrderRequest struct {
	ClientID             string           `json:"client_id" validate:"required"`
	ClientName           string           `json:"client_name" validate:"max=200"`
	SellerID             string           `json:"seller_id,omitempty"`
	SellerName           string           `json:"seller_name,omitempty"`
	DeliveryDeadline     string           `json:"delivery_deadline,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PaymentMethod        string           `json:"payment_method,omitempty" validate:"max=64"`
	PaymentTerm          string           `json:"payment_term,omitempty" validate:"max=64"`
	Notes                string           `json:"notes,omitempty" validate:"max=2000"`
	Items                []Item           `json:"items" validate:"required,min=1,dive"` // at least one item
	TotalAmount          *decimal.Decimal `json:"total_amount,omitempty"`               // total the client claims
	AcknowledgeShortages bool             `json:"acknowledge_shortages"`
}

// StockCheckRequest is the payload for POST /orders/validate
type StockCheckRequest struct {
	Items []Item `json:"items" validate:"required,min=1,dive"`
}

// Header converts the request into order header fields.
func (r CreateOrderRequest) Header() (orders.Header, error) {
	h := orders.Header{
		ClientID:      r.ClientID,
		ClientName:    r.ClientName,
		SellerID:      r.SellerID,
		SellerName:    r.SellerName,
		PaymentMethod: r.PaymentMethod,
		PaymentTerm:   r.PaymentTerm,
		Notes:         r.Notes,
	}
	if r.DeliveryDeadline != "" {
		t, err := time.Parse(orders.DateLayout, r.DeliveryDeadline)
		if err != nil {
			return orders.Header{}, fmt.Errorf("parse delivery_deadline: %w", err)
		}
		h.DeliveryDeadline = &t
	}
	return h, nil
}

// ItemInputs converts the requested lines.
func ItemInputs(items []Item) []orders.ItemInput {
	out := make([]orders.ItemInput, 0, len(items))
	for _, it := range items {
		out = append(out, orders.ItemInput{
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			ClaimedTotal: it.TotalPrice,
		})
	}
	return out
}
