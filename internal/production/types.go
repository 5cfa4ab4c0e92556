package production

import (
	"time"

	"github.com/shopspring/decimal"
)

// Request is one production/packaging request: the manufactured lines of an
// order, sent as a single queue message.
type Request struct {
	RequestID        string    `json:"request_id"`
	OrderID          string    `json:"order_id"`
	OrderNumber      string    `json:"order_number"`
	ClientName       string    `json:"client_name"`
	DeliveryDeadline string    `json:"delivery_deadline,omitempty"`
	Items            []Item    `json:"items"`
	CreatedAt        time.Time `json:"created_at"`
}

// Item is a manufactured product line to produce.
type Item struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
}
