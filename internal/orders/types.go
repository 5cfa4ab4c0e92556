package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses. Transitions belong to the fulfillment workflow and the
// direct-sale promoter.
const (
	StatusPending         = "pending"
	StatusReleasedForSale = "released_for_sale"
)

// Anomalies flagged on an order header for manual reconciliation.
const (
	// AnomalyOrphanedHeader marks a header whose items never got written.
	AnomalyOrphanedHeader = "orphaned_header"
	// AnomalyItemsMissing marks an order whose items were deleted during an
	// update but not re-inserted.
	AnomalyItemsMissing = "items_missing"
)

// DateLayout is the wire and storage layout of delivery deadlines.
const DateLayout = "2006-01-02"

// Order is the order header plus, when loaded, its items.
type Order struct {
	OrderID          string          `json:"order_id"`
	OrderNumber      string          `json:"order_number"`
	ClientID         string          `json:"client_id"`
	ClientName       string          `json:"client_name"`
	SellerID         string          `json:"seller_id,omitempty"`
	SellerName       string          `json:"seller_name,omitempty"`
	UserID           string          `json:"user_id"`
	UpdatedBy        string          `json:"updated_by,omitempty"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	DeliveryDeadline *time.Time      `json:"delivery_deadline,omitempty"`
	PaymentMethod    string          `json:"payment_method,omitempty"`
	PaymentTerm      string          `json:"payment_term,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	Status           string          `json:"status"`
	Anomaly          string          `json:"anomaly,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Items            []OrderItem     `json:"items,omitempty"`
}

// OrderItem is one line of an order. TotalPrice is always Quantity x UnitPrice
// rounded to cents; it is computed by the writer, never taken from callers.
type OrderItem struct {
	ItemID      string          `json:"item_id"`
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Header carries the caller-editable header fields.
type Header struct {
	ClientID         string
	ClientName       string
	SellerID         string
	SellerName       string
	DeliveryDeadline *time.Time
	PaymentMethod    string
	PaymentTerm      string
	Notes            string
}

// ItemInput is a requested order line. ClaimedTotal, when set, is checked
// against the recomputed line total.
type ItemInput struct {
	ProductID    string
	ProductName  string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	ClaimedTotal *decimal.Decimal
}

// LineTotal returns quantity x unit price rounded to cents.
func LineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(2)
}
