package orders

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/shopspring/decimal"
)

// orderRecord is the shape persisted in the orders table.
type orderRecord struct {
	OrderID          string                `dynamodbav:"order_id"` // PK
	OrderNumber      string                `dynamodbav:"order_number"`
	ClientID         string                `dynamodbav:"client_id"`
	ClientName       string                `dynamodbav:"client_name"`
	SellerID         string                `dynamodbav:"seller_id,omitempty"`
	SellerName       string                `dynamodbav:"seller_name,omitempty"`
	UserID           string                `dynamodbav:"user_id"`
	UpdatedBy        string                `dynamodbav:"updated_by,omitempty"`
	TotalAmount      attributevalue.Number `dynamodbav:"total_amount"`
	DeliveryDeadline string                `dynamodbav:"delivery_deadline,omitempty"`
	PaymentMethod    string                `dynamodbav:"payment_method,omitempty"`
	PaymentTerm      string                `dynamodbav:"payment_term,omitempty"`
	Notes            string                `dynamodbav:"notes,omitempty"`
	Status           string                `dynamodbav:"status"`
	Anomaly          string                `dynamodbav:"anomaly,omitempty"`
	CreatedAt        time.Time             `dynamodbav:"created_at"`
	UpdatedAt        time.Time             `dynamodbav:"updated_at"`
}

// itemRecord is the shape persisted in the order items table
// (PK order_id, SK item_id).
type itemRecord struct {
	OrderID     string                `dynamodbav:"order_id"`
	ItemID      string                `dynamodbav:"item_id"`
	ProductID   string                `dynamodbav:"product_id"`
	ProductName string                `dynamodbav:"product_name"`
	Quantity    attributevalue.Number `dynamodbav:"quantity"`
	UnitPrice   attributevalue.Number `dynamodbav:"unit_price"`
	TotalPrice  attributevalue.Number `dynamodbav:"total_price"`
	CreatedAt   time.Time             `dynamodbav:"created_at"`
}

func money(d decimal.Decimal) attributevalue.Number {
	return attributevalue.Number(d.StringFixed(2))
}

func number(d decimal.Decimal) attributevalue.Number {
	return attributevalue.Number(d.String())
}

func parseNumber(n attributevalue.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(string(n))
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func toOrderRecord(o *Order) orderRecord {
	return orderRecord{
		OrderID:          o.OrderID,
		OrderNumber:      o.OrderNumber,
		ClientID:         o.ClientID,
		ClientName:       o.ClientName,
		SellerID:         o.SellerID,
		SellerName:       o.SellerName,
		UserID:           o.UserID,
		UpdatedBy:        o.UpdatedBy,
		TotalAmount:      money(o.TotalAmount),
		DeliveryDeadline: formatDate(o.DeliveryDeadline),
		PaymentMethod:    o.PaymentMethod,
		PaymentTerm:      o.PaymentTerm,
		Notes:            o.Notes,
		Status:           o.Status,
		Anomaly:          o.Anomaly,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

func (r orderRecord) toOrder() (*Order, error) {
	total, err := parseNumber(r.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("order %s total_amount: %w", r.OrderID, err)
	}
	deadline, err := parseDate(r.DeliveryDeadline)
	if err != nil {
		return nil, fmt.Errorf("order %s delivery_deadline: %w", r.OrderID, err)
	}
	return &Order{
		OrderID:          r.OrderID,
		OrderNumber:      r.OrderNumber,
		ClientID:         r.ClientID,
		ClientName:       r.ClientName,
		SellerID:         r.SellerID,
		SellerName:       r.SellerName,
		UserID:           r.UserID,
		UpdatedBy:        r.UpdatedBy,
		TotalAmount:      total,
		DeliveryDeadline: deadline,
		PaymentMethod:    r.PaymentMethod,
		PaymentTerm:      r.PaymentTerm,
		Notes:            r.Notes,
		Status:           r.Status,
		Anomaly:          r.Anomaly,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}, nil
}

func toItemRecord(it OrderItem) itemRecord {
	return itemRecord{
		OrderID:     it.OrderID,
		ItemID:      it.ItemID,
		ProductID:   it.ProductID,
		ProductName: it.ProductName,
		Quantity:    number(it.Quantity),
		UnitPrice:   money(it.UnitPrice),
		TotalPrice:  money(it.TotalPrice),
		CreatedAt:   it.CreatedAt,
	}
}

func (r itemRecord) toItem() (OrderItem, error) {
	qty, err := parseNumber(r.Quantity)
	if err != nil {
		return OrderItem{}, fmt.Errorf("item %s quantity: %w", r.ItemID, err)
	}
	price, err := parseNumber(r.UnitPrice)
	if err != nil {
		return OrderItem{}, fmt.Errorf("item %s unit_price: %w", r.ItemID, err)
	}
	total, err := parseNumber(r.TotalPrice)
	if err != nil {
		return OrderItem{}, fmt.Errorf("item %s total_price: %w", r.ItemID, err)
	}
	return OrderItem{
		ItemID:      r.ItemID,
		OrderID:     r.OrderID,
		ProductID:   r.ProductID,
		ProductName: r.ProductName,
		Quantity:    qty,
		UnitPrice:   price,
		TotalPrice:  total,
		CreatedAt:   r.CreatedAt,
	}, nil
}
