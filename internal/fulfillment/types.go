package fulfillment

import (
	"context"

	"github.com/imrishuroy/go-order-fulfillment/internal/orders"
	"github.com/imrishuroy/go-order-fulfillment/internal/stock"
)

// State of a submission. Finalized, Promoted, Aborted and Failed are terminal.
type State string

const (
	StateDraft         State = "draft"
	StateValidated     State = "validated"
	StateCreated       State = "created"
	StateStockAdjusted State = "stock_adjusted"
	StateDispatched    State = "dispatched"
	StatePromoted      State = "promoted"
	StateFinalized     State = "finalized"
	StateAborted       State = "aborted"
	StateFailed        State = "failed"
)

// Outcome is what the caller is told.
type Outcome string

const (
	OutcomeSuccess             Outcome = "success"
	OutcomeSuccessWithWarnings Outcome = "success_with_warnings"
	OutcomeAborted             Outcome = "aborted"
	OutcomeFailed              Outcome = "failed"
)

// Actor is the acting identity. It is always passed explicitly.
type Actor struct {
	UserID   string
	UserName string
}

// Submission is an order as entered by the user.
type Submission struct {
	Header orders.Header
	Items  []orders.ItemInput
}

// Lines returns the stock lines requested by the submission.
func (s Submission) Lines() []stock.Line {
	out := make([]stock.Line, 0, len(s.Items))
	for _, it := range s.Items {
		out = append(out, stock.Line{ProductID: it.ProductID, ProductName: it.ProductName, Quantity: it.Quantity})
	}
	return out
}

// Result reports how a submission ended.
type Result struct {
	State               State                   `json:"state"`
	Outcome             Outcome                 `json:"outcome"`
	OrderID             string                  `json:"order_id,omitempty"`
	OrderNumber         string                  `json:"order_number,omitempty"`
	SaleID              string                  `json:"sale_id,omitempty"`
	ProductionRequestID string                  `json:"production_request_id,omitempty"`
	Warnings            []string                `json:"warnings,omitempty"`
	Error               string                  `json:"error,omitempty"`
	Validation          *stock.ValidationResult `json:"validation,omitempty"`
	// Orphaned is set when a header was committed without its items.
	Orphaned bool `json:"orphaned,omitempty"`

	Err error `json:"-"`
}

// Committed reports whether an order header was persisted.
func (r *Result) Committed() bool {
	return r.OrderID != ""
}

// Gate asks the user to confirm a non-clear validation.
type Gate interface {
	Confirm(ctx context.Context, result *stock.ValidationResult) bool
}

// GateFunc adapts a function to Gate.
type GateFunc func(ctx context.Context, result *stock.ValidationResult) bool

func (f GateFunc) Confirm(ctx context.Context, result *stock.ValidationResult) bool {
	return f(ctx, result)
}

// AcknowledgementGate confirms when the validation is clear or the caller
// acknowledged shortages up front.
type AcknowledgementGate bool

func (a AcknowledgementGate) Confirm(ctx context.Context, result *stock.ValidationResult) bool {
	if result.Verdict == stock.Clear {
		return true
	}
	return bool(a) && ctx.Err() == nil
}
