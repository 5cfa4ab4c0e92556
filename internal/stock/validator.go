package stock

import (
	"context"
	"errors"
	"fmt"
)

// ErrValidationUnavailable means the ledger could not be read. A submission
// must never proceed as if stock were clear.
var ErrValidationUnavailable = errors.New("stock validation unavailable")

// Validator classifies requested lines against the ledger. It never writes.
type Validator struct {
	ledger Ledger
}

// NewValidator returns a Validator reading from ledger.
func NewValidator(ledger Ledger) *Validator {
	return &Validator{ledger: ledger}
}

// Validate reads the stock of every distinct product once and classifies each
// line in request order. Lines of the same product are classified
// independently against the same available figure.
func (v *Validator) Validate(ctx context.Context, lines []Line) (*ValidationResult, error) {
	res := &ValidationResult{Lines: make([]LineResult, 0, len(lines)), Verdict: Clear}
	if len(lines) == 0 {
		return res, nil
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	available, err := v.ledger.GetStock(ctx, distinct(ids))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationUnavailable, err)
	}

	var warnings, blocking bool
	for _, l := range lines {
		lr := LineResult{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Requested:   l.Quantity,
		}
		stock, ok := available[l.ProductID]
		switch {
		case !ok:
			lr.Classification = ProductNotFound
			blocking = true
		case l.Quantity.GreaterThan(stock):
			lr.Available = stock
			lr.Classification = Insufficient
			warnings = true
		default:
			lr.Available = stock
			lr.Classification = Sufficient
		}
		res.Lines = append(res.Lines, lr)
	}

	switch {
	case blocking:
		res.Verdict = HasBlockingErrors
	case warnings:
		res.Verdict = HasWarnings
	}
	return res, nil
}
