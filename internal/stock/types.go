package stock

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Classification of one requested line against the ledger.
type Classification string

const (
	Sufficient      Classification = "sufficient"
	Insufficient    Classification = "insufficient"
	ProductNotFound Classification = "product_not_found"
)

// Verdict summarises a whole validation.
type Verdict string

const (
	Clear             Verdict = "clear"
	HasWarnings       Verdict = "has_warnings"
	HasBlockingErrors Verdict = "has_blocking_errors"
)

// Line is a requested product quantity.
type Line struct {
	ProductID   string
	ProductName string
	Quantity    decimal.Decimal
}

// LineResult is the classification of one requested line.
type LineResult struct {
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name,omitempty"`
	Requested      decimal.Decimal `json:"requested"`
	Available      decimal.Decimal `json:"available"`
	Classification Classification  `json:"classification"`
}

// ValidationResult is never persisted.
type ValidationResult struct {
	Lines   []LineResult `json:"lines"`
	Verdict Verdict      `json:"verdict"`
}

// Warnings returns one message per insufficient line.
func (r *ValidationResult) Warnings() []string {
	var out []string
	for _, l := range r.Lines {
		if l.Classification == Insufficient {
			out = append(out, fmt.Sprintf("insufficient stock for %s: requested %s, available %s",
				l.label(), l.Requested.String(), l.Available.String()))
		}
	}
	return out
}

// BlockingErrors returns one message per line whose product is unknown.
func (r *ValidationResult) BlockingErrors() []string {
	var out []string
	for _, l := range r.Lines {
		if l.Classification == ProductNotFound {
			out = append(out, fmt.Sprintf("product %s not found", l.label()))
		}
	}
	return out
}

func (l LineResult) label() string {
	if l.ProductName != "" {
		return l.ProductName + " (" + l.ProductID + ")"
	}
	return l.ProductID
}

// Product is a row of the products table.
type Product struct {
	ProductID      string
	Name           string
	Unit           string
	Stock          decimal.Decimal
	IsManufactured bool
	IsDirectSale   bool
}
