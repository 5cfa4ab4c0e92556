package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/imrishuroy/go-order-fulfillment/internal/fulfillment"
	"github.com/imrishuroy/go-order-fulfillment/internal/stock"
	"github.com/imrishuroy/go-order-fulfillment/internal/validation"
)

var (
	errBlocked  = errors.New("order has products that do not exist")
	errDeclined = errors.New("order not submitted")
	errFailed   = errors.New("order submission failed")
)

type confirmFunc func(ctx context.Context, res *stock.ValidationResult) (bool, error)

// submitOrder validates, asks for confirmation when needed, then submits with
// a fresh idempotency key.
func submitOrder(ctx context.Context, c *apiClient, req validation.CreateOrderRequest, confirm confirmFunc, out io.Writer) (*fulfillment.Result, error) {
	res, err := c.Validate(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	if res.Verdict == stock.HasBlockingErrors {
		fmt.Fprint(out, renderValidation(res))
		for _, msg := range res.BlockingErrors() {
			fmt.Fprintf(out, "error: %s\n", msg)
		}
		return nil, errBlocked
	}
	if res.Verdict != stock.Clear {
		ok, err := confirm(ctx, res)
		if err != nil {
			return nil, fmt.Errorf("confirmation prompt: %w", err)
		}
		if !ok {
			return nil, errDeclined
		}
		req.AcknowledgeShortages = true
	}

	key := uuid.NewString()
	result, status, err := c.Submit(ctx, req, key)
	if err != nil {
		return nil, err
	}
	printResult(out, result, status, key)
	if status != http.StatusCreated {
		return result, errFailed
	}
	return result, nil
}

func printResult(out io.Writer, r *fulfillment.Result, status int, key string) {
	fmt.Fprintf(out, "outcome: %s (HTTP %d, state %s)\n", r.Outcome, status, r.State)
	if r.OrderNumber != "" {
		fmt.Fprintf(out, "order: %s (%s)\n", r.OrderNumber, r.OrderID)
	}
	if r.SaleID != "" {
		fmt.Fprintf(out, "sale: %s\n", r.SaleID)
	}
	if r.ProductionRequestID != "" {
		fmt.Fprintf(out, "production request: %s\n", r.ProductionRequestID)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	if r.Error != "" {
		fmt.Fprintf(out, "error: %s\n", r.Error)
	}
	if r.Orphaned {
		fmt.Fprintf(out, "order %s was saved without its items and flagged for review; do not resubmit (key %s)\n", r.OrderID, key)
	}
}
