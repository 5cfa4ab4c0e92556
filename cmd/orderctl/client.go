package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/imrishuroy/go-order-fulfillment/internal/fulfillment"
	"github.com/imrishuroy/go-order-fulfillment/internal/orders"
	"github.com/imrishuroy/go-order-fulfillment/internal/stock"
	"github.com/imrishuroy/go-order-fulfillment/internal/validation"
)

// apiClient talks to the order fulfillment API.
type apiClient struct {
	http *resty.Client
}

func newAPIClient(baseURL, userID string, timeout time.Duration) *apiClient {
	return &apiClient{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetRetryCount(0).
			SetHeader("X-User-Id", userID),
	}
}

type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (c *apiClient) Validate(ctx context.Context, items []validation.Item) (*stock.ValidationResult, error) {
	var (
		res    stock.ValidationResult
		failed apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(validation.StockCheckRequest{Items: items}).
		SetResult(&res).
		SetError(&failed).
		Post("/orders/validate")
	if err != nil {
		return nil, fmt.Errorf("validate order: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("validate order: %s: %s %s", resp.Status(), failed.Error, failed.Detail)
	}
	return &res, nil
}

// Submit posts the order. Non-2xx responses still carry a Result body, so it
// is decoded either way and the status code returned alongside.
func (c *apiClient) Submit(ctx context.Context, req validation.CreateOrderRequest, idempotencyKey string) (*fulfillment.Result, int, error) {
	var res fulfillment.Result
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Idempotency-Key", idempotencyKey).
		SetBody(req).
		SetResult(&res).
		SetError(&res).
		Post("/orders")
	if err != nil {
		return nil, 0, fmt.Errorf("submit order: %w", err)
	}
	return &res, resp.StatusCode(), nil
}

func (c *apiClient) Get(ctx context.Context, orderID string) (*orders.Order, error) {
	var (
		o      orders.Order
		failed apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", orderID).
		SetResult(&o).
		SetError(&failed).
		Get("/orders/{id}")
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get order %s: %s: %s", orderID, resp.Status(), failed.Error)
	}
	return &o, nil
}
