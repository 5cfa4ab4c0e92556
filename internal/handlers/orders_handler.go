package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/imrishuroy/go-order-fulfillment/internal/fulfillment"
	"github.com/imrishuroy/go-order-fulfillment/internal/idempotency"
	"github.com/imrishuroy/go-order-fulfillment/internal/orders"
	"github.com/imrishuroy/go-order-fulfillment/internal/stock"
	"github.com/imrishuroy/go-order-fulfillment/internal/validation"
	log "github.com/sirupsen/logrus"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerUserID         = "X-User-Id"
	headerUserName       = "X-User-Name"
	defaultListLimit     = 50
)

// Workflow is the order submission workflow.
type Workflow interface {
	Validate(ctx context.Context, sub fulfillment.Submission) (*stock.ValidationResult, error)
	Submit(ctx context.Context, actor fulfillment.Actor, sub fulfillment.Submission, gate fulfillment.Gate) *fulfillment.Result
	Update(ctx context.Context, actor fulfillment.Actor, orderID string, sub fulfillment.Submission) (*orders.Order, error)
}

// OrderReader serves the read endpoints.
type OrderReader interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	ListItems(ctx context.Context, orderID string) ([]orders.OrderItem, error)
	List(ctx context.Context, limit int) ([]orders.Order, error)
}

// IdempotencyStore guards submissions against replays.
type IdempotencyStore interface {
	Begin(ctx context.Context, key, fingerprint, userID string) (*idempotency.IdempotencyRecord, bool, error)
	MarkDone(ctx context.Context, key, orderID, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, orderID, note string) error
	Release(ctx context.Context, key string) error
}

// HandlerConfig groups dependencies for the orders handler.
type HandlerConfig struct {
	Workflow    Workflow
	Orders      OrderReader
	Idempotency IdempotencyStore
}

// RegisterOrdersRoutes registers routes for order API.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	h := &ordersHandler{cfg: cfg, v: validation.New(), encode: json.Marshal}
	h.register(r)
}

func (h *ordersHandler) register(r *gin.Engine) {
	r.POST("/orders/validate", h.validate)
	r.POST("/orders", h.create)
	r.PUT("/orders/:id", h.update)
	r.GET("/orders/:id", h.get)
	r.GET("/orders", h.list)
}

type ordersHandler struct {
	cfg    HandlerConfig
	v      *validatorv10.Validate
	encode func(v any) ([]byte, error) // response body stored for replays
}

func actorFrom(c *gin.Context) (fulfillment.Actor, bool) {
	a := fulfillment.Actor{UserID: c.GetHeader(headerUserID), UserName: c.GetHeader(headerUserName)}
	if a.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing_user_id"})
		return a, false
	}
	return a, true
}

func submissionFrom(c *gin.Context, req validation.CreateOrderRequest) (fulfillment.Submission, bool) {
	header, err := req.Header()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "msg": err.Error()})
		return fulfillment.Submission{}, false
	}
	return fulfillment.Submission{Header: header, Items: validation.ItemInputs(req.Items)}, true
}

func (h *ordersHandler) validate(c *gin.Context) {
	var req validation.StockCheckRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	res, err := h.cfg.Workflow.Validate(c.Request.Context(), fulfillment.Submission{Items: validation.ItemInputs(req.Items)})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stock_validation_unavailable", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ordersHandler) create(c *gin.Context) {
	ctx := c.Request.Context()

	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	idempKey := c.GetHeader(headerIdempotencyKey)
	if idempKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_idempotency_key"})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		// BindAndValidate already wrote a 400
		return
	}
	sub, ok := submissionFrom(c, req)
	if !ok {
		return
	}

	rec, created, err := h.cfg.Idempotency.Begin(ctx, idempKey, idempotency.Fingerprint(body), actor.UserID)
	if errors.Is(err, idempotency.ErrFingerprintMismatch) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "idempotency_key_reused"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed", "detail": err.Error()})
		return
	}
	if !created {
		replay(c, rec)
		return
	}

	res := h.cfg.Workflow.Submit(ctx, actor, sub, fulfillment.AcknowledgementGate(req.AcknowledgeShortages))

	// the idempotency record must be settled even if the client went away
	h.settle(context.WithoutCancel(ctx), c, idempKey, res)
}

// settle writes the response and moves the idempotency record to its final state.
func (h *ordersHandler) settle(ctx context.Context, c *gin.Context, key string, res *fulfillment.Result) {
	status := statusFor(res)
	entry := log.WithFields(log.Fields{"idempotency_key": key, "order_id": res.OrderID, "outcome": res.Outcome})

	switch {
	case res.Outcome == fulfillment.OutcomeSuccess || res.Outcome == fulfillment.OutcomeSuccessWithWarnings:
		payload, err := h.encode(res)
		if err != nil {
			// the record is still closed; a replay then answers with the order id only
			entry.WithError(err).Error("could not encode response for idempotency replay")
			payload = nil
		}
		if err := h.cfg.Idempotency.MarkDone(ctx, key, res.OrderID, string(payload), status); err != nil {
			entry.WithError(err).Error("could not mark idempotency record done")
		}
		c.Header("Location", fmt.Sprintf("/orders/%s", res.OrderID))
	case res.Committed():
		// header persisted: a retry would create a second order
		if err := h.cfg.Idempotency.MarkFailed(ctx, key, res.OrderID, res.Error); err != nil {
			entry.WithError(err).Error("could not mark idempotency record failed")
		}
	default:
		// nothing was committed, the client may retry with the same key
		if err := h.cfg.Idempotency.Release(ctx, key); err != nil {
			entry.WithError(err).Warn("could not release idempotency record")
		}
	}
	c.JSON(status, res)
}

func statusFor(res *fulfillment.Result) int {
	switch res.Outcome {
	case fulfillment.OutcomeSuccess, fulfillment.OutcomeSuccessWithWarnings:
		return http.StatusCreated
	case fulfillment.OutcomeAborted:
		return http.StatusConflict
	}
	switch {
	case res.Committed():
		return http.StatusInternalServerError
	case errors.Is(res.Err, stock.ErrValidationUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(res.Err, orders.ErrHeaderWrite):
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

func replay(c *gin.Context, rec *idempotency.IdempotencyRecord) {
	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" {
			c.Data(rec.ResponseStatus, "application/json", []byte(rec.ResponseBody))
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_id": rec.OrderID})
	case idempotency.StatusInProgress:
		c.JSON(http.StatusConflict, gin.H{"error": "request_in_progress"})
	case idempotency.StatusFailed:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "previous_attempt_failed", "order_id": rec.OrderID, "detail": rec.Note})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_idempotency_status"})
	}
}

func (h *ordersHandler) update(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.v); err != nil {
		return
	}
	sub, ok := submissionFrom(c, req)
	if !ok {
		return
	}

	orderID := c.Param("id")
	o, err := h.cfg.Workflow.Update(c.Request.Context(), actor, orderID, sub)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, o)
	case errors.Is(err, orders.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
	case errors.Is(err, orders.ErrItemsIntegrity):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "items_integrity", "order_id": orderID, "anomaly": orders.AnomalyItemsMissing, "detail": err.Error()})
	case errors.Is(err, orders.ErrHeaderWrite):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed", "detail": err.Error()})
	case errors.Is(err, orders.ErrTotalMismatch), errors.Is(err, orders.ErrInvalidItem),
		errors.Is(err, orders.ErrNoItems), errors.Is(err, orders.ErrMissingClient):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_order", "detail": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed", "detail": err.Error()})
	}
}

func (h *ordersHandler) get(c *gin.Context) {
	ctx := c.Request.Context()
	o, err := h.cfg.Orders.Get(ctx, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get_failed", "detail": err.Error()})
		return
	}
	if o == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
		return
	}
	items, err := h.cfg.Orders.ListItems(ctx, o.OrderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get_failed", "detail": err.Error()})
		return
	}
	o.Items = items
	c.JSON(http.StatusOK, o)
}

func (h *ordersHandler) list(c *gin.Context) {
	limit := defaultListLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		limit = n
	}
	out, err := h.cfg.Orders.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": out})
}
