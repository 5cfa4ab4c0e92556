package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/imrishuroy/go-order-fulfillment/internal/metrics"
	"github.com/imrishuroy/go-order-fulfillment/internal/orders"
	"github.com/imrishuroy/go-order-fulfillment/internal/production"
	"github.com/imrishuroy/go-order-fulfillment/internal/stock"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrCancelled is reported when the caller went away before the order was
// committed.
var ErrCancelled = errors.New("submission cancelled before commit")

// Validator classifies requested lines against stock.
type Validator interface {
	Validate(ctx context.Context, lines []stock.Line) (*stock.ValidationResult, error)
}

// OrderWriter persists orders.
type OrderWriter interface {
	Create(ctx context.Context, userID string, h orders.Header, items []orders.ItemInput) (*orders.Order, error)
	Update(ctx context.Context, userID, orderID string, h orders.Header, items []orders.ItemInput) (*orders.Order, error)
}

// Deductor decrements stock for a committed order.
type Deductor interface {
	Deduct(ctx context.Context, orderID string, lines []stock.Line) bool
}

// Dispatcher routes manufactured lines to production.
type Dispatcher interface {
	Dispatch(ctx context.Context, orderID string) (*production.Request, error)
}

// Promoter creates a sale for direct-sale orders.
type Promoter interface {
	Promote(ctx context.Context, order *orders.Order, items []orders.OrderItem) (string, error)
}

// Orchestrator runs the submission workflow. Every step before the order
// header is written can fail the submission; every step after it can only
// add warnings.
type Orchestrator struct {
	validator  Validator
	writer     OrderWriter
	deductor   Deductor
	dispatcher Dispatcher
	promoter   Promoter
	anomalies  *AnomalyRecorder
	tracer     trace.Tracer
}

// NewOrchestrator wires the workflow.
func NewOrchestrator(v Validator, w OrderWriter, d Deductor, disp Dispatcher, p Promoter, anomalies *AnomalyRecorder) *Orchestrator {
	return &Orchestrator{
		validator:  v,
		writer:     w,
		deductor:   d,
		dispatcher: disp,
		promoter:   p,
		anomalies:  anomalies,
		tracer:     otel.Tracer("fulfillment"),
	}
}

// Validate runs the stock check alone, without side effects.
func (o *Orchestrator) Validate(ctx context.Context, sub Submission) (*stock.ValidationResult, error) {
	ctx, span := o.tracer.Start(ctx, "fulfillment.validate")
	defer span.End()

	res, err := o.validator.Validate(ctx, sub.Lines())
	if err != nil {
		spanError(span, err)
		return nil, err
	}
	metrics.StockValidations.WithLabelValues(string(res.Verdict)).Inc()
	span.SetAttributes(attribute.String("verdict", string(res.Verdict)))
	return res, nil
}

// Submit runs one submission to a terminal state. The caller's context is
// honoured until the gate; from the order write onwards the remaining steps
// run to completion regardless.
func (o *Orchestrator) Submit(ctx context.Context, actor Actor, sub Submission, gate Gate) *Result {
	ctx, span := o.tracer.Start(ctx, "fulfillment.submit", trace.WithAttributes(attribute.String("user_id", actor.UserID)))
	defer span.End()

	res := o.submit(ctx, actor, sub, gate)

	span.SetAttributes(
		attribute.String("state", string(res.State)),
		attribute.String("outcome", string(res.Outcome)),
		attribute.String("order_id", res.OrderID),
	)
	if res.Outcome == OutcomeFailed {
		span.SetStatus(codes.Error, res.Error)
	}
	metrics.SubmissionsTotal.WithLabelValues(string(res.Outcome)).Inc()
	log.WithFields(log.Fields{
		"user_id":  actor.UserID,
		"order_id": res.OrderID,
		"state":    res.State,
		"outcome":  res.Outcome,
		"warnings": len(res.Warnings),
	}).Info("order submission finished")
	return res
}

func (o *Orchestrator) submit(ctx context.Context, actor Actor, sub Submission, gate Gate) *Result {
	res := &Result{State: StateDraft}

	// reject malformed lines before touching the ledger
	if _, _, err := orders.BuildItems(sub.Items); err != nil {
		return res.fail(err)
	}
	if strings.TrimSpace(sub.Header.ClientID) == "" {
		return res.fail(orders.ErrMissingClient)
	}

	validation, err := o.Validate(ctx, sub)
	if err != nil {
		return res.fail(err)
	}
	res.Validation = validation
	res.State = StateValidated

	if validation.Verdict == stock.HasBlockingErrors {
		return res.fail(errors.New(strings.Join(validation.BlockingErrors(), "; ")))
	}
	if validation.Verdict != stock.Clear {
		if !gate.Confirm(ctx, validation) {
			res.State = StateAborted
			res.Outcome = OutcomeAborted
			return res
		}
		res.Warnings = append(res.Warnings, validation.Warnings()...)
	}
	if ctx.Err() != nil {
		return res.fail(ErrCancelled)
	}

	// point of no retraction: once the writer starts, the workflow runs to a
	// terminal state whatever the caller does
	ctx = context.WithoutCancel(ctx)

	order, err := o.create(ctx, actor, sub)
	if order != nil {
		res.OrderID = order.OrderID
		res.OrderNumber = order.OrderNumber
	}
	if err != nil {
		if errors.Is(err, orders.ErrItemsWrite) && order != nil {
			res.Orphaned = true
			o.anomalies.Record(ctx, order.OrderID, orders.AnomalyOrphanedHeader)
		}
		return res.fail(err)
	}
	res.State = StateCreated

	if !o.deduct(ctx, order.OrderID, sub.Lines()) {
		res.warn("stock", fmt.Sprintf("stock deduction failed for one or more products of order %s", order.OrderNumber))
	}
	res.State = StateStockAdjusted

	if req, err := o.dispatch(ctx, order.OrderID); err != nil {
		res.warn("dispatch", fmt.Sprintf("production dispatch failed: %v", err))
	} else if req != nil {
		res.ProductionRequestID = req.RequestID
	}
	res.State = StateDispatched

	saleID, err := o.promote(ctx, order)
	res.SaleID = saleID
	switch {
	case err != nil:
		res.warn("promote", fmt.Sprintf("direct-sale promotion failed: %v", err))
		res.State = StateFinalized
	case saleID != "":
		res.State = StatePromoted
	default:
		res.State = StateFinalized
	}

	res.Outcome = OutcomeSuccess
	if len(res.Warnings) > 0 {
		res.Outcome = OutcomeSuccessWithWarnings
	}
	return res
}

func (o *Orchestrator) create(ctx context.Context, actor Actor, sub Submission) (*orders.Order, error) {
	ctx, span := o.tracer.Start(ctx, "fulfillment.create")
	defer span.End()

	order, err := o.writer.Create(ctx, actor.UserID, sub.Header, sub.Items)
	if err != nil {
		spanError(span, err)
	}
	if order != nil {
		span.SetAttributes(attribute.String("order_id", order.OrderID))
	}
	return order, err
}

func (o *Orchestrator) deduct(ctx context.Context, orderID string, lines []stock.Line) bool {
	ctx, span := o.tracer.Start(ctx, "fulfillment.deduct", trace.WithAttributes(attribute.String("order_id", orderID)))
	defer span.End()

	ok := o.deductor.Deduct(ctx, orderID, lines)
	if !ok {
		span.SetStatus(codes.Error, "partial stock deduction")
	}
	return ok
}

func (o *Orchestrator) dispatch(ctx context.Context, orderID string) (*production.Request, error) {
	ctx, span := o.tracer.Start(ctx, "fulfillment.dispatch", trace.WithAttributes(attribute.String("order_id", orderID)))
	defer span.End()

	req, err := o.dispatcher.Dispatch(ctx, orderID)
	if err != nil {
		spanError(span, err)
	}
	return req, err
}

func (o *Orchestrator) promote(ctx context.Context, order *orders.Order) (string, error) {
	ctx, span := o.tracer.Start(ctx, "fulfillment.promote", trace.WithAttributes(attribute.String("order_id", order.OrderID)))
	defer span.End()

	saleID, err := o.promoter.Promote(ctx, order, order.Items)
	if err != nil {
		spanError(span, err)
	}
	return saleID, err
}

// Update replaces the header and items of an existing order. When the items
// were deleted but not re-inserted the order is flagged items_missing.
func (o *Orchestrator) Update(ctx context.Context, actor Actor, orderID string, sub Submission) (*orders.Order, error) {
	// a replace interrupted between delete and insert would leave the order empty
	ctx = context.WithoutCancel(ctx)
	ctx, span := o.tracer.Start(ctx, "fulfillment.update", trace.WithAttributes(attribute.String("order_id", orderID)))
	defer span.End()

	order, err := o.writer.Update(ctx, actor.UserID, orderID, sub.Header, sub.Items)
	if err != nil {
		spanError(span, err)
		if errors.Is(err, orders.ErrItemsIntegrity) {
			o.anomalies.Record(ctx, orderID, orders.AnomalyItemsMissing)
		}
		return nil, err
	}
	log.WithFields(log.Fields{"order_id": orderID, "user_id": actor.UserID, "items": len(order.Items)}).Info("order updated")
	return order, nil
}

func (r *Result) fail(err error) *Result {
	r.State = StateFailed
	r.Outcome = OutcomeFailed
	r.Error = err.Error()
	r.Err = err
	return r
}

func (r *Result) warn(step, msg string) {
	metrics.StepWarningsTotal.WithLabelValues(step).Inc()
	log.WithFields(log.Fields{"order_id": r.OrderID, "step": step}).Warn(msg)
	r.Warnings = append(r.Warnings, msg)
}

func spanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
