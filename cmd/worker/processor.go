package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/imrishuroy/go-order-fulfillment/internal/production"
	log "github.com/sirupsen/logrus"
)

// IntakeRecorder stores received production requests.
type IntakeRecorder interface {
	Record(ctx context.Context, req production.Request) (int, error)
}

// Processor consumes production queue messages. Delivery is at-least-once, so
// recording must be idempotent per (order, product).
type Processor struct {
	intake IntakeRecorder
}

// NewProcessor creates a new worker processor.
func NewProcessor(intake IntakeRecorder) *Processor {
	return &Processor{intake: intake}
}

// Handle processes an SQS batch. Failed messages are reported individually so
// only they are redelivered; the rest of the batch is deleted.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			log.WithError(err).WithField("message_id", rec.MessageId).Error("production intake failed")
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var req production.Request
	if err := json.Unmarshal([]byte(rec.Body), &req); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if req.OrderID == "" || len(req.Items) == 0 {
		return fmt.Errorf("production request %q has no order or items", req.RequestID)
	}

	created, err := p.intake.Record(ctx, req)
	if err != nil {
		return fmt.Errorf("record production request for order %s: %w", req.OrderID, err)
	}

	entry := log.WithFields(log.Fields{
		"order_id":   req.OrderID,
		"request_id": req.RequestID,
		"items":      len(req.Items),
		"created":    created,
	})
	if created == 0 {
		entry.Info("duplicate production request ignored")
		return nil
	}
	entry.Info("production request recorded")
	return nil
}
