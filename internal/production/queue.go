package production

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/imrishuroy/go-order-fulfillment/internal/aws"
	"github.com/segmentio/kafka-go"
)

// Enqueuer hands a production request to the production queue. Delivery is
// at-least-once; consumers must tolerate duplicates.
type Enqueuer interface {
	Enqueue(ctx context.Context, req Request) error
	Driver() string
}

// SQSQueue publishes production requests to an SQS queue.
type SQSQueue struct {
	publisher *aws.Publisher
}

// NewSQSQueue returns an SQS-backed Enqueuer.
func NewSQSQueue(publisher *aws.Publisher) *SQSQueue {
	return &SQSQueue{publisher: publisher}
}

func (q *SQSQueue) Enqueue(ctx context.Context, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal production request: %w", err)
	}
	_, err = q.publisher.Send(ctx, string(body), map[string]string{
		"order_id":   req.OrderID,
		"request_id": req.RequestID,
	})
	return err
}

func (q *SQSQueue) Driver() string { return "sqs" }

// Producer is the subset of *kafka.Writer used by KafkaQueue.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaQueue publishes production requests to a Kafka topic keyed by order id,
// so all requests of an order land on one partition.
type KafkaQueue struct {
	producer Producer
}

// NewKafkaWriter builds the writer used in production.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// NewKafkaQueue returns a Kafka-backed Enqueuer.
func NewKafkaQueue(producer Producer) *KafkaQueue {
	return &KafkaQueue{producer: producer}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal production request: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(req.OrderID),
		Value: data,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "request_id", Value: []byte(req.RequestID)},
		},
	}
	if err := q.producer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write production message: %w", err)
	}
	return nil
}

func (q *KafkaQueue) Driver() string { return "kafka" }

// Close flushes and closes the producer.
func (q *KafkaQueue) Close() error {
	return q.producer.Close()
}
