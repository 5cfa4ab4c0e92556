package production

import (
	"context"
	"errors"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/go-order-fulfillment/internal/orders"
	"github.com/imrishuroy/go-order-fulfillment/internal/stock"
	"github.com/segmentio/kafka-go"
)

type fakeOrders struct {
	order *orders.Order
	items []orders.OrderItem
	err   error
}

func (f *fakeOrders) Get(ctx context.Context, id string) (*orders.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.order, nil
}

func (f *fakeOrders) ListItems(ctx context.Context, id string) ([]orders.OrderItem, error) {
	return f.items, nil
}

type fakeCatalog map[string]stock.Product

func (c fakeCatalog) GetProducts(ctx context.Context, ids []string) (map[string]stock.Product, error) {
	out := map[string]stock.Product{}
	for _, id := range ids {
		if p, ok := c[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeQueue struct {
	mu   sync.Mutex
	sent []Request
	err  error
}

func (q *fakeQueue) Enqueue(ctx context.Context, req Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.sent = append(q.sent, req)
	return nil
}

func (q *fakeQueue) Driver() string { return "fake" }

type fakeProducer struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (p *fakeProducer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

// mockIntakeTable is a production table keyed by (order_id, product_id).
type mockIntakeTable struct {
	items   map[string]map[string]types.AttributeValue
	failPut error
}

func (m *mockIntakeTable) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	if m.failPut != nil {
		return nil, m.failPut
	}
	k := in.Item["order_id"].(*types.AttributeValueMemberS).Value + "#" +
		in.Item["product_id"].(*types.AttributeValueMemberS).Value
	if _, ok := m.items[k]; ok && in.ConditionExpression != nil {
		return nil, &types.ConditionalCheckFailedException{}
	}
	m.items[k] = in.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockIntakeTable) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockIntakeTable) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockIntakeTable) DeleteItem(ctx context.Context, in *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockIntakeTable) Query(ctx context.Context, in *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockIntakeTable) Scan(ctx context.Context, in *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockIntakeTable) BatchGetItem(ctx context.Context, in *dyn.BatchGetItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchGetItemOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockIntakeTable) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	return nil, errors.New("not implemented")
}
