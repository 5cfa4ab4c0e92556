package stock

import (
	"context"
	"errors"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// mockProducts is an in-memory products table keyed by product_id.
type mockProducts struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	batchErr error
	// throttle holds back this many keys on the first BatchGetItem call.
	throttle   int
	batchCalls int
}

func newMockProducts() *mockProducts {
	return &mockProducts{items: map[string]map[string]types.AttributeValue{}}
}

func (m *mockProducts) add(id, name, stock string, manufactured, directSale bool) {
	m.items[id] = map[string]types.AttributeValue{
		"product_id":      &types.AttributeValueMemberS{Value: id},
		"name":            &types.AttributeValueMemberS{Value: name},
		"stock":           &types.AttributeValueMemberN{Value: stock},
		"is_manufactured": &types.AttributeValueMemberBOOL{Value: manufactured},
		"is_direct_sale":  &types.AttributeValueMemberBOOL{Value: directSale},
	}
}

func (m *mockProducts) stockOf(id string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return decimal.RequireFromString(m.items[id]["stock"].(*types.AttributeValueMemberN).Value)
}

func (m *mockProducts) BatchGetItem(ctx context.Context, in *dyn.BatchGetItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchGetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	out := &dyn.BatchGetItemOutput{Responses: map[string][]map[string]types.AttributeValue{}}
	for table, ka := range in.RequestItems {
		if len(ka.Keys) > 100 {
			return nil, errors.New("too many keys")
		}
		keys := ka.Keys
		if m.throttle > 0 && m.throttle < len(keys) {
			out.UnprocessedKeys = map[string]types.KeysAndAttributes{table: {Keys: keys[len(keys)-m.throttle:]}}
			keys = keys[:len(keys)-m.throttle]
			m.throttle = 0
		}
		for _, k := range keys {
			id := k["product_id"].(*types.AttributeValueMemberS).Value
			if item, ok := m.items[id]; ok {
				out.Responses[table] = append(out.Responses[table], item)
			}
		}
	}
	return out, nil
}

func (m *mockProducts) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := in.Key["product_id"].(*types.AttributeValueMemberS).Value
	item, ok := m.items[id]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	curr := decimal.RequireFromString(item["stock"].(*types.AttributeValueMemberN).Value)
	delta := decimal.RequireFromString(in.ExpressionAttributeValues[":d"].(*types.AttributeValueMemberN).Value)
	if need, ok := in.ExpressionAttributeValues[":need"].(*types.AttributeValueMemberN); ok {
		if curr.LessThan(decimal.RequireFromString(need.Value)) {
			ccf := &types.ConditionalCheckFailedException{}
			if in.ReturnValuesOnConditionCheckFailure == types.ReturnValuesOnConditionCheckFailureAllOld {
				ccf.Item = item
			}
			return nil, ccf
		}
	}
	item["stock"] = &types.AttributeValueMemberN{Value: curr.Add(delta).String()}
	return &dyn.UpdateItemOutput{}, nil
}

func (m *mockProducts) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockProducts) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockProducts) DeleteItem(ctx context.Context, in *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockProducts) Query(ctx context.Context, in *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockProducts) Scan(ctx context.Context, in *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *mockProducts) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	return nil, errors.New("not implemented")
}

// memLedger is a Ledger backed by a map, with per-product failures.
type memLedger struct {
	mu       sync.Mutex
	stock    map[string]decimal.Decimal
	readErr  error
	failAdj  map[string]error
	reads    int
	adjusted []string
}

func (l *memLedger) GetStock(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	if l.readErr != nil {
		return nil, l.readErr
	}
	out := map[string]decimal.Decimal{}
	for _, id := range ids {
		if s, ok := l.stock[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func (l *memLedger) AdjustStock(ctx context.Context, id string, delta decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.failAdj[id]; err != nil {
		return err
	}
	l.stock[id] = l.stock[id].Add(delta)
	l.adjusted = append(l.adjusted, id)
	return nil
}
