package orders

import (
	"context"
	"errors"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is an in-memory stand-in for the orders and items tables.
// It understands only the expressions the store issues.
type mockDynamo struct {
	mu     sync.Mutex
	keys   map[string][]string
	tables map[string]map[string]map[string]types.AttributeValue

	failPut            error
	failUpdate         error
	failTransactPut    error
	failTransactDelete error
	transactCalls      int
	failTransactCall   int // fail only the n-th transact call when set
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{
		keys: map[string][]string{
			"orders":      {"order_id"},
			"order-items": {"order_id", "item_id"},
		},
		tables: map[string]map[string]map[string]types.AttributeValue{
			"orders":      {},
			"order-items": {},
		},
	}
}

func (m *mockDynamo) keyOf(table string, attrs map[string]types.AttributeValue) (string, error) {
	var parts []string
	for _, k := range m.keys[table] {
		v, ok := attrs[k].(*types.AttributeValueMemberS)
		if !ok {
			return "", errors.New("missing key attribute " + k)
		}
		parts = append(parts, v.Value)
	}
	return strings.Join(parts, "#"), nil
}

func (m *mockDynamo) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return nil, m.failPut
	}
	k, err := m.keyOf(*in.TableName, in.Item)
	if err != nil {
		return nil, err
	}
	if in.ConditionExpression != nil && strings.HasPrefix(*in.ConditionExpression, "attribute_not_exists") {
		if _, exists := m.tables[*in.TableName][k]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.tables[*in.TableName][k] = copyItem(in.Item)
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, err := m.keyOf(*in.TableName, in.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.tables[*in.TableName][k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate != nil {
		return nil, m.failUpdate
	}
	table := *in.TableName
	k, err := m.keyOf(table, in.Key)
	if err != nil {
		return nil, err
	}
	item, exists := m.tables[table][k]

	if in.ConditionExpression != nil {
		switch cond := *in.ConditionExpression; {
		case strings.HasPrefix(cond, "attribute_exists"):
			if !exists {
				return nil, &types.ConditionalCheckFailedException{}
			}
		case cond == "#s = :expected":
			curr, ok := item["status"].(*types.AttributeValueMemberS)
			expected := in.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberS).Value
			if !exists || !ok || curr.Value != expected {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}
	if !exists {
		item = copyItem(in.Key)
	}

	expr := *in.UpdateExpression
	setPart, removePart := expr, ""
	if i := strings.Index(expr, " REMOVE "); i >= 0 {
		setPart, removePart = expr[:i], expr[i+len(" REMOVE "):]
	}
	setPart = strings.TrimPrefix(setPart, "SET ")
	for _, assign := range strings.Split(setPart, ", ") {
		lr := strings.SplitN(assign, " = ", 2)
		if len(lr) != 2 {
			continue
		}
		name := lr[0]
		if strings.HasPrefix(name, "#") {
			name = in.ExpressionAttributeNames[name]
		}
		item[name] = in.ExpressionAttributeValues[lr[1]]
	}
	for _, name := range strings.Split(removePart, ", ") {
		if name != "" {
			delete(item, name)
		}
	}
	m.tables[table][k] = item
	return &dyn.UpdateItemOutput{Attributes: copyItem(item)}, nil
}

func (m *mockDynamo) DeleteItem(ctx context.Context, in *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, err := m.keyOf(*in.TableName, in.Key)
	if err != nil {
		return nil, err
	}
	delete(m.tables[*in.TableName], k)
	return &dyn.DeleteItemOutput{}, nil
}

func (m *mockDynamo) Query(ctx context.Context, in *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := in.ExpressionAttributeValues[":oid"].(*types.AttributeValueMemberS).Value
	var items []map[string]types.AttributeValue
	for _, item := range m.tables[*in.TableName] {
		if v, ok := item["order_id"].(*types.AttributeValueMemberS); ok && v.Value == want {
			items = append(items, copyItem(item))
		}
	}
	return &dyn.QueryOutput{Items: items}, nil
}

func (m *mockDynamo) Scan(ctx context.Context, in *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []map[string]types.AttributeValue
	for _, item := range m.tables[*in.TableName] {
		items = append(items, copyItem(item))
	}
	return &dyn.ScanOutput{Items: items}, nil
}

func (m *mockDynamo) BatchGetItem(ctx context.Context, in *dyn.BatchGetItemInput, optFns ...func(*dyn.Options)) (*dyn.BatchGetItemOutput, error) {
	return &dyn.BatchGetItemOutput{}, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactCalls++
	if m.failTransactCall > 0 && m.transactCalls == m.failTransactCall {
		return nil, errors.New("transaction canceled")
	}
	for _, it := range in.TransactItems {
		if it.Put != nil && m.failTransactPut != nil {
			return nil, m.failTransactPut
		}
		if it.Delete != nil && m.failTransactDelete != nil {
			return nil, m.failTransactDelete
		}
	}
	for _, it := range in.TransactItems {
		switch {
		case it.Put != nil:
			k, err := m.keyOf(*it.Put.TableName, it.Put.Item)
			if err != nil {
				return nil, err
			}
			m.tables[*it.Put.TableName][k] = copyItem(it.Put.Item)
		case it.Delete != nil:
			k, err := m.keyOf(*it.Delete.TableName, it.Delete.Key)
			if err != nil {
				return nil, err
			}
			delete(m.tables[*it.Delete.TableName], k)
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func copyItem(in map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
