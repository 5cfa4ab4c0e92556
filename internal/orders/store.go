package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/go-order-fulfillment/internal/aws"
)

// maxTransactItems is the DynamoDB limit of actions per TransactWriteItems call.
const maxTransactItems = 100

var (
	// ErrStatusMismatch is returned when a conditional status transition fails.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
	// ErrNotFound is returned when the order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrAlreadyExists is returned when an order id is reused.
	ErrAlreadyExists = errors.New("order already exists")
)

// Store encapsulates operations on the orders and order items tables.
type Store struct {
	client     aws.DynamoDBAPI
	tableName  string
	itemsTable string
	nowFunc    func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName, itemsTable string) *Store {
	return &Store{
		client:     client,
		tableName:  tableName,
		itemsTable: itemsTable,
		nowFunc:    time.Now,
	}
}

func orderKey(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
}

// PutOrder writes a new order header. Items are written separately.
func (s *Store) PutOrder(ctx context.Context, o *Order) error {
	item, err := attributevalue.MarshalMap(toOrderRecord(o))
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(order_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("put order: %w", err)
	}
	return nil
}

// Get fetches an order header by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            orderKey(orderID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec orderRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return rec.toOrder()
}

// List returns up to limit order headers, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Order, error) {
	var (
		out   []Order
		start map[string]types.AttributeValue
	)
	for {
		page, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:         &s.tableName,
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		var recs []orderRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		for _, r := range recs {
			o, err := r.toOrder()
			if err != nil {
				return nil, err
			}
			out = append(out, *o)
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		start = page.LastEvaluatedKey
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateHeader overwrites the editable header fields and the total of an
// existing order. Returns ErrNotFound if the order does not exist.
func (s *Store) UpdateHeader(ctx context.Context, o *Order) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key:       orderKey(o.OrderID),
		UpdateExpression: awsString("SET client_id = :cid, client_name = :cn, seller_id = :sid, seller_name = :sn, " +
			"total_amount = :ta, delivery_deadline = :dd, payment_method = :pm, payment_term = :pt, notes = :n, " +
			"updated_by = :ub, updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: o.ClientID},
			":cn":  &types.AttributeValueMemberS{Value: o.ClientName},
			":sid": &types.AttributeValueMemberS{Value: o.SellerID},
			":sn":  &types.AttributeValueMemberS{Value: o.SellerName},
			":ta":  &types.AttributeValueMemberN{Value: o.TotalAmount.StringFixed(2)},
			":dd":  &types.AttributeValueMemberS{Value: formatDate(o.DeliveryDeadline)},
			":pm":  &types.AttributeValueMemberS{Value: o.PaymentMethod},
			":pt":  &types.AttributeValueMemberS{Value: o.PaymentTerm},
			":n":   &types.AttributeValueMemberS{Value: o.Notes},
			":ub":  &types.AttributeValueMemberS{Value: o.UpdatedBy},
			":ua":  &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ConditionExpression: awsString("attribute_exists(order_id)"),
	}
	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("update header: %w", err)
	}
	return nil
}

// UpdateStatus conditionally updates the order status from expected -> newStatus.
// Returns nil on success, ErrStatusMismatch if condition failed.
func (s *Store) UpdateStatus(ctx context.Context, orderID, expectedStatus, newStatus string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      orderKey(orderID),
		UpdateExpression:         awsString("SET #s = :new, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: newStatus},
			":expected": &types.AttributeValueMemberS{Value: expectedStatus},
			":ua":       &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		},
		ConditionExpression: awsString("#s = :expected"),
	}

	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// SetAnomaly flags an order for manual reconciliation. An empty anomaly
// clears the flag.
func (s *Store) SetAnomaly(ctx context.Context, orderID, anomaly string) error {
	now := s.nowFunc()
	input := &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 orderKey(orderID),
		ConditionExpression: awsString("attribute_exists(order_id)"),
	}
	if anomaly == "" {
		input.UpdateExpression = awsString("SET updated_at = :ua REMOVE anomaly")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		}
	} else {
		input.UpdateExpression = awsString("SET anomaly = :a, updated_at = :ua")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":a":  &types.AttributeValueMemberS{Value: anomaly},
			":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		}
	}

	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotFound
		}
		return fmt.Errorf("set anomaly: %w", err)
	}
	return nil
}

// PutItems writes all items in transactional chunks, so each chunk of up to
// 100 items either lands completely or not at all.
func (s *Store) PutItems(ctx context.Context, items []OrderItem) error {
	actions := make([]types.TransactWriteItem, 0, len(items))
	for _, it := range items {
		m, err := attributevalue.MarshalMap(toItemRecord(it))
		if err != nil {
			return fmt.Errorf("marshal item: %w", err)
		}
		actions = append(actions, types.TransactWriteItem{
			Put: &types.Put{
				TableName: &s.itemsTable,
				Item:      m,
			},
		})
	}
	_, err := s.transact(ctx, actions, "put items")
	return err
}

// ListItems returns every item of an order.
func (s *Store) ListItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	var (
		out   []OrderItem
		start map[string]types.AttributeValue
	)
	for {
		page, err := s.client.Query(ctx, &dyn.QueryInput{
			TableName:              &s.itemsTable,
			KeyConditionExpression: awsString("order_id = :oid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":oid": &types.AttributeValueMemberS{Value: orderID},
			},
			ConsistentRead:    awsBool(true),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("query items: %w", err)
		}
		var recs []itemRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("unmarshal items: %w", err)
		}
		for _, r := range recs {
			it, err := r.toItem()
			if err != nil {
				return nil, err
			}
			out = append(out, it)
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		start = page.LastEvaluatedKey
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DeleteItems removes every item of an order and returns how many were deleted.
// On error the count covers the chunks that were already committed.
func (s *Store) DeleteItems(ctx context.Context, orderID string) (int, error) {
	existing, err := s.ListItems(ctx, orderID)
	if err != nil {
		return 0, err
	}
	actions := make([]types.TransactWriteItem, 0, len(existing))
	for _, it := range existing {
		actions = append(actions, types.TransactWriteItem{
			Delete: &types.Delete{
				TableName: &s.itemsTable,
				Key: map[string]types.AttributeValue{
					"order_id": &types.AttributeValueMemberS{Value: orderID},
					"item_id":  &types.AttributeValueMemberS{Value: it.ItemID},
				},
			},
		})
	}
	return s.transact(ctx, actions, "delete items")
}

// transact commits actions in chunks and returns how many actions landed.
func (s *Store) transact(ctx context.Context, actions []types.TransactWriteItem, op string) (int, error) {
	for start := 0; start < len(actions); start += maxTransactItems {
		end := start + maxTransactItems
		if end > len(actions) {
			end = len(actions)
		}
		_, err := s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
			TransactItems: actions[start:end],
		})
		if err != nil {
			return start, fmt.Errorf("%s: %w", op, err)
		}
	}
	return len(actions), nil
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
