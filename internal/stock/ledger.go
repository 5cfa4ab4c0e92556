package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/go-order-fulfillment/internal/aws"
	"github.com/shopspring/decimal"
)

// maxBatchGetKeys is the DynamoDB limit of keys per BatchGetItem call.
const maxBatchGetKeys = 100

// maxUnprocessedRounds bounds how often throttled keys are re-requested.
const maxUnprocessedRounds = 5

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrUnprocessedKeys is returned when DynamoDB keeps throttling part of a batch read.
	ErrUnprocessedKeys = errors.New("batch read left unprocessed keys")
)

// Ledger reads and adjusts stock levels.
type Ledger interface {
	GetStock(ctx context.Context, productIDs []string) (map[string]decimal.Decimal, error)
	AdjustStock(ctx context.Context, productID string, delta decimal.Decimal) error
}

// Catalog resolves product attributes used for routing.
type Catalog interface {
	GetProducts(ctx context.Context, productIDs []string) (map[string]Product, error)
}

type productRecord struct {
	ProductID      string                `dynamodbav:"product_id"` // PK
	Name           string                `dynamodbav:"name"`
	Unit           string                `dynamodbav:"unit,omitempty"`
	Stock          attributevalue.Number `dynamodbav:"stock"`
	IsManufactured bool                  `dynamodbav:"is_manufactured"`
	IsDirectSale   bool                  `dynamodbav:"is_direct_sale"`
}

// DynamoLedger keeps stock on the products table. In strict mode a decrement
// only applies when the current stock covers it.
type DynamoLedger struct {
	client    aws.DynamoDBAPI
	tableName string
	strict    bool
}

// NewDynamoLedger creates a ledger over the products table.
func NewDynamoLedger(client aws.DynamoDBAPI, tableName string, strict bool) *DynamoLedger {
	return &DynamoLedger{client: client, tableName: tableName, strict: strict}
}

func productKey(productID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"product_id": &types.AttributeValueMemberS{Value: productID},
	}
}

// GetProducts batch-reads the given products. Unknown ids are absent from the map.
func (l *DynamoLedger) GetProducts(ctx context.Context, productIDs []string) (map[string]Product, error) {
	out := make(map[string]Product, len(productIDs))
	ids := distinct(productIDs)
	for start := 0; start < len(ids); start += maxBatchGetKeys {
		end := start + maxBatchGetKeys
		if end > len(ids) {
			end = len(ids)
		}
		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, productKey(id))
		}
		if err := l.batchGet(ctx, keys, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (l *DynamoLedger) batchGet(ctx context.Context, keys []map[string]types.AttributeValue, out map[string]Product) error {
	request := map[string]types.KeysAndAttributes{
		l.tableName: {Keys: keys, ConsistentRead: awsBool(true)},
	}
	for round := 0; len(request) > 0; round++ {
		if round == maxUnprocessedRounds {
			return ErrUnprocessedKeys
		}
		resp, err := l.client.BatchGetItem(ctx, &dyn.BatchGetItemInput{RequestItems: request})
		if err != nil {
			return fmt.Errorf("batch get products: %w", err)
		}
		var recs []productRecord
		if err := attributevalue.UnmarshalListOfMaps(resp.Responses[l.tableName], &recs); err != nil {
			return fmt.Errorf("unmarshal products: %w", err)
		}
		for _, r := range recs {
			p, err := r.toProduct()
			if err != nil {
				return err
			}
			out[p.ProductID] = p
		}
		request = resp.UnprocessedKeys
	}
	return nil
}

func (r productRecord) toProduct() (Product, error) {
	stock := decimal.Zero
	if r.Stock != "" {
		var err error
		if stock, err = decimal.NewFromString(string(r.Stock)); err != nil {
			return Product{}, fmt.Errorf("parse stock of %s: %w", r.ProductID, err)
		}
	}
	return Product{
		ProductID:      r.ProductID,
		Name:           r.Name,
		Unit:           r.Unit,
		Stock:          stock,
		IsManufactured: r.IsManufactured,
		IsDirectSale:   r.IsDirectSale,
	}, nil
}

// GetStock returns the stock of every resolvable product.
func (l *DynamoLedger) GetStock(ctx context.Context, productIDs []string) (map[string]decimal.Decimal, error) {
	products, err := l.GetProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(products))
	for id, p := range products {
		out[id] = p.Stock
	}
	return out, nil
}

// AdjustStock atomically adds delta (negative to deduct) to a product's stock.
// Stock may go negative unless the ledger is strict, in which case a
// decrement larger than the current stock fails with ErrInsufficientStock.
func (l *DynamoLedger) AdjustStock(ctx context.Context, productID string, delta decimal.Decimal) error {
	input := &dyn.UpdateItemInput{
		TableName:        &l.tableName,
		Key:              productKey(productID),
		UpdateExpression: awsString("ADD stock :d"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d": &types.AttributeValueMemberN{Value: delta.String()},
		},
		ConditionExpression: awsString("attribute_exists(product_id)"),
	}
	if l.strict && delta.IsNegative() {
		input.ConditionExpression = awsString("attribute_exists(product_id) AND stock >= :need")
		input.ExpressionAttributeValues[":need"] = &types.AttributeValueMemberN{Value: delta.Neg().String()}
		input.ReturnValuesOnConditionCheckFailure = types.ReturnValuesOnConditionCheckFailureAllOld
	}

	if _, err := l.client.UpdateItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) > 0 {
				return fmt.Errorf("%w: %s", ErrInsufficientStock, productID)
			}
			return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}
		return fmt.Errorf("adjust stock of %s: %w", productID, err)
	}
	return nil
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
