package production

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/go-order-fulfillment/internal/aws"
)

// IntakeStatusQueued is the status of a freshly received production line.
const IntakeStatusQueued = "queued"

// intakeRecord is one production line (PK order_id, SK product_id).
type intakeRecord struct {
	OrderID          string                `dynamodbav:"order_id"`
	ProductID        string                `dynamodbav:"product_id"`
	RequestID        string                `dynamodbav:"request_id"`
	OrderNumber      string                `dynamodbav:"order_number"`
	ClientName       string                `dynamodbav:"client_name,omitempty"`
	DeliveryDeadline string                `dynamodbav:"delivery_deadline,omitempty"`
	ProductName      string                `dynamodbav:"product_name"`
	Quantity         attributevalue.Number `dynamodbav:"quantity"`
	Status           string                `dynamodbav:"status"`
	ReceivedAt       time.Time             `dynamodbav:"received_at"`
}

// IntakeStore records received production requests in the production table.
type IntakeStore struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewIntakeStore creates an IntakeStore.
func NewIntakeStore(client aws.DynamoDBAPI, tableName string) *IntakeStore {
	return &IntakeStore{client: client, tableName: tableName, nowFunc: time.Now}
}

// Record writes one row per item. Rows that already exist are left untouched,
// so a redelivered message is a no-op. Returns how many rows were created.
func (s *IntakeStore) Record(ctx context.Context, req Request) (int, error) {
	created := 0
	now := s.nowFunc().UTC()
	for _, it := range req.Items {
		item, err := attributevalue.MarshalMap(intakeRecord{
			OrderID:          req.OrderID,
			ProductID:        it.ProductID,
			RequestID:        req.RequestID,
			OrderNumber:      req.OrderNumber,
			ClientName:       req.ClientName,
			DeliveryDeadline: req.DeliveryDeadline,
			ProductName:      it.ProductName,
			Quantity:         attributevalue.Number(it.Quantity.String()),
			Status:           IntakeStatusQueued,
			ReceivedAt:       now,
		})
		if err != nil {
			return created, fmt.Errorf("marshal intake record: %w", err)
		}
		_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
			TableName:           &s.tableName,
			Item:                item,
			ConditionExpression: awsString("attribute_not_exists(order_id) AND attribute_not_exists(product_id)"),
		})
		if err != nil {
			var ccf *types.ConditionalCheckFailedException
			if errors.As(err, &ccf) {
				continue
			}
			return created, fmt.Errorf("put intake record %s/%s: %w", req.OrderID, it.ProductID, err)
		}
		created++
	}
	return created, nil
}

func awsString(s string) *string { return &s }
