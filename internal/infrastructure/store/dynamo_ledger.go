package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/shopspring/decimal"
)

// dynamoTimeLayout is fixed width so string comparison in filters orders by time.
const dynamoTimeLayout = "2006-01-02T15:04:05.000000000Z"

// DynamoAPI is the subset of the DynamoDB client used by DynamoLedger.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoLedger stores orders in a DynamoDB table whose partition key is session_id.
type DynamoLedger struct {
	client    DynamoAPI
	tableName string
}

// dynamoOrder represents the DynamoDB item structure
type dynamoOrder struct {
	SessionID       string `dynamodbav:"session_id"`
	ID              string `dynamodbav:"id"`
	OwnerID         string `dynamodbav:"owner_id,omitempty"`
	Email           string `dynamodbav:"email"`
	Items           string `dynamodbav:"items"`
	TotalAmount     string `dynamodbav:"total_amount"`
	PaymentStatus   string `dynamodbav:"payment_status"`
	PaymentIntentID string `dynamodbav:"payment_intent_id"`
	ShippingAddress string `dynamodbav:"shipping_address,omitempty"`
	CreatedAt       string `dynamodbav:"created_at"`
	UpdatedAt       string `dynamodbav:"updated_at"`
}

func NewDynamoLedger(client DynamoAPI, tableName string) *DynamoLedger {
	return &DynamoLedger{client: client, tableName: tableName}
}

func (l *DynamoLedger) Create(ctx context.Context, o *order.Order) (*order.Order, error) {
	item, err := toDynamoOrder(o)
	if err != nil {
		return nil, err
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(session_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, order.ErrDuplicateSession
		}
		return nil, fmt.Errorf("failed to put order: %w", err)
	}
	return o.Clone(), nil
}

func (l *DynamoLedger) FindBySessionID(ctx context.Context, sessionID string) (*order.Order, error) {
	result, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(l.tableName),
		Key:            sessionKey(sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if len(result.Item) == 0 {
		return nil, order.ErrOrderNotFound
	}
	return unmarshalDynamoOrder(result.Item)
}

// Transition is one conditional UpdateItem. On a failed condition DynamoDB hands back
// the stored item, so no second read is needed.
func (l *DynamoLedger) Transition(ctx context.Context, sessionID string, t order.Transition) (*order.Order, bool, error) {
	if err := t.Validate(); err != nil {
		return nil, false, err
	}

	update := "SET payment_status = :to, updated_at = :at"
	values := map[string]types.AttributeValue{
		":to":      &types.AttributeValueMemberS{Value: string(t.To)},
		":at":      &types.AttributeValueMemberS{Value: t.At.UTC().Format(dynamoTimeLayout)},
		":pending": &types.AttributeValueMemberS{Value: string(order.StatusPending)},
	}
	if t.PaymentIntentID != "" {
		update += ", payment_intent_id = :pi"
		values[":pi"] = &types.AttributeValueMemberS{Value: t.PaymentIntentID}
	}

	result, err := l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(l.tableName),
		Key:                                 sessionKey(sessionID),
		UpdateExpression:                    aws.String(update),
		ConditionExpression:                 aws.String("attribute_exists(session_id) AND payment_status = :pending"),
		ExpressionAttributeValues:           values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if !errors.As(err, &ccf) {
			return nil, false, fmt.Errorf("failed to update order: %w", err)
		}
		if len(ccf.Item) == 0 {
			return nil, false, order.ErrOrderNotFound
		}
		current, err := unmarshalDynamoOrder(ccf.Item)
		if err != nil {
			return nil, false, err
		}
		return current, false, nil
	}

	o, err := unmarshalDynamoOrder(result.Attributes)
	if err != nil {
		return nil, false, err
	}
	return o, true, nil
}

// ListPending scans the table; it backs an operator sweep, not a request path.
func (l *DynamoLedger) ListPending(ctx context.Context, createdBefore time.Time) ([]*order.Order, error) {
	paginator := dynamodb.NewScanPaginator(l.client, &dynamodb.ScanInput{
		TableName:        aws.String(l.tableName),
		FilterExpression: aws.String("payment_status = :pending AND created_at < :before"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: string(order.StatusPending)},
			":before":  &types.AttributeValueMemberS{Value: createdBefore.UTC().Format(dynamoTimeLayout)},
		},
	})

	var orders []*order.Order
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending orders: %w", err)
		}
		for _, item := range page.Items {
			o, err := unmarshalDynamoOrder(item)
			if err != nil {
				return nil, err
			}
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

func sessionKey(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"session_id": &types.AttributeValueMemberS{Value: sessionID},
	}
}

func toDynamoOrder(o *order.Order) (*dynamoOrder, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order items: %w", err)
	}
	item := &dynamoOrder{
		SessionID:       o.SessionID,
		ID:              o.ID,
		OwnerID:         o.OwnerID,
		Email:           o.Email,
		Items:           string(items),
		TotalAmount:     o.TotalAmount.String(),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentIntentID: o.PaymentIntentID,
		CreatedAt:       o.CreatedAt.UTC().Format(dynamoTimeLayout),
		UpdatedAt:       o.UpdatedAt.UTC().Format(dynamoTimeLayout),
	}
	if o.ShippingAddress != nil {
		addr, err := json.Marshal(o.ShippingAddress)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal shipping address: %w", err)
		}
		item.ShippingAddress = string(addr)
	}
	return item, nil
}

func unmarshalDynamoOrder(av map[string]types.AttributeValue) (*order.Order, error) {
	var item dynamoOrder
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return item.toOrder()
}

// DynamoOrderFromStrings rebuilds an order from the string attributes of a
// ledger item, as found in a DynamoDB stream image.
func DynamoOrderFromStrings(attrs map[string]string) (*order.Order, error) {
	item := dynamoOrder{
		SessionID:       attrs["session_id"],
		ID:              attrs["id"],
		OwnerID:         attrs["owner_id"],
		Email:           attrs["email"],
		Items:           attrs["items"],
		TotalAmount:     attrs["total_amount"],
		PaymentStatus:   attrs["payment_status"],
		PaymentIntentID: attrs["payment_intent_id"],
		ShippingAddress: attrs["shipping_address"],
		CreatedAt:       attrs["created_at"],
		UpdatedAt:       attrs["updated_at"],
	}
	if item.SessionID == "" || item.ID == "" {
		return nil, fmt.Errorf("missing required fields: id=%q, session_id=%q", item.ID, item.SessionID)
	}
	return item.toOrder()
}

func (item *dynamoOrder) toOrder() (*order.Order, error) {
	o := &order.Order{
		ID:              item.ID,
		OwnerID:         item.OwnerID,
		Email:           item.Email,
		PaymentStatus:   order.Status(item.PaymentStatus),
		PaymentIntentID: item.PaymentIntentID,
		SessionID:       item.SessionID,
	}
	var err error
	if err = json.Unmarshal([]byte(item.Items), &o.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order items: %w", err)
	}
	if o.TotalAmount, err = decimal.NewFromString(item.TotalAmount); err != nil {
		return nil, fmt.Errorf("failed to parse total amount: %w", err)
	}
	if o.CreatedAt, err = time.Parse(dynamoTimeLayout, item.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if o.UpdatedAt, err = time.Parse(dynamoTimeLayout, item.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if item.ShippingAddress != "" {
		o.ShippingAddress = &order.ShippingAddress{}
		if err := json.Unmarshal([]byte(item.ShippingAddress), o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("failed to unmarshal shipping address: %w", err)
		}
	}
	return o, nil
}
