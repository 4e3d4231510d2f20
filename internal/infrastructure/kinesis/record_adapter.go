package kinesis

import (
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/infrastructure/store"
)

// SourceLedgerStream marks payment events derived from the ledger's change stream.
const SourceLedgerStream = "ledger_stream"

// ConvertFromKinesisRecord turns a Kinesis record carrying a DynamoDB stream
// change of the orders table into an OrderPaymentSucceeded envelope.
// It returns nil for every change that is not a pending to successful transition.
// The table stream must use NEW_AND_OLD_IMAGES.
func ConvertFromKinesisRecord(record events.KinesisEventRecord) (*order.EventEnvelope, error) {
	var dynamoDBRecord events.DynamoDBEventRecord
	if err := json.Unmarshal(record.Kinesis.Data, &dynamoDBRecord); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DynamoDB record: %w", err)
	}
	return ConvertFromDynamoDBStreamRecord(dynamoDBRecord)
}

// ConvertFromDynamoDBStreamRecord is ConvertFromKinesisRecord for records read
// directly from DynamoDB Streams.
func ConvertFromDynamoDBStreamRecord(record events.DynamoDBEventRecord) (*order.EventEnvelope, error) {
	if record.EventName != string(events.DynamoDBOperationTypeModify) {
		return nil, nil
	}
	if statusOf(record.Change.OldImage) != order.StatusPending {
		return nil, nil
	}
	if statusOf(record.Change.NewImage) != order.StatusSuccessful {
		return nil, nil
	}

	o, err := convertDynamoDBImage(record.Change.NewImage)
	if err != nil {
		return nil, err
	}

	env, err := order.NewEventEnvelope(o, order.EventOrderPaymentSucceeded, order.PaymentSucceededEvent(o, SourceLedgerStream), o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	// The stream event id is stable across redeliveries.
	if record.EventID != "" {
		env.ID = record.EventID
	}
	return &env, nil
}

func statusOf(image map[string]events.DynamoDBAttributeValue) order.Status {
	v, ok := image["payment_status"]
	if !ok || v.DataType() != events.DataTypeString {
		return ""
	}
	return order.Status(v.String())
}

// convertDynamoDBImage extracts the ledger item from DynamoDB attribute values.
func convertDynamoDBImage(image map[string]events.DynamoDBAttributeValue) (*order.Order, error) {
	if image == nil {
		return nil, fmt.Errorf("DynamoDB image is nil")
	}

	attrs := make(map[string]string, len(image))
	for name, v := range image {
		if v.DataType() == events.DataTypeString {
			attrs[name] = v.String()
		}
	}
	return store.DynamoOrderFromStrings(attrs)
}

// BatchConvertFromKinesisEvent converts all records from a Kinesis event.
// Failures are keyed by the record's sequence number so the caller can report
// partial batch failures.
func BatchConvertFromKinesisEvent(kinesisEvent events.KinesisEvent) ([]*order.EventEnvelope, map[string]error) {
	var envelopes []*order.EventEnvelope
	failures := make(map[string]error)

	for _, record := range kinesisEvent.Records {
		env, err := ConvertFromKinesisRecord(record)
		if err != nil {
			failures[record.Kinesis.SequenceNumber] = fmt.Errorf("record %s: %w", record.EventID, err)
			continue
		}
		if env != nil {
			envelopes = append(envelopes, env)
		}
	}

	return envelopes, failures
}
