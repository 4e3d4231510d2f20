package kinesis

import (
	"encoding/json"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerImage(status order.Status) map[string]events.DynamoDBAttributeValue {
	return map[string]events.DynamoDBAttributeValue{
		"session_id":        events.NewStringAttribute("cs_test_1"),
		"id":                events.NewStringAttribute("order-123"),
		"email":             events.NewStringAttribute("buyer@example.com"),
		"items":             events.NewStringAttribute(`[{"product":"1","name":"Wireless Headphones","price":"99.99","quantity":2}]`),
		"total_amount":      events.NewStringAttribute("199.98"),
		"payment_status":    events.NewStringAttribute(string(status)),
		"payment_intent_id": events.NewStringAttribute("pi_1"),
		"created_at":        events.NewStringAttribute("2024-01-15T10:30:00.123456789Z"),
		"updated_at":        events.NewStringAttribute("2024-01-15T10:31:00.000000000Z"),
	}
}

func modifyRecord(eventID string, from, to order.Status) events.DynamoDBEventRecord {
	return events.DynamoDBEventRecord{
		EventID:   eventID,
		EventName: "MODIFY",
		Change: events.DynamoDBStreamRecord{
			OldImage: ledgerImage(from),
			NewImage: ledgerImage(to),
		},
	}
}

func kinesisRecord(t *testing.T, seq string, rec events.DynamoDBEventRecord) events.KinesisEventRecord {
	t.Helper()
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	return events.KinesisEventRecord{
		EventID: "shardId-000:" + seq,
		Kinesis: events.KinesisRecord{Data: data, SequenceNumber: seq},
	}
}

func TestConvertDynamoDBImage(t *testing.T) {
	tests := []struct {
		name    string
		image   map[string]events.DynamoDBAttributeValue
		wantErr bool
	}{
		{name: "valid item", image: ledgerImage(order.StatusSuccessful)},
		{name: "nil image", image: nil, wantErr: true},
		{
			name:    "missing required fields",
			image:   map[string]events.DynamoDBAttributeValue{"id": events.NewStringAttribute("order-123")},
			wantErr: true,
		},
		{
			name: "bad amount",
			image: func() map[string]events.DynamoDBAttributeValue {
				img := ledgerImage(order.StatusSuccessful)
				img["total_amount"] = events.NewStringAttribute("lots")
				return img
			}(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := convertDynamoDBImage(tt.image)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "order-123", o.ID)
			assert.Equal(t, "cs_test_1", o.SessionID)
			assert.Equal(t, "199.98", o.TotalAmount.StringFixed(2))
			require.Len(t, o.Items, 1)
			assert.Equal(t, "Wireless Headphones", o.Items[0].Name)
		})
	}
}

func TestConvertFromDynamoDBStreamRecord(t *testing.T) {
	t.Run("pending to successful yields payment succeeded", func(t *testing.T) {
		env, err := ConvertFromDynamoDBStreamRecord(modifyRecord("stream-1", order.StatusPending, order.StatusSuccessful))
		require.NoError(t, err)
		require.NotNil(t, env)

		assert.Equal(t, "stream-1", env.ID)
		assert.Equal(t, "order-123", env.AggregateID)
		assert.Equal(t, order.AggregateType, env.AggregateType)
		assert.Equal(t, order.EventOrderPaymentSucceeded, env.EventType)

		var data order.OrderPaymentSucceeded
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "buyer@example.com", data.Email)
		assert.Equal(t, "pi_1", data.PaymentIntentID)
		assert.Equal(t, SourceLedgerStream, data.Source)
	})

	skipped := []struct {
		name   string
		record events.DynamoDBEventRecord
	}{
		{"insert", events.DynamoDBEventRecord{EventName: "INSERT", Change: events.DynamoDBStreamRecord{NewImage: ledgerImage(order.StatusPending)}}},
		{"remove", events.DynamoDBEventRecord{EventName: "REMOVE"}},
		{"pending to failed", modifyRecord("s", order.StatusPending, order.StatusFailed)},
		{"successful rewritten", modifyRecord("s", order.StatusSuccessful, order.StatusSuccessful)},
		{"no old image", events.DynamoDBEventRecord{EventName: "MODIFY", Change: events.DynamoDBStreamRecord{NewImage: ledgerImage(order.StatusSuccessful)}}},
	}
	for _, tt := range skipped {
		t.Run(tt.name+" is skipped", func(t *testing.T) {
			env, err := ConvertFromDynamoDBStreamRecord(tt.record)
			require.NoError(t, err)
			assert.Nil(t, env)
		})
	}
}

func TestConvertFromKinesisRecord(t *testing.T) {
	rec := kinesisRecord(t, "100", modifyRecord("stream-7", order.StatusPending, order.StatusSuccessful))

	env, err := ConvertFromKinesisRecord(rec)

	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, "stream-7", env.ID)
}

func TestBatchConvertFromKinesisEvent(t *testing.T) {
	kinesisEvent := events.KinesisEvent{
		Records: []events.KinesisEventRecord{
			kinesisRecord(t, "1", modifyRecord("stream-1", order.StatusPending, order.StatusSuccessful)),
			kinesisRecord(t, "2", events.DynamoDBEventRecord{EventName: "REMOVE"}),
			{EventID: "3", Kinesis: events.KinesisRecord{Data: []byte("invalid json"), SequenceNumber: "3"}},
		},
	}

	envelopes, failures := BatchConvertFromKinesisEvent(kinesisEvent)

	require.Len(t, envelopes, 1)
	assert.Equal(t, "stream-1", envelopes[0].ID)
	require.Len(t, failures, 1)
	assert.Contains(t, failures, "3")
}
