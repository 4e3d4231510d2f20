package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/example/ec-checkout/internal/config"
	"github.com/example/ec-checkout/internal/email"
	"github.com/example/ec-checkout/internal/infrastructure/kinesis"
	"github.com/example/ec-checkout/internal/logging"
	"github.com/example/ec-checkout/internal/notification"
)

var (
	notificationHandler *notification.Handler
	log                 *slog.Logger
)

func init() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("[Lambda Notifier] invalid configuration", "error", err)
		os.Exit(1)
	}
	log = logging.New("lambda-notifier", cfg.LogLevel)

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.Currency)
	notificationHandler = notification.NewHandler(emailSvc, log)

	log.Info("[Lambda Notifier] initialized", "smtp", cfg.SMTPHost+":"+cfg.SMTPPort)
}

// handler consumes the orders table change stream delivered through Kinesis.
func handler(ctx context.Context, kinesisEvent events.KinesisEvent) (events.KinesisEventResponse, error) {
	log.Info("[Lambda Notifier] received records", "count", len(kinesisEvent.Records))

	envelopes, failures := kinesis.BatchConvertFromKinesisEvent(kinesisEvent)
	var batchItemFailures []events.KinesisBatchItemFailure
	for seq, err := range failures {
		log.Error("[Lambda Notifier] failed to convert record", "sequence", seq, "error", err)
		batchItemFailures = append(batchItemFailures, events.KinesisBatchItemFailure{ItemIdentifier: seq})
	}

	for _, env := range envelopes {
		raw, err := json.Marshal(env)
		if err != nil {
			log.Error("[Lambda Notifier] failed to encode event", "event_id", env.ID, "error", err)
			continue
		}
		if err := notificationHandler.HandleEvent(ctx, []byte(env.AggregateID), raw); err != nil {
			// Send failures are logged, not retried.
			log.Error("[Lambda Notifier] failed to process event", "event_id", env.ID, "order_id", env.AggregateID, "error", err)
		}
	}

	log.Info("[Lambda Notifier] batch processed",
		"envelopes", len(envelopes),
		"failed_records", len(batchItemFailures),
	)
	return events.KinesisEventResponse{BatchItemFailures: batchItemFailures}, nil
}

func main() {
	lambda.Start(handler)
}
