package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/ec-checkout/internal/config"
	"github.com/example/ec-checkout/internal/email"
	"github.com/example/ec-checkout/internal/infrastructure/kafka"
	"github.com/example/ec-checkout/internal/logging"
	"github.com/example/ec-checkout/internal/notification"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("[Notifier] invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logging.New("notifier", cfg.LogLevel)
	if len(cfg.KafkaBrokers) == 0 {
		log.Error("[Notifier] KAFKA_BROKERS is required")
		os.Exit(1)
	}

	log.Info("[Notifier] ========================================")
	log.Info("[Notifier] EC Shop - Order Confirmation Service")
	log.Info("[Notifier] ========================================")
	log.Info("[Notifier] configuration",
		"kafka", cfg.KafkaBrokers,
		"topic", cfg.KafkaTopic,
		"group", cfg.KafkaGroupID,
		"smtp", cfg.SMTPHost+":"+cfg.SMTPPort,
		"from", cfg.SMTPFrom,
	)

	emailSvc := email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.Currency)
	handler := notification.NewHandler(emailSvc, log)

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, log)
	defer consumer.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info("[Notifier] starting event consumer", "topic", cfg.KafkaTopic)
		if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && ctx.Err() == nil {
			log.Error("[Notifier] consumer error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-done:
	}

	log.Info("[Notifier] shutting down...")
	cancel()
	<-done
}
