// Package bootstrap builds the configured backends shared by the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/example/ec-checkout/internal/checkout"
	appconfig "github.com/example/ec-checkout/internal/config"
	"github.com/example/ec-checkout/internal/domain/cart"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/infrastructure/idempotency"
	"github.com/example/ec-checkout/internal/infrastructure/kafka"
	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/redis/go-redis/v9"
)

// Closer releases a backend connection.
type Closer func() error

// Closers runs registered closers in reverse order.
type Closers []Closer

func (c *Closers) add(fn Closer) { *c = append(*c, fn) }

func (c Closers) Close(log *slog.Logger) {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			log.Warn("failed to close backend", "error", err)
		}
	}
}

// Backends holds everything the checkout engine consumes.
type Backends struct {
	Ledger    order.Ledger
	Carts     cart.Store
	Deduper   checkout.Deduper
	Publisher checkout.EventPublisher
	Closers   Closers
}

// Open connects every configured backend. On error the ones already opened are closed.
func Open(ctx context.Context, cfg *appconfig.Config, log *slog.Logger) (*Backends, error) {
	b := &Backends{}
	ok := false
	defer func() {
		if !ok {
			b.Closers.Close(log)
		}
	}()

	ledger, err := OpenLedger(ctx, cfg, &b.Closers)
	if err != nil {
		return nil, fmt.Errorf("open %s ledger: %w", cfg.LedgerBackend, err)
	}
	b.Ledger = ledger
	log.Info("order ledger ready", "backend", cfg.LedgerBackend)

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		b.Closers.add(rdb.Close)
		b.Deduper = idempotency.NewStore(rdb, cfg.WebhookDedupeTTL)
		log.Info("webhook dedupe enabled", "redis", cfg.RedisAddr, "ttl", cfg.WebhookDedupeTTL.String())
	}

	b.Carts = OpenCartStore(cfg, rdb)
	log.Info("cart store ready", "backend", cfg.CartBackend)

	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		b.Closers.add(producer.Close)
		b.Publisher = producer
		log.Info("order events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	ok = true
	return b, nil
}

// OpenLedger returns the order ledger selected by LEDGER_BACKEND.
func OpenLedger(ctx context.Context, cfg *appconfig.Config, closers *Closers) (order.Ledger, error) {
	switch cfg.LedgerBackend {
	case appconfig.BackendPostgres:
		db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		closers.add(db.Close)
		ledger := store.NewPostgresLedger(db)
		if err := ledger.Migrate(); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return ledger, nil

	case appconfig.BackendMongo:
		db, err := store.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		closers.add(func() error { return db.Client().Disconnect(context.Background()) })
		ledger := store.NewMongoLedger(db)
		if err := ledger.CreateIndexes(ctx); err != nil {
			return nil, fmt.Errorf("create indexes: %w", err)
		}
		return ledger, nil

	case appconfig.BackendDynamo:
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return store.NewDynamoLedger(dynamodb.NewFromConfig(awsCfg), cfg.DynamoOrdersTable), nil

	case appconfig.BackendMemory:
		return store.NewMemoryLedger(), nil
	}
	return nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
}

// OpenCartStore returns the Redis store when selected, else the process-wide memory store.
func OpenCartStore(cfg *appconfig.Config, rdb *redis.Client) cart.Store {
	if cfg.CartBackend == appconfig.BackendRedis && rdb != nil {
		return store.NewRedisCartStore(rdb, cfg.CartTTL)
	}
	return store.NewMemoryCartStore()
}

// CheckoutConfig maps process configuration onto the engine's settings.
func CheckoutConfig(cfg *appconfig.Config) checkout.Config {
	return checkout.Config{
		Currency:      cfg.Currency,
		FrontendURL:   cfg.FrontendURL,
		WebhookSecret: cfg.StripeWebhookSecret,
	}
}
