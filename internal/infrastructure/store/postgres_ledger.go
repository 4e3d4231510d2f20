package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const uniqueViolation = "23505"

const orderColumns = `id, owner_id, email, items, total_amount, payment_status,
	payment_intent_id, session_id, shipping_address, created_at, updated_at`

// PostgresLedger stores orders in PostgreSQL.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// ConnectPostgres opens and pings a pooled connection.
func ConnectPostgres(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// Migrate applies the embedded schema migrations.
func (l *PostgresLedger) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}
	driver, err := postgres.WithInstance(l.db, &postgres.Config{
		MigrationsTable: "checkout_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Create(ctx context.Context, o *order.Order) (*order.Order, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order items: %w", err)
	}
	var shipping any
	if o.ShippingAddress != nil {
		b, err := json.Marshal(o.ShippingAddress)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal shipping address: %w", err)
		}
		shipping = b
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.ID,
		nullString(o.OwnerID),
		o.Email,
		items,
		o.TotalAmount,
		string(o.PaymentStatus),
		o.PaymentIntentID,
		o.SessionID,
		shipping,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, order.ErrDuplicateSession
		}
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}
	return o.Clone(), nil
}

func (l *PostgresLedger) FindBySessionID(ctx context.Context, sessionID string) (*order.Order, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE session_id = $1`, sessionID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	return o, err
}

// Transition is a single conditional UPDATE; the status predicate makes it a
// check-and-set, so concurrent callers cannot both apply.
func (l *PostgresLedger) Transition(ctx context.Context, sessionID string, t order.Transition) (*order.Order, bool, error) {
	if err := t.Validate(); err != nil {
		return nil, false, err
	}

	row := l.db.QueryRowContext(ctx,
		`UPDATE orders
		 SET payment_status = $2,
		     payment_intent_id = COALESCE(NULLIF($3, ''), payment_intent_id),
		     updated_at = $4
		 WHERE session_id = $1 AND payment_status = 'pending'
		 RETURNING `+orderColumns,
		sessionID, string(t.To), t.PaymentIntentID, t.At,
	)
	o, err := scanOrder(row)
	if err == nil {
		return o, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to update order: %w", err)
	}

	// Nothing matched: either the session is unknown or the order is already final.
	current, err := l.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (l *PostgresLedger) ListPending(ctx context.Context, createdBefore time.Time) ([]*order.Order, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE payment_status = 'pending' AND created_at < $1
		 ORDER BY created_at ASC`,
		createdBefore,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending orders: %w", err)
	}
	defer rows.Close()

	var orders []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o        order.Order
		ownerID  sql.NullString
		status   string
		items    []byte
		shipping []byte
	)
	err := row.Scan(&o.ID, &ownerID, &o.Email, &items, &o.TotalAmount, &status,
		&o.PaymentIntentID, &o.SessionID, &shipping, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.OwnerID = ownerID.String
	o.PaymentStatus = order.Status(status)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order items: %w", err)
	}
	if len(shipping) > 0 {
		o.ShippingAddress = &order.ShippingAddress{}
		if err := json.Unmarshal(shipping, o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("failed to unmarshal shipping address: %w", err)
		}
	}
	return &o, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
