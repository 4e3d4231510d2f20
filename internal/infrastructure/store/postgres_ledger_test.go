package store

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	transitionQuery = `UPDATE orders .+ WHERE session_id = \$1 AND payment_status = 'pending' RETURNING`
	findQuery       = `SELECT .+ FROM orders WHERE session_id = \$1`
)

var orderColumnNames = []string{
	"id", "owner_id", "email", "items", "total_amount", "payment_status",
	"payment_intent_id", "session_id", "shipping_address", "created_at", "updated_at",
}

func setupPostgresLedger(t *testing.T) (*PostgresLedger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresLedger(db), mock
}

func orderRow(status order.Status, paymentIntentID string, at time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(orderColumnNames).AddRow(
		"7f8c1f4e-2d1b-4c55-9a53-3b8f0f5d2a10",
		nil,
		"a@b.com",
		[]byte(`[{"product":"1","name":"Wireless Headphones","price":"99.99","quantity":2}]`),
		"199.98",
		string(status),
		paymentIntentID,
		"cs_1",
		nil,
		at,
		at,
	)
}

func TestPostgresLedger_TransitionApplied(t *testing.T) {
	ledger, mock := setupPostgresLedger(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(transitionQuery).
		WithArgs("cs_1", "successful", "pi_1", at).
		WillReturnRows(orderRow(order.StatusSuccessful, "pi_1", at))

	o, applied, err := ledger.Transition(context.Background(), "cs_1", order.Transition{
		To: order.StatusSuccessful, PaymentIntentID: "pi_1", At: at,
	})

	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, order.StatusSuccessful, o.PaymentStatus)
	assert.Equal(t, "pi_1", o.PaymentIntentID)
	assert.Equal(t, "199.98", o.TotalAmount.String())
	assert.Empty(t, o.OwnerID)
	assert.Nil(t, o.ShippingAddress)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)
}

func TestPostgresLedger_TransitionOnFinalOrder(t *testing.T) {
	ledger, mock := setupPostgresLedger(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(transitionQuery).
		WithArgs("cs_1", "successful", "pi_late", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(orderColumnNames))
	mock.ExpectQuery(findQuery).
		WithArgs("cs_1").
		WillReturnRows(orderRow(order.StatusFailed, "", at))

	o, applied, err := ledger.Transition(context.Background(), "cs_1", order.Transition{
		To: order.StatusSuccessful, PaymentIntentID: "pi_late", At: time.Now(),
	})

	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, order.StatusFailed, o.PaymentStatus)
	assert.Empty(t, o.PaymentIntentID)
}

func TestPostgresLedger_TransitionUnknownSession(t *testing.T) {
	ledger, mock := setupPostgresLedger(t)
	mock.ExpectQuery(transitionQuery).
		WithArgs("cs_missing", "failed", "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(orderColumnNames))
	mock.ExpectQuery(findQuery).
		WithArgs("cs_missing").
		WillReturnRows(sqlmock.NewRows(orderColumnNames))

	o, applied, err := ledger.Transition(context.Background(), "cs_missing", order.Transition{
		To: order.StatusFailed, At: time.Now(),
	})

	assert.Nil(t, o)
	assert.False(t, applied)
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestPostgresLedger_TransitionQueryError(t *testing.T) {
	ledger, mock := setupPostgresLedger(t)
	mock.ExpectQuery(transitionQuery).WillReturnError(errors.New("connection reset"))

	_, applied, err := ledger.Transition(context.Background(), "cs_1", order.Transition{
		To: order.StatusSuccessful, At: time.Now(),
	})

	require.Error(t, err)
	assert.False(t, applied)
	assert.NotErrorIs(t, err, order.ErrOrderNotFound)
	assert.Contains(t, err.Error(), "failed to update order")
}

func TestPostgresLedger_TransitionRejectsPendingTarget(t *testing.T) {
	ledger, _ := setupPostgresLedger(t)

	_, applied, err := ledger.Transition(context.Background(), "cs_1", order.Transition{To: order.StatusPending})

	assert.ErrorIs(t, err, order.ErrInvalidTransition)
	assert.False(t, applied)
}

func TestPostgresLedger_CreateDuplicateSession(t *testing.T) {
	ledger, mock := setupPostgresLedger(t)
	mock.ExpectExec(`INSERT INTO orders`).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	_, err := ledger.Create(context.Background(), newPendingOrder(t, "cs_1", time.Now()))

	assert.ErrorIs(t, err, order.ErrDuplicateSession)
}

func TestMigrations_TotalKeepsFullPrecision(t *testing.T) {
	up, err := fs.ReadFile(migrationsFS, "migrations/000001_create_orders.up.sql")
	require.NoError(t, err)

	for _, line := range strings.Split(string(up), "\n") {
		if strings.Contains(line, "total_amount") {
			assert.NotContains(t, line, "NUMERIC(", "a fixed scale rounds stored totals")
			assert.Contains(t, line, "NUMERIC")
		}
	}
}
