package order

import (
	"context"
	"time"
)

// Ledger is the durable store of orders, keyed by id and by external session id.
//
// Transition is the single mutation path. Implementations apply it as one atomic
// conditional update on the order document: the write only happens while the stored
// status is still pending. When the order is already terminal the current snapshot is
// returned with applied=false and no error. A missing session yields ErrOrderNotFound.
type Ledger interface {
	Create(ctx context.Context, o *Order) (*Order, error)
	FindBySessionID(ctx context.Context, sessionID string) (*Order, error)
	Transition(ctx context.Context, sessionID string, t Transition) (o *Order, applied bool, err error)
	ListPending(ctx context.Context, createdBefore time.Time) ([]*Order, error)
}
