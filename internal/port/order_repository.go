package port

import (
	"context"
	"time"

	"github.com/rl1809/checkout/internal/core/domain"
)

type OrderRepository interface {
	// Create persists the order together with its frozen line-item snapshot
	// and assigns Order.ID.
	Create(ctx context.Context, order *domain.Order) error

	// AssignTransaction sets the transaction id exactly once. A second call
	// for the same order returns ErrTransactionAssigned.
	AssignTransaction(ctx context.Context, orderID uint64, tranID string) error

	// FindByTransactionID loads the order (with items) matching the id,
	// or ErrOrderNotFound.
	FindByTransactionID(ctx context.Context, tranID string) (*domain.Order, error)

	// Finalize moves a pending order into a terminal state. It reports
	// whether the transition was applied; false means the order had already
	// reached a terminal state and nothing changed.
	Finalize(ctx context.Context, orderID uint64, state domain.PaymentState) (bool, error)

	// DeletePending removes the order and its line-item snapshot if the
	// order is still pending. It reports whether a row was deleted; false
	// means the order already reached a terminal state (or no longer
	// exists) and was left untouched.
	DeletePending(ctx context.Context, orderID uint64) (bool, error)

	// DeleteStalePending removes pending orders placed before the cutoff and
	// returns how many were swept.
	DeleteStalePending(ctx context.Context, cutoff time.Time) (int64, error)
}
