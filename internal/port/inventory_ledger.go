package port

import (
	"context"
	"time"

	"github.com/rl1809/checkout/internal/core/domain"
)

type InventoryLedger interface {
	// TryReserve atomically checks and decrements the variant and product
	// counters for every line item. All-or-nothing: if any item falls short
	// no counter moves and a StockShortfallError identifies the item.
	// Row-lock contention surfaces as ErrStockConflict.
	TryReserve(ctx context.Context, orderID uint64, items []domain.LineItem) (*domain.Reservation, error)

	// Commit makes the reservation's decrements permanent. Idempotent:
	// committing a spent token is a no-op.
	Commit(ctx context.Context, res *domain.Reservation) error

	// Release restores the counters of a still-held reservation. Idempotent:
	// releasing a spent token is a no-op.
	Release(ctx context.Context, res *domain.Reservation) error

	// ReleaseExpired releases every reservation still held that was created
	// before the cutoff, restoring its counters. Covers reservations
	// orphaned by a crash between reserve and commit. Returns how many
	// were released.
	ReleaseExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
