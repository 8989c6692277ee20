package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/checkout/internal/port"
)

// Janitor periodically removes pending orders whose payment session was
// abandoned and releases reservations orphaned in the held state. It is an
// explicit scheduled task; cleanup never piggybacks on unrelated request
// handling.
type Janitor struct {
	orders   port.OrderRepository
	ledger   port.InventoryLedger
	interval time.Duration
	maxAge   time.Duration
	logger   *zap.Logger
}

func NewJanitor(orders port.OrderRepository, ledger port.InventoryLedger, interval, maxAge time.Duration, logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{orders: orders, ledger: ledger, interval: interval, maxAge: maxAge, logger: logger}
}

func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

func (j *Janitor) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-j.maxAge)

	n, err := j.orders.DeleteStalePending(ctx, cutoff)
	if err != nil {
		j.logger.Error("pending order sweep failed", zap.Error(err))
	} else if n > 0 {
		j.logger.Info("swept stale pending orders",
			zap.Int64("count", n), zap.Time("cutoff", cutoff))
	}

	// a crash between reserve and commit leaves the token held and the
	// counters decremented; give that stock back
	released, err := j.ledger.ReleaseExpired(ctx, cutoff)
	if err != nil {
		j.logger.Error("expired reservation sweep failed", zap.Error(err))
	} else if released > 0 {
		j.logger.Info("released expired reservations",
			zap.Int64("count", released), zap.Time("cutoff", cutoff))
	}
}
