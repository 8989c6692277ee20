package port

import (
	"context"

	"github.com/rl1809/checkout/internal/core/domain"
)

type CartRepository interface {
	// Snapshot resolves the given cart items and freezes their quantities
	// and unit prices for checkout.
	Snapshot(ctx context.Context, cartItemIDs []uint64) (*domain.CartSnapshot, error)

	// ClearCart removes every item from the cart after an order is placed.
	ClearCart(ctx context.Context, cartID uint64) error
}
