package port

import "github.com/rl1809/checkout/internal/core/domain"

type Notifier interface {
	// OrderConfirmed enqueues a confirmation for a placed order. It never
	// blocks the caller; delivery failures stay inside the collaborator.
	OrderConfirmed(order *domain.Order)
}
