package port

import (
	"context"
	"net/url"

	"github.com/rl1809/checkout/internal/core/domain"
)

type PaymentGateway interface {
	// InitiatePayment opens a payment session with the external provider.
	// The call is bounded by the client timeout; on any error the caller
	// must roll back the pending order it just created.
	InitiatePayment(ctx context.Context, order *domain.Order, tranID string) (*domain.PaymentSession, error)

	// ParseCallback validates a provider callback payload. Pure translation:
	// no lookups, no state. Malformed transaction ids yield ErrInvalidCallback.
	ParseCallback(kind domain.CallbackKind, form url.Values) (*domain.CallbackOutcome, error)
}
