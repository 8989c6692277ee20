package service

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/rl1809/checkout/internal/core/domain"
	"github.com/rl1809/checkout/internal/pkg/metrics"
)

// CallbackResult carries the redirect the payer's browser is sent to.
// Callbacks never answer with a JSON body.
type CallbackResult struct {
	RedirectURL string
}

// HandleCallback reconciles an asynchronous gateway callback with local
// state. Duplicate callbacks replay the recorded redirect without touching
// state; all terminal transitions are conditional, so racing callbacks
// resolve to exactly one winner.
func (s *CheckoutService) HandleCallback(ctx context.Context, kind domain.CallbackKind, form url.Values) CallbackResult {
	outcome, err := s.gateway.ParseCallback(kind, form)
	if err != nil {
		s.logger.Warn("rejected payment callback",
			zap.String("kind", string(kind)), zap.Error(err))
		metrics.PaymentCallbacks.WithLabelValues(string(kind), "invalid").Inc()
		return CallbackResult{s.failRedirect(url.Values{"reason": {"invalid_tran_id"}})}
	}

	outcomeKey := string(kind) + ":" + outcome.TransactionID
	if redirect, err := s.cache.CallbackOutcome(ctx, outcomeKey); err == nil && redirect != "" {
		metrics.PaymentCallbacks.WithLabelValues(string(kind), "duplicate").Inc()
		return CallbackResult{redirect}
	}

	redirect := s.resolveCallback(ctx, kind, outcome)
	if err := s.cache.RecordCallbackOutcome(ctx, outcomeKey, redirect); err != nil {
		s.logger.Warn("failed to record callback outcome",
			zap.String("transaction_id", outcome.TransactionID), zap.Error(err))
	}
	return CallbackResult{redirect}
}

func (s *CheckoutService) resolveCallback(ctx context.Context, kind domain.CallbackKind, outcome *domain.CallbackOutcome) string {
	order, err := s.orders.FindByTransactionID(ctx, outcome.TransactionID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		// unknown or already-deleted order: not fatal, generic failure page
		s.logger.Warn("callback for unknown order",
			zap.String("transaction_id", outcome.TransactionID),
			zap.String("kind", string(kind)))
		metrics.PaymentCallbacks.WithLabelValues(string(kind), "order_not_found").Inc()
		return s.failRedirect(url.Values{
			"reason":  {"order_not_found"},
			"tran_id": {outcome.TransactionID},
		})
	}
	if err != nil {
		s.logger.Error("callback order lookup failed",
			zap.String("transaction_id", outcome.TransactionID), zap.Error(err))
		metrics.PaymentCallbacks.WithLabelValues(string(kind), "error").Inc()
		return s.failRedirect(url.Values{"reason": {"internal_error"}})
	}

	switch outcome.Verdict {
	case domain.VerdictSuccess:
		return s.settleSuccess(ctx, kind, order)

	case domain.VerdictCancelled:
		s.discardPending(ctx, order)
		metrics.PaymentCallbacks.WithLabelValues(string(kind), "cancelled").Inc()
		return s.redirect("/payment/cancel", url.Values{"tran_id": {outcome.TransactionID}})

	default:
		s.discardPending(ctx, order)
		metrics.PaymentCallbacks.WithLabelValues(string(kind), "failed").Inc()
		vals := url.Values{"tran_id": {outcome.TransactionID}}
		if outcome.Reason != "" {
			vals.Set("reason", outcome.Reason)
			if outcome.ProviderStatus != "" {
				vals.Set("status", outcome.ProviderStatus)
			}
		}
		return s.redirect("/payment/fail", vals)
	}
}

// settleSuccess commits stock and finalizes the order for a verified success
// callback. Stock is re-checked here: time has passed since the pending order
// was created and nothing was held during the gateway round-trip.
func (s *CheckoutService) settleSuccess(ctx context.Context, kind domain.CallbackKind, order *domain.Order) string {
	orderIDStr := strconv.FormatUint(order.ID, 10)

	if order.PaymentState == domain.PaymentPaid {
		metrics.PaymentCallbacks.WithLabelValues(string(kind), "duplicate").Inc()
		return s.redirect("/payment/success", url.Values{"order_id": {orderIDStr}})
	}
	if order.PaymentState.Terminal() {
		// a fail or cancel already closed this order; the late success loses
		metrics.PaymentCallbacks.WithLabelValues(string(kind), "late").Inc()
		return s.failRedirect(url.Values{"reason": {"order_closed"}, "order_id": {orderIDStr}})
	}

	res, err := s.reserveWithRetry(ctx, order.ID, order.Items)
	if err != nil {
		var shortfall *domain.StockShortfallError
		if errors.As(err, &shortfall) || errors.Is(err, domain.ErrStockConflict) {
			if _, ferr := s.orders.Finalize(ctx, order.ID, domain.PaymentFailed); ferr != nil {
				s.logger.Error("failed to finalize order after stock shortfall",
					zap.Uint64("order_id", order.ID), zap.Error(ferr))
			}
			s.logger.Warn("payment succeeded but stock ran out",
				zap.Uint64("order_id", order.ID), zap.Error(err))
			metrics.PaymentCallbacks.WithLabelValues(string(kind), "insufficient_stock").Inc()
			return s.failRedirect(url.Values{
				"reason":   {"insufficient_stock"},
				"order_id": {orderIDStr},
			})
		}
		s.logger.Error("stock reservation failed during callback",
			zap.Uint64("order_id", order.ID), zap.Error(err))
		metrics.PaymentCallbacks.WithLabelValues(string(kind), "error").Inc()
		return s.failRedirect(url.Values{"reason": {"internal_error"}})
	}

	applied, err := s.orders.Finalize(ctx, order.ID, domain.PaymentPaid)
	if err != nil {
		if relErr := s.ledger.Release(ctx, res); relErr != nil {
			s.logger.Error("failed to release reservation after finalize error",
				zap.String("token", res.Token), zap.Error(relErr))
		}
		s.logger.Error("failed to finalize paid order",
			zap.Uint64("order_id", order.ID), zap.Error(err))
		metrics.PaymentCallbacks.WithLabelValues(string(kind), "error").Inc()
		return s.failRedirect(url.Values{"reason": {"internal_error"}})
	}
	if !applied {
		// another callback won the pending->terminal race; give the stock back
		if relErr := s.ledger.Release(ctx, res); relErr != nil {
			s.logger.Error("failed to release reservation after losing finalize race",
				zap.String("token", res.Token), zap.Error(relErr))
		}
		current, err := s.orders.FindByTransactionID(ctx, order.TransactionID)
		if err == nil && current.PaymentState == domain.PaymentPaid {
			metrics.PaymentCallbacks.WithLabelValues(string(kind), "duplicate").Inc()
			return s.redirect("/payment/success", url.Values{"order_id": {orderIDStr}})
		}
		metrics.PaymentCallbacks.WithLabelValues(string(kind), "late").Inc()
		return s.failRedirect(url.Values{"reason": {"order_closed"}, "order_id": {orderIDStr}})
	}

	if err := s.ledger.Commit(ctx, res); err != nil {
		// the order is paid and the counters are decremented; the reservation
		// row stayed 'held', which only blocks a future release
		s.logger.Error("failed to mark reservation committed",
			zap.String("token", res.Token), zap.Error(err))
	}

	order.PaymentState = domain.PaymentPaid
	s.notifier.OrderConfirmed(order)
	metrics.PaymentCallbacks.WithLabelValues(string(kind), "paid").Inc()
	s.logger.Info("order paid",
		zap.Uint64("order_id", order.ID),
		zap.String("transaction_id", order.TransactionID))

	return s.redirect("/payment/success", url.Values{"order_id": {orderIDStr}})
}

// discardPending deletes an order that never reached payment. The delete is
// conditional on the row still being pending, so a success callback that
// finalized the order after our snapshot was read keeps it; no stock was
// committed for a pending order, so there is nothing to restore.
func (s *CheckoutService) discardPending(ctx context.Context, order *domain.Order) {
	if order.PaymentState != domain.PaymentPending {
		return
	}
	applied, err := s.orders.DeletePending(ctx, order.ID)
	if err != nil {
		s.logger.Error("failed to delete pending order",
			zap.Uint64("order_id", order.ID), zap.Error(err))
		return
	}
	if !applied {
		// another callback reached a terminal state first; it wins
		return
	}
	s.logger.Info("discarded pending order",
		zap.Uint64("order_id", order.ID),
		zap.String("transaction_id", order.TransactionID))
}

func (s *CheckoutService) redirect(path string, vals url.Values) string {
	u := s.clientBaseURL + path
	if len(vals) > 0 {
		u += "?" + vals.Encode()
	}
	return u
}

func (s *CheckoutService) failRedirect(vals url.Values) string {
	return s.redirect("/payment/fail", vals)
}
