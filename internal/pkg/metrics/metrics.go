package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout",
		Name:      "orders_placed_total",
		Help:      "Orders successfully placed, by shipping method.",
	}, []string{"shipping_method"})

	CheckoutFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout",
		Name:      "failures_total",
		Help:      "Checkout requests that did not produce an order, by reason.",
	}, []string{"reason"})

	PaymentCallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "checkout",
		Name:      "payment_callbacks_total",
		Help:      "Gateway callbacks processed, by endpoint kind and result.",
	}, []string{"kind", "result"})

	StockConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "checkout",
		Name:      "stock_conflicts_total",
		Help:      "Reservation attempts retried after a row-lock conflict.",
	})
)
