package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/checkout/internal/core/domain"
	"github.com/rl1809/checkout/internal/pkg/metrics"
	"github.com/rl1809/checkout/internal/port"
)

// stockRetryAttempts bounds how often a reservation is retried after losing
// a row-lock race before the failure is surfaced to the caller.
const stockRetryAttempts = 3

var ErrInvalidRequest = errors.New("invalid checkout request")

type CheckoutRequest struct {
	FullName       string
	Address        string
	Email          string
	Phone          string
	City           string
	ShippingMethod domain.ShippingMethod
	CartItemIDs    []uint64
}

func (r CheckoutRequest) validate() error {
	if strings.TrimSpace(r.FullName) == "" || strings.TrimSpace(r.Address) == "" ||
		strings.TrimSpace(r.Email) == "" {
		return fmt.Errorf("%w: full name, address and email are required", ErrInvalidRequest)
	}
	if !r.ShippingMethod.Valid() {
		return fmt.Errorf("%w: unknown shipping method %q", ErrInvalidRequest, r.ShippingMethod)
	}
	if len(r.CartItemIDs) == 0 {
		return domain.ErrEmptyCart
	}
	return nil
}

// CheckoutResult is the synchronous answer to a placed order. PaymentURL and
// TransactionID are set only on the online-payment path.
type CheckoutResult struct {
	OrderID       uint64
	Total         decimal.Decimal
	PaymentURL    string
	TransactionID string
}

// CheckoutService drives the order state machine: cart snapshot, totals,
// inventory reservation, gateway initiation, and callback reconciliation.
type CheckoutService struct {
	carts         port.CartRepository
	orders        port.OrderRepository
	ledger        port.InventoryLedger
	gateway       port.PaymentGateway
	cache         port.CacheRepository
	notifier      port.Notifier
	clientBaseURL string
	logger        *zap.Logger
}

func NewCheckoutService(
	carts port.CartRepository,
	orders port.OrderRepository,
	ledger port.InventoryLedger,
	gateway port.PaymentGateway,
	cache port.CacheRepository,
	notifier port.Notifier,
	clientBaseURL string,
	logger *zap.Logger,
) *CheckoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutService{
		carts:         carts,
		orders:        orders,
		ledger:        ledger,
		gateway:       gateway,
		cache:         cache,
		notifier:      notifier,
		clientBaseURL: strings.TrimRight(clientBaseURL, "/"),
		logger:        logger,
	}
}

func (s *CheckoutService) PlaceOrder(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	snapshot, err := s.carts.Snapshot(ctx, req.CartItemIDs)
	if err != nil {
		return nil, fmt.Errorf("snapshot cart: %w", err)
	}
	if len(snapshot.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	order := &domain.Order{
		Items:          snapshot.Items,
		Total:          domain.OrderTotal(snapshot.Items),
		FullName:       req.FullName,
		Address:        req.Address,
		Email:          req.Email,
		Phone:          req.Phone,
		City:           req.City,
		ShippingMethod: req.ShippingMethod,
		PlacedAt:       time.Now(),
	}

	if req.ShippingMethod == domain.ShippingCashOnDelivery {
		return s.placeCashOnDelivery(ctx, order, snapshot.CartID)
	}
	return s.placeOnlinePayment(ctx, order)
}

// placeCashOnDelivery reserves and commits stock synchronously: there is no
// gateway round-trip, so the order goes straight to its terminal state.
func (s *CheckoutService) placeCashOnDelivery(ctx context.Context, order *domain.Order, cartID uint64) (*CheckoutResult, error) {
	res, err := s.reserveWithRetry(ctx, 0, order.Items)
	if err != nil {
		return nil, err
	}

	order.PaymentState = domain.PaymentPaid
	if err := s.orders.Create(ctx, order); err != nil {
		if relErr := s.ledger.Release(ctx, res); relErr != nil {
			s.logger.Error("failed to release reservation after order create failure",
				zap.String("token", res.Token), zap.Error(relErr))
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.ledger.Commit(ctx, res); err != nil {
		// the order exists and the counters moved at reserve time; the token
		// staying 'held' only blocks a future release
		s.logger.Error("failed to mark reservation committed",
			zap.String("token", res.Token), zap.Error(err))
	}

	if err := s.carts.ClearCart(ctx, cartID); err != nil {
		// the order is already placed; a lingering cart is an annoyance, not a failure
		s.logger.Warn("failed to clear cart after order",
			zap.Uint64("cart_id", cartID), zap.Uint64("order_id", order.ID), zap.Error(err))
	}

	s.notifier.OrderConfirmed(order)
	metrics.OrdersPlaced.WithLabelValues(string(domain.ShippingCashOnDelivery)).Inc()
	s.logger.Info("order placed",
		zap.Uint64("order_id", order.ID),
		zap.String("shipping_method", string(order.ShippingMethod)),
		zap.String("total", order.Total.StringFixed(2)))

	return &CheckoutResult{OrderID: order.ID, Total: order.Total}, nil
}

// placeOnlinePayment creates a pending order and hands the payer off to the
// gateway. No stock is held while the payment is in flight; the success
// callback re-checks availability before committing.
func (s *CheckoutService) placeOnlinePayment(ctx context.Context, order *domain.Order) (*CheckoutResult, error) {
	order.PaymentState = domain.PaymentPending
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create pending order: %w", err)
	}

	tranID := domain.NewTransactionID(order.ID)
	if err := s.orders.AssignTransaction(ctx, order.ID, tranID); err != nil {
		s.rollbackPending(ctx, order.ID)
		return nil, fmt.Errorf("assign transaction: %w", err)
	}
	order.TransactionID = tranID

	session, err := s.gateway.InitiatePayment(ctx, order, tranID)
	if err != nil {
		// no order may survive without a live payment attempt behind it
		s.rollbackPending(ctx, order.ID)
		metrics.CheckoutFailures.WithLabelValues("gateway").Inc()
		return nil, err
	}

	metrics.OrdersPlaced.WithLabelValues(string(domain.ShippingOnlinePayment)).Inc()
	s.logger.Info("pending order created",
		zap.Uint64("order_id", order.ID),
		zap.String("transaction_id", tranID))

	return &CheckoutResult{
		OrderID:       order.ID,
		Total:         order.Total,
		PaymentURL:    session.RedirectURL,
		TransactionID: session.TransactionID,
	}, nil
}

func (s *CheckoutService) rollbackPending(ctx context.Context, orderID uint64) {
	if _, err := s.orders.DeletePending(ctx, orderID); err != nil {
		s.logger.Error("failed to roll back pending order",
			zap.Uint64("order_id", orderID), zap.Error(err))
	}
}

// reserveWithRetry retries lost row-lock races; shortfalls and other errors
// return immediately.
func (s *CheckoutService) reserveWithRetry(ctx context.Context, orderID uint64, items []domain.LineItem) (*domain.Reservation, error) {
	var lastErr error
	for attempt := 0; attempt < stockRetryAttempts; attempt++ {
		res, err := s.ledger.TryReserve(ctx, orderID, items)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, domain.ErrStockConflict) {
			var shortfall *domain.StockShortfallError
			if errors.As(err, &shortfall) {
				metrics.CheckoutFailures.WithLabelValues("insufficient_stock").Inc()
			}
			return nil, err
		}
		metrics.StockConflicts.Inc()
		lastErr = err
	}
	metrics.CheckoutFailures.WithLabelValues("stock_conflict").Inc()
	return nil, fmt.Errorf("reservation retries exhausted: %w", lastErr)
}
