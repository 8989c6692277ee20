package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rl1809/checkout/internal/core/domain"
	"github.com/rl1809/checkout/internal/core/service"
)

// CheckoutAPI is the slice of the checkout service the HTTP layer needs.
type CheckoutAPI interface {
	PlaceOrder(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error)
	HandleCallback(ctx context.Context, kind domain.CallbackKind, form url.Values) service.CallbackResult
}

type HTTPHandler struct {
	checkout CheckoutAPI
	logger   *zap.Logger
}

func NewHTTPHandler(checkout CheckoutAPI, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{checkout: checkout, logger: logger}
}

func (h *HTTPHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(h.logger))

	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/checkout", func(r chi.Router) {
		r.Post("/orders", h.CreateOrder)
		r.Post("/payment/success", h.PaymentCallback(domain.CallbackSuccess))
		r.Post("/payment/fail", h.PaymentCallback(domain.CallbackFail))
		r.Post("/payment/cancel", h.PaymentCallback(domain.CallbackCancel))
	})
	return r
}

type CreateOrderRequest struct {
	FullName       string   `json:"fullName"`
	Address        string   `json:"address"`
	Email          string   `json:"email"`
	Phone          string   `json:"phone"`
	City           string   `json:"city"`
	ShippingMethod string   `json:"shippingMethod"`
	CartItemIDs    []uint64 `json:"cartItemIds"`
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.checkout.PlaceOrder(r.Context(), service.CheckoutRequest{
		FullName:       req.FullName,
		Address:        req.Address,
		Email:          req.Email,
		Phone:          req.Phone,
		City:           req.City,
		ShippingMethod: domain.ShippingMethod(req.ShippingMethod),
		CartItemIDs:    req.CartItemIDs,
	})
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	if result.PaymentURL != "" {
		writeJSON(w, http.StatusCreated, map[string]any{
			"payment_url":    result.PaymentURL,
			"order_id":       result.OrderID,
			"transaction_id": result.TransactionID,
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":  "order placed successfully",
		"order_id": result.OrderID,
		"total":    result.Total.StringFixed(2),
	})
}

func (h *HTTPHandler) writeCheckoutError(w http.ResponseWriter, err error) {
	var shortfall *domain.StockShortfallError
	switch {
	case errors.As(err, &shortfall):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      "insufficient stock",
			"variant_id": shortfall.VariantID,
			"product_id": shortfall.ProductID,
			"available":  shortfall.Available,
			"requested":  shortfall.Requested,
		})
	case errors.Is(err, domain.ErrStockConflict):
		// retries were exhausted; to the caller this is a shortfall
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "insufficient stock"})
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrCartItemNotFound),
		errors.Is(err, domain.ErrUnknownVariant),
		errors.Is(err, service.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrGatewayRejected):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to initiate payment"})
	case errors.Is(err, domain.ErrGatewayUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "payment gateway unreachable"})
	default:
		h.logger.Error("checkout failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// PaymentCallback terminates a gateway callback. The contract is redirect
// only: whatever happens, the payer's browser is sent to the storefront.
func (h *HTTPHandler) PaymentCallback(kind domain.CallbackKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			h.logger.Warn("unparseable callback form",
				zap.String("kind", string(kind)), zap.Error(err))
		}
		result := h.checkout.HandleCallback(r.Context(), kind, r.PostForm)
		http.Redirect(w, r, result.RedirectURL, http.StatusFound)
	}
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
