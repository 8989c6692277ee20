package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rl1809/checkout/internal/core/domain"
)

// verifiedStatus is the provider's sentinel for a verified payment. Any other
// status token on a success callback, however plausible, counts as failed.
const verifiedStatus = "VALID"

const defaultTimeout = 10 * time.Second

type Config struct {
	Endpoint  string
	StoreID   string
	StorePass string
	Currency  string
	// CallbackBaseURL is the public base URL the provider posts
	// success/fail/cancel callbacks to.
	CallbackBaseURL string
	Timeout         time.Duration
}

// SSLCommerzGateway is the translation layer in front of an SSLCommerz-style
// payment provider: one bounded initiation call plus pure callback parsing.
type SSLCommerzGateway struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *SSLCommerzGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Currency == "" {
		cfg.Currency = "BDT"
	}
	cfg.CallbackBaseURL = strings.TrimRight(cfg.CallbackBaseURL, "/")
	return &SSLCommerzGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type initResponse struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

func (g *SSLCommerzGateway) InitiatePayment(ctx context.Context, order *domain.Order, tranID string) (*domain.PaymentSession, error) {
	form := url.Values{
		"store_id":         {g.cfg.StoreID},
		"store_passwd":     {g.cfg.StorePass},
		"total_amount":     {order.Total.StringFixed(2)},
		"currency":         {g.cfg.Currency},
		"tran_id":          {tranID},
		"success_url":      {g.cfg.CallbackBaseURL + "/api/checkout/payment/success"},
		"fail_url":         {g.cfg.CallbackBaseURL + "/api/checkout/payment/fail"},
		"cancel_url":       {g.cfg.CallbackBaseURL + "/api/checkout/payment/cancel"},
		"cus_name":         {order.FullName},
		"cus_email":        {orDefault(order.Email, "example@email.com")},
		"cus_add1":         {orDefault(order.Address, "No address")},
		"cus_phone":        {orDefault(order.Phone, "N/A")},
		"cus_city":         {orDefault(order.City, "Dhaka")},
		"cus_country":      {"Bangladesh"},
		"shipping_method":  {"NO"},
		"product_name":     {"Order Items"},
		"product_category": {"General"},
		"product_profile":  {"general"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build initiation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	var body initResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrGatewayUnavailable, err)
	}
	if body.Status != "SUCCESS" {
		return nil, fmt.Errorf("%w: status %q: %s", domain.ErrGatewayRejected,
			body.Status, body.FailedReason)
	}
	if body.GatewayPageURL == "" {
		return nil, fmt.Errorf("%w: missing gateway page url", domain.ErrGatewayRejected)
	}

	return &domain.PaymentSession{RedirectURL: body.GatewayPageURL, TransactionID: tranID}, nil
}

// ParseCallback validates a provider callback payload. The transaction id
// format is checked before anything else so malformed ids never reach a
// lookup. A success callback whose status is not the verified sentinel is
// downgraded to a failed verdict rather than trusted.
func (g *SSLCommerzGateway) ParseCallback(kind domain.CallbackKind, form url.Values) (*domain.CallbackOutcome, error) {
	tranID := form.Get("tran_id")
	orderID, err := domain.ParseTransactionID(tranID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCallback, err)
	}

	status := form.Get("status")
	outcome := &domain.CallbackOutcome{
		TransactionID:  tranID,
		OrderID:        orderID,
		ProviderStatus: status,
	}

	switch kind {
	case domain.CallbackSuccess:
		if status != verifiedStatus {
			outcome.Verdict = domain.VerdictFailed
			outcome.Reason = "invalid_status"
			return outcome, nil
		}
		outcome.Verdict = domain.VerdictSuccess
	case domain.CallbackCancel:
		outcome.Verdict = domain.VerdictCancelled
	default:
		outcome.Verdict = domain.VerdictFailed
	}
	return outcome, nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
