package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/checkout/internal/core/domain"
)

func testOrder() *domain.Order {
	return &domain.Order{
		ID:       42,
		Total:    decimal.RequireFromString("39.98"),
		FullName: "Ada Lovelace",
		Address:  "12 Analytical Row",
		Email:    "ada@example.com",
		Phone:    "01700000000",
		City:     "Dhaka",
	}
}

func TestInitiatePayment_Success(t *testing.T) {
	var captured url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		captured = r.PostForm
		w.Write([]byte(`{"status":"SUCCESS","GatewayPageURL":"https://sandbox.sslcommerz.com/pay/abc"}`))
	}))
	defer srv.Close()

	g := New(Config{
		Endpoint:        srv.URL,
		StoreID:         "teststore",
		StorePass:       "testpass",
		CallbackBaseURL: "http://localhost:8080/",
	})

	session, err := g.InitiatePayment(context.Background(), testOrder(), "order_42_deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "https://sandbox.sslcommerz.com/pay/abc", session.RedirectURL)
	assert.Equal(t, "order_42_deadbeef", session.TransactionID)

	assert.Equal(t, "teststore", captured.Get("store_id"))
	assert.Equal(t, "39.98", captured.Get("total_amount"))
	assert.Equal(t, "BDT", captured.Get("currency"))
	assert.Equal(t, "order_42_deadbeef", captured.Get("tran_id"))
	assert.Equal(t, "http://localhost:8080/api/checkout/payment/success", captured.Get("success_url"))
	assert.Equal(t, "http://localhost:8080/api/checkout/payment/fail", captured.Get("fail_url"))
	assert.Equal(t, "http://localhost:8080/api/checkout/payment/cancel", captured.Get("cancel_url"))
	assert.Equal(t, "Ada Lovelace", captured.Get("cus_name"))
}

func TestInitiatePayment_BlankContactFieldsGetDefaults(t *testing.T) {
	var captured url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		captured = r.PostForm
		w.Write([]byte(`{"status":"SUCCESS","GatewayPageURL":"https://pay.example/x"}`))
	}))
	defer srv.Close()

	order := testOrder()
	order.Email = ""
	order.Phone = "  "
	order.City = ""

	g := New(Config{Endpoint: srv.URL, CallbackBaseURL: "http://localhost:8080"})
	_, err := g.InitiatePayment(context.Background(), order, "order_42_deadbeef")
	require.NoError(t, err)

	assert.Equal(t, "example@email.com", captured.Get("cus_email"))
	assert.Equal(t, "N/A", captured.Get("cus_phone"))
	assert.Equal(t, "Dhaka", captured.Get("cus_city"))
}

func TestInitiatePayment_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"FAILED","failedreason":"store credentials invalid"}`))
	}))
	defer srv.Close()

	g := New(Config{Endpoint: srv.URL})
	_, err := g.InitiatePayment(context.Background(), testOrder(), "order_42_deadbeef")
	assert.ErrorIs(t, err, domain.ErrGatewayRejected)
	assert.Contains(t, err.Error(), "store credentials invalid")
}

func TestInitiatePayment_MissingPageURLRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"SUCCESS"}`))
	}))
	defer srv.Close()

	g := New(Config{Endpoint: srv.URL})
	_, err := g.InitiatePayment(context.Background(), testOrder(), "order_42_deadbeef")
	assert.ErrorIs(t, err, domain.ErrGatewayRejected)
}

func TestInitiatePayment_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	g := New(Config{Endpoint: srv.URL, Timeout: time.Second})
	_, err := g.InitiatePayment(context.Background(), testOrder(), "order_42_deadbeef")
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestInitiatePayment_GarbageBodyUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway down</html>"))
	}))
	defer srv.Close()

	g := New(Config{Endpoint: srv.URL})
	_, err := g.InitiatePayment(context.Background(), testOrder(), "order_42_deadbeef")
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestParseCallback(t *testing.T) {
	g := New(Config{})

	tests := []struct {
		name    string
		kind    domain.CallbackKind
		form    url.Values
		verdict domain.CallbackVerdict
		reason  string
	}{
		{
			name:    "verified success",
			kind:    domain.CallbackSuccess,
			form:    url.Values{"tran_id": {"order_42_deadbeef"}, "status": {"VALID"}},
			verdict: domain.VerdictSuccess,
		},
		{
			name:    "success with unverified status downgraded",
			kind:    domain.CallbackSuccess,
			form:    url.Values{"tran_id": {"order_42_deadbeef"}, "status": {"FAILED"}},
			verdict: domain.VerdictFailed,
			reason:  "invalid_status",
		},
		{
			name:    "success with empty status downgraded",
			kind:    domain.CallbackSuccess,
			form:    url.Values{"tran_id": {"order_42_deadbeef"}},
			verdict: domain.VerdictFailed,
			reason:  "invalid_status",
		},
		{
			name:    "cancel",
			kind:    domain.CallbackCancel,
			form:    url.Values{"tran_id": {"order_42_deadbeef"}},
			verdict: domain.VerdictCancelled,
		},
		{
			name:    "fail",
			kind:    domain.CallbackFail,
			form:    url.Values{"tran_id": {"order_42_deadbeef"}, "status": {"FAILED"}},
			verdict: domain.VerdictFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := g.ParseCallback(tt.kind, tt.form)
			require.NoError(t, err)
			assert.Equal(t, tt.verdict, outcome.Verdict)
			assert.Equal(t, tt.reason, outcome.Reason)
			assert.Equal(t, uint64(42), outcome.OrderID)
			assert.Equal(t, "order_42_deadbeef", outcome.TransactionID)
		})
	}
}

func TestParseCallback_MalformedTranID(t *testing.T) {
	g := New(Config{})
	for _, tranID := range []string{"", "garbage", "order_x_deadbeef", "order_42_WRONG"} {
		_, err := g.ParseCallback(domain.CallbackSuccess, url.Values{"tran_id": {tranID}, "status": {"VALID"}})
		assert.ErrorIs(t, err, domain.ErrInvalidCallback, "input %q", tranID)
	}
}
