package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShippingMethod string

const (
	ShippingCashOnDelivery ShippingMethod = "cash_on_delivery"
	ShippingOnlinePayment  ShippingMethod = "online_payment"
)

func (m ShippingMethod) Valid() bool {
	return m == ShippingCashOnDelivery || m == ShippingOnlinePayment
}

type PaymentState string

const (
	PaymentPending   PaymentState = "pending"
	PaymentPaid      PaymentState = "paid"
	PaymentFailed    PaymentState = "failed"
	PaymentCancelled PaymentState = "cancelled"
)

// Terminal reports whether no further payment transition is allowed.
func (s PaymentState) Terminal() bool {
	return s != PaymentPending
}

// LineItem is an immutable snapshot of one cart row taken at checkout time.
// UnitPrice is frozen here so later catalog changes never alter a placed order.
type LineItem struct {
	VariantID uint64
	ProductID uint64
	Quantity  int
	UnitPrice decimal.Decimal
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type Order struct {
	ID             uint64
	Items          []LineItem
	Total          decimal.Decimal
	FullName       string
	Address        string
	Email          string
	Phone          string
	City           string
	ShippingMethod ShippingMethod
	PaymentState   PaymentState
	TransactionID  string // empty until an online payment attempt is initiated
	PlacedAt       time.Time
}

// OrderTotal computes the frozen order total from the line-item snapshot,
// rounded to two decimal places. It is calculated exactly once, at creation.
func OrderTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.Subtotal())
	}
	return total.Round(2)
}
