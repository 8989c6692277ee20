package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart            = errors.New("cart has no items")
	ErrInvalidQuantity      = errors.New("cart item quantity must be at least 1")
	ErrCartItemNotFound     = errors.New("cart item not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrUnknownVariant       = errors.New("unknown product variant")
	ErrTransactionAssigned  = errors.New("transaction id already assigned")
	ErrInvalidTransactionID = errors.New("invalid transaction id")
	ErrStockConflict        = errors.New("concurrent stock conflict")
	ErrGatewayUnavailable   = errors.New("payment gateway unreachable")
	ErrGatewayRejected      = errors.New("payment initiation rejected")
	ErrInvalidCallback      = errors.New("invalid payment callback")
)

// StockShortfallError reports the first line item whose requested quantity
// exceeds the available variant or product counter. VariantID is zero when
// the parent product counter was the one that fell short.
type StockShortfallError struct {
	VariantID uint64
	ProductID uint64
	Requested int
	Available int
}

func (e *StockShortfallError) Error() string {
	if e.VariantID != 0 {
		return fmt.Sprintf("insufficient stock for variant %d: %d available, %d requested",
			e.VariantID, e.Available, e.Requested)
	}
	return fmt.Sprintf("insufficient stock for product %d: %d available, %d requested",
		e.ProductID, e.Available, e.Requested)
}
