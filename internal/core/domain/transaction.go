package domain

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"
)

// Transaction ids look like order_<orderID>_<8 hex chars>. Callbacks are
// matched against orders only through this id.
var tranIDPattern = regexp.MustCompile(`^order_([0-9]+)_([0-9a-f]{8})$`)

// NewTransactionID mints the gateway transaction id for an order.
func NewTransactionID(orderID uint64) string {
	u := uuid.New()
	return fmt.Sprintf("order_%d_%x", orderID, u[0:4])
}

// ParseTransactionID validates the wire format and extracts the order id.
// Ids not matching the expected shape are rejected before any lookup happens.
func ParseTransactionID(tranID string) (uint64, error) {
	m := tranIDPattern.FindStringSubmatch(tranID)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTransactionID, tranID)
	}
	id, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTransactionID, tranID)
	}
	return id, nil
}
