package domain

import "time"

type ReservationState string

const (
	ReservationHeld      ReservationState = "held"
	ReservationCommitted ReservationState = "committed"
	ReservationReleased  ReservationState = "released"
)

// Reservation is a hold against variant and product counters for one order's
// line items. The token is the one-shot key for commit and release, so
// resolving a reservation twice can never double-apply.
type Reservation struct {
	Token     string
	OrderID   uint64
	Items     []LineItem
	State     ReservationState
	CreatedAt time.Time
}
