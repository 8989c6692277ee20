package domain

// CartSnapshot is the finalized set of line items read from the cart
// collaborator at checkout time. Quantities and unit prices are frozen
// the moment the snapshot is taken.
type CartSnapshot struct {
	CartID uint64
	Items  []LineItem
}
