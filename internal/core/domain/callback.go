package domain

type CallbackKind string

const (
	CallbackSuccess CallbackKind = "success"
	CallbackFail    CallbackKind = "fail"
	CallbackCancel  CallbackKind = "cancel"
)

type CallbackVerdict string

const (
	VerdictSuccess   CallbackVerdict = "success"
	VerdictFailed    CallbackVerdict = "failed"
	VerdictCancelled CallbackVerdict = "cancelled"
)

// CallbackOutcome is the parsed and validated form of one provider callback.
type CallbackOutcome struct {
	TransactionID  string
	OrderID        uint64
	Verdict        CallbackVerdict
	ProviderStatus string
	// Reason is set when the verdict was downgraded, e.g. a success callback
	// whose status token was not the provider's verified sentinel.
	Reason string
}

// PaymentSession is the provider's answer to a successful payment initiation.
type PaymentSession struct {
	RedirectURL   string
	TransactionID string
}
