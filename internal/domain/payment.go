package domain

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSuccess    PaymentStatus = "success"
	PaymentStatusFailed     PaymentStatus = "failed"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

func (s PaymentStatus) String() string {
	return string(s)
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing},
	PaymentStatusProcessing: {PaymentStatusSuccess, PaymentStatusFailed},
	PaymentStatusFailed:     {PaymentStatusPending},
}

// CanTransitionTo reports whether from -> to is an allowed edge. Self
// transitions are not edges; callers treat them separately.
func CanTransitionTo(from, to PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PaymentSession is rebuilt on every payment page load from the query string
// and the pending order.
type PaymentSession struct {
	OrderID      string
	Amount       int64
	Reference    string
	Items        []CartItem
	DeliveryInfo DeliveryInfo
}

// Failure reasons carried to the failure page.
const (
	ReasonInitializationFailed = "initialization_failed"
	ReasonNotSuccessful        = "payment_not_successful"
	ReasonVerificationError    = "verification_error"
)
