package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusPaid: true, StatusCancelled: true},
	StatusPaid:       {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// PaymentStatus mirrors the gateway's invoice states.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentExpired PaymentStatus = "EXPIRED"
	PaymentFailed  PaymentStatus = "FAILED"
)

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch ps := PaymentStatus(s); ps {
	case PaymentPending, PaymentPaid, PaymentExpired, PaymentFailed:
		return ps, true
	}
	return "", false
}

// Terminal reports whether no further transition is accepted.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentPaid || s == PaymentExpired
}
