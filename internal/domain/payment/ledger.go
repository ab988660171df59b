package payment

// Aggregate is the booking-level payment status derived from the ledger.
type Aggregate string

const (
	AggregateDPPending  Aggregate = "dp_pending"
	AggregateDPReceived Aggregate = "dp_received"
	AggregateFullyPaid  Aggregate = "fully_paid"
)

func (a Aggregate) rank() int {
	switch a {
	case AggregateDPReceived:
		return 1
	case AggregateFullyPaid:
		return 2
	}
	return 0
}

// Advance returns whichever of a and next is further along. The aggregate
// status never moves backward.
func (a Aggregate) Advance(next Aggregate) Aggregate {
	if next.rank() > a.rank() {
		return next
	}
	return a
}

type Summary struct {
	Verified int64 `json:"verified"`
	Pending  int64 `json:"pending"`
	Failed   int64 `json:"failed"`
	Count    int   `json:"count"`
}

func Summarize(payments []Payment) Summary {
	var s Summary
	for _, p := range payments {
		s.Count++
		switch p.Status {
		case StatusVerified:
			s.Verified += p.Amount
		case StatusPending:
			s.Pending += p.Amount
		case StatusFailed:
			s.Failed += p.Amount
		}
	}
	return s
}

// PendingAmount is what the guest still owes after verified payments.
func PendingAmount(total, verified int64) int64 {
	if verified >= total {
		return 0
	}
	return total - verified
}

// TypeFor classifies a new payment from the verified sum so far.
func TypeFor(amount, total, verified int64) Type {
	switch {
	case verified > 0:
		return TypeRemaining
	case amount == total:
		return TypeFull
	default:
		return TypeDownPayment
	}
}

// StatusFor maps the verified sum onto the booking's payment status.
func StatusFor(verified, total int64) Aggregate {
	switch {
	case verified >= total:
		return AggregateFullyPaid
	case verified > 0:
		return AggregateDPReceived
	default:
		return AggregateDPPending
	}
}
