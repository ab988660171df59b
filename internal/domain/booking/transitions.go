package booking

import "slices"

type Action string

const (
	ActionCreate        Action = "create"
	ActionVerify        Action = "verify"
	ActionReject        Action = "reject"
	ActionSubmitPayment Action = "submit_payment"
	ActionVerifyPayment Action = "verify_payment"
	ActionRejectPayment Action = "reject_payment"
	ActionCheckIn       Action = "checkin"
	ActionCheckOut      Action = "checkout"
	ActionCancel        Action = "cancel"
)

// rule is the guard of one action. Empty slices place no restriction.
type rule struct {
	bookingFrom      []Status
	verificationFrom []VerificationStatus
	step             Step
	event            string
}

var transitions = map[Action]rule{
	ActionCreate: {
		step:  StepBookingCreated,
		event: "booking.created",
	},
	ActionVerify: {
		bookingFrom:      []Status{StatusPendingVerification},
		verificationFrom: []VerificationStatus{VerificationPending},
		step:             StepVerification,
		event:            "booking.verified",
	},
	ActionReject: {
		bookingFrom:      []Status{StatusPendingVerification},
		verificationFrom: []VerificationStatus{VerificationPending},
		step:             StepVerification,
		event:            "booking.rejected",
	},
	ActionSubmitPayment: {
		bookingFrom: []Status{StatusPendingVerification, StatusConfirmed},
		step:        StepPaymentSubmitted,
		event:       "payment.submitted",
	},
	// payment actions are guarded on the payment row, see settlePayment
	ActionVerifyPayment: {
		step:  StepPaymentVerified,
		event: "payment.verified",
	},
	ActionRejectPayment: {
		step:  StepPaymentRejected,
		event: "payment.rejected",
	},
	ActionCheckIn: {
		bookingFrom: []Status{StatusConfirmed},
		step:        StepCheckIn,
		event:       "booking.checked_in",
	},
	ActionCheckOut: {
		bookingFrom: []Status{StatusCheckedIn},
		step:        StepCheckOut,
		event:       "booking.checked_out",
	},
	ActionCancel: {
		bookingFrom: []Status{StatusPendingVerification, StatusConfirmed},
		step:        StepCancellation,
		event:       "booking.cancelled",
	},
}

// checkTransition consults the table for action against the booking's
// current state.
func checkTransition(action Action, b *Booking) error {
	r, ok := transitions[action]
	if !ok {
		return &TransitionError{Action: action, From: string(b.BookingStatus)}
	}
	if len(r.bookingFrom) > 0 && !slices.Contains(r.bookingFrom, b.BookingStatus) {
		return &TransitionError{Action: action, From: string(b.BookingStatus)}
	}
	if len(r.verificationFrom) > 0 && !slices.Contains(r.verificationFrom, b.VerificationStatus) {
		return &TransitionError{Action: action, From: "verification " + string(b.VerificationStatus)}
	}
	return nil
}

// Allowed lists the actions the booking's current state permits. Payment
// actions are left out because they depend on the payment, not the booking.
func Allowed(b *Booking) []Action {
	var out []Action
	for _, a := range []Action{ActionVerify, ActionReject, ActionSubmitPayment, ActionCheckIn, ActionCheckOut, ActionCancel} {
		if checkTransition(a, b) == nil {
			out = append(out, a)
		}
	}
	return out
}
