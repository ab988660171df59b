package booking

import (
	"errors"
	"fmt"

	"propertybook/internal/domain/availability"
	"propertybook/internal/domain/payment"
	"propertybook/internal/domain/property"
	"propertybook/internal/domain/rate"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrAmountExceedsPending = errors.New("amount exceeds pending amount")
	ErrOutstandingBalance   = errors.New("booking is not fully paid")
	ErrBookingNotFound      = errors.New("booking not found")
	ErrInconsistentState    = errors.New("inconsistent booking state")
	ErrStorage              = errors.New("storage failure")

	ErrNotAvailable       = availability.ErrNotAvailable
	ErrMinimumStay        = rate.ErrMinimumStay
	ErrCapacityExceeded   = rate.ErrCapacityExceeded
	ErrInvalidDateRange   = rate.ErrInvalidDateRange
	ErrInvalidDownPayment = rate.ErrInvalidDownPayment
	ErrPaymentNotFound    = payment.ErrPaymentNotFound
	ErrPropertyNotFound   = property.ErrPropertyNotFound
)

// TransitionError reports an action attempted from a state whose guard does
// not allow it.
type TransitionError struct {
	Action Action
	From   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s from %s", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

var guardErrors = []error{
	ErrInvalidTransition,
	ErrAmountExceedsPending,
	ErrNotAvailable,
	ErrMinimumStay,
	ErrCapacityExceeded,
	ErrInvalidDateRange,
	ErrInvalidDownPayment,
	ErrOutstandingBalance,
}

// IsGuardViolation reports a business rule refusal. State has not changed and
// retrying the same call will fail the same way.
func IsGuardViolation(err error) bool {
	for _, target := range guardErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrBookingNotFound) || errors.Is(err, ErrPaymentNotFound) || errors.Is(err, ErrPropertyNotFound)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, rate.ErrInvalidGuests)
}

// IsRetryable reports a transient storage failure. The operation rolled back
// and may be retried after re-reading current state.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage)
}

// classify leaves domain errors untouched and tags everything else,
// including context cancellation, as a storage failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if IsGuardViolation(err) || IsNotFound(err) || IsValidation(err) || errors.Is(err, ErrInconsistentState) || errors.Is(err, ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
