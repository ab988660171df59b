package rate

import "errors"

var (
	ErrInvalidDateRange   = errors.New("check-out must be after check-in")
	ErrInvalidGuests      = errors.New("at least one guest is required")
	ErrCapacityExceeded   = errors.New("guest count exceeds property capacity")
	ErrMinimumStay        = errors.New("stay is shorter than the minimum")
	ErrInvalidDownPayment = errors.New("down payment percentage is not allowed")
)
