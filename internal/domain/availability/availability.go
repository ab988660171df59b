// Package availability answers whether a property is free for a date range
// and guards booking creation against double booking.
package availability

import (
	"context"
	"errors"
	"time"
)

var ErrNotAvailable = errors.New("property is not available for the selected dates")

// Span is the date range held by one live booking.
type Span struct {
	BookingID     int64     `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	CheckIn       time.Time `json:"check_in"`
	CheckOut      time.Time `json:"check_out"`
	Status        string    `json:"booking_status"`
}

// Overlaps treats both ranges as half-open [in, out), so a stay ending on the
// day another begins does not conflict.
func Overlaps(aIn, aOut, bIn, bOut time.Time) bool {
	return aIn.Before(bOut) && aOut.After(bIn)
}

type Repository interface {
	ListLive(ctx context.Context, propertyID int64, from, to time.Time) ([]Span, error)
}

type Checker struct {
	repo Repository
}

func NewChecker(repo Repository) *Checker {
	return &Checker{repo: repo}
}

// Conflicts returns the live bookings overlapping [checkIn, checkOut).
func (c *Checker) Conflicts(ctx context.Context, propertyID int64, checkIn, checkOut time.Time) ([]Span, error) {
	spans, err := c.repo.ListLive(ctx, propertyID, checkIn, checkOut)
	if err != nil {
		return nil, err
	}
	out := spans[:0]
	for _, s := range spans {
		if Overlaps(s.CheckIn, s.CheckOut, checkIn, checkOut) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *Checker) IsAvailable(ctx context.Context, propertyID int64, checkIn, checkOut time.Time) (bool, error) {
	conflicts, err := c.Conflicts(ctx, propertyID, checkIn, checkOut)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}
