package booking

import (
	"fmt"
	"time"

	"gorm.io/datatypes"

	"propertybook/internal/domain/payment"
	"propertybook/internal/domain/rate"
)

type Status string

const (
	StatusPendingVerification Status = "pending_verification"
	StatusConfirmed           Status = "confirmed"
	StatusCheckedIn           Status = "checked_in"
	StatusCheckedOut          Status = "checked_out"
	StatusCancelled           Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPendingVerification, StatusConfirmed, StatusCheckedIn, StatusCheckedOut, StatusCancelled:
		return true
	}
	return false
}

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationApproved VerificationStatus = "approved"
	VerificationRejected VerificationStatus = "rejected"
)

// GuestDetail describes one member of the party.
type GuestDetail struct {
	Name         string `json:"name"`
	Gender       string `json:"gender"`
	AgeCategory  string `json:"age_category"`
	Relationship string `json:"relationship,omitempty"`
}

const (
	GenderMale   = "male"
	GenderFemale = "female"
	AgeAdult     = "adult"
	AgeChild     = "child"
)

type Booking struct {
	ID            int64  `json:"id" gorm:"primaryKey"`
	BookingNumber string `json:"booking_number" gorm:"size:32;not null;uniqueIndex"`
	PropertyID    int64  `json:"property_id" gorm:"not null;index:idx_bookings_property_stay,priority:1"`

	CheckIn  time.Time `json:"check_in" gorm:"not null;index:idx_bookings_property_stay,priority:2"`
	CheckOut time.Time `json:"check_out" gorm:"not null;index:idx_bookings_property_stay,priority:3"`
	Nights   int       `json:"nights" gorm:"not null"`

	GuestName     string                            `json:"guest_name" gorm:"size:255;not null"`
	GuestEmail    string                            `json:"guest_email" gorm:"size:255;not null;index"`
	GuestPhone    string                            `json:"guest_phone" gorm:"size:32;not null"`
	GuestMale     int                               `json:"guest_male" gorm:"not null;default:0"`
	GuestFemale   int                               `json:"guest_female" gorm:"not null;default:0"`
	GuestChildren int                               `json:"guest_children" gorm:"not null;default:0"`
	GuestCount    int                               `json:"guest_count" gorm:"not null"`
	GuestDetails  datatypes.JSONSlice[GuestDetail]  `json:"guest_details"`
	RateBreakdown datatypes.JSONType[rate.Breakdown] `json:"rate_breakdown"`

	BaseAmount      int64 `json:"base_amount" gorm:"not null"`
	ExtraBedAmount  int64 `json:"extra_bed_amount" gorm:"not null"`
	ServiceAmount   int64 `json:"service_amount" gorm:"not null"`
	TotalAmount     int64 `json:"total_amount" gorm:"not null"`
	DPPercentage    int   `json:"dp_percentage" gorm:"not null"`
	DPAmount        int64 `json:"dp_amount" gorm:"not null"`
	RemainingAmount int64 `json:"remaining_amount" gorm:"not null"`

	BookingStatus      Status             `json:"booking_status" gorm:"type:varchar(24);not null;index"`
	VerificationStatus VerificationStatus `json:"verification_status" gorm:"type:varchar(16);not null"`
	PaymentStatus      payment.Aggregate  `json:"payment_status" gorm:"type:varchar(16);not null"`

	VerifiedBy         *int64     `json:"verified_by,omitempty"`
	VerifiedAt         *time.Time `json:"verified_at,omitempty"`
	CancelledBy        *int64     `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty" gorm:"type:text"`
	CheckedInAt        *time.Time `json:"checked_in_at,omitempty"`
	CheckedOutAt       *time.Time `json:"checked_out_at,omitempty"`
	Notes              string     `json:"notes,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Booking) TableName() string {
	return "bookings"
}

func (b *Booking) Guests() rate.Guests {
	return rate.Guests{Male: b.GuestMale, Female: b.GuestFemale, Children: b.GuestChildren}
}

func (b *Booking) IsLive() bool {
	return b.BookingStatus != StatusCancelled
}

// ValidateStatusCombination rejects combinations of the three status fields
// that no sequence of transitions can produce.
func (b *Booking) ValidateStatusCombination() error {
	if !b.BookingStatus.Valid() {
		return fmt.Errorf("%w: unknown booking status %q", ErrInconsistentState, b.BookingStatus)
	}
	switch b.VerificationStatus {
	case VerificationPending, VerificationApproved, VerificationRejected:
	default:
		return fmt.Errorf("%w: unknown verification status %q", ErrInconsistentState, b.VerificationStatus)
	}
	switch b.PaymentStatus {
	case payment.AggregateDPPending, payment.AggregateDPReceived, payment.AggregateFullyPaid:
	default:
		return fmt.Errorf("%w: unknown payment status %q", ErrInconsistentState, b.PaymentStatus)
	}

	switch b.BookingStatus {
	case StatusPendingVerification:
		if b.VerificationStatus != VerificationPending {
			return fmt.Errorf("%w: %s booking with %s verification", ErrInconsistentState, b.BookingStatus, b.VerificationStatus)
		}
	case StatusConfirmed, StatusCheckedIn, StatusCheckedOut:
		if b.VerificationStatus != VerificationApproved {
			return fmt.Errorf("%w: %s booking with %s verification", ErrInconsistentState, b.BookingStatus, b.VerificationStatus)
		}
	}
	if b.VerificationStatus == VerificationRejected && b.BookingStatus != StatusCancelled {
		return fmt.Errorf("%w: rejected verification on %s booking", ErrInconsistentState, b.BookingStatus)
	}
	return nil
}

// ValidateAmounts checks the money invariants stored on the row.
func (b *Booking) ValidateAmounts() error {
	if b.TotalAmount != b.BaseAmount+b.ExtraBedAmount+b.ServiceAmount {
		return fmt.Errorf("%w: total %d != base %d + extra bed %d + service %d",
			ErrInconsistentState, b.TotalAmount, b.BaseAmount, b.ExtraBedAmount, b.ServiceAmount)
	}
	if b.DPAmount+b.RemainingAmount != b.TotalAmount {
		return fmt.Errorf("%w: dp %d + remaining %d != total %d",
			ErrInconsistentState, b.DPAmount, b.RemainingAmount, b.TotalAmount)
	}
	return nil
}
