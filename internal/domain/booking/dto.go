package booking

import (
	"propertybook/internal/domain/availability"
	"propertybook/internal/domain/payment"
	"propertybook/internal/domain/rate"
)

type GuestCounts struct {
	Male     int `json:"male" validate:"gte=0,lte=100"`
	Female   int `json:"female" validate:"gte=0,lte=100"`
	Children int `json:"children" validate:"gte=0,lte=100"`
}

func (g GuestCounts) toRate() rate.Guests {
	return rate.Guests{Male: g.Male, Female: g.Female, Children: g.Children}
}

type GuestDetailRequest struct {
	Name         string `json:"name" validate:"required,max=100"`
	Gender       string `json:"gender" validate:"required,oneof=male female"`
	AgeCategory  string `json:"age_category" validate:"required,oneof=adult child"`
	Relationship string `json:"relationship" validate:"max=50"`
}

type CreateBookingRequest struct {
	PropertyID   int64                `json:"property_id" validate:"required,gt=0"`
	CheckIn      string               `json:"check_in" validate:"required,date"`
	CheckOut     string               `json:"check_out" validate:"required,date"`
	Guests       GuestCounts          `json:"guests"`
	GuestDetails []GuestDetailRequest `json:"guest_details" validate:"omitempty,dive"`
	DPPercentage int                  `json:"dp_percentage" validate:"required,gt=0,lte=100"`
	GuestName    string               `json:"guest_name" validate:"required,max=255"`
	GuestEmail   string               `json:"guest_email" validate:"required,email,max=255"`
	GuestPhone   string               `json:"guest_phone" validate:"required,min=6,max=32"`
	Notes        string               `json:"notes" validate:"max=1000"`
}

type QuoteRequest struct {
	PropertyID int64       `json:"property_id" validate:"required,gt=0"`
	CheckIn    string      `json:"check_in" validate:"required,date"`
	CheckOut   string      `json:"check_out" validate:"required,date"`
	Guests     GuestCounts `json:"guests"`
}

type SubmitPaymentRequest struct {
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	Method   string `json:"payment_method" validate:"required,oneof=bank_transfer cash card e_wallet"`
	ProofRef string `json:"proof_ref" validate:"max=500"`
}

type VerifyBookingRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type BookingResponse struct {
	Booking  *Booking          `json:"booking"`
	Payments []payment.Payment `json:"payments,omitempty"`
	Summary  *PaymentSummary   `json:"payment_summary,omitempty"`
	Allowed  []Action          `json:"allowed_actions"`
}

type PaymentSummary struct {
	payment.Summary
	PendingAmount int64 `json:"pending_amount"`
}

type ListResponse struct {
	Bookings []Booking `json:"bookings"`
	Total    int64     `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

type CalendarResponse struct {
	PropertyID int64               `json:"property_id"`
	From       string              `json:"from"`
	To         string              `json:"to"`
	Available  bool                `json:"available"`
	Bookings   []availability.Span `json:"bookings"`
}
