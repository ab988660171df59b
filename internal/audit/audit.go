// Package audit re-checks the stored booking data against the invariants the
// workflow is supposed to maintain. It only reads.
package audit

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"propertybook/internal/domain/availability"
	"propertybook/internal/domain/booking"
	"propertybook/internal/domain/payment"
	"propertybook/internal/domain/rate"
)

type Kind string

const (
	KindOverlap       Kind = "overlap"
	KindStatus        Kind = "status_combination"
	KindAmounts       Kind = "amounts"
	KindOverpaid      Kind = "overpaid"
	KindPaymentStatus Kind = "payment_status"
	KindNightClaims   Kind = "night_claims"
)

type Violation struct {
	Kind      Kind
	BookingID int64
	Detail    string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s booking=%d: %s", v.Kind, v.BookingID, v.Detail)
}

type Report struct {
	Bookings   int
	Payments   int
	Violations []Violation
}

func (r *Report) OK() bool { return len(r.Violations) == 0 }

func (r *Report) add(kind Kind, bookingID int64, format string, args ...any) {
	r.Violations = append(r.Violations, Violation{Kind: kind, BookingID: bookingID, Detail: fmt.Sprintf(format, args...)})
}

type Auditor struct {
	db  *gorm.DB
	cal rate.Calendar
	log *zap.Logger
}

func New(db *gorm.DB, cal rate.Calendar, log *zap.Logger) *Auditor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Auditor{db: db, cal: cal, log: log}
}

// Run loads every booking, payment and night claim and reports each broken
// invariant it finds. An error means the data could not be read.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	db := a.db.WithContext(ctx)

	var bookings []booking.Booking
	if err := db.Order("property_id ASC, check_in ASC, id ASC").Find(&bookings).Error; err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	var payments []payment.Payment
	if err := db.Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	var claims []availability.NightClaim
	if err := db.Find(&claims).Error; err != nil {
		return nil, fmt.Errorf("load night claims: %w", err)
	}

	report := &Report{Bookings: len(bookings), Payments: len(payments)}

	byBooking := make(map[int64][]payment.Payment)
	for _, p := range payments {
		byBooking[p.BookingID] = append(byBooking[p.BookingID], p)
	}
	claimed := make(map[int64][]string)
	for _, c := range claims {
		claimed[c.BookingID] = append(claimed[c.BookingID], c.Night)
	}

	for i := range bookings {
		b := &bookings[i]
		if err := b.ValidateStatusCombination(); err != nil {
			report.add(KindStatus, b.ID, "%v", err)
		}
		if err := b.ValidateAmounts(); err != nil {
			report.add(KindAmounts, b.ID, "%v", err)
		}
		a.checkLedger(report, b, byBooking[b.ID])
		a.checkClaims(report, b, claimed[b.ID])
		delete(claimed, b.ID)
	}
	for id, nights := range claimed {
		report.add(KindNightClaims, id, "%d claimed nights belong to no booking", len(nights))
	}

	checkOverlaps(report, bookings)

	sort.SliceStable(report.Violations, func(i, j int) bool {
		return report.Violations[i].BookingID < report.Violations[j].BookingID
	})
	for _, v := range report.Violations {
		a.log.Warn("invariant violated",
			zap.String("kind", string(v.Kind)),
			zap.Int64("booking_id", v.BookingID),
			zap.String("detail", v.Detail),
		)
	}
	return report, nil
}

func (a *Auditor) checkLedger(report *Report, b *booking.Booking, payments []payment.Payment) {
	sum := payment.Summarize(payments)
	if sum.Verified > b.TotalAmount {
		report.add(KindOverpaid, b.ID, "verified %d exceeds total %d", sum.Verified, b.TotalAmount)
	}
	if want := payment.StatusFor(sum.Verified, b.TotalAmount); b.PaymentStatus != want {
		report.add(KindPaymentStatus, b.ID, "payment status %s, ledger says %s", b.PaymentStatus, want)
	}
}

func (a *Auditor) checkClaims(report *Report, b *booking.Booking, nights []string) {
	if !b.IsLive() {
		if len(nights) > 0 {
			report.add(KindNightClaims, b.ID, "cancelled booking still holds %d nights", len(nights))
		}
		return
	}

	want := make(map[string]bool)
	a.cal.EachNight(b.CheckIn, b.CheckOut, func(night time.Time) {
		want[a.cal.Format(night)] = true
	})
	got := make(map[string]bool, len(nights))
	for _, n := range nights {
		got[n] = true
		if !want[n] {
			report.add(KindNightClaims, b.ID, "claims night %s outside its stay", n)
		}
	}
	for n := range want {
		if !got[n] {
			report.add(KindNightClaims, b.ID, "night %s is not claimed", n)
		}
	}
}

// checkOverlaps expects bookings ordered by property then check-in.
func checkOverlaps(report *Report, bookings []booking.Booking) {
	var prev *booking.Booking
	for i := range bookings {
		b := &bookings[i]
		if !b.IsLive() {
			continue
		}
		if prev != nil && prev.PropertyID == b.PropertyID &&
			availability.Overlaps(prev.CheckIn, prev.CheckOut, b.CheckIn, b.CheckOut) {
			report.add(KindOverlap, b.ID, "overlaps %s on property %d", prev.BookingNumber, b.PropertyID)
		}
		if prev == nil || prev.PropertyID != b.PropertyID || b.CheckOut.After(prev.CheckOut) {
			prev = b
		}
	}
}
