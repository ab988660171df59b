package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"propertybook/internal/domain/availability"
	"propertybook/internal/domain/booking"
	"propertybook/internal/domain/payment"
	"propertybook/internal/domain/rate"
	"propertybook/internal/pkg/testdb"
)

var cal = rate.Calendar{}

func openDB(t *testing.T) *gorm.DB {
	return testdb.Open(t, &booking.Booking{}, &payment.Payment{}, &availability.NightClaim{})
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := cal.ParseDate(s)
	require.NoError(t, err)
	return d
}

// seed stores a confirmed two-night stay with its nights claimed and a
// verified down payment.
func seed(t *testing.T, db *gorm.DB, id int64, in, out string, mutate func(*booking.Booking)) *booking.Booking {
	t.Helper()
	b := &booking.Booking{
		ID:                 id,
		BookingNumber:      fmt.Sprintf("BK20261019%04d", id),
		PropertyID:         1,
		CheckIn:            date(t, in),
		CheckOut:           date(t, out),
		GuestName:          "Guest",
		GuestEmail:         "guest@example.com",
		GuestPhone:         "0812",
		GuestMale:          2,
		GuestCount:         2,
		BaseAmount:         1_000_000,
		ServiceAmount:      100_000,
		TotalAmount:        1_100_000,
		DPPercentage:       30,
		DPAmount:           330_000,
		RemainingAmount:    770_000,
		BookingStatus:      booking.StatusConfirmed,
		VerificationStatus: booking.VerificationApproved,
		PaymentStatus:      payment.AggregateDPReceived,
	}
	b.Nights = cal.Nights(b.CheckIn, b.CheckOut)
	if mutate != nil {
		mutate(b)
	}
	require.NoError(t, db.Create(b).Error)

	require.NoError(t, db.Create(&payment.Payment{
		BookingID:   id,
		Amount:      330_000,
		PaymentType: payment.TypeDownPayment,
		Method:      payment.MethodBankTransfer,
		Status:      payment.StatusVerified,
		PaymentDate: b.CheckIn,
	}).Error)

	if b.IsLive() {
		cal.EachNight(b.CheckIn, b.CheckOut, func(n time.Time) {
			require.NoError(t, db.Create(&availability.NightClaim{
				PropertyID: b.PropertyID, Night: cal.Format(n), BookingID: id,
			}).Error)
		})
	}
	return b
}

func kinds(r *Report) []Kind {
	out := make([]Kind, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, v.Kind)
	}
	return out
}

func TestAuditCleanData(t *testing.T) {
	db := openDB(t)
	seed(t, db, 1, "2026-11-02", "2026-11-04", nil)
	seed(t, db, 2, "2026-11-04", "2026-11-06", nil)
	seed(t, db, 3, "2026-11-03", "2026-11-05", func(b *booking.Booking) {
		b.BookingStatus = booking.StatusCancelled
	})

	report, err := New(db, cal, nil).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK(), "%v", report.Violations)
	assert.Equal(t, 3, report.Bookings)
	assert.Equal(t, 3, report.Payments)
}

func TestAuditFindsOverlap(t *testing.T) {
	db := openDB(t)
	seed(t, db, 1, "2026-11-02", "2026-11-08", nil)
	// Different property so the claim index accepts the nights, then moved.
	seed(t, db, 2, "2026-11-05", "2026-11-06", func(b *booking.Booking) { b.PropertyID = 2 })
	require.NoError(t, db.Model(&booking.Booking{}).Where("id = ?", 2).Update("property_id", 1).Error)

	report, err := New(db, cal, nil).Run(context.Background())
	require.NoError(t, err)
	require.Contains(t, kinds(report), KindOverlap)
	for _, v := range report.Violations {
		if v.Kind == KindOverlap {
			assert.Equal(t, int64(2), v.BookingID)
			assert.Contains(t, v.Detail, "BK202610190001")
		}
	}
}

func TestAuditFindsLedgerMismatch(t *testing.T) {
	db := openDB(t)
	seed(t, db, 1, "2026-11-02", "2026-11-04", func(b *booking.Booking) {
		b.PaymentStatus = payment.AggregateFullyPaid
	})
	seed(t, db, 2, "2026-11-10", "2026-11-12", nil)
	require.NoError(t, db.Create(&payment.Payment{
		BookingID:   2,
		Amount:      900_000,
		PaymentType: payment.TypeRemaining,
		Method:      payment.MethodCash,
		Status:      payment.StatusVerified,
		PaymentDate: date(t, "2026-11-10"),
	}).Error)

	report, err := New(db, cal, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Kind{KindPaymentStatus, KindOverpaid, KindPaymentStatus}, kinds(report))
	assert.Equal(t, int64(1), report.Violations[0].BookingID)
	assert.Equal(t, int64(2), report.Violations[1].BookingID)
}

func TestAuditFindsBrokenRows(t *testing.T) {
	db := openDB(t)
	seed(t, db, 1, "2026-11-02", "2026-11-04", func(b *booking.Booking) {
		b.RemainingAmount = 700_000
	})
	seed(t, db, 2, "2026-11-10", "2026-11-12", func(b *booking.Booking) {
		b.VerificationStatus = booking.VerificationPending
	})

	report, err := New(db, cal, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindAmounts, KindStatus}, kinds(report))
}

func TestAuditFindsStaleClaims(t *testing.T) {
	db := openDB(t)
	seed(t, db, 1, "2026-11-02", "2026-11-04", nil)
	seed(t, db, 2, "2026-11-10", "2026-11-12", nil)

	// booking 1 cancelled without releasing, booking 2 lost a night
	require.NoError(t, db.Model(&booking.Booking{}).Where("id = ?", 1).
		Update("booking_status", booking.StatusCancelled).Error)
	require.NoError(t, db.Where("booking_id = ? AND night = ?", 2, "2026-11-11").
		Delete(&availability.NightClaim{}).Error)
	require.NoError(t, db.Create(&availability.NightClaim{PropertyID: 1, Night: "2026-12-01", BookingID: 99}).Error)

	report, err := New(db, cal, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Violations, 3)
	for _, v := range report.Violations {
		assert.Equal(t, KindNightClaims, v.Kind)
	}
	assert.Contains(t, report.Violations[0].Detail, "cancelled booking still holds 2 nights")
	assert.Contains(t, report.Violations[1].Detail, "night 2026-11-11 is not claimed")
	assert.Contains(t, report.Violations[2].Detail, "belong to no booking")
}
