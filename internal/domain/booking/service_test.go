package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"propertybook/internal/domain/availability"
	"propertybook/internal/domain/payment"
	"propertybook/internal/domain/property"
	"propertybook/internal/domain/rate"
	"propertybook/internal/pkg/testdb"
	"propertybook/internal/pkg/txmanager"
)

// tickingClock advances one second per reading so workflow entries have a
// stable order.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(_ context.Context, key string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := payload.(Event)
	if ev.Type != key {
		return errors.New("routing key mismatch")
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

type failingSink struct{}

func (failingSink) Publish(context.Context, string, any) error { return errors.New("broker down") }

// failingWorkflow lets every call through until err is set, then fails Append.
type failingWorkflow struct {
	WorkflowRepository
	err error
}

func (w *failingWorkflow) Append(ctx context.Context, e *WorkflowEntry) error {
	if w.err != nil {
		return w.err
	}
	return w.WorkflowRepository.Append(ctx, e)
}

type mapQuoteCache struct {
	mu   sync.Mutex
	data map[string]rate.Breakdown
}

func (c *mapQuoteCache) Get(_ context.Context, key string) (*rate.Breakdown, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (c *mapQuoteCache) Set(_ context.Context, key string, b rate.Breakdown) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

type fixture struct {
	db     *gorm.DB
	svc    *Service
	villa  *property.Property
	claims *availability.ClaimStore
	sink   *recordingSink
	quotes *mapQuoteCache
}

type fixtureOption func(*Deps)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	db := testdb.Open(t,
		&property.Property{}, &property.SeasonalRate{},
		&Booking{}, &WorkflowEntry{}, &Sequence{},
		&payment.Payment{}, &availability.NightClaim{},
	)
	villa := &property.Property{
		Name:                  "Villa Senja",
		Capacity:              2,
		CapacityMax:           6,
		BaseRate:              500000,
		WeekendPremiumPercent: 20,
		CleaningFee:           100000,
		ExtraBedRate:          150000,
	}
	require.NoError(t, db.Create(villa).Error)

	f := &fixture{
		db:     db,
		villa:  villa,
		claims: availability.NewClaimStore(db),
		sink:   &recordingSink{},
		quotes: &mapQuoteCache{data: map[string]rate.Breakdown{}},
	}
	deps := Deps{
		Tx:           txmanager.New(db),
		Bookings:     NewRepository(db),
		Workflow:     NewWorkflowRepository(db),
		Payments:     payment.NewRepository(db),
		Properties:   property.NewRepository(db),
		Availability: availability.NewChecker(availability.NewRepository(db)),
		Nights:       f.claims,
		Calculator:   rate.NewCalculator(rate.NewCalendar(time.UTC, nil), 0, rate.DefaultChildWeightPercent),
		Clock:        &tickingClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)},
		Quotes:       f.quotes,
		Sinks:        []EventSink{f.sink},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.svc = NewService(deps)
	return f
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := rate.NewCalendar(time.UTC, nil).ParseDate(s)
	require.NoError(t, err)
	return d
}

func (f *fixture) input(t *testing.T, checkIn, checkOut string) CreateBookingInput {
	return CreateBookingInput{
		PropertyID:   f.villa.ID,
		CheckIn:      day(t, checkIn),
		CheckOut:     day(t, checkOut),
		Guests:       rate.Guests{Male: 2, Female: 1},
		DPPercentage: 30,
		Contact:      GuestContact{Name: "Rina Wijaya", Email: "Rina@Example.com", Phone: "+6281234567"},
	}
}

func (f *fixture) create(t *testing.T, checkIn, checkOut string) *Booking {
	t.Helper()
	b, err := f.svc.CreateBooking(context.Background(), f.input(t, checkIn, checkOut))
	require.NoError(t, err)
	return b
}

func (f *fixture) count(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func TestCreateBookingPricesAndClaimsNights(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.create(t, "2026-10-23", "2026-10-25")

	assert.Equal(t, "BK202610190001", b.BookingNumber)
	assert.Equal(t, StatusPendingVerification, b.BookingStatus)
	assert.Equal(t, VerificationPending, b.VerificationStatus)
	assert.Equal(t, payment.AggregateDPPending, b.PaymentStatus)
	assert.Equal(t, 2, b.Nights)
	assert.Equal(t, 3, b.GuestCount)
	assert.Equal(t, "rina@example.com", b.GuestEmail)

	assert.Equal(t, int64(1100000), b.BaseAmount)
	assert.Equal(t, int64(300000), b.ExtraBedAmount)
	assert.Equal(t, int64(100000), b.ServiceAmount)
	assert.Equal(t, int64(1500000), b.TotalAmount)
	assert.Equal(t, int64(450000), b.DPAmount)
	assert.Equal(t, int64(1050000), b.RemainingAmount)
	require.NoError(t, b.ValidateAmounts())

	stored, err := f.svc.GetByNumber(ctx, "bk202610190001")
	require.NoError(t, err)
	assert.Equal(t, b.ID, stored.ID)
	assert.Equal(t, int64(1500000), stored.RateBreakdown.Data().TotalAmount)
	assert.Equal(t, 1, stored.RateBreakdown.Data().WeekendNights)

	claims, err := f.claims.ListByProperty(ctx, f.villa.ID)
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, "2026-10-23", claims[0].Night)
	assert.Equal(t, "2026-10-24", claims[1].Night)

	history, err := f.svc.History(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, StepBookingCreated, history[0].Step)
	assert.Equal(t, EntryCompleted, history[0].Status)

	assert.Equal(t, []string{"booking.created"}, f.sink.types())
}

func TestCreateBookingNumbersIncrementPerDay(t *testing.T) {
	f := newFixture(t)

	first := f.create(t, "2026-10-23", "2026-10-25")
	second := f.create(t, "2026-10-25", "2026-10-27")

	assert.Equal(t, "BK202610190001", first.BookingNumber)
	assert.Equal(t, "BK202610190002", second.BookingNumber)
}

func TestCreateBookingRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	f.create(t, "2026-10-23", "2026-10-25")

	for _, tc := range []struct{ in, out string }{
		{"2026-10-23", "2026-10-25"},
		{"2026-10-22", "2026-10-24"},
		{"2026-10-24", "2026-10-26"},
		{"2026-10-20", "2026-10-30"},
	} {
		_, err := f.svc.CreateBooking(context.Background(), f.input(t, tc.in, tc.out))
		assert.ErrorIs(t, err, ErrNotAvailable, "%s -> %s", tc.in, tc.out)
		assert.Contains(t, err.Error(), "BK202610190001")
	}
	assert.Equal(t, int64(1), f.count(t, &Booking{}, "1 = 1"))

	f.create(t, "2026-10-25", "2026-10-26")
	f.create(t, "2026-10-21", "2026-10-23")
}

func TestConcurrentCreateBookingSucceedsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 4
	in := f.input(t, "2026-10-23", "2026-10-25")
	var (
		wg   sync.WaitGroup
		errs = make(chan error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateBooking(ctx, in)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrNotAvailable)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(1), f.count(t, &Booking{}, "1 = 1"))
	assert.Equal(t, int64(2), f.count(t, &availability.NightClaim{}, "property_id = ?", f.villa.ID))
}

// blindChecker reports every range as free, leaving only the night claims
// between two bookings.
type blindChecker struct{}

func (blindChecker) Conflicts(context.Context, int64, time.Time, time.Time) ([]availability.Span, error) {
	return nil, nil
}

func TestNightClaimsStopDoubleBookingWithoutOverlapCheck(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Availability = blindChecker{} })

	f.create(t, "2026-10-23", "2026-10-25")
	_, err := f.svc.CreateBooking(context.Background(), f.input(t, "2026-10-24", "2026-10-26"))

	assert.ErrorIs(t, err, ErrNotAvailable)
	assert.Equal(t, int64(1), f.count(t, &Booking{}, "1 = 1"))
	assert.Equal(t, int64(1), f.count(t, &WorkflowEntry{}, "1 = 1"))
}

func TestCreateBookingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateBookingInput)
		target error
	}{
		{"check-in in the past", func(in *CreateBookingInput) {
			in.CheckIn, in.CheckOut = day(t, "2026-10-18"), day(t, "2026-10-20")
		}, ErrValidation},
		{"zero nights", func(in *CreateBookingInput) { in.CheckOut = in.CheckIn }, ErrInvalidDateRange},
		{"reversed dates", func(in *CreateBookingInput) {
			in.CheckIn, in.CheckOut = in.CheckOut, in.CheckIn
		}, ErrInvalidDateRange},
		{"no guests", func(in *CreateBookingInput) { in.Guests = rate.Guests{} }, rate.ErrInvalidGuests},
		{"over capacity", func(in *CreateBookingInput) { in.Guests = rate.Guests{Male: 4, Female: 3} }, ErrCapacityExceeded},
		{"unsupported down payment", func(in *CreateBookingInput) { in.DPPercentage = 40 }, ErrInvalidDownPayment},
		{"missing contact", func(in *CreateBookingInput) { in.Contact.Phone = " " }, ErrValidation},
		{"unknown property", func(in *CreateBookingInput) { in.PropertyID = 999 }, ErrPropertyNotFound},
		{"details do not match counts", func(in *CreateBookingInput) {
			in.GuestDetails = []GuestDetail{
				{Name: "A", Gender: GenderMale, AgeCategory: AgeAdult},
				{Name: "B", Gender: GenderMale, AgeCategory: AgeAdult},
				{Name: "C", Gender: GenderMale, AgeCategory: AgeAdult},
			}
		}, ErrValidation},
		{"details short", func(in *CreateBookingInput) {
			in.GuestDetails = []GuestDetail{{Name: "A", Gender: GenderMale, AgeCategory: AgeAdult}}
		}, ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := f.input(t, "2026-10-23", "2026-10-25")
			tc.mutate(&in)
			_, err := f.svc.CreateBooking(ctx, in)
			assert.ErrorIs(t, err, tc.target)
		})
	}
	assert.Equal(t, int64(0), f.count(t, &Booking{}, "1 = 1"))
	assert.Empty(t, f.sink.types())
}

func TestCreateBookingWithMatchingGuestDetails(t *testing.T) {
	f := newFixture(t)
	in := f.input(t, "2026-10-23", "2026-10-25")
	in.Guests = rate.Guests{Male: 1, Female: 1, Children: 1}
	in.GuestDetails = []GuestDetail{
		{Name: "Budi", Gender: GenderMale, AgeCategory: AgeAdult, Relationship: "self"},
		{Name: "Sari", Gender: GenderFemale, AgeCategory: AgeAdult, Relationship: "spouse"},
		{Name: "Dewi", Gender: GenderFemale, AgeCategory: AgeChild, Relationship: "daughter"},
	}

	b, err := f.svc.CreateBooking(context.Background(), in)
	require.NoError(t, err)

	stored, err := f.svc.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, stored.GuestDetails, 3)
	assert.Equal(t, "Dewi", stored.GuestDetails[2].Name)
	assert.Equal(t, 1, stored.GuestChildren)
}

func TestCreateBookingMinimumStay(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Model(f.villa).Update("min_stay_weekend", 2).Error)

	in := f.input(t, "2026-10-24", "2026-10-25")
	_, err := f.svc.CreateBooking(context.Background(), in)
	assert.ErrorIs(t, err, ErrMinimumStay)

	in = f.input(t, "2026-10-22", "2026-10-23")
	_, err = f.svc.CreateBooking(context.Background(), in)
	assert.NoError(t, err)
}

func TestSubmitPaymentAboveTotalWritesNothing(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, "2026-10-23", "2026-10-25")

	_, err := f.svc.SubmitPayment(context.Background(), b.ID, 1500001, payment.MethodBankTransfer, "")

	assert.ErrorIs(t, err, ErrAmountExceedsPending)
	assert.Equal(t, int64(0), f.count(t, &payment.Payment{}, "booking_id = ?", b.ID))
	assert.Equal(t, int64(1), f.count(t, &WorkflowEntry{}, "booking_id = ?", b.ID))
}

func TestSubmitPaymentRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, "2026-10-23", "2026-10-25")
	ctx := context.Background()

	_, err := f.svc.SubmitPayment(ctx, b.ID, 0, payment.MethodCash, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.SubmitPayment(ctx, b.ID, 1000, payment.Method("cheque"), "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.SubmitPayment(ctx, 999, 1000, payment.MethodCash, "")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestCheckInOnPendingBookingIsRefused(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, "2026-10-23", "2026-10-25")

	_, err := f.svc.CheckIn(context.Background(), b.ID, 1)

	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ActionCheckIn, te.Action)
	assert.Equal(t, string(StatusPendingVerification), te.From)

	stored, err := f.svc.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingVerification, stored.BookingStatus)
	assert.Nil(t, stored.CheckedInAt)
	assert.Equal(t, int64(1), f.count(t, &WorkflowEntry{}, "booking_id = ?", b.ID))
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const admin = int64(7)

	b := f.create(t, "2026-10-23", "2026-10-25")

	b, err := f.svc.VerifyBooking(ctx, b.ID, admin, "id checked")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, b.BookingStatus)
	assert.Equal(t, VerificationApproved, b.VerificationStatus)
	require.NotNil(t, b.VerifiedBy)
	assert.Equal(t, admin, *b.VerifiedBy)

	dp, err := f.svc.SubmitPayment(ctx, b.ID, b.DPAmount, payment.MethodBankTransfer, "transfer-001.jpg")
	require.NoError(t, err)
	assert.Equal(t, payment.TypeDownPayment, dp.PaymentType)
	assert.Equal(t, payment.StatusPending, dp.Status)

	dp, err = f.svc.VerifyPayment(ctx, dp.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusVerified, dp.Status)

	b, err = f.svc.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.AggregateDPReceived, b.PaymentStatus)

	rest, err := f.svc.SubmitPayment(ctx, b.ID, b.RemainingAmount, payment.MethodCash, "")
	require.NoError(t, err)
	assert.Equal(t, payment.TypeRemaining, rest.PaymentType)
	_, err = f.svc.VerifyPayment(ctx, rest.ID, admin)
	require.NoError(t, err)

	payments, summary, err := f.svc.Payments(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
	assert.Equal(t, int64(1500000), summary.Verified)

	b, err = f.svc.CheckIn(ctx, b.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, StatusCheckedIn, b.BookingStatus)
	assert.Equal(t, payment.AggregateFullyPaid, b.PaymentStatus)

	b, err = f.svc.CheckOut(ctx, b.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, StatusCheckedOut, b.BookingStatus)
	assert.NotNil(t, b.CheckedOutAt)

	history, err := f.svc.History(ctx, b.ID)
	require.NoError(t, err)
	steps := make([]Step, 0, len(history))
	for _, e := range history {
		steps = append(steps, e.Step)
	}
	assert.Equal(t, []Step{
		StepBookingCreated,
		StepVerification,
		StepPaymentSubmitted,
		StepPaymentVerified,
		StepPaymentSubmitted,
		StepPaymentVerified,
		StepCheckIn,
		StepCheckOut,
	}, steps)

	assert.Equal(t, []string{
		"booking.created",
		"booking.verified",
		"payment.submitted",
		"payment.verified",
		"payment.submitted",
		"payment.verified",
		"booking.checked_in",
		"booking.checked_out",
	}, f.sink.types())

	_, err = f.svc.SubmitPayment(ctx, b.ID, 1, payment.MethodCash, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestVerifyPaymentFullAmountMarksFullyPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "2026-10-23", "2026-10-25")

	p, err := f.svc.SubmitPayment(ctx, b.ID, b.TotalAmount, payment.MethodCard, "")
	require.NoError(t, err)
	assert.Equal(t, payment.TypeFull, p.PaymentType)

	_, err = f.svc.VerifyPayment(ctx, p.ID, 1)
	require.NoError(t, err)

	b, err = f.svc.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.AggregateFullyPaid, b.PaymentStatus)
	assert.Equal(t, StatusPendingVerification, b.BookingStatus)

	_, err = f.svc.VerifyPayment(ctx, p.ID, 1)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "payment verified", te.From)
}

func TestVerifyPaymentRechecksCeiling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "2026-10-23", "2026-10-25")

	first, err := f.svc.SubmitPayment(ctx, b.ID, 1000000, payment.MethodCash, "")
	require.NoError(t, err)
	second, err := f.svc.SubmitPayment(ctx, b.ID, 1000000, payment.MethodCash, "")
	require.NoError(t, err)

	_, err = f.svc.VerifyPayment(ctx, first.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.VerifyPayment(ctx, second.ID, 1)
	assert.ErrorIs(t, err, ErrAmountExceedsPending)

	var stored payment.Payment
	require.NoError(t, f.db.First(&stored, "id = ?", second.ID).Error)
	assert.Equal(t, payment.StatusPending, stored.Status)
}

func TestRejectPaymentKeepsAggregate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "2026-10-23", "2026-10-25")

	p, err := f.svc.SubmitPayment(ctx, b.ID, b.DPAmount, payment.MethodEWallet, "")
	require.NoError(t, err)

	_, err = f.svc.RejectPayment(ctx, p.ID, 1, " ")
	assert.ErrorIs(t, err, ErrValidation)

	p, err = f.svc.RejectPayment(ctx, p.ID, 1, "proof unreadable")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusFailed, p.Status)
	assert.Equal(t, "proof unreadable", p.RejectionReason)

	b, err = f.svc.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.AggregateDPPending, b.PaymentStatus)

	history, err := f.svc.History(ctx, b.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, StepPaymentRejected, last.Step)
	assert.Equal(t, EntryFailed, last.Status)
	require.NotNil(t, last.PaymentID)
	assert.Equal(t, p.ID, *last.PaymentID)

	_, err = f.svc.SubmitPayment(ctx, b.ID, b.TotalAmount, payment.MethodBankTransfer, "")
	assert.NoError(t, err)

	_, err = f.svc.VerifyPayment(ctx, p.ID, 1)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelReleasesNights(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "2026-10-23", "2026-10-25")

	_, err := f.svc.CancelBooking(ctx, b.ID, 1, "")
	assert.ErrorIs(t, err, ErrValidation)

	b, err = f.svc.CancelBooking(ctx, b.ID, 1, "guest changed plans")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, b.BookingStatus)
	assert.Equal(t, "guest changed plans", b.CancellationReason)
	assert.Equal(t, int64(0), f.count(t, &availability.NightClaim{}, "booking_id = ?", b.ID))

	_, err = f.svc.CancelBooking(ctx, b.ID, 1, "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	again := f.create(t, "2026-10-23", "2026-10-25")
	assert.NotEqual(t, b.ID, again.ID)
}

func TestCancelAfterCheckInIsRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "2026-10-23", "2026-10-25")
	_, err := f.svc.VerifyBooking(ctx, b.ID, 1, "")
	require.NoError(t, err)
	_, err = f.svc.CheckIn(ctx, b.ID, 1)
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(ctx, b.ID, 1, "no show")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRejectBookingCancelsAndFreesNights(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "2026-10-23", "2026-10-25")

	b, err := f.svc.RejectBooking(ctx, b.ID, 3, "identity mismatch")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, b.BookingStatus)
	assert.Equal(t, VerificationRejected, b.VerificationStatus)
	assert.Equal(t, int64(0), f.count(t, &availability.NightClaim{}, "booking_id = ?", b.ID))

	history, err := f.svc.History(ctx, b.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, StepVerification, last.Step)
	assert.Equal(t, EntryFailed, last.Status)

	_, err = f.svc.VerifyBooking(ctx, b.ID, 3, "")
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, string(StatusCancelled), te.From)
}

func TestCheckOutWithOutstandingBalance(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Config.RequireFullPaymentForCheckout = true })
	ctx := context.Background()
	b := f.create(t, "2026-10-23", "2026-10-25")
	_, err := f.svc.VerifyBooking(ctx, b.ID, 1, "")
	require.NoError(t, err)
	_, err = f.svc.CheckIn(ctx, b.ID, 1)
	require.NoError(t, err)

	_, err = f.svc.CheckOut(ctx, b.ID, 1)
	assert.ErrorIs(t, err, ErrOutstandingBalance)

	stored, err := f.svc.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCheckedIn, stored.BookingStatus)

	p, err := f.svc.SubmitPayment(ctx, b.ID, b.TotalAmount, payment.MethodCash, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Nil(t, p)
}

func TestEventSinkFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Sinks = []EventSink{failingSink{}} })

	b := f.create(t, "2026-10-23", "2026-10-25")
	_, err := f.svc.VerifyBooking(context.Background(), b.ID, 1, "")
	assert.NoError(t, err)
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, "2026-10-23", "2026-10-25")
	b := f.create(t, "2026-11-02", "2026-11-04")
	c := f.create(t, "2026-11-10", "2026-11-12")
	_, err := f.svc.CancelBooking(ctx, c.ID, 1, "duplicate")
	require.NoError(t, err)

	all, total, err := f.svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	assert.Equal(t, c.ID, all[0].ID)

	cancelled, total, err := f.svc.List(ctx, ListFilter{Status: StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, c.ID, cancelled[0].ID)

	found, _, err := f.svc.List(ctx, ListFilter{Search: a.BookingNumber[len(a.BookingNumber)-4:]})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, a.ID, found[0].ID)

	from, to := day(t, "2026-11-01"), day(t, "2026-11-05")
	window, _, err := f.svc.List(ctx, ListFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, b.ID, window[0].ID)

	page, total, err := f.svc.List(ctx, ListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 1)
	assert.Equal(t, b.ID, page[0].ID)

	_, _, err = f.svc.List(ctx, ListFilter{Status: "archived"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPropertyCalendar(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.create(t, "2026-10-23", "2026-10-25")
	c := f.create(t, "2026-10-27", "2026-10-29")
	_, err := f.svc.CancelBooking(ctx, c.ID, 1, "duplicate")
	require.NoError(t, err)

	spans, err := f.svc.PropertyCalendar(ctx, f.villa.ID, day(t, "2026-10-20"), day(t, "2026-10-31"))
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, a.BookingNumber, spans[0].BookingNumber)

	spans, err = f.svc.PropertyCalendar(ctx, f.villa.ID, day(t, "2026-10-25"), day(t, "2026-10-27"))
	require.NoError(t, err)
	assert.Empty(t, spans)

	_, err = f.svc.PropertyCalendar(ctx, f.villa.ID, day(t, "2026-10-25"), day(t, "2026-10-25"))
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = f.svc.PropertyCalendar(ctx, 999, day(t, "2026-10-25"), day(t, "2026-10-27"))
	assert.ErrorIs(t, err, ErrPropertyNotFound)
}

func TestCalculateRateUsesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	guests := rate.Guests{Male: 2, Female: 1}

	first, err := f.svc.CalculateRate(ctx, f.villa.ID, day(t, "2026-10-23"), day(t, "2026-10-25"), guests)
	require.NoError(t, err)
	assert.Equal(t, int64(1500000), first.TotalAmount)
	assert.Len(t, f.quotes.data, 1)

	for k, v := range f.quotes.data {
		v.TotalAmount = 1
		f.quotes.data[k] = v
	}
	second, err := f.svc.CalculateRate(ctx, f.villa.ID, day(t, "2026-10-23"), day(t, "2026-10-25"), guests)
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.TotalAmount)

	_, err = f.svc.CalculateRate(ctx, 999, day(t, "2026-10-23"), day(t, "2026-10-25"), guests)
	assert.ErrorIs(t, err, ErrPropertyNotFound)
}

func TestStorageFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = f.svc.GetBooking(context.Background(), 1)
	assert.True(t, IsRetryable(err))
}

func TestZeroTotalBookingStartsFullyPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Model(f.villa).Updates(map[string]any{
		"base_rate": 0, "cleaning_fee": 0, "extra_bed_rate": 0,
	}).Error)

	b := f.create(t, "2026-10-23", "2026-10-25")
	assert.Equal(t, int64(0), b.TotalAmount)
	assert.Equal(t, payment.AggregateFullyPaid, b.PaymentStatus)
	require.NoError(t, b.ValidateAmounts())

	_, err := f.svc.SubmitPayment(ctx, b.ID, 1, payment.MethodCash, "")
	assert.ErrorIs(t, err, ErrAmountExceedsPending)

	b, err = f.svc.VerifyBooking(ctx, b.ID, 1, "")
	require.NoError(t, err)
	b, err = f.svc.CheckIn(ctx, b.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.CheckOut(ctx, b.ID, 1)
	require.NoError(t, err)
}

func TestFailedWorkflowAppendRollsBackTransition(t *testing.T) {
	wf := &failingWorkflow{}
	f := newFixture(t, func(d *Deps) {
		wf.WorkflowRepository = d.Workflow
		d.Workflow = wf
	})
	ctx := context.Background()
	b := f.create(t, "2026-10-23", "2026-10-25")
	entries := f.count(t, &WorkflowEntry{}, "booking_id = ?", b.ID)

	wf.err = errors.New("disk full")

	_, err := f.svc.VerifyBooking(ctx, b.ID, 1, "looks fine")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	_, err = f.svc.CancelBooking(ctx, b.ID, 1, "guest asked")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	stored, err := f.svc.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingVerification, stored.BookingStatus)
	assert.Equal(t, VerificationPending, stored.VerificationStatus)
	assert.Nil(t, stored.VerifiedAt)
	assert.Nil(t, stored.CancelledAt)
	assert.Equal(t, entries, f.count(t, &WorkflowEntry{}, "booking_id = ?", b.ID))
	assert.Equal(t, int64(2), f.count(t, &availability.NightClaim{}, "booking_id = ?", b.ID))
	assert.Equal(t, []string{"booking.created"}, f.sink.types())
}

func TestFailedWorkflowAppendRollsBackPaymentSettlement(t *testing.T) {
	wf := &failingWorkflow{}
	f := newFixture(t, func(d *Deps) {
		wf.WorkflowRepository = d.Workflow
		d.Workflow = wf
	})
	ctx := context.Background()
	b := f.create(t, "2026-10-23", "2026-10-25")
	p, err := f.svc.SubmitPayment(ctx, b.ID, b.TotalAmount, payment.MethodBankTransfer, "TRX-1")
	require.NoError(t, err)
	entries := f.count(t, &WorkflowEntry{}, "booking_id = ?", b.ID)

	wf.err = errors.New("disk full")

	_, err = f.svc.VerifyPayment(ctx, p.ID, 1)
	assert.True(t, IsRetryable(err))
	_, err = f.svc.RejectPayment(ctx, p.ID, 1, "blurry proof")
	assert.True(t, IsRetryable(err))

	var stored payment.Payment
	require.NoError(t, f.db.First(&stored, "id = ?", p.ID).Error)
	assert.Equal(t, payment.StatusPending, stored.Status)
	assert.Nil(t, stored.VerifiedAt)
	assert.Empty(t, stored.RejectionReason)

	b, err = f.svc.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.AggregateDPPending, b.PaymentStatus)
	assert.Equal(t, entries, f.count(t, &WorkflowEntry{}, "booking_id = ?", b.ID))

	wf.err = nil
	_, err = f.svc.VerifyPayment(ctx, p.ID, 1)
	require.NoError(t, err)
}
