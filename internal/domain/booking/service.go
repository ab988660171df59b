package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"propertybook/internal/domain/availability"
	"propertybook/internal/domain/payment"
	"propertybook/internal/domain/property"
	"propertybook/internal/domain/rate"
	"propertybook/internal/pkg/metrics"
)

type Config struct {
	DownPaymentOptions            []int
	RequireFullPaymentForCheckout bool
}

type Deps struct {
	Tx           TxManager
	Bookings     BookingRepository
	Workflow     WorkflowRepository
	Payments     PaymentRepository
	Properties   PropertyReader
	Availability AvailabilityChecker
	Nights       NightGuard
	Calculator   *rate.Calculator
	Clock        TimeProvider
	Quotes       rate.QuoteCache
	Sinks        []EventSink
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	Config       Config
}

// Service is the only writer of booking, payment and workflow rows.
type Service struct {
	tx           TxManager
	bookings     BookingRepository
	workflow     WorkflowRepository
	payments     PaymentRepository
	properties   PropertyReader
	availability AvailabilityChecker
	nights       NightGuard
	calc         *rate.Calculator
	clock        TimeProvider
	quotes       rate.QuoteCache
	sinks        []EventSink
	metrics      *metrics.Metrics
	log          *zap.Logger
	cfg          Config
}

func NewService(d Deps) *Service {
	s := &Service{
		tx:           d.Tx,
		bookings:     d.Bookings,
		workflow:     d.Workflow,
		payments:     d.Payments,
		properties:   d.Properties,
		availability: d.Availability,
		nights:       d.Nights,
		calc:         d.Calculator,
		clock:        d.Clock,
		quotes:       d.Quotes,
		sinks:        d.Sinks,
		metrics:      d.Metrics,
		log:          d.Logger,
		cfg:          d.Config,
	}
	if s.calc == nil {
		s.calc = rate.NewCalculator(rate.Calendar{}, 0, rate.DefaultChildWeightPercent)
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.cfg.DownPaymentOptions == nil {
		s.cfg.DownPaymentOptions = rate.DefaultDownPaymentOptions
	}
	return s
}

func (s *Service) Calendar() rate.Calendar {
	return s.calc.Calendar
}

type GuestContact struct {
	Name  string
	Email string
	Phone string
}

type CreateBookingInput struct {
	PropertyID   int64
	CheckIn      time.Time
	CheckOut     time.Time
	Guests       rate.Guests
	GuestDetails []GuestDetail
	DPPercentage int
	Contact      GuestContact
	Notes        string
}

// CreateBooking prices the stay and stores it as pending verification. The
// availability check, the booking insert and the night claims share one
// transaction; on PostgreSQL it also holds a per-property advisory lock.
func (s *Service) CreateBooking(ctx context.Context, in CreateBookingInput) (*Booking, error) {
	if err := validateCreate(in); err != nil {
		s.observe(ActionCreate, err)
		return nil, err
	}

	prop, err := s.properties.GetByID(ctx, in.PropertyID)
	if err != nil {
		s.observe(ActionCreate, err)
		return nil, classify(err)
	}

	b, nights, err := s.price(prop, in)
	if err != nil {
		s.observe(ActionCreate, err)
		return nil, err
	}

	err = s.tx.Do(ctx, func(ctx context.Context) error {
		if err := s.nights.LockProperty(ctx, prop.ID); err != nil {
			return err
		}
		conflicts, err := s.availability.Conflicts(ctx, prop.ID, b.CheckIn, b.CheckOut)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return fmt.Errorf("%w: overlaps %s", ErrNotAvailable, spanNumbers(conflicts))
		}

		now := s.clock.Now()
		b.BookingNumber = s.nextNumber(ctx, now)
		b.CreatedAt = now
		b.UpdatedAt = now
		if err := s.bookings.Create(ctx, b); err != nil {
			if availability.IsUniqueViolation(err) {
				return fmt.Errorf("%w: booking number %s taken", ErrStorage, b.BookingNumber)
			}
			return err
		}
		if err := s.nights.Claim(ctx, prop.ID, b.ID, nights); err != nil {
			return err
		}
		return s.workflow.Append(ctx, &WorkflowEntry{
			BookingID:   b.ID,
			Step:        StepBookingCreated,
			Status:      EntryCompleted,
			ProcessedAt: now,
			Notes:       fmt.Sprintf("total=%d dp=%d%%", b.TotalAmount, b.DPPercentage),
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotAvailable) {
			s.metrics.AvailabilityConflict()
		}
		s.observe(ActionCreate, err)
		return nil, classify(err)
	}

	s.observe(ActionCreate, nil)
	s.emit(ctx, ActionCreate, b, nil, nil)
	return b, nil
}

func validateCreate(in CreateBookingInput) error {
	if in.PropertyID <= 0 {
		return validationf("property_id is required")
	}
	if strings.TrimSpace(in.Contact.Name) == "" || strings.TrimSpace(in.Contact.Email) == "" || strings.TrimSpace(in.Contact.Phone) == "" {
		return validationf("guest name, email and phone are required")
	}
	if len(in.GuestDetails) == 0 {
		return nil
	}
	if len(in.GuestDetails) != in.Guests.Total() {
		return validationf("%d guest details for %d guests", len(in.GuestDetails), in.Guests.Total())
	}
	var male, female, children int
	for i, g := range in.GuestDetails {
		if strings.TrimSpace(g.Name) == "" {
			return validationf("guest_details[%d].name is required", i)
		}
		switch g.AgeCategory {
		case AgeChild:
			children++
			continue
		case AgeAdult:
		default:
			return validationf("guest_details[%d].age_category %q", i, g.AgeCategory)
		}
		switch g.Gender {
		case GenderMale:
			male++
		case GenderFemale:
			female++
		default:
			return validationf("guest_details[%d].gender %q", i, g.Gender)
		}
	}
	if male != in.Guests.Male || female != in.Guests.Female || children != in.Guests.Children {
		return validationf("guest details do not match guest counts")
	}
	return nil
}

// price runs every caller-boundary check and the rate engine, and returns
// the unsaved booking plus the nights it will claim.
func (s *Service) price(prop *property.Property, in CreateBookingInput) (*Booking, []string, error) {
	cal := s.calc.Calendar
	checkIn, checkOut := cal.Day(in.CheckIn), cal.Day(in.CheckOut)
	nights := cal.Nights(checkIn, checkOut)
	if nights <= 0 {
		return nil, nil, fmt.Errorf("%w: %d nights", ErrInvalidDateRange, nights)
	}
	if !checkIn.After(cal.Day(s.clock.Now()).AddDate(0, 0, -1)) {
		return nil, nil, validationf("check-in %s is in the past", cal.Format(checkIn))
	}

	pricing := prop.Pricing()
	if err := rate.CheckCapacity(pricing, in.Guests); err != nil {
		return nil, nil, err
	}
	if err := s.calc.CheckMinimumStay(pricing, checkIn, nights); err != nil {
		return nil, nil, err
	}
	breakdown, err := s.calc.Calculate(pricing, checkIn, checkOut, in.Guests)
	if err != nil {
		return nil, nil, err
	}
	dp, remaining, err := rate.SplitDownPayment(breakdown.TotalAmount, in.DPPercentage, s.cfg.DownPaymentOptions)
	if err != nil {
		return nil, nil, err
	}

	var claimed []string
	cal.EachNight(checkIn, checkOut, func(n time.Time) { claimed = append(claimed, cal.Format(n)) })

	b := &Booking{
		PropertyID:         prop.ID,
		CheckIn:            checkIn,
		CheckOut:           checkOut,
		Nights:             nights,
		GuestName:          strings.TrimSpace(in.Contact.Name),
		GuestEmail:         strings.ToLower(strings.TrimSpace(in.Contact.Email)),
		GuestPhone:         strings.TrimSpace(in.Contact.Phone),
		GuestMale:          in.Guests.Male,
		GuestFemale:        in.Guests.Female,
		GuestChildren:      in.Guests.Children,
		GuestCount:         in.Guests.Total(),
		BaseAmount:         breakdown.LodgingAmount(),
		ExtraBedAmount:     breakdown.ExtraBedAmount,
		ServiceAmount:      breakdown.ServiceAmount(),
		TotalAmount:        breakdown.TotalAmount,
		DPPercentage:       in.DPPercentage,
		DPAmount:           dp,
		RemainingAmount:    remaining,
		BookingStatus:      StatusPendingVerification,
		VerificationStatus: VerificationPending,
		PaymentStatus:      payment.StatusFor(0, breakdown.TotalAmount),
		Notes:              strings.TrimSpace(in.Notes),
	}
	b.GuestDetails = in.GuestDetails
	if b.GuestDetails == nil {
		b.GuestDetails = []GuestDetail{}
	}
	b.RateBreakdown = datatypes.NewJSONType(breakdown)
	return b, claimed, nil
}

// nextNumber allocates BK{YYYYMMDD}{seq}. The counter runs in a savepoint so a
// failed allocation falls back to a random suffix without aborting creation.
func (s *Service) nextNumber(ctx context.Context, now time.Time) string {
	day := s.calc.Calendar.Day(now).Format("20060102")
	var seq int
	err := s.tx.Nested(ctx, func(ctx context.Context) error {
		var err error
		seq, err = s.bookings.NextSequence(ctx, day)
		return err
	})
	if err != nil {
		s.log.Warn("booking sequence unavailable, using random suffix", zap.String("day", day), zap.Error(err))
		return fmt.Sprintf("BK%s-%s", day, strings.ToUpper(uuid.NewString()[:8]))
	}
	return fmt.Sprintf("BK%s%04d", day, seq)
}

// CalculateRate quotes a stay without creating anything. Minimum stay is not
// enforced so what-if prices can be shown.
func (s *Service) CalculateRate(ctx context.Context, propertyID int64, checkIn, checkOut time.Time, guests rate.Guests) (rate.Breakdown, error) {
	prop, err := s.properties.GetByID(ctx, propertyID)
	if err != nil {
		return rate.Breakdown{}, classify(err)
	}

	cal := s.calc.Calendar
	key := rate.QuoteKey(prop.ID, prop.PricingVersion(), cal.Format(checkIn), cal.Format(checkOut), guests)
	if s.quotes != nil {
		cached, err := s.quotes.Get(ctx, key)
		switch {
		case err != nil:
			s.metrics.QuoteCache("error")
			s.log.Warn("quote cache read failed", zap.String("key", key), zap.Error(err))
		case cached != nil:
			s.metrics.QuoteCache("hit")
			return *cached, nil
		default:
			s.metrics.QuoteCache("miss")
		}
	}

	b, err := s.calc.Calculate(prop.Pricing(), checkIn, checkOut, guests)
	if err != nil {
		return rate.Breakdown{}, err
	}

	if s.quotes != nil {
		if err := s.quotes.Set(ctx, key, b); err != nil {
			s.log.Warn("quote cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return b, nil
}

func (s *Service) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	return b, classify(err)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*Booking, error) {
	b, err := s.bookings.GetByNumber(ctx, number)
	return b, classify(err)
}

// History returns the booking's workflow entries in processing order.
func (s *Service) History(ctx context.Context, bookingID int64) ([]WorkflowEntry, error) {
	if _, err := s.bookings.GetByID(ctx, bookingID); err != nil {
		return nil, classify(err)
	}
	entries, err := s.workflow.ListByBooking(ctx, bookingID)
	return entries, classify(err)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Booking, int64, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, validationf("unknown status %q", f.Status)
	}
	out, total, err := s.bookings.List(ctx, f)
	return out, total, classify(err)
}

func (s *Service) Payments(ctx context.Context, bookingID int64) ([]payment.Payment, payment.Summary, error) {
	list, err := s.payments.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, payment.Summary{}, classify(err)
	}
	return list, payment.Summarize(list), nil
}

// PropertyCalendar lists the live bookings holding any night in [from, to).
func (s *Service) PropertyCalendar(ctx context.Context, propertyID int64, from, to time.Time) ([]availability.Span, error) {
	cal := s.calc.Calendar
	from, to = cal.Day(from), cal.Day(to)
	if !to.After(from) {
		return nil, fmt.Errorf("%w: empty window", ErrInvalidDateRange)
	}
	if _, err := s.properties.GetByID(ctx, propertyID); err != nil {
		return nil, classify(err)
	}
	spans, err := s.availability.Conflicts(ctx, propertyID, from, to)
	return spans, classify(err)
}

func spanNumbers(spans []availability.Span) string {
	numbers := make([]string, 0, len(spans))
	for _, sp := range spans {
		numbers = append(numbers, sp.BookingNumber)
	}
	return strings.Join(numbers, ", ")
}
