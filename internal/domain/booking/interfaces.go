package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"propertybook/internal/domain/availability"
	"propertybook/internal/domain/payment"
	"propertybook/internal/domain/property"
)

type BookingRepository interface {
	Create(ctx context.Context, b *Booking) error
	Save(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id int64) (*Booking, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*Booking, error)
	GetByNumber(ctx context.Context, number string) (*Booking, error)
	List(ctx context.Context, f ListFilter) ([]Booking, int64, error)
	NextSequence(ctx context.Context, day string) (int, error)
}

// WorkflowRepository is append-only by construction.
type WorkflowRepository interface {
	Append(ctx context.Context, e *WorkflowEntry) error
	ListByBooking(ctx context.Context, bookingID int64) ([]WorkflowEntry, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *payment.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*payment.Payment, error)
	ListByBooking(ctx context.Context, bookingID int64) ([]payment.Payment, error)
	UpdateStatus(ctx context.Context, p *payment.Payment) error
}

type PropertyReader interface {
	GetByID(ctx context.Context, id int64) (*property.Property, error)
}

type AvailabilityChecker interface {
	Conflicts(ctx context.Context, propertyID int64, checkIn, checkOut time.Time) ([]availability.Span, error)
}

// NightGuard holds the storage-level reservation of nights.
type NightGuard interface {
	LockProperty(ctx context.Context, propertyID int64) error
	Claim(ctx context.Context, propertyID, bookingID int64, nights []string) error
	Release(ctx context.Context, bookingID int64) error
}

type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
	Nested(ctx context.Context, fn func(ctx context.Context) error) error
}

type TimeProvider interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// EventSink receives domain events after commit.
type EventSink interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}
