package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"propertybook/internal/domain/payment"
)

// Event is published after a transition commits.
type Event struct {
	Type               string             `json:"type"`
	BookingID          int64              `json:"booking_id"`
	BookingNumber      string             `json:"booking_number"`
	PropertyID         int64              `json:"property_id"`
	BookingStatus      Status             `json:"booking_status"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	PaymentStatus      payment.Aggregate  `json:"payment_status"`
	PaymentID          *uuid.UUID         `json:"payment_id,omitempty"`
	ActorID            *int64             `json:"actor_id,omitempty"`
	OccurredAt         time.Time          `json:"occurred_at"`
}

// emit fans the event out to every sink. Delivery is best effort: the
// transition has already committed, so failures are only logged.
func (s *Service) emit(ctx context.Context, action Action, b *Booking, paymentID *uuid.UUID, actorID *int64) {
	if len(s.sinks) == 0 || b == nil {
		return
	}
	ev := Event{
		Type:               transitions[action].event,
		BookingID:          b.ID,
		BookingNumber:      b.BookingNumber,
		PropertyID:         b.PropertyID,
		BookingStatus:      b.BookingStatus,
		VerificationStatus: b.VerificationStatus,
		PaymentStatus:      b.PaymentStatus,
		PaymentID:          paymentID,
		ActorID:            actorID,
		OccurredAt:         s.clock.Now().UTC(),
	}
	for _, sink := range s.sinks {
		if err := sink.Publish(context.WithoutCancel(ctx), ev.Type, ev); err != nil {
			s.log.Warn("event publish failed",
				zap.String("event", ev.Type),
				zap.Int64("booking_id", b.ID),
				zap.Error(err))
		}
	}
}
