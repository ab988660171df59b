package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"propertybook/internal/domain/payment"
)

// effect mutates a locked booking and returns the workflow entry to append.
type effect func(ctx context.Context, b *Booking, now time.Time) (*WorkflowEntry, error)

// transition runs one workflow action as a single unit: lock, guard, apply,
// validate, save, log. A guard failure writes nothing.
func (s *Service) transition(ctx context.Context, bookingID, actorID int64, action Action, apply effect) (*Booking, error) {
	var out *Booking
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		b, err := s.bookings.GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := checkTransition(action, b); err != nil {
			return err
		}

		now := s.clock.Now()
		entry, err := apply(ctx, b, now)
		if err != nil {
			return err
		}
		if err := b.ValidateStatusCombination(); err != nil {
			return err
		}
		b.UpdatedAt = now
		if err := s.bookings.Save(ctx, b); err != nil {
			return err
		}

		entry.BookingID = b.ID
		entry.ProcessedAt = now
		if err := s.workflow.Append(ctx, entry); err != nil {
			return err
		}
		out = b
		return nil
	})
	s.observe(action, err)
	if err != nil {
		return nil, classify(err)
	}
	s.emit(ctx, action, out, nil, &actorID)
	return out, nil
}

func (s *Service) VerifyBooking(ctx context.Context, bookingID, actorID int64, notes string) (*Booking, error) {
	return s.transition(ctx, bookingID, actorID, ActionVerify, func(_ context.Context, b *Booking, now time.Time) (*WorkflowEntry, error) {
		b.VerificationStatus = VerificationApproved
		b.BookingStatus = StatusConfirmed
		b.VerifiedBy = &actorID
		b.VerifiedAt = &now
		return &WorkflowEntry{Step: StepVerification, Status: EntryCompleted, ProcessedBy: &actorID, Notes: strings.TrimSpace(notes)}, nil
	})
}

// RejectBooking fails verification, which also cancels the booking and frees
// its nights.
func (s *Service) RejectBooking(ctx context.Context, bookingID, actorID int64, reason string) (*Booking, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationf("reason is required")
	}
	return s.transition(ctx, bookingID, actorID, ActionReject, func(ctx context.Context, b *Booking, now time.Time) (*WorkflowEntry, error) {
		b.VerificationStatus = VerificationRejected
		b.BookingStatus = StatusCancelled
		b.VerifiedBy = &actorID
		b.VerifiedAt = &now
		b.CancelledBy = &actorID
		b.CancelledAt = &now
		b.CancellationReason = reason
		if err := s.nights.Release(ctx, b.ID); err != nil {
			return nil, err
		}
		return &WorkflowEntry{Step: StepVerification, Status: EntryFailed, ProcessedBy: &actorID, Notes: reason}, nil
	})
}

func (s *Service) CheckIn(ctx context.Context, bookingID, actorID int64) (*Booking, error) {
	return s.transition(ctx, bookingID, actorID, ActionCheckIn, func(_ context.Context, b *Booking, now time.Time) (*WorkflowEntry, error) {
		b.BookingStatus = StatusCheckedIn
		b.CheckedInAt = &now
		return &WorkflowEntry{Step: StepCheckIn, Status: EntryCompleted, ProcessedBy: &actorID}, nil
	})
}

// CheckOut closes the stay. With RequireFullPaymentForCheckout set it refuses
// while the ledger is short of the total.
func (s *Service) CheckOut(ctx context.Context, bookingID, actorID int64) (*Booking, error) {
	return s.transition(ctx, bookingID, actorID, ActionCheckOut, func(_ context.Context, b *Booking, now time.Time) (*WorkflowEntry, error) {
		if s.cfg.RequireFullPaymentForCheckout && b.PaymentStatus != payment.AggregateFullyPaid {
			return nil, fmt.Errorf("%w: payment status %s", ErrOutstandingBalance, b.PaymentStatus)
		}
		b.BookingStatus = StatusCheckedOut
		b.CheckedOutAt = &now
		return &WorkflowEntry{Step: StepCheckOut, Status: EntryCompleted, ProcessedBy: &actorID, Notes: string(b.PaymentStatus)}, nil
	})
}

func (s *Service) CancelBooking(ctx context.Context, bookingID, actorID int64, reason string) (*Booking, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationf("reason is required")
	}
	return s.transition(ctx, bookingID, actorID, ActionCancel, func(ctx context.Context, b *Booking, now time.Time) (*WorkflowEntry, error) {
		b.BookingStatus = StatusCancelled
		b.CancelledBy = &actorID
		b.CancelledAt = &now
		b.CancellationReason = reason
		if err := s.nights.Release(ctx, b.ID); err != nil {
			return nil, err
		}
		return &WorkflowEntry{Step: StepCancellation, Status: EntryCompleted, ProcessedBy: &actorID, Notes: reason}, nil
	})
}

// observe records the outcome of an action in metrics and the log.
func (s *Service) observe(action Action, err error) {
	switch {
	case err == nil:
		s.metrics.ObserveTransition(string(action), "ok")
	case IsGuardViolation(err) || IsValidation(err) || IsNotFound(err):
		s.metrics.ObserveTransition(string(action), "refused")
		s.log.Info("booking action refused", zap.String("action", string(action)), zap.Error(err))
	default:
		s.metrics.ObserveTransition(string(action), "error")
		s.log.Error("booking action failed", zap.String("action", string(action)), zap.Error(err))
	}
}
