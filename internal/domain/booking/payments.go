package booking

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"propertybook/internal/domain/payment"
)

// SubmitPayment records a guest payment as pending. The amount may not exceed
// the total minus what has already been verified.
func (s *Service) SubmitPayment(ctx context.Context, bookingID int64, amount int64, method payment.Method, proofRef string) (*payment.Payment, error) {
	if amount <= 0 {
		return nil, validationf("amount must be positive")
	}
	if !method.Valid() {
		return nil, validationf("unknown payment method %q", method)
	}

	var (
		p *payment.Payment
		b *Booking
	)
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.bookings.GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := checkTransition(ActionSubmitPayment, b); err != nil {
			return err
		}

		existing, err := s.payments.ListByBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		verified := payment.Summarize(existing).Verified
		if pending := payment.PendingAmount(b.TotalAmount, verified); amount > pending {
			return fmt.Errorf("%w: amount %d, pending %d", ErrAmountExceedsPending, amount, pending)
		}

		now := s.clock.Now()
		p = &payment.Payment{
			BookingID:   b.ID,
			Amount:      amount,
			PaymentType: payment.TypeFor(amount, b.TotalAmount, verified),
			Method:      method,
			ProofRef:    strings.TrimSpace(proofRef),
			Status:      payment.StatusPending,
			PaymentDate: now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.payments.Create(ctx, p); err != nil {
			return err
		}
		return s.workflow.Append(ctx, &WorkflowEntry{
			BookingID:   b.ID,
			Step:        StepPaymentSubmitted,
			Status:      EntryCompleted,
			ProcessedAt: now,
			PaymentID:   &p.ID,
			Notes:       fmt.Sprintf("%s %d via %s", p.PaymentType, p.Amount, p.Method),
		})
	})
	s.observe(ActionSubmitPayment, err)
	if err != nil {
		return nil, classify(err)
	}
	s.emit(ctx, ActionSubmitPayment, b, &p.ID, nil)
	return p, nil
}

// VerifyPayment accepts a pending payment and moves the booking's payment
// status forward from the new verified sum.
func (s *Service) VerifyPayment(ctx context.Context, paymentID uuid.UUID, actorID int64) (*payment.Payment, error) {
	return s.settlePayment(ctx, paymentID, actorID, ActionVerifyPayment, "")
}

func (s *Service) RejectPayment(ctx context.Context, paymentID uuid.UUID, actorID int64, reason string) (*payment.Payment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationf("reason is required")
	}
	return s.settlePayment(ctx, paymentID, actorID, ActionRejectPayment, reason)
}

func (s *Service) settlePayment(ctx context.Context, paymentID uuid.UUID, actorID int64, action Action, reason string) (*payment.Payment, error) {
	var (
		p *payment.Payment
		b *Booking
	)
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		// Lock order is booking then payment, the same as SubmitPayment.
		ref, err := s.payments.GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		b, err = s.bookings.GetByIDForUpdate(ctx, ref.BookingID)
		if err != nil {
			return err
		}
		p, err = s.payments.GetByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != payment.StatusPending {
			return &TransitionError{Action: action, From: "payment " + string(p.Status)}
		}

		existing, err := s.payments.ListByBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		verified := payment.Summarize(existing).Verified

		now := s.clock.Now()
		entry := &WorkflowEntry{
			BookingID:   b.ID,
			ProcessedBy: &actorID,
			ProcessedAt: now,
			PaymentID:   &p.ID,
		}
		switch action {
		case ActionVerifyPayment:
			if verified+p.Amount > b.TotalAmount {
				return fmt.Errorf("%w: verifying %d over %d already verified of %d",
					ErrAmountExceedsPending, p.Amount, verified, b.TotalAmount)
			}
			verified += p.Amount
			p.Status = payment.StatusVerified
			p.VerifiedBy = &actorID
			p.VerifiedAt = &now
			entry.Step, entry.Status = StepPaymentVerified, EntryCompleted
		default:
			p.Status = payment.StatusFailed
			p.RejectionReason = reason
			entry.Step, entry.Status = StepPaymentRejected, EntryFailed
		}
		p.UpdatedAt = now
		if err := s.payments.UpdateStatus(ctx, p); err != nil {
			return err
		}

		b.PaymentStatus = b.PaymentStatus.Advance(payment.StatusFor(verified, b.TotalAmount))
		if err := b.ValidateStatusCombination(); err != nil {
			return err
		}
		b.UpdatedAt = now
		if err := s.bookings.Save(ctx, b); err != nil {
			return err
		}

		entry.Notes = fmt.Sprintf("amount=%d verified=%d/%d %s", p.Amount, verified, b.TotalAmount, reason)
		entry.Notes = strings.TrimSpace(entry.Notes)
		return s.workflow.Append(ctx, entry)
	})
	s.observe(action, err)
	if err != nil {
		return nil, classify(err)
	}
	s.emit(ctx, action, b, &p.ID, &actorID)
	return p, nil
}
