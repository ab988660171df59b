package booking

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Step string

const (
	StepBookingCreated   Step = "booking_created"
	StepVerification     Step = "verification"
	StepPaymentSubmitted Step = "payment_submitted"
	StepPaymentVerified  Step = "payment_verified"
	StepPaymentRejected  Step = "payment_rejected"
	StepCheckIn          Step = "check_in"
	StepCheckOut         Step = "check_out"
	StepCancellation     Step = "cancellation"
)

type EntryStatus string

const (
	EntryCompleted EntryStatus = "completed"
	EntryFailed    EntryStatus = "failed"
)

// WorkflowEntry is one line of a booking's audit trail. Rows are only ever
// inserted.
type WorkflowEntry struct {
	ID          uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	BookingID   int64       `json:"booking_id" gorm:"not null;index:idx_workflow_booking_time,priority:1"`
	Step        Step        `json:"step" gorm:"type:varchar(24);not null"`
	Status      EntryStatus `json:"status" gorm:"type:varchar(16);not null"`
	ProcessedBy *int64      `json:"processed_by"`
	ProcessedAt time.Time   `json:"processed_at" gorm:"not null;index:idx_workflow_booking_time,priority:2"`
	Notes       string      `json:"notes,omitempty" gorm:"type:text"`
	PaymentID   *uuid.UUID  `json:"payment_id,omitempty" gorm:"type:uuid"`
}

func (WorkflowEntry) TableName() string {
	return "booking_workflows"
}

func (e *WorkflowEntry) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Sequence is the per-day counter behind booking numbers.
type Sequence struct {
	Day     string `gorm:"primaryKey;size:8"`
	Counter int    `gorm:"not null"`
}

func (Sequence) TableName() string {
	return "booking_sequences"
}
