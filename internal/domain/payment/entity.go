package payment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Type string

const (
	TypeDownPayment Type = "dp"
	TypeFull        Type = "full_payment"
	TypeRemaining   Type = "remaining_payment"
)

type Method string

const (
	MethodBankTransfer Method = "bank_transfer"
	MethodCash         Method = "cash"
	MethodCard         Method = "card"
	MethodEWallet      Method = "e_wallet"
)

func (m Method) Valid() bool {
	switch m {
	case MethodBankTransfer, MethodCash, MethodCard, MethodEWallet:
		return true
	}
	return false
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

// Payment is one payment attempt against a booking. Only the booking
// workflow creates or changes payments.
type Payment struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	BookingID       int64      `json:"booking_id" gorm:"not null;index"`
	Amount          int64      `json:"amount" gorm:"not null"`
	PaymentType     Type       `json:"payment_type" gorm:"type:varchar(20);not null"`
	Method          Method     `json:"payment_method" gorm:"type:varchar(20);not null"`
	ProofRef        string     `json:"proof_ref" gorm:"size:500"`
	Status          Status     `json:"payment_status" gorm:"type:varchar(16);not null;index;check:status IN ('pending','verified','failed')"`
	PaymentDate     time.Time  `json:"payment_date" gorm:"not null"`
	VerifiedBy      *int64     `json:"verified_by,omitempty"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty" gorm:"type:text"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
