package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"propertybook/internal/pkg/txmanager"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, p *Payment) error {
	return txmanager.DB(ctx, r.db).Create(p).Error
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return r.get(txmanager.DB(ctx, r.db), id)
}

// GetByIDForUpdate locks the payment row until the transaction ends.
func (r *Repository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return r.get(txmanager.DB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *Repository) get(db *gorm.DB, id uuid.UUID) (*Payment, error) {
	var p Payment
	err := db.Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) ListByBooking(ctx context.Context, bookingID int64) ([]Payment, error) {
	var out []Payment
	err := txmanager.DB(ctx, r.db).
		Where("booking_id = ?", bookingID).
		Order("payment_date ASC, created_at ASC").
		Find(&out).Error
	return out, err
}

// UpdateStatus writes the verification outcome of a payment.
func (r *Repository) UpdateStatus(ctx context.Context, p *Payment) error {
	return txmanager.DB(ctx, r.db).Model(&Payment{}).Where("id = ?", p.ID).Updates(map[string]any{
		"status":           p.Status,
		"verified_by":      p.VerifiedBy,
		"verified_at":      p.VerifiedAt,
		"rejection_reason": p.RejectionReason,
		"updated_at":       p.UpdatedAt,
	}).Error
}
