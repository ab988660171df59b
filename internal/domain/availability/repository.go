package availability

import (
	"context"
	"time"

	"gorm.io/gorm"

	"propertybook/internal/pkg/txmanager"
)

const cancelledStatus = "cancelled"

// GormRepository reads booking spans straight from the bookings table.
type GormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// ListLive returns non-cancelled bookings whose stay intersects [from, to).
func (r *GormRepository) ListLive(ctx context.Context, propertyID int64, from, to time.Time) ([]Span, error) {
	var spans []Span
	err := txmanager.DB(ctx, r.db).
		Table("bookings").
		Select("id AS booking_id, booking_number, check_in, check_out, booking_status AS status").
		Where("property_id = ? AND booking_status <> ?", propertyID, cancelledStatus).
		Where("check_in < ? AND check_out > ?", to, from).
		Order("check_in ASC").
		Scan(&spans).Error
	if err != nil {
		return nil, err
	}
	return spans, nil
}
