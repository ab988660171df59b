package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"propertybook/internal/pkg/txmanager"
)

// NightClaim reserves one night of one property for one booking. The unique
// index on (property_id, night) is what makes double booking impossible even
// when two transactions pass the overlap check at the same time.
type NightClaim struct {
	ID         int64     `gorm:"primaryKey"`
	PropertyID int64     `gorm:"not null;uniqueIndex:idx_property_night,priority:1"`
	Night      string    `gorm:"size:10;not null;uniqueIndex:idx_property_night,priority:2"`
	BookingID  int64     `gorm:"not null;index"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (NightClaim) TableName() string {
	return "property_night_claims"
}

type ClaimStore struct {
	db *gorm.DB
}

func NewClaimStore(db *gorm.DB) *ClaimStore {
	return &ClaimStore{db: db}
}

// LockProperty serialises creations for one property until the surrounding
// transaction ends. It is a no-op outside PostgreSQL.
func (s *ClaimStore) LockProperty(ctx context.Context, propertyID int64) error {
	db := txmanager.DB(ctx, s.db)
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := db.Exec("SELECT pg_advisory_xact_lock(?)", propertyID).Error; err != nil {
		return fmt.Errorf("advisory lock property %d: %w", propertyID, err)
	}
	return nil
}

// Claim inserts one row per night. nights are formatted calendar dates.
// A clash with an existing claim returns ErrNotAvailable.
func (s *ClaimStore) Claim(ctx context.Context, propertyID, bookingID int64, nights []string) error {
	if len(nights) == 0 {
		return nil
	}
	rows := make([]NightClaim, 0, len(nights))
	for _, n := range nights {
		rows = append(rows, NightClaim{PropertyID: propertyID, Night: n, BookingID: bookingID})
	}
	err := txmanager.DB(ctx, s.db).Create(&rows).Error
	if err == nil {
		return nil
	}
	if IsUniqueViolation(err) {
		return fmt.Errorf("%w: night already claimed", ErrNotAvailable)
	}
	return err
}

// Release frees every night held by the booking.
func (s *ClaimStore) Release(ctx context.Context, bookingID int64) error {
	return txmanager.DB(ctx, s.db).Where("booking_id = ?", bookingID).Delete(&NightClaim{}).Error
}

func (s *ClaimStore) ListByProperty(ctx context.Context, propertyID int64) ([]NightClaim, error) {
	var out []NightClaim
	err := txmanager.DB(ctx, s.db).Where("property_id = ?", propertyID).Order("night ASC").Find(&out).Error
	return out, err
}

// IsUniqueViolation recognises unique index failures from PostgreSQL, from
// gorm's translated error, and from SQLite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "unique failed")
}
