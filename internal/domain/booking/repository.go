package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"propertybook/internal/pkg/txmanager"
)

type ListFilter struct {
	Status     Status
	PropertyID int64
	// From and To select bookings whose stay overlaps [From, To).
	From   *time.Time
	To     *time.Time
	Search string
	Limit  int
	Offset int
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, b *Booking) error {
	return txmanager.DB(ctx, r.db).Create(b).Error
}

func (r *Repository) Save(ctx context.Context, b *Booking) error {
	return txmanager.DB(ctx, r.db).Save(b).Error
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Booking, error) {
	return r.first(txmanager.DB(ctx, r.db).Where("id = ?", id))
}

// GetByIDForUpdate locks the booking row until the transaction ends.
func (r *Repository) GetByIDForUpdate(ctx context.Context, id int64) (*Booking, error) {
	return r.first(txmanager.DB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *Repository) GetByNumber(ctx context.Context, number string) (*Booking, error) {
	return r.first(txmanager.DB(ctx, r.db).Where("booking_number = ?", strings.ToUpper(number)))
}

func (r *Repository) first(q *gorm.DB) (*Booking, error) {
	var b Booking
	err := q.First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// List runs the admin listing. Filters are composed with squirrel and
// executed through gorm so the dialect picks the placeholder style.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Booking, int64, error) {
	where := sq.And{}
	if f.Status != "" {
		where = append(where, sq.Eq{"booking_status": f.Status})
	}
	if f.PropertyID > 0 {
		where = append(where, sq.Eq{"property_id": f.PropertyID})
	}
	if f.To != nil {
		where = append(where, sq.Lt{"check_in": *f.To})
	}
	if f.From != nil {
		where = append(where, sq.Gt{"check_out": *f.From})
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		where = append(where, sq.Or{
			sq.Like{"LOWER(booking_number)": pattern},
			sq.Like{"LOWER(guest_name)": pattern},
			sq.Like{"LOWER(guest_email)": pattern},
		})
	}

	countSQL, countArgs, err := sq.Select("COUNT(*)").From("bookings").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	listSQL, listArgs, err := sq.Select("*").From("bookings").Where(where).
		OrderBy("check_in DESC", "id DESC").
		Limit(uint64(limit)).Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	db := txmanager.DB(ctx, r.db)
	var total int64
	if err := db.Raw(countSQL, countArgs...).Scan(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []Booking
	if err := db.Raw(listSQL, listArgs...).Scan(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// NextSequence increments and returns the counter for day (YYYYMMDD). The
// update takes a row lock, so concurrent callers get distinct values.
func (r *Repository) NextSequence(ctx context.Context, day string) (int, error) {
	db := txmanager.DB(ctx, r.db)
	res := db.Model(&Sequence{}).Where("day = ?", day).UpdateColumn("counter", gorm.Expr("counter + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		if err := db.Create(&Sequence{Day: day, Counter: 1}).Error; err != nil {
			return 0, err
		}
		return 1, nil
	}
	var seq Sequence
	if err := db.Where("day = ?", day).First(&seq).Error; err != nil {
		return 0, err
	}
	return seq.Counter, nil
}

type WorkflowRepo struct {
	db *gorm.DB
}

func NewWorkflowRepository(db *gorm.DB) *WorkflowRepo {
	return &WorkflowRepo{db: db}
}

func (r *WorkflowRepo) Append(ctx context.Context, e *WorkflowEntry) error {
	return txmanager.DB(ctx, r.db).Create(e).Error
}

func (r *WorkflowRepo) ListByBooking(ctx context.Context, bookingID int64) ([]WorkflowEntry, error) {
	var out []WorkflowEntry
	err := txmanager.DB(ctx, r.db).
		Where("booking_id = ?", bookingID).
		Order("processed_at ASC").
		Find(&out).Error
	return out, err
}
