package property

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"propertybook/internal/pkg/txmanager"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetByID loads the property with its seasons ordered by start date.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Property, error) {
	var p Property
	err := txmanager.DB(ctx, r.db).
		Preload("Seasons", func(db *gorm.DB) *gorm.DB { return db.Order("start_date ASC") }).
		First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPropertyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns every property with its seasons, ordered by id.
func (r *Repository) List(ctx context.Context) ([]Property, error) {
	var out []Property
	err := txmanager.DB(ctx, r.db).
		Preload("Seasons", func(db *gorm.DB) *gorm.DB { return db.Order("start_date ASC") }).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Upsert creates or replaces a property and its seasons by name. Used by the
// seed command only.
func (r *Repository) Upsert(ctx context.Context, p *Property) error {
	if err := Validate(p); err != nil {
		return err
	}
	return txmanager.DB(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var existing Property
		err := tx.Where("name = ?", p.Name).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(p).Error
		case err != nil:
			return err
		}

		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
		if err := tx.Where("property_id = ?", p.ID).Delete(&SeasonalRate{}).Error; err != nil {
			return err
		}
		for i := range p.Seasons {
			p.Seasons[i].ID = 0
			p.Seasons[i].PropertyID = p.ID
		}
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(p).Error
	})
}

func Validate(p *Property) error {
	var problems []string
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name is required")
	}
	if p.Capacity < 1 {
		problems = append(problems, "capacity must be >= 1")
	}
	if p.CapacityMax < p.Capacity {
		problems = append(problems, "capacity_max must be >= capacity")
	}
	if p.BaseRate < 0 || p.CleaningFee < 0 || p.ExtraBedRate < 0 {
		problems = append(problems, "amounts must not be negative")
	}
	for _, s := range p.Seasons {
		if s.EndDate.Before(s.StartDate) {
			problems = append(problems, fmt.Sprintf("season %q ends before it starts", s.Name))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProperty, strings.Join(problems, "; "))
	}
	return nil
}
