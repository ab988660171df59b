package property

import (
	"time"

	"propertybook/internal/domain/rate"
)

type Property struct {
	ID                    int64  `json:"id" gorm:"primaryKey"`
	Name                  string `json:"name" gorm:"size:255;not null"`
	Capacity              int    `json:"capacity" gorm:"not null"`
	CapacityMax           int    `json:"capacity_max" gorm:"not null"`
	BaseRate              int64  `json:"base_rate" gorm:"not null"`
	WeekendPremiumPercent int    `json:"weekend_premium_percent" gorm:"not null;default:0"`
	CleaningFee           int64  `json:"cleaning_fee" gorm:"not null;default:0"`
	ExtraBedRate          int64  `json:"extra_bed_rate" gorm:"not null;default:0"`
	MinStayWeekday        int    `json:"min_stay_weekday" gorm:"not null;default:0"`
	MinStayWeekend        int    `json:"min_stay_weekend" gorm:"not null;default:0"`
	MinStayPeak           int    `json:"min_stay_peak" gorm:"not null;default:0"`
	CheckInTime           string `json:"check_in_time" gorm:"size:5;default:'14:00'"`
	CheckOutTime          string `json:"check_out_time" gorm:"size:5;default:'12:00'"`

	Seasons []SeasonalRate `json:"seasons,omitempty" gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Property) TableName() string {
	return "properties"
}

type SeasonalRate struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	PropertyID     int64     `json:"property_id" gorm:"not null;index"`
	Name           string    `json:"name" gorm:"size:100;not null"`
	StartDate      time.Time `json:"start_date" gorm:"not null"`
	EndDate        time.Time `json:"end_date" gorm:"not null"`
	PremiumPercent int       `json:"premium_percent" gorm:"not null;default:0"`
	FixedPerNight  int64     `json:"fixed_per_night" gorm:"not null;default:0"`
	Peak           bool      `json:"peak" gorm:"not null;default:false"`
}

func (SeasonalRate) TableName() string {
	return "property_seasonal_rates"
}

// Pricing converts the property into the rate engine's input.
func (p *Property) Pricing() rate.Pricing {
	seasons := make([]rate.Season, 0, len(p.Seasons))
	for _, s := range p.Seasons {
		seasons = append(seasons, rate.Season{
			Name:           s.Name,
			Start:          s.StartDate,
			End:            s.EndDate,
			PremiumPercent: s.PremiumPercent,
			FixedPerNight:  s.FixedPerNight,
			Peak:           s.Peak,
		})
	}
	return rate.Pricing{
		BaseRate:              p.BaseRate,
		WeekendPremiumPercent: p.WeekendPremiumPercent,
		CleaningFee:           p.CleaningFee,
		ExtraBedRate:          p.ExtraBedRate,
		Capacity:              p.Capacity,
		CapacityMax:           p.CapacityMax,
		MinStayWeekday:        p.MinStayWeekday,
		MinStayWeekend:        p.MinStayWeekend,
		MinStayPeak:           p.MinStayPeak,
		Seasons:               seasons,
	}
}

// PricingVersion changes whenever the property or one of its seasons is saved.
func (p *Property) PricingVersion() time.Time {
	return p.UpdatedAt
}
