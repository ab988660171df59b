package property

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"

	"propertybook/internal/domain/rate"
)

// Catalog is the TOML document the seed command loads.
type Catalog struct {
	Properties []CatalogProperty `toml:"property"`
}

type CatalogProperty struct {
	Name                  string          `toml:"name"`
	Capacity              int             `toml:"capacity"`
	CapacityMax           int             `toml:"capacity_max"`
	BaseRate              int64           `toml:"base_rate"`
	WeekendPremiumPercent int             `toml:"weekend_premium_percent"`
	CleaningFee           int64           `toml:"cleaning_fee"`
	ExtraBedRate          int64           `toml:"extra_bed_rate"`
	MinStayWeekday        int             `toml:"min_stay_weekday"`
	MinStayWeekend        int             `toml:"min_stay_weekend"`
	MinStayPeak           int             `toml:"min_stay_peak"`
	CheckInTime           string          `toml:"check_in_time"`
	CheckOutTime          string          `toml:"check_out_time"`
	Seasons               []CatalogSeason `toml:"season"`
}

type CatalogSeason struct {
	Name           string `toml:"name"`
	Start          string `toml:"start"`
	End            string `toml:"end"`
	PremiumPercent int    `toml:"premium_percent"`
	FixedPerNight  int64  `toml:"fixed_per_night"`
	Peak           bool   `toml:"peak"`
}

// LoadCatalog decodes and validates a catalog. Season dates are read in the
// calendar's location.
func LoadCatalog(r io.Reader, cal rate.Calendar) ([]Property, error) {
	var c Catalog
	md, err := toml.NewDecoder(r).Decode(&c)
	if err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown keys %v", ErrInvalidProperty, undecoded)
	}

	out := make([]Property, 0, len(c.Properties))
	for _, cp := range c.Properties {
		p := Property{
			Name:                  cp.Name,
			Capacity:              cp.Capacity,
			CapacityMax:           cp.CapacityMax,
			BaseRate:              cp.BaseRate,
			WeekendPremiumPercent: cp.WeekendPremiumPercent,
			CleaningFee:           cp.CleaningFee,
			ExtraBedRate:          cp.ExtraBedRate,
			MinStayWeekday:        cp.MinStayWeekday,
			MinStayWeekend:        cp.MinStayWeekend,
			MinStayPeak:           cp.MinStayPeak,
			CheckInTime:           cp.CheckInTime,
			CheckOutTime:          cp.CheckOutTime,
		}
		if p.CapacityMax == 0 {
			p.CapacityMax = p.Capacity
		}
		for _, cs := range cp.Seasons {
			start, err := cal.ParseDate(cs.Start)
			if err != nil {
				return nil, fmt.Errorf("%w: %s season %q start: %v", ErrInvalidProperty, cp.Name, cs.Name, err)
			}
			end, err := cal.ParseDate(cs.End)
			if err != nil {
				return nil, fmt.Errorf("%w: %s season %q end: %v", ErrInvalidProperty, cp.Name, cs.Name, err)
			}
			p.Seasons = append(p.Seasons, SeasonalRate{
				Name:           cs.Name,
				StartDate:      start,
				EndDate:        end,
				PremiumPercent: cs.PremiumPercent,
				FixedPerNight:  cs.FixedPerNight,
				Peak:           cs.Peak,
			})
		}
		if err := Validate(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
