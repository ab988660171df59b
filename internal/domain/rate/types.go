package rate

import "time"

// Pricing is the slice of a property the engine needs. It is read-only for
// the duration of one calculation.
type Pricing struct {
	BaseRate              int64
	WeekendPremiumPercent int
	CleaningFee           int64
	ExtraBedRate          int64
	Capacity              int
	CapacityMax           int
	MinStayWeekday        int
	MinStayWeekend        int
	MinStayPeak           int
	Seasons               []Season
}

// Season adds PremiumPercent of the base rate plus FixedPerNight for every
// night in [Start, End]. Both bounds are inclusive calendar dates.
type Season struct {
	Name           string
	Start          time.Time
	End            time.Time
	PremiumPercent int
	FixedPerNight  int64
	Peak           bool
}

type Guests struct {
	Male     int `json:"male"`
	Female   int `json:"female"`
	Children int `json:"children"`
}

func (g Guests) Adults() int { return g.Male + g.Female }

func (g Guests) Total() int { return g.Male + g.Female + g.Children }

type AppliedSeason struct {
	Name   string `json:"name"`
	Nights int    `json:"nights"`
	Amount int64  `json:"amount"`
	Peak   bool   `json:"peak"`
}

// Breakdown is the itemised price of a stay. All amounts are in the smallest
// currency unit.
type Breakdown struct {
	Nights        int   `json:"nights"`
	WeekdayNights int   `json:"weekday_nights"`
	WeekendNights int   `json:"weekend_nights"`
	BaseRate      int64 `json:"base_rate"`

	// BaseAmount includes the weekend premium.
	BaseAmount     int64 `json:"base_amount"`
	WeekendPremium int64 `json:"weekend_premium"`

	SeasonalPremium      int64           `json:"seasonal_premium"`
	SeasonalRatesApplied []AppliedSeason `json:"seasonal_rates_applied"`

	GuestEquivalent string `json:"guest_equivalent"`
	ExtraBeds       int    `json:"extra_beds"`
	ExtraBedAmount  int64  `json:"extra_bed_amount"`

	CleaningFee int64 `json:"cleaning_fee"`
	Subtotal    int64 `json:"subtotal"`
	TaxRateBps  int   `json:"tax_rate_bps"`
	TaxAmount   int64 `json:"tax_amount"`
	TotalAmount int64 `json:"total_amount"`
}

// ServiceAmount is the part of the total that is not lodging: cleaning and tax.
func (b Breakdown) ServiceAmount() int64 { return b.CleaningFee + b.TaxAmount }

// LodgingAmount is base, weekend and seasonal charges together.
func (b Breakdown) LodgingAmount() int64 { return b.BaseAmount + b.SeasonalPremium }
