package rate

import (
	"fmt"
	"time"
)

const (
	DefaultChildWeightPercent = 50
	bpsDenominator            = 10000
)

// Calculator prices stays. It holds no state beyond configuration and is
// safe for concurrent use.
type Calculator struct {
	Calendar           Calendar
	TaxRateBps         int
	ChildWeightPercent int
}

func NewCalculator(cal Calendar, taxRateBps, childWeightPercent int) *Calculator {
	return &Calculator{Calendar: cal, TaxRateBps: taxRateBps, ChildWeightPercent: childWeightPercent}
}

// Calculate prices the stay [checkIn, checkOut) for guests. Minimum stay and
// capacity are not enforced here; see CheckMinimumStay and CheckCapacity.
func (c *Calculator) Calculate(p Pricing, checkIn, checkOut time.Time, guests Guests) (Breakdown, error) {
	nights := c.Calendar.Nights(checkIn, checkOut)
	if nights <= 0 {
		return Breakdown{}, fmt.Errorf("%w: %d nights", ErrInvalidDateRange, nights)
	}
	if guests.Total() < 1 || guests.Male < 0 || guests.Female < 0 || guests.Children < 0 {
		return Breakdown{}, ErrInvalidGuests
	}

	b := Breakdown{
		Nights:               nights,
		BaseRate:             p.BaseRate,
		CleaningFee:          p.CleaningFee,
		TaxRateBps:           c.TaxRateBps,
		SeasonalRatesApplied: []AppliedSeason{},
	}

	c.Calendar.EachNight(checkIn, checkOut, func(night time.Time) {
		if c.Calendar.IsWeekend(night) {
			b.WeekendNights++
		} else {
			b.WeekdayNights++
		}
	})
	b.WeekendPremium = divRound(p.BaseRate*int64(p.WeekendPremiumPercent)*int64(b.WeekendNights), 100)
	b.BaseAmount = p.BaseRate*int64(nights) + b.WeekendPremium

	for _, s := range p.Seasons {
		n := 0
		c.Calendar.EachNight(checkIn, checkOut, func(night time.Time) {
			if c.Calendar.Contains(s.Start, s.End, night) {
				n++
			}
		})
		if n == 0 {
			continue
		}
		amount := divRound(p.BaseRate*int64(s.PremiumPercent)*int64(n), 100) + s.FixedPerNight*int64(n)
		b.SeasonalRatesApplied = append(b.SeasonalRatesApplied, AppliedSeason{
			Name:   s.Name,
			Nights: n,
			Amount: amount,
			Peak:   s.Peak,
		})
		b.SeasonalPremium += amount
	}

	equivalent := c.guestEquivalentPercent(guests)
	b.GuestEquivalent = formatPercent(equivalent)
	beds := ceilDiv(equivalent, 100) - int64(p.Capacity)
	if beds > 0 {
		b.ExtraBeds = int(beds)
		b.ExtraBedAmount = beds * p.ExtraBedRate * int64(nights)
	}

	b.Subtotal = b.BaseAmount + b.SeasonalPremium + b.ExtraBedAmount + b.CleaningFee
	b.TaxAmount = divRound(b.Subtotal*int64(c.TaxRateBps), bpsDenominator)
	b.TotalAmount = b.Subtotal + b.TaxAmount
	return b, nil
}

// guestEquivalentPercent is adults plus weighted children, scaled by 100.
func (c *Calculator) guestEquivalentPercent(g Guests) int64 {
	return int64(g.Adults())*100 + int64(g.Children)*int64(c.ChildWeightPercent)
}

// CheckMinimumStay applies the peak threshold when the first night is in a
// peak season, the weekend threshold when it is a weekend night, and the
// weekday threshold otherwise. Zero disables the check.
func (c *Calculator) CheckMinimumStay(p Pricing, checkIn time.Time, nights int) error {
	threshold, kind := p.MinStayWeekday, "weekday"
	switch {
	case c.inPeakSeason(p, checkIn):
		threshold, kind = p.MinStayPeak, "peak"
	case c.Calendar.IsWeekend(c.Calendar.Day(checkIn)):
		threshold, kind = p.MinStayWeekend, "weekend"
	}
	if threshold > 0 && nights < threshold {
		return fmt.Errorf("%w: %s check-in requires %d nights, got %d", ErrMinimumStay, kind, threshold, nights)
	}
	return nil
}

func (c *Calculator) inPeakSeason(p Pricing, night time.Time) bool {
	for _, s := range p.Seasons {
		if s.Peak && c.Calendar.Contains(s.Start, s.End, night) {
			return true
		}
	}
	return false
}

// CheckCapacity compares the raw head count with the property's hard limit.
// A CapacityMax of zero falls back to Capacity.
func CheckCapacity(p Pricing, g Guests) error {
	if g.Male < 0 || g.Female < 0 || g.Children < 0 || g.Total() < 1 {
		return ErrInvalidGuests
	}
	limit := p.CapacityMax
	if limit <= 0 {
		limit = p.Capacity
	}
	if g.Total() > limit {
		return fmt.Errorf("%w: %d guests, maximum %d", ErrCapacityExceeded, g.Total(), limit)
	}
	return nil
}

var DefaultDownPaymentOptions = []int{30, 50, 70, 100}

// SplitDownPayment returns the down payment and the remainder. They always
// sum to total.
func SplitDownPayment(total int64, percent int, allowed []int) (dp, remaining int64, err error) {
	if allowed == nil {
		allowed = DefaultDownPaymentOptions
	}
	ok := false
	for _, a := range allowed {
		if a == percent {
			ok = true
			break
		}
	}
	if !ok {
		return 0, 0, fmt.Errorf("%w: %d (allowed %v)", ErrInvalidDownPayment, percent, allowed)
	}
	dp = divRound(total*int64(percent), 100)
	return dp, total - dp, nil
}

// divRound divides with round-half-up (towards positive infinity on a tie).
func divRound(num, den int64) int64 {
	q, r := num/den, num%den
	if r < 0 {
		q--
		r += den
	}
	if 2*r >= den {
		q++
	}
	return q
}

func ceilDiv(num, den int64) int64 {
	q := num / den
	if num%den > 0 {
		q++
	}
	return q
}

func formatPercent(v int64) string {
	if v%100 == 0 {
		return fmt.Sprintf("%d", v/100)
	}
	return fmt.Sprintf("%d.%02d", v/100, v%100)
}
