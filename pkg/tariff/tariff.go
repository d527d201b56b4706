package tariff

import (
	"errors"
	"fmt"
	"math"
)

// Slab is one tier of a tiered electricity tariff. Units is the number of
// kWh billed at Rate before moving to the next slab. Units <= 0 marks the
// slab as unbounded, which is only valid for the final slab.
type Slab struct {
	Units float64 `yaml:"units" json:"units"`
	Rate  float64 `yaml:"rate" json:"rate"`
}

// Unbounded reports whether the slab absorbs all remaining consumption.
func (s Slab) Unbounded() bool {
	return s.Units <= 0 || math.IsInf(s.Units, 1)
}

func (s Slab) capacity() float64 {
	if s.Unbounded() {
		return math.Inf(1)
	}
	return s.Units
}

// Schedule is an ordered list of slabs applied greedily from the first.
type Schedule struct {
	Slabs []Slab
}

var (
	ErrEmptySchedule   = errors.New("tariff schedule has no slabs")
	ErrBoundedLastSlab = errors.New("final tariff slab must be unbounded")
)

// DefaultSlabs is the residential schedule the service ships with (PKR/kWh).
func DefaultSlabs() []Slab {
	return []Slab{
		{Units: 50, Rate: 3.95},
		{Units: 50, Rate: 7.74},
		{Units: 100, Rate: 10.06},
		{Units: 100, Rate: 12.15},
		{Units: 400, Rate: 19.55},
		{Units: 0, Rate: 35.22},
	}
}

// ValidateSlabs checks that slabs is a usable schedule: non-empty,
// non-negative rates, only the last slab unbounded and the last slab
// unbounded so every consumption volume has a defined cost.
func ValidateSlabs(slabs []Slab) error {
	if len(slabs) == 0 {
		return ErrEmptySchedule
	}
	for i, s := range slabs {
		if s.Rate < 0 || math.IsNaN(s.Rate) {
			return fmt.Errorf("slab %d: rate must be >= 0, got %v", i, s.Rate)
		}
		if i < len(slabs)-1 && s.Unbounded() {
			return fmt.Errorf("slab %d: only the final slab may be unbounded", i)
		}
	}
	if !slabs[len(slabs)-1].Unbounded() {
		return ErrBoundedLastSlab
	}
	return nil
}

// NewSchedule validates and copies slabs into a Schedule.
func NewSchedule(slabs []Slab) (*Schedule, error) {
	if err := ValidateSlabs(slabs); err != nil {
		return nil, err
	}
	cp := make([]Slab, len(slabs))
	copy(cp, slabs)
	return &Schedule{Slabs: cp}, nil
}

// Cost returns the billed amount for units kWh. Non-positive volumes cost nothing.
func (s *Schedule) Cost(units float64) float64 {
	total := 0.0
	remaining := units
	for _, slab := range s.Slabs {
		if remaining <= 0 {
			break
		}
		consumed := math.Min(remaining, slab.capacity())
		total += consumed * slab.Rate
		remaining -= consumed
	}
	return total
}

// AverageRate returns the effective per-kWh rate for units. The second
// return value is false when units is not positive and no rate is defined.
func (s *Schedule) AverageRate(units float64) (float64, bool) {
	if units <= 0 {
		return 0, false
	}
	return s.Cost(units) / units, true
}

// Breakdown is the per-slab split of a bill.
type Breakdown struct {
	Slab     int     `json:"slab"`
	Units    float64 `json:"units"`
	Rate     float64 `json:"rate"`
	Subtotal float64 `json:"subtotal"`
}

// Itemize returns how units is distributed across slabs. Slabs that receive
// no consumption are omitted.
func (s *Schedule) Itemize(units float64) []Breakdown {
	var out []Breakdown
	remaining := units
	for i, slab := range s.Slabs {
		if remaining <= 0 {
			break
		}
		consumed := math.Min(remaining, slab.capacity())
		out = append(out, Breakdown{
			Slab:     i + 1,
			Units:    consumed,
			Rate:     slab.Rate,
			Subtotal: consumed * slab.Rate,
		})
		remaining -= consumed
	}
	return out
}
