package tariff

import (
	"math"
	"testing"
)

func mustSchedule(t *testing.T, slabs []Slab) *Schedule {
	t.Helper()
	s, err := NewSchedule(slabs)
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	return s
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCost_ThreeSlabExample(t *testing.T) {
	s := mustSchedule(t, []Slab{{50, 3.95}, {50, 7.74}, {0, 10.06}})

	got := s.Cost(120)
	// 50*3.95 + 50*7.74 + 20*10.06 = 197.5 + 387 + 201.2
	if !approxEqual(got, 785.7) {
		t.Errorf("Cost(120) = %v, want 785.7", got)
	}
}

func TestCost_Zero(t *testing.T) {
	s := mustSchedule(t, DefaultSlabs())
	if got := s.Cost(0); got != 0 {
		t.Errorf("Cost(0) = %v, want 0", got)
	}
	if got := s.Cost(-10); got != 0 {
		t.Errorf("Cost(-10) = %v, want 0", got)
	}
}

func TestCost_DefaultSchedule(t *testing.T) {
	s := mustSchedule(t, DefaultSlabs())

	tests := []struct {
		name  string
		units float64
		want  float64
	}{
		{"within first slab", 30, 30 * 3.95},
		{"exact first boundary", 50, 50 * 3.95},
		{"exact second boundary", 100, 50*3.95 + 50*7.74},
		{"exact third boundary", 200, 50*3.95 + 50*7.74 + 100*10.06},
		{"into unbounded slab", 1000, 50*3.95 + 50*7.74 + 100*10.06 + 100*12.15 + 400*19.55 + 300*35.22},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Cost(tt.units); !approxEqual(got, tt.want) {
				t.Errorf("Cost(%v) = %v, want %v", tt.units, got, tt.want)
			}
		})
	}
}

func TestCost_Monotonic(t *testing.T) {
	s := mustSchedule(t, DefaultSlabs())
	prev := s.Cost(0)
	for u := 0.5; u <= 2000; u += 0.5 {
		c := s.Cost(u)
		if c < prev {
			t.Fatalf("Cost not monotonic: Cost(%v) = %v < Cost(%v) = %v", u, c, u-0.5, prev)
		}
		prev = c
	}
}

func TestCost_HugeVolumeTerminates(t *testing.T) {
	s := mustSchedule(t, DefaultSlabs())
	got := s.Cost(1e9)
	if math.IsInf(got, 0) || math.IsNaN(got) {
		t.Fatalf("Cost(1e9) = %v, want finite", got)
	}
}

func TestAverageRate(t *testing.T) {
	s := mustSchedule(t, []Slab{{50, 3.95}, {50, 7.74}, {0, 10.06}})

	if _, ok := s.AverageRate(0); ok {
		t.Error("AverageRate(0) ok = true, want false")
	}
	rate, ok := s.AverageRate(120)
	if !ok {
		t.Fatal("AverageRate(120) ok = false, want true")
	}
	if !approxEqual(rate, 785.7/120) {
		t.Errorf("AverageRate(120) = %v, want %v", rate, 785.7/120)
	}
}

func TestItemize(t *testing.T) {
	s := mustSchedule(t, []Slab{{50, 3.95}, {50, 7.74}, {0, 10.06}})

	items := s.Itemize(120)
	if len(items) != 3 {
		t.Fatalf("len(Itemize(120)) = %d, want 3", len(items))
	}
	total := 0.0
	for _, it := range items {
		total += it.Subtotal
	}
	if !approxEqual(total, s.Cost(120)) {
		t.Errorf("sum of subtotals = %v, want %v", total, s.Cost(120))
	}
	if items[2].Units != 20 {
		t.Errorf("third slab units = %v, want 20", items[2].Units)
	}

	if got := s.Itemize(0); len(got) != 0 {
		t.Errorf("Itemize(0) = %v, want empty", got)
	}
}

func TestValidateSlabs(t *testing.T) {
	tests := []struct {
		name    string
		slabs   []Slab
		wantErr bool
	}{
		{"default", DefaultSlabs(), false},
		{"single unbounded", []Slab{{0, 10}}, false},
		{"infinite units", []Slab{{50, 1}, {math.Inf(1), 2}}, false},
		{"empty", nil, true},
		{"bounded last", []Slab{{50, 1}, {50, 2}}, true},
		{"unbounded in middle", []Slab{{0, 1}, {0, 2}}, true},
		{"negative rate", []Slab{{50, -1}, {0, 2}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlabs(tt.slabs)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSlabs() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewSchedule_CopiesSlabs(t *testing.T) {
	slabs := DefaultSlabs()
	s := mustSchedule(t, slabs)
	slabs[0].Rate = 1000
	if s.Slabs[0].Rate == 1000 {
		t.Error("NewSchedule shares the caller's slice")
	}
}
