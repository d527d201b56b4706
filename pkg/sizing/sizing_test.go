package sizing

import (
	"errors"
	"math"
	"sync"
	"testing"
)

func newTestCalculator(t *testing.T, p Params) *Calculator {
	t.Helper()
	c, err := NewCalculator(p)
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}
	return c
}

func TestCalculate_ReferenceExample(t *testing.T) {
	c := newTestCalculator(t, DefaultParams())

	got, err := c.Calculate(10, 5)
	if err != nil {
		t.Fatalf("Calculate(10, 5) error: %v", err)
	}
	// system_kw = 10 / (5 * 0.75) = 2.6667
	if got.SystemKW != 2.67 {
		t.Errorf("SystemKW = %v, want 2.67", got.SystemKW)
	}
	if got.PanelCount != 6 {
		t.Errorf("PanelCount = %d, want 6", got.PanelCount)
	}
	if got.InverterKW != 3.07 {
		t.Errorf("InverterKW = %v, want 3.07", got.InverterKW)
	}
	if got.BatteryKWh != 40.0 {
		t.Errorf("BatteryKWh = %v, want 40.0", got.BatteryKWh)
	}
	if got.DailyGenerationKWh != 10 {
		t.Errorf("DailyGenerationKWh = %v, want 10", got.DailyGenerationKWh)
	}
}

func TestCalculate_GenerationRoundTrip(t *testing.T) {
	c := newTestCalculator(t, DefaultParams())

	for _, daily := range []float64{0.5, 3.33, 10, 16.67, 42.1, 166.67} {
		for _, irr := range []float64{0.8, 2.5, 4.44, 5, 7.31} {
			r, err := c.Calculate(daily, irr)
			if err != nil {
				t.Fatalf("Calculate(%v, %v) error: %v", daily, irr, err)
			}
			if math.Abs(r.DailyGenerationKWh-daily) > 0.005+1e-9 {
				t.Errorf("Calculate(%v, %v).DailyGenerationKWh = %v, want ~%v", daily, irr, r.DailyGenerationKWh, daily)
			}
		}
	}
}

func TestCalculate_PanelCountIsFloor(t *testing.T) {
	p := DefaultParams()
	c := newTestCalculator(t, p)

	for _, daily := range []float64{1, 7.5, 9.99, 12.34, 29.9, 100} {
		irr := 4.2
		r, err := c.Calculate(daily, irr)
		if err != nil {
			t.Fatalf("Calculate error: %v", err)
		}
		systemKW := daily / (irr * p.SystemEfficiency)
		want := int(math.Floor(systemKW * 1000 / p.PanelWattage))
		if r.PanelCount != want {
			t.Errorf("Calculate(%v, %v).PanelCount = %d, want floor %d", daily, irr, r.PanelCount, want)
		}
	}
}

func TestCalculate_InvalidInputs(t *testing.T) {
	c := newTestCalculator(t, DefaultParams())

	tests := []struct {
		name       string
		daily, irr float64
		want       error
	}{
		{"zero irradiance", 10, 0, ErrInvalidIrradiance},
		{"negative irradiance", 10, -1, ErrInvalidIrradiance},
		{"NaN irradiance", 10, math.NaN(), ErrInvalidIrradiance},
		{"zero consumption", 0, 5, ErrInvalidConsumption},
		{"negative consumption", -3, 5, ErrInvalidConsumption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Calculate(tt.daily, tt.irr)
			if !errors.Is(err, tt.want) {
				t.Errorf("Calculate(%v, %v) error = %v, want %v", tt.daily, tt.irr, err, tt.want)
			}
		})
	}
}

func TestCalculate_CacheHit(t *testing.T) {
	c := newTestCalculator(t, DefaultParams())

	first, _ := c.Calculate(8.33, 4.5)
	second, _ := c.Calculate(8.33, 4.5)
	if first != second {
		t.Errorf("repeated Calculate returned %+v then %+v", first, second)
	}
	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Errorf("Stats() hits=%d misses=%d, want 1 and 1", st.Hits, st.Misses)
	}
	if st.Entries != 1 {
		t.Errorf("Stats().Entries = %d, want 1", st.Entries)
	}
}

func TestCalculate_CacheEvictsLeastRecentlyUsed(t *testing.T) {
	p := DefaultParams()
	p.CacheSize = 2
	c := newTestCalculator(t, p)

	c.Calculate(1, 5) // miss
	c.Calculate(2, 5) // miss
	c.Calculate(1, 5) // hit, (1,5) now most recent
	c.Calculate(3, 5) // miss, evicts (2,5)

	st := c.Stats()
	if st.Entries != 2 {
		t.Fatalf("Entries = %d, want 2", st.Entries)
	}
	if st.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", st.Evictions)
	}

	c.Calculate(1, 5)
	if got := c.Stats().Hits; got != 2 {
		t.Errorf("(1,5) should still be cached: hits = %d, want 2", got)
	}
	c.Calculate(2, 5)
	if got := c.Stats().Misses; got != 4 {
		t.Errorf("(2,5) should have been evicted: misses = %d, want 4", got)
	}
}

func TestCalculate_Concurrent(t *testing.T) {
	p := DefaultParams()
	p.CacheSize = 8
	c := newTestCalculator(t, p)

	want := compute(p, 12.5, 5.1)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r, err := c.Calculate(12.5, 5.1)
				if err != nil || r != want {
					t.Errorf("concurrent Calculate = %+v, %v", r, err)
					return
				}
				c.Calculate(float64(i*100+j+1), 4)
			}
		}(i)
	}
	wg.Wait()

	if st := c.Stats(); st.Entries > st.Capacity {
		t.Errorf("Entries %d exceeds capacity %d", st.Entries, st.Capacity)
	}
}

func TestNewCalculator_DefaultsCacheSize(t *testing.T) {
	p := DefaultParams()
	p.CacheSize = 0
	c := newTestCalculator(t, p)
	if got := c.Stats().Capacity; got != DefaultCacheSize {
		t.Errorf("Capacity = %d, want %d", got, DefaultCacheSize)
	}
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Params)
		wantErr bool
	}{
		{"defaults", func(*Params) {}, false},
		{"zero wattage", func(p *Params) { p.PanelWattage = 0 }, true},
		{"efficiency above one", func(p *Params) { p.SystemEfficiency = 1.2 }, true},
		{"zero efficiency", func(p *Params) { p.SystemEfficiency = 0 }, true},
		{"negative backup", func(p *Params) { p.BackupHours = -1 }, true},
		{"undersized inverter", func(p *Params) { p.InverterRatio = 0.9 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			if err := p.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		v      float64
		places int
		want   float64
	}{
		{2.6667, 2, 2.67},
		{3.0666, 2, 3.07},
		{333.333, 0, 333},
		{4.25, 1, 4.3},
		{-1.005, 1, -1.0},
	}
	for _, tt := range tests {
		if got := Round(tt.v, tt.places); got != tt.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.v, tt.places, got, tt.want)
		}
	}
}
