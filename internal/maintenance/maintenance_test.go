package maintenance

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/solaradvisor/solaradvisor/internal/metrics"
	"github.com/solaradvisor/solaradvisor/pkg/sizing"
)

type countFunc func(ctx context.Context) (int64, error)

func (f countFunc) Cleanup(ctx context.Context) (int64, error) { return f(ctx) }
func (f countFunc) Purge(ctx context.Context) (int64, error)   { return f(ctx) }

type fixedStats sizing.CacheStats

func (s fixedStats) Stats() sizing.CacheStats { return sizing.CacheStats(s) }

type fixedDrops uint64

func (d fixedDrops) DroppedCount() uint64 { return uint64(d) }

func TestRunOnce(t *testing.T) {
	recsBefore := testutil.ToFloat64(metrics.MaintenanceRowsPurged.WithLabelValues("recommendations"))
	geoBefore := testutil.ToFloat64(metrics.MaintenanceRowsPurged.WithLabelValues("geocode"))

	purged := 0
	r := &Runner{
		History: countFunc(func(context.Context) (int64, error) { return 4, nil }),
		Caches: map[string]Purger{
			"geocode": countFunc(func(context.Context) (int64, error) { purged++; return 2, nil }),
			"irradiance": countFunc(func(context.Context) (int64, error) {
				purged++
				return 0, errors.New("database is locked")
			}),
		},
		Sizing: fixedStats{Entries: 3, Hits: 10, Misses: 5},
		Writer: fixedDrops(7),
		Log:    logr.Discard(),
	}
	r.RunOnce(context.Background())

	if purged != 2 {
		t.Errorf("purged caches = %d, want 2", purged)
	}
	if got := testutil.ToFloat64(metrics.MaintenanceRowsPurged.WithLabelValues("recommendations")) - recsBefore; got != 4 {
		t.Errorf("recommendations purged = %v, want 4", got)
	}
	if got := testutil.ToFloat64(metrics.MaintenanceRowsPurged.WithLabelValues("geocode")) - geoBefore; got != 2 {
		t.Errorf("geocode purged = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.SizingCacheHits); got != 10 {
		t.Errorf("sizing hits gauge = %v, want 10", got)
	}
	if got := testutil.ToFloat64(metrics.SizingCacheEntries); got != 3 {
		t.Errorf("sizing entries gauge = %v, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.HistoryWritesDropped); got != 7 {
		t.Errorf("dropped gauge = %v, want 7", got)
	}
}

func TestRunOnce_NilCollaborators(t *testing.T) {
	r := &Runner{Log: logr.Discard()}
	r.RunOnce(context.Background())
}

func TestStart_InvalidSchedule(t *testing.T) {
	r := &Runner{Log: logr.Discard()}
	if err := r.Start(context.Background(), "every tuesday"); err == nil {
		t.Error("Start with invalid schedule expected error")
	}
}

func TestStart_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{Log: logr.Discard()}
	if err := r.Start(ctx, "@hourly"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(r.cron.Entries()) != 1 {
		t.Errorf("entries = %d, want 1", len(r.cron.Entries()))
	}
	cancel()
}
