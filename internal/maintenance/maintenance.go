// Package maintenance runs the periodic housekeeping jobs: history
// retention, cache expiry and refresh of the gauge metrics.
package maintenance

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"

	"github.com/solaradvisor/solaradvisor/internal/metrics"
	"github.com/solaradvisor/solaradvisor/pkg/sizing"
)

// Purger removes expired rows and reports how many went.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// Cleaner enforces history retention.
type Cleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

// StatsSource exposes sizing cache counters.
type StatsSource interface {
	Stats() sizing.CacheStats
}

// DropCounter exposes the async writer's drop count.
type DropCounter interface {
	DroppedCount() uint64
}

// Runner wires the jobs to a cron schedule. Nil collaborators are skipped.
type Runner struct {
	History Cleaner
	Caches  map[string]Purger // keyed by metric table label
	Sizing  StatsSource
	Writer  DropCounter
	Log     logr.Logger

	cron *cron.Cron
}

// Start registers RunOnce on schedule and starts the scheduler. The
// scheduler stops when ctx is cancelled.
func (r *Runner) Start(ctx context.Context, schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", schedule, err)
	}
	r.cron = cron.New()
	if _, err := r.cron.AddFunc(schedule, func() { r.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", schedule, err)
	}
	r.cron.Start()

	go func() {
		<-ctx.Done()
		<-r.cron.Stop().Done()
	}()
	return nil
}

// RunOnce performs one maintenance pass. Failures are logged and the
// remaining jobs still run.
func (r *Runner) RunOnce(ctx context.Context) {
	if r.History != nil {
		n, err := r.History.Cleanup(ctx)
		if err != nil {
			r.Log.Error(err, "History cleanup failed")
		} else if n > 0 {
			metrics.MaintenanceRowsPurged.WithLabelValues("recommendations").Add(float64(n))
			r.Log.Info("Purged expired recommendations", "rows", n)
		}
	}

	for name, c := range r.Caches {
		n, err := c.Purge(ctx)
		if err != nil {
			r.Log.Error(err, "Cache purge failed", "cache", name)
			continue
		}
		if n > 0 {
			metrics.MaintenanceRowsPurged.WithLabelValues(name).Add(float64(n))
			r.Log.V(1).Info("Purged expired cache entries", "cache", name, "rows", n)
		}
	}

	if r.Sizing != nil {
		s := r.Sizing.Stats()
		metrics.SizingCacheHits.Set(float64(s.Hits))
		metrics.SizingCacheMisses.Set(float64(s.Misses))
		metrics.SizingCacheEntries.Set(float64(s.Entries))
	}

	if r.Writer != nil {
		dropped := r.Writer.DroppedCount()
		metrics.HistoryWritesDropped.Set(float64(dropped))
		if dropped > 0 {
			r.Log.Info("History writer drops detected", "totalDropped", dropped)
		}
	}
}
