package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/solaradvisor/solaradvisor/internal/metrics"
	"github.com/solaradvisor/solaradvisor/pkg/recommend"
)

// Service names used as breaker keys and metric labels.
const (
	ServiceGeocoder   = "geocoder"
	ServiceIrradiance = "irradiance"
	ServiceLLM        = "llm"
)

// call runs fn under the breaker for service. Errors for which benign
// returns true are passed through but counted as healthy responses.
func call(ctx context.Context, b *Breaker, service string, benign func(error) bool, fn func(context.Context) error) error {
	if b != nil && !b.Allow(service) {
		metrics.BreakerRejections.WithLabelValues(service).Inc()
		return fmt.Errorf("%s: %w", service, ErrOpen)
	}
	start := time.Now()
	err := fn(ctx)
	metrics.UpstreamLatency.WithLabelValues(service).Observe(time.Since(start).Seconds())

	// A caller giving up says nothing about the service either way.
	if err != nil && ctx.Err() != nil {
		if b != nil {
			b.Release(service)
		}
		return err
	}

	healthy := err == nil || (benign != nil && benign(err))
	if !healthy {
		metrics.UpstreamErrors.WithLabelValues(service).Inc()
	}
	if b != nil {
		if healthy {
			b.RecordSuccess(service)
		} else {
			b.RecordFailure(service)
		}
	}
	return err
}

// Geocoder guards a recommend.Geocoder. A location with no match is a
// healthy response.
type Geocoder struct {
	Next    recommend.Geocoder
	Breaker *Breaker
}

func (g *Geocoder) Resolve(ctx context.Context, location string) (recommend.Coordinates, error) {
	var out recommend.Coordinates
	err := call(ctx, g.Breaker, ServiceGeocoder,
		func(err error) bool { return errors.Is(err, recommend.ErrLocationNotFound) },
		func(ctx context.Context) error {
			var err error
			out, err = g.Next.Resolve(ctx, location)
			return err
		})
	return out, err
}

// Irradiance guards a recommend.IrradianceSource.
type Irradiance struct {
	Next    recommend.IrradianceSource
	Breaker *Breaker
}

func (i *Irradiance) AverageDailyIrradiance(ctx context.Context, loc recommend.Location) (float64, error) {
	var out float64
	err := call(ctx, i.Breaker, ServiceIrradiance,
		func(err error) bool { return errors.Is(err, recommend.ErrNoIrradianceData) },
		func(ctx context.Context) error {
			var err error
			out, err = i.Next.AverageDailyIrradiance(ctx, loc)
			return err
		})
	return out, err
}

// LanguageModel guards a recommend.LanguageModel. Text with no usable
// figure is a healthy response.
type LanguageModel struct {
	Next    recommend.LanguageModel
	Breaker *Breaker
}

func (l *LanguageModel) ExtractDailyConsumption(ctx context.Context, text string) (float64, error) {
	var out float64
	err := call(ctx, l.Breaker, ServiceLLM,
		func(err error) bool { return errors.Is(err, recommend.ErrNoEstimate) },
		func(ctx context.Context) error {
			var err error
			out, err = l.Next.ExtractDailyConsumption(ctx, text)
			return err
		})
	return out, err
}

func (l *LanguageModel) GenerateNarrative(ctx context.Context, req recommend.NarrativeRequest) (string, error) {
	var out string
	err := call(ctx, l.Breaker, ServiceLLM, nil, func(ctx context.Context) error {
		var err error
		out, err = l.Next.GenerateNarrative(ctx, req)
		return err
	})
	return out, err
}
