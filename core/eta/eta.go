// Package eta estimates travel time between two points. A network routing
// provider is consulted when configured; lookups are bounded by a timeout
// and never fail the caller.
package eta

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/ers/core/geo"
	"github.com/kilianp07/ers/core/logger"
	"github.com/kilianp07/ers/core/model"
)

// Provider returns the driving duration between two points.
type Provider interface {
	Duration(ctx context.Context, from, to model.Point) (time.Duration, error)
}

// Source tells where an estimate came from.
type Source string

const (
	SourceProvider Source = "provider"
	SourceFallback Source = "straight_line"
	SourceNone     Source = "none"
)

// DefaultTimeout bounds a single provider lookup.
const DefaultTimeout = 3 * time.Second

// Estimate is an optional duration in seconds.
type Estimate struct {
	Seconds *float64
	Source  Source
	Err     error
}

// Add sums two estimates. The result is empty if either side is.
func (e Estimate) Add(o Estimate) Estimate {
	if e.Seconds == nil || o.Seconds == nil {
		err := e.Err
		if err == nil {
			err = o.Err
		}
		return Estimate{Source: SourceNone, Err: err}
	}
	s := *e.Seconds + *o.Seconds
	src := e.Source
	if o.Source != src {
		src = SourceFallback
	}
	return Estimate{Seconds: &s, Source: src}
}

// Estimator wraps an optional Provider. Without a provider it answers with
// the straight-line estimate at AvgSpeedKmh. With a provider, a failed or
// timed out lookup yields an empty estimate unless FallbackOnError is set.
type Estimator struct {
	Provider        Provider
	Timeout         time.Duration
	AvgSpeedKmh     float64
	FallbackOnError bool
	Logger          logger.Logger
	// OnFailure is called for every failed provider lookup.
	OnFailure func(error)
}

// Estimate returns the travel time from one point to another.
func (e *Estimator) Estimate(ctx context.Context, from, to model.Point) Estimate {
	if e == nil || e.Provider == nil {
		return e.straightLine(from, to)
	}
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	d, err := e.Provider.Duration(cctx, from, to)
	if err == nil && d < 0 {
		err = fmt.Errorf("negative duration %v", d)
	}
	if err != nil {
		err = model.Wrap(model.KindExternalService, err, "eta provider")
		if e.Logger != nil {
			e.Logger.Warnf("eta lookup %s -> %s failed: %v", from, to, err)
		}
		if e.OnFailure != nil {
			e.OnFailure(err)
		}
		if e.FallbackOnError {
			est := e.straightLine(from, to)
			est.Err = err
			return est
		}
		return Estimate{Source: SourceNone, Err: err}
	}
	s := d.Seconds()
	return Estimate{Seconds: &s, Source: SourceProvider}
}

func (e *Estimator) straightLine(from, to model.Point) Estimate {
	speed := geo.DefaultSpeedKmh
	if e != nil && e.AvgSpeedKmh > 0 {
		speed = e.AvgSpeedKmh
	}
	s := geo.ETASeconds(geo.DistanceKm(from, to), speed)
	return Estimate{Seconds: &s, Source: SourceFallback}
}
