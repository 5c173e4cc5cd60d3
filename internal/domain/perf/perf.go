// Package perf wraps the external scoring engine behind request validation,
// beatmap resolution, mod normalization, and an optional fingerprint cache.
package perf

import (
	"context"
	"fmt"
	"time"

	"github.com/refx-online/omajinai/internal/adapters/engine"
	"github.com/refx-online/omajinai/internal/domain/beatmap"
	"github.com/refx-online/omajinai/internal/domain/model"
	"github.com/refx-online/omajinai/internal/domain/mods"
	"github.com/refx-online/omajinai/pkg/logger"
	"github.com/refx-online/omajinai/pkg/metrics"
)

// BeatmapSource resolves beatmap ids to parsed charts.
type BeatmapSource interface {
	Get(ctx context.Context, id int64) (*beatmap.Beatmap, error)
}

// Calculator is the performance compute wrapper.
type Calculator struct {
	beatmaps BeatmapSource
	engine   engine.Engine
	results  *resultCache
	logger   logger.Logger
}

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithResultCacheSize enables the fingerprint result cache with the given
// bound. A size of zero leaves the cache disabled.
func WithResultCacheSize(size int) Option {
	return func(c *Calculator) {
		if size > 0 {
			c.results = newResultCache(size)
		}
	}
}

// WithLogger sets a custom logger for the calculator.
func WithLogger(l logger.Logger) Option {
	return func(c *Calculator) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Calculator over the given beatmap source and engine.
func New(beatmaps BeatmapSource, eng engine.Engine, opts ...Option) *Calculator {
	c := &Calculator{
		beatmaps: beatmaps,
		engine:   eng,
		logger:   logger.Get().Named("perf"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Calculate validates the request, resolves its beatmap, and invokes the
// engine. Repeated identical requests short-circuit through the fingerprint
// cache when it is enabled.
func (c *Calculator) Calculate(ctx context.Context, req *model.CalculationRequest) (model.PerformanceResult, error) {
	if err := req.Validate(); err != nil {
		return model.PerformanceResult{}, err
	}

	var key uint64
	if c.results != nil {
		key = fingerprint(req)
		if result, ok := c.results.get(key); ok {
			metrics.RecordResultCacheHit()
			return result, nil
		}
	}

	start := time.Now()
	result, err := c.calculate(ctx, req)
	metrics.RecordCalculationLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordCalculationError()
		return model.PerformanceResult{}, err
	}
	metrics.RecordCalculation()

	if c.results != nil {
		c.results.put(key, result)
	}

	c.logger.Debug(ctx, "calculated performance",
		logger.Int64("beatmap_id", req.BeatmapID),
		logger.Float64("pp", result.PP),
		logger.Float64("stars", result.Stars),
	)

	return result, nil
}

func (c *Calculator) calculate(ctx context.Context, req *model.CalculationRequest) (model.PerformanceResult, error) {
	bm, err := c.beatmaps.Get(ctx, req.BeatmapID)
	if err != nil {
		return model.PerformanceResult{}, err
	}

	spec := engine.Spec{
		Mode:             req.Mode,
		NewFormat:        req.IsNewFormat(),
		Accuracy:         &req.Accuracy,
		Combo:            req.MaxCombo,
		Misses:           req.Misses,
		PassedObjects:    req.PassedObjects,
		LegacyTotalScore: req.LegacyScore,
	}
	if req.Mods != "" {
		spec.Mods = mods.Parse(req.Mods, req.Mode)
	}

	attrs, err := c.engine.Calculate(ctx, bm, spec)
	if err != nil {
		return model.PerformanceResult{}, fmt.Errorf("calculating beatmap %d: %w", req.BeatmapID, err)
	}

	result := model.PerformanceResult{
		PP:         attrs.PP,
		Stars:      attrs.Stars,
		MaxCombo:   attrs.MaxCombo,
		PPNoMisses: attrs.PP,
	}

	// Report what the play would have been worth without misses.
	if req.Misses != nil && *req.Misses > 0 {
		noMisses := spec
		zero := 0
		noMisses.Misses = &zero
		if hypothetical, err := c.engine.Calculate(ctx, bm, noMisses); err == nil {
			result.PPNoMisses = hypothetical.PP
		} else {
			c.logger.Warn(ctx, "miss-free calculation failed",
				logger.Int64("beatmap_id", req.BeatmapID),
				logger.Error(err),
			)
		}
	}

	return result, nil
}
