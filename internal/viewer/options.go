// Copyright (c) 2026 Lectern. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package viewer is the client side of document delivery: it downloads a
document, decodes it into addressable pages and drives page rendering onto a
host supplied surface.

Ownership:

	Controller ─owns─► Scheduler ─uses─► PageCache, Painter, Surface
	     │                  │
	     └── Callbacks      └── Observer (narrow, implemented for the Controller)

The Scheduler never sees the Controller. It reports back only through the
[Observer] interface.
*/
package viewer

import (
	"math"
	"time"
)

// Options holds the recognised viewer knobs. The env tags let hosts load them
// with caarlos0/env under a prefix of their choosing.
type Options struct {
	MaxCacheSize          int           `env:"MAX_CACHE_SIZE"          envDefault:"10"`
	PreloadDepth          int           `env:"PRELOAD_DEPTH"           envDefault:"2"`
	MaxRetries            int           `env:"MAX_RETRIES"             envDefault:"3"`
	ZoomStep              float64       `env:"ZOOM_STEP"               envDefault:"0.25"`
	MinZoom               float64       `env:"MIN_ZOOM"                envDefault:"0.5"`
	MaxZoom               float64       `env:"MAX_ZOOM"                envDefault:"3.0"`
	InitialZoom           float64       `env:"INITIAL_ZOOM"            envDefault:"1.2"`
	ProgressiveRendering  bool          `env:"PROGRESSIVE_RENDERING"   envDefault:"true"`
	LowFidelityFactor     float64       `env:"LOW_FIDELITY_FACTOR"     envDefault:"0.5"`
	RetryBaseDelay        time.Duration `env:"RETRY_BASE_DELAY"        envDefault:"1s"`
	FullscreenSettleDelay time.Duration `env:"FULLSCREEN_SETTLE_DELAY" envDefault:"100ms"`
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	return Options{
		MaxCacheSize:          10,
		PreloadDepth:          2,
		MaxRetries:            3,
		ZoomStep:              0.25,
		MinZoom:               0.5,
		MaxZoom:               3.0,
		InitialZoom:           1.2,
		ProgressiveRendering:  true,
		LowFidelityFactor:     0.5,
		RetryBaseDelay:        time.Second,
		FullscreenSettleDelay: 100 * time.Millisecond,
	}
}

// normalized replaces unusable values with defaults and orders the zoom bounds.
func (options Options) normalized() Options {
	defaults := DefaultOptions()

	if options.MaxCacheSize <= 0 {
		options.MaxCacheSize = defaults.MaxCacheSize
	}
	if options.PreloadDepth < 0 {
		options.PreloadDepth = 0
	}
	if options.MaxRetries < 0 {
		options.MaxRetries = 0
	}
	if options.ZoomStep <= 0 {
		options.ZoomStep = defaults.ZoomStep
	}
	if options.MinZoom <= 0 {
		options.MinZoom = defaults.MinZoom
	}
	if options.MaxZoom < options.MinZoom {
		options.MaxZoom = math.Max(defaults.MaxZoom, options.MinZoom)
	}
	if options.InitialZoom <= 0 {
		options.InitialZoom = defaults.InitialZoom
	}
	options.InitialZoom = clampZoom(options.InitialZoom, options.MinZoom, options.MaxZoom)
	if options.LowFidelityFactor <= 0 || options.LowFidelityFactor > 1 {
		options.LowFidelityFactor = defaults.LowFidelityFactor
	}
	if options.RetryBaseDelay < 0 {
		options.RetryBaseDelay = 0
	}
	if options.FullscreenSettleDelay < 0 {
		options.FullscreenSettleDelay = 0
	}

	return options
}

// backoff is the wait before retry number attempt (1-based).
func (options Options) backoff(attempt int) time.Duration {
	return options.RetryBaseDelay * time.Duration(attempt)
}

// clampZoom bounds zoom and rounds it to two decimals so repeated steps do not drift.
func clampZoom(zoom, minimum, maximum float64) float64 {
	zoom = math.Round(zoom*100) / 100
	return math.Min(math.Max(zoom, minimum), maximum)
}
