package imagery

import (
	"context"
	"log/slog"
	"time"

	"github.com/emberline/firewatch-service/internal/observability"
)

// LayerFetcher fetches one snapshot layer from the imagery provider. A nil
// payload with nil error means the layer had no data for the request.
type LayerFetcher interface {
	FetchLayer(ctx context.Context, layer string, params FetchParams) ([]byte, error)
}

// Default layer fallback chain, most specific sensor first.
var defaultLayerChain = []string{
	"VIIRS_SNPP_CorrectedReflectance_TrueColor",
	"MODIS_Aqua_CorrectedReflectance_TrueColor",
	"MODIS_Terra_CorrectedReflectance_TrueColor",
}

// productLayerChains maps known product codes to their preferred layers.
var productLayerChains = map[string][]string{
	"MOD09GA": {"MODIS_Terra_CorrectedReflectance_TrueColor"},
	"MYD09GA": {"MODIS_Aqua_CorrectedReflectance_TrueColor"},
	"VNP09":   {"VIIRS_SNPP_CorrectedReflectance_TrueColor"},
	"ABI":     {"GOES-East_ABI_GeoColor"},
}

// LayersForProduct returns the fallback chain for a product code, or the
// default chain for unknown products.
func LayersForProduct(product string) []string {
	if chain, ok := productLayerChains[product]; ok {
		return chain
	}
	return defaultLayerChain
}

// Fetcher wraps an unreliable imagery source with retries, layer fallback,
// and a cache. Exhaustion is a soft failure: Fetch reports "absent" and the
// caller decides whether to render a labeled placeholder.
type Fetcher struct {
	source  LayerFetcher
	cache   Cache
	logger  *slog.Logger
	metrics *observability.Metrics

	maxRetries     int
	attemptTimeout time.Duration
	backoffUnit    time.Duration
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithMaxRetries bounds attempts per layer.
func WithMaxRetries(n int) FetcherOption {
	return func(f *Fetcher) { f.maxRetries = n }
}

// WithAttemptTimeout bounds each individual fetch attempt.
func WithAttemptTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.attemptTimeout = d }
}

// WithBackoffUnit scales the exponential backoff between attempts. Tests use
// a tiny unit to avoid real sleeps.
func WithBackoffUnit(d time.Duration) FetcherOption {
	return func(f *Fetcher) { f.backoffUnit = d }
}

// NewFetcher creates a retrying imagery fetcher over source and cache.
func NewFetcher(source LayerFetcher, cache Cache, logger *slog.Logger, metrics *observability.Metrics, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		source:         source,
		cache:          cache,
		logger:         logger,
		metrics:        metrics,
		maxRetries:     3,
		attemptTimeout: 30 * time.Second,
		backoffUnit:    time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the imagery payload for params, or ok=false when no layer
// produced data. The cache is consulted before any network attempt; a
// successful fetch is written to the cache as the final step, so a
// cancellation mid-attempt never leaves a partial entry.
func (f *Fetcher) Fetch(ctx context.Context, params FetchParams) ([]byte, bool) {
	key := params.Key()

	if blob, ok := f.cache.Get(key); ok {
		f.metrics.ImageryCache.WithLabelValues("hit").Inc()
		return blob, true
	}
	f.metrics.ImageryCache.WithLabelValues("miss").Inc()

	start := time.Now()
	defer func() {
		f.metrics.ImageryDuration.Observe(time.Since(start).Seconds())
	}()

	for _, layer := range LayersForProduct(params.Product) {
		blob, ok := f.fetchLayerWithRetries(ctx, layer, params)
		if ok {
			f.cache.Set(key, blob)
			return blob, true
		}
		if ctx.Err() != nil {
			return nil, false
		}
	}

	f.logger.Warn("imagery unavailable from all layers",
		"product", params.Product,
		"date", params.Date,
	)
	return nil, false
}

// fetchLayerWithRetries attempts one layer up to maxRetries times. Attempt i
// is preceded by a backoff sleep of unit·2^i for i > 0.
func (f *Fetcher) fetchLayerWithRetries(ctx context.Context, layer string, params FetchParams) ([]byte, bool) {
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if attempt > 0 {
			if !sleepWithContext(ctx, f.backoffUnit<<attempt) {
				return nil, false
			}
		}

		blob, err := f.fetchOnce(ctx, layer, params)
		if err != nil {
			f.metrics.ImageryFetches.WithLabelValues(layer, "error").Inc()
			f.logger.Warn("imagery fetch attempt failed",
				"layer", layer,
				"attempt", attempt+1,
				"max_retries", f.maxRetries,
				"error", err,
			)
			continue
		}
		if len(blob) == 0 {
			f.metrics.ImageryFetches.WithLabelValues(layer, "empty").Inc()
			continue
		}

		f.metrics.ImageryFetches.WithLabelValues(layer, "success").Inc()
		return blob, true
	}
	return nil, false
}

func (f *Fetcher) fetchOnce(ctx context.Context, layer string, params FetchParams) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.attemptTimeout)
	defer cancel()
	return f.source.FetchLayer(attemptCtx, layer, params)
}

// sleepWithContext sleeps for d or until the context is cancelled,
// reporting whether the full sleep completed.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
