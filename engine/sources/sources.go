// Package sources aggregates vehicle listings from external marketplace
// adapters, degrading to synthetic listings when every source is down.
package sources

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/WessleyAI/carseek-mvp/engine/domain"
	"github.com/WessleyAI/carseek-mvp/pkg/fn"
	"github.com/WessleyAI/carseek-mvp/pkg/metrics"
	"github.com/WessleyAI/carseek-mvp/pkg/resilience"
)

// SourceAdapter fetches candidate listings from one external marketplace.
// Adapters interpret the intent as a best-effort filter; they may return
// listings outside it.
type SourceAdapter interface {
	Name() string
	Fetch(ctx context.Context, query string, intent domain.Intent) ([]domain.Listing, error)
}

// Options configures an Aggregator.
type Options struct {
	// AdapterTimeout bounds each adapter call. Must be shorter than the
	// caller's overall deadline so one slow source cannot eat the budget.
	AdapterTimeout time.Duration
	// FallbackCount is how many synthetic listings to generate when every
	// adapter comes back empty.
	FallbackCount int
	Breaker       resilience.BreakerOpts
}

// DefaultOptions returns the production aggregator settings.
func DefaultOptions() Options {
	return Options{
		AdapterTimeout: 10 * time.Second,
		FallbackCount:  DefaultFallbackCount,
		Breaker:        resilience.DefaultBreakerOpts,
	}
}

// Aggregator fans a query out to all configured adapters and merges the
// results. It never fails: an empty merge falls back to generated listings.
type Aggregator struct {
	adapters []SourceAdapter
	breakers map[string]*resilience.Breaker
	fallback *FallbackGenerator
	opts     Options
	logger   *slog.Logger

	fetched   *metrics.Counter
	degraded  *metrics.Counter
	fallbacks *metrics.Counter
}

// NewAggregator creates an Aggregator over the given adapters. logger and
// reg may be nil.
func NewAggregator(adapters []SourceAdapter, opts Options, logger *slog.Logger, reg *metrics.Registry) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.AdapterTimeout <= 0 {
		opts.AdapterTimeout = DefaultOptions().AdapterTimeout
	}
	if opts.FallbackCount <= 0 {
		opts.FallbackCount = DefaultFallbackCount
	}
	if reg == nil {
		reg = metrics.New()
	}
	breakers := make(map[string]*resilience.Breaker, len(adapters))
	for _, a := range adapters {
		breakers[a.Name()] = resilience.NewBreaker(opts.Breaker)
	}
	return &Aggregator{
		adapters:  adapters,
		breakers:  breakers,
		fallback:  NewFallbackGenerator(),
		opts:      opts,
		logger:    logger,
		fetched:   reg.Counter("sources_listings_fetched_total", "Listings returned by source adapters"),
		degraded:  reg.Counter("sources_adapter_failures_total", "Adapter calls that failed or were short-circuited"),
		fallbacks: reg.Counter("sources_fallback_activations_total", "Searches served entirely by generated listings"),
	}
}

// FetchAll queries every adapter concurrently and returns the merged,
// de-duplicated listings. Adapter failures degrade the result instead of
// failing it; if nothing survives, the fallback generator fills in.
func (a *Aggregator) FetchAll(ctx context.Context, query string, intent domain.Intent) []domain.Listing {
	groups := fn.ParMapResult(a.adapters, len(a.adapters), func(ad SourceAdapter) fn.Result[[]domain.Listing] {
		return a.fetchOne(ctx, ad, query, intent)
	})

	var merged []domain.Listing
	for i, res := range groups {
		listings, err := res.Unwrap()
		if err != nil {
			a.degraded.Inc()
			a.logger.Warn("source adapter degraded",
				"adapter", a.adapters[i].Name(),
				"error", err,
			)
			continue
		}
		merged = append(merged, listings...)
	}

	merged = dedupe(merged)
	a.fetched.Add(int64(len(merged)))

	if len(merged) == 0 {
		a.fallbacks.Inc()
		merged = a.fallback.Generate(intent, a.opts.FallbackCount)
		a.logger.Info("all sources empty, generated fallback listings", "count", len(merged))
	}
	return merged
}

func (a *Aggregator) fetchOne(ctx context.Context, ad SourceAdapter, query string, intent domain.Intent) fn.Result[[]domain.Listing] {
	ctx, cancel := context.WithTimeout(ctx, a.opts.AdapterTimeout)
	defer cancel()

	var listings []domain.Listing
	err := a.breakers[ad.Name()].Call(ctx, func(ctx context.Context) error {
		var err error
		listings, err = ad.Fetch(ctx, query, intent)
		return err
	})
	return fn.FromPair(listings, err)
}

// dedupe keeps the first listing per identity key. VIN wins when present;
// otherwise the source URL identifies the listing.
func dedupe(listings []domain.Listing) []domain.Listing {
	valid := fn.Filter(listings, func(l domain.Listing) bool {
		return domain.ValidateListing(l) == nil
	})
	return fn.UniqueBy(valid, func(l domain.Listing) string {
		if l.VIN != "" {
			return "vin:" + strings.ToUpper(l.VIN)
		}
		return "url:" + l.URL
	})
}
