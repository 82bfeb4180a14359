package market

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Default resolver settings.
const (
	DefaultFreshness = 24 * time.Hour
	DefaultTimeout   = 10 * time.Second
)

// Resolver resolves prices and exchange rates through a cache.
//
// Resolution follows the same steps for every key:
//   - a cache entry younger than the freshness window is returned as Fresh;
//   - otherwise the provider is asked, and the answer is cached as Refreshed;
//   - if the provider fails, any cache entry is returned as Stale;
//   - if there is none, the result is Missing.
//
// Concurrent calls for the same key share a single provider request.
// A Resolver is safe for concurrent use.
type Resolver struct {
	provider  Provider
	cache     *Cache
	freshness time.Duration
	timeout   time.Duration
	bypass    bool
	limiter   *rate.Limiter
	now       func() time.Time
	log       zerolog.Logger

	flight singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFreshness sets how long a cache entry is returned without asking the provider.
func WithFreshness(d time.Duration) Option { return func(r *Resolver) { r.freshness = d } }

// WithTimeout sets the deadline of each provider request.
func WithTimeout(d time.Duration) Option { return func(r *Resolver) { r.timeout = d } }

// WithBypass makes every resolution ask the provider first. Stale fallback still applies.
func WithBypass(bypass bool) Option { return func(r *Resolver) { r.bypass = bypass } }

// WithLimiter throttles the provider requests.
func WithLimiter(l *rate.Limiter) Option { return func(r *Resolver) { r.limiter = l } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(r *Resolver) { r.now = now } }

// WithLogger sets the logger used for fallbacks and failures.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Resolver) { r.log = log.With().Str("component", "resolver").Logger() }
}

// NewResolver returns a Resolver asking provider and remembering answers in c.
func NewResolver(provider Provider, c *Cache, opts ...Option) *Resolver {
	r := &Resolver{
		provider:  provider,
		cache:     c,
		freshness: DefaultFreshness,
		timeout:   DefaultTimeout,
		limiter:   rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now returns the resolver's current time.
func (r *Resolver) Now() time.Time { return r.now() }

// Cache returns the cache used by the resolver.
func (r *Resolver) Cache() *Cache { return r.cache }

func (r *Resolver) fresh(fetchedAt time.Time) bool {
	return !r.bypass && r.now().Sub(fetchedAt) < r.freshness
}

// call runs fn on the provider with the rate limit and request timeout applied.
func (r *Resolver) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return fn(ctx)
}

// Price resolves the current price of ticker.
func (r *Resolver) Price(ctx context.Context, ticker string) Quote {
	if e, ok := r.cache.Price(ticker); ok && r.fresh(e.FetchedAt) {
		r.log.Debug().Str("ticker", ticker).Msg("price cache hit")
		return Quote{Ticker: ticker, Value: e.Value, Currency: e.Currency, State: Fresh, FetchedAt: e.FetchedAt}
	}

	v, _, _ := r.flight.Do("price:"+ticker, func() (any, error) {
		var (
			value    decimal.Decimal
			currency string
		)
		err := r.call(ctx, func(ctx context.Context) (err error) {
			value, currency, err = r.provider.Price(ctx, ticker)
			return err
		})
		if err == nil && currency == "" {
			err = fmt.Errorf("no currency for %s", ticker)
		}
		if err == nil {
			now := r.now()
			r.cache.SetPrice(ticker, PriceEntry{Value: value, Currency: currency, FetchedAt: now})
			return Quote{Ticker: ticker, Value: value, Currency: currency, State: Refreshed, FetchedAt: now}, nil
		}

		if e, ok := r.cache.Price(ticker); ok {
			r.log.Warn().Err(err).Str("ticker", ticker).Time("fetched_at", e.FetchedAt).Msg("price fetch failed, using stale cached price")
			return Quote{Ticker: ticker, Value: e.Value, Currency: e.Currency, State: Stale, FetchedAt: e.FetchedAt, Err: err}, nil
		}
		r.log.Warn().Err(err).Str("ticker", ticker).Msg("price fetch failed, no cached price")
		return Quote{Ticker: ticker, State: Missing, Err: err}, nil
	})
	return v.(Quote)
}

// Rate resolves the exchange rate from one currency to another.
//
// The rate of a currency to itself is 1, without cache or provider access.
func (r *Resolver) Rate(ctx context.Context, from, to string) Rate {
	if from == to {
		return Rate{From: from, To: to, Value: decimal.NewFromInt(1), State: Fresh, FetchedAt: r.now()}
	}
	if e, ok := r.cache.Rate(from, to); ok && r.fresh(e.FetchedAt) {
		r.log.Debug().Str("pair", Pair(from, to)).Msg("rate cache hit")
		return Rate{From: from, To: to, Value: e.Value, State: Fresh, FetchedAt: e.FetchedAt}
	}

	v, _, _ := r.flight.Do("rate:"+Pair(from, to), func() (any, error) {
		var value decimal.Decimal
		err := r.call(ctx, func(ctx context.Context) (err error) {
			value, err = r.provider.Rate(ctx, from, to)
			return err
		})
		if err == nil && !value.IsPositive() {
			err = fmt.Errorf("invalid rate %s for %s", value, Pair(from, to))
		}
		if err == nil {
			now := r.now()
			r.cache.SetRate(from, to, RateEntry{Value: value, FetchedAt: now})
			return Rate{From: from, To: to, Value: value, State: Refreshed, FetchedAt: now}, nil
		}

		if e, ok := r.cache.Rate(from, to); ok {
			r.log.Warn().Err(err).Str("pair", Pair(from, to)).Time("fetched_at", e.FetchedAt).Msg("rate fetch failed, using stale cached rate")
			return Rate{From: from, To: to, Value: e.Value, State: Stale, FetchedAt: e.FetchedAt, Err: err}, nil
		}
		r.log.Warn().Err(err).Str("pair", Pair(from, to)).Msg("rate fetch failed, no cached rate")
		return Rate{From: from, To: to, State: Missing, Err: err}, nil
	})
	return v.(Rate)
}

// Save writes the cache back to disk.
func (r *Resolver) Save() error { return r.cache.Save(r.now()) }
