package market

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider answers from fixed tables and counts calls.
type fakeProvider struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	rates  map[string]decimal.Decimal
	calls  int
}

func (f *fakeProvider) Price(ctx context.Context, ticker string) (decimal.Decimal, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	v, ok := f.prices[ticker]
	if !ok {
		return decimal.Zero, "", errors.New("unknown ticker")
	}
	return v, "EUR", nil
}

func (f *fakeProvider) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	v, ok := f.rates[Pair(from, to)]
	if !ok {
		return decimal.Zero, errors.New("unknown pair")
	}
	return v, nil
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return t0 }

func TestResolver_Price(t *testing.T) {
	testCases := []struct {
		name      string
		entryAge  time.Duration // < 0 means no cache entry
		live      bool          // provider knows the ticker
		bypass    bool
		wantState State
		wantValue string
		wantCalls int
	}{
		{name: "fresh entry", entryAge: 2 * time.Hour, wantState: Fresh, wantValue: "100", wantCalls: 0},
		{name: "expired entry refreshed", entryAge: 30 * time.Hour, live: true, wantState: Refreshed, wantValue: "105", wantCalls: 1},
		{name: "expired entry stale fallback", entryAge: 30 * time.Hour, wantState: Stale, wantValue: "100", wantCalls: 1},
		{name: "no entry no provider", entryAge: -1, wantState: Missing, wantCalls: 1},
		{name: "no entry refreshed", entryAge: -1, live: true, wantState: Refreshed, wantValue: "105", wantCalls: 1},
		{name: "bypass fresh entry", entryAge: time.Hour, live: true, bypass: true, wantState: Refreshed, wantValue: "105", wantCalls: 1},
		{name: "bypass stale fallback", entryAge: time.Hour, bypass: true, wantState: Stale, wantValue: "100", wantCalls: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakeProvider{prices: map[string]decimal.Decimal{}}
			if tc.live {
				p.prices["AAPL"] = decimal.NewFromInt(105)
			}
			c := NewCache()
			if tc.entryAge >= 0 {
				c.SetPrice("AAPL", PriceEntry{Value: decimal.NewFromInt(100), Currency: "EUR", FetchedAt: t0.Add(-tc.entryAge)})
			}
			r := NewResolver(p, c, WithClock(clock), WithBypass(tc.bypass), WithLogger(zerolog.Nop()))

			q := r.Price(context.Background(), "AAPL")
			assert.Equal(t, tc.wantState, q.State)
			assert.Equal(t, tc.wantCalls, p.calls)
			if tc.wantState == Missing {
				assert.False(t, q.Available())
				assert.Error(t, q.Err)
				return
			}
			assert.True(t, q.Available())
			assert.Equal(t, tc.wantValue, q.Value.String())
			assert.Equal(t, "EUR", q.Currency)
		})
	}
}

func TestResolver_RefreshUpdatesCache(t *testing.T) {
	p := &fakeProvider{prices: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(105)}}
	c := NewCache()
	c.SetPrice("AAPL", PriceEntry{Value: decimal.NewFromInt(100), Currency: "EUR", FetchedAt: t0.Add(-30 * time.Hour)})
	r := NewResolver(p, c, WithClock(clock))

	q := r.Price(context.Background(), "AAPL")
	require.Equal(t, Refreshed, q.State)

	e, ok := c.Price("AAPL")
	require.True(t, ok)
	assert.Equal(t, "105", e.Value.String())
	assert.Equal(t, t0, e.FetchedAt)

	// Now the entry is fresh, the provider is not asked again.
	q = r.Price(context.Background(), "AAPL")
	assert.Equal(t, Fresh, q.State)
	assert.Equal(t, 1, p.calls)
}

func TestResolver_Rate(t *testing.T) {
	p := &fakeProvider{rates: map[string]decimal.Decimal{"USDEUR": decimal.RequireFromString("0.9")}}
	c := NewCache()
	c.SetRate("GBP", "EUR", RateEntry{Value: decimal.RequireFromString("1.17"), FetchedAt: t0.Add(-48 * time.Hour)})
	r := NewResolver(p, c, WithClock(clock))

	identity := r.Rate(context.Background(), "EUR", "EUR")
	assert.Equal(t, Fresh, identity.State)
	assert.True(t, identity.Value.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 0, p.calls)

	usd := r.Rate(context.Background(), "USD", "EUR")
	assert.Equal(t, Refreshed, usd.State)
	assert.Equal(t, "0.9", usd.Value.String())

	gbp := r.Rate(context.Background(), "GBP", "EUR")
	assert.Equal(t, Stale, gbp.State)
	assert.Equal(t, "1.17", gbp.Value.String())

	chf := r.Rate(context.Background(), "CHF", "EUR")
	assert.Equal(t, Missing, chf.State)
	assert.False(t, chf.Available())
	assert.Equal(t, 3, p.calls)
}

// blockingProvider never answers before its context is done.
type blockingProvider struct{}

func (blockingProvider) Price(ctx context.Context, ticker string) (decimal.Decimal, string, error) {
	<-ctx.Done()
	return decimal.Zero, "", ctx.Err()
}

func (blockingProvider) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	<-ctx.Done()
	return decimal.Zero, ctx.Err()
}

func TestResolver_Timeout(t *testing.T) {
	c := NewCache()
	c.SetPrice("SAP.DE", PriceEntry{Value: decimal.NewFromInt(7), Currency: "EUR", FetchedAt: t0.Add(-30 * time.Hour)})
	c.SetRate("USD", "EUR", RateEntry{Value: decimal.RequireFromString("0.9"), FetchedAt: t0.Add(-30 * time.Hour)})
	r := NewResolver(blockingProvider{}, c, WithClock(clock), WithLimiter(nil), WithTimeout(50*time.Millisecond))

	start := time.Now()
	q := r.Price(context.Background(), "SAP.DE")
	assert.Less(t, time.Since(start), 5*time.Second, "the request timeout bounds the call")
	assert.Equal(t, Stale, q.State)
	assert.Equal(t, "7", q.Value.String())
	assert.ErrorIs(t, q.Err, context.DeadlineExceeded)

	missing := r.Price(context.Background(), "AAPL")
	assert.Equal(t, Missing, missing.State)
	assert.ErrorIs(t, missing.Err, context.DeadlineExceeded)

	usd := r.Rate(context.Background(), "USD", "EUR")
	assert.Equal(t, Stale, usd.State)
	assert.Error(t, usd.Err)
	assert.Equal(t, Missing, r.Rate(context.Background(), "CHF", "EUR").State)
}

func TestResolver_SharedFetch(t *testing.T) {
	p := &fakeProvider{prices: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(105)}}
	r := NewResolver(p, NewCache(), WithClock(clock))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q := r.Price(context.Background(), "AAPL")
			assert.True(t, q.Available())
		}()
	}
	wg.Wait()
	// Calls may be shared in flight or served from the cache, never more than one per caller.
	assert.LessOrEqual(t, p.calls, 8)
	assert.GreaterOrEqual(t, p.calls, 1)
}

func TestCache_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "price_cache.json")
	c := LoadCache(path, zerolog.Nop())
	prices, rates := c.Len()
	assert.Zero(t, prices)
	assert.Zero(t, rates)

	c.SetPrice("VWCE.DE", PriceEntry{Value: decimal.RequireFromString("120.5"), Currency: "EUR", FetchedAt: t0})
	c.SetRate("USD", "EUR", RateEntry{Value: decimal.RequireFromString("0.92"), FetchedAt: t0})
	require.NoError(t, c.Save(t0))

	loaded := LoadCache(path, zerolog.Nop())
	e, ok := loaded.Price("VWCE.DE")
	require.True(t, ok)
	assert.Equal(t, "120.5", e.Value.String())
	assert.Equal(t, "EUR", e.Currency)
	assert.True(t, t0.Equal(e.FetchedAt))

	r, ok := loaded.Rate("USD", "EUR")
	require.True(t, ok)
	assert.Equal(t, "0.92", r.Value.String())
	assert.Equal(t, []string{"VWCE.DE"}, loaded.Tickers())
}

func TestCache_Garbled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c := LoadCache(path, zerolog.Nop())
	prices, rates := c.Len()
	assert.Zero(t, prices)
	assert.Zero(t, rates)

	// Untouched caches are not written back.
	require.NoError(t, c.Save(t0))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}
