// Package market resolves current security prices and exchange rates.
//
// A Resolver sits between the callers and a Provider. It answers from a
// file-backed Cache while entries are fresh, refreshes them from the Provider
// otherwise, and falls back to stale entries when the Provider fails.
package market

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Provider fetches live market data from a third party.
type Provider interface {
	// Price returns the last price of a ticker, and the currency it is quoted in.
	Price(ctx context.Context, ticker string) (decimal.Decimal, string, error)
	// Rate returns the value of one unit of currency from, expressed in currency to.
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// State tells how a value was resolved.
type State int

const (
	// Missing means no value could be obtained, neither live nor cached.
	Missing State = iota
	// Fresh means the value came from a cache entry within the freshness window.
	Fresh
	// Refreshed means the value was just fetched from the provider.
	Refreshed
	// Stale means the provider failed and an expired cache entry was used.
	Stale
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "FRESH"
	case Refreshed:
		return "REFRESHED"
	case Stale:
		return "STALE"
	default:
		return "MISSING"
	}
}

// Quote is the resolved price of a ticker.
type Quote struct {
	Ticker    string
	Value     decimal.Decimal
	Currency  string
	State     State
	FetchedAt time.Time
	Err       error // last provider error, set for Stale and Missing
}

// Available reports whether the quote carries a value.
func (q Quote) Available() bool { return q.State != Missing }

// Age returns how old the value is at time now.
func (q Quote) Age(now time.Time) time.Duration {
	if !q.Available() {
		return 0
	}
	return now.Sub(q.FetchedAt)
}

// Rate is the resolved exchange rate between two currencies.
type Rate struct {
	From, To  string
	Value     decimal.Decimal
	State     State
	FetchedAt time.Time
	Err       error
}

// Available reports whether the rate carries a value.
func (r Rate) Available() bool { return r.State != Missing }

// Age returns how old the rate is at time now.
func (r Rate) Age(now time.Time) time.Duration {
	if !r.Available() {
		return 0
	}
	return now.Sub(r.FetchedAt)
}

// Pair returns the cache key of a currency pair, like "USDEUR".
func Pair(from, to string) string { return from + to }
