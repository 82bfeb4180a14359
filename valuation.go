package holdings

import (
	"context"
	"fmt"
	"time"

	"github.com/etnz/holdings/market"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Holding is a quantity of a security to value, with the lots it is made of.
type Holding struct {
	ISIN     string
	Product  string
	Quantity Quantity
	Lots     []Lot
}

// PriceStatus tells how the price of a position was obtained.
type PriceStatus string

const (
	StatusOK            PriceStatus = "OK"
	StatusTickerMissing PriceStatus = "TICKER_MISSING"
	StatusFetchError    PriceStatus = "FETCH_ERROR"
	StatusStaleFallback PriceStatus = "STALE_FALLBACK"
)

// TickerResolver maps ISINs to market tickers.
type TickerResolver interface {
	Resolve(isin string) (ticker string, ok bool)
}

// PriceResolver resolves prices and exchange rates. It never fails: problems
// are reported in the state of the result.
type PriceResolver interface {
	Price(ctx context.Context, ticker string) market.Quote
	Rate(ctx context.Context, from, to string) market.Rate
}

// PricedLot is a lot valued at the position's reporting price.
type PricedLot struct {
	Lot
	Value Money // zero when the position has no reporting price
}

// PricedPosition is a holding enriched with its market price.
type PricedPosition struct {
	Holding
	Ticker string // empty when unknown
	Status PriceStatus

	Price          Money // in the quote currency, zero when unavailable
	ReportingPrice Money // in the reporting currency, zero when unavailable
	Converted      bool  // whether ReportingPrice is available
	ConversionErr  error
	Age            time.Duration // age of the oldest value used, price or rate
	PricedLots     []PricedLot
}

// Priced reports whether the position has a price in the reporting currency.
func (p PricedPosition) Priced() bool { return p.Converted }

// HasPrice reports whether a price in the quote currency is known.
func (p PricedPosition) HasPrice() bool {
	return p.Status == StatusOK || p.Status == StatusStaleFallback
}

// Value returns the position value in the reporting currency, if priced.
func (p PricedPosition) Value() (Money, bool) {
	if !p.Converted {
		return Money{}, false
	}
	return p.ReportingPrice.Mul(p.Quantity), true
}

// Valuation values a list of holdings in a reporting currency.
type Valuation struct {
	Currency  string
	Positions []PricedPosition
	Total     Money // sum of the priced positions only
	Priced    int   // number of positions with a reporting price
}

// Summary returns "priced/total successfully priced".
func (v *Valuation) Summary() string {
	return fmt.Sprintf("%d/%d successfully priced", v.Priced, len(v.Positions))
}

// Valuer assembles valuations from a ticker store and a price resolver.
type Valuer struct {
	Tickers     TickerResolver
	Prices      PriceResolver
	Currency    string // reporting currency
	Concurrency int    // maximum concurrent resolutions, unlimited when <= 0
	Now         func() time.Time
	Log         zerolog.Logger
}

// Value prices every holding. It never fails because of market data: missing
// tickers, fetch errors and conversion errors are reported per position.
//
// It only returns an error when ctx is done.
func (v *Valuer) Value(ctx context.Context, holdings []Holding) (*Valuation, error) {
	positions := make([]PricedPosition, len(holdings))

	g, ctx := errgroup.WithContext(ctx)
	if v.Concurrency > 0 {
		g.SetLimit(v.Concurrency)
	}
	for i, h := range holdings {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			positions[i] = v.price(ctx, h)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	val := &Valuation{Currency: v.Currency, Positions: positions, Total: M(0, v.Currency)}
	for _, p := range positions {
		if value, ok := p.Value(); ok {
			val.Total = val.Total.Add(value)
			val.Priced++
		}
	}
	return val, nil
}

// price values a single holding.
func (v *Valuer) price(ctx context.Context, h Holding) PricedPosition {
	p := PricedPosition{Holding: h}
	ticker, ok := v.Tickers.Resolve(h.ISIN)
	if !ok {
		p.Status = StatusTickerMissing
		p.PricedLots = pricedLots(h.Lots, Money{}, false)
		return p
	}
	p.Ticker = ticker

	q := v.Prices.Price(ctx, ticker)
	if !q.Available() {
		p.Status = StatusFetchError
		p.PricedLots = pricedLots(h.Lots, Money{}, false)
		return p
	}
	p.Status = StatusOK
	if q.State == market.Stale {
		p.Status = StatusStaleFallback
	}
	now := v.now()
	p.Price = M(q.Value, q.Currency)
	p.Age = q.Age(now)

	if q.Currency == v.Currency {
		p.ReportingPrice, p.Converted = p.Price, true
	} else {
		r := v.Prices.Rate(ctx, q.Currency, v.Currency)
		switch {
		case !r.Available():
			p.ConversionErr = fmt.Errorf("no %s/%s rate: %w", q.Currency, v.Currency, r.Err)
			v.Log.Warn().Err(r.Err).Str("isin", h.ISIN).Str("ticker", ticker).Str("from", q.Currency).Str("to", v.Currency).Msg("cannot convert price")
		case r.State == market.Stale:
			p.Status = StatusStaleFallback
			p.Age = max(p.Age, r.Age(now))
			fallthrough
		default:
			p.ReportingPrice, p.Converted = p.Price.Convert(r.Value, v.Currency), true
		}
	}
	p.PricedLots = pricedLots(h.Lots, p.ReportingPrice, p.Converted)
	return p
}

func (v *Valuer) now() time.Time {
	if v.Now == nil {
		return time.Now()
	}
	return v.Now()
}

func pricedLots(lots []Lot, price Money, priced bool) []PricedLot {
	pl := make([]PricedLot, len(lots))
	for i, l := range lots {
		pl[i] = PricedLot{Lot: l}
		if priced {
			pl[i].Value = price.Mul(l.Remaining)
		}
	}
	return pl
}
