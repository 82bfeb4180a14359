// Package eodhd implements a market.Provider for EOD Historical Data (https://eodhd.com).
//
// Tickers use EODHD's "CODE.EXCHANGE" format (e.g. "VWCE.XETRA"). Currency
// pairs use the virtual "FOREX" exchange.
package eodhd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/etnz/holdings/date"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// BaseURL is the root of the EODHD API.
const BaseURL = "https://eodhd.com/api"

// Client queries the EODHD API.
type Client struct {
	apiKey  string
	baseURL string
	live    *http.Client // real-time quotes, never cached
	listing *http.Client // reference data, cached on disk for a month

	mu         sync.Mutex
	currencies map[string]map[string]string // exchange -> code -> currency
	flight     singleflight.Group           // symbol list fetches, by exchange
}

// NewClient returns a client authenticated by apiKey.
//
// Requests go through hc (http.DefaultClient when nil). Exchange symbol lists
// are cached in the system temporary directory for a month.
func NewClient(apiKey string, hc *http.Client) *Client {
	return NewCachingClient(apiKey, hc, os.TempDir(), zerolog.Nop())
}

// NewCachingClient is like NewClient, with the reference data cached in dir.
func NewCachingClient(apiKey string, hc *http.Client, dir string, log zerolog.Logger) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: BaseURL,
		live:    hc,
		listing: &http.Client{
			Timeout: hc.Timeout,
			Transport: &diskCache{
				base:   base,
				period: date.Monthly,
				dir:    dir,
				today:  date.Today,
				log:    log.With().Str("component", "eodhd").Logger(),
			},
		},
		currencies: make(map[string]map[string]string),
	}
}

// realtime is the payload of the real-time endpoint.
//
// Values are numbers, or the string "NA" when the market has no quote.
type realtime struct {
	Code  string `json:"code"`
	Close any    `json:"close"`
}

// quote returns the last close of an EODHD ticker.
func (c *Client) quote(ctx context.Context, ticker string) (decimal.Decimal, error) {
	addr := fmt.Sprintf("%s/real-time/%s?api_token=%s&fmt=json", c.baseURL, url.PathEscape(ticker), url.QueryEscape(c.apiKey))
	var rt realtime
	if err := jwget(ctx, c.live, addr, &rt); err != nil {
		return decimal.Zero, fmt.Errorf("cannot get quote of %s: %w", ticker, err)
	}
	last, ok := rt.Close.(float64)
	if !ok || last <= 0 {
		return decimal.Zero, fmt.Errorf("no quote for %s: %v", ticker, rt.Close)
	}
	return decimal.NewFromFloat(last), nil
}

// Price returns the last price of ticker and its currency.
//
// The currency is looked up in the exchange symbol list.
func (c *Client) Price(ctx context.Context, ticker string) (decimal.Decimal, string, error) {
	code, exchange, ok := strings.Cut(ticker, ".")
	if !ok {
		return decimal.Zero, "", fmt.Errorf("invalid eodhd ticker %q: missing exchange", ticker)
	}
	currency, err := c.currency(ctx, code, exchange)
	if err != nil {
		return decimal.Zero, "", err
	}
	price, err := c.quote(ctx, ticker)
	if err != nil {
		return decimal.Zero, "", err
	}
	if currency == "GBX" {
		price, currency = price.Div(decimal.NewFromInt(100)), "GBP"
	}
	return price, currency, nil
}

// Rate returns the value of one unit of from in to.
func (c *Client) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	return c.quote(ctx, fmt.Sprintf("%s%s.FOREX", from, to))
}

// TickerInfo holds information about a specific ticker on an exchange.
type TickerInfo struct {
	Code     string `json:"Code"`
	Name     string `json:"Name"`
	Country  string `json:"Country"`
	Exchange string `json:"Exchange"`
	Currency string `json:"Currency"`
	Type     string `json:"Type"`
	Isin     string `json:"Isin"`
}

// currency returns the trading currency of code on exchange.
func (c *Client) currency(ctx context.Context, code, exchange string) (string, error) {
	codes, err := c.exchangeCurrencies(ctx, exchange)
	if err != nil {
		return "", err
	}
	currency := codes[code]
	if currency == "" {
		return "", fmt.Errorf("%s is not listed on eodhd's exchange %s", code, exchange)
	}
	return currency, nil
}

// exchangeCurrencies returns the trading currency of every code listed on
// exchange. Each exchange list is fetched once per client, concurrent callers
// share the fetch.
func (c *Client) exchangeCurrencies(ctx context.Context, exchange string) (map[string]string, error) {
	lookup := func() (map[string]string, bool) {
		c.mu.Lock()
		defer c.mu.Unlock()
		codes, ok := c.currencies[exchange]
		return codes, ok
	}
	if codes, ok := lookup(); ok {
		return codes, nil
	}

	v, err, _ := c.flight.Do(exchange, func() (any, error) {
		if codes, ok := lookup(); ok {
			return codes, nil
		}
		tickers, err := c.fetchTickers(ctx, exchange)
		if err != nil {
			return nil, err
		}
		codes := make(map[string]string, len(tickers))
		for _, t := range tickers {
			codes[t.Code] = t.Currency
		}
		c.mu.Lock()
		c.currencies[exchange] = codes
		c.mu.Unlock()
		return codes, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]string), nil
}

// fetchTickers retrieves the list of all tickers for a given exchange code.
func (c *Client) fetchTickers(ctx context.Context, exchange string) ([]TickerInfo, error) {
	// [{"Code": "CDR", "Name": "CD PROJEKT SA", "Country": "Poland", "Exchange": "WAR",
	//   "Currency": "PLN", "Type": "Common Stock", "Isin": "PLOPTTC00011"}, ...]
	addr := fmt.Sprintf("%s/exchange-symbol-list/%s?api_token=%s&fmt=json", c.baseURL, url.PathEscape(exchange), url.QueryEscape(c.apiKey))

	var content []TickerInfo
	if err := jwget(ctx, c.listing, addr, &content); err != nil {
		return nil, fmt.Errorf("failed to fetch tickers for exchange %s: %w", exchange, err)
	}
	return content, nil
}
