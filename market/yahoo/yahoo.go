// Package yahoo implements a market.Provider on top of the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/PaesslerAG/jsonpath"
	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// BaseURL is the chart endpoint.
const BaseURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// the API rejects requests without a browser like agent.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

const (
	pricePath    = "$.chart.result[0].meta.regularMarketPrice"
	currencyPath = "$.chart.result[0].meta.currency"
	errorPath    = "$.chart.error.description"
)

// Client queries Yahoo Finance.
type Client struct {
	hc      *http.Client
	baseURL string
}

// NewClient returns a client using hc, or http.DefaultClient when nil.
func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{hc: hc, baseURL: BaseURL}
}

// Price returns the regular market price of ticker and its currency.
//
// Prices quoted in pence ("GBp") are converted to pounds.
func (c *Client) Price(ctx context.Context, ticker string) (decimal.Decimal, string, error) {
	jobj, err := c.chart(ctx, ticker)
	if err != nil {
		return decimal.Zero, "", err
	}
	price, err := number(jobj, pricePath)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("cannot read price of %q: %w", ticker, err)
	}
	currency, err := text(jobj, currencyPath)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("cannot read currency of %q: %w", ticker, err)
	}
	if currency == "GBp" || currency == "GBX" {
		price, currency = price.Div(decimal.NewFromInt(100)), "GBP"
	}
	return price, currency, nil
}

// Rate returns the value of one unit of from in to, using the "FROMTO=X" symbol.
func (c *Client) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	symbol := from + to + "=X"
	jobj, err := c.chart(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	rate, err := number(jobj, pricePath)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cannot read rate %s/%s: %w", from, to, err)
	}
	return rate, nil
}

// chart fetches and decodes the chart document of symbol.
func (c *Client) chart(ctx context.Context, symbol string) (any, error) {
	addr := c.baseURL + url.PathEscape(symbol) + "?range=1d&interval=1d"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot get %q: %w", symbol, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot read %q: %w", symbol, err)
	}

	var jobj any
	if err := json.Unmarshal(body, &jobj); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("cannot get %q: %s", symbol, resp.Status)
		}
		return nil, fmt.Errorf("cannot decode %q: %w", symbol, err)
	}
	if resp.StatusCode != http.StatusOK {
		if desc, err := text(jobj, errorPath); err == nil {
			return nil, fmt.Errorf("cannot get %q: %s: %s", symbol, resp.Status, desc)
		}
		return nil, fmt.Errorf("cannot get %q: %s", symbol, resp.Status)
	}
	return jobj, nil
}

// first unwraps jsonpath results, that are sometimes a list of one answer.
func first(jval any) any {
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		return jlist[0]
	}
	return jval
}

func number(jobj any, path string) (decimal.Decimal, error) {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return decimal.Zero, err
	}
	val, ok := first(jval).(float64)
	if !ok {
		return decimal.Zero, fmt.Errorf("%s is not a number: %v", path, jval)
	}
	if val <= 0 {
		return decimal.Zero, fmt.Errorf("%s is not positive: %v", path, val)
	}
	return decimal.NewFromFloat(val), nil
}

func text(jobj any, path string) (string, error) {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return "", err
	}
	val, ok := first(jval).(string)
	if !ok || val == "" {
		return "", fmt.Errorf("%s is not a string: %v", path, jval)
	}
	return val, nil
}
