package eodhd

import (
	"context"
	"fmt"
	"net/url"
)

// SearchResult matches the structure of a single item in the EODHD search API response.
type SearchResult struct {
	Code              string  `json:"Code"`
	Exchange          string  `json:"Exchange"`
	Name              string  `json:"Name"`
	Type              string  `json:"Type"`
	Country           string  `json:"Country"`
	Currency          string  `json:"Currency"`
	ISIN              string  `json:"ISIN"`
	PreviousClose     float64 `json:"previousClose"`
	PreviousCloseDate string  `json:"previousCloseDate"`
}

// Ticker returns the EODHD ticker of the result, like "VWCE.XETRA".
func (r SearchResult) Ticker() string { return r.Code + "." + r.Exchange }

// Search searches for securities by name, ticker or ISIN.
func (c *Client) Search(ctx context.Context, term string) ([]SearchResult, error) {
	addr := fmt.Sprintf("%s/search/%s?api_token=%s&fmt=json", c.baseURL, url.PathEscape(term), url.QueryEscape(c.apiKey))

	var results []SearchResult
	if err := jwget(ctx, c.listing, addr, &results); err != nil {
		return nil, fmt.Errorf("cannot search %q: %w", term, err)
	}
	return results, nil
}

// FindTicker returns the ticker of the first listing of isin.
//
// Listings in one of the preferred currencies come first, in order.
func (c *Client) FindTicker(ctx context.Context, isin string, preferred ...string) (string, error) {
	results, err := c.Search(ctx, isin)
	if err != nil {
		return "", err
	}
	var matches []SearchResult
	for _, r := range results {
		if r.ISIN == isin && r.Code != "" && r.Exchange != "" {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no listing found for %s", isin)
	}
	for _, cur := range preferred {
		for _, r := range matches {
			if r.Currency == cur {
				return r.Ticker(), nil
			}
		}
	}
	return matches[0].Ticker(), nil
}
