package market

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/etnz/holdings/internal/atomicfile"
	"github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// cacheVersion is the version of the cache file format.
const cacheVersion = 1

// DefaultCacheFile returns the default cache location under the user's home.
func DefaultCacheFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", "degiro_positions", "price_cache.json")
}

// PriceEntry is a cached price.
type PriceEntry struct {
	Value     decimal.Decimal `json:"value"`
	Currency  string          `json:"currency"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// RateEntry is a cached exchange rate.
type RateEntry struct {
	Value     decimal.Decimal `json:"value"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// cacheFile is the on disk layout of the cache.
type cacheFile struct {
	Version       int                   `json:"version"`
	LastUpdated   time.Time             `json:"last_updated"`
	Prices        map[string]PriceEntry `json:"prices"`
	ExchangeRates map[string]RateEntry  `json:"exchange_rates"`
}

// Cache holds prices and exchange rates with the time they were fetched.
//
// Entries never expire from the Cache itself: freshness is decided by the
// Resolver, and expired entries remain available as a fallback.
type Cache struct {
	path   string
	prices *cache.Cache
	rates  *cache.Cache

	mu    sync.Mutex
	dirty bool
}

// NewCache returns an empty in-memory cache that is not backed by a file.
func NewCache() *Cache {
	return &Cache{
		prices: cache.New(cache.NoExpiration, 0),
		rates:  cache.New(cache.NoExpiration, 0),
	}
}

// LoadCache reads the cache file at path.
//
// A missing file yields an empty cache. An unreadable or garbled file is
// reported as a warning and also yields an empty cache.
func LoadCache(path string, log zerolog.Logger) *Cache {
	c := NewCache()
	c.path = path

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug().Str("file", path).Msg("no price cache yet")
		return c
	}
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("cannot read price cache, starting empty")
		return c
	}

	var f cacheFile
	if err := json.Unmarshal(data, &f); err != nil {
		log.Warn().Err(err).Str("file", path).Msg("corrupted price cache, starting empty")
		return c
	}
	for ticker, e := range f.Prices {
		c.prices.Set(ticker, e, cache.NoExpiration)
	}
	for pair, e := range f.ExchangeRates {
		c.rates.Set(pair, e, cache.NoExpiration)
	}
	log.Debug().Str("file", path).Int("prices", len(f.Prices)).Int("rates", len(f.ExchangeRates)).Msg("price cache loaded")
	return c
}

// Path returns the file backing the cache, empty for an in-memory cache.
func (c *Cache) Path() string { return c.path }

// Price returns the cached entry for ticker, whatever its age.
func (c *Cache) Price(ticker string) (PriceEntry, bool) {
	v, ok := c.prices.Get(ticker)
	if !ok {
		return PriceEntry{}, false
	}
	return v.(PriceEntry), true
}

// SetPrice stores a price entry.
func (c *Cache) SetPrice(ticker string, e PriceEntry) {
	c.prices.Set(ticker, e, cache.NoExpiration)
	c.touch()
}

// Rate returns the cached entry for a currency pair, whatever its age.
func (c *Cache) Rate(from, to string) (RateEntry, bool) {
	v, ok := c.rates.Get(Pair(from, to))
	if !ok {
		return RateEntry{}, false
	}
	return v.(RateEntry), true
}

// SetRate stores an exchange rate entry.
func (c *Cache) SetRate(from, to string, e RateEntry) {
	c.rates.Set(Pair(from, to), e, cache.NoExpiration)
	c.touch()
}

func (c *Cache) touch() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

// Len returns the number of price and rate entries.
func (c *Cache) Len() (prices, rates int) { return c.prices.ItemCount(), c.rates.ItemCount() }

// Save writes the cache back to its file, if anything changed since it was loaded.
//
// The file is written atomically: a crash leaves either the old or the new content.
func (c *Cache) Save(now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path == "" || !c.dirty {
		return nil
	}

	f := cacheFile{
		Version:       cacheVersion,
		LastUpdated:   now,
		Prices:        make(map[string]PriceEntry),
		ExchangeRates: make(map[string]RateEntry),
	}
	for k, item := range c.prices.Items() {
		f.Prices[k] = item.Object.(PriceEntry)
	}
	for k, item := range c.rates.Items() {
		f.ExchangeRates[k] = item.Object.(RateEntry)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode price cache: %w", err)
	}
	if err := atomicfile.WriteFile(c.path, data); err != nil {
		return fmt.Errorf("cannot save price cache: %w", err)
	}
	c.dirty = false
	return nil
}

// Tickers returns the cached tickers, sorted.
func (c *Cache) Tickers() []string {
	items := c.prices.Items()
	tickers := make([]string, 0, len(items))
	for k := range items {
		tickers = append(tickers, k)
	}
	sort.Strings(tickers)
	return tickers
}
