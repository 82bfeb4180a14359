// Package cmd implements the CLI application to report DeGiro positions.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/holdings"
	"github.com/etnz/holdings/eodhd"
	"github.com/etnz/holdings/market"
	"github.com/etnz/holdings/market/yahoo"
	"github.com/etnz/holdings/tickers"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&positionsCmd{}, "reports")
	c.Register(&taxFreeCmd{}, "reports")
	c.Register(&tickersCmd{}, "tickers")
	c.Register(&topicCmd{}, "help")
}

// Environment variables used as flag defaults.
const (
	eodhd_api_key  = "EODHD_API_KEY"
	dgpos_provider = "DGPOS_PROVIDER"
)

// Price providers.
const (
	providerYahoo = "yahoo"
	providerEODHD = "eodhd"
)

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var inputFile = flag.String("input", "Transactions.csv", "Path to the DeGiro transactions export (CSV)")
var tickerMappings = flag.String("ticker-mappings", tickers.DefaultFile, "Path to the ISIN to ticker mapping file (CSV)")
var cacheLocation = flag.String("cache-location", "", "Path to the price cache file (default "+market.DefaultCacheFile()+")")
var provider = flag.String("provider", "", "Price provider, "+providerYahoo+" or "+providerEODHD+". This flag takes precedence over the "+dgpos_provider+" environment variable (default "+providerYahoo+")")
var eodhdApiFlag = flag.String("eodhd-api-key", "", "EODHD API key to use for consuming EODHD.com API. This flag takes precedence over the "+eodhd_api_key+" environment variable. You can get one at https://eodhd.com/")
var logLevel = flag.String("log-level", "info", "Log level: debug, info, warn or error")
var freshness = flag.Duration("freshness", market.DefaultFreshness, "Maximum age of a cached price before it is fetched again")
var timeout = flag.Duration("timeout", market.DefaultTimeout, "Timeout of a single price request")
var concurrency = flag.Int("concurrency", 8, "Maximum number of concurrent price requests")

// logger is the application logger, writing to stderr.
func logger() zerolog.Logger {
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()
}

// eodhdApiKey retrieves the EODHD API key from the command-line flag or the environment variable.
// It prioritizes the flag over the environment variable.
func eodhdApiKey() string {
	if *eodhdApiFlag == "" {
		*eodhdApiFlag = os.Getenv(eodhd_api_key)
	}
	return *eodhdApiFlag
}

// providerName returns the selected price provider.
func providerName() string {
	if *provider == "" {
		*provider = os.Getenv(dgpos_provider)
	}
	if *provider == "" {
		*provider = providerYahoo
	}
	return *provider
}

// DecodeLedger decodes the transactions of the app input file.
func DecodeLedger() (*holdings.Ledger, error) {
	f, err := os.Open(*inputFile)
	if err != nil {
		return nil, fmt.Errorf("cannot open transactions file: %w", err)
	}
	defer f.Close()
	ledger, err := holdings.DecodeLedger(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", *inputFile, err)
	}
	return ledger, nil
}

// OpenTickers loads the ticker mapping file and reconciles it with the
// securities of the ledger.
func OpenTickers(ledger *holdings.Ledger, log zerolog.Logger) (*tickers.Store, error) {
	store, err := tickers.Load(*tickerMappings, log)
	if err != nil {
		return nil, err
	}
	var securities []tickers.Security
	for _, isin := range ledger.Securities() {
		securities = append(securities, tickers.Security{ISIN: isin, Name: ledger.Product(isin)})
	}
	if _, err := store.Reconcile(securities); err != nil {
		return nil, fmt.Errorf("cannot update ticker mapping file: %w", err)
	}
	return store, nil
}

// newProvider returns the selected price provider.
func newProvider(log zerolog.Logger) (market.Provider, error) {
	hc := &http.Client{Timeout: *timeout}
	switch name := providerName(); name {
	case providerYahoo:
		return yahoo.NewClient(hc), nil
	case providerEODHD:
		key := eodhdApiKey()
		if key == "" {
			return nil, fmt.Errorf("EODHD API key is not set. Use -eodhd-api-key flag or %s environment variable", eodhd_api_key)
		}
		return eodhd.NewCachingClient(key, hc, filepath.Dir(cachePath()), log), nil
	default:
		return nil, fmt.Errorf("unknown price provider %q", name)
	}
}

func cachePath() string {
	if *cacheLocation == "" {
		return market.DefaultCacheFile()
	}
	return *cacheLocation
}

// marketFlags are the flags shared by the commands that can price positions.
type marketFlags struct {
	prices   bool
	currency string
	noCache  bool
	export   string
}

func (m *marketFlags) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&m.prices, "prices", false, "fetch current prices and value the positions")
	f.StringVar(&m.currency, "c", "EUR", "Reporting currency for market values")
	f.BoolVar(&m.noCache, "no-cache", false, "ignore fresh cached prices and fetch them again")
	f.StringVar(&m.export, "export", "", "also write the report as CSV to this file")
}

// warnConflicts logs the options that have no effect without prices.
func (m *marketFlags) warnConflicts(log zerolog.Logger) {
	if m.prices {
		return
	}
	if m.noCache {
		log.Warn().Msg("-no-cache has no effect without -prices")
	}
	if *cacheLocation != "" {
		log.Warn().Msg("-cache-location has no effect without -prices")
	}
}

// reportingCurrency returns the ISO code given with -c, upper-cased.
func (m *marketFlags) reportingCurrency() string {
	return strings.ToUpper(strings.TrimSpace(m.currency))
}

// value prices the holdings, then saves the price cache.
func (m *marketFlags) value(ctx context.Context, hs []holdings.Holding, store *tickers.Store, log zerolog.Logger) (*holdings.Valuation, error) {
	p, err := newProvider(log)
	if err != nil {
		return nil, err
	}
	resolver := market.NewResolver(p, market.LoadCache(cachePath(), log),
		market.WithFreshness(*freshness),
		market.WithTimeout(*timeout),
		market.WithBypass(m.noCache),
		market.WithLogger(log),
	)
	v := &holdings.Valuer{
		Tickers:     store,
		Prices:      resolver,
		Currency:    m.reportingCurrency(),
		Concurrency: *concurrency,
		Log:         log,
	}
	val, err := v.Value(ctx, hs)
	if err != nil {
		return nil, err
	}
	if err := resolver.Save(); err != nil {
		log.Warn().Err(err).Str("file", cachePath()).Msg("cannot save price cache")
	}
	log.Info().Str("summary", val.Summary()).Str("provider", providerName()).Msg("positions valued")
	return val, nil
}

// writeExport writes a CSV export with write, if requested.
func (m *marketFlags) writeExport(write func(f *os.File) error) error {
	if m.export == "" {
		return nil
	}
	f, err := os.Create(m.export)
	if err != nil {
		return fmt.Errorf("cannot create export file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("cannot write export file %q: %w", m.export, err)
	}
	return f.Close()
}

// printMarkdown renders md for the terminal, or prints it raw if it cannot be rendered.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Print(md)
}
