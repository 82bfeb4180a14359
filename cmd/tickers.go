package cmd

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/etnz/holdings"
	"github.com/etnz/holdings/eodhd"
	"github.com/etnz/holdings/renderer"
	"github.com/google/subcommands"
)

// tickersCmd holds the flags for the 'tickers' subcommand.
type tickersCmd struct {
	discover bool
	currency string
}

func (*tickersCmd) Name() string     { return "tickers" }
func (*tickersCmd) Synopsis() string { return "display and complete the ticker mapping file" }
func (*tickersCmd) Usage() string {
	return `dgpos tickers [-discover [-c <currency>]]

  Adds the securities of the transactions file to the ticker mapping file and
  displays it. With -discover, missing tickers are searched on EODHD.

  Discovery requires the EODHD_API_KEY environment variable to be set or passed as a flag.
`
}

func (c *tickersCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.discover, "discover", false, "search the missing tickers on EODHD")
	f.StringVar(&c.currency, "c", "EUR", "preferred listing currency of discovered tickers")
}

func (c *tickersCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	log := logger()

	ledger, err := DecodeLedger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading transactions: %v\n", err)
		return subcommands.ExitFailure
	}
	store, err := OpenTickers(ledger, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading ticker mappings: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.discover {
		key := eodhdApiKey()
		if key == "" {
			fmt.Fprintf(os.Stderr, "Error: EODHD API key is not set. Use -eodhd-api-key flag or %s environment variable\n", eodhd_api_key)
			return subcommands.ExitFailure
		}
		client := eodhd.NewClient(key, &http.Client{Timeout: *timeout})

		found := 0
		for _, e := range store.Unmapped() {
			if err := holdings.ValidateISIN(e.ISIN); err != nil {
				log.Warn().Err(err).Str("isin", e.ISIN).Msg("skipping invalid ISIN")
				continue
			}
			ticker, err := client.FindTicker(ctx, e.ISIN, c.currency)
			if err != nil {
				log.Warn().Err(err).Str("isin", e.ISIN).Str("name", e.Name).Msg("no ticker found")
				continue
			}
			if store.Set(e.ISIN, ticker) {
				found++
				log.Info().Str("isin", e.ISIN).Str("ticker", ticker).Msg("ticker found")
			}
		}
		if found > 0 {
			if err := store.Save(); err != nil {
				fmt.Fprintf(os.Stderr, "Error saving ticker mappings: %v\n", err)
				return subcommands.ExitFailure
			}
		}
	}

	printMarkdown(renderer.RenderTickers(&renderer.Tickers{File: store.Path(), Entries: store.Entries()}))
	return subcommands.ExitSuccess
}
