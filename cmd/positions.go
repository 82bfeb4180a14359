package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/holdings"
	"github.com/etnz/holdings/renderer"
	"github.com/google/subcommands"
)

// positionsCmd holds the flags for the 'positions' subcommand.
type positionsCmd struct {
	marketFlags
	withSold bool
}

func (*positionsCmd) Name() string     { return "positions" }
func (*positionsCmd) Synopsis() string { return "display the open lots of every security" }
func (*positionsCmd) Usage() string {
	return `dgpos positions [-with-sold] [-prices [-c <currency>] [-no-cache]] [-export <file.csv>]

  Matches the buys and sells of the transactions file, oldest lot first, and
  displays the lots still held. With -prices, positions are valued at their
  current market price in the reporting currency.
`
}

func (c *positionsCmd) SetFlags(f *flag.FlagSet) {
	c.marketFlags.SetFlags(f)
	f.BoolVar(&c.withSold, "with-sold", false, "also display the lots consumed by sells")
}

func (c *positionsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	log := logger()
	c.warnConflicts(log)

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

	positions, err := holdings.ComputePositions(ctx, ledger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error matching lots: %v\n", err)
		return subcommands.ExitFailure
	}

	var val *holdings.Valuation
	if c.prices {
		if val, err = c.value(ctx, positions.Holdings(), store, log); err != nil {
			fmt.Fprintf(os.Stderr, "Error valuing positions: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	report := renderer.NewPositions(positions, val, c.withSold)
	report.Mapping = store.Path()
	printMarkdown(renderer.RenderPositions(report))

	if err := c.writeExport(func(f *os.File) error { return renderer.WritePositionsCSV(f, report) }); err != nil {
		fmt.Fprintf(os.Stderr, "Error exporting positions: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
