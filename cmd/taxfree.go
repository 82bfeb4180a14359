package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/holdings"
	"github.com/etnz/holdings/date"
	"github.com/etnz/holdings/renderer"
	"github.com/google/subcommands"
)

// taxFreeCmd holds the flags for the 'taxfree' subcommand.
type taxFreeCmd struct {
	marketFlags
	days int
	on   string
}

func (*taxFreeCmd) Name() string     { return "taxfree" }
func (*taxFreeCmd) Synopsis() string { return "display the lots held long enough to be sold tax free" }
func (*taxFreeCmd) Usage() string {
	return `dgpos taxfree [-days <n>] [-on <date>] [-prices [-c <currency>] [-no-cache]] [-export <file.csv>]

  Displays the open lots held for at least -days days (three years by
  default) on the given date.
`
}

func (c *taxFreeCmd) SetFlags(f *flag.FlagSet) {
	c.marketFlags.SetFlags(f)
	f.IntVar(&c.days, "days", holdings.DefaultTaxFreeDays, "minimum holding period in days")
	f.StringVar(&c.on, "on", date.Today().String(), "evaluation date (YYYY-MM-DD)")
}

func (c *taxFreeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	log := logger()
	c.warnConflicts(log)

	on, err := date.Parse(c.on)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
		return subcommands.ExitUsageError
	}
	if c.days < 0 {
		fmt.Fprintf(os.Stderr, "Error: -days must not be negative\n")
		return subcommands.ExitUsageError
	}

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
	taxFree := holdings.NewTaxFreeReport(positions, on, c.days)

	var val *holdings.Valuation
	if c.prices {
		if val, err = c.value(ctx, taxFree.Holdings(), store, log); err != nil {
			fmt.Fprintf(os.Stderr, "Error valuing positions: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	report := renderer.NewTaxFree(taxFree, val)
	report.Mapping = store.Path()
	printMarkdown(renderer.RenderTaxFree(report))

	if err := c.writeExport(func(f *os.File) error { return renderer.WriteTaxFreeCSV(f, report) }); err != nil {
		fmt.Fprintf(os.Stderr, "Error exporting tax free positions: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
