// Command dgpos reports the positions of a DeGiro account from its
// transactions export.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"

	"github.com/etnz/holdings/cmd"
	"github.com/google/subcommands"
	"github.com/joho/godotenv"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// completion describes the command line for shell completion.
func completion() *complete.Command {
	market := map[string]complete.Predictor{
		"prices":   predict.Nothing,
		"c":        predict.Set{"EUR", "USD", "GBP", "CHF"},
		"no-cache": predict.Nothing,
		"export":   predict.Files("*.csv"),
	}
	with := func(flags map[string]complete.Predictor) map[string]complete.Predictor {
		for k, v := range market {
			flags[k] = v
		}
		return flags
	}
	return &complete.Command{
		Sub: map[string]*complete.Command{
			"positions": {Flags: with(map[string]complete.Predictor{"with-sold": predict.Nothing})},
			"taxfree":   {Flags: with(map[string]complete.Predictor{"days": predict.Something, "on": predict.Something})},
			"tickers":   {Flags: map[string]complete.Predictor{"discover": predict.Nothing, "c": predict.Set{"EUR", "USD", "GBP", "CHF"}}},
			"topic":     {Args: predict.Set{"positions", "taxfree", "tickers", "prices", "*"}},
			"help":      {},
			"flags":     {},
			"commands":  {},
		},
		Flags: map[string]complete.Predictor{
			"input":           predict.Files("*.csv"),
			"ticker-mappings": predict.Files("*.csv"),
			"cache-location":  predict.Files("*.json"),
			"provider":        predict.Set{"yahoo", "eodhd"},
			"eodhd-api-key":   predict.Something,
			"log-level":       predict.Set{"debug", "info", "warn", "error"},
			"freshness":       predict.Something,
			"timeout":         predict.Something,
			"concurrency":     predict.Something,
		},
	}
}

func main() {
	name := path.Base(os.Args[0])
	completion().Complete(name)

	// A missing .env file is fine, the environment is used as is.
	_ = godotenv.Load()

	commander := subcommands.NewCommander(flag.CommandLine, name)
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
