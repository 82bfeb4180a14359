// Package holdings computes the current holdings of a brokerage account from
// its history of buy and sell transactions.
//
// The core functionalities include:
//   - Ledger: decoding a DeGiro transactions export into a chronological list
//     of buys and sells.
//   - Lot matching: sells consume the oldest open lots first (FIFO), leaving
//     the open lots of every security with their purchase date.
//   - Tax eligibility: the open lots held for at least a number of days,
//     three years by default.
//   - Valuation: pricing the holdings in a reporting currency, with a status
//     per position so that missing market data never fails the report.
//
// Market data comes from the market package, ticker mappings from the tickers
// package, and reports are rendered by the renderer package. This package
// serves as the foundational logic for the `dgpos` command-line tool.
package holdings
