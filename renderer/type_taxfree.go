package renderer

import (
	"github.com/etnz/holdings"
	"github.com/etnz/holdings/date"
	"github.com/etnz/holdings/tickers"
)

// TaxFree is the report of the lots held long enough to be sold tax free.
type TaxFree struct {
	Date          date.Date
	ThresholdDays int
	WithPrices    bool
	Currency      string

	Securities []TaxFreeSecurity

	Total   holdings.Money
	Summary string
	Missing []Security
	Mapping string
}

// TaxFreeSecurity is a security with at least one tax free lot.
type TaxFreeSecurity struct {
	Security        // Quantity is the tax free quantity, Value its value
	Held     holdings.Quantity
}

// NewTaxFree builds the report from the eligibility report and an optional
// valuation of its tax free holdings.
func NewTaxFree(r *holdings.TaxFreeReport, val *holdings.Valuation) *TaxFree {
	t := &TaxFree{Date: r.Date, ThresholdDays: r.ThresholdDays}
	priced := indexValuation(val)
	if val != nil {
		t.WithPrices = true
		t.Currency = val.Currency
		t.Total = val.Total
		t.Summary = val.Summary()
	}

	for _, sec := range r.Eligible() {
		s := TaxFreeSecurity{
			Security: Security{Product: sec.Product, ISIN: sec.ISIN, Quantity: sec.Eligible},
			Held:     sec.Held,
		}
		for _, e := range sec.EligibleLots() {
			s.Lots = append(s.Lots, Lot{
				BuyDate:      e.OpenDate,
				Quantity:     e.Remaining,
				Original:     e.Original,
				HoldingDays:  e.HoldingDays,
				HoldingYears: e.HoldingYears,
			})
		}
		if pp, ok := priced[sec.ISIN]; ok {
			s.setMarket(pp)
			for i := range min(len(s.Lots), len(pp.PricedLots)) {
				s.Lots[i].Converted = pp.Converted
				s.Lots[i].Value = pp.PricedLots[i].Value
			}
			if pp.Status == holdings.StatusTickerMissing {
				t.Missing = append(t.Missing, s.Security)
			}
		}
		t.Securities = append(t.Securities, s)
	}
	return t
}

// Tickers is the report of the ticker mapping file.
type Tickers struct {
	File    string
	Entries []tickers.Entry
}

// Unmapped returns the number of entries without a ticker.
func (t *Tickers) Unmapped() int {
	n := 0
	for _, e := range t.Entries {
		if e.Ticker == "" {
			n++
		}
	}
	return n
}
