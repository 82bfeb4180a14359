package renderer

import (
	"fmt"
	"time"

	"github.com/etnz/holdings"
	"github.com/etnz/holdings/date"
)

// Positions is the report of current holdings, optionally priced.
type Positions struct {
	Date       date.Date
	WithPrices bool
	WithSold   bool
	Currency   string // reporting currency, when priced

	Securities []Security
	Sold       []Sale

	Total   holdings.Money
	Summary string // "15/20 successfully priced"
	Missing []Security
	Mapping string // mapping file to edit for missing tickers
}

// Security is a held security with its market data.
type Security struct {
	Product  string
	ISIN     string
	Quantity holdings.Quantity
	Lots     []Lot

	// Market data, only meaningful when the report is priced.
	Ticker         string
	Status         holdings.PriceStatus
	HasPrice       bool
	Price          holdings.Money
	Converted      bool
	ReportingPrice holdings.Money
	Value          holdings.Money
	ConversionErr  bool          // the price could not be converted to the reporting currency
	Age            time.Duration // of the oldest value used for the price
}

// StatusConversionError is the fetch status of a price without an exchange
// rate to the reporting currency.
const StatusConversionError = "CONVERSION_ERROR"

// FetchStatus is the status of the market data of s, as reported.
func (s Security) FetchStatus() string {
	switch {
	case s.ConversionErr:
		return StatusConversionError
	case s.Status == holdings.StatusStaleFallback:
		return fmt.Sprintf("%s (%s old)", s.Status, age(s.Age))
	}
	return string(s.Status)
}

// age formats d in its largest whole unit: days, hours or minutes.
func age(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d >= time.Hour:
		return fmt.Sprintf("%dh", d/time.Hour)
	}
	return fmt.Sprintf("%dm", d/time.Minute)
}

// Lot is an open lot of a security.
type Lot struct {
	BuyDate      date.Date
	Quantity     holdings.Quantity
	Original     holdings.Quantity
	HoldingDays  int
	HoldingYears float64
	Converted    bool
	Value        holdings.Money
}

// Sale is the consumption of a lot by a sell.
type Sale struct {
	Product  string
	ISIN     string
	BuyDate  date.Date
	SellDate date.Date
	Quantity holdings.Quantity
}

// Years formats the holding period in years.
func (l Lot) Years() string { return fmt.Sprintf("%.2f", l.HoldingYears) }

// NewPositions builds the report from FIFO positions and an optional valuation of their holdings.
func NewPositions(p *holdings.Positions, val *holdings.Valuation, withSold bool) *Positions {
	r := &Positions{Date: p.Date, WithSold: withSold}
	priced := indexValuation(val)
	if val != nil {
		r.WithPrices = true
		r.Currency = val.Currency
		r.Total = val.Total
		r.Summary = val.Summary()
	}

	for _, pos := range p.Open() {
		s := Security{Product: pos.Product, ISIN: pos.ISIN, Quantity: pos.Quantity}
		for _, l := range pos.Lots {
			s.Lots = append(s.Lots, Lot{BuyDate: l.OpenDate, Quantity: l.Remaining, Original: l.Original})
		}
		if pp, ok := priced[pos.ISIN]; ok {
			s.setMarket(pp)
			for i := range min(len(s.Lots), len(pp.PricedLots)) {
				s.Lots[i].Converted = pp.Converted
				s.Lots[i].Value = pp.PricedLots[i].Value
			}
			if pp.Status == holdings.StatusTickerMissing {
				r.Missing = append(r.Missing, s)
			}
		}
		r.Securities = append(r.Securities, s)
	}

	if withSold {
		for _, pos := range p.WithSales() {
			for _, c := range pos.Sold {
				r.Sold = append(r.Sold, Sale{
					Product:  pos.Product,
					ISIN:     pos.ISIN,
					BuyDate:  c.OpenDate,
					SellDate: c.SellDate,
					Quantity: c.Quantity,
				})
			}
		}
	}
	return r
}

// setMarket copies the market data of a priced position.
func (s *Security) setMarket(pp holdings.PricedPosition) {
	s.Ticker = pp.Ticker
	s.Status = pp.Status
	s.HasPrice = pp.HasPrice()
	s.Price = pp.Price
	s.Converted = pp.Converted
	s.ReportingPrice = pp.ReportingPrice
	s.Value, _ = pp.Value()
	s.ConversionErr = pp.ConversionErr != nil
	s.Age = pp.Age
}

// indexValuation maps the priced positions by ISIN.
func indexValuation(val *holdings.Valuation) map[string]holdings.PricedPosition {
	m := make(map[string]holdings.PricedPosition)
	if val == nil {
		return m
	}
	for _, pp := range val.Positions {
		m[pp.ISIN] = pp
	}
	return m
}
