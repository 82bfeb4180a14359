package renderer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Row status of the positions export.
const (
	StatusCurrent = "Current"
	StatusSold    = "Sold"
)

// WritePositionsCSV writes one row per open lot, followed by one row per sold
// lot consumption when the report includes them.
func WritePositionsCSV(w io.Writer, p *Positions) error {
	cw := csv.NewWriter(w)
	header := []string{"Stock", "ISIN", "Status", "Buy Date", "Sell Date", "Quantity", "Total Stock Quantity"}
	if p.WithPrices {
		header = append(header, priceColumns(p.Currency, "Position Value")...)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, s := range p.Securities {
		for _, l := range s.Lots {
			row := []string{s.Product, s.ISIN, StatusCurrent, l.BuyDate.String(), "", l.Quantity.String(), s.Quantity.String()}
			if p.WithPrices {
				row = append(row, priceCells(s, l)...)
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	for _, sale := range p.Sold {
		row := []string{sale.Product, sale.ISIN, StatusSold, sale.BuyDate.String(), sale.SellDate.String(), sale.Quantity.String(), ""}
		if p.WithPrices {
			row = append(row, make([]string, 6)...)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTaxFreeCSV writes one row per tax free lot.
func WriteTaxFreeCSV(w io.Writer, t *TaxFree) error {
	cw := csv.NewWriter(w)
	header := []string{"Stock", "ISIN", "Buy Date", "Quantity", "Holding Days", "Holding Years", "Tax-Free Quantity", "Total Stock Quantity"}
	if t.WithPrices {
		header = append(header, priceColumns(t.Currency, "Tax-Free Position Value")...)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, s := range t.Securities {
		for _, l := range s.Lots {
			row := []string{
				s.Product, s.ISIN, l.BuyDate.String(), l.Quantity.String(),
				strconv.Itoa(l.HoldingDays), l.Years(),
				s.Quantity.String(), s.Held.String(),
			}
			if t.WithPrices {
				row = append(row, priceCells(s.Security, l)...)
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func priceColumns(currency, value string) []string {
	return []string{
		"Ticker", "Current Price", "Currency",
		fmt.Sprintf("Price %s", currency),
		fmt.Sprintf("%s %s", value, currency),
		"Price Fetch Status",
	}
}

// priceCells returns the market columns of a lot row. Amounts that could not
// be computed are left empty.
func priceCells(s Security, l Lot) []string {
	var price, cur, reporting, value string
	if s.HasPrice {
		price, cur = s.Price.Amount(), s.Price.Currency()
	}
	if s.Converted {
		reporting = s.ReportingPrice.Amount()
	}
	if l.Converted {
		value = l.Value.Amount()
	}
	return []string{s.Ticker, price, cur, reporting, value, s.FetchStatus()}
}
