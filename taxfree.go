package holdings

import (
	"github.com/etnz/holdings/date"
)

// DefaultTaxFreeDays is the holding period after which a lot is tax free.
const DefaultTaxFreeDays = 1095

// daysPerYear converts holding days into years for display.
const daysPerYear = 365.25

// LotEligibility is the tax status of an open lot on a given date.
type LotEligibility struct {
	Lot
	HoldingDays  int
	HoldingYears float64
	Eligible     Quantity // Remaining when the lot is old enough, zero otherwise
}

// IsEligible reports whether the lot crossed the holding period.
func (e LotEligibility) IsEligible() bool { return e.Eligible.IsPositive() }

// EvaluateLot computes the eligibility of lot on date on for a threshold in days.
func EvaluateLot(lot Lot, on date.Date, thresholdDays int) LotEligibility {
	days := on.DaysSince(lot.OpenDate)
	e := LotEligibility{
		Lot:          lot,
		HoldingDays:  days,
		HoldingYears: float64(days) / daysPerYear,
	}
	if days >= thresholdDays {
		e.Eligible = lot.Remaining
	}
	return e
}

// TaxFreeSecurity summarizes the eligibility of the open lots of one security.
type TaxFreeSecurity struct {
	ISIN     string
	Product  string
	Lots     []LotEligibility
	Held     Quantity
	Eligible Quantity
}

// EligibleLots returns only the lots that are tax free.
func (s TaxFreeSecurity) EligibleLots() []LotEligibility {
	var lots []LotEligibility
	for _, l := range s.Lots {
		if l.IsEligible() {
			lots = append(lots, l)
		}
	}
	return lots
}

// Holding returns the tax free part of the security.
func (s TaxFreeSecurity) Holding() Holding {
	h := Holding{ISIN: s.ISIN, Product: s.Product, Quantity: s.Eligible}
	for _, l := range s.EligibleLots() {
		h.Lots = append(h.Lots, l.Lot)
	}
	return h
}

// TaxFreeReport lists, per security, which open lots are tax free on Date.
type TaxFreeReport struct {
	Date          date.Date
	ThresholdDays int
	Securities    []TaxFreeSecurity
}

// NewTaxFreeReport evaluates every open lot of positions on date on.
//
// It never modifies positions.
func NewTaxFreeReport(positions *Positions, on date.Date, thresholdDays int) *TaxFreeReport {
	report := &TaxFreeReport{Date: on, ThresholdDays: thresholdDays}
	for _, pos := range positions.Open() {
		sec := TaxFreeSecurity{ISIN: pos.ISIN, Product: pos.Product}
		for _, lot := range pos.Lots {
			e := EvaluateLot(lot, on, thresholdDays)
			sec.Lots = append(sec.Lots, e)
			sec.Held = sec.Held.Add(lot.Remaining)
			sec.Eligible = sec.Eligible.Add(e.Eligible)
		}
		report.Securities = append(report.Securities, sec)
	}
	return report
}

// Eligible returns the securities with at least one tax free lot.
func (r *TaxFreeReport) Eligible() []TaxFreeSecurity {
	var secs []TaxFreeSecurity
	for _, s := range r.Securities {
		if s.Eligible.IsPositive() {
			secs = append(secs, s)
		}
	}
	return secs
}

// Holdings returns the tax free part of every eligible security.
func (r *TaxFreeReport) Holdings() []Holding {
	var h []Holding
	for _, s := range r.Eligible() {
		h = append(h, s.Holding())
	}
	return h
}
