package holdings

import (
	"context"
	"testing"

	"github.com/etnz/holdings/date"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateLot(t *testing.T) {
	on := date.New(2025, 3, 1)
	testCases := []struct {
		name         string
		age          int
		wantEligible bool
	}{
		{name: "1100 days", age: 1100, wantEligible: true},
		{name: "exactly threshold", age: DefaultTaxFreeDays, wantEligible: true},
		{name: "one day short", age: DefaultTaxFreeDays - 1, wantEligible: false},
		{name: "1000 days", age: 1000, wantEligible: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			lot := Lot{ISIN: "X", OpenDate: on.Add(-tc.age), Original: Q(10), Remaining: Q(7)}
			e := EvaluateLot(lot, on, DefaultTaxFreeDays)
			assert.Equal(t, tc.age, e.HoldingDays)
			assert.InDelta(t, float64(tc.age)/365.25, e.HoldingYears, 1e-9)
			assert.Equal(t, tc.wantEligible, e.IsEligible())
			if tc.wantEligible {
				assert.True(t, e.Eligible.Equal(Q(7)))
			} else {
				assert.True(t, e.Eligible.IsZero())
			}
			// The lot itself is untouched.
			assert.True(t, lot.Remaining.Equal(Q(7)))
		})
	}
}

func TestNewTaxFreeReport(t *testing.T) {
	on := date.New(2025, 3, 1)
	ledger := NewLedger()
	require.NoError(t, ledger.Append(
		NewBuy(on.Add(-1100), "OLD", "IE00BK5BQT80", Q(10)),
		NewBuy(on.Add(-1000), "OLD", "IE00BK5BQT80", Q(5)),
		NewSell(on.Add(-900), "OLD", "IE00BK5BQT80", Q(4)),
		NewBuy(on.Add(-10), "NEW", "US0378331005", Q(2)),
	))
	positions, err := ComputePositions(context.Background(), ledger)
	require.NoError(t, err)

	report := NewTaxFreeReport(positions, on, DefaultTaxFreeDays)
	require.Len(t, report.Securities, 2)

	old := report.Securities[0]
	assert.Equal(t, "IE00BK5BQT80", old.ISIN)
	assert.True(t, old.Held.Equal(Q(11)))
	assert.True(t, old.Eligible.Equal(Q(6)))
	require.Len(t, old.EligibleLots(), 1)
	assert.Equal(t, 1100, old.EligibleLots()[0].HoldingDays)

	eligible := report.Eligible()
	require.Len(t, eligible, 1)
	assert.Equal(t, "IE00BK5BQT80", eligible[0].ISIN)

	holdings := report.Holdings()
	require.Len(t, holdings, 1)
	assert.True(t, holdings[0].Quantity.Equal(Q(6)))
	require.Len(t, holdings[0].Lots, 1)
	assert.Equal(t, on.Add(-1100), holdings[0].Lots[0].OpenDate)

	// Positions are not modified by the evaluation.
	pos, _ := positions.Position("IE00BK5BQT80")
	assert.True(t, pos.Quantity.Equal(Q(11)))
}
