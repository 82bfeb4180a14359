package holdings

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/etnz/holdings/date"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const degiroExport = `Date,Time,Product,ISIN,Reference exchange,Venue,Quantity,Price,,Local value,,Value,,Exchange rate,Transaction and/or third party fees,,Total,,Order ID
14-03-2024,09:04,VANGUARD FTSE ALL-WORLD,IE00BK5BQT80,XET,XETA,-3,118.50,EUR,-355.50,EUR,355.50,EUR,,-1.00,EUR,354.50,EUR,b2c1
02-01-2023,10:12,APPLE INC,US0378331005,NDQ,XNAS,5,130.00,USD,-650.00,USD,-607.48,EUR,1.07,-0.50,EUR,-607.98,EUR,a1b2
02-01-2023,09:30,VANGUARD FTSE ALL-WORLD,IE00BK5BQT80,XET,XETA,10,96.20,EUR,-962.00,EUR,-962.00,EUR,,-1.00,EUR,-963.00,EUR,a1b3
15-06-2023,15:45,VANGUARD FTSE ALL-WORLD,IE00BK5BQT80,XET,XETA,"2,5",101.00,EUR,-252.50,EUR,-252.50,EUR,,-1.00,EUR,-253.50,EUR,a1b4
`

func TestDecodeLedger(t *testing.T) {
	ledger, err := DecodeLedger(strings.NewReader(degiroExport))
	require.NoError(t, err)
	assert.Equal(t, 4, ledger.Len())
	assert.Equal(t, []string{"IE00BK5BQT80", "US0378331005"}, ledger.Securities())
	assert.Equal(t, "APPLE INC", ledger.Product("US0378331005"))

	txs := slices.Collect(ledger.Transactions())
	// Chronological, same day keeps the file order.
	assert.Equal(t, "US0378331005", txs[0].ISIN)
	assert.Equal(t, "IE00BK5BQT80", txs[1].ISIN)
	assert.Equal(t, date.New(2023, 6, 15), txs[2].Date)
	assert.True(t, txs[2].Quantity.Equal(Q(2.5)))
	assert.True(t, txs[3].IsSell())
	assert.True(t, txs[3].Quantity.Equal(Q(-3)))

	vwce := ledger.SecurityTransactions("IE00BK5BQT80")
	require.Len(t, vwce, 3)
	assert.True(t, vwce[0].IsBuy())
	assert.Equal(t, "4 transactions on 2 securities", ledger.String())
}

func TestDecodeLedger_ByteOrderMark(t *testing.T) {
	ledger, err := DecodeLedger(strings.NewReader("\ufeff" + degiroExport))
	require.NoError(t, err)
	assert.Equal(t, 4, ledger.Len())
	assert.Equal(t, date.New(2023, 1, 2), slices.Collect(ledger.Transactions())[0].Date)
}

func TestDecodeLedger_Errors(t *testing.T) {
	testCases := []struct {
		name       string
		content    string
		wantLine   int
		wantColumn string
	}{
		{
			name:       "missing column",
			content:    "Date,Product,ISIN\n01-01-2024,X,IE00BK5BQT80\n",
			wantLine:   1,
			wantColumn: ColumnQuantity,
		},
		{
			name:     "empty",
			content:  "",
			wantLine: 1,
		},
		{
			name:       "bad date",
			content:    "Date,Product,ISIN,Quantity\n01-01-2024,X,IE00BK5BQT80,1\n2024-01-02,X,IE00BK5BQT80,1\n",
			wantLine:   3,
			wantColumn: ColumnDate,
		},
		{
			name:       "bad quantity",
			content:    "Date,Product,ISIN,Quantity\n01-01-2024,X,IE00BK5BQT80,ten\n",
			wantLine:   2,
			wantColumn: ColumnQuantity,
		},
		{
			name:       "zero quantity",
			content:    "Date,Product,ISIN,Quantity\n01-01-2024,X,IE00BK5BQT80,0\n",
			wantLine:   2,
			wantColumn: ColumnQuantity,
		},
		{
			name:       "missing isin",
			content:    "Date,Product,ISIN,Quantity\n01-01-2024,X,,1\n",
			wantLine:   2,
			wantColumn: ColumnISIN,
		},
		{
			name:     "bad quotes",
			content:  "Date,Product,ISIN,Quantity\n01-01-2024,\"X,IE00BK5BQT80,1\n",
			wantLine: 2,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeLedger(strings.NewReader(tc.content))
			var lerr *LedgerError
			require.True(t, errors.As(err, &lerr), "got %v", err)
			assert.Equal(t, tc.wantLine, lerr.Line)
			assert.Equal(t, tc.wantColumn, lerr.Column)
		})
	}
}

func TestLedger_Append(t *testing.T) {
	ledger := NewLedger()
	err := ledger.Append(
		NewBuy(date.New(2024, 1, 10), "B", "BBB", Q(1)),
		NewBuy(date.New(2024, 1, 1), "A", "AAA", Q(2)),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, ledger.Securities())

	err = ledger.Append(Transaction{ISIN: "CCC", Date: date.New(2024, 1, 1)})
	assert.Error(t, err, "zero quantity is invalid")
	err = ledger.Append(Transaction{Date: date.New(2024, 1, 1), Quantity: Q(1)})
	assert.Error(t, err, "missing isin is invalid")
}
