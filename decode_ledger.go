package holdings

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/etnz/holdings/date"
)

// Column names of the broker transactions export.
const (
	ColumnDate     = "Date"
	ColumnProduct  = "Product"
	ColumnISIN     = "ISIN"
	ColumnQuantity = "Quantity"
)

var requiredColumns = []string{ColumnDate, ColumnProduct, ColumnISIN, ColumnQuantity}

// LedgerError reports a malformed row of a ledger file.
//
// Decoding stops at the first malformed row.
type LedgerError struct {
	Line   int    // 1-based line in the file
	Column string // column name, empty when the whole row is at fault
	Err    error
}

func (e *LedgerError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("ledger line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("ledger line %d, column %q: %v", e.Line, e.Column, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

// DecodeLedger reads a broker CSV export of transactions.
//
// Columns are located by their header name, extra columns are ignored. Dates
// are day-first ("31-12-2024") and quantities accept ',' as decimal separator.
func DecodeLedger(r io.Reader) (*Ledger, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // broker exports have unnamed extra columns.

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &LedgerError{Line: 1, Err: errors.New("empty file, missing header")}
	}
	if err != nil {
		return nil, &LedgerError{Line: 1, Err: err}
	}

	index := make(map[string]int)
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, exists := index[name]; !exists && name != "" {
			index[name] = i
		}
	}
	for _, name := range requiredColumns {
		if _, ok := index[name]; !ok {
			return nil, &LedgerError{Line: 1, Column: name, Err: errors.New("missing column in header")}
		}
	}

	ledger := NewLedger()
	var txs []Transaction
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &LedgerError{Line: perr.StartLine, Err: perr.Err}
			}
			return nil, &LedgerError{Err: err}
		}
		line, _ := reader.FieldPos(0)
		tx, err := decodeRow(record, index, line)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := ledger.Append(txs...); err != nil {
		return nil, err
	}
	return ledger, nil
}

// decodeRow parses a single record into a Transaction.
func decodeRow(record []string, index map[string]int, line int) (Transaction, error) {
	field := func(name string) (string, error) {
		i := index[name]
		if i >= len(record) || strings.TrimSpace(record[i]) == "" {
			return "", &LedgerError{Line: line, Column: name, Err: errors.New("missing value")}
		}
		return strings.TrimSpace(record[i]), nil
	}

	var tx Transaction
	sday, err := field(ColumnDate)
	if err != nil {
		return tx, err
	}
	if tx.Date, err = date.ParseBroker(sday); err != nil {
		return tx, &LedgerError{Line: line, Column: ColumnDate, Err: err}
	}
	if tx.Product, err = field(ColumnProduct); err != nil {
		return tx, err
	}
	if tx.ISIN, err = field(ColumnISIN); err != nil {
		return tx, err
	}
	squantity, err := field(ColumnQuantity)
	if err != nil {
		return tx, err
	}
	if tx.Quantity, err = ParseQuantity(squantity); err != nil {
		return tx, &LedgerError{Line: line, Column: ColumnQuantity, Err: err}
	}
	if tx.Quantity.IsZero() {
		return tx, &LedgerError{Line: line, Column: ColumnQuantity, Err: errors.New("quantity must not be zero")}
	}
	return tx, nil
}
