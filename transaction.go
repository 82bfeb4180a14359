package holdings

import (
	"errors"
	"fmt"

	"github.com/etnz/holdings/date"
)

// Transaction is a single buy or sell of a security, as recorded by the broker.
//
// A positive quantity is a buy, a negative one is a sell.
type Transaction struct {
	ISIN     string
	Product  string
	Date     date.Date
	Quantity Quantity
}

// NewBuy returns a transaction buying quantity shares of a security.
func NewBuy(on date.Date, product, isin string, quantity Quantity) Transaction {
	return Transaction{ISIN: isin, Product: product, Date: on, Quantity: quantity.Abs()}
}

// NewSell returns a transaction selling quantity shares of a security.
func NewSell(on date.Date, product, isin string, quantity Quantity) Transaction {
	return Transaction{ISIN: isin, Product: product, Date: on, Quantity: Quantity{value: quantity.value.Abs().Neg()}}
}

// IsBuy reports whether the transaction acquires shares.
func (t Transaction) IsBuy() bool { return t.Quantity.IsPositive() }

// IsSell reports whether the transaction disposes of shares.
func (t Transaction) IsSell() bool { return t.Quantity.IsNegative() }

// Validate checks the transaction invariants.
func (t Transaction) Validate() error {
	var errs []error
	if t.ISIN == "" {
		errs = append(errs, errors.New("missing security identifier"))
	}
	if t.Date.IsZero() {
		errs = append(errs, errors.New("missing date"))
	}
	if t.Quantity.IsZero() {
		errs = append(errs, errors.New("quantity must not be zero"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid transaction %s %s: %w", t.Date, t.ISIN, errors.Join(errs...))
	}
	return nil
}
