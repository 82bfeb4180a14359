package holdings

import (
	"fmt"

	"github.com/etnz/holdings/date"
)

// Lot represents a single purchase of a security.
//
// Remaining starts equal to Original and only decreases as sells consume the
// lot. A lot with nothing remaining is closed.
type Lot struct {
	ISIN      string
	OpenDate  date.Date
	Original  Quantity
	Remaining Quantity
}

// IsOpen reports whether part of the lot is still held.
func (l Lot) IsOpen() bool { return l.Remaining.IsPositive() }

// Consumption records that a sell took Quantity shares from the lot opened on OpenDate.
type Consumption struct {
	ISIN     string
	Product  string
	OpenDate date.Date
	SellDate date.Date
	Quantity Quantity
}

// InsufficientLotsError is returned when a sell exceeds the quantity held.
type InsufficientLotsError struct {
	ISIN      string
	Product   string
	Date      date.Date
	Requested Quantity // quantity sold
	Shortfall Quantity // quantity that could not be matched
}

func (e *InsufficientLotsError) Error() string {
	return fmt.Sprintf("cannot sell %s of %s (%s) on %s: short by %s", e.Requested, e.Product, e.ISIN, e.Date, e.Shortfall)
}

// Book is the FIFO record of lots of a single security.
type Book struct {
	ISIN    string
	Product string

	lots         []Lot // every lot ever opened, in opening order
	head         int   // index of the oldest lot with remaining shares
	consumptions []Consumption
}

// NewBook returns an empty book for a security.
func NewBook(isin, product string) *Book {
	return &Book{ISIN: isin, Product: product}
}

// Buy opens a new lot.
func (b *Book) Buy(on date.Date, quantity Quantity) {
	b.lots = append(b.lots, Lot{ISIN: b.ISIN, OpenDate: on, Original: quantity, Remaining: quantity})
}

// Sell consumes quantity from the oldest open lots first.
//
// If the book does not hold enough shares, nothing is consumed and an
// *InsufficientLotsError is returned.
func (b *Book) Sell(on date.Date, quantity Quantity) error {
	if held := b.Held(); held.LessThan(quantity) {
		return &InsufficientLotsError{
			ISIN:      b.ISIN,
			Product:   b.Product,
			Date:      on,
			Requested: quantity,
			Shortfall: quantity.Sub(held),
		}
	}

	need := quantity
	for need.IsPositive() {
		lot := &b.lots[b.head]
		taken := MinQ(need, lot.Remaining)
		lot.Remaining = lot.Remaining.Sub(taken)
		need = need.Sub(taken)
		b.consumptions = append(b.consumptions, Consumption{
			ISIN:     b.ISIN,
			Product:  b.Product,
			OpenDate: lot.OpenDate,
			SellDate: on,
			Quantity: taken,
		})
		if !lot.IsOpen() {
			b.head++
		}
	}
	return nil
}

// Apply records a transaction of this book's security.
func (b *Book) Apply(tx Transaction) error {
	if tx.ISIN != b.ISIN {
		return fmt.Errorf("transaction on %s applied to the book of %s", tx.ISIN, b.ISIN)
	}
	if tx.IsBuy() {
		b.Buy(tx.Date, tx.Quantity)
		return nil
	}
	return b.Sell(tx.Date, tx.Quantity.Abs())
}

// Held returns the quantity remaining over all open lots.
func (b *Book) Held() Quantity {
	var held Quantity
	for _, lot := range b.lots[b.head:] {
		held = held.Add(lot.Remaining)
	}
	return held
}

// Open returns a copy of the lots with remaining shares, oldest first.
func (b *Book) Open() []Lot {
	open := make([]Lot, 0, len(b.lots)-b.head)
	for _, lot := range b.lots[b.head:] {
		if lot.IsOpen() {
			open = append(open, lot)
		}
	}
	return open
}

// Closed returns a copy of the fully consumed lots, oldest first.
func (b *Book) Closed() []Lot {
	closed := make([]Lot, 0, b.head)
	for _, lot := range b.lots {
		if !lot.IsOpen() {
			closed = append(closed, lot)
		}
	}
	return closed
}

// Consumptions returns every consumption in the order sells were applied.
func (b *Book) Consumptions() []Consumption {
	return append([]Consumption(nil), b.consumptions...)
}

// MatchFIFO replays the chronological transactions of one security into a new Book.
//
// Processing stops at the first sell that cannot be matched; the returned book
// holds the state right before it.
func MatchFIFO(isin, product string, txs []Transaction) (*Book, error) {
	book := NewBook(isin, product)
	for _, tx := range txs {
		if err := book.Apply(tx); err != nil {
			return book, err
		}
	}
	return book, nil
}
