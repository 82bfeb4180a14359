package holdings

import (
	"context"
	"errors"
	"runtime"

	"github.com/etnz/holdings/date"
	"golang.org/x/sync/errgroup"
)

// Position is the FIFO outcome for one security.
type Position struct {
	ISIN     string
	Product  string
	Lots     []Lot         // open lots, oldest first
	Quantity Quantity      // sum of the open lots remaining
	Sold     []Consumption // every lot consumption, in sell order
}

// SoldQuantity returns the total quantity ever sold.
func (p Position) SoldQuantity() Quantity {
	var q Quantity
	for _, c := range p.Sold {
		q = q.Add(c.Quantity)
	}
	return q
}

// Holding returns the currently held part of the position.
func (p Position) Holding() Holding {
	return Holding{ISIN: p.ISIN, Product: p.Product, Quantity: p.Quantity, Lots: p.Lots}
}

// Positions is the FIFO outcome of a whole ledger, sorted by ISIN.
type Positions struct {
	Date       date.Date // date of the last transaction
	Securities []Position
}

// Open returns the positions with a non zero quantity.
func (p *Positions) Open() []Position {
	var open []Position
	for _, pos := range p.Securities {
		if pos.Quantity.IsPositive() {
			open = append(open, pos)
		}
	}
	return open
}

// WithSales returns the positions that had at least one sell.
func (p *Positions) WithSales() []Position {
	var sold []Position
	for _, pos := range p.Securities {
		if len(pos.Sold) > 0 {
			sold = append(sold, pos)
		}
	}
	return sold
}

// Holdings returns the held part of every open position.
func (p *Positions) Holdings() []Holding {
	var h []Holding
	for _, pos := range p.Open() {
		h = append(h, pos.Holding())
	}
	return h
}

// Position returns the position of isin, if any.
func (p *Positions) Position(isin string) (Position, bool) {
	for _, pos := range p.Securities {
		if pos.ISIN == isin {
			return pos, true
		}
	}
	return Position{}, false
}

// ComputePositions runs the FIFO engine over every security of the ledger.
//
// Securities are independent and processed concurrently. A security whose
// sells exceed its buys is reported through an *InsufficientLotsError joined
// into the returned error; the positions of all the other securities are
// still returned.
func ComputePositions(ctx context.Context, ledger *Ledger) (*Positions, error) {
	isins := ledger.Securities()
	groups := ledger.BySecurity()

	positions := make([]Position, len(isins))
	failures := make([]error, len(isins))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, isin := range isins {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			book, err := MatchFIFO(isin, ledger.Product(isin), groups[isin])
			if err != nil {
				failures[i] = err
				return nil
			}
			open := book.Open()
			var held Quantity
			for _, lot := range open {
				held = held.Add(lot.Remaining)
			}
			positions[i] = Position{
				ISIN:     isin,
				Product:  book.Product,
				Lots:     open,
				Quantity: held,
				Sold:     book.Consumptions(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Positions{Securities: make([]Position, 0, len(isins))}
	for tx := range ledger.Transactions() {
		result.Date = tx.Date
	}
	for i, pos := range positions {
		if failures[i] == nil {
			result.Securities = append(result.Securities, pos)
		}
	}
	return result, errors.Join(failures...)
}
