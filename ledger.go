package holdings

import (
	"fmt"
	"iter"
	"slices"
)

// Ledger represents a list of transactions.
//
// In a Ledger transactions are always in chronological order. Transactions on
// the same day keep the order in which they were appended.
type Ledger struct {
	transactions []Transaction
	products     map[string]string // last seen product name by ISIN
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		transactions: make([]Transaction, 0),
		products:     make(map[string]string),
	}
}

// Append validates and adds transactions to the ledger, keeping it in chronological order.
func (l *Ledger) Append(txs ...Transaction) error {
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return err
		}
		l.transactions = append(l.transactions, tx)
		if tx.Product != "" {
			l.products[tx.ISIN] = tx.Product
		}
	}
	// stable sort, so that same day transactions keep the input order.
	slices.SortStableFunc(l.transactions, func(a, b Transaction) int {
		return a.Date.Compare(b.Date)
	})
	return nil
}

// Len returns the number of transactions.
func (l *Ledger) Len() int { return len(l.transactions) }

// Transactions iterates over all the transactions in chronological order.
func (l *Ledger) Transactions() iter.Seq[Transaction] { return slices.Values(l.transactions) }

// Product returns the last seen product name for isin.
func (l *Ledger) Product(isin string) string { return l.products[isin] }

// Securities returns the ISINs present in the ledger, sorted.
func (l *Ledger) Securities() []string {
	isins := make([]string, 0, len(l.products))
	seen := make(map[string]bool)
	for _, tx := range l.transactions {
		if !seen[tx.ISIN] {
			seen[tx.ISIN] = true
			isins = append(isins, tx.ISIN)
		}
	}
	slices.Sort(isins)
	return isins
}

// SecurityTransactions returns the chronological transactions of a single security.
func (l *Ledger) SecurityTransactions(isin string) []Transaction {
	var txs []Transaction
	for _, tx := range l.transactions {
		if tx.ISIN == isin {
			txs = append(txs, tx)
		}
	}
	return txs
}

// BySecurity partitions the ledger per ISIN. Each partition is chronological.
func (l *Ledger) BySecurity() map[string][]Transaction {
	groups := make(map[string][]Transaction)
	for _, tx := range l.transactions {
		groups[tx.ISIN] = append(groups[tx.ISIN], tx)
	}
	return groups
}

// String returns a short summary of the ledger.
func (l *Ledger) String() string {
	return fmt.Sprintf("%d transactions on %d securities", len(l.transactions), len(l.Securities()))
}
