// Package testdata builds synthetic ledgers for tests.
package testdata

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/homefinance/internal/ledger"
)

var nextID atomic.Int64

// Tx builds one transaction with a generated id.
func Tx(date string, accountID string, amount float64, kind ledger.Kind, description string) ledger.Transaction {
	id := nextID.Add(1)
	d, err := time.ParseInLocation(time.DateOnly, date, time.UTC)
	if err != nil {
		panic(fmt.Sprintf("testdata: bad date %q: %v", date, err))
	}
	return ledger.Transaction{
		ID:          fmt.Sprintf("tx-%04d", id),
		Date:        d,
		AccountID:   accountID,
		AccountName: "Account " + accountID,
		Amount:      decimal.NewFromFloat(amount),
		Kind:        kind,
		Description: description,
	}
}

// WithBalance sets the running-balance snapshot.
func WithBalance(t ledger.Transaction, balance float64) ledger.Transaction {
	b := decimal.NewFromFloat(balance)
	t.BalanceAfter = &b
	return t
}

// WithCategory sets the category label.
func WithCategory(t ledger.Transaction, category string) ledger.Transaction {
	t.Category = category
	return t
}

// Series generates n occurrences of the same payment, spaced every `gapDays`
// days starting at `start`.
func Series(start string, gapDays, n int, accountID string, amount float64, description string) []ledger.Transaction {
	first, err := time.ParseInLocation(time.DateOnly, start, time.UTC)
	if err != nil {
		panic(fmt.Sprintf("testdata: bad date %q: %v", start, err))
	}
	out := make([]ledger.Transaction, 0, n)
	for i := 0; i < n; i++ {
		date := first.AddDate(0, 0, i*gapDays).Format(time.DateOnly)
		out = append(out, Tx(date, accountID, amount, ledger.Expense, description))
	}
	return out
}

// TransferLegs builds a balanced pair of transfer legs on one date.
func TransferLegs(date string, fromAccount, toAccount string, amount float64) []ledger.Transaction {
	return []ledger.Transaction{
		Tx(date, fromAccount, -amount, ledger.Transfer, "Transfer to "+toAccount),
		Tx(date, toAccount, amount, ledger.Transfer, "Transfer from "+fromAccount),
	}
}
