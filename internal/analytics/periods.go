// Package analytics contains the pure computational core: period
// aggregation, transfer matching and recurring-pattern detection over an
// in-memory ledger. Every function takes its inputs explicitly, mutates
// nothing and allocates only local state, so concurrent callers need no
// locking as long as they share the slice read-only.
package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/homefinance/internal/ledger"
)

// Totals is the income/expense/net roll-up over a transaction set.
// Expenses is always non-negative.
type Totals struct {
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Net      decimal.Decimal
}

// AggregateTotals sums non-transfer amounts: positive into Income, negative
// (as absolute value) into Expenses. Transfers never contribute, so a
// balanced pair of transfer legs leaves every total unchanged.
func AggregateTotals(txs []ledger.Transaction) Totals {
	income := decimal.Zero
	expenses := decimal.Zero
	for _, tx := range txs {
		if tx.Kind == ledger.Transfer {
			continue
		}
		if tx.Amount.IsPositive() {
			income = income.Add(tx.Amount)
		} else {
			expenses = expenses.Add(tx.Amount.Abs())
		}
	}
	return Totals{Income: income, Expenses: expenses, Net: income.Sub(expenses)}
}

// PeriodBucket is one calendar interval with its totals. Balance is set only
// by the balance-trend variant.
type PeriodBucket struct {
	Key      string
	Start    time.Time
	End      time.Time
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Net      decimal.Decimal
}

// PeriodLabel renders the bucket key for a date: YYYY-MM-DD (daily),
// YYYY-Www with a zero-padded ISO week number (weekly), YYYY-MM (monthly).
func PeriodLabel(t time.Time, g ledger.Granularity) string {
	switch g {
	case ledger.Weekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case ledger.Monthly:
		return t.Format("2006-01")
	default:
		return t.Format(time.DateOnly)
	}
}

// periodBounds returns the inclusive start and end of the bucket containing
// t. Weeks are ISO weeks, Monday through Sunday.
func periodBounds(t time.Time, g ledger.Granularity) (time.Time, time.Time) {
	day := ledger.Day(t)
	switch g {
	case ledger.Weekly:
		offset := int(day.Weekday()) - int(time.Monday)
		if offset < 0 {
			offset += 7 // Sunday
		}
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 6)
	case ledger.Monthly:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, -1)
	default:
		return day, day
	}
}

// AggregateByPeriod buckets non-transfer transactions by calendar period and
// sums each bucket, returning buckets ascending by start date. Periods with
// no transactions are absent; gap-filling is the balance-trend variant's
// job.
func AggregateByPeriod(txs []ledger.Transaction, g ledger.Granularity) []PeriodBucket {
	byKey := make(map[string]*PeriodBucket)
	for _, tx := range txs {
		if tx.Kind == ledger.Transfer {
			continue
		}
		key := PeriodLabel(tx.Date, g)
		b, ok := byKey[key]
		if !ok {
			start, end := periodBounds(tx.Date, g)
			b = &PeriodBucket{Key: key, Start: start, End: end}
			byKey[key] = b
		}
		if tx.Amount.IsPositive() {
			b.Income = b.Income.Add(tx.Amount)
		} else {
			b.Expenses = b.Expenses.Add(tx.Amount.Abs())
		}
	}
	out := make([]PeriodBucket, 0, len(byKey))
	for _, b := range byKey {
		b.Net = b.Income.Sub(b.Expenses)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// BalanceAtDate resolves the running balance of an account as of the end of
// the given date: the BalanceAfter of the latest transaction on or before
// it. Transactions without a balance snapshot are ignored. When several
// share the latest date, the last one in input order wins (input is assumed
// chronological). Returns nil when no qualifying transaction exists.
func BalanceAtDate(txs []ledger.Transaction, accountID string, date time.Time) *decimal.Decimal {
	cutoff := ledger.Day(date)
	var best *ledger.Transaction
	for i := range txs {
		tx := &txs[i]
		if tx.AccountID != accountID || tx.BalanceAfter == nil {
			continue
		}
		day := ledger.Day(tx.Date)
		if day.After(cutoff) {
			continue
		}
		if best == nil || !day.Before(ledger.Day(best.Date)) {
			best = tx
		}
	}
	if best == nil {
		return nil
	}
	b := *best.BalanceAfter
	return &b
}

// BalancePoint is one carried-forward balance observation.
type BalancePoint struct {
	Date    time.Time
	Balance decimal.Decimal
}

// BalanceTrend produces one balance point per period boundary between start
// and end inclusive, for a single account. Each boundary resolves via
// BalanceAtDate; boundaries with no new observation carry the previous
// resolved balance forward. Boundaries before the account's first snapshot
// are omitted, so an account with no snapshots yields an empty series.
// Point dates are the day itself (daily), the ISO week's Sunday (weekly) or
// the last calendar day of the month (monthly).
func BalanceTrend(txs []ledger.Transaction, accountID string, start, end time.Time, g ledger.Granularity) []BalancePoint {
	var points []BalancePoint
	var last *decimal.Decimal
	for _, boundary := range periodBoundaries(start, end, g) {
		if b := BalanceAtDate(txs, accountID, boundary); b != nil {
			last = b
		}
		if last == nil {
			continue
		}
		points = append(points, BalancePoint{Date: boundary, Balance: *last})
	}
	return points
}

// periodBoundaries lists the period end dates for every bucket touched by
// the inclusive range, ascending.
func periodBoundaries(start, end time.Time, g ledger.Granularity) []time.Time {
	from := ledger.Day(start)
	to := ledger.Day(end)
	var bounds []time.Time
	for cur := from; !cur.After(to); {
		_, bucketEnd := periodBounds(cur, g)
		bounds = append(bounds, bucketEnd)
		cur = bucketEnd.AddDate(0, 0, 1)
	}
	return bounds
}

// AccountTrend pairs one account's balance series with its display name.
type AccountTrend struct {
	AccountID   string
	AccountName string
	Points      []BalancePoint
}

// BalanceTrends runs BalanceTrend per distinct account in the slice,
// optionally restricted to an allow-list, returning series ordered by
// account name then id for a stable report layout.
func BalanceTrends(txs []ledger.Transaction, start, end time.Time, g ledger.Granularity, accountIDs []string) []AccountTrend {
	var allowed map[string]struct{}
	if len(accountIDs) > 0 {
		allowed = make(map[string]struct{}, len(accountIDs))
		for _, id := range accountIDs {
			allowed[id] = struct{}{}
		}
	}
	names := make(map[string]string)
	var order []string
	for _, tx := range txs {
		if allowed != nil {
			if _, ok := allowed[tx.AccountID]; !ok {
				continue
			}
		}
		if _, seen := names[tx.AccountID]; !seen {
			names[tx.AccountID] = tx.AccountName
			order = append(order, tx.AccountID)
		}
	}
	sort.Slice(order, func(i, j int) bool {
		if names[order[i]] != names[order[j]] {
			return names[order[i]] < names[order[j]]
		}
		return order[i] < order[j]
	})
	out := make([]AccountTrend, 0, len(order))
	for _, id := range order {
		out = append(out, AccountTrend{
			AccountID:   id,
			AccountName: names[id],
			Points:      BalanceTrend(txs, id, start, end, g),
		})
	}
	return out
}
