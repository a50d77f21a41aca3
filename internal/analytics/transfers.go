package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/homefinance/internal/ledger"
)

// legTolerance is the largest difference under which an outgoing and an
// incoming leg count as the same amount. Exports arrive with two decimal
// places, so half a cent separates rounding noise from a real mismatch.
var legTolerance = decimal.New(5, -3)

// TransferPair is one matched outgoing/incoming leg pair. Amount is the
// positive transferred value.
type TransferPair struct {
	SourceTxnID     string
	DestTxnID       string
	SourceAccountID string
	DestAccountID   string
	Amount          decimal.Decimal
	Date            time.Time
}

// MatchResult carries the matched pairs plus the legs that found no
// counterpart, so callers can audit data quality instead of losing them
// silently.
type MatchResult struct {
	Pairs                 []TransferPair
	UnmatchedSources      []ledger.Transaction
	UnmatchedDestinations []ledger.Transaction
}

// MatchTransferPairs pairs transfer legs greedily: for each outgoing leg
// (amount < 0), in input order, the first unused incoming leg on the same
// calendar date, in a different account, with a matching absolute amount is
// consumed. Zero-amount legs never participate. When several incoming legs
// qualify, input order decides; total matched amount does not depend on that
// choice.
func MatchTransferPairs(txs []ledger.Transaction) MatchResult {
	var outgoing, incoming []ledger.Transaction
	for _, tx := range txs {
		if tx.Kind != ledger.Transfer || tx.Amount.IsZero() {
			continue
		}
		if tx.Amount.IsNegative() {
			outgoing = append(outgoing, tx)
		} else {
			incoming = append(incoming, tx)
		}
	}

	res := MatchResult{}
	used := make([]bool, len(incoming))
	for _, out := range outgoing {
		want := out.Amount.Abs()
		matched := false
		for i, in := range incoming {
			if used[i] || in.AccountID == out.AccountID {
				continue
			}
			if !ledger.SameDay(in.Date, out.Date) {
				continue
			}
			if in.Amount.Sub(want).Abs().GreaterThan(legTolerance) {
				continue
			}
			used[i] = true
			matched = true
			res.Pairs = append(res.Pairs, TransferPair{
				SourceTxnID:     out.ID,
				DestTxnID:       in.ID,
				SourceAccountID: out.AccountID,
				DestAccountID:   in.AccountID,
				Amount:          want,
				Date:            ledger.Day(out.Date),
			})
			break
		}
		if !matched {
			res.UnmatchedSources = append(res.UnmatchedSources, out)
		}
	}
	for i, in := range incoming {
		if !used[i] {
			res.UnmatchedDestinations = append(res.UnmatchedDestinations, in)
		}
	}
	return res
}

// TransferFlow aggregates all pairs moving money from one account to
// another. Opposite directions between the same two accounts are distinct
// flows.
type TransferFlow struct {
	SourceAccountID   string
	SourceAccountName string
	DestAccountID     string
	DestAccountName   string
	TotalAmount       decimal.Decimal
	PairCount         int
}

// AggregateTransferFlows filters by date range, matches pairs, then groups
// them by the ordered (source, dest) account key. Flows come back sorted by
// total amount descending.
func AggregateTransferFlows(txs []ledger.Transaction, f ledger.Filter) []TransferFlow {
	filtered := f.Apply(txs)

	names := make(map[string]string)
	for _, tx := range filtered {
		if _, ok := names[tx.AccountID]; !ok {
			names[tx.AccountID] = tx.AccountName
		}
	}

	type key struct{ src, dst string }
	byKey := make(map[key]*TransferFlow)
	var order []key
	for _, p := range MatchTransferPairs(filtered).Pairs {
		k := key{p.SourceAccountID, p.DestAccountID}
		fl, ok := byKey[k]
		if !ok {
			fl = &TransferFlow{
				SourceAccountID:   p.SourceAccountID,
				SourceAccountName: names[p.SourceAccountID],
				DestAccountID:     p.DestAccountID,
				DestAccountName:   names[p.DestAccountID],
			}
			byKey[k] = fl
			order = append(order, k)
		}
		fl.TotalAmount = fl.TotalAmount.Add(p.Amount)
		fl.PairCount++
	}

	out := make([]TransferFlow, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalAmount.GreaterThan(out[j].TotalAmount)
	})
	return out
}

// TransferFlowSummary is the response-shaped wrapper around the aggregated
// flows.
type TransferFlowSummary struct {
	Transfers []TransferFlow `json:"transfers"`
}

// SummarizeTransferFlows wraps AggregateTransferFlows for direct use as a
// payload.
func SummarizeTransferFlows(txs []ledger.Transaction, f ledger.Filter) TransferFlowSummary {
	return TransferFlowSummary{Transfers: AggregateTransferFlows(txs, f)}
}
