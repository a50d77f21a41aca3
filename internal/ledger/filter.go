package ledger

import "time"

// Filter restricts a transaction slice by inclusive date range and an
// optional account allow-list. A nil bound or empty allow-list means
// unrestricted. Validation of the range itself (end before start, malformed
// account ids) is the caller's job.
type Filter struct {
	Start      *time.Time
	End        *time.Time
	AccountIDs []string
}

// Apply returns the transactions passing the filter, preserving input order.
// The input slice is never modified.
func (f Filter) Apply(txs []Transaction) []Transaction {
	if f.Start == nil && f.End == nil && len(f.AccountIDs) == 0 {
		return txs
	}
	var allowed map[string]struct{}
	if len(f.AccountIDs) > 0 {
		allowed = make(map[string]struct{}, len(f.AccountIDs))
		for _, id := range f.AccountIDs {
			allowed[id] = struct{}{}
		}
	}
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		day := Day(tx.Date)
		if f.Start != nil && day.Before(Day(*f.Start)) {
			continue
		}
		if f.End != nil && day.After(Day(*f.End)) {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[tx.AccountID]; !ok {
				continue
			}
		}
		out = append(out, tx)
	}
	return out
}
