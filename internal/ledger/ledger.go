// Package ledger defines the immutable transaction model shared by the
// analytics engines, the sqlite repository and the CSV importer. Nothing in
// this package mutates a Transaction after construction.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a transaction. Transfers are the two legs of an internal
// movement of funds between accounts and are excluded from income/expense
// aggregation.
type Kind string

const (
	Income   Kind = "Income"
	Expense  Kind = "Expense"
	Transfer Kind = "Transfer"
)

// Granularity selects the calendar bucketing for period reports.
type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// ParseGranularity validates a user-supplied granularity string. The
// analytics core assumes a valid value; validation happens here, at the
// boundary.
func ParseGranularity(s string) (Granularity, bool) {
	switch Granularity(s) {
	case Daily, Weekly, Monthly:
		return Granularity(s), true
	}
	return "", false
}

// Frequency is the cadence of a detected recurring payment.
type Frequency string

const (
	FreqWeekly   Frequency = "Weekly"
	FreqBiweekly Frequency = "Biweekly"
	FreqMonthly  Frequency = "Monthly"
)

// Transaction is one ledger row. Amount is signed: positive inflow, negative
// outflow. Optional columns from the HomeFinance export are pointers.
type Transaction struct {
	ID                 string
	Date               time.Time // date-only; time-of-day is never significant
	AccountID          string
	AccountName        string
	AccountType        string
	AccountOwner       string
	Amount             decimal.Decimal
	Kind               Kind
	Category           string
	Subcategory        string
	Description        string
	BalanceAfter       *decimal.Decimal
	IsRecurring        *bool
	RecurringFrequency *string
	Notes              *string
}

// Day truncates t to midnight UTC. All same-day comparisons in the analytics
// engines go through this.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}
