// Package service wires the sqlite ledger store to the CSV importer and the
// analytics engines.
package service

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jask/homefinance/internal/database/repository"
	"github.com/jask/homefinance/internal/ledger"
)

// IngestService imports HomeFinance CSV exports.
type IngestService struct {
	Transactions *repository.TransactionRepo
}

// IngestResult summarizes one import run.
type IngestResult struct {
	Imported int
	Skipped  int
	Errors   []error
}

// ImportCSV reads a HomeFinance export: a header row naming the columns
// (transaction_id, transaction_date, account_id, account_name, description,
// amount, transaction_type, plus the optional account_type, account_owner,
// category, subcategory, balance_after, is_recurring, recurring_frequency
// and notes), then one transaction per line. Empty cells mean NULL. Rows
// with a missing date or account are rejected per line; rows whose id
// already exists are skipped. A missing transaction_id gets a generated
// UUID.
func (s *IngestService) ImportCSV(ctx context.Context, r io.Reader) (IngestResult, error) {
	res := IngestResult{}
	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1

	header, err := csvr.Read()
	if err != nil {
		return res, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"transaction_date", "account_id", "account_name", "amount", "transaction_type"} {
		if _, ok := col[required]; !ok {
			return res, fmt.Errorf("header missing column %q", required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	line := 1
	for {
		line++
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}

		t, err := parseRow(rec, field)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		if err := s.Transactions.Insert(ctx, t); err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				res.Skipped++
				continue
			}
			res.Errors = append(res.Errors, fmt.Errorf("line %d insert: %w", line, err))
			continue
		}
		res.Imported++
	}
	return res, nil
}

func parseRow(rec []string, field func([]string, string) string) (ledger.Transaction, error) {
	dateStr := field(rec, "transaction_date")
	if dateStr == "" {
		return ledger.Transaction{}, fmt.Errorf("missing transaction_date")
	}
	date, err := time.ParseInLocation(time.DateOnly, dateStr, time.UTC)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("transaction_date: %w", err)
	}

	accountID := field(rec, "account_id")
	if accountID == "" {
		return ledger.Transaction{}, fmt.Errorf("missing account_id")
	}

	amount, err := decimal.NewFromString(field(rec, "amount"))
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("amount: %w", err)
	}

	kind := ledger.Kind(field(rec, "transaction_type"))
	switch kind {
	case ledger.Income, ledger.Expense, ledger.Transfer:
	default:
		return ledger.Transaction{}, fmt.Errorf("unknown transaction_type %q", field(rec, "transaction_type"))
	}

	id := field(rec, "transaction_id")
	if id == "" {
		id = uuid.NewString()
	}

	t := ledger.Transaction{
		ID:           id,
		Date:         date,
		AccountID:    accountID,
		AccountName:  field(rec, "account_name"),
		AccountType:  field(rec, "account_type"),
		AccountOwner: field(rec, "account_owner"),
		Amount:       amount,
		Kind:         kind,
		Category:     field(rec, "category"),
		Subcategory:  field(rec, "subcategory"),
		Description:  field(rec, "description"),
	}
	if v := field(rec, "balance_after"); v != "" {
		b, err := decimal.NewFromString(v)
		if err != nil {
			return ledger.Transaction{}, fmt.Errorf("balance_after: %w", err)
		}
		t.BalanceAfter = &b
	}
	if v := field(rec, "is_recurring"); v != "" {
		flag := strings.EqualFold(v, "true") || v == "1"
		t.IsRecurring = &flag
	}
	if v := field(rec, "recurring_frequency"); v != "" {
		t.RecurringFrequency = &v
	}
	if v := field(rec, "notes"); v != "" {
		t.Notes = &v
	}
	return t, nil
}
