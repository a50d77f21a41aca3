// Package repository maps sqlite rows to the shared ledger model.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/homefinance/internal/database"
	"github.com/jask/homefinance/internal/ledger"
)

const transactionColumns = `transaction_id, transaction_date, transaction_time, account_id,
 account_name, account_type, account_owner, description, category, subcategory,
 amount, transaction_type, balance_after, is_recurring, recurring_frequency, notes`

// TransactionRepo handles the transactions table.
type TransactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) *TransactionRepo { return &TransactionRepo{db: db} }

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Insert writes one transaction. The caller supplies the ID; a duplicate ID
// fails with the sqlite UNIQUE error, which the importer treats as a skip.
func (r *TransactionRepo) Insert(ctx context.Context, t ledger.Transaction) error {
	return insertOne(ctx, r.db, t)
}

func insertOne(ctx context.Context, db execer, t ledger.Transaction) error {
	var balance interface{}
	if t.BalanceAfter != nil {
		balance = t.BalanceAfter.String()
	}
	var recurring interface{}
	if t.IsRecurring != nil {
		recurring = *t.IsRecurring
	}
	_, err := db.ExecContext(ctx, `
	INSERT INTO transactions(`+transactionColumns+`)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`,
		t.ID, t.Date.Format(time.DateOnly), nil, t.AccountID,
		t.AccountName, nullableStr(t.AccountType), nullableStr(t.AccountOwner), t.Description,
		nullableStr(t.Category), nullableStr(t.Subcategory),
		t.Amount.String(), string(t.Kind), balance, recurring, t.RecurringFrequency, t.Notes)
	return err
}

// List loads transactions matching the filter, ordered chronologically with
// insertion order breaking date ties. That ordering is what the analytics
// tie-break rules assume.
func (r *TransactionRepo) List(ctx context.Context, f ledger.Filter) ([]ledger.Transaction, error) {
	var where []string
	var args []interface{}

	if f.Start != nil {
		where = append(where, "transaction_date >= ?")
		args = append(args, ledger.Day(*f.Start).Format(time.DateOnly))
	}
	if f.End != nil {
		where = append(where, "transaction_date <= ?")
		args = append(args, ledger.Day(*f.End).Format(time.DateOnly))
	}
	if len(f.AccountIDs) > 0 {
		where = append(where, "account_id IN (?"+strings.Repeat(", ?", len(f.AccountIDs)-1)+")")
		for _, id := range f.AccountIDs {
			args = append(args, id)
		}
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY transaction_date ASC, rowid ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Count returns the number of stored transactions.
func (r *TransactionRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n)
	return n, err
}

// InsertBatch inserts all transactions in one sqlite transaction.
func (r *TransactionRepo) InsertBatch(ctx context.Context, txs []ledger.Transaction) error {
	return database.WithTx(r.db, func(tx *sql.Tx) error {
		for _, t := range txs {
			if err := insertOne(ctx, tx, t); err != nil {
				return fmt.Errorf("insert %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

func scanTransaction(rows *sql.Rows) (ledger.Transaction, error) {
	var t ledger.Transaction
	var dateStr, amountStr, kind string
	var txTime, acctType, acctOwner, category, subcategory, balance, frequency, notes sql.NullString
	var isRecurring sql.NullBool
	if err := rows.Scan(&t.ID, &dateStr, &txTime, &t.AccountID,
		&t.AccountName, &acctType, &acctOwner, &t.Description, &category, &subcategory,
		&amountStr, &kind, &balance, &isRecurring, &frequency, &notes); err != nil {
		return ledger.Transaction{}, err
	}
	date, err := time.ParseInLocation(time.DateOnly, dateStr, time.UTC)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("transaction %s date: %w", t.ID, err)
	}
	t.Date = date
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("transaction %s amount: %w", t.ID, err)
	}
	t.Amount = amount
	t.Kind = ledger.Kind(kind)
	t.AccountType = acctType.String
	t.AccountOwner = acctOwner.String
	t.Category = category.String
	t.Subcategory = subcategory.String
	if balance.Valid {
		b, err := decimal.NewFromString(balance.String)
		if err != nil {
			return ledger.Transaction{}, fmt.Errorf("transaction %s balance_after: %w", t.ID, err)
		}
		t.BalanceAfter = &b
	}
	if isRecurring.Valid {
		v := isRecurring.Bool
		t.IsRecurring = &v
	}
	if frequency.Valid {
		t.RecurringFrequency = &frequency.String
	}
	if notes.Valid {
		t.Notes = &notes.String
	}
	return t, nil
}

func nullableStr(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
