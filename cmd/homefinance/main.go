package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jask/homefinance/internal/analytics"
	"github.com/jask/homefinance/internal/config"
	"github.com/jask/homefinance/internal/database"
	"github.com/jask/homefinance/internal/database/repository"
	"github.com/jask/homefinance/internal/ledger"
	"github.com/jask/homefinance/internal/service"
)

func main() {
	importPath := flag.String("import", "", "import a HomeFinance CSV export")
	report := flag.String("report", "", "report to print: cashflow, balances, transfers, recurring")
	from := flag.String("from", "", "start date (inclusive, YYYY-MM-DD)")
	to := flag.String("to", "", "end date (inclusive, YYYY-MM-DD)")
	accounts := flag.String("accounts", "", "comma-separated account id allow-list")
	granularity := flag.String("granularity", "monthly", "period granularity: daily, weekly, monthly")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		log.Fatalf("mkdir db dir: %v", err)
	}
	if err := database.RunMigrations(cfg.Database.Path, cfg.Database.MigrationsPath); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	txRepo := repository.NewTransactionRepo(db)

	if *importPath != "" {
		f, err := os.Open(*importPath)
		if err != nil {
			log.Fatalf("open csv: %v", err)
		}
		defer f.Close()
		ingester := &service.IngestService{Transactions: txRepo}
		res, err := ingester.ImportCSV(ctx, f)
		if err != nil {
			log.Fatalf("import: %v", err)
		}
		for _, e := range res.Errors {
			log.Printf("warn: %v", e)
		}
		fmt.Printf("imported %d, skipped %d, errors %d\n", res.Imported, res.Skipped, len(res.Errors))
		return
	}

	if *report == "" {
		flag.Usage()
		os.Exit(2)
	}

	filter, err := parseFilter(*from, *to, *accounts)
	if err != nil {
		log.Fatalf("filter: %v", err)
	}
	gran, ok := ledger.ParseGranularity(*granularity)
	if !ok {
		log.Fatalf("granularity: %q is not one of daily, weekly, monthly", *granularity)
	}

	svc := &service.AnalyticsService{Transactions: txRepo, Detector: cfg.Analytics.Detector()}
	sym := cfg.UI.CurrencySymbol

	switch *report {
	case "cashflow":
		r, err := svc.CashFlow(ctx, filter, gran)
		if err != nil {
			log.Fatalf("cashflow: %v", err)
		}
		printCashFlow(r, sym)
	case "balances":
		r, err := svc.BalanceTrends(ctx, filter, gran)
		if err != nil {
			log.Fatalf("balances: %v", err)
		}
		printBalances(r, sym, cfg.UI.DateFormat)
	case "transfers":
		r, err := svc.TransferFlows(ctx, filter)
		if err != nil {
			log.Fatalf("transfers: %v", err)
		}
		printTransfers(r, sym)
	case "recurring":
		r, err := svc.RecurringPatterns(ctx, filter)
		if err != nil {
			log.Fatalf("recurring: %v", err)
		}
		printRecurring(r, sym, cfg.UI.DateFormat)
	default:
		log.Fatalf("unknown report %q", *report)
	}
}

func parseFilter(from, to, accounts string) (ledger.Filter, error) {
	var f ledger.Filter
	if from != "" {
		t, err := time.ParseInLocation(time.DateOnly, from, time.UTC)
		if err != nil {
			return f, fmt.Errorf("from: %w", err)
		}
		f.Start = &t
	}
	if to != "" {
		t, err := time.ParseInLocation(time.DateOnly, to, time.UTC)
		if err != nil {
			return f, fmt.Errorf("to: %w", err)
		}
		f.End = &t
	}
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		return f, fmt.Errorf("end %s before start %s", to, from)
	}
	if accounts != "" {
		for _, id := range strings.Split(accounts, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				return f, fmt.Errorf("empty account id in allow-list")
			}
			f.AccountIDs = append(f.AccountIDs, id)
		}
	}
	return f, nil
}

func printCashFlow(r service.CashFlowReport, sym string) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "period\tincome\texpenses\tnet")
	for _, b := range r.Periods {
		fmt.Fprintf(w, "%s\t%s%s\t%s%s\t%s%s\n", b.Key,
			sym, b.Income.StringFixed(2), sym, b.Expenses.StringFixed(2), sym, b.Net.StringFixed(2))
	}
	fmt.Fprintf(w, "total\t%s%s\t%s%s\t%s%s\n",
		sym, r.Totals.Income.StringFixed(2), sym, r.Totals.Expenses.StringFixed(2), sym, r.Totals.Net.StringFixed(2))
	w.Flush()
}

func printBalances(r service.BalanceTrendsReport, sym, dateFormat string) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	for _, acct := range r.Accounts {
		fmt.Fprintf(w, "%s (%s)\n", acct.AccountName, acct.AccountID)
		for _, p := range acct.Points {
			fmt.Fprintf(w, "  %s\t%s%s\n", p.Date.Format(dateFormat), sym, p.Balance.StringFixed(2))
		}
	}
	w.Flush()
}

func printTransfers(r analytics.TransferFlowSummary, sym string) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "from\tto\ttotal\tpairs")
	for _, fl := range r.Transfers {
		fmt.Fprintf(w, "%s\t%s\t%s%s\t%d\n",
			fl.SourceAccountName, fl.DestAccountName, sym, fl.TotalAmount.StringFixed(2), fl.PairCount)
	}
	w.Flush()
}

func printRecurring(r service.RecurringReport, sym, dateFormat string) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "pattern\taccount\tfreq\tavg\tnext\tscore")
	for _, p := range r.Patterns {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s%s\t%s\t%d (%s)\n",
			p.DescriptionPattern, p.AccountID, p.Frequency,
			sym, p.AvgAmount.StringFixed(2),
			p.NextExpectedDate.Format(dateFormat),
			p.ConfidenceScore, p.ConfidenceLevel)
	}
	w.Flush()
}
