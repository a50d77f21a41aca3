package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jask/homefinance/internal/analytics"
	"github.com/jask/homefinance/internal/database/repository"
	"github.com/jask/homefinance/internal/ledger"
)

// AnalyticsService loads a filtered ledger from the store and runs the pure
// analytics engines over it. It validates what the engines assume
// pre-validated: the date range and the granularity.
type AnalyticsService struct {
	Transactions *repository.TransactionRepo
	Detector     analytics.DetectorConfig
}

// CashFlowReport is the periodic income/expense summary payload.
type CashFlowReport struct {
	Totals  analytics.Totals
	Periods []analytics.PeriodBucket
}

// BalanceTrendsReport carries one balance series per account.
type BalanceTrendsReport struct {
	Accounts []analytics.AccountTrend
}

// RecurringReport carries the detected recurring patterns.
type RecurringReport struct {
	Patterns []analytics.RecurringPattern
}

func validateFilter(f ledger.Filter) error {
	if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
		return fmt.Errorf("invalid date range: end %s before start %s",
			f.End.Format(time.DateOnly), f.Start.Format(time.DateOnly))
	}
	return nil
}

func (s *AnalyticsService) load(ctx context.Context, f ledger.Filter) ([]ledger.Transaction, error) {
	if err := validateFilter(f); err != nil {
		return nil, err
	}
	txs, err := s.Transactions.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return txs, nil
}

// CashFlow aggregates totals and per-period buckets for the filtered ledger.
func (s *AnalyticsService) CashFlow(ctx context.Context, f ledger.Filter, g ledger.Granularity) (CashFlowReport, error) {
	txs, err := s.load(ctx, f)
	if err != nil {
		return CashFlowReport{}, err
	}
	return CashFlowReport{
		Totals:  analytics.AggregateTotals(txs),
		Periods: analytics.AggregateByPeriod(txs, g),
	}, nil
}

// BalanceTrends computes one carried-forward balance series per account in
// the filtered ledger. When the filter gives no explicit range the ledger's
// own first and last dates bound the series.
func (s *AnalyticsService) BalanceTrends(ctx context.Context, f ledger.Filter, g ledger.Granularity) (BalanceTrendsReport, error) {
	txs, err := s.load(ctx, f)
	if err != nil {
		return BalanceTrendsReport{}, err
	}
	if len(txs) == 0 {
		return BalanceTrendsReport{}, nil
	}
	start, end := rangeBounds(txs, f)
	return BalanceTrendsReport{
		Accounts: analytics.BalanceTrends(txs, start, end, g, f.AccountIDs),
	}, nil
}

// TransferFlows matches transfer legs and aggregates directed flows.
func (s *AnalyticsService) TransferFlows(ctx context.Context, f ledger.Filter) (analytics.TransferFlowSummary, error) {
	txs, err := s.load(ctx, f)
	if err != nil {
		return analytics.TransferFlowSummary{}, err
	}
	// the repo already applied the filter; pass an empty one to the matcher
	return analytics.SummarizeTransferFlows(txs, ledger.Filter{}), nil
}

// RecurringPatterns runs the recurring-payment detector over the filtered
// ledger.
func (s *AnalyticsService) RecurringPatterns(ctx context.Context, f ledger.Filter) (RecurringReport, error) {
	txs, err := s.load(ctx, f)
	if err != nil {
		return RecurringReport{}, err
	}
	return RecurringReport{Patterns: analytics.DetectRecurringPatterns(txs, s.Detector)}, nil
}

// rangeBounds resolves the trend range: explicit filter bounds win, missing
// ones fall back to the ledger's first/last transaction dates.
func rangeBounds(txs []ledger.Transaction, f ledger.Filter) (time.Time, time.Time) {
	start := ledger.Day(txs[0].Date)
	end := start
	for _, tx := range txs[1:] {
		day := ledger.Day(tx.Date)
		if day.Before(start) {
			start = day
		}
		if day.After(end) {
			end = day
		}
	}
	if f.Start != nil {
		start = ledger.Day(*f.Start)
	}
	if f.End != nil {
		end = ledger.Day(*f.End)
	}
	return start, end
}
