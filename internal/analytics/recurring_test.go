package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/homefinance/internal/ledger"
	"github.com/jask/homefinance/internal/testdata"
)

func TestNormalizeDescription(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  NETFLIX  ", "netflix"},
		{"NETFLIX.COM", "netflix com"},
		{"PAYMENT REF#12345 RENT", "payment rent"},
		{"PAYMENT ref # 99881 RENT", "payment rent"},
		{"SPOTIFY 01/02 PREMIUM", "spotify premium"},
		{"ACME PAYROLL 2024-01-15", "acme payroll"},
		{"CARD PURCHASE 992817736", "card purchase"},
		{"UBER*EATS//SYDNEY", "uber eats sydney"},
		{"A  B\t C", "a b c"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, NormalizeDescription(tc.in), "input %q", tc.in)
	}
}

func TestDescriptionSimilarity(t *testing.T) {
	t.Parallel()

	t.Run("identity and case folding", func(t *testing.T) {
		t.Parallel()
		for _, s := range []string{"netflix", "a", "some longer description", ""} {
			require.Equal(t, 1.0, DescriptionSimilarity(s, s))
		}
		require.Equal(t, 1.0, DescriptionSimilarity("NetFlix", "netflix"))
	})

	t.Run("empty against non-empty scores zero", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, 0.0, DescriptionSimilarity("netflix", ""))
		require.Equal(t, 0.0, DescriptionSimilarity("", "netflix"))
	})

	t.Run("ratio reflects edit distance", func(t *testing.T) {
		t.Parallel()
		// one substitution across 7 runes
		got := DescriptionSimilarity("netflix", "netflex")
		require.InDelta(t, 1.0-1.0/7.0, got, 1e-9)

		require.Greater(t, DescriptionSimilarity("spotify premium", "spotify premiums"), 0.9)
		require.Less(t, DescriptionSimilarity("spotify premium", "woolworths metro"), 0.5)
	})

	t.Run("symmetric", func(t *testing.T) {
		t.Parallel()
		a, b := "gym membership", "gym memberships 01"
		require.Equal(t, DescriptionSimilarity(a, b), DescriptionSimilarity(b, a))
	})
}

func TestGroupByDescription(t *testing.T) {
	t.Parallel()

	t.Run("near matches share a cluster", func(t *testing.T) {
		t.Parallel()
		txs := []ledger.Transaction{
			testdata.Tx("2024-01-01", "a1", -15.99, ledger.Expense, "NETFLIX.COM 881234"),
			testdata.Tx("2024-02-01", "a1", -15.99, ledger.Expense, "NETFLIX.COM 990121"),
			testdata.Tx("2024-01-05", "a1", -120, ledger.Expense, "WOOLWORTHS METRO"),
		}
		clusters := GroupByDescription(txs, 0.80)
		require.Len(t, clusters, 2)
		require.Len(t, clusters["netflix com"], 2)
		require.Len(t, clusters["woolworths metro"], 1)
	})

	t.Run("transfers excluded", func(t *testing.T) {
		t.Parallel()
		txs := testdata.TransferLegs("2024-01-01", "a1", "a2", 100)
		require.Empty(t, GroupByDescription(txs, 0.80))
	})

	t.Run("cluster key is the first representative seen", func(t *testing.T) {
		t.Parallel()
		txs := []ledger.Transaction{
			testdata.Tx("2024-01-01", "a1", -10, ledger.Expense, "GYM MEMBERSHIP"),
			testdata.Tx("2024-02-01", "a1", -10, ledger.Expense, "GYM MEMBERSHIPS"),
		}
		clusters := GroupByDescription(txs, 0.80)
		require.Len(t, clusters, 1)
		require.Contains(t, clusters, "gym membership")
	})
}

func TestDetectFrequency(t *testing.T) {
	t.Parallel()

	days := func(start string, gaps ...int) []time.Time {
		d := date(t, start)
		out := []time.Time{d}
		for _, g := range gaps {
			d = d.AddDate(0, 0, g)
			out = append(out, d)
		}
		return out
	}
	tol := DefaultDetectorConfig().FrequencyTolerance

	cases := []struct {
		name  string
		dates []time.Time
		want  ledger.Frequency
	}{
		{"exact weekly", days("2024-01-01", 7, 7, 7), ledger.FreqWeekly},
		{"near weekly", days("2024-01-01", 7, 8, 6), ledger.FreqWeekly},
		{"exact biweekly", days("2024-01-01", 14, 14), ledger.FreqBiweekly},
		{"thirty day monthly", days("2024-01-01", 30, 30, 30), ledger.FreqMonthly},
		{"calendar monthly", days("2024-01-15", 31, 29, 31), ledger.FreqMonthly},
		{"irregular", days("2024-01-01", 3, 45, 9), ""},
		{"too few dates", days("2024-01-01", 7), ""},
		{"no dates", nil, ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, DetectFrequency(tc.dates, tol))
		})
	}

	d := days("2024-01-01", 7, 7, 7)
	shuffled := []time.Time{d[2], d[0], d[3], d[1]}
	t.Run("unsorted input is sorted first", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, ledger.FreqWeekly, DetectFrequency(shuffled, tol))
	})
}

func TestNextExpectedDate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		last string
		freq ledger.Frequency
		want string
	}{
		{"2024-01-15", ledger.FreqWeekly, "2024-01-22"},
		{"2024-01-15", ledger.FreqBiweekly, "2024-01-29"},
		{"2024-01-15", ledger.FreqMonthly, "2024-02-15"},
		{"2024-01-31", ledger.FreqMonthly, "2024-02-29"}, // leap year clamp
		{"2023-01-31", ledger.FreqMonthly, "2023-02-28"},
		{"2024-12-15", ledger.FreqMonthly, "2025-01-15"}, // year rollover
		{"2024-10-31", ledger.FreqMonthly, "2024-11-30"},
	}
	for _, tc := range cases {
		got := NextExpectedDate(date(t, tc.last), tc.freq)
		require.NotNil(t, got, "%s %s", tc.last, tc.freq)
		require.Equal(t, date(t, tc.want), *got, "%s %s", tc.last, tc.freq)
	}

	require.Nil(t, NextExpectedDate(date(t, "2024-01-15"), ""))
}

func TestDetectRecurringPatterns(t *testing.T) {
	t.Parallel()

	cfg := DefaultDetectorConfig()

	t.Run("six identical monthly payments score high", func(t *testing.T) {
		t.Parallel()
		txs := testdata.Series("2024-01-10", 30, 6, "a1", -100, "NETFLIX.COM")

		patterns := DetectRecurringPatterns(txs, cfg)
		require.Len(t, patterns, 1)
		p := patterns[0]
		require.Equal(t, ledger.FreqMonthly, p.Frequency)
		require.GreaterOrEqual(t, p.ConfidenceScore, 90)
		require.Equal(t, ConfidenceHigh, p.ConfidenceLevel)
		require.Equal(t, 6, p.OccurrenceCount)
		require.Equal(t, "netflix com", p.DescriptionPattern)
		require.Equal(t, "a1", p.AccountID)
		require.True(t, p.AvgAmount.Equal(decimal.NewFromInt(-100)))
		require.NotEmpty(t, p.PatternID)
		require.False(t, p.IsConfirmed)
		require.False(t, p.IsRejected)

		// last occurrence 2024-06-08 (5 gaps of 30 days from Jan 10)
		require.Equal(t, date(t, "2024-06-08"), p.LastOccurrenceDate)
		require.Equal(t, date(t, "2024-07-08"), p.NextExpectedDate)
	})

	t.Run("two occurrences never become a pattern", func(t *testing.T) {
		t.Parallel()
		txs := testdata.Series("2024-01-10", 30, 2, "a1", -100, "GYM DIRECT DEBIT")
		require.Empty(t, DetectRecurringPatterns(txs, cfg))
	})

	t.Run("patterns are scoped per account", func(t *testing.T) {
		t.Parallel()
		var txs []ledger.Transaction
		txs = append(txs, testdata.Series("2024-01-10", 30, 4, "a1", -15.99, "SPOTIFY PREMIUM")...)
		txs = append(txs, testdata.Series("2024-01-12", 30, 4, "a2", -15.99, "SPOTIFY PREMIUM")...)

		patterns := DetectRecurringPatterns(txs, cfg)
		require.Len(t, patterns, 2)
		accounts := map[string]bool{}
		for _, p := range patterns {
			accounts[p.AccountID] = true
		}
		require.True(t, accounts["a1"] && accounts["a2"])
	})

	t.Run("three occurrences split across accounts stay below threshold", func(t *testing.T) {
		t.Parallel()
		var txs []ledger.Transaction
		txs = append(txs, testdata.Series("2024-01-10", 30, 2, "a1", -9.99, "ICLOUD STORAGE")...)
		txs = append(txs, testdata.Series("2024-01-10", 30, 2, "a2", -9.99, "ICLOUD STORAGE")...)
		require.Empty(t, DetectRecurringPatterns(txs, cfg))
	})

	t.Run("irregular spacing yields no pattern", func(t *testing.T) {
		t.Parallel()
		txs := []ledger.Transaction{
			testdata.Tx("2024-01-01", "a1", -50, ledger.Expense, "PET SUPPLIES WAREHOUSE"),
			testdata.Tx("2024-01-04", "a1", -50, ledger.Expense, "PET SUPPLIES WAREHOUSE"),
			testdata.Tx("2024-03-20", "a1", -50, ledger.Expense, "PET SUPPLIES WAREHOUSE"),
		}
		require.Empty(t, DetectRecurringPatterns(txs, cfg))
	})

	t.Run("volatile amounts lower confidence", func(t *testing.T) {
		t.Parallel()
		txs := []ledger.Transaction{
			testdata.Tx("2024-01-10", "a1", -80, ledger.Expense, "ENERGY AUSTRALIA"),
			testdata.Tx("2024-02-09", "a1", -135, ledger.Expense, "ENERGY AUSTRALIA"),
			testdata.Tx("2024-03-10", "a1", -60, ledger.Expense, "ENERGY AUSTRALIA"),
			testdata.Tx("2024-04-09", "a1", -150, ledger.Expense, "ENERGY AUSTRALIA"),
		}
		patterns := DetectRecurringPatterns(txs, cfg)
		require.Len(t, patterns, 1)
		// perfect regularity (50) + zero amount points + no occurrence bonus
		require.Equal(t, 50, patterns[0].ConfidenceScore)
		require.Equal(t, ConfidenceLow, patterns[0].ConfidenceLevel)
	})

	t.Run("scores below the floor are dropped", func(t *testing.T) {
		t.Parallel()
		// monthly-ish but sloppy: worst gap off by five days, volatile amounts
		txs := []ledger.Transaction{
			testdata.Tx("2024-01-10", "a1", -80, ledger.Expense, "CORNER CAFE"),
			testdata.Tx("2024-02-14", "a1", -140, ledger.Expense, "CORNER CAFE"),
			testdata.Tx("2024-03-10", "a1", -60, ledger.Expense, "CORNER CAFE"),
		}
		require.Empty(t, DetectRecurringPatterns(txs, cfg))
	})

	t.Run("existing recurring hints are ignored", func(t *testing.T) {
		t.Parallel()
		hinted := testdata.Series("2024-01-10", 30, 2, "a1", -20, "SOME SHOP")
		for i := range hinted {
			yes := true
			freq := "Monthly"
			hinted[i].IsRecurring = &yes
			hinted[i].RecurringFrequency = &freq
		}
		require.Empty(t, DetectRecurringPatterns(hinted, cfg), "hints never substitute for evidence")
	})

	t.Run("weekly pattern with occurrence bonus", func(t *testing.T) {
		t.Parallel()
		txs := testdata.Series("2024-01-05", 7, 8, "a1", -25, "F45 TRAINING")
		patterns := DetectRecurringPatterns(txs, cfg)
		require.Len(t, patterns, 1)
		p := patterns[0]
		require.Equal(t, ledger.FreqWeekly, p.Frequency)
		// 50 regularity + 40 amounts + 10 occurrences
		require.Equal(t, 100, p.ConfidenceScore)
		require.Equal(t, 8, p.OccurrenceCount)
	})
}

func TestConfidenceBands(t *testing.T) {
	t.Parallel()

	cfg := DefaultDetectorConfig()
	require.Equal(t, ConfidenceHigh, cfg.level(100))
	require.Equal(t, ConfidenceHigh, cfg.level(90))
	require.Equal(t, ConfidenceMedium, cfg.level(89))
	require.Equal(t, ConfidenceMedium, cfg.level(70))
	require.Equal(t, ConfidenceLow, cfg.level(69))
	require.Equal(t, ConfidenceLow, cfg.level(50))
}
