package analytics

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jask/homefinance/internal/ledger"
)

// ConfidenceLevel is the coarse tier derived from a confidence score.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "High"
	ConfidenceMedium ConfidenceLevel = "Medium"
	ConfidenceLow    ConfidenceLevel = "Low"
)

// DetectorConfig tunes recurring-pattern detection. The defaults encode the
// thresholds the scoring model was calibrated with; they live here rather
// than as inline literals so tuning never touches the algorithm.
type DetectorConfig struct {
	// SimilarityThreshold is the minimum normalized-description similarity
	// for a transaction to join an existing cluster.
	SimilarityThreshold float64
	// MinOccurrences is the evidence floor; smaller groups are discarded.
	MinOccurrences int
	// FrequencyTolerance is the maximum relative deviation of the mean gap
	// from a reference interval (7/14/30 days) for that cadence to hold.
	FrequencyTolerance float64
	// MinScore, LowScore, MediumScore and HighScore are the presentation
	// cutoffs: below MinScore a group is dropped entirely.
	MinScore    int
	LowScore    int
	MediumScore int
	HighScore   int
}

// DefaultDetectorConfig returns the calibrated thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		SimilarityThreshold: 0.80,
		MinOccurrences:      3,
		FrequencyTolerance:  0.20,
		MinScore:            50,
		LowScore:            50,
		MediumScore:         70,
		HighScore:           90,
	}
}

// RecurringPattern is one detected recurring payment, scoped to a single
// account. Patterns are created fresh on every run; IsConfirmed and
// IsRejected start false and only an external confirm/reject action flips
// them.
type RecurringPattern struct {
	PatternID          string
	DescriptionPattern string
	AccountID          string
	Category           string
	AvgAmount          decimal.Decimal
	Frequency          ledger.Frequency
	NextExpectedDate   time.Time
	ConfidenceScore    int
	ConfidenceLevel    ConfidenceLevel
	OccurrenceCount    int
	LastOccurrenceDate time.Time
	IsConfirmed        bool
	IsRejected         bool
}

var (
	refNumberRe     = regexp.MustCompile(`(?i)\bref\s*#?\s*\d+\b`)
	dateLikeRe      = regexp.MustCompile(`\b\d{1,4}[/-]\d{1,2}(?:[/-]\d{1,4})?\b`)
	trailingDigitRe = regexp.MustCompile(`\d{4,}\s*$`)
	separatorRe     = regexp.MustCompile(`[.*/\\#_,:;|-]+`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// NormalizeDescription reduces a bank narrative to its stable core:
// lowercase, reference numbers and date-like fragments removed, long
// trailing digit runs removed, separator punctuation collapsed to spaces.
// "NETFLIX.COM REF#881234 01/02" and "Netflix.com ref# 990121" normalize to
// the same string.
func NormalizeDescription(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = refNumberRe.ReplaceAllString(s, " ")
	s = dateLikeRe.ReplaceAllString(s, " ")
	s = trailingDigitRe.ReplaceAllString(s, " ")
	s = separatorRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// DescriptionSimilarity scores two strings in [0,1] with a case-insensitive
// levenshtein ratio: 1 - distance/max(len). Two empty strings are identical
// (1.0); one empty against non-empty scores 0.
func DescriptionSimilarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1.0
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}

// GroupByDescription clusters non-transfer transactions by fuzzy description
// match. Each transaction joins the first existing cluster whose
// representative (the first normalized description seen for it) is at least
// threshold similar, else starts its own. Single greedy pass: membership can
// depend on input order, so callers should only rely on order-insensitive
// aggregates.
func GroupByDescription(txs []ledger.Transaction, threshold float64) map[string][]ledger.Transaction {
	clusters := make(map[string][]ledger.Transaction)
	var reps []string
	for _, tx := range txs {
		if tx.Kind == ledger.Transfer {
			continue
		}
		norm := NormalizeDescription(tx.Description)
		assigned := false
		for _, rep := range reps {
			if DescriptionSimilarity(norm, rep) >= threshold {
				clusters[rep] = append(clusters[rep], tx)
				assigned = true
				break
			}
		}
		if !assigned {
			reps = append(reps, norm)
			clusters[norm] = append(clusters[norm], tx)
		}
	}
	return clusters
}

// frequency reference intervals in days.
var freqIntervals = []struct {
	freq ledger.Frequency
	days float64
}{
	{ledger.FreqWeekly, 7},
	{ledger.FreqBiweekly, 14},
	{ledger.FreqMonthly, 30},
}

// DetectFrequency infers a cadence from occurrence dates: the mean
// consecutive gap is compared against 7, 14 and 30 days, and the nearest
// reference wins if the deviation stays within tolerance (relative to the
// reference). Fewer than 3 dates or irregular spacing yields "".
func DetectFrequency(dates []time.Time, tolerance float64) ledger.Frequency {
	if len(dates) < 3 {
		return ""
	}
	sorted := make([]time.Time, len(dates))
	for i, d := range dates {
		sorted[i] = ledger.Day(d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	gaps := dayGaps(sorted)
	var sum float64
	for _, g := range gaps {
		sum += g
	}
	mean := sum / float64(len(gaps))

	best := ledger.Frequency("")
	bestDev := math.Inf(1)
	for _, ref := range freqIntervals {
		dev := math.Abs(mean - ref.days)
		if dev < bestDev {
			best = ref.freq
			bestDev = dev
		}
	}
	if bestDev <= tolerance*referenceDays(best) {
		return best
	}
	return ""
}

func dayGaps(sorted []time.Time) []float64 {
	gaps := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, sorted[i].Sub(sorted[i-1]).Hours()/24)
	}
	return gaps
}

// referenceDays returns the nominal interval for a cadence.
func referenceDays(f ledger.Frequency) float64 {
	for _, ref := range freqIntervals {
		if ref.freq == f {
			return ref.days
		}
	}
	return 0
}

// confidenceScore combines three additive components for a group with a
// detected cadence:
//
//   - interval regularity, 0-50: worst gap deviation from the reference
//     interval (<=1d: 50, <=2d: 40, <=3d: 30, then 5 points per extra day)
//   - amount consistency, 0-40: coefficient of variation of the amounts
//     (<0.05: 40, <0.10: 30, <0.20: 20, else 0)
//   - occurrence bonus, 0-10: 5-6 occurrences: 5, 7 or more: 10
//
// clamped to [0,100].
func confidenceScore(dates []time.Time, amounts []decimal.Decimal, freq ledger.Frequency) int {
	sorted := make([]time.Time, len(dates))
	for i, d := range dates {
		sorted[i] = ledger.Day(d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	ref := referenceDays(freq)
	maxDev := 0.0
	for _, g := range dayGaps(sorted) {
		if dev := math.Abs(g - ref); dev > maxDev {
			maxDev = dev
		}
	}
	score := regularityPoints(maxDev)
	score += amountConsistencyPoints(amounts)
	score += occurrencePoints(len(dates))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// regularity bands, in days of worst-gap deviation.
const (
	regTightDays  = 1.0
	regCloseDays  = 2.0
	regLooseDays  = 3.0
	regFalloffPts = 5.0 // points lost per day beyond the loose band
)

func regularityPoints(maxDev float64) int {
	switch {
	case maxDev <= regTightDays:
		return 50
	case maxDev <= regCloseDays:
		return 40
	case maxDev <= regLooseDays:
		return 30
	}
	pts := 30.0 - regFalloffPts*(maxDev-regLooseDays)
	if pts < 0 {
		return 0
	}
	return int(pts)
}

// amount-consistency CV bands.
const (
	cvTight = 0.05
	cvClose = 0.10
	cvLoose = 0.20
)

func amountConsistencyPoints(amounts []decimal.Decimal) int {
	if len(amounts) == 0 {
		return 0
	}
	vals := make([]float64, len(amounts))
	var absSum float64
	for i, a := range amounts {
		vals[i], _ = a.Float64()
		absSum += math.Abs(vals[i])
	}
	meanAbs := absSum / float64(len(vals))
	if meanAbs == 0 {
		return 0
	}
	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	var variance float64
	for _, v := range vals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(vals))
	cv := math.Sqrt(variance) / meanAbs
	switch {
	case cv < cvTight:
		return 40
	case cv < cvClose:
		return 30
	case cv < cvLoose:
		return 20
	}
	return 0
}

func occurrencePoints(n int) int {
	switch {
	case n >= 7:
		return 10
	case n >= 5:
		return 5
	}
	return 0
}

// NextExpectedDate projects the next occurrence after lastDate: +7 days
// (weekly), +14 (biweekly), or one calendar month with the day-of-month
// clamped to the target month's length (Jan 31 -> Feb 28/29, never Mar 3).
// An empty frequency yields nil.
func NextExpectedDate(lastDate time.Time, freq ledger.Frequency) *time.Time {
	day := ledger.Day(lastDate)
	var next time.Time
	switch freq {
	case ledger.FreqWeekly:
		next = day.AddDate(0, 0, 7)
	case ledger.FreqBiweekly:
		next = day.AddDate(0, 0, 14)
	case ledger.FreqMonthly:
		next = addMonthClamped(day)
	default:
		return nil
	}
	return &next
}

func addMonthClamped(day time.Time) time.Time {
	firstOfNext := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	lastDay := firstOfNext.AddDate(0, 1, -1).Day()
	d := day.Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), d, 0, 0, 0, 0, time.UTC)
}

// DetectRecurringPatterns runs the full pipeline: fuzzy-cluster descriptions,
// split each cluster per account, drop thin groups, infer a cadence, score
// confidence, and emit one pattern per surviving group. Pre-existing
// IsRecurring/RecurringFrequency hints on the input are ignored; detection
// is recomputed from scratch. Results come back ordered by confidence
// descending, then by most recent occurrence.
func DetectRecurringPatterns(txs []ledger.Transaction, cfg DetectorConfig) []RecurringPattern {
	var patterns []RecurringPattern
	for rep, cluster := range GroupByDescription(txs, cfg.SimilarityThreshold) {
		for accountID, group := range splitByAccount(cluster) {
			if len(group) < cfg.MinOccurrences {
				continue
			}
			dates := make([]time.Time, len(group))
			amounts := make([]decimal.Decimal, len(group))
			for i, tx := range group {
				dates[i] = tx.Date
				amounts[i] = tx.Amount
			}
			freq := DetectFrequency(dates, cfg.FrequencyTolerance)
			if freq == "" {
				continue
			}
			score := confidenceScore(dates, amounts, freq)
			if score < cfg.MinScore {
				continue
			}
			last := ledger.Day(dates[0])
			for _, d := range dates[1:] {
				if ledger.Day(d).After(last) {
					last = ledger.Day(d)
				}
			}
			next := NextExpectedDate(last, freq)
			patterns = append(patterns, RecurringPattern{
				PatternID:          uuid.NewString(),
				DescriptionPattern: rep,
				AccountID:          accountID,
				Category:           dominantCategory(group),
				AvgAmount:          meanAmount(amounts),
				Frequency:          freq,
				NextExpectedDate:   *next,
				ConfidenceScore:    score,
				ConfidenceLevel:    cfg.level(score),
				OccurrenceCount:    len(group),
				LastOccurrenceDate: last,
			})
		}
	}
	sort.SliceStable(patterns, func(i, j int) bool {
		if patterns[i].ConfidenceScore != patterns[j].ConfidenceScore {
			return patterns[i].ConfidenceScore > patterns[j].ConfidenceScore
		}
		if !patterns[i].LastOccurrenceDate.Equal(patterns[j].LastOccurrenceDate) {
			return patterns[i].LastOccurrenceDate.After(patterns[j].LastOccurrenceDate)
		}
		if patterns[i].DescriptionPattern != patterns[j].DescriptionPattern {
			return patterns[i].DescriptionPattern < patterns[j].DescriptionPattern
		}
		return patterns[i].AccountID < patterns[j].AccountID
	})
	return patterns
}

func (c DetectorConfig) level(score int) ConfidenceLevel {
	switch {
	case score >= c.HighScore:
		return ConfidenceHigh
	case score >= c.MediumScore:
		return ConfidenceMedium
	}
	return ConfidenceLow
}

func splitByAccount(txs []ledger.Transaction) map[string][]ledger.Transaction {
	byAccount := make(map[string][]ledger.Transaction)
	for _, tx := range txs {
		byAccount[tx.AccountID] = append(byAccount[tx.AccountID], tx)
	}
	return byAccount
}

// dominantCategory picks the most frequent category in the group, first-seen
// winning ties. Uncategorized groups yield "".
func dominantCategory(txs []ledger.Transaction) string {
	counts := make(map[string]int)
	var order []string
	for _, tx := range txs {
		if tx.Category == "" {
			continue
		}
		if _, seen := counts[tx.Category]; !seen {
			order = append(order, tx.Category)
		}
		counts[tx.Category]++
	}
	best := ""
	bestCount := 0
	for _, c := range order {
		if counts[c] > bestCount {
			best = c
			bestCount = counts[c]
		}
	}
	return best
}

func meanAmount(amounts []decimal.Decimal) decimal.Decimal {
	if len(amounts) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(a)
	}
	return sum.Div(decimal.NewFromInt(int64(len(amounts))))
}
