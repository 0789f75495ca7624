package timeseries

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Row is one observation of a daily series: a calendar date plus a set of
// named metric values (e.g. open/high/low/close/volume for an index quote).
// Values are nullable; a row may carry a date with only some metrics present.
type Row struct {
	// Date is the calendar date of the observation, normalized to UTC midnight.
	// Unique within one series.
	Date time.Time

	// Values maps metric name to its (nullable) value for this date.
	Values map[string]decimal.NullDecimal

	// Imputed marks rows synthesized by Fill rather than observed upstream.
	// Imputed rows are never used as statistical input for later fills.
	Imputed bool
}

// Day normalizes a timestamp to UTC midnight. All series dates pass through
// this before comparison so rows loaded with differing time components or
// zones land on the same calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Stats holds the per-metric arithmetic means of a series, computed from
// observed non-null values only. One Stats is derived per Fill invocation and
// is immutable for the duration of that run.
type Stats struct {
	// Averages maps metric name to the mean of its observed values.
	// Metrics whose observed values are all null have no entry.
	Averages map[string]decimal.Decimal
}

// ComputeStats derives per-metric averages from the observed portion of a
// series. Imputed rows and null cells contribute nothing; an average is never
// computed from previously synthesized values.
func ComputeStats(series []Row) Stats {
	sums := make(map[string]decimal.Decimal)
	counts := make(map[string]int64)

	for _, row := range series {
		if row.Imputed {
			continue
		}
		for metric, v := range row.Values {
			if !v.Valid {
				continue
			}
			sums[metric] = sums[metric].Add(v.Decimal)
			counts[metric]++
		}
	}

	averages := make(map[string]decimal.Decimal, len(sums))
	for metric, sum := range sums {
		averages[metric] = sum.Div(decimal.NewFromInt(counts[metric]))
	}
	return Stats{Averages: averages}
}

// MetricNames returns the union of metric names appearing in the series,
// sorted. Sorting fixes the iteration order so that runs with the same seed
// draw perturbations in the same sequence.
func MetricNames(series []Row) []string {
	seen := make(map[string]struct{})
	for _, row := range series {
		for metric := range row.Values {
			seen[metric] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for metric := range seen {
		names = append(names, metric)
	}
	sort.Strings(names)
	return names
}
