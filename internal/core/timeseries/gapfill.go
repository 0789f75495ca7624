package timeseries

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// ErrEmptySeries is returned by Fill when the input contains no rows at all:
// there is no date range to enumerate and no statistics to compute.
var ErrEmptySeries = errors.New("timeseries: series is empty")

// InsufficientDataError is returned when a metric must be synthesized but
// every observed value for it is null, so its average is undefined. Fill never
// substitutes a silent zero: a zero would be indistinguishable from a
// legitimate zero reading.
type InsufficientDataError struct {
	Metric string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("timeseries: metric %q has no observed values to average", e.Metric)
}

// InvalidRangeError is returned when a perturbation bound has Min > Max.
type InvalidRangeError struct {
	Metric   string
	Min, Max float64
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("timeseries: perturbation bound for %q has min %v > max %v", e.Metric, e.Min, e.Max)
}

// Bound is the fractional perturbation range applied to a synthesized value:
// the imputed cell is average * (1 + u) with u drawn uniformly from [Min, Max].
type Bound struct {
	Min float64
	Max float64
}

// Bounds carries the per-metric perturbation configuration for one fill.
// There is no package-level default; the upstream ranges (10%–50% upward)
// are operator policy, so callers must supply bounds explicitly.
type Bounds struct {
	// Metrics overrides the default bound per metric name.
	Metrics map[string]Bound

	// Default applies to metrics without an explicit entry. Nil means metrics
	// absent from Metrics are not coverable and fail validation when present
	// in the series.
	Default *Bound
}

// For resolves the bound for a metric, falling back to the default.
func (b Bounds) For(metric string) (Bound, bool) {
	if bound, ok := b.Metrics[metric]; ok {
		return bound, true
	}
	if b.Default != nil {
		return *b.Default, true
	}
	return Bound{}, false
}

// validate checks every bound that could apply to the given metrics.
func (b Bounds) validate(metrics []string) error {
	for metric, bound := range b.Metrics {
		if bound.Min > bound.Max {
			return &InvalidRangeError{Metric: metric, Min: bound.Min, Max: bound.Max}
		}
	}
	if b.Default != nil && b.Default.Min > b.Default.Max {
		return &InvalidRangeError{Metric: "(default)", Min: b.Default.Min, Max: b.Default.Max}
	}
	for _, metric := range metrics {
		if _, ok := b.For(metric); !ok {
			return fmt.Errorf("timeseries: no perturbation bound configured for metric %q", metric)
		}
	}
	return nil
}

// Fill produces a complete contiguous daily series covering every calendar
// date from the minimum to the maximum observed date, inclusive. Observed rows
// pass through untouched; missing dates are synthesized from the series'
// per-metric averages, each perturbed independently by a uniform draw from the
// configured bound.
//
// The random source is injected rather than ambient so a run is reproducible
// given the same seed. Fill is pure: it performs no I/O and never mutates its
// input.
//
// Fill fails fast; on any error the result is nil, never a partially imputed
// series.
func Fill(series []Row, bounds Bounds, rng *rand.Rand) ([]Row, error) {
	if len(series) == 0 {
		return nil, ErrEmptySeries
	}
	if rng == nil {
		return nil, errors.New("timeseries: random source is required")
	}

	metrics := MetricNames(series)
	if err := bounds.validate(metrics); err != nil {
		return nil, err
	}

	byDate := make(map[time.Time]Row, len(series))
	minDate, maxDate := Day(series[0].Date), Day(series[0].Date)
	for _, row := range series {
		day := Day(row.Date)
		if _, dup := byDate[day]; dup {
			return nil, fmt.Errorf("timeseries: duplicate row for date %s", day.Format("2006-01-02"))
		}
		byDate[day] = row
		if day.Before(minDate) {
			minDate = day
		}
		if day.After(maxDate) {
			maxDate = day
		}
	}

	stats := ComputeStats(series)

	days := int(maxDate.Sub(minDate).Hours()/24) + 1
	out := make([]Row, 0, days)
	for day := minDate; !day.After(maxDate); day = day.AddDate(0, 0, 1) {
		if row, ok := byDate[day]; ok {
			row.Date = day
			out = append(out, row)
			continue
		}
		row, err := synthesize(day, metrics, stats, bounds, rng)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// synthesize builds one imputed row. Perturbations are drawn per metric in
// the (sorted) metric order, one draw per cell.
func synthesize(day time.Time, metrics []string, stats Stats, bounds Bounds, rng *rand.Rand) (Row, error) {
	values := make(map[string]decimal.NullDecimal, len(metrics))
	for _, metric := range metrics {
		avg, ok := stats.Averages[metric]
		if !ok {
			return Row{}, &InsufficientDataError{Metric: metric}
		}
		bound, _ := bounds.For(metric)
		u := bound.Min + rng.Float64()*(bound.Max-bound.Min)
		value := avg.Mul(decimal.NewFromFloat(1 + u))
		values[metric] = decimal.NullDecimal{Decimal: value, Valid: true}
	}
	return Row{Date: day, Values: values, Imputed: true}, nil
}
