package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vantic-lab/project-vantic/internal/core/timeseries"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// marshalMetrics encodes a row's metric map as JSON for the jsonb column.
// decimal.NullDecimal marshals null cells as JSON null, so nullability
// round-trips without a side channel.
func marshalMetrics(values map[string]decimal.NullDecimal) ([]byte, error) {
	payload, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metrics: %w", err)
	}
	return payload, nil
}

// scanQuoteRow scans one index_quotes row into a timeseries.Row.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanQuoteRow(row scanner) (timeseries.Row, error) {
	var (
		date        time.Time
		metricsJSON []byte
		imputed     bool
	)
	if err := row.Scan(&date, &metricsJSON, &imputed); err != nil {
		return timeseries.Row{}, fmt.Errorf("failed to scan quote row: %w", err)
	}

	values := make(map[string]decimal.NullDecimal)
	if len(metricsJSON) > 0 {
		if err := json.Unmarshal(metricsJSON, &values); err != nil {
			return timeseries.Row{}, fmt.Errorf("failed to unmarshal metrics: %w", err)
		}
	}

	return timeseries.Row{
		Date:    timeseries.Day(date),
		Values:  values,
		Imputed: imputed,
	}, nil
}
