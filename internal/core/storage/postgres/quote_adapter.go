package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/vantic-lab/project-vantic/internal/core/storage"
	"github.com/vantic-lab/project-vantic/internal/core/timeseries"
)

// QuoteAdapter implements storage.QuoteStore for PostgreSQL.
type QuoteAdapter struct {
	db *sql.DB
}

// NewQuoteAdapter creates a QuoteAdapter sharing the given connection pool.
func NewQuoteAdapter(db *sql.DB) *QuoteAdapter {
	return &QuoteAdapter{db: db}
}

// ReadObserved fetches the non-imputed rows of a series, ordered by date.
func (a *QuoteAdapter) ReadObserved(ctx context.Context, series string) ([]timeseries.Row, error) {
	return a.readRows(ctx, queryReadObservedQuotes, series)
}

// ReadRange fetches all rows for a series within [start, end] inclusive.
func (a *QuoteAdapter) ReadRange(ctx context.Context, series string, start, end time.Time) ([]timeseries.Row, error) {
	return a.readRows(ctx, queryReadQuoteRange, series, timeseries.Day(start), timeseries.Day(end))
}

func (a *QuoteAdapter) readRows(ctx context.Context, query string, args ...interface{}) ([]timeseries.Row, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

	var out []timeseries.Row
	for rows.Next() {
		row, err := scanQuoteRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotes: %w", err)
	}
	if len(out) == 0 {
		return nil, storage.ErrSeriesNotFound
	}
	return out, nil
}

// ReplaceSeries swaps the full series contents and records the backfill run
// in one transaction. A reader either sees the old series or the new one,
// never a mix.
func (a *QuoteAdapter) ReplaceSeries(
	ctx context.Context,
	series string,
	rows []timeseries.Row,
	run storage.BackfillRun,
) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace series: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, queryDeleteSeries, series); err != nil {
		return fmt.Errorf("replace series: delete: %w", err)
	}

	now := time.Now().UTC()
	for _, row := range rows {
		metricsJSON, err := marshalMetrics(row.Values)
		if err != nil {
			return fmt.Errorf("replace series: %w", err)
		}
		if _, err := tx.ExecContext(ctx, queryInsertQuote,
			series, timeseries.Day(row.Date), metricsJSON, row.Imputed, now,
		); err != nil {
			return fmt.Errorf("replace series: insert %s: %w", row.Date.Format("2006-01-02"), err)
		}
	}

	if _, err := tx.ExecContext(ctx, queryInsertBackfillRun,
		run.ID, run.Series, run.PolicyFingerprint, run.Seed,
		run.StartedAt, run.FinishedAt, run.RowsWritten, run.ImputedRows,
	); err != nil {
		return fmt.Errorf("replace series: record run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace series: commit: %w", err)
	}

	slog.Info("[Postgres] Series replaced",
		"series", series,
		"rows", run.RowsWritten,
		"imputed", run.ImputedRows,
		"run_id", run.ID,
	)
	return nil
}
