package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vantic-lab/project-vantic/internal/core/rollup"
	"github.com/vantic-lab/project-vantic/internal/core/timeseries"
)

// ErrSeriesNotFound is returned when a series has no rows at all.
var ErrSeriesNotFound = errors.New("series not found")

// ErrCustomerNotFound is returned when no rollup exists for a customer.
var ErrCustomerNotFound = errors.New("customer rollup not found")

// BackfillRun is the audit record written alongside a series replacement.
// The policy fingerprint and seed make any historical fill reproducible.
type BackfillRun struct {
	ID                uuid.UUID
	Series            string
	PolicyFingerprint string
	Seed              int64
	StartedAt         time.Time
	FinishedAt        time.Time
	RowsWritten       int
	ImputedRows       int
}

// QuoteStore persists daily series rows (e.g. index quotes).
type QuoteStore interface {
	// ReadObserved fetches only non-imputed rows for a series, ordered by
	// date ascending. This is the statistical input for a fill: previously
	// imputed rows never feed a new fill.
	ReadObserved(ctx context.Context, series string) ([]timeseries.Row, error)

	// ReadRange fetches all rows (observed and imputed) for a series within
	// [start, end] inclusive, ordered by date ascending.
	ReadRange(ctx context.Context, series string, start, end time.Time) ([]timeseries.Row, error)

	// ReplaceSeries atomically swaps the full contents of a series for the
	// given rows and records the backfill run. Either everything lands or
	// nothing does; readers never observe a partially filled series.
	ReplaceSeries(ctx context.Context, series string, rows []timeseries.Row, run BackfillRun) error
}

// RollupRecord is a persisted customer rollup plus its refresh timestamp.
type RollupRecord struct {
	Rollup      rollup.CustomerRollup
	RefreshedAt time.Time
}

// SalesStore supplies the rollup job's inputs and persists its output.
type SalesStore interface {
	// ReadCustomers fetches all dimension rows.
	ReadCustomers(ctx context.Context) ([]rollup.Customer, error)

	// ReadSales fetches all fact rows in ingest order. The stable order is
	// what makes the top-product tie break deterministic across runs.
	ReadSales(ctx context.Context) ([]rollup.SaleLine, error)

	// ReplaceRollups atomically replaces the rollup table contents.
	ReplaceRollups(ctx context.Context, rollups []rollup.CustomerRollup, refreshedAt time.Time) error

	// GetRollup fetches one customer's rollup. Returns ErrCustomerNotFound
	// if the rollup table has no row for the customer.
	GetRollup(ctx context.Context, customerID string) (*RollupRecord, error)

	// ListRollups fetches rollups ordered by customer ID, up to limit.
	ListRollups(ctx context.Context, limit int) ([]RollupRecord, error)
}

// Review is one customer review row, the input to the insights service.
type Review struct {
	CustomerName  string
	StoreLocation string
	Rating        int
	Text          string
	ReviewDate    time.Time
}

// ReviewStore reads review text for summarization.
type ReviewStore interface {
	// ReadReviews fetches reviews with non-empty text, newest first, up to
	// limit. An empty storeLocation means all stores.
	ReadReviews(ctx context.Context, storeLocation string, limit int) ([]Review, error)
}
