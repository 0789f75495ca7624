package backfill

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vantic-lab/project-vantic/internal/core/storage"
	"github.com/vantic-lab/project-vantic/internal/core/timeseries"
)

type fakeQuoteStore struct {
	mu       sync.Mutex
	observed map[string][]timeseries.Row
	readErr  map[string]error
	writeErr map[string]error
	written  map[string][]timeseries.Row
	runs     map[string]storage.BackfillRun
}

func newFakeQuoteStore() *fakeQuoteStore {
	return &fakeQuoteStore{
		observed: make(map[string][]timeseries.Row),
		readErr:  make(map[string]error),
		writeErr: make(map[string]error),
		written:  make(map[string][]timeseries.Row),
		runs:     make(map[string]storage.BackfillRun),
	}
}

func (f *fakeQuoteStore) ReadObserved(_ context.Context, series string) ([]timeseries.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readErr[series]; err != nil {
		return nil, err
	}
	rows, ok := f.observed[series]
	if !ok {
		return nil, storage.ErrSeriesNotFound
	}
	return rows, nil
}

func (f *fakeQuoteStore) ReadRange(_ context.Context, series string, _, _ time.Time) ([]timeseries.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written[series], nil
}

func (f *fakeQuoteStore) ReplaceSeries(_ context.Context, series string, rows []timeseries.Row, run storage.BackfillRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.writeErr[series]; err != nil {
		return err
	}
	f.written[series] = rows
	f.runs[series] = run
	return nil
}

type fakePolicyRepo struct {
	policies []timeseries.BackfillPolicy
}

func (f *fakePolicyRepo) Get(_ context.Context, series string) (*timeseries.BackfillPolicy, error) {
	for _, p := range f.policies {
		if p.Series == series {
			return &p, nil
		}
	}
	return nil, errors.New("policy not found")
}

func (f *fakePolicyRepo) Policies() []timeseries.BackfillPolicy {
	return f.policies
}

func day(yyyy int, mm time.Month, dd int) time.Time {
	return time.Date(yyyy, mm, dd, 0, 0, 0, 0, time.UTC)
}

func obs(date time.Time, open float64) timeseries.Row {
	return timeseries.Row{
		Date: date,
		Values: map[string]decimal.NullDecimal{
			"open": {Decimal: decimal.NewFromFloat(open), Valid: true},
		},
	}
}

func zeroPolicy(series string) timeseries.BackfillPolicy {
	return timeseries.BackfillPolicy{
		Series:      series,
		Bounds:      timeseries.Bounds{Default: &timeseries.Bound{}},
		Fingerprint: "fp-" + series,
	}
}

func TestService_RunAll_FillsGapsAndRecordsRun(t *testing.T) {
	store := newFakeQuoteStore()
	store.observed["cac40_index"] = []timeseries.Row{
		obs(day(2024, 1, 1), 10),
		obs(day(2024, 1, 4), 12),
	}
	repo := &fakePolicyRepo{policies: []timeseries.BackfillPolicy{zeroPolicy("cac40_index")}}

	svc := NewService(store, repo, 2, 42, nil)
	results := svc.RunAll(context.Background())

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Equal(t, 4, results[0].RowsWritten)
	require.Equal(t, 2, results[0].ImputedRows)

	written := store.written["cac40_index"]
	require.Len(t, written, 4)
	for i, row := range written {
		require.Equal(t, day(2024, 1, 1+i), row.Date)
	}
	require.True(t, written[1].Imputed)
	require.True(t, written[2].Imputed)

	run := store.runs["cac40_index"]
	require.Equal(t, "fp-cac40_index", run.PolicyFingerprint)
	require.Equal(t, results[0].Seed, run.Seed)
	require.Equal(t, 4, run.RowsWritten)
	require.Equal(t, 2, run.ImputedRows)
}

func TestService_RunAll_OneSeriesFailingDoesNotAbortOthers(t *testing.T) {
	store := newFakeQuoteStore()
	store.observed["healthy"] = []timeseries.Row{
		obs(day(2024, 1, 1), 10),
		obs(day(2024, 1, 2), 12),
	}
	store.readErr["broken"] = errors.New("connection reset")
	repo := &fakePolicyRepo{policies: []timeseries.BackfillPolicy{
		zeroPolicy("broken"),
		zeroPolicy("healthy"),
	}}

	svc := NewService(store, repo, 2, 42, nil)
	results := svc.RunAll(context.Background())

	byName := make(map[string]Result, len(results))
	for _, res := range results {
		byName[res.Series] = res
	}
	require.Error(t, byName["broken"].Err)
	require.NoError(t, byName["healthy"].Err)
	require.Len(t, store.written["healthy"], 2)
}

func TestService_FixedSeedReproducesFill(t *testing.T) {
	makeStore := func() *fakeQuoteStore {
		store := newFakeQuoteStore()
		store.observed["cac40_index"] = []timeseries.Row{
			obs(day(2024, 1, 1), 100),
			obs(day(2024, 1, 10), 120),
		}
		return store
	}
	repo := &fakePolicyRepo{policies: []timeseries.BackfillPolicy{{
		Series:      "cac40_index",
		Bounds:      timeseries.Bounds{Default: &timeseries.Bound{Min: 0.1, Max: 0.5}},
		Fingerprint: "fp",
	}}}

	first := makeStore()
	second := makeStore()
	NewService(first, repo, 1, 42, nil).RunAll(context.Background())
	NewService(second, repo, 1, 42, nil).RunAll(context.Background())

	a, b := first.written["cac40_index"], second.written["cac40_index"]
	require.Equal(t, len(a), len(b))
	for i := range a {
		require.Equal(t, a[i].Date, b[i].Date)
		require.True(t, a[i].Values["open"].Decimal.Equal(b[i].Values["open"].Decimal),
			"row %d: %s != %s", i, a[i].Values["open"].Decimal, b[i].Values["open"].Decimal)
	}
}

func TestService_RunOne_UnknownSeries(t *testing.T) {
	svc := NewService(newFakeQuoteStore(), &fakePolicyRepo{}, 1, 42, nil)
	_, err := svc.RunOne(context.Background(), "ghost")
	require.Error(t, err)
}

func TestService_RunOne_WriteFailureSurfaces(t *testing.T) {
	store := newFakeQuoteStore()
	store.observed["cac40_index"] = []timeseries.Row{
		obs(day(2024, 1, 1), 10),
		obs(day(2024, 1, 3), 12),
	}
	store.writeErr["cac40_index"] = errors.New("disk full")
	repo := &fakePolicyRepo{policies: []timeseries.BackfillPolicy{zeroPolicy("cac40_index")}}

	svc := NewService(store, repo, 1, 42, nil)
	res, err := svc.RunOne(context.Background(), "cac40_index")
	require.Error(t, err)
	require.Equal(t, "cac40_index", res.Series)
	require.Empty(t, store.written["cac40_index"])
}
