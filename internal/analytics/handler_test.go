package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vantic-lab/project-vantic/internal/backfill"
	corerollup "github.com/vantic-lab/project-vantic/internal/core/rollup"
	"github.com/vantic-lab/project-vantic/internal/core/storage"
	"github.com/vantic-lab/project-vantic/internal/core/timeseries"
	"github.com/vantic-lab/project-vantic/internal/insights"
	"github.com/vantic-lab/project-vantic/internal/rollup"
)

type fakeQuoteStore struct {
	series map[string][]timeseries.Row
}

func (f *fakeQuoteStore) ReadObserved(_ context.Context, series string) ([]timeseries.Row, error) {
	rows, ok := f.series[series]
	if !ok {
		return nil, storage.ErrSeriesNotFound
	}
	return rows, nil
}

func (f *fakeQuoteStore) ReadRange(_ context.Context, series string, start, end time.Time) ([]timeseries.Row, error) {
	rows, ok := f.series[series]
	if !ok {
		return nil, storage.ErrSeriesNotFound
	}
	var out []timeseries.Row
	for _, row := range rows {
		if row.Date.Before(start) || row.Date.After(end) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeQuoteStore) ReplaceSeries(_ context.Context, series string, rows []timeseries.Row, _ storage.BackfillRun) error {
	f.series[series] = rows
	return nil
}

type fakeSalesStore struct {
	customers []corerollup.Customer
	sales     []corerollup.SaleLine
	rollups   map[string]storage.RollupRecord
}

func (f *fakeSalesStore) ReadCustomers(context.Context) ([]corerollup.Customer, error) {
	return f.customers, nil
}

func (f *fakeSalesStore) ReadSales(context.Context) ([]corerollup.SaleLine, error) {
	return f.sales, nil
}

func (f *fakeSalesStore) ReplaceRollups(_ context.Context, rollups []corerollup.CustomerRollup, refreshedAt time.Time) error {
	f.rollups = make(map[string]storage.RollupRecord, len(rollups))
	for _, r := range rollups {
		f.rollups[r.CustomerID] = storage.RollupRecord{Rollup: r, RefreshedAt: refreshedAt}
	}
	return nil
}

func (f *fakeSalesStore) GetRollup(_ context.Context, customerID string) (*storage.RollupRecord, error) {
	record, ok := f.rollups[customerID]
	if !ok {
		return nil, storage.ErrCustomerNotFound
	}
	return &record, nil
}

func (f *fakeSalesStore) ListRollups(_ context.Context, limit int) ([]storage.RollupRecord, error) {
	out := make([]storage.RollupRecord, 0, len(f.rollups))
	for _, record := range f.rollups {
		if len(out) == limit {
			break
		}
		out = append(out, record)
	}
	return out, nil
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
	return nil, timeseries.ErrPolicyNotFound
}

func (f *fakePolicyRepo) Policies() []timeseries.BackfillPolicy {
	return f.policies
}

type fakeReviewStore struct {
	reviews []storage.Review
}

func (f *fakeReviewStore) ReadReviews(context.Context, string, int) ([]storage.Review, error) {
	return f.reviews, nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(context.Context, []string, string) (string, error) {
	return "mostly positive", nil
}

func obs(date time.Time, open float64) timeseries.Row {
	return timeseries.Row{
		Date: date,
		Values: map[string]decimal.NullDecimal{
			"open": {Decimal: decimal.NewFromFloat(open), Valid: true},
		},
	}
}

func newTestRouter(t *testing.T, quotes *fakeQuoteStore, sales *fakeSalesStore, insightsSvc *insights.Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := &fakePolicyRepo{policies: []timeseries.BackfillPolicy{{
		Series:      "cac40_index",
		Bounds:      timeseries.Bounds{Default: &timeseries.Bound{Min: 0.1, Max: 0.5}},
		Fingerprint: "fp",
	}}}
	backfills := backfill.NewService(quotes, repo, 1, 42, nil)
	rollups := rollup.NewService(sales, nil)

	svc := NewService(quotes, sales, backfills, rollups, insightsSvc)
	r := gin.New()
	svc.RegisterRoutes(r)
	return r
}

func do(r *gin.Engine, method, url string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestHandleGetSeries(t *testing.T) {
	quotes := &fakeQuoteStore{series: map[string][]timeseries.Row{
		"cac40_index": {
			obs(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 10),
			obs(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 12),
		},
	}}
	r := newTestRouter(t, quotes, &fakeSalesStore{}, nil)

	resp := do(r, http.MethodGet, "/v1/series/cac40_index")
	require.Equal(t, http.StatusOK, resp.Code)

	var body SeriesResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, "cac40_index", body.Series)
	require.Len(t, body.Rows, 2)
	require.Equal(t, "2024-01-01", body.Rows[0].Date)

	resp = do(r, http.MethodGet, "/v1/series/cac40_index?start=2024-01-02")
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Rows, 1)
}

func TestHandleGetSeries_Errors(t *testing.T) {
	r := newTestRouter(t, &fakeQuoteStore{series: map[string][]timeseries.Row{}}, &fakeSalesStore{}, nil)

	resp := do(r, http.MethodGet, "/v1/series/ghost")
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = do(r, http.MethodGet, "/v1/series/ghost?start=not-a-date")
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(r, http.MethodGet, "/v1/series/ghost?start=2024-02-01&end=2024-01-01")
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleBackfillSeries(t *testing.T) {
	quotes := &fakeQuoteStore{series: map[string][]timeseries.Row{
		"cac40_index": {
			obs(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 10),
			obs(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), 12),
		},
	}}
	r := newTestRouter(t, quotes, &fakeSalesStore{}, nil)

	resp := do(r, http.MethodPost, "/v1/series/cac40_index/backfill")
	require.Equal(t, http.StatusOK, resp.Code)

	var body BackfillResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, 4, body.RowsWritten)
	require.Equal(t, 2, body.ImputedRows)
	require.Len(t, quotes.series["cac40_index"], 4)
}

func TestHandleBackfillSeries_UnknownPolicyIs404(t *testing.T) {
	r := newTestRouter(t, &fakeQuoteStore{series: map[string][]timeseries.Row{}}, &fakeSalesStore{}, nil)

	resp := do(r, http.MethodPost, "/v1/series/ghost/backfill")
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHandleRollupEndpoints(t *testing.T) {
	soldAt := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	sales := &fakeSalesStore{
		customers: []corerollup.Customer{{ID: "CUST_000001"}},
		sales: []corerollup.SaleLine{{
			CustomerID: "CUST_000001",
			OrderID:    "ORDER-1",
			ProductID:  "SKU-9",
			Amount:     decimal.NewFromInt(100),
			Discount:   decimal.NewFromInt(10),
			SoldAt:     soldAt,
		}},
	}
	r := newTestRouter(t, &fakeQuoteStore{series: map[string][]timeseries.Row{}}, sales, nil)

	resp := do(r, http.MethodGet, "/v1/customers/CUST_000001/rollup")
	require.Equal(t, http.StatusNotFound, resp.Code, "no rollup before the first refresh")

	resp = do(r, http.MethodPost, "/v1/rollups/refresh")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = do(r, http.MethodGet, "/v1/customers/CUST_000001/rollup")
	require.Equal(t, http.StatusOK, resp.Code)

	var body RollupResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, int64(1), body.PurchaseCount)
	require.True(t, decimal.NewFromInt(90).Equal(body.TotalSpend))
	require.NotNil(t, body.LastPurchaseAt)
	require.Equal(t, "2024-02-01", *body.LastPurchaseAt)

	resp = do(r, http.MethodGet, "/v1/rollups?limit=10")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = do(r, http.MethodGet, "/v1/rollups?limit=-1")
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleGetInsights(t *testing.T) {
	r := newTestRouter(t, &fakeQuoteStore{series: map[string][]timeseries.Row{}}, &fakeSalesStore{}, nil)

	resp := do(r, http.MethodGet, "/v1/insights")
	require.Equal(t, http.StatusServiceUnavailable, resp.Code, "insights disabled without a summarizer")

	reviews := &fakeReviewStore{reviews: []storage.Review{{
		CustomerName:  "Alex",
		StoreLocation: "Paris",
		Rating:        5,
		Text:          "great ski selection",
		ReviewDate:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}}}
	insightsSvc := insights.NewService(reviews, fakeSummarizer{}, 10, nil)
	r = newTestRouter(t, &fakeQuoteStore{series: map[string][]timeseries.Row{}}, &fakeSalesStore{}, insightsSvc)

	resp = do(r, http.MethodGet, "/v1/insights")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "mostly positive")
}
