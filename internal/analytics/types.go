package analytics

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vantic-lab/project-vantic/internal/core/storage"
	"github.com/vantic-lab/project-vantic/internal/core/timeseries"
)

const dateLayout = "2006-01-02"

// SeriesRowResponse is one daily row of a series as served over the API.
type SeriesRowResponse struct {
	Date    string                         `json:"date"`
	Values  map[string]decimal.NullDecimal `json:"values"`
	Imputed bool                           `json:"imputed"`
}

// SeriesResponse is the body of GET /v1/series/:name.
type SeriesResponse struct {
	Series string              `json:"series"`
	Rows   []SeriesRowResponse `json:"rows"`
}

// BackfillResponse is the body of POST /v1/series/:name/backfill.
type BackfillResponse struct {
	Series      string    `json:"series"`
	RunID       uuid.UUID `json:"run_id"`
	Seed        int64     `json:"seed"`
	RowsWritten int       `json:"rows_written"`
	ImputedRows int       `json:"imputed_rows"`
}

// RollupResponse is one customer rollup as served over the API.
type RollupResponse struct {
	CustomerID        string          `json:"customer_id"`
	PurchaseCount     int64           `json:"purchase_count"`
	TotalSpend        decimal.Decimal `json:"total_spend"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	LastPurchaseAt    *string         `json:"last_purchase_at"`
	TopProductID      *string         `json:"top_product_id"`
	RefreshedAt       time.Time       `json:"refreshed_at"`
}

// RefreshResponse is the body of POST /v1/rollups/refresh.
type RefreshResponse struct {
	Customers   int       `json:"customers"`
	SalesLines  int       `json:"sales_lines"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

func toSeriesResponse(series string, rows []timeseries.Row) SeriesResponse {
	out := SeriesResponse{Series: series, Rows: make([]SeriesRowResponse, 0, len(rows))}
	for _, row := range rows {
		out.Rows = append(out.Rows, SeriesRowResponse{
			Date:    row.Date.Format(dateLayout),
			Values:  row.Values,
			Imputed: row.Imputed,
		})
	}
	return out
}

func toRollupResponse(record storage.RollupRecord) RollupResponse {
	resp := RollupResponse{
		CustomerID:        record.Rollup.CustomerID,
		PurchaseCount:     record.Rollup.PurchaseCount,
		TotalSpend:        record.Rollup.TotalSpend,
		AverageOrderValue: record.Rollup.AverageOrderValue,
		TopProductID:      record.Rollup.TopProductID,
		RefreshedAt:       record.RefreshedAt,
	}
	if record.Rollup.LastPurchaseAt != nil {
		formatted := record.Rollup.LastPurchaseAt.Format(dateLayout)
		resp.LastPurchaseAt = &formatted
	}
	return resp
}
