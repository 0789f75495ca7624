package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vantic-lab/project-vantic/internal/core/rollup"
	"github.com/vantic-lab/project-vantic/internal/core/storage"
)

// SalesAdapter implements storage.SalesStore for PostgreSQL.
type SalesAdapter struct {
	db *sql.DB
}

// NewSalesAdapter creates a SalesAdapter sharing the given connection pool.
func NewSalesAdapter(db *sql.DB) *SalesAdapter {
	return &SalesAdapter{db: db}
}

// ReadCustomers fetches all customer dimension rows.
func (a *SalesAdapter) ReadCustomers(ctx context.Context) ([]rollup.Customer, error) {
	rows, err := a.db.QueryContext(ctx, queryReadCustomers)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	var out []rollup.Customer
	for rows.Next() {
		var (
			c              rollup.Customer
			attributesJSON []byte
		)
		if err := rows.Scan(&c.ID, &attributesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan customer row: %w", err)
		}
		if len(attributesJSON) > 0 {
			if err := json.Unmarshal(attributesJSON, &c.Attributes); err != nil {
				return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
			}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return out, nil
}

// ReadSales fetches all sale lines ordered by ingest_seq.
func (a *SalesAdapter) ReadSales(ctx context.Context) ([]rollup.SaleLine, error) {
	rows, err := a.db.QueryContext(ctx, queryReadSales)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()

	var out []rollup.SaleLine
	for rows.Next() {
		var line rollup.SaleLine
		if err := rows.Scan(
			&line.CustomerID,
			&line.OrderID,
			&line.ProductID,
			&line.Amount,
			&line.Discount,
			&line.SoldAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sale row: %w", err)
		}
		out = append(out, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sales: %w", err)
	}
	return out, nil
}

// ReplaceRollups swaps the rollup table contents in one transaction.
func (a *SalesAdapter) ReplaceRollups(
	ctx context.Context,
	rollups []rollup.CustomerRollup,
	refreshedAt time.Time,
) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace rollups: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, queryDeleteRollups); err != nil {
		return fmt.Errorf("replace rollups: delete: %w", err)
	}

	for _, r := range rollups {
		var lastPurchase sql.NullTime
		if r.LastPurchaseAt != nil {
			lastPurchase = sql.NullTime{Time: *r.LastPurchaseAt, Valid: true}
		}
		var topProduct sql.NullString
		if r.TopProductID != nil {
			topProduct = sql.NullString{String: *r.TopProductID, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, queryInsertRollup,
			r.CustomerID,
			r.PurchaseCount,
			r.TotalSpend,
			r.AverageOrderValue,
			lastPurchase,
			topProduct,
			refreshedAt,
		); err != nil {
			return fmt.Errorf("replace rollups: insert %s: %w", r.CustomerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace rollups: commit: %w", err)
	}

	slog.Info("[Postgres] Rollups replaced", "count", len(rollups))
	return nil
}

// GetRollup fetches one customer's persisted rollup.
func (a *SalesAdapter) GetRollup(ctx context.Context, customerID string) (*storage.RollupRecord, error) {
	record, err := scanRollupRow(a.db.QueryRowContext(ctx, queryGetRollup, customerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrCustomerNotFound
		}
		return nil, err
	}
	return record, nil
}

// ListRollups fetches rollups ordered by customer ID, up to limit.
func (a *SalesAdapter) ListRollups(ctx context.Context, limit int) ([]storage.RollupRecord, error) {
	rows, err := a.db.QueryContext(ctx, queryListRollups, limit)
	if err != nil {
		return nil, fmt.Errorf("query rollups: %w", err)
	}
	defer rows.Close()

	var out []storage.RollupRecord
	for rows.Next() {
		record, err := scanRollupRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rollups: %w", err)
	}
	return out, nil
}

func scanRollupRow(row scanner) (*storage.RollupRecord, error) {
	var (
		record       storage.RollupRecord
		total        decimal.Decimal
		average      decimal.Decimal
		lastPurchase sql.NullTime
		topProduct   sql.NullString
	)
	err := row.Scan(
		&record.Rollup.CustomerID,
		&record.Rollup.PurchaseCount,
		&total,
		&average,
		&lastPurchase,
		&topProduct,
		&record.RefreshedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan rollup row: %w", err)
	}
	record.Rollup.TotalSpend = total
	record.Rollup.AverageOrderValue = average
	if lastPurchase.Valid {
		t := lastPurchase.Time
		record.Rollup.LastPurchaseAt = &t
	}
	if topProduct.Valid {
		s := topProduct.String
		record.Rollup.TopProductID = &s
	}
	return &record, nil
}
