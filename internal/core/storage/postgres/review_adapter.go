package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vantic-lab/project-vantic/internal/core/storage"
)

// ReviewAdapter implements storage.ReviewStore for PostgreSQL.
type ReviewAdapter struct {
	db *sql.DB
}

// NewReviewAdapter creates a ReviewAdapter sharing the given connection pool.
func NewReviewAdapter(db *sql.DB) *ReviewAdapter {
	return &ReviewAdapter{db: db}
}

// ReadReviews fetches non-empty reviews, newest first. An empty storeLocation
// matches all stores.
func (a *ReviewAdapter) ReadReviews(ctx context.Context, storeLocation string, limit int) ([]storage.Review, error) {
	rows, err := a.db.QueryContext(ctx, queryReadReviews, storeLocation, limit)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var out []storage.Review
	for rows.Next() {
		var r storage.Review
		if err := rows.Scan(&r.CustomerName, &r.StoreLocation, &r.Rating, &r.Text, &r.ReviewDate); err != nil {
			return nil, fmt.Errorf("failed to scan review row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return out, nil
}
