package postgres

// SQL statements for the warehouse tables. Kept as named constants so the
// sqlmock tests can assert against the exact text.

const (
	// Daily series rows. Metric values live in a jsonb column so a series can
	// carry any metric set without schema churn (schema-on-read upstream).
	queryReadObservedQuotes = `
		SELECT quote_date, metrics, imputed
		FROM index_quotes
		WHERE series_name = $1
		  AND imputed = FALSE
		ORDER BY quote_date ASC
	`

	queryReadQuoteRange = `
		SELECT quote_date, metrics, imputed
		FROM index_quotes
		WHERE series_name = $1
		  AND quote_date >= $2
		  AND quote_date <= $3
		ORDER BY quote_date ASC
	`

	queryDeleteSeries = `
		DELETE FROM index_quotes
		WHERE series_name = $1
	`

	queryInsertQuote = `
		INSERT INTO index_quotes (series_name, quote_date, metrics, imputed, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	queryInsertBackfillRun = `
		INSERT INTO backfill_runs (
			id, series_name, policy_fingerprint, seed,
			started_at, finished_at, rows_written, imputed_rows
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	// Dimension and fact reads for the rollup job. Sales are ordered by
	// ingest_seq: the stable scan order is what makes the top-product tie
	// break deterministic.
	queryReadCustomers = `
		SELECT customer_id, attributes
		FROM customers
		ORDER BY customer_id ASC
	`

	queryReadSales = `
		SELECT customer_id, order_id, product_id, amount, discount, sold_at
		FROM sales
		ORDER BY ingest_seq ASC
	`

	queryDeleteRollups = `
		DELETE FROM customer_rollups
	`

	queryInsertRollup = `
		INSERT INTO customer_rollups (
			customer_id, purchase_count, total_spend, average_order_value,
			last_purchase_at, top_product_id, refreshed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	queryGetRollup = `
		SELECT customer_id, purchase_count, total_spend, average_order_value,
		       last_purchase_at, top_product_id, refreshed_at
		FROM customer_rollups
		WHERE customer_id = $1
	`

	queryListRollups = `
		SELECT customer_id, purchase_count, total_spend, average_order_value,
		       last_purchase_at, top_product_id, refreshed_at
		FROM customer_rollups
		ORDER BY customer_id ASC
		LIMIT $1
	`

	// Reviews feeding the insights service. Empty-text rows are filtered at
	// the source; the summarizer contract requires non-empty inputs.
	queryReadReviews = `
		SELECT customer_name, store_location, rating, review_text, review_date
		FROM reviews
		WHERE review_text <> ''
		  AND ($1 = '' OR store_location = $1)
		ORDER BY review_date DESC
		LIMIT $2
	`
)
