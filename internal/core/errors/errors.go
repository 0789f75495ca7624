package errors

const (
	HttpInternalError         = "internal_error"
	HttpInvalidQueryError     = "invalid_query"
	HttpSeriesNotFoundError   = "series_not_found"
	HttpCustomerNotFoundError = "customer_not_found"
	HttpBackfillFailedError   = "backfill_failed"
	HttpInsightsDisabledError = "insights_disabled"
)

// ErrorResponse is the error response body for analytics API errors.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
