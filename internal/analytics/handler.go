// Package analytics exposes the read API over filled series, customer rollups
// and review insights, plus the on-demand triggers for backfill and rollup
// refresh.
package analytics

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vantic-lab/project-vantic/internal/backfill"
	httperr "github.com/vantic-lab/project-vantic/internal/core/errors"
	"github.com/vantic-lab/project-vantic/internal/core/storage"
	"github.com/vantic-lab/project-vantic/internal/core/timeseries"
	"github.com/vantic-lab/project-vantic/internal/insights"
	"github.com/vantic-lab/project-vantic/internal/rollup"
)

// Service wires the analytics API handlers to the stores and job services.
type Service struct {
	quotes    storage.QuoteStore
	sales     storage.SalesStore
	backfills *backfill.Service
	rollups   *rollup.Service
	insights  *insights.Service // nil when insights are disabled
}

func NewService(quotes storage.QuoteStore, sales storage.SalesStore, backfills *backfill.Service, rollups *rollup.Service, insightsSvc *insights.Service) *Service {
	return &Service{
		quotes:    quotes,
		sales:     sales,
		backfills: backfills,
		rollups:   rollups,
		insights:  insightsSvc,
	}
}

// RegisterRoutes registers all analytics API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/series/:name", s.HandleGetSeries)
	r.POST("/v1/series/:name/backfill", s.HandleBackfillSeries)
	r.GET("/v1/customers/:customer_id/rollup", s.HandleGetRollup)
	r.GET("/v1/rollups", s.HandleListRollups)
	r.POST("/v1/rollups/refresh", s.HandleRefreshRollups)
	r.GET("/v1/insights", s.HandleGetInsights)
}

// HandleGetSeries handles GET /v1/series/:name
// Query parameters: start, end (YYYY-MM-DD, both optional).
func (s *Service) HandleGetSeries(c *gin.Context) {
	name := c.Param("name")

	start, end, err := parseRange(c.Query("start"), c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	rows, err := s.quotes.ReadRange(c.Request.Context(), name, start, end)
	if err != nil {
		if errors.Is(err, storage.ErrSeriesNotFound) {
			c.JSON(http.StatusNotFound, httperr.ErrorResponse{
				ErrorType: httperr.HttpSeriesNotFoundError,
				Message:   "Series not found",
				Details:   name,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to read series",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, toSeriesResponse(name, rows))
}

// HandleBackfillSeries handles POST /v1/series/:name/backfill
func (s *Service) HandleBackfillSeries(c *gin.Context) {
	name := c.Param("name")

	result, err := s.backfills.RunOne(c.Request.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, timeseries.ErrPolicyNotFound), errors.Is(err, storage.ErrSeriesNotFound):
			c.JSON(http.StatusNotFound, httperr.ErrorResponse{
				ErrorType: httperr.HttpSeriesNotFoundError,
				Message:   "No backfill target for series",
				Details:   err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
				ErrorType: httperr.HttpBackfillFailedError,
				Message:   "Backfill failed",
				Details:   err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, BackfillResponse{
		Series:      result.Series,
		RunID:       result.RunID,
		Seed:        result.Seed,
		RowsWritten: result.RowsWritten,
		ImputedRows: result.ImputedRows,
	})
}

// HandleGetRollup handles GET /v1/customers/:customer_id/rollup
func (s *Service) HandleGetRollup(c *gin.Context) {
	customerID := c.Param("customer_id")

	record, err := s.sales.GetRollup(c.Request.Context(), customerID)
	if err != nil {
		if errors.Is(err, storage.ErrCustomerNotFound) {
			c.JSON(http.StatusNotFound, httperr.ErrorResponse{
				ErrorType: httperr.HttpCustomerNotFoundError,
				Message:   "No rollup for customer",
				Details:   customerID,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to read rollup",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, toRollupResponse(*record))
}

// HandleListRollups handles GET /v1/rollups
// Query parameters: limit (default 100).
func (s *Service) HandleListRollups(c *gin.Context) {
	var query struct {
		Limit int `form:"limit,default=100"`
	}
	if err := c.ShouldBindQuery(&query); err != nil || query.Limit <= 0 {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid limit",
		})
		return
	}

	records, err := s.sales.ListRollups(c.Request.Context(), query.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to list rollups",
			Details:   err.Error(),
		})
		return
	}

	out := make([]RollupResponse, 0, len(records))
	for _, record := range records {
		out = append(out, toRollupResponse(record))
	}
	c.JSON(http.StatusOK, gin.H{"rollups": out})
}

// HandleRefreshRollups handles POST /v1/rollups/refresh
func (s *Service) HandleRefreshRollups(c *gin.Context) {
	summary, err := s.rollups.Refresh(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Rollup refresh failed",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, RefreshResponse{
		Customers:   summary.Customers,
		SalesLines:  summary.SalesLines,
		RefreshedAt: summary.RefreshedAt,
	})
}

// HandleGetInsights handles GET /v1/insights
// Query parameters: store (optional store location filter).
func (s *Service) HandleGetInsights(c *gin.Context) {
	if s.insights == nil {
		c.JSON(http.StatusServiceUnavailable, httperr.ErrorResponse{
			ErrorType: httperr.HttpInsightsDisabledError,
			Message:   "Insights are not enabled",
		})
		return
	}

	summaries, err := s.insights.StoreSummaries(c.Request.Context(), c.Query("store"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to build insights",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"insights": summaries})
}

// parseRange parses optional YYYY-MM-DD bounds, defaulting to an open range.
func parseRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	start := time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

	var err error
	if startRaw != "" {
		if start, err = time.Parse(dateLayout, startRaw); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if endRaw != "" {
		if end, err = time.Parse(dateLayout, endRaw); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("end is before start")
	}
	return start, end, nil
}
