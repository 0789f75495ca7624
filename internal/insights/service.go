package insights

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/vantic-lab/project-vantic/internal/core/storage"
)

const summaryInstruction = "You are a retail analyst. Summarize the recurring themes in the " +
	"following customer reviews in at most three sentences. Mention both praise and complaints."

// StoreInsight is one store's review summary.
type StoreInsight struct {
	StoreLocation string `json:"store_location"`
	ReviewCount   int    `json:"review_count"`
	Summary       string `json:"summary"`
}

// Service produces per-store review summaries.
type Service struct {
	reviews    storage.ReviewStore
	summarizer Summarizer
	batchLimit int
	logger     *slog.Logger
}

func NewService(reviews storage.ReviewStore, summarizer Summarizer, batchLimit int, logger *slog.Logger) *Service {
	if batchLimit <= 0 {
		batchLimit = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		reviews:    reviews,
		summarizer: summarizer,
		batchLimit: batchLimit,
		logger:     logger,
	}
}

// StoreSummaries reads the most recent reviews (optionally for one store),
// groups them by store location and produces one summary per store. Stores
// whose summarization fails are skipped with a log line; one flaky store
// should not blank out the whole insights response.
func (s *Service) StoreSummaries(ctx context.Context, storeLocation string) ([]StoreInsight, error) {
	reviews, err := s.reviews.ReadReviews(ctx, storeLocation, s.batchLimit)
	if err != nil {
		return nil, fmt.Errorf("reading reviews: %w", err)
	}

	byStore := make(map[string][]string)
	for _, review := range reviews {
		text := strings.TrimSpace(review.Text)
		if text == "" {
			continue
		}
		byStore[review.StoreLocation] = append(byStore[review.StoreLocation], text)
	}

	stores := make([]string, 0, len(byStore))
	for store := range byStore {
		stores = append(stores, store)
	}
	sort.Strings(stores)

	insights := make([]StoreInsight, 0, len(stores))
	for _, store := range stores {
		texts := byStore[store]
		summary, err := s.summarizer.Summarize(ctx, texts, summaryInstruction)
		if err != nil {
			s.logger.Error("Review summarization failed", "store_location", store, "error", err)
			continue
		}
		insights = append(insights, StoreInsight{
			StoreLocation: store,
			ReviewCount:   len(texts),
			Summary:       summary,
		})
	}
	return insights, nil
}
