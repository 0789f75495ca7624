// Package backfill runs gap-filling jobs over stored daily series. Each
// configured series is read back, filled to a contiguous range and written
// atomically, with an audit record tying the output to the policy fingerprint
// and seed that produced it.
package backfill

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vantic-lab/project-vantic/internal/core/storage"
	"github.com/vantic-lab/project-vantic/internal/core/timeseries"
)

// Result reports the outcome of filling one series. Err is set when the fill
// for that series failed; other series in the same run are unaffected.
type Result struct {
	Series      string
	RunID       uuid.UUID
	Seed        int64
	RowsWritten int
	ImputedRows int
	Err         error
}

// Service executes backfill runs against a quote store.
type Service struct {
	store    storage.QuoteStore
	policies timeseries.PolicyRepository
	workers  int
	baseSeed int64 // 0 = derive from wall clock per run
	logger   *slog.Logger

	now func() time.Time
}

func NewService(store storage.QuoteStore, policies timeseries.PolicyRepository, workers int, baseSeed int64, logger *slog.Logger) *Service {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		policies: policies,
		workers:  workers,
		baseSeed: baseSeed,
		logger:   logger,
		now:      time.Now,
	}
}

// RunAll fills every series that has a policy. Series are processed
// concurrently up to the configured worker count; a failure in one series
// never aborts the others. The returned slice has one Result per policy.
func (s *Service) RunAll(ctx context.Context) []Result {
	policies := s.policies.Policies()
	results := make([]Result, len(policies))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, policy := range policies {
		g.Go(func() error {
			results[i] = s.fill(ctx, policy)
			return nil
		})
	}
	g.Wait()

	for _, res := range results {
		if res.Err != nil {
			s.logger.Error("Backfill failed for series", "series", res.Series, "error", res.Err)
			continue
		}
		s.logger.Info("Backfill complete for series",
			"series", res.Series,
			"run_id", res.RunID,
			"rows_written", res.RowsWritten,
			"imputed_rows", res.ImputedRows,
		)
	}
	return results
}

// RunOne fills a single series on demand.
func (s *Service) RunOne(ctx context.Context, series string) (Result, error) {
	policy, err := s.policies.Get(ctx, series)
	if err != nil {
		return Result{Series: series, Err: err}, err
	}
	res := s.fill(ctx, *policy)
	return res, res.Err
}

func (s *Service) fill(ctx context.Context, policy timeseries.BackfillPolicy) Result {
	res := Result{Series: policy.Series, Seed: s.seedFor(policy.Series)}
	startedAt := s.now()

	observed, err := s.store.ReadObserved(ctx, policy.Series)
	if err != nil {
		res.Err = fmt.Errorf("reading observed rows: %w", err)
		return res
	}

	rng := rand.New(rand.NewSource(res.Seed))
	filled, err := timeseries.Fill(observed, policy.Bounds, rng)
	if err != nil {
		res.Err = fmt.Errorf("filling series: %w", err)
		return res
	}

	imputed := 0
	for _, row := range filled {
		if row.Imputed {
			imputed++
		}
	}

	run := storage.BackfillRun{
		ID:                uuid.New(),
		Series:            policy.Series,
		PolicyFingerprint: policy.Fingerprint,
		Seed:              res.Seed,
		StartedAt:         startedAt,
		FinishedAt:        s.now(),
		RowsWritten:       len(filled),
		ImputedRows:       imputed,
	}
	if err := s.store.ReplaceSeries(ctx, policy.Series, filled, run); err != nil {
		res.Err = fmt.Errorf("writing filled series: %w", err)
		return res
	}

	res.RunID = run.ID
	res.RowsWritten = run.RowsWritten
	res.ImputedRows = run.ImputedRows
	return res
}

// seedFor derives a per-series seed so concurrent series draw from independent
// streams. With a fixed base seed the derivation is stable across runs.
func (s *Service) seedFor(series string) int64 {
	base := s.baseSeed
	if base == 0 {
		base = s.now().UnixNano()
	}
	h := fnv.New64a()
	h.Write([]byte(series))
	return base ^ int64(h.Sum64())
}
