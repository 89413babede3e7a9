package trending

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/trending-digest/internal/metrics"
	"github.com/JakeFAU/trending-digest/internal/telemetry"
)

// Run statuses reported to metrics.
const (
	RunStatusComplete = "complete"
	RunStatusPartial  = "partial"
	RunStatusEmpty    = "empty"
)

// EngineConfig controls one pipeline run.
type EngineConfig struct {
	ListingURL  string
	BaseURL     string
	RawBaseURL  string
	Limit       int
	Concurrency int
	RunTimeout  time.Duration
	FetchReadme bool
}

// Engine drives listing, enrichment and aggregation.
type Engine struct {
	cfg    EngineConfig
	pages  Fetcher
	raw    Fetcher
	clock  Clock
	ids    IDGenerator
	logger *zap.Logger
}

// NewEngine builds an Engine. pages serves HTML documents, raw serves README
// files; a nil raw reuses pages.
func NewEngine(cfg EngineConfig, pages, raw Fetcher, clock Clock, ids IDGenerator, logger *zap.Logger) *Engine {
	if raw == nil {
		raw = pages
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, pages: pages, raw: raw, clock: clock, ids: ids, logger: logger}
}

// slotOutcome is what enriching one repository produced.
type slotOutcome struct {
	enriched bool
	failures int
	complete bool
}

// Run executes the pipeline. Transport and parse failures degrade the
// Summary instead of failing the run; cancellation yields a partial result.
func (e *Engine) Run(ctx context.Context) (RunResult, error) {
	if e.cfg.Limit <= 0 {
		return RunResult{}, fmt.Errorf("%w: got %d", ErrInvalidLimit, e.cfg.Limit)
	}
	runID, err := e.ids.NewID()
	if err != nil {
		return RunResult{}, fmt.Errorf("generate run id: %w", err)
	}
	logger := e.logger.With(zap.String("run_id", runID))

	ctx, span := telemetry.Tracer().Start(ctx, "trending.run",
		trace.WithAttributes(attribute.String("run_id", runID), attribute.Int("limit", e.cfg.Limit)))
	defer span.End()

	if e.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RunTimeout)
		defer cancel()
	}

	result := RunResult{RunID: runID}
	logger.Info("run started", zap.String("listing_url", e.cfg.ListingURL), zap.Int("limit", e.cfg.Limit))

	records, listed := e.list(ctx, logger)
	if !listed {
		result.FetchFailures++
	}
	result.Listed = len(records)

	interrupted := !listed && ctx.Err() != nil
	for _, out := range e.enrich(ctx, logger, records) {
		if out.enriched {
			result.Enriched++
		}
		result.FetchFailures += out.failures
		if !out.complete {
			interrupted = true
		}
	}
	result.Partial = interrupted && ctx.Err() != nil
	result.Summary = Aggregate(records, e.clock.Now())

	status := RunStatusComplete
	switch {
	case result.Partial:
		status = RunStatusPartial
	case result.Listed == 0:
		status = RunStatusEmpty
	}
	metrics.ObserveRun(status)
	span.SetAttributes(
		attribute.String("status", status),
		attribute.Int("listed", result.Listed),
		attribute.Int("enriched", result.Enriched),
	)
	logger.Info("run finished",
		zap.String("status", status),
		zap.Int("listed", result.Listed),
		zap.Int("enriched", result.Enriched),
		zap.Int("fetch_failures", result.FetchFailures),
	)
	return result, nil
}

// list fetches and parses the listing page. The bool reports whether the
// listing document was retrieved.
func (e *Engine) list(ctx context.Context, logger *zap.Logger) ([]Repository, bool) {
	body, err := e.pages.Fetch(ctx, e.cfg.ListingURL)
	if err != nil {
		logger.Warn("listing fetch failed", zap.String("url", e.cfg.ListingURL), zap.Error(err))
		return nil, false
	}
	repos, err := ParseListing(body, e.cfg.BaseURL, e.cfg.Limit)
	if err != nil {
		logger.Warn("listing parse failed", zap.Error(err))
		return nil, true
	}
	for i := range repos {
		repos[i].Readme = ReadmeNotAvailable
	}
	logger.Info("listing parsed", zap.Int("repositories", len(repos)))
	return repos, true
}

// enrich fills each record in place. Workers only touch their own slot, so
// listing order survives any completion order.
func (e *Engine) enrich(ctx context.Context, logger *zap.Logger, records []Repository) []slotOutcome {
	outcomes := make([]slotOutcome, len(records))
	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for i := range records {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcomes[i] = e.enrichOne(ctx, logger, &records[i])
			return nil
		})
	}
	// Workers never return errors; failures are recorded per slot.
	_ = g.Wait()
	return outcomes
}

func (e *Engine) enrichOne(ctx context.Context, logger *zap.Logger, repo *Repository) slotOutcome {
	var out slotOutcome
	if ctx.Err() != nil {
		return out
	}

	body, err := e.pages.Fetch(ctx, repo.URL)
	if err != nil {
		out.failures++
		logger.Warn("detail fetch failed", zap.String("repo", repo.Name), zap.Error(err))
	} else {
		counts := ParseDetail(body)
		repo.TotalStars = counts.TotalStars
		repo.Forks = counts.Forks
		out.enriched = true
	}

	if e.cfg.FetchReadme && ctx.Err() == nil {
		repo.Readme = FetchPreview(ctx, e.raw, e.cfg.RawBaseURL, repo.Name)
		if repo.Readme == ReadmeNotAvailable {
			logger.Debug("readme not available", zap.String("repo", repo.Name))
		}
	}
	out.complete = ctx.Err() == nil
	return out
}
