package trending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/trending-digest/internal/metrics"
	"github.com/JakeFAU/trending-digest/internal/telemetry"
)

// Pacer delays a request until its host may be contacted again.
type Pacer interface {
	Wait(ctx context.Context, url string) error
}

// Promoter decides whether a fetched page must be rendered in a browser.
type Promoter interface {
	ShouldPromote(body []byte) bool
}

// PacedFetcher spaces requests with a Pacer and records fetch metrics.
type PacedFetcher struct {
	next  Fetcher
	pacer Pacer
}

// NewPacedFetcher wraps next. A nil pacer disables pacing.
func NewPacedFetcher(next Fetcher, pacer Pacer) *PacedFetcher {
	return &PacedFetcher{next: next, pacer: pacer}
}

// Fetch waits for the pacer and delegates to the wrapped Fetcher.
func (p *PacedFetcher) Fetch(ctx context.Context, url string) (_ []byte, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "trending.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("url.full", url)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "fetch failed")
		}
		span.End()
	}()

	if p.pacer != nil {
		if err := p.pacer.Wait(ctx, url); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotAvailable, err)
		}
	}
	start := time.Now()
	body, err := p.next.Fetch(ctx, url)
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
		if !errors.Is(err, ErrNotAvailable) {
			err = fmt.Errorf("%w: %w", ErrNotAvailable, err)
		}
	}
	metrics.ObserveFetch(url, outcome, time.Since(start))
	return body, err
}

// PromotingFetcher retries a page through a rendering Fetcher when the
// plain response looks like a script shell.
type PromotingFetcher struct {
	primary  Fetcher
	fallback Fetcher
	promoter Promoter
	logger   *zap.Logger
}

// NewPromotingFetcher builds a PromotingFetcher.
func NewPromotingFetcher(primary, fallback Fetcher, promoter Promoter, logger *zap.Logger) *PromotingFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromotingFetcher{primary: primary, fallback: fallback, promoter: promoter, logger: logger}
}

// Fetch returns the primary body unless the promoter asks for a rendered
// copy and the fallback delivers one.
func (p *PromotingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, err := p.primary.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if !p.promoter.ShouldPromote(body) {
		return body, nil
	}
	rendered, err := p.fallback.Fetch(ctx, url)
	if err != nil {
		p.logger.Warn("promotion to renderer failed; keeping plain body",
			zap.String("url", url), zap.Error(err))
		return body, nil
	}
	p.logger.Debug("page promoted to renderer", zap.String("url", url))
	return rendered, nil
}
