// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	clocksystem "github.com/JakeFAU/trending-digest/internal/clock/system"
	"github.com/JakeFAU/trending-digest/internal/config"
	collyfetcher "github.com/JakeFAU/trending-digest/internal/fetcher/colly"
	"github.com/JakeFAU/trending-digest/internal/fetcher/headless"
	retryfetcher "github.com/JakeFAU/trending-digest/internal/fetcher/retry"
	"github.com/JakeFAU/trending-digest/internal/hash/sha256"
	"github.com/JakeFAU/trending-digest/internal/headless/detector"
	"github.com/JakeFAU/trending-digest/internal/id/uuid"
	"github.com/JakeFAU/trending-digest/internal/logging"
	"github.com/JakeFAU/trending-digest/internal/notify"
	"github.com/JakeFAU/trending-digest/internal/policy/ratelimit"
	"github.com/JakeFAU/trending-digest/internal/publisher"
	memorypublisher "github.com/JakeFAU/trending-digest/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/trending-digest/internal/publisher/pubsub"
	"github.com/JakeFAU/trending-digest/internal/report"
	"github.com/JakeFAU/trending-digest/internal/storage"
	"github.com/JakeFAU/trending-digest/internal/storage/gcs"
	"github.com/JakeFAU/trending-digest/internal/storage/local"
	memorystore "github.com/JakeFAU/trending-digest/internal/storage/memory"
	"github.com/JakeFAU/trending-digest/internal/telemetry"
	"github.com/JakeFAU/trending-digest/internal/trending"
)

// App holds all the shared, long-lived services for the application.
// It is built once per process and handed to the CLI commands and the API.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	store     storage.BlobStore
	emitter   *report.Emitter
	engine    *trending.Engine
	publisher publisher.Publisher
	notifier  *notify.Notifier
	closers   []func() error

	// running serializes crawls; artifacts share fixed object paths.
	running sync.Mutex
}

// Option overrides one collaborator, mostly for tests.
type Option func(*deps)

type deps struct {
	logger    *zap.Logger
	store     storage.BlobStore
	archive   storage.BlobStore
	pages     trending.Fetcher
	raw       trending.Fetcher
	publisher publisher.Publisher
	clock     trending.Clock
	ids       trending.IDGenerator
	newSender notify.SenderFactory
}

// WithLogger replaces the global logger.
func WithLogger(l *zap.Logger) Option { return func(d *deps) { d.logger = l } }

// WithStore replaces the artifact store selected by storage.backend.
func WithStore(s storage.BlobStore) Option { return func(d *deps) { d.store = s } }

// WithArchive replaces the store e-mail drafts are written to.
func WithArchive(s storage.BlobStore) Option { return func(d *deps) { d.archive = s } }

// WithFetchers replaces the page and README fetchers. Both are still paced.
func WithFetchers(pages, raw trending.Fetcher) Option {
	return func(d *deps) { d.pages, d.raw = pages, raw }
}

// WithPublisher replaces the publisher selected by publisher.backend.
func WithPublisher(p publisher.Publisher) Option { return func(d *deps) { d.publisher = p } }

// WithClock replaces the wall clock.
func WithClock(c trending.Clock) Option { return func(d *deps) { d.clock = c } }

// WithIDs replaces the run ID generator.
func WithIDs(ids trending.IDGenerator) Option { return func(d *deps) { d.ids = ids } }

// WithSenderFactory replaces the SMTP client constructor.
func WithSenderFactory(f notify.SenderFactory) Option { return func(d *deps) { d.newSender = f } }

// New wires every service described by cfg. It fails fast if a backend
// cannot be initialized; anything already opened is released.
func New(ctx context.Context, cfg config.Config, opts ...Option) (_ *App, err error) {
	d := deps{}
	for _, opt := range opts {
		opt(&d)
	}
	if d.logger == nil {
		d.logger = logging.L
	}
	if d.clock == nil {
		d.clock = clocksystem.New()
	}
	if d.ids == nil {
		d.ids = uuid.New()
	}

	a := &App{cfg: cfg, logger: d.logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()
	a.logger.Info("Initializing application services...",
		zap.String("fetcher", cfg.Crawler.Fetcher),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("publisher", cfg.Publisher.Backend),
	)

	tp, err := telemetry.InitTracerProvider(ctx, telemetry.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.closers = append(a.closers, func() error { return tp.Shutdown(context.Background()) })

	if d.store == nil {
		if d.store, err = a.buildStore(ctx); err != nil {
			return nil, err
		}
	}
	a.store = d.store

	if d.pages == nil {
		if d.pages, d.raw, err = a.buildFetchers(); err != nil {
			return nil, err
		}
	}
	limiter := ratelimit.New(ratelimit.Config{MinInterval: cfg.Crawler.MinRequestInterval})
	pages := trending.NewPacedFetcher(d.pages, limiter)
	var raw trending.Fetcher
	if d.raw != nil {
		raw = trending.NewPacedFetcher(d.raw, limiter)
	}

	a.engine = trending.NewEngine(trending.EngineConfig{
		ListingURL:  cfg.Crawler.ListingURL,
		BaseURL:     cfg.Crawler.BaseURL,
		RawBaseURL:  cfg.Crawler.RawBaseURL,
		Limit:       cfg.Crawler.Limit,
		Concurrency: cfg.Crawler.Concurrency,
		RunTimeout:  cfg.Crawler.RunTimeout,
		FetchReadme: cfg.Crawler.FetchReadme,
	}, pages, raw, d.clock, d.ids, a.logger)
	a.emitter = report.NewEmitter(a.store, cfg.Storage.Prefix, sha256.New(), a.logger)

	if d.publisher == nil {
		if d.publisher, err = a.buildPublisher(ctx); err != nil {
			return nil, err
		}
	}
	a.publisher = d.publisher
	a.closers = append(a.closers, a.publisher.Close)

	if d.archive == nil {
		if d.archive, err = local.New(local.Config{BaseDir: cfg.Notify.ArchiveDir}); err != nil {
			return nil, fmt.Errorf("init e-mail archive: %w", err)
		}
	}
	a.notifier = notify.New(notify.Config{
		Recipient:    cfg.Notify.Recipient,
		From:         cfg.Notify.From,
		SMTPServer:   cfg.Notify.SMTP.Server,
		SMTPPort:     cfg.Notify.SMTP.Port,
		SMTPEmail:    cfg.Notify.SMTP.Email,
		SMTPPassword: cfg.Notify.SMTP.Password,
	}, a.emitter, d.archive, d.clock, d.newSender, a.logger)

	a.logger.Info("Application services initialized successfully.")
	return a, nil
}

func (a *App) buildStore(ctx context.Context) (storage.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case "local":
		store, err := local.New(local.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return store, nil
	case "memory":
		a.logger.Warn("Using in-memory storage; artifacts are discarded on exit.")
		return memorystore.NewBlobStore(), nil
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", a.cfg.Storage.Backend)
	}
}

// buildFetchers returns the page fetcher and the README fetcher for the
// configured mode. README files are plain text, so they never go through Chrome.
func (a *App) buildFetchers() (trending.Fetcher, trending.Fetcher, error) {
	c := a.cfg.Crawler
	plain := collyfetcher.New(collyfetcher.Config{
		UserAgent:   c.UserAgent,
		Timeout:     c.RequestTimeout,
		MaxBodySize: c.MaxPageBytes,
	})

	switch c.Fetcher {
	case config.FetcherColly:
		return plain, plain, nil
	case config.FetcherRetry:
		retrying := retryfetcher.New(retryfetcher.Config{
			UserAgent:      c.UserAgent,
			Timeout:        c.RequestTimeout,
			MaxRetries:     a.cfg.HTTP.MaxRetries,
			BackoffInitial: a.cfg.HTTP.BackoffInitial,
			BackoffMax:     a.cfg.HTTP.BackoffMax,
			MaxBodySize:    int64(c.MaxPageBytes),
		}, a.logger)
		return retrying, retrying, nil
	case config.FetcherHeadless, config.FetcherAuto:
		browser, err := headless.NewChromedp(headless.Config{
			MaxParallel:       a.cfg.Headless.MaxParallel,
			UserAgent:         c.UserAgent,
			NavigationTimeout: a.cfg.Headless.NavTimeout,
			MaxBodySize:       c.MaxPageBytes,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init headless fetcher: %w", err)
		}
		a.closers = append(a.closers, func() error { browser.Close(); return nil })
		if c.Fetcher == config.FetcherHeadless {
			return browser, plain, nil
		}
		promoter := detector.NewHeuristic(a.cfg.Detector.MinHTMLBytes, a.cfg.Detector.ReadySelectors...)
		return trending.NewPromotingFetcher(plain, browser, promoter, a.logger), plain, nil
	default:
		return nil, nil, fmt.Errorf("unknown fetcher mode: %s", c.Fetcher)
	}
}

func (a *App) buildPublisher(ctx context.Context) (publisher.Publisher, error) {
	switch a.cfg.Publisher.Backend {
	case "memory":
		return memorypublisher.New(), nil
	case "pubsub":
		a.logger.Info("Connecting to GCP Pub/Sub", zap.String("topic", a.cfg.Publisher.Topic))
		client, err := gpubsub.NewClient(ctx, a.cfg.Publisher.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub client: %w", err)
		}
		return pubsubpublisher.New(client), nil
	default:
		return nil, fmt.Errorf("unknown publisher backend: %s", a.cfg.Publisher.Backend)
	}
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// Crawl runs the pipeline once, writes both artifacts and announces the run.
// Artifacts of a partial run are still written; a failed announcement is
// logged but does not fail the crawl. While one crawl is in flight, others
// return trending.ErrRunInProgress without fetching anything.
func (a *App) Crawl(ctx context.Context) (trending.RunResult, report.Artifacts, error) {
	if !a.running.TryLock() {
		return trending.RunResult{}, report.Artifacts{}, trending.ErrRunInProgress
	}
	defer a.running.Unlock()

	result, err := a.engine.Run(ctx)
	if err != nil {
		return result, report.Artifacts{}, err
	}

	// The caller's deadline may be what made the run partial.
	persistCtx := context.WithoutCancel(ctx)
	artifacts, err := a.emitter.Emit(persistCtx, result.Summary)
	if err != nil {
		return result, report.Artifacts{}, err
	}

	event := publisher.RunCompleted{
		RunID:       result.RunID,
		GeneratedAt: result.Summary.GeneratedAt,
		TotalRepos:  result.Summary.TotalRepos,
		JSONURI:     artifacts.JSONURI,
		HTMLURI:     artifacts.HTMLURI,
		JSONSHA256:  artifacts.JSONSHA256,
		Partial:     result.Partial,
	}
	if id, perr := a.publisher.Publish(persistCtx, a.cfg.Publisher.Topic, event); perr != nil {
		a.logger.Warn("Failed to publish run completion", zap.String("run_id", result.RunID), zap.Error(perr))
	} else {
		a.logger.Debug("Run completion published", zap.String("run_id", result.RunID), zap.String("message_id", id))
	}
	return result, artifacts, nil
}

// Notify e-mails the most recent report to recipient, or to the configured
// recipient when empty.
func (a *App) Notify(ctx context.Context, recipient string) (notify.Result, error) {
	return a.notifier.Notify(ctx, recipient)
}

// Summary loads the most recently written report.
func (a *App) Summary(ctx context.Context) (trending.Summary, error) {
	return a.emitter.Load(ctx)
}

// ReportHTML loads the most recently rendered HTML report.
func (a *App) ReportHTML(ctx context.Context) ([]byte, error) {
	return a.emitter.LoadHTML(ctx)
}

// Close releases every service in reverse order of construction.
func (a *App) Close() {
	a.logger.Info("Shutting down application services...")
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("Error closing application services", zap.Error(err))
	}
	_ = a.logger.Sync()
}
