package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/JakeFAU/trending-digest/internal/app"
	clocksystem "github.com/JakeFAU/trending-digest/internal/clock/system"
	"github.com/JakeFAU/trending-digest/internal/config"
	"github.com/JakeFAU/trending-digest/internal/notify"
	"github.com/JakeFAU/trending-digest/internal/publisher"
	memorypublisher "github.com/JakeFAU/trending-digest/internal/publisher/memory"
	"github.com/JakeFAU/trending-digest/internal/report"
	"github.com/JakeFAU/trending-digest/internal/storage"
	memorystore "github.com/JakeFAU/trending-digest/internal/storage/memory"
	"github.com/JakeFAU/trending-digest/internal/trending"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", trending.ErrNotAvailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, url)
	body, ok := s.pages[url]
	if !ok {
		return nil, fmt.Errorf("%w: 404 for %s", trending.ErrNotAvailable, url)
	}
	return []byte(body), nil
}

// gatedFetcher holds the first request open until release is closed.
type gatedFetcher struct {
	next    *stubFetcher
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func newGatedFetcher(next *stubFetcher) *gatedFetcher {
	return &gatedFetcher{next: next, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", trending.ErrNotAvailable, ctx.Err())
	}
	return g.next.Fetch(ctx, url)
}

type staticIDs struct{}

func (staticIDs) NewID() (string, error) { return "run-1", nil }

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, any) (string, error) {
	return "", errors.New("broker down")
}

func (failingPublisher) Close() error { return nil }

type recordingSender struct {
	sent []*mail.Msg
}

func (r *recordingSender) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	r.sent = append(r.sent, msgs...)
	return nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Crawler.ListingURL = "https://github.test/trending"
	cfg.Crawler.BaseURL = "https://github.test"
	cfg.Crawler.RawBaseURL = "https://raw.test"
	cfg.Crawler.Limit = 2
	cfg.Crawler.MinRequestInterval = 0
	cfg.Storage.Backend = "memory"
	cfg.Notify.Recipient = "team@example.com"
	return cfg
}

func trendingSite() *stubFetcher {
	listing := `<html><body>
<article class="Box-row"><h2><a href="/acme/rocket">acme / rocket</a></h2>
<p class="col-9">Fast rockets</p><span itemprop="programmingLanguage">Go</span>
<span class="d-inline-block float-sm-right">1,200 stars today</span></article>
<article class="Box-row"><h2><a href="/zeta/lib">zeta / lib</a></h2>
<span itemprop="programmingLanguage">Rust</span>
<span class="d-inline-block float-sm-right">87 stars today</span></article>
</body></html>`
	return &stubFetcher{pages: map[string]string{
		"https://github.test/trending": listing,
		"https://github.test/acme/rocket": `<a href="/acme/rocket/stargazers">12.5k</a>` +
			`<a href="/acme/rocket/forks">1,024</a>`,
		"https://github.test/zeta/lib":               `<a href="/zeta/lib/stargazers">900</a>`,
		"https://raw.test/acme/rocket/main/README.md": "# Rocket\nGoes up.",
	}}
}

func newTestApp(t *testing.T, cfg config.Config, opts ...app.Option) (*app.App, *memorystore.BlobStore, *memorystore.BlobStore) {
	t.Helper()
	store := memorystore.NewBlobStore()
	archive := memorystore.NewBlobStore()
	base := []app.Option{
		app.WithLogger(zap.NewNop()),
		app.WithStore(store),
		app.WithArchive(archive),
		app.WithClock(clocksystem.Fixed{At: fixedNow}),
		app.WithIDs(staticIDs{}),
	}
	a, err := app.New(context.Background(), cfg, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a, store, archive
}

func TestCrawlWritesArtifactsAndPublishes(t *testing.T) {
	t.Parallel()

	site := trendingSite()
	pub := memorypublisher.New()
	a, store, _ := newTestApp(t, testConfig(t), app.WithFetchers(site, nil), app.WithPublisher(pub))

	result, artifacts, err := a.Crawl(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-1", result.RunID)
	assert.False(t, result.Partial)
	assert.Equal(t, 2, result.Summary.TotalRepos)
	require.NotNil(t, result.Summary.Insights)
	assert.Equal(t, int64(12_500+900), result.Summary.Insights.TotalStars)
	assert.Equal(t, "Go", result.Summary.Insights.MostCommonLanguage)

	assert.Equal(t, report.JSONObject, artifacts.JSONPath)
	assert.Len(t, artifacts.JSONSHA256, 64)
	assert.Equal(t, report.JSONContentType, store.ContentType(report.JSONObject))
	assert.Equal(t, report.HTMLContentType, store.ContentType(report.HTMLObject))

	loaded, err := a.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "acme/rocket", loaded.Repositories[0].Name)
	assert.Equal(t, "# Rocket\nGoes up.", loaded.Repositories[0].Readme)
	assert.Equal(t, trending.ReadmeNotAvailable, loaded.Repositories[1].Readme)

	html, err := a.ReportHTML(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(html), "acme/rocket")

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "trending-runs", msgs[0].Topic)
	var event publisher.RunCompleted
	require.NoError(t, json.Unmarshal(msgs[0].Data, &event))
	assert.Equal(t, "run-1", event.RunID)
	assert.Equal(t, 2, event.TotalRepos)
	assert.Equal(t, artifacts.JSONURI, event.JSONURI)
	assert.Equal(t, artifacts.JSONSHA256, event.JSONSHA256)
}

func TestCrawlHonorsStoragePrefix(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Prefix = "digests/daily"
	a, store, _ := newTestApp(t, cfg, app.WithFetchers(trendingSite(), nil))

	_, artifacts, err := a.Crawl(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "digests/daily/"+report.JSONObject, artifacts.JSONPath)
	assert.ElementsMatch(t, []string{
		"digests/daily/" + report.JSONObject,
		"digests/daily/" + report.HTMLObject,
	}, store.Paths())
}

func TestCrawlSurvivesPublishFailure(t *testing.T) {
	t.Parallel()

	a, _, _ := newTestApp(t, testConfig(t),
		app.WithFetchers(trendingSite(), nil),
		app.WithPublisher(failingPublisher{}),
	)

	result, _, err := a.Crawl(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Summary.TotalRepos)
}

func TestCrawlListingUnavailableStillEmitsEmptyReport(t *testing.T) {
	t.Parallel()

	a, _, _ := newTestApp(t, testConfig(t), app.WithFetchers(&stubFetcher{pages: map[string]string{}}, nil))

	result, _, err := a.Crawl(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Summary.TotalRepos)

	loaded, err := a.Summary(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded.Repositories)
	assert.Nil(t, loaded.Insights)
}

func TestCrawlSkipsReadmeWhenDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Crawler.FetchReadme = false
	site := trendingSite()
	a, _, _ := newTestApp(t, cfg, app.WithFetchers(site, nil))

	result, _, err := a.Crawl(context.Background())
	require.NoError(t, err)
	for _, repo := range result.Summary.Repositories {
		assert.Equal(t, trending.ReadmeNotAvailable, repo.Readme)
	}
	for _, call := range site.calls {
		assert.False(t, strings.HasPrefix(call, "https://raw.test"), "unexpected README fetch %s", call)
	}
}

func TestNotifyArchivesDraftAndSends(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Notify.SMTP.Server = "smtp.example.com"
	cfg.Notify.SMTP.Email = "bot@example.com"
	cfg.Notify.SMTP.Password = "secret"
	sender := &recordingSender{}
	a, _, archive := newTestApp(t, cfg,
		app.WithFetchers(trendingSite(), nil),
		app.WithSenderFactory(func(notify.Config) (notify.Sender, error) { return sender, nil }),
	)

	_, _, err := a.Crawl(context.Background())
	require.NoError(t, err)

	res, err := a.Notify(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "team@example.com", res.Recipient)
	assert.True(t, res.Delivered)
	assert.Equal(t, []string{"email_draft_20250314_092653.eml"}, archive.Paths())
	require.Len(t, sender.sent, 1)
}

func TestNotifyBeforeCrawlFails(t *testing.T) {
	t.Parallel()

	a, _, archive := newTestApp(t, testConfig(t), app.WithFetchers(trendingSite(), nil))

	_, err := a.Notify(context.Background(), "someone@example.com")
	require.ErrorIs(t, err, storage.ErrObjectNotFound)
	assert.Empty(t, archive.Paths())
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		opts   []app.Option
		want   string
	}{
		{
			name:   "storage",
			mutate: func(c *config.Config) { c.Storage.Backend = "s3" },
			opts:   []app.Option{app.WithFetchers(trendingSite(), nil)},
			want:   "unknown storage backend",
		},
		{
			name:   "fetcher",
			mutate: func(c *config.Config) { c.Crawler.Fetcher = "curl" },
			opts:   []app.Option{app.WithStore(memorystore.NewBlobStore())},
			want:   "unknown fetcher mode",
		},
		{
			name:   "publisher",
			mutate: func(c *config.Config) { c.Publisher.Backend = "kafka" },
			opts:   []app.Option{app.WithStore(memorystore.NewBlobStore()), app.WithFetchers(trendingSite(), nil)},
			want:   "unknown publisher backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig(t)
			tt.mutate(&cfg)
			opts := append([]app.Option{app.WithLogger(zap.NewNop())}, tt.opts...)
			_, err := app.New(context.Background(), cfg, opts...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewBuildsDefaultFetchers(t *testing.T) {
	t.Parallel()

	for _, mode := range []string{config.FetcherColly, config.FetcherRetry} {
		t.Run(mode, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig(t)
			cfg.Crawler.Fetcher = mode
			_, _, _ = newTestApp(t, cfg)
		})
	}
}

func TestCrawlRejectsOverlappingRun(t *testing.T) {
	t.Parallel()

	gate := newGatedFetcher(trendingSite())
	pub := memorypublisher.New()
	a, _, _ := newTestApp(t, testConfig(t), app.WithFetchers(gate, nil), app.WithPublisher(pub))

	firstErr := make(chan error, 1)
	go func() {
		_, _, err := a.Crawl(context.Background())
		firstErr <- err
	}()
	<-gate.started

	_, _, err := a.Crawl(context.Background())
	require.ErrorIs(t, err, trending.ErrRunInProgress)

	close(gate.release)
	require.NoError(t, <-firstErr)
	assert.Len(t, pub.Messages(), 1)

	// The lock is released once the first run finishes.
	_, _, err = a.Crawl(context.Background())
	require.NoError(t, err)
	assert.Len(t, pub.Messages(), 2)
}
