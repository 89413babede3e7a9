package notify

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/JakeFAU/trending-digest/internal/clock/system"
	"github.com/JakeFAU/trending-digest/internal/report"
	"github.com/JakeFAU/trending-digest/internal/storage"
	"github.com/JakeFAU/trending-digest/internal/storage/memory"
	"github.com/JakeFAU/trending-digest/internal/trending"
)

var runAt = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

type fakeSender struct {
	mu   sync.Mutex
	sent []*mail.Msg
	err  error
}

func (f *fakeSender) DialAndSendWithContext(_ context.Context, msgs ...*mail.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msgs...)
	return f.err
}

type fixture struct {
	artifacts *memory.BlobStore
	archive   *memory.BlobStore
	emitter   *report.Emitter
	sender    *fakeSender
}

func newFixture(t *testing.T, emit bool) *fixture {
	t.Helper()
	f := &fixture{
		artifacts: memory.NewBlobStore(),
		archive:   memory.NewBlobStore(),
		sender:    &fakeSender{},
	}
	f.emitter = report.NewEmitter(f.artifacts, "", nil, nil)
	if emit {
		summary := trending.Aggregate([]trending.Repository{
			{Name: "acme/rocket", URL: "https://github.com/acme/rocket", Description: "Rockets", Language: "Go", StarsToday: 12, TotalStars: 45001, Forks: 10},
			{Name: "acme/plain", URL: "https://github.com/acme/plain"},
		}, runAt)
		_, err := f.emitter.Emit(context.Background(), summary)
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) notifier(cfg Config) *Notifier {
	return New(cfg, f.emitter, f.archive, system.Fixed{At: runAt},
		func(Config) (Sender, error) { return f.sender, nil }, nil)
}

func smtpConfig() Config {
	return Config{
		SMTPServer:   "smtp.example.com",
		SMTPEmail:    "bot@example.com",
		SMTPPassword: "secret",
	}
}

func TestCompose(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	summary, err := f.emitter.Load(context.Background())
	require.NoError(t, err)

	msg, err := f.notifier(Config{}).Compose(summary)
	require.NoError(t, err)

	assert.Equal(t, "GitHub Trending Report - 2025-03-14", msg.Subject)
	assert.Contains(t, msg.Text, "Top 2 Trending Repositories:")
	assert.Contains(t, msg.Text, "1. acme/rocket")
	assert.Contains(t, msg.Text, "Stars: 45,001 (+12 today)")
	assert.Contains(t, msg.Text, "Language: N/A")
	assert.Contains(t, msg.Text, "- Most Common Language: Go")
	assert.Contains(t, msg.HTML, `<a href="https://github.com/acme/rocket"`)
	assert.Contains(t, msg.HTML, "<strong>45,001</strong> stars")
}

func TestComposeEmptySummary(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	msg, err := f.notifier(Config{}).Compose(trending.Aggregate(nil, runAt))
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Top 0 Trending Repositories:")
	assert.NotContains(t, msg.Text, "Insights:")
}

func TestNotifyArchivesWithoutSMTP(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	res, err := f.notifier(Config{}).Notify(context.Background(), "reader@example.com")
	require.NoError(t, err)

	assert.False(t, res.Delivered)
	assert.Equal(t, "memory://email_draft_20250314_092653.eml", res.ArchiveURI)
	assert.Empty(t, f.sender.sent)

	eml, err := f.archive.GetObject(context.Background(), "email_draft_20250314_092653.eml")
	require.NoError(t, err)
	for _, want := range []string{
		"Subject: GitHub Trending Report - 2025-03-14",
		"<github-trending@noreply.com>",
		"<reader@example.com>",
		"multipart/alternative",
		`filename="trending_summary.json"`,
		`filename="trending_summary.html"`,
	} {
		assert.True(t, bytes.Contains(eml, []byte(want)), "archive missing %q", want)
	}
	assert.Equal(t, "message/rfc822", f.archive.ContentType("email_draft_20250314_092653.eml"))
}

func TestNotifyDeliversWhenConfigured(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	cfg := smtpConfig()
	cfg.Recipient = "team@example.com"

	res, err := f.notifier(cfg).Notify(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.Equal(t, "team@example.com", res.Recipient)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, []string{"<bot@example.com>"}, f.sender.sent[0].GetFromString())
	assert.Equal(t, []string{"<team@example.com>"}, f.sender.sent[0].GetToString())
	assert.Len(t, f.archive.Paths(), 1)
}

func TestNotifyDeliveryFailureKeepsArchive(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	f.sender.err = errors.New("535 authentication failed")

	res, err := f.notifier(smtpConfig()).Notify(context.Background(), "reader@example.com")
	require.ErrorContains(t, err, "535 authentication failed")
	assert.False(t, res.Delivered)
	assert.NotEmpty(t, res.ArchiveURI)
	assert.Len(t, f.archive.Paths(), 1)
}

func TestNotifyErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	_, err := f.notifier(Config{}).Notify(context.Background(), "")
	require.ErrorIs(t, err, ErrNoRecipient)

	empty := newFixture(t, false)
	_, err = empty.notifier(Config{}).Notify(context.Background(), "reader@example.com")
	require.ErrorIs(t, err, storage.ErrObjectNotFound)
	assert.Empty(t, empty.archive.Paths())

	_, err = f.notifier(Config{}).Notify(context.Background(), "not an address")
	require.ErrorContains(t, err, "set recipient")
}

func TestConfigConfigured(t *testing.T) {
	t.Parallel()

	assert.True(t, smtpConfig().Configured())
	partial := smtpConfig()
	partial.SMTPPassword = ""
	assert.False(t, partial.Configured())
}
