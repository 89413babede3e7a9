// Package report renders a trending.Summary into its JSON and HTML
// artifacts and persists them through a storage.BlobStore.
package report

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"path"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/JakeFAU/trending-digest/internal/storage"
	"github.com/JakeFAU/trending-digest/internal/trending"
)

// Artifact object names, relative to the configured prefix.
const (
	JSONObject = "trending_summary.json"
	HTMLObject = "trending_summary.html"

	JSONContentType = "application/json; charset=utf-8"
	HTMLContentType = "text/html; charset=utf-8"
)

//go:embed templates/summary.html.tmpl
var templateFS embed.FS

// Funcs are the template helpers shared by the report and notification templates.
var Funcs = template.FuncMap{
	"comma": humanize.Comma,
	"rank":  func(i int) int { return i + 1 },
	"stamp": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
}

var summaryTemplate = template.Must(
	template.New("summary.html.tmpl").Funcs(Funcs).ParseFS(templateFS, "templates/summary.html.tmpl"),
)

// Hasher digests artifact content.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Artifacts locates the objects written by one Emit call.
type Artifacts struct {
	JSONPath   string
	HTMLPath   string
	JSONURI    string
	HTMLURI    string
	JSONSHA256 string
}

// Emitter writes and reads back report artifacts.
type Emitter struct {
	store  storage.BlobStore
	prefix string
	hasher Hasher
	logger *zap.Logger
}

// NewEmitter builds an Emitter that stores objects under prefix. A nil
// hasher leaves Artifacts.JSONSHA256 empty.
func NewEmitter(store storage.BlobStore, prefix string, hasher Hasher, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{store: store, prefix: prefix, hasher: hasher, logger: logger}
}

// JSONPath is the object path of the JSON artifact.
func (e *Emitter) JSONPath() string { return path.Join(e.prefix, JSONObject) }

// HTMLPath is the object path of the HTML artifact.
func (e *Emitter) HTMLPath() string { return path.Join(e.prefix, HTMLObject) }

// Emit renders both artifacts and writes them to the store.
func (e *Emitter) Emit(ctx context.Context, summary trending.Summary) (Artifacts, error) {
	jsonBody, err := EncodeJSON(summary)
	if err != nil {
		return Artifacts{}, err
	}
	htmlBody, err := RenderHTML(summary)
	if err != nil {
		return Artifacts{}, err
	}

	out := Artifacts{JSONPath: e.JSONPath(), HTMLPath: e.HTMLPath()}
	if e.hasher != nil {
		if out.JSONSHA256, err = e.hasher.Hash(jsonBody); err != nil {
			return Artifacts{}, fmt.Errorf("hash json artifact: %w", err)
		}
	}
	if out.JSONURI, err = e.store.PutObject(ctx, out.JSONPath, JSONContentType, bytes.NewReader(jsonBody)); err != nil {
		return Artifacts{}, fmt.Errorf("write json artifact: %w", err)
	}
	if out.HTMLURI, err = e.store.PutObject(ctx, out.HTMLPath, HTMLContentType, bytes.NewReader(htmlBody)); err != nil {
		return Artifacts{}, fmt.Errorf("write html artifact: %w", err)
	}

	e.logger.Info("artifacts written",
		zap.String("json_uri", out.JSONURI),
		zap.String("html_uri", out.HTMLURI),
		zap.Int("total_repos", summary.TotalRepos),
	)
	return out, nil
}

// Load reads the most recent JSON artifact back into a Summary.
func (e *Emitter) Load(ctx context.Context) (trending.Summary, error) {
	raw, err := e.LoadJSON(ctx)
	if err != nil {
		return trending.Summary{}, err
	}
	var summary trending.Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return trending.Summary{}, fmt.Errorf("decode %s: %w", e.JSONPath(), err)
	}
	if summary.Repositories == nil {
		summary.Repositories = []trending.Repository{}
	}
	return summary, nil
}

// LoadJSON returns the raw JSON artifact.
func (e *Emitter) LoadJSON(ctx context.Context) ([]byte, error) {
	raw, err := e.store.GetObject(ctx, e.JSONPath())
	if err != nil {
		return nil, fmt.Errorf("read json artifact: %w", err)
	}
	return raw, nil
}

// LoadHTML returns the raw HTML artifact.
func (e *Emitter) LoadHTML(ctx context.Context) ([]byte, error) {
	raw, err := e.store.GetObject(ctx, e.HTMLPath())
	if err != nil {
		return nil, fmt.Errorf("read html artifact: %w", err)
	}
	return raw, nil
}

// EncodeJSON renders the structured artifact: two-space indentation, no HTML
// escaping and a trailing newline.
func EncodeJSON(summary trending.Summary) ([]byte, error) {
	if summary.Repositories == nil {
		summary.Repositories = []trending.Repository{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderHTML renders the human-readable artifact.
func RenderHTML(summary trending.Summary) ([]byte, error) {
	var buf bytes.Buffer
	if err := summaryTemplate.Execute(&buf, summary); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}
