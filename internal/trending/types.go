package trending

import (
	"context"
	"time"
)

// ReadmeNotAvailable is stored as the preview when no README could be retrieved.
const ReadmeNotAvailable = "README not available"

// MaxPreviewRunes bounds the README preview kept in a Summary.
const MaxPreviewRunes = 500

// Repository is one trending entry.
type Repository struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Language    string `json:"language"`
	StarsToday  int64  `json:"stars_today"`
	TotalStars  int64  `json:"total_stars"`
	Forks       int64  `json:"forks"`
	Readme      string `json:"readme_preview"`
}

// Insights are derived over all repositories of a non-empty Summary.
type Insights struct {
	MostCommonLanguage string `json:"most_common_language,omitempty"`
	TotalStars         int64  `json:"total_stars"`
	TotalForks         int64  `json:"total_forks"`
}

// Summary is the aggregated, immutable result of one run.
type Summary struct {
	GeneratedAt  time.Time    `json:"generated_at"`
	TotalRepos   int          `json:"total_repos"`
	Repositories []Repository `json:"repositories"`
	Insights     *Insights    `json:"insights,omitempty"`
}

// DetailCounts holds the totals read from a repository page.
type DetailCounts struct {
	TotalStars int64
	Forks      int64
}

// RunResult describes a finished pipeline run.
type RunResult struct {
	RunID         string
	Summary       Summary
	Listed        int
	Enriched      int
	FetchFailures int

	// Partial is set when the run budget expired or the caller canceled
	// before every listed repository was enriched.
	Partial bool
}

// Fetcher retrieves the raw bytes behind a URL. Failures wrap ErrNotAvailable.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Clock supplies the aggregation timestamp.
type Clock interface {
	Now() time.Time
}

// IDGenerator issues run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
