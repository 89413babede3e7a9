package trending

import (
	"math"
	"time"
)

// Aggregate builds the Summary for repos as of now. The input slice is
// copied, never retained.
func Aggregate(repos []Repository, now time.Time) Summary {
	out := make([]Repository, len(repos))
	copy(out, repos)
	for i := range out {
		out[i].Readme = truncateRunes(out[i].Readme, MaxPreviewRunes)
	}

	summary := Summary{
		GeneratedAt:  now.UTC(),
		TotalRepos:   len(out),
		Repositories: out,
	}
	if len(out) == 0 {
		return summary
	}

	insights := &Insights{MostCommonLanguage: mostCommonLanguage(out)}
	for _, r := range out {
		insights.TotalStars = saturatingAdd(insights.TotalStars, r.TotalStars)
		insights.TotalForks = saturatingAdd(insights.TotalForks, r.Forks)
	}
	summary.Insights = insights
	return summary
}

// mostCommonLanguage returns the most frequent non-empty language. Ties go
// to the language that appears first.
func mostCommonLanguage(repos []Repository) string {
	counts := make(map[string]int)
	var order []string
	for _, r := range repos {
		if r.Language == "" {
			continue
		}
		if counts[r.Language] == 0 {
			order = append(order, r.Language)
		}
		counts[r.Language]++
	}
	best, bestCount := "", 0
	for _, lang := range order {
		if counts[lang] > bestCount {
			best, bestCount = lang, counts[lang]
		}
	}
	return best
}

func truncateRunes(s string, limit int) string {
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

func saturatingAdd(a, b int64) int64 {
	if a > 0 && b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
