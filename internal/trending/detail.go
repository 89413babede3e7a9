package trending

import "github.com/JakeFAU/trending-digest/internal/metrics"

const (
	starsLinkSelector    = `a[href*="/stargazers"]`
	starsCounterSelector = "#repo-stars-counter-star"
	forksLinkSelector    = `a[href*="/forks"]`
	forksCounterSelector = "#repo-network-counter"
)

// ParseDetail reads the star and fork totals from a repository page.
// Missing or unreadable counters are reported as 0.
func ParseDetail(body []byte) DetailCounts {
	doc, err := parseDocument(body)
	if err != nil {
		metrics.ObserveFieldMiss("total_stars")
		metrics.ObserveFieldMiss("forks")
		return DetailCounts{}
	}
	return DetailCounts{
		TotalStars: detailCount(doc, "total_stars", starsLinkSelector, starsCounterSelector),
		Forks:      detailCount(doc, "forks", forksLinkSelector, forksCounterSelector),
	}
}

func detailCount(doc node, field, linkSelector, counterSelector string) int64 {
	if link, ok := doc.first(linkSelector); ok {
		if n, ok := parseCount(link.text()); ok {
			return n
		}
	}
	if counter, ok := doc.first(counterSelector); ok {
		if title, ok := counter.attr("title"); ok {
			if n, ok := parseCount(title); ok {
				return n
			}
		}
		if n, ok := parseCount(counter.text()); ok {
			return n
		}
	}
	metrics.ObserveFieldMiss(field)
	return 0
}
