package trending

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/JakeFAU/trending-digest/internal/metrics"
)

const (
	listingBlockSelector    = "article.Box-row"
	listingTitleSelector    = "h2"
	listingLinkSelector     = "h2 a[href]"
	listingStarsSelector    = "span.d-inline-block.float-sm-right"
	listingSummarySelector  = "p.col-9"
	listingLanguageSelector = `span[itemprop="programmingLanguage"]`
)

type blockResult struct {
	repo Repository
	ok   bool
}

// ParseListing extracts at most limit repositories from a trending listing
// page, in document order. Blocks without a derivable owner/name identifier
// are skipped; every other field falls back to its zero value.
func ParseListing(body []byte, baseURL string, limit int) ([]Repository, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(baseURL, "/")
	blocks := doc.all(listingBlockSelector)
	if len(blocks) > limit {
		blocks = blocks[:limit]
	}

	repos := make([]Repository, 0, len(blocks))
	for _, block := range blocks {
		res := parseBlock(block, base)
		if !res.ok {
			metrics.ObserveFieldMiss("name")
			continue
		}
		repos = append(repos, res.repo)
	}
	return repos, nil
}

func parseBlock(block node, base string) blockResult {
	name, ok := blockIdentifier(block)
	if !ok {
		return blockResult{}
	}
	repo := Repository{
		Name: name,
		URL:  base + "/" + name,
	}

	if n, found := block.first(listingStarsSelector); found {
		repo.StarsToday = ParseCount(n.text())
	} else {
		metrics.ObserveFieldMiss("stars_today")
	}
	if n, found := block.first(listingSummarySelector); found {
		repo.Description = collapseSpace(n.text())
	} else {
		metrics.ObserveFieldMiss("description")
	}
	if n, found := block.first(listingLanguageSelector); found {
		repo.Language = n.text()
	} else {
		metrics.ObserveFieldMiss("language")
	}
	return blockResult{repo: repo, ok: true}
}

// blockIdentifier prefers the title link target and falls back to the
// title text.
func blockIdentifier(block node) (string, bool) {
	if link, found := block.first(listingLinkSelector); found {
		href, _ := link.attr("href")
		if name, ok := normalizeIdentifier(href); ok {
			return name, true
		}
		if name, ok := normalizeIdentifier(link.text()); ok {
			return name, true
		}
	}
	if title, found := block.first(listingTitleSelector); found {
		return normalizeIdentifier(title.text())
	}
	return "", false
}

// normalizeIdentifier reduces an href or title to "owner/name".
func normalizeIdentifier(raw string) (string, bool) {
	s := stripSpace(raw)
	if s == "" {
		return "", false
	}
	if u, err := url.Parse(s); err == nil {
		s = u.Path
	}
	s = strings.Trim(s, "/")
	owner, name, found := strings.Cut(s, "/")
	if !found || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return owner + "/" + name, true
}
