package trending

import (
	"fmt"
	"strings"
)

type listingBlock struct {
	href        string
	title       string
	description string
	language    string
	starsToday  string
	noLink      bool
}

// listingPage renders a trimmed copy of the trending page markup.
func listingPage(blocks ...listingBlock) []byte {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"Box\">\n")
	for _, blk := range blocks {
		b.WriteString("<article class=\"Box-row\">\n<h2 class=\"h3 lh-condensed\">")
		if blk.noLink {
			b.WriteString(blk.title)
		} else {
			fmt.Fprintf(&b, "<a href=%q>%s</a>", blk.href, blk.title)
		}
		b.WriteString("</h2>\n")
		if blk.description != "" {
			fmt.Fprintf(&b, "<p class=\"col-9 color-fg-muted my-1 pr-4\">\n  %s\n</p>\n", blk.description)
		}
		b.WriteString("<div class=\"f6 color-fg-muted mt-2\">")
		if blk.language != "" {
			fmt.Fprintf(&b, "<span itemprop=\"programmingLanguage\">%s</span>", blk.language)
		}
		if blk.starsToday != "" {
			fmt.Fprintf(&b, "<span class=\"d-inline-block float-sm-right\">%s</span>", blk.starsToday)
		}
		b.WriteString("</div>\n</article>\n")
	}
	b.WriteString("</div></body></html>")
	return []byte(b.String())
}

func repoBlock(owner, name string) listingBlock {
	return listingBlock{
		href:        "/" + owner + "/" + name,
		title:       owner + " /\n  " + name,
		description: "The " + name + " project",
		language:    "Go",
		starsToday:  "1,234 stars today",
	}
}

// detailPage renders a repository page fragment with the given counters.
// Empty values omit the corresponding link.
func detailPage(name, stars, forks string) []byte {
	var b strings.Builder
	b.WriteString("<html><body><ul class=\"pagehead-actions\">")
	if stars != "" {
		fmt.Fprintf(&b, "<li><a href=\"/%s/stargazers\"><span id=\"repo-stars-counter-star\">%s</span> stars</a></li>", name, stars)
	}
	if forks != "" {
		fmt.Fprintf(&b, "<li><a href=\"/%s/forks\"><span id=\"repo-network-counter\">%s</span> forks</a></li>", name, forks)
	}
	b.WriteString("</ul></body></html>")
	return []byte(b.String())
}
