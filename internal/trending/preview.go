package trending

import (
	"context"
	"strings"
)

// readmeCandidates are tried in order under <rawBase>/<owner>/<name>/.
var readmeCandidates = []string{
	"main/README.md",
	"master/README.md",
	"main/README",
	"master/README",
}

// FetchPreview returns the first README that can be retrieved for name, or
// ReadmeNotAvailable when every candidate fails.
func FetchPreview(ctx context.Context, f Fetcher, rawBase, name string) string {
	base := strings.TrimRight(rawBase, "/") + "/" + name + "/"
	for _, candidate := range readmeCandidates {
		if ctx.Err() != nil {
			break
		}
		body, err := f.Fetch(ctx, base+candidate)
		if err != nil {
			continue
		}
		return string(body)
	}
	return ReadmeNotAvailable
}
