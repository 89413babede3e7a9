package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeuristic_ShouldPromote(t *testing.T) {
	t.Parallel()

	listing := `<html><body><article class="Box-row"><h2><a href="/a/b">a / b</a></h2></article>` +
		`<div id="app"></div></body></html>`

	tests := []struct {
		name string
		h    *Heuristic
		body string
		want bool
	}{
		{name: "empty body", h: NewHeuristic(100), body: "", want: true},
		{name: "whitespace body", h: NewHeuristic(100), body: " \n\t", want: true},
		{name: "spa marker", h: NewHeuristic(100), body: `<div id="__next"></div>`, want: true},
		{name: "script heavy short page", h: NewHeuristic(1000), body: `<html><script>var a=1;</script><p>t</p></html>`, want: true},
		{
			name: "script heavy page above threshold",
			h:    NewHeuristic(10),
			body: `<html><script>var a=1;</script><p>t</p></html>`,
			want: false,
		},
		{name: "plain static page", h: NewHeuristic(100), body: "<html><body><p>" + strings.Repeat("text ", 50) + "</p></body></html>", want: false},
		{name: "ready selector wins over marker", h: NewHeuristic(100, "article.Box-row"), body: listing, want: false},
		{name: "marker without ready selector", h: NewHeuristic(100, "table.missing"), body: listing, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, tt.h.ShouldPromote([]byte(tt.body)))
		})
	}
}

func TestNewHeuristicDefaultsThreshold(t *testing.T) {
	t.Parallel()

	require.Equal(t, defaultThreshold, NewHeuristic(0).BodyLengthThreshold)
	require.Equal(t, 512, NewHeuristic(512).BodyLengthThreshold)
}

func TestScriptDensityHandlesUnclosedTags(t *testing.T) {
	t.Parallel()

	require.True(t, scriptDensityHigh([]byte(`<p>x</p><script src="a.js">`)))
	require.True(t, scriptDensityHigh([]byte(`<p>x</p><script`)))
	require.False(t, scriptDensityHigh([]byte(`<p>no scripts here at all</p>`)))
	require.False(t, scriptDensityHigh(nil))
}
