// Package publisher announces finished runs to downstream consumers.
package publisher

import (
	"context"
	"time"
)

// Publisher sends a payload to a named topic and returns a message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
	Close() error
}

// RunCompleted is published after a run's artifacts have been written.
type RunCompleted struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	TotalRepos  int       `json:"total_repos"`
	JSONURI     string    `json:"json_uri"`
	HTMLURI     string    `json:"html_uri"`
	JSONSHA256  string    `json:"json_sha256"`
	Partial     bool      `json:"partial"`
}
