package trend

import (
	"context"
	"time"
)

// Candidate is a scorable opportunity produced by a trend source.
// Candidates are transient: the decision core references them during a tick
// and never owns them.
type Candidate struct {
	SourceID     string    // deterministic id, stable across fetches
	Title        string
	Summary      string
	BaseScore    float64   // relevance before topic weighting, 0-100
	DiscoveredAt time.Time
}

// Source is the interface all trend sources implement.
type Source interface {
	// Name returns human-readable source name
	Name() string

	// Fetch retrieves the source's current candidates
	Fetch(ctx context.Context) ([]Candidate, error)
}
