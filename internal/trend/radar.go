// Package trend supplies candidate events from RSS trend feeds.
//
// The decision core consumes candidates through the Radar's Candidates
// method; it never fetches feeds itself.
package trend

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/momentum/internal/logging"
)

// maxConcurrentFetches limits parallel feed fetches per cycle.
const maxConcurrentFetches = 5

// fetchTimeout is the timeout for each individual feed fetch.
const fetchTimeout = 30 * time.Second

// Radar aggregates candidates from multiple trend sources.
type Radar struct {
	sources        []Source // IMMUTABLE: set at construction, never modified
	freshnessHours int
}

// NewRadar creates a Radar over the given sources.
// Candidates older than freshnessHours at fetch time are dropped here, so
// the scorer is never handed stale events.
func NewRadar(sources []Source, freshnessHours int) *Radar {
	sourcesCopy := make([]Source, len(sources))
	copy(sourcesCopy, sources)
	return &Radar{sources: sourcesCopy, freshnessHours: freshnessHours}
}

// Candidates fetches all sources in parallel and returns fresh candidates,
// newest first. A failing source is logged and skipped; it never fails the
// cycle.
func (r *Radar) Candidates(ctx context.Context) ([]Candidate, error) {
	var mu sync.Mutex
	var all []Candidate

	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)

	for _, src := range r.sources {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
			defer cancel()

			items, err := src.Fetch(fetchCtx)
			if err != nil {
				logging.Warn("trend source fetch failed", "source", src.Name(), "error", err)
				return nil // errors reported per-source, never fail the group
			}

			mu.Lock()
			all = append(all, items...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	cutoff := time.Now().Add(-time.Duration(r.freshnessHours) * time.Hour)
	fresh := all[:0]
	for _, c := range all {
		if c.DiscoveredAt.After(cutoff) {
			fresh = append(fresh, c)
		}
	}

	sort.Slice(fresh, func(i, j int) bool {
		return fresh[i].DiscoveredAt.After(fresh[j].DiscoveredAt)
	})

	return fresh, nil
}
