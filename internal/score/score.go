// Package score ranks candidate events by learned relevance.
//
// The scorer is a pure function: identical inputs always produce the same
// ranking. All state (topic weights, already-alerted sources) is passed in
// by the caller.
package score

import (
	"sort"
	"strings"
	"time"

	"github.com/abelbrown/momentum/internal/store"
	"github.com/abelbrown/momentum/internal/trend"
)

// Strategy computes the topic-weight multiplier for a candidate's text.
// Isolated behind an interface so the matching algorithm can be replaced
// without touching the scorer's caller contract.
type Strategy interface {
	Name() string
	Multiplier(text string, weights []store.TopicWeight) float64
}

// SubstringStrategy multiplies the weights of every topic whose keyword
// appears as a substring of the candidate text.
type SubstringStrategy struct{}

func (SubstringStrategy) Name() string { return "substring" }

func (SubstringStrategy) Multiplier(text string, weights []store.TopicWeight) float64 {
	lower := strings.ToLower(text)
	multiplier := 1.0
	for _, w := range weights {
		if w.Topic != "" && strings.Contains(lower, strings.ToLower(w.Topic)) {
			multiplier *= w.Weight
		}
	}
	return multiplier
}

// Scored is a candidate with its weighted relevance score.
type Scored struct {
	trend.Candidate
	WeightedScore float64
}

// Scorer ranks candidates against the golden threshold.
type Scorer struct {
	strategy       Strategy
	freshnessHours int
	threshold      float64
}

// NewScorer creates a Scorer. A nil strategy falls back to substring matching.
func NewScorer(strategy Strategy, freshnessHours int, threshold float64) *Scorer {
	if strategy == nil {
		strategy = SubstringStrategy{}
	}
	return &Scorer{
		strategy:       strategy,
		freshnessHours: freshnessHours,
		threshold:      threshold,
	}
}

// Rank scores candidates and returns the qualifying ones, best first.
//
// A candidate qualifies when it is fresh at now, its weighted score clears
// the threshold, and its source has not already been alerted. Ties break on
// recency, then source id, so the ranking is fully deterministic.
func (s *Scorer) Rank(now time.Time, candidates []trend.Candidate, weights []store.TopicWeight, alerted map[string]bool) []Scored {
	cutoff := now.Add(-time.Duration(s.freshnessHours) * time.Hour)

	var qualifying []Scored
	for _, c := range candidates {
		if !c.DiscoveredAt.After(cutoff) {
			continue
		}
		if alerted[c.SourceID] {
			continue
		}

		weighted := s.Score(c, weights)
		if weighted < s.threshold {
			continue
		}

		qualifying = append(qualifying, Scored{Candidate: c, WeightedScore: weighted})
	}

	sort.Slice(qualifying, func(i, j int) bool {
		a, b := qualifying[i], qualifying[j]
		if a.WeightedScore != b.WeightedScore {
			return a.WeightedScore > b.WeightedScore
		}
		if !a.DiscoveredAt.Equal(b.DiscoveredAt) {
			return a.DiscoveredAt.After(b.DiscoveredAt)
		}
		return a.SourceID < b.SourceID
	})

	return qualifying
}

// Score computes a single candidate's weighted relevance score:
// base score times the product of matching topic weights, capped at 100.
func (s *Scorer) Score(c trend.Candidate, weights []store.TopicWeight) float64 {
	multiplier := s.strategy.Multiplier(c.Title+" "+c.Summary, weights)
	weighted := c.BaseScore * multiplier
	if weighted > 100 {
		weighted = 100
	}
	return weighted
}
