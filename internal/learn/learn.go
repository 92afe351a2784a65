// Package learn adjusts topic weights from the creator's alert responses.
//
// Weights move multiplicatively (x1.1 on a used alert, x0.9 on an ignored
// one) and are clamped to [0.3, 2.0] so no single streak can pin a topic
// permanently on or off. The weekly reweight nudges topics whose long-run
// used/alerted ratio drifted away from the per-response updates.
package learn

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/abelbrown/momentum/internal/logging"
	"github.com/abelbrown/momentum/internal/store"
)

const (
	minWeight = 0.3
	maxWeight = 2.0

	positiveFactor = 1.1
	negativeFactor = 0.9

	// weekly reweight thresholds on the used/alerted ratio
	goodRatio = 0.5
	poorRatio = 0.2
)

// stopwords are common words excluded from topic extraction.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "has": true, "are": true, "was": true,
	"you": true, "your": true, "new": true, "how": true, "what": true,
	"why": true, "who": true, "its": true, "their": true, "over": true,
	"after": true, "into": true, "about": true, "more": true, "not": true,
}

// Learner owns the topic weight table.
type Learner struct {
	store *store.Store
}

func New(s *store.Store) *Learner {
	return &Learner{store: s}
}

// Keywords extracts the learnable topic keywords from alert text:
// lowercased words of at least three letters, minus stopwords, deduplicated
// in order of first appearance.
func Keywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool)
	var keywords []string
	for _, f := range fields {
		if len(f) < 3 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		keywords = append(keywords, f)
	}
	return keywords
}

// RecordAlerted bumps the alerted counter for every keyword in the
// dispatched alert's text, creating unit-weight rows for new topics.
func (l *Learner) RecordAlerted(topicText string, now time.Time) error {
	for _, kw := range Keywords(topicText) {
		w, err := l.fetchOrCreate(kw)
		if err != nil {
			return err
		}
		w.TimesAlerted++
		w.LastUpdated = now
		if err := l.store.UpsertTopicWeight(*w); err != nil {
			return fmt.Errorf("upsert weight for %q: %w", kw, err)
		}
	}
	return nil
}

// Reinforce applies a response outcome to every keyword in the alert text.
// A positive outcome (the creator used the idea) raises weights; a negative
// one (not interested) lowers them.
func (l *Learner) Reinforce(topicText string, positive bool, now time.Time) error {
	for _, kw := range Keywords(topicText) {
		w, err := l.fetchOrCreate(kw)
		if err != nil {
			return err
		}

		if positive {
			w.TimesUsed++
			w.Weight = clamp(w.Weight * positiveFactor)
		} else {
			w.TimesIgnored++
			w.Weight = clamp(w.Weight * negativeFactor)
		}
		w.LastUpdated = now

		if err := l.store.UpsertTopicWeight(*w); err != nil {
			return fmt.Errorf("upsert weight for %q: %w", kw, err)
		}
		logging.Debug("reinforced topic", "topic", kw, "positive", positive, "weight", w.Weight)
	}
	return nil
}

// Reweight is the weekly pass over all topics. Topics used on more than half
// their alerts gain 10%; topics used on fewer than a fifth lose 10%. Topics
// with no alerts yet are left alone.
func (l *Learner) Reweight(now time.Time) error {
	weights, err := l.store.AllTopicWeights()
	if err != nil {
		return fmt.Errorf("load weights: %w", err)
	}

	adjusted := 0
	for _, w := range weights {
		if w.TimesAlerted == 0 {
			continue
		}
		ratio := float64(w.TimesUsed) / float64(w.TimesAlerted)

		var next float64
		switch {
		case ratio > goodRatio:
			next = clamp(w.Weight * 1.1)
		case ratio < poorRatio:
			next = clamp(w.Weight * 0.9)
		default:
			continue
		}
		if next == w.Weight {
			continue
		}

		w.Weight = next
		w.LastUpdated = now
		if err := l.store.UpsertTopicWeight(w); err != nil {
			return fmt.Errorf("upsert weight for %q: %w", w.Topic, err)
		}
		adjusted++
	}

	logging.Info("weekly reweight complete", "topics", len(weights), "adjusted", adjusted)
	return nil
}

func (l *Learner) fetchOrCreate(topic string) (*store.TopicWeight, error) {
	w, err := l.store.GetTopicWeight(topic)
	if err != nil {
		return nil, fmt.Errorf("get weight for %q: %w", topic, err)
	}
	if w == nil {
		w = &store.TopicWeight{Topic: topic, Weight: 1.0}
	}
	return w, nil
}

func clamp(w float64) float64 {
	if w < minWeight {
		return minWeight
	}
	if w > maxWeight {
		return maxWeight
	}
	return w
}
