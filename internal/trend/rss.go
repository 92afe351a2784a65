package trend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// RSSSource fetches candidates from an RSS or Atom feed and assigns a base
// relevance score from profile keyword hits.
type RSSSource struct {
	name     string
	url      string
	keywords []string
	client   *http.Client
}

// NewRSSSource creates an RSS trend source.
// Profile keywords drive the base score: each keyword found in an item's
// title or summary adds to the score, capped at 100.
func NewRSSSource(name, url string, keywords []string, timeout time.Duration) *RSSSource {
	return &RSSSource{
		name:     name,
		url:      url,
		keywords: keywords,
		client:   &http.Client{Timeout: timeout},
	}
}

func (s *RSSSource) Name() string { return s.name }

// Fetch retrieves the feed and converts items to candidates.
// Respects context cancellation and returns early if the context is done.
func (s *RSSSource) Fetch(ctx context.Context) ([]Candidate, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Momentum/0.1 (https://github.com/abelbrown/momentum)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	parser := gofeed.NewParser()
	feed, err := parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	now := time.Now()
	candidates := make([]Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		candidates = append(candidates, s.convertItem(item, now))
	}
	return candidates, nil
}

func (s *RSSSource) convertItem(item *gofeed.Item, fetchTime time.Time) Candidate {
	discovered := fetchTime
	if item.PublishedParsed != nil {
		discovered = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		discovered = *item.UpdatedParsed
	}

	return Candidate{
		SourceID:     generateID(item),
		Title:        item.Title,
		Summary:      item.Description,
		BaseScore:    s.baseScore(item.Title, item.Description),
		DiscoveredAt: discovered,
	}
}

// baseScore counts profile keyword hits. A neutral item scores 50; each hit
// adds 15, capped at 100. The learned topic weights refine this downstream.
func (s *RSSSource) baseScore(title, summary string) float64 {
	text := strings.ToLower(title + " " + summary)
	score := 50.0
	for _, kw := range s.keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			score += 15
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// generateID creates a deterministic ID for a feed item.
// Uses the GUID if available, otherwise hashes the URL.
func generateID(item *gofeed.Item) string {
	if item.GUID != "" {
		return hashString(item.GUID)
	}
	if item.Link != "" {
		return hashString(item.Link)
	}
	key := item.Title
	if item.PublishedParsed != nil {
		key += item.PublishedParsed.String()
	}
	return hashString(key)
}

// hashString creates a short hash of a string for use as an ID.
func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:8]) // 16 character hex string
}
