// Package ideas turns a golden moment into a concrete content suggestion.
package ideas

import (
	"context"
	"fmt"
	"strings"
)

// Suggestion is a ready-to-act content idea for one trend.
type Suggestion struct {
	Title       string   `json:"title"`
	OpeningLine string   `json:"opening_line"`
	Steps       []string `json:"steps"`
	Tags        []string `json:"tags"`
}

// Message renders the suggestion as the alert text sent to the creator.
func (s Suggestion) Message(topic string, score float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔥 Golden moment: %s (score %.0f)\n\n", topic, score)
	fmt.Fprintf(&b, "Idea: %s\n", s.Title)
	if s.OpeningLine != "" {
		fmt.Fprintf(&b, "Open with: %q\n", s.OpeningLine)
	}
	for i, step := range s.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	if len(s.Tags) > 0 {
		fmt.Fprintf(&b, "\nTags: %s\n", strings.Join(s.Tags, " "))
	}
	b.WriteString("\nReply: used / more / not interested / remind me later")
	return b.String()
}

// Generator produces a content suggestion for a trending topic.
type Generator interface {
	Name() string
	Suggest(ctx context.Context, topic, summary string) (Suggestion, error)
}

// StaticGenerator is the no-API fallback. It produces a serviceable generic
// suggestion so an alert never fails just because idea generation is down.
type StaticGenerator struct{}

func (StaticGenerator) Name() string { return "static" }

func (StaticGenerator) Suggest(_ context.Context, topic, _ string) (Suggestion, error) {
	return Suggestion{
		Title:       fmt.Sprintf("Jump on %q while it is hot", topic),
		OpeningLine: fmt.Sprintf("Everyone is talking about %s right now...", topic),
		Steps: []string{
			"Film a quick reaction with your own take",
			"Keep it under 30 seconds",
			"Post tonight while the trend is still rising",
		},
		Tags: []string{"#trending"},
	}, nil
}

// Fallback wraps a primary generator and falls back to a secondary one when
// the primary fails or is unavailable.
type Fallback struct {
	Primary   Generator
	Secondary Generator
}

func (f Fallback) Name() string { return f.Primary.Name() + "+" + f.Secondary.Name() }

func (f Fallback) Suggest(ctx context.Context, topic, summary string) (Suggestion, error) {
	s, err := f.Primary.Suggest(ctx, topic, summary)
	if err == nil {
		return s, nil
	}
	return f.Secondary.Suggest(ctx, topic, summary)
}
